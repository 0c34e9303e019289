package stardog

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed indicates the connection can no longer be used.
	ErrClosed = errors.New("stardog: connection closed")
	// ErrTransactionActive indicates Begin was called while a transaction is open.
	ErrTransactionActive = errors.New("stardog: transaction already active")
	// ErrNoTransaction indicates a transactional operation was attempted with no open transaction.
	ErrNoTransaction = errors.New("stardog: no active transaction")
	// ErrTransactionIndeterminate indicates the previous commit failed mid-flight
	// and the transaction outcome is unknown; only Begin or Close may follow.
	ErrTransactionIndeterminate = errors.New("stardog: transaction state indeterminate")
	// ErrStreamOpen indicates a streaming read is already in progress on this connection.
	ErrStreamOpen = errors.New("stardog: stream already open")
	// ErrStreamClosed indicates a read was attempted on a closed stream.
	ErrStreamClosed = errors.New("stardog: stream closed")
)

// IndeterminateTransactionError reports a commit whose request was sent but
// whose outcome never came back. The server may or may not have persisted
// the transaction; the caller must treat the data state as unknown.
type IndeterminateTransactionError struct {
	TxID string
	Err  error
}

func (e *IndeterminateTransactionError) Error() string {
	return fmt.Sprintf("stardog: commit of transaction %s did not complete, data state unknown: %v", e.TxID, e.Err)
}

func (e *IndeterminateTransactionError) Unwrap() error { return e.Err }
