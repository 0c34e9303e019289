// Package stardog presents a remote Stardog server as a stateful,
// transactional connection. The wire protocol is stateless HTTP; this
// package threads a server-issued transaction id through every call and
// tracks the resulting session state on the client side.
package stardog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/stardog-union/stardog-go/pkg/client"
	"github.com/stardog-union/stardog-go/pkg/content"
)

// State is the transaction state of a Connection.
type State int

const (
	// StateInactive means no transaction is open.
	StateInactive State = iota
	// StateActive means a transaction is open and mutations are accepted.
	StateActive
	// StateIndeterminate means a commit was sent but its outcome is unknown.
	// Only Begin and Close are accepted from here.
	StateIndeterminate
	// StateClosed means the connection has been released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateIndeterminate:
		return "indeterminate"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Connection binds to one database and owns at most one open transaction
// and at most one open stream at a time. It is not safe for concurrent use
// by multiple logical callers; the internal lock protects the state machine
// for a single caller, it does not serialize competing transactions.
type Connection struct {
	db     string
	client *client.Client

	mu         sync.Mutex
	state      State
	txID       string
	streamOpen bool
}

// Connect opens a connection to the configured database and verifies the
// server is reachable before returning.
func Connect(ctx context.Context, cfg Config, opts ...client.Option) (*Connection, error) {
	db := strings.TrimSpace(cfg.Database)
	if db == "" {
		return nil, errors.New("stardog: database name is required")
	}
	cl, err := client.New(cfg.Endpoint, client.Credentials{Username: cfg.Username, Password: cfg.Password}, opts...)
	if err != nil {
		return nil, err
	}
	if err := cl.Alive(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("stardog: liveness check failed: %w", err)
	}
	return &Connection{db: db, client: cl}, nil
}

// Database returns the database name this connection is bound to.
func (c *Connection) Database() string { return c.db }

// State reports the current transaction state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TransactionID returns the server-issued id of the open transaction, or
// the empty string when none is open.
func (c *Connection) TransactionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txID
}

// Begin requests a new transaction id from the server. Exactly one
// transaction may be open per connection; Begin from Indeterminate is
// permitted and starts a fresh transaction.
func (c *Connection) Begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateActive:
		return ErrTransactionActive
	}
	resp, err := c.client.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/" + c.db + "/transaction/begin",
	})
	if err != nil {
		return err
	}
	id := strings.TrimSpace(resp.Text())
	if id == "" {
		return errors.New("stardog: server returned an empty transaction id")
	}
	c.txID = id
	c.state = StateActive
	return nil
}

// Commit asks the server to finalize the open transaction. If the request
// is sent but fails, the outcome is genuinely unknown: the connection moves
// to StateIndeterminate and the error is an *IndeterminateTransactionError.
// The caller must not assume the data was or was not persisted.
func (c *Connection) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireActiveLocked(); err != nil {
		return err
	}
	tx := c.txID
	_, err := c.client.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/" + c.db + "/transaction/commit/" + tx,
	})
	if err != nil {
		c.state = StateIndeterminate
		return &IndeterminateTransactionError{TxID: tx, Err: err}
	}
	c.txID = ""
	c.state = StateInactive
	return nil
}

// Rollback asks the server to discard the open transaction. The local
// transaction id is cleared even when the server call fails, because
// rollback is best-effort cleanup; the failure is still returned.
func (c *Connection) Rollback(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireActiveLocked(); err != nil {
		return err
	}
	tx := c.txID
	c.txID = ""
	c.state = StateInactive
	_, err := c.client.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/" + c.db + "/transaction/rollback/" + tx,
	})
	return err
}

// Add uploads RDF content into the open transaction, optionally into a
// named graph.
func (c *Connection) Add(ctx context.Context, data content.Content, graphURI ...string) error {
	return c.mutate(ctx, "add", data, first(graphURI))
}

// Remove deletes the statements described by the content from the open
// transaction, optionally from a named graph.
func (c *Connection) Remove(ctx context.Context, data content.Content, graphURI ...string) error {
	return c.mutate(ctx, "remove", data, first(graphURI))
}

// Clear removes every statement in the database, or in one named graph,
// within the open transaction.
func (c *Connection) Clear(ctx context.Context, graphURI ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireActiveLocked(); err != nil {
		return err
	}
	params := url.Values{}
	if g := first(graphURI); g != "" {
		params.Set("graph-uri", g)
	}
	_, err := c.client.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/" + c.db + "/" + c.txID + "/clear",
		Params: params,
	})
	return err
}

// Size returns the exact statement count. It executes outside any
// transaction and is usable whenever the connection is open.
func (c *Connection) Size(ctx context.Context) (int64, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	resp, err := c.client.Do(ctx, client.Request{
		Method: http.MethodGet,
		Path:   "/" + c.db + "/size",
		Params: url.Values{"exact": []string{"true"}},
	})
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(resp.Text()), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stardog: parse size response %q: %w", resp.Text(), err)
	}
	return n, nil
}

// ExportOption adjusts a dump request.
type ExportOption func(*exportOptions)

type exportOptions struct {
	format   string
	graphURI string
}

// WithExportFormat selects the RDF serialization of the dump. Turtle is the
// default.
func WithExportFormat(mediaType string) ExportOption {
	return func(o *exportOptions) { o.format = mediaType }
}

// WithExportGraph restricts the dump to one named graph.
func WithExportGraph(uri string) ExportOption {
	return func(o *exportOptions) { o.graphURI = uri }
}

// Export dumps the database fully buffered.
func (c *Connection) Export(ctx context.Context, opts ...ExportOption) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	resp, err := c.client.Do(ctx, c.exportRequest(opts))
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// ExportStream dumps the database as a scoped chunk stream. Only one stream
// may be open per connection; the slot is released when the stream is
// exhausted, closed, or fails.
func (c *Connection) ExportStream(ctx context.Context, chunkSize int, opts ...ExportOption) (*Stream, error) {
	if err := c.acquireStream(); err != nil {
		return nil, err
	}
	resp, err := c.client.DoStream(ctx, c.exportRequest(opts))
	if err != nil {
		c.releaseStream()
		return nil, err
	}
	return newStream(resp.Body, chunkSize, c.releaseStream), nil
}

func (c *Connection) exportRequest(opts []ExportOption) client.Request {
	options := exportOptions{format: content.Turtle}
	for _, opt := range opts {
		opt(&options)
	}
	params := url.Values{}
	if options.graphURI != "" {
		params.Set("graph-uri", options.graphURI)
	}
	return client.Request{
		Method: http.MethodGet,
		Path:   "/" + c.db + "/export",
		Params: params,
		Accept: options.format,
	}
}

// Docs returns the document store bound to this connection.
func (c *Connection) Docs() *Docs { return &Docs{conn: c} }

// ICV returns the integrity constraint validator bound to this connection.
func (c *Connection) ICV() *ICV { return &ICV{conn: c} }

// Versioning returns the version-control facade bound to this connection.
func (c *Connection) Versioning() *VCS { return &VCS{conn: c} }

// GraphQL returns the GraphQL facade bound to this connection.
func (c *Connection) GraphQL() *GraphQL { return &GraphQL{conn: c} }

// Close rolls back any open transaction best-effort, then releases the
// transport. It is idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	var orphan string
	if c.state == StateActive {
		orphan = c.txID
	}
	c.state = StateClosed
	c.txID = ""
	c.mu.Unlock()

	if orphan != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := c.client.Do(ctx, client.Request{
			Method: http.MethodPost,
			Path:   "/" + c.db + "/transaction/rollback/" + orphan,
		})
		if err != nil {
			glog.Warningf("stardog: rollback of transaction %s during close failed: %v", orphan, err)
		}
	}
	c.client.Close()
	return nil
}

func (c *Connection) mutate(ctx context.Context, op string, data content.Content, graphURI string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireActiveLocked(); err != nil {
		return err
	}
	mediaType, err := data.MediaType()
	if err != nil {
		return err
	}
	body, err := data.Open()
	if err != nil {
		return err
	}
	defer body.Close()
	params := url.Values{}
	if graphURI != "" {
		params.Set("graph-uri", graphURI)
	}
	_, err = c.client.Do(ctx, client.Request{
		Method:      http.MethodPost,
		Path:        "/" + c.db + "/" + c.txID + "/" + op,
		Params:      params,
		ContentType: mediaType,
		Body:        body,
	})
	return err
}

// requireActiveLocked enforces the fail-fast contract: mutating operations
// never reach the network unless a transaction is open.
func (c *Connection) requireActiveLocked() error {
	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateIndeterminate:
		return ErrTransactionIndeterminate
	case StateActive:
		return nil
	default:
		return ErrNoTransaction
	}
}

func (c *Connection) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrClosed
	}
	return nil
}

func (c *Connection) acquireStream() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrClosed
	}
	if c.streamOpen {
		return ErrStreamOpen
	}
	c.streamOpen = true
	return nil
}

func (c *Connection) releaseStream() {
	c.mu.Lock()
	c.streamOpen = false
	c.mu.Unlock()
}

// currentTx returns the transaction id when one is open.
func (c *Connection) currentTx() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateActive {
		return c.txID
	}
	return ""
}

func first(values []string) string {
	if len(values) > 0 {
		return values[0]
	}
	return ""
}
