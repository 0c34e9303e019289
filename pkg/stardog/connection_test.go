package stardog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stardog-union/stardog-go/pkg/client"
	"github.com/stardog-union/stardog-go/pkg/content"
)

// txServer is a minimal in-memory rendition of the server's transaction
// surface: statements are newline-separated opaque strings, transactions
// buffer mutations until commit.
type txServer struct {
	mu        sync.Mutex
	committed []string
	pending   map[string][]op
	nextTx    int
	requests  int
	failNext  map[string]int // path suffix -> status to return once
}

type op struct {
	kind  string // add, remove, clear
	lines []string
}

func newTxServer() *txServer {
	return &txServer{pending: map[string][]op{}, failNext: map[string]int{}}
}

func (s *txServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.requests++

		for suffix, status := range s.failNext {
			if strings.Contains(r.URL.Path, suffix) {
				delete(s.failNext, suffix)
				w.WriteHeader(status)
				fmt.Fprintf(w, `{"message":"injected failure","code":"TEST"}`)
				return
			}
		}

		path := r.URL.Path
		switch {
		case path == "/admin/alive":
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(path, "/transaction/begin"):
			s.nextTx++
			fmt.Fprintf(w, "tx-%d", s.nextTx)
		case strings.Contains(path, "/transaction/commit/"):
			tx := path[strings.LastIndex(path, "/")+1:]
			for _, o := range s.pending[tx] {
				s.apply(o)
			}
			delete(s.pending, tx)
		case strings.Contains(path, "/transaction/rollback/"):
			tx := path[strings.LastIndex(path, "/")+1:]
			delete(s.pending, tx)
		case strings.HasSuffix(path, "/add"), strings.HasSuffix(path, "/remove"):
			kind := path[strings.LastIndex(path, "/")+1:]
			parts := strings.Split(strings.Trim(path, "/"), "/")
			require.Len(t, parts, 3, "mutation path should be /db/tx/op, got %s", path)
			tx := parts[1]
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			s.pending[tx] = append(s.pending[tx], op{kind: kind, lines: nonEmptyLines(string(body))})
		case strings.HasSuffix(path, "/clear"):
			parts := strings.Split(strings.Trim(path, "/"), "/")
			tx := parts[1]
			s.pending[tx] = append(s.pending[tx], op{kind: "clear"})
		case strings.HasSuffix(path, "/size"):
			fmt.Fprintf(w, "%d", len(s.committed))
		case strings.HasSuffix(path, "/export"):
			fmt.Fprint(w, strings.Join(s.committed, "\n"))
		default:
			t.Errorf("unexpected request %s %s", r.Method, path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (s *txServer) apply(o op) {
	switch o.kind {
	case "add":
		s.committed = append(s.committed, o.lines...)
	case "remove":
		for _, line := range o.lines {
			for i, existing := range s.committed {
				if existing == line {
					s.committed = append(s.committed[:i], s.committed[i+1:]...)
					break
				}
			}
		}
	case "clear":
		s.committed = nil
	}
}

func (s *txServer) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func connectTo(t *testing.T, srv *httptest.Server) *Connection {
	t.Helper()
	conn, err := Connect(context.Background(), Config{
		Endpoint: srv.URL,
		Database: "test",
		Username: "admin",
		Password: "admin",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestCommitAppliesInterleavedMutations(t *testing.T) {
	backend := newTxServer()
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()
	conn := connectTo(t, srv)
	ctx := context.Background()

	triple := func(n int) content.Raw {
		return content.Raw{
			Data: []byte(fmt.Sprintf("<urn:s%d> <urn:p> <urn:o> .", n)),
			Type: content.Turtle,
		}
	}

	require.NoError(t, conn.Begin(ctx))
	require.NoError(t, conn.Add(ctx, triple(1)))
	require.NoError(t, conn.Add(ctx, triple(2)))
	require.NoError(t, conn.Remove(ctx, triple(1)))
	require.NoError(t, conn.Add(ctx, triple(3)))
	require.NoError(t, conn.Commit(ctx))

	size, err := conn.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)
	assert.Equal(t, StateInactive, conn.State())
	assert.Empty(t, conn.TransactionID())
}

func TestRollbackLeavesSizeUnchanged(t *testing.T) {
	backend := newTxServer()
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()
	conn := connectTo(t, srv)
	ctx := context.Background()

	data := content.Raw{Data: []byte("<urn:s> <urn:p> <urn:o> ."), Type: content.Turtle}

	require.NoError(t, conn.Begin(ctx))
	require.NoError(t, conn.Add(ctx, data))
	require.NoError(t, conn.Commit(ctx))

	before, err := conn.Size(ctx)
	require.NoError(t, err)

	require.NoError(t, conn.Begin(ctx))
	require.NoError(t, conn.Add(ctx, content.Raw{Data: []byte("<urn:s2> <urn:p> <urn:o> ."), Type: content.Turtle}))
	require.NoError(t, conn.Clear(ctx))
	require.NoError(t, conn.Rollback(ctx))

	after, err := conn.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, StateInactive, conn.State())
}

func TestMutationsWithoutTransactionFailBeforeNetwork(t *testing.T) {
	backend := newTxServer()
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()
	conn := connectTo(t, srv)
	ctx := context.Background()

	baseline := backend.requestCount()
	data := content.Raw{Data: []byte("x"), Type: content.Turtle}

	require.ErrorIs(t, conn.Add(ctx, data), ErrNoTransaction)
	require.ErrorIs(t, conn.Remove(ctx, data), ErrNoTransaction)
	require.ErrorIs(t, conn.Clear(ctx), ErrNoTransaction)
	require.ErrorIs(t, conn.Commit(ctx), ErrNoTransaction)
	require.ErrorIs(t, conn.Rollback(ctx), ErrNoTransaction)

	assert.Equal(t, baseline, backend.requestCount(), "usage errors must not reach the wire")
}

func TestBeginWhileActiveFails(t *testing.T) {
	backend := newTxServer()
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()
	conn := connectTo(t, srv)
	ctx := context.Background()

	require.NoError(t, conn.Begin(ctx))
	require.ErrorIs(t, conn.Begin(ctx), ErrTransactionActive)
	require.NoError(t, conn.Rollback(ctx))
}

func TestFailedCommitLeavesIndeterminateThenBeginRecovers(t *testing.T) {
	backend := newTxServer()
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()
	conn := connectTo(t, srv)
	ctx := context.Background()

	require.NoError(t, conn.Begin(ctx))
	require.NoError(t, conn.Add(ctx, content.Raw{Data: []byte("<urn:s> <urn:p> <urn:o> ."), Type: content.Turtle}))

	backend.mu.Lock()
	backend.failNext["/transaction/commit/"] = http.StatusInternalServerError
	backend.mu.Unlock()

	err := conn.Commit(ctx)
	require.Error(t, err)
	var indeterminate *IndeterminateTransactionError
	require.ErrorAs(t, err, &indeterminate)
	assert.NotEmpty(t, indeterminate.TxID)
	assert.Equal(t, StateIndeterminate, conn.State())

	// Everything but Begin and Close is rejected from here.
	require.ErrorIs(t, conn.Add(ctx, content.Raw{Data: []byte("y"), Type: content.Turtle}), ErrTransactionIndeterminate)
	require.ErrorIs(t, conn.Commit(ctx), ErrTransactionIndeterminate)

	// A fresh transaction is permitted and fully usable.
	require.NoError(t, conn.Begin(ctx))
	assert.Equal(t, StateActive, conn.State())
	require.NoError(t, conn.Add(ctx, content.Raw{Data: []byte("<urn:s2> <urn:p> <urn:o> ."), Type: content.Turtle}))
	require.NoError(t, conn.Commit(ctx))
}

func TestRollbackClearsStateEvenWhenServerFails(t *testing.T) {
	backend := newTxServer()
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()
	conn := connectTo(t, srv)
	ctx := context.Background()

	require.NoError(t, conn.Begin(ctx))

	backend.mu.Lock()
	backend.failNext["/transaction/rollback/"] = http.StatusInternalServerError
	backend.mu.Unlock()

	err := conn.Rollback(ctx)
	require.Error(t, err)
	var serverErr *client.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, "injected failure", serverErr.Message)

	// Local state is reset regardless: rollback is best-effort cleanup.
	assert.Equal(t, StateInactive, conn.State())
	assert.Empty(t, conn.TransactionID())
	require.NoError(t, conn.Begin(ctx))
	require.NoError(t, conn.Rollback(ctx))
}

func TestExportBufferedMatchesStreamed(t *testing.T) {
	backend := newTxServer()
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()
	conn := connectTo(t, srv)
	ctx := context.Background()

	require.NoError(t, conn.Begin(ctx))
	for i := 0; i < 50; i++ {
		data := content.Raw{
			Data: []byte(fmt.Sprintf("<urn:s%d> <urn:p> <urn:o> .", i)),
			Type: content.Turtle,
		}
		require.NoError(t, conn.Add(ctx, data))
	}
	require.NoError(t, conn.Commit(ctx))

	buffered, err := conn.Export(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, buffered)

	for _, chunkSize := range []int{1, 1024, 0} {
		stream, err := conn.ExportStream(ctx, chunkSize)
		require.NoError(t, err, "chunk size %d", chunkSize)
		var joined strings.Builder
		for stream.Next() {
			joined.Write(stream.Bytes())
		}
		require.NoError(t, stream.Err())
		require.NoError(t, stream.Close())
		assert.Equal(t, buffered, joined.String(), "chunk size %d", chunkSize)
	}
}

func TestSecondStreamWhileOpenIsUsageError(t *testing.T) {
	backend := newTxServer()
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()
	conn := connectTo(t, srv)
	ctx := context.Background()

	require.NoError(t, conn.Begin(ctx))
	require.NoError(t, conn.Add(ctx, content.Raw{Data: []byte("<urn:s> <urn:p> <urn:o> ."), Type: content.Turtle}))
	require.NoError(t, conn.Commit(ctx))

	stream, err := conn.ExportStream(ctx, 4)
	require.NoError(t, err)

	_, err = conn.ExportStream(ctx, 4)
	require.ErrorIs(t, err, ErrStreamOpen)

	// Closing early releases the slot; a new stream can then be opened.
	require.NoError(t, stream.Close())
	second, err := conn.ExportStream(ctx, 4)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestCloseRollsBackOpenTransaction(t *testing.T) {
	backend := newTxServer()
	srv := httptest.NewServer(backend.handler(t))
	defer srv.Close()

	conn, err := Connect(context.Background(), Config{Endpoint: srv.URL, Database: "test"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, conn.Begin(ctx))
	tx := conn.TransactionID()
	require.NotEmpty(t, tx)

	require.NoError(t, conn.Close())
	assert.Equal(t, StateClosed, conn.State())

	backend.mu.Lock()
	_, stillPending := backend.pending[tx]
	backend.mu.Unlock()
	assert.False(t, stillPending, "close should roll the orphaned transaction back")

	// Close is idempotent and everything afterwards is rejected locally.
	require.NoError(t, conn.Close())
	require.ErrorIs(t, conn.Begin(ctx), ErrClosed)
	_, err = conn.Size(ctx)
	require.ErrorIs(t, err, ErrClosed)
}

func TestConnectRequiresDatabaseAndLiveServer(t *testing.T) {
	_, err := Connect(context.Background(), Config{Endpoint: "http://localhost:1", Database: ""})
	require.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"message":"starting up","code":"000012"}`)
	}))
	defer srv.Close()

	_, err = Connect(context.Background(), Config{Endpoint: srv.URL, Database: "test"})
	require.Error(t, err)
	var serverErr *client.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, "starting up", serverErr.Message)
}
