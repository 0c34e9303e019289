package stardog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stardog-union/stardog-go/pkg/client"
	"github.com/stardog-union/stardog-go/pkg/content"
)

// captureServer records each query request and plays back a canned body.
type captureServer struct {
	mu       sync.Mutex
	requests []capturedRequest
	respond  func(path string) (string, string) // -> content type, body
}

type capturedRequest struct {
	method string
	path   string
	accept string
	form   url.Values
}

func (s *captureServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/admin/alive" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = r.ParseForm()
		s.mu.Lock()
		s.requests = append(s.requests, capturedRequest{
			method: r.Method,
			path:   r.URL.Path,
			accept: r.Header.Get("Accept"),
			form:   r.PostForm,
		})
		s.mu.Unlock()
		contentType, body := s.respond(r.URL.Path)
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		fmt.Fprint(w, body)
	})
}

func (s *captureServer) last(t *testing.T) capturedRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.requests)
	return s.requests[len(s.requests)-1]
}

const oneRowBindings = `{
	"head": {"vars": ["s", "p", "o"]},
	"results": {"bindings": [{
		"s": {"type": "uri", "value": "urn:subj"},
		"p": {"type": "uri", "value": "urn:pred"},
		"o": {"type": "literal", "value": "Luke Skywalker", "xml:lang": "en"}
	}]}
}`

func newQueryConn(t *testing.T, body string) (*Connection, *captureServer) {
	t.Helper()
	backend := &captureServer{respond: func(string) (string, string) {
		return content.SPARQLJSON, body
	}}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)
	return connectTo(t, srv), backend
}

func TestSelectOmitsUnsetOptions(t *testing.T) {
	conn, backend := newQueryConn(t, oneRowBindings)

	_, err := conn.Select(context.Background(), "select * {?s ?p ?o}")
	require.NoError(t, err)

	req := backend.last(t)
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/test/query", req.path)
	assert.Equal(t, content.SPARQLJSON, req.accept)
	assert.Equal(t, "select * {?s ?p ?o}", req.form.Get("query"))
	for _, absent := range []string{"reasoning", "offset", "limit", "timeout"} {
		_, present := req.form[absent]
		assert.False(t, present, "parameter %q must not be sent unless supplied", absent)
	}
	for name := range req.form {
		assert.NotEqual(t, byte('$'), name[0], "no binding parameters expected, got %q", name)
	}
}

func TestSelectEncodesSuppliedOptions(t *testing.T) {
	conn, backend := newQueryConn(t, oneRowBindings)

	_, err := conn.Select(context.Background(), "select * {?s :name ?o}",
		WithReasoning(true),
		WithOffset(1),
		WithLimit(10),
		WithQueryTimeout(time.Second),
		WithBinding("o", `"Luke Skywalker"`),
	)
	require.NoError(t, err)

	req := backend.last(t)
	assert.Equal(t, "true", req.form.Get("reasoning"))
	assert.Equal(t, "1", req.form.Get("offset"))
	assert.Equal(t, "10", req.form.Get("limit"))
	assert.Equal(t, "1000", req.form.Get("timeout"))
	assert.Equal(t, `"Luke Skywalker"`, req.form.Get("$o"), "binding literals travel verbatim")
}

func TestSelectDecodesBindingsTable(t *testing.T) {
	conn, _ := newQueryConn(t, oneRowBindings)

	result, err := conn.Select(context.Background(), "select * {?s ?p ?o}")
	require.NoError(t, err)

	assert.Equal(t, []string{"s", "p", "o"}, result.Variables)
	require.Equal(t, 1, result.Len())
	row := result.Bindings[0]
	assert.True(t, row["s"].IsIRI())
	assert.Equal(t, "urn:subj", row["s"].Value)
	assert.Equal(t, "urn:pred", row["p"].Value)
	assert.True(t, row["o"].IsLiteral())
	assert.Equal(t, "Luke Skywalker", row["o"].Value)
	assert.Equal(t, "en", row["o"].Language)
}

func TestQueryInsideTransactionUsesTransactionPath(t *testing.T) {
	backend := &captureServer{respond: func(path string) (string, string) {
		if path == "/test/transaction/begin" {
			return content.Plain, "tx-77"
		}
		return content.SPARQLJSON, oneRowBindings
	}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()
	conn := connectTo(t, srv)
	ctx := context.Background()

	require.NoError(t, conn.Begin(ctx))
	_, err := conn.Select(ctx, "select * {?s ?p ?o}")
	require.NoError(t, err)
	assert.Equal(t, "/test/tx-77/query", backend.last(t).path)

	require.NoError(t, conn.Update(ctx, "delete where {?s ?p ?o}"))
	assert.Equal(t, "/test/tx-77/update", backend.last(t).path)

	require.NoError(t, conn.Rollback(ctx))
	_, err = conn.Select(ctx, "select * {?s ?p ?o}")
	require.NoError(t, err)
	assert.Equal(t, "/test/query", backend.last(t).path, "no transaction id once rolled back")
}

func TestAskDecodesBoolean(t *testing.T) {
	backend := &captureServer{respond: func(string) (string, string) {
		return content.Boolean, "false"
	}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()
	conn := connectTo(t, srv)

	answer, err := conn.Ask(context.Background(), "ask {:luke a :Droid}")
	require.NoError(t, err)
	assert.False(t, answer)
	assert.Equal(t, content.Boolean, backend.last(t).accept)
}

func TestGraphNegotiatesRDFSerialization(t *testing.T) {
	const turtle = "<urn:luke> a <urn:Human> ."
	backend := &captureServer{respond: func(string) (string, string) {
		return content.Turtle, turtle
	}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()
	conn := connectTo(t, srv)

	doc, err := conn.Graph(context.Background(), "construct {?s a ?o} where {?s a ?o}")
	require.NoError(t, err)
	assert.Equal(t, turtle, doc)
	assert.Equal(t, content.Turtle, backend.last(t).accept)

	_, err = conn.Graph(context.Background(), "construct {?s a ?o} where {?s a ?o}",
		WithGraphFormat(content.NTriples))
	require.NoError(t, err)
	assert.Equal(t, content.NTriples, backend.last(t).accept)
}

func TestExplainReturnsPlanText(t *testing.T) {
	const plan = "Projection(?s, ?p, ?o)\n`- Scan[SPO]"
	backend := &captureServer{respond: func(string) (string, string) {
		return content.Plain, plan
	}}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()
	conn := connectTo(t, srv)

	text, err := conn.Explain(context.Background(), "select * {?s ?p ?o}")
	require.NoError(t, err)
	assert.Contains(t, text, "Projection(?s, ?p, ?o)")
	assert.Equal(t, "/test/explain", backend.last(t).path)
}

func TestQueryErrorPreservesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/admin/alive" {
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"com.complexible.stardog.plan.eval.ExecutionException: parse error","code":"QE0PE2"}`)
	}))
	defer srv.Close()
	conn := connectTo(t, srv)

	_, err := conn.Select(context.Background(), "select * {")
	var serverErr *client.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusBadRequest, serverErr.StatusCode)
	assert.Equal(t, "QE0PE2", serverErr.Code)
	assert.Equal(t, "com.complexible.stardog.plan.eval.ExecutionException: parse error", serverErr.Message)
}
