package stardog

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stardog-union/stardog-go/pkg/client"
	"github.com/stardog-union/stardog-go/pkg/content"
	"github.com/stardog-union/stardog-go/pkg/telemetry"
)

// queryKind selects the endpoint, the Accept header and the response
// decoder for one dispatch. Everything kind-specific hangs off this tag.
type queryKind string

const (
	kindSelect  queryKind = "select"
	kindAsk     queryKind = "ask"
	kindPaths   queryKind = "paths"
	kindGraph   queryKind = "graph"
	kindUpdate  queryKind = "update"
	kindExplain queryKind = "explain"
)

type queryOptions struct {
	reasoning   *bool
	bindings    map[string]string
	offset      *int
	limit       *int
	timeout     *time.Duration
	graphFormat string
}

// QueryOption attaches an optional request parameter. Options that are not
// supplied never reach the wire, so server defaults stay in force.
type QueryOption func(*queryOptions)

// WithReasoning toggles reasoning for this query.
func WithReasoning(enabled bool) QueryOption {
	return func(o *queryOptions) { o.reasoning = &enabled }
}

// WithBinding pre-binds a query variable to a literal. The value is
// forwarded exactly as supplied; it must already be valid RDF term syntax.
func WithBinding(name, literal string) QueryOption {
	return func(o *queryOptions) {
		if o.bindings == nil {
			o.bindings = make(map[string]string)
		}
		o.bindings[name] = literal
	}
}

// WithOffset skips the first n results.
func WithOffset(n int) QueryOption {
	return func(o *queryOptions) { o.offset = &n }
}

// WithLimit caps the number of results.
func WithLimit(n int) QueryOption {
	return func(o *queryOptions) { o.limit = &n }
}

// WithQueryTimeout sets the server-side evaluation timeout.
func WithQueryTimeout(d time.Duration) QueryOption {
	return func(o *queryOptions) { o.timeout = &d }
}

// WithGraphFormat selects the RDF serialization of a Graph query response.
// Turtle is the default.
func WithGraphFormat(mediaType string) QueryOption {
	return func(o *queryOptions) { o.graphFormat = mediaType }
}

// Select runs a SPARQL select query and returns the bindings table. Inside
// an open transaction the query observes uncommitted changes.
func (c *Connection) Select(ctx context.Context, query string, opts ...QueryOption) (*SelectResult, error) {
	resp, err := c.runQuery(ctx, "/"+c.db, true, kindSelect, query, opts)
	if err != nil {
		return nil, err
	}
	return decodeSelect(resp.Body)
}

// Paths runs a Stardog path query; results share the select bindings shape.
func (c *Connection) Paths(ctx context.Context, query string, opts ...QueryOption) (*SelectResult, error) {
	resp, err := c.runQuery(ctx, "/"+c.db, true, kindPaths, query, opts)
	if err != nil {
		return nil, err
	}
	return decodeSelect(resp.Body)
}

// Ask runs a SPARQL ask query.
func (c *Connection) Ask(ctx context.Context, query string, opts ...QueryOption) (bool, error) {
	resp, err := c.runQuery(ctx, "/"+c.db, true, kindAsk, query, opts)
	if err != nil {
		return false, err
	}
	return decodeBoolean(resp.Body)
}

// Graph runs a construct (or describe) query and returns the serialized RDF
// document unparsed.
func (c *Connection) Graph(ctx context.Context, query string, opts ...QueryOption) (string, error) {
	resp, err := c.runQuery(ctx, "/"+c.db, true, kindGraph, query, opts)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Update runs a SPARQL update. Inside an open transaction the write joins
// the transaction; otherwise it autocommits server-side.
func (c *Connection) Update(ctx context.Context, query string, opts ...QueryOption) error {
	_, err := c.runQuery(ctx, "/"+c.db, true, kindUpdate, query, opts)
	return err
}

// Explain returns the server's evaluation plan for the query as text.
func (c *Connection) Explain(ctx context.Context, query string, opts ...QueryOption) (string, error) {
	resp, err := c.runQuery(ctx, "/"+c.db, false, kindExplain, query, opts)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// runQuery builds and issues the request for one query dispatch. base is the
// path prefix queries are scoped to ("/db" or "/db/vcs"); useTx attaches the
// open transaction id when one exists.
func (c *Connection) runQuery(ctx context.Context, base string, useTx bool, kind queryKind, query string, opts []QueryOption) (*client.Response, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}

	form := url.Values{}
	form.Set("query", query)
	if o.reasoning != nil {
		form.Set("reasoning", strconv.FormatBool(*o.reasoning))
	}
	if o.offset != nil {
		form.Set("offset", strconv.Itoa(*o.offset))
	}
	if o.limit != nil {
		form.Set("limit", strconv.Itoa(*o.limit))
	}
	if o.timeout != nil {
		form.Set("timeout", strconv.FormatInt(o.timeout.Milliseconds(), 10))
	}
	for name, literal := range o.bindings {
		form.Set("$"+name, literal)
	}

	endpoint := "/query"
	accept := content.SPARQLJSON
	switch kind {
	case kindAsk:
		accept = content.Boolean
	case kindGraph:
		accept = o.graphFormat
		if accept == "" {
			accept = content.Turtle
		}
	case kindUpdate:
		endpoint = "/update"
		accept = ""
	case kindExplain:
		endpoint = "/explain"
		accept = content.Plain
	}

	path := base
	if useTx {
		if tx := c.currentTx(); tx != "" {
			path += "/" + tx
		}
	}
	path += endpoint

	resp, err := c.client.Do(ctx, client.Request{
		Method:      http.MethodPost,
		Path:        path,
		Accept:      accept,
		ContentType: "application/x-www-form-urlencoded",
		Body:        strings.NewReader(form.Encode()),
	})
	telemetry.RecordQuery(ctx, telemetry.QueryData{Database: c.db, Kind: string(kind), Error: err})
	return resp, err
}
