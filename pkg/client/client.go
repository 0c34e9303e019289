// Package client implements the HTTP transport the Stardog client library
// talks through: one authenticated request primitive, content negotiation,
// and translation of failures into transport and server error types.
//
// The server treats every request independently. Anything session-like
// (transaction ids, open streams) is layered on top by pkg/stardog; this
// package never retries and never keeps state beyond the connection pool.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stardog-union/stardog-go/pkg/telemetry"
)

const defaultEndpoint = "http://localhost:5820"

// Credentials carry the basic-auth identity for every request.
type Credentials struct {
	Username string
	Password string
}

// Client issues authenticated requests against a single Stardog endpoint.
// It is safe for concurrent use; per-session state lives in pkg/stardog.
type Client struct {
	base  *url.URL
	creds Credentials
	http  *http.Client
}

// Option customizes the constructed client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying *http.Client, typically to set
// transport-level timeouts or to install a test transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New builds a client for the given endpoint. An empty endpoint falls back
// to the conventional local server address.
func New(endpoint string, creds Credentials, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		trimmed = defaultEndpoint
	}
	base, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("client: parse endpoint %q: %w", telemetry.MaskText(trimmed), err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("client: unsupported endpoint scheme %q", base.Scheme)
	}
	c := &Client{
		base:  base,
		creds: creds,
		http:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the server base URL without credentials.
func (c *Client) Endpoint() string { return c.base.String() }

// Request describes one HTTP exchange. Params carry only caller-supplied
// values: an absent option must be absent on the wire so server defaults
// stay in force.
type Request struct {
	Method      string
	Path        string
	Params      url.Values
	Accept      string
	ContentType string
	Body        io.Reader
}

// Response is a fully buffered reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text returns the body as a string.
func (r *Response) Text() string { return string(r.Body) }

// StreamResponse is a reply whose body remains open. The caller owns Body
// and must close it exactly once.
type StreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Do performs a request and buffers the entire response body.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: opString(req), Err: err}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// DoStream performs a request and hands the open body to the caller. Used
// only by export and document retrieval, the two operations allowed to hold
// a connection across caller-visible reads.
func (c *Client) DoStream(ctx context.Context, req Request) (*StreamResponse, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	return &StreamResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}

// Alive probes the server health endpoint. Used by Connect as the open-time
// liveness check.
func (c *Client) Alive(ctx context.Context) error {
	_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/admin/alive"})
	return err
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) send(ctx context.Context, req Request) (*http.Response, error) {
	op := opString(req)
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + req.Path
	if len(req.Params) > 0 {
		u.RawQuery = req.Params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), req.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if c.creds.Username != "" {
		httpReq.SetBasicAuth(c.creds.Username, c.creds.Password)
	}
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-Id", requestID)

	ctx, span := telemetry.StartSpan(ctx, "stardog.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
			attribute.String("http.request.id", requestID),
		)...))

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		terr := &TransportError{Op: op, Err: err}
		telemetry.EndSpan(span, terr)
		telemetry.RecordRequest(ctx, telemetry.RequestData{
			Method: req.Method, Path: req.Path, Duration: duration, Error: terr,
		})
		glog.V(2).Infof("client: %s failed in %s: %v", op, duration, err)
		return nil, terr
	}

	glog.V(2).Infof("client: %s -> %d in %s", op, resp.StatusCode, duration)
	if resp.StatusCode >= http.StatusBadRequest {
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			body = nil
		}
		serr := newServerError(resp.StatusCode, body)
		telemetry.EndSpan(span, serr)
		telemetry.RecordRequest(ctx, telemetry.RequestData{
			Method: req.Method, Path: req.Path, StatusCode: resp.StatusCode,
			Duration: duration, Error: serr,
		})
		return nil, serr
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	telemetry.EndSpan(span, nil)
	telemetry.RecordRequest(ctx, telemetry.RequestData{
		Method: req.Method, Path: req.Path, StatusCode: resp.StatusCode, Duration: duration,
	})
	return resp, nil
}

func opString(req Request) string {
	return req.Method + " " + req.Path
}
