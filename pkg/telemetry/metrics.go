package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	attrDatabase  = attribute.Key("db.name")
	attrMethod    = attribute.Key("http.request.method")
	attrPath      = attribute.Key("url.path")
	attrStatus    = attribute.Key("http.response.status_code")
	attrQueryKind = attribute.Key("db.query.kind")
	attrReqError  = attribute.Key("db.request.error")
)

type recorders struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	errors   metric.Int64Counter
	queries  metric.Int64Counter
}

// RequestData captures the metadata recorded for each HTTP exchange with the
// server.
type RequestData struct {
	Database   string
	Method     string
	Path       string
	StatusCode int
	Duration   time.Duration
	Error      error
}

// QueryData captures per-query counters keyed by query kind.
type QueryData struct {
	Database string
	Kind     string
	Error    error
}

func newRecorders(m metric.Meter) (*recorders, error) {
	if m == nil {
		return &recorders{}, nil
	}
	requests, err := m.Int64Counter("stardog.client.requests.total",
		metric.WithDescription("Total number of HTTP requests issued to the server."))
	if err != nil {
		return nil, err
	}
	latency, err := m.Float64Histogram("stardog.client.request.latency.ms",
		metric.WithDescription("HTTP request round-trip latency in milliseconds."),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	errCounter, err := m.Int64Counter("stardog.client.request.errors.total",
		metric.WithDescription("Requests that failed in transport or were rejected by the server."))
	if err != nil {
		return nil, err
	}
	queries, err := m.Int64Counter("stardog.client.queries.total",
		metric.WithDescription("Queries dispatched, keyed by query kind."))
	if err != nil {
		return nil, err
	}
	return &recorders{requests: requests, latency: latency, errors: errCounter, queries: queries}, nil
}

func (r *recorders) RecordRequest(ctx context.Context, data RequestData) {
	if r == nil || r.requests == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attrDatabase.String(data.Database),
		attrMethod.String(data.Method),
		attrPath.String(data.Path),
		attrStatus.Int(data.StatusCode),
	}
	if data.Error != nil {
		attrs = append(attrs, attrReqError.Bool(true))
		r.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	opt := metric.WithAttributes(attrs...)
	r.requests.Add(ctx, 1, opt)
	r.latency.Record(ctx, float64(data.Duration)/float64(time.Millisecond), opt)
}

func (r *recorders) RecordQuery(ctx context.Context, data QueryData) {
	if r == nil || r.queries == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attrDatabase.String(data.Database),
		attrQueryKind.String(data.Kind),
	}
	if data.Error != nil {
		attrs = append(attrs, attrReqError.Bool(true))
	}
	r.queries.Add(ctx, 1, metric.WithAttributes(attrs...))
}
