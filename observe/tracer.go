package observe

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// QueryMeta describes one query execution for telemetry purposes.
type QueryMeta struct {
	ID        string // execution id (optional)
	Operation string // select|ask|construct|describe|update|federated
	Endpoint  string // endpoint URL (required)
	Name      string // endpoint display name (optional)
	Format    string // requested result format (optional)
	Strategy  string // merge strategy, federation only
}

// SpanName returns the deterministic span name for this query.
// Format: sparql.query.<operation>, with "query" when the operation is unknown.
func (m QueryMeta) SpanName() string {
	op := strings.ToLower(strings.TrimSpace(m.Operation))
	if op == "" {
		op = "query"
	}
	return "sparql.query." + op
}

// Validate reports ErrMissingEndpoint when no endpoint is set.
func (m QueryMeta) Validate() error {
	if m.Endpoint == "" {
		return ErrMissingEndpoint
	}
	return nil
}

func (m QueryMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("sparql.endpoint", m.Endpoint),
		attribute.String("sparql.operation", m.SpanName()[len("sparql.query."):]),
	}
	if m.Name != "" {
		attrs = append(attrs, attribute.String("sparql.endpoint.name", m.Name))
	}
	if m.Format != "" {
		attrs = append(attrs, attribute.String("sparql.format", m.Format))
	}
	if m.Strategy != "" {
		attrs = append(attrs, attribute.String("sparql.strategy", m.Strategy))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with query span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a client span for one query.
	StartSpan(ctx context.Context, meta QueryMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return newNoopTracer()
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta QueryMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("sparql.error", false))
	if meta.ID != "" {
		attrs = append(attrs, attribute.String("sparql.execution_id", meta.ID))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("sparql.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta QueryMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
