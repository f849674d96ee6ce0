package observe

import (
	"context"
	"time"
)

// ExecuteFunc runs one query and reports how many rows it produced.
type ExecuteFunc func(ctx context.Context, meta QueryMeta, query string) (rows int, err error)

// maxLoggedQuery bounds the query text written at debug level.
const maxLoggedQuery = 256

// Middleware wraps query execution with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: the span context is passed to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Metrics returns the middleware's metrics recorder.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Wrap wraps fn with a span, metrics and one log entry per execution.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, meta QueryMeta, query string) (int, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		rows, err := fn(ctx, meta, query)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordQuery(ctx, meta, duration, rows, err)

		log := m.logger.With(meta)
		log.Debug(ctx, "sparql query", Field{Key: "query", Value: truncate(query, maxLoggedQuery)})

		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			log.Error(ctx, "sparql query failed", fields...)
		} else {
			fields = append(fields, Field{Key: "rows", Value: rows})
			log.Info(ctx, "sparql query completed", fields...)
		}

		return rows, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
