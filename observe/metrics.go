package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records query and probe measurements.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordQuery records one execution with its duration, row count and
	// error status.
	RecordQuery(ctx context.Context, meta QueryMeta, duration time.Duration, rows int, err error)

	// RecordPing records one endpoint probe. Its signature matches
	// health.PingRecorder.
	RecordPing(ctx context.Context, endpoint string, status string, latency time.Duration)
}

type metricsImpl struct {
	queryTotal    metric.Int64Counter
	queryErrors   metric.Int64Counter
	queryDuration metric.Float64Histogram
	queryRows     metric.Int64Histogram
	pingTotal     metric.Int64Counter
	pingLatency   metric.Float64Histogram
}

// NewMetrics registers the sparql.query.* and sparql.ping.* instruments on
// meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	m := &metricsImpl{}
	var err error

	if m.queryTotal, err = meter.Int64Counter(
		"sparql.query.total",
		metric.WithDescription("Total number of SPARQL query executions"),
		metric.WithUnit("{query}"),
	); err != nil {
		return nil, err
	}

	if m.queryErrors, err = meter.Int64Counter(
		"sparql.query.errors",
		metric.WithDescription("SPARQL query executions that did not succeed"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.queryDuration, err = meter.Float64Histogram(
		"sparql.query.duration_ms",
		metric.WithDescription("SPARQL query duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.queryRows, err = meter.Int64Histogram(
		"sparql.query.rows",
		metric.WithDescription("Rows returned per successful query"),
		metric.WithUnit("{row}"),
	); err != nil {
		return nil, err
	}

	if m.pingTotal, err = meter.Int64Counter(
		"sparql.ping.total",
		metric.WithDescription("Endpoint probes by resulting status"),
		metric.WithUnit("{probe}"),
	); err != nil {
		return nil, err
	}

	if m.pingLatency, err = meter.Float64Histogram(
		"sparql.ping.latency_ms",
		metric.WithDescription("Endpoint probe latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordQuery(ctx context.Context, meta QueryMeta, duration time.Duration, rows int, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.queryTotal.Add(ctx, 1, opt)
	if err != nil {
		m.queryErrors.Add(ctx, 1, opt)
	} else {
		m.queryRows.Record(ctx, int64(rows), opt)
	}
	m.queryDuration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordPing(ctx context.Context, endpoint string, status string, latency time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("sparql.endpoint", endpoint),
		attribute.String("sparql.ping.status", status),
	)

	m.pingTotal.Add(ctx, 1, opt)
	if latency > 0 {
		m.pingLatency.Record(ctx, float64(latency.Microseconds())/1000, opt)
	}
}

type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordQuery(context.Context, QueryMeta, time.Duration, int, error) {}
func (noopMetrics) RecordPing(context.Context, string, string, time.Duration)         {}
