package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*sdkmetric.ManualReader, *metricsImpl) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("newMetrics: %v", err)
	}
	return reader, m
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: got %T, want Sum[int64]", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

var dbpediaMeta = QueryMeta{Endpoint: "https://dbpedia.org/sparql", Operation: "select"}

func TestMetrics_QueryCounters(t *testing.T) {
	reader, m := newTestMetrics(t)
	ctx := context.Background()

	m.RecordQuery(ctx, dbpediaMeta, 120*time.Millisecond, 10, nil)
	m.RecordQuery(ctx, dbpediaMeta, 80*time.Millisecond, 0, errors.New("sparql: timeout"))

	rm := collect(t, reader)
	if got := sumValue(t, rm, "sparql.query.total"); got != 2 {
		t.Errorf("sparql.query.total = %d, want 2", got)
	}
	if got := sumValue(t, rm, "sparql.query.errors"); got != 1 {
		t.Errorf("sparql.query.errors = %d, want 1", got)
	}
}

func TestMetrics_QueryDurationAndRows(t *testing.T) {
	reader, m := newTestMetrics(t)
	m.RecordQuery(context.Background(), dbpediaMeta, 250*time.Millisecond, 42, nil)

	rm := collect(t, reader)

	dur := findMetric(rm, "sparql.query.duration_ms")
	if dur == nil {
		t.Fatal("sparql.query.duration_ms not found")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 {
		t.Fatalf("duration data = %#v", dur.Data)
	}
	if hist.DataPoints[0].Sum != 250 {
		t.Errorf("duration sum = %v, want 250", hist.DataPoints[0].Sum)
	}

	rows := findMetric(rm, "sparql.query.rows")
	if rows == nil {
		t.Fatal("sparql.query.rows not found")
	}
	rh := rows.Data.(metricdata.Histogram[int64])
	if rh.DataPoints[0].Sum != 42 {
		t.Errorf("rows sum = %v, want 42", rh.DataPoints[0].Sum)
	}
}

func TestMetrics_QueryAttributes(t *testing.T) {
	reader, m := newTestMetrics(t)
	meta := QueryMeta{Endpoint: "https://query.wikidata.org/sparql", Operation: "ask", Name: "Wikidata"}
	m.RecordQuery(context.Background(), meta, time.Millisecond, 1, nil)

	rm := collect(t, reader)
	sum := findMetric(rm, "sparql.query.total").Data.(metricdata.Sum[int64])
	attrs := sum.DataPoints[0].Attributes

	for key, want := range map[attribute.Key]string{
		"sparql.endpoint":      "https://query.wikidata.org/sparql",
		"sparql.operation":     "ask",
		"sparql.endpoint.name": "Wikidata",
	} {
		v, ok := attrs.Value(key)
		if !ok || v.AsString() != want {
			t.Errorf("%s = %v, want %q", key, v.AsString(), want)
		}
	}
}

func TestMetrics_RecordPing(t *testing.T) {
	reader, m := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPing(ctx, "https://dbpedia.org/sparql", "healthy", 300*time.Millisecond)
	m.RecordPing(ctx, "https://dbpedia.org/sparql", "unreachable", 0)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "sparql.ping.total"); got != 2 {
		t.Errorf("sparql.ping.total = %d, want 2", got)
	}

	lat := findMetric(rm, "sparql.ping.latency_ms")
	if lat == nil {
		t.Fatal("sparql.ping.latency_ms not found")
	}
	hist := lat.Data.(metricdata.Histogram[float64])
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 1 {
		t.Errorf("latency samples = %d, want 1 (probes without latency are skipped)", count)
	}
}

func TestMetrics_Concurrent(t *testing.T) {
	reader, m := newTestMetrics(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordQuery(ctx, dbpediaMeta, time.Millisecond, 1, nil)
			m.RecordPing(ctx, dbpediaMeta.Endpoint, "healthy", time.Millisecond)
		}()
	}
	wg.Wait()

	rm := collect(t, reader)
	if got := sumValue(t, rm, "sparql.query.total"); got != 50 {
		t.Errorf("sparql.query.total = %d, want 50", got)
	}
	if got := sumValue(t, rm, "sparql.ping.total"); got != 50 {
		t.Errorf("sparql.ping.total = %d, want 50", got)
	}
}
