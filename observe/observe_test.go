package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/sparqlops/observe/exporters"
)

func validConfig() Config {
	return Config{
		ServiceName: "sparqlops-test",
		Version:     "0.1.0",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1.0},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: true, Level: "info"},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, ErrMissingServiceName},
		{"unknown tracing exporter", func(c *Config) { c.Tracing.Exporter = "zipkin" }, ErrInvalidTracingExporter},
		{"sample pct above one", func(c *Config) { c.Tracing.SamplePct = 1.5 }, ErrInvalidSamplePct},
		{"negative sample pct", func(c *Config) { c.Tracing.SamplePct = -0.1 }, ErrInvalidSamplePct},
		{"unknown metrics exporter", func(c *Config) { c.Metrics.Exporter = "statsd" }, ErrInvalidMetricsExporter},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"disabled sections are not checked", func(c *Config) {
			c.Tracing = TracingConfig{Exporter: "zipkin"}
			c.Metrics = MetricsConfig{Exporter: "statsd"}
			c.Logging = LoggingConfig{Level: "trace"}
		}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.want == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNewObserver_DisabledNoop(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "sparqlops-test"})
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	if obs.Tracer() == nil || obs.Meter() == nil || obs.Logger() == nil {
		t.Fatal("disabled observer must still hand out usable no-ops")
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNewObserver_Enabled(t *testing.T) {
	ctx := context.Background()
	obs, err := NewObserver(ctx, validConfig())
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}

	mw, err := MiddlewareFromObserver(obs)
	if err != nil {
		t.Fatalf("MiddlewareFromObserver: %v", err)
	}
	rows, err := mw.Wrap(func(ctx context.Context, meta QueryMeta, query string) (int, error) {
		return 3, nil
	})(ctx, QueryMeta{Endpoint: "https://dbpedia.org/sparql", Operation: "select"}, "SELECT * WHERE { ?s ?p ?o } LIMIT 3")
	if err != nil || rows != 3 {
		t.Errorf("wrapped = %d, %v; want 3, nil", rows, err)
	}

	if err := obs.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if err := obs.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestNewObserver_InvalidConfig(t *testing.T) {
	_, err := NewObserver(context.Background(), Config{})
	if !errors.Is(err, ErrMissingServiceName) {
		t.Errorf("NewObserver() error = %v, want ErrMissingServiceName", err)
	}
}

func TestNewObserver_OTLPWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	cfg := validConfig()
	cfg.Tracing.Exporter = "otlp"

	if _, err := NewObserver(context.Background(), cfg); err == nil {
		t.Fatal("expected an error for otlp tracing without an endpoint")
	}
}

func TestMetricsFromObserver_Nil(t *testing.T) {
	if _, err := MetricsFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Errorf("MetricsFromObserver(nil) = %v, want ErrNilObserver", err)
	}
	if _, err := MiddlewareFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Errorf("MiddlewareFromObserver(nil) = %v, want ErrNilObserver", err)
	}
}

func TestNewObserver_ExporterOptions(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	cfg := Config{
		ServiceName: "sparqlops-test",
		Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus"},
	}

	obs, err := NewObserver(ctx, cfg, exporters.WithRegisterer(reg))
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	m, err := MetricsFromObserver(obs)
	if err != nil {
		t.Fatalf("MetricsFromObserver: %v", err)
	}
	m.RecordPing(ctx, "https://dbpedia.org/sparql", "healthy", 120*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("custom registry received no metric families")
	}
}
