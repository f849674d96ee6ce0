package observe

import (
	"bytes"
	"context"
	"sync"
	"testing"
)

func TestLogger_QueryFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).With(QueryMeta{
		ID:        "exec-7",
		Operation: "select",
		Endpoint:  "https://dbpedia.org/sparql",
		Name:      "DBpedia",
	})

	logger.Info(context.Background(), "hello", Field{Key: "rows", Value: 3})

	lines := logLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines", len(lines))
	}
	entry := lines[0]
	for k, want := range map[string]any{
		"msg":                  "hello",
		"level":                "info",
		"sparql.endpoint":      "https://dbpedia.org/sparql",
		"sparql.operation":     "select",
		"sparql.endpoint.name": "DBpedia",
		"sparql.execution_id":  "exec-7",
		"rows":                 float64(3),
	} {
		if entry[k] != want {
			t.Errorf("%s = %v, want %v", k, entry[k], want)
		}
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "d")
	logger.Info(ctx, "i")
	logger.Warn(ctx, "w")
	logger.Error(ctx, "e")

	lines := logLines(t, &buf)
	if len(lines) != 2 || lines[0]["msg"] != "w" || lines[1]["msg"] != "e" {
		t.Errorf("lines = %v", lines)
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "auth",
		Field{Key: "password", Value: "hunter2"},
		Field{Key: "token", Value: "eyJhbGciOi"},
		Field{Key: "authorization", Value: "Basic cmVhZGVyOnB3"},
		Field{Key: "user", Value: "reader"},
	)

	entry := logLines(t, &buf)[0]
	for _, k := range []string{"password", "token", "authorization"} {
		if entry[k] != "[REDACTED]" {
			t.Errorf("%s = %v, want [REDACTED]", k, entry[k])
		}
	}
	if entry["user"] != "reader" {
		t.Errorf("user = %v", entry["user"])
	}
}

func TestLogger_WithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithWriter("info", &buf)
	_ = parent.With(QueryMeta{Endpoint: "https://dbpedia.org/sparql"})

	parent.Info(context.Background(), "plain")

	if _, ok := logLines(t, &buf)[0]["sparql.endpoint"]; ok {
		t.Error("parent logger picked up child attributes")
	}
}

func TestLogger_DerivedLoggersShareWriter(t *testing.T) {
	var buf bytes.Buffer
	root := NewLoggerWithWriter("info", &buf)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := root.With(QueryMeta{Endpoint: "https://example.org/sparql"})
			for j := 0; j < 10; j++ {
				l.Info(ctx, "concurrent")
			}
		}()
	}
	wg.Wait()

	if got := len(logLines(t, &buf)); got != 200 {
		t.Errorf("got %d intact lines, want 200", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug": LevelDebug,
		"INFO":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"bogus": LevelInfo,
		"":      LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if LevelWarn.String() != "warn" {
		t.Errorf("LevelWarn.String() = %q", LevelWarn.String())
	}
}
