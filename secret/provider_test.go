package secret

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvProvider(t *testing.T) {
	t.Setenv("SPARQLOPS_SECRET_DBPEDIA", "s3cret")
	p := &EnvProvider{Prefix: "SPARQLOPS_SECRET_"}

	got, err := p.Resolve(context.Background(), "DBPEDIA")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "s3cret" {
		t.Errorf("Resolve() = %q", got)
	}

	if _, err := p.Resolve(context.Background(), "MISSING_XYZ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing var error = %v, want ErrNotFound", err)
	}
}

func TestEnvProvider_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := (&EnvProvider{}).Resolve(ctx, "HOME"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "wikidata-token"), []byte("tok-123\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p := &FileProvider{Dir: dir}

	got, err := p.Resolve(context.Background(), "wikidata-token")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "tok-123" {
		t.Errorf("Resolve() = %q, want trailing newline trimmed", got)
	}

	if _, err := p.Resolve(context.Background(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("absent file error = %v, want ErrNotFound", err)
	}
	if _, err := p.Resolve(context.Background(), "../etc/passwd"); !errors.Is(err, ErrInvalidRef) {
		t.Errorf("escaping ref error = %v, want ErrInvalidRef", err)
	}
}
