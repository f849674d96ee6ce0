package secret

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("SPARQL_USER", "reader")

	got, err := ExpandEnvStrict("user=${SPARQL_USER} plain=$SPARQL_USER")
	if err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}
	if got != "user=reader plain=reader" {
		t.Errorf("ExpandEnvStrict() = %q", got)
	}
}

func TestExpandEnvStrict_MissingVarsListed(t *testing.T) {
	t.Setenv("PRESENT", "ok")

	_, err := ExpandEnvStrict("${PRESENT} ${ZZ_MISSING} ${AA_MISSING} ${ZZ_MISSING}")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("error = %v, want ErrMissingEnv", err)
	}
	if !strings.HasSuffix(err.Error(), "AA_MISSING, ZZ_MISSING") {
		t.Errorf("error = %q, want sorted unique names", err)
	}
}

func TestExpandEnvStrict_DollarEscape(t *testing.T) {
	t.Setenv("X", "y")

	got, err := ExpandEnvStrict("pa$$word-${X}")
	if err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}
	if got != "pa$word-y" {
		t.Errorf("ExpandEnvStrict() = %q, want %q", got, "pa$word-y")
	}
}
