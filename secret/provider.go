package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider resolves secrets by reference.
//
// Implementations must be safe for concurrent use and must never log the
// values they return.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// EnvProvider resolves references as environment variable names.
type EnvProvider struct {
	// Prefix is prepended to every reference, e.g. "SPARQLOPS_SECRET_".
	Prefix string
}

// Name implements Provider.
func (p *EnvProvider) Name() string { return "env" }

// Resolve implements Provider.
func (p *EnvProvider) Resolve(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := p.Prefix + ref
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrNotFound, name)
	}
	return v, nil
}

// Close implements Provider.
func (p *EnvProvider) Close() error { return nil }

// FileProvider resolves references as file names below Dir.
type FileProvider struct {
	Dir string
}

// Name implements Provider.
func (p *FileProvider) Name() string { return "file" }

// Resolve implements Provider. References may not escape Dir.
func (p *FileProvider) Resolve(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !filepath.IsLocal(ref) {
		return "", fmt.Errorf("%w: %q escapes secret directory", ErrInvalidRef, ref)
	}
	data, err := os.ReadFile(filepath.Join(p.Dir, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: file %s", ErrNotFound, ref)
		}
		return "", err
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// Close implements Provider.
func (p *FileProvider) Close() error { return nil }
