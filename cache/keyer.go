package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Request identifies one cacheable query.
type Request struct {
	Endpoint string
	Format   string
	Query    string

	// Headers that change the answer (e.g. a default-graph hint). They are
	// part of the key; credentials must not be passed here.
	Headers map[string]string
}

// Keyer generates deterministic cache keys for queries.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(req Request) (string, error)
}

// DefaultKeyer generates SHA-256 based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
// Format: sparql:<format>:<hash>
// where hash is the first 16 hex characters of SHA-256 over the endpoint,
// the whitespace-normalized query and the sorted headers. An empty format
// is keyed as json.
func (k *DefaultKeyer) Key(req Request) (string, error) {
	if strings.TrimSpace(req.Endpoint) == "" {
		return "", fmt.Errorf("%w: empty endpoint", ErrInvalidKey)
	}
	query := NormalizeQuery(req.Query)
	if query == "" {
		return "", fmt.Errorf("%w: empty query", ErrInvalidKey)
	}
	format := strings.ToLower(req.Format)
	if format == "" {
		format = "json"
	}

	h := sha256.New()
	h.Write([]byte(req.Endpoint))
	h.Write([]byte{0})
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write(canonicalHeaders(req.Headers))
	sum := h.Sum(nil)

	return fmt.Sprintf("sparql:%s:%s", format, hex.EncodeToString(sum[:8])), nil
}

// NormalizeQuery collapses runs of whitespace so formatting differences do
// not split the cache.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

func canonicalHeaders(headers map[string]string) []byte {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, strings.ToLower(k))
	}
	sort.Strings(keys)

	lower := make(map[string]string, len(headers))
	for k, v := range headers {
		lower[strings.ToLower(k)] = v
	}

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(lower[k])
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

var _ Keyer = (*DefaultKeyer)(nil)
