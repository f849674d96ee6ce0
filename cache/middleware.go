package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/jonwraymond/sparqlops/sparql"
)

// ExecuteFunc runs one query.
type ExecuteFunc func(ctx context.Context, req Request) sparql.QueryResult

// SkipRule reports whether req must bypass the cache.
type SkipRule func(req Request) bool

// DefaultSkipRule bypasses the cache for SPARQL Update requests.
func DefaultSkipRule(req Request) bool {
	return sparql.Analyze(req.Query).IsUpdate()
}

// Stats counts middleware outcomes.
type Stats struct {
	Hits    int64
	Misses  int64
	Skipped int64
}

// Middleware wraps query execution with caching.
type Middleware struct {
	cache    Cache
	keyer    Keyer
	policy   Policy
	skipRule SkipRule

	hits, misses, skipped atomic.Int64
}

// NewMiddleware creates a new cache middleware.
// If keyer is nil, DefaultKeyer is used. If skipRule is nil,
// DefaultSkipRule is used.
func NewMiddleware(cache Cache, keyer Keyer, policy Policy, skipRule SkipRule) *Middleware {
	if keyer == nil {
		keyer = NewDefaultKeyer()
	}
	if skipRule == nil {
		skipRule = DefaultSkipRule
	}
	return &Middleware{
		cache:    cache,
		keyer:    keyer,
		policy:   policy,
		skipRule: skipRule,
	}
}

// Execute returns a cached result for req when one exists, else runs fn.
// Only successful results are stored. hit reports whether fn was skipped;
// cached results carry Metadata["cache_hit"] = true.
func (m *Middleware) Execute(ctx context.Context, req Request, fn ExecuteFunc) (result sparql.QueryResult, hit bool) {
	if m.cache == nil || !m.policy.ShouldCache() || m.skipRule(req) {
		m.skipped.Add(1)
		return fn(ctx, req), false
	}

	key, err := m.keyer.Key(req)
	if err != nil {
		m.skipped.Add(1)
		return fn(ctx, req), false
	}

	if raw, ok := m.cache.Get(ctx, key); ok {
		var cached sparql.QueryResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			m.hits.Add(1)
			if cached.Metadata == nil {
				cached.Metadata = map[string]any{}
			}
			cached.Metadata["cache_hit"] = true
			return cached, true
		}
		_ = m.cache.Delete(ctx, key)
	}

	m.misses.Add(1)
	result = fn(ctx, req)
	if !result.OK() {
		return result, false
	}

	if raw, err := json.Marshal(result); err == nil {
		_ = m.cache.Set(ctx, key, raw, m.policy.EffectiveTTL(0))
	}
	return result, false
}

// Stats returns the hit, miss and skip counts.
func (m *Middleware) Stats() Stats {
	return Stats{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Skipped: m.skipped.Load(),
	}
}
