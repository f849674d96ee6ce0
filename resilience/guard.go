package resilience

import (
	"context"
)

// Guard composes the admission patterns wrapped around one outbound request:
// rate limiter, then bulkhead, then the per-key circuit breaker. Retries are
// not part of a Guard; callers that want them layer a Retry on top.
type Guard struct {
	rateLimiter *RateLimiter
	bulkhead    *Bulkhead
	breakers    *Breakers
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// NewGuard creates a Guard. With no options it runs op directly.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithRateLimiter adds token bucket admission.
func WithRateLimiter(rl *RateLimiter) GuardOption {
	return func(g *Guard) {
		g.rateLimiter = rl
	}
}

// WithBulkhead caps concurrent requests.
func WithBulkhead(b *Bulkhead) GuardOption {
	return func(g *Guard) {
		g.bulkhead = b
	}
}

// WithBreakers adds a circuit breaker per key.
func WithBreakers(b *Breakers) GuardOption {
	return func(g *Guard) {
		g.breakers = b
	}
}

// Breaker returns the circuit breaker for key, or nil if the guard has none.
func (g *Guard) Breaker(key string) *CircuitBreaker {
	if g == nil || g.breakers == nil {
		return nil
	}
	return g.breakers.Get(key)
}

// Do runs op for the endpoint identified by key through every configured
// pattern. The error from op is returned unchanged.
//
// Order (outermost first):
//  1. Rate limiter - waits for a token
//  2. Bulkhead - waits for a slot
//  3. Circuit breaker - rejects when the endpoint's circuit is open
func (g *Guard) Do(ctx context.Context, key string, op func(context.Context) error) error {
	if g == nil {
		return op(ctx)
	}

	execute := op

	if cb := g.Breaker(key); cb != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return cb.Execute(ctx, inner)
		}
	}

	if g.bulkhead != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return g.bulkhead.Execute(ctx, inner)
		}
	}

	if g.rateLimiter != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return g.rateLimiter.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}
