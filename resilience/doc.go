// Package resilience provides the admission and retry primitives used when
// talking to remote SPARQL endpoints.
//
// # Patterns
//
//   - Rate Limiter: a token bucket. Acquire blocks until a token is
//     available; construction rejects a non-positive rate or a burst below one.
//
//   - Backoff: the delay arithmetic (exponential, linear, constant) shared by
//     the endpoint pinger, Retry and the recovery handler.
//
//   - Retry: re-runs an operation with Backoff between attempts.
//
//   - Circuit Breaker: stops sending requests to an endpoint after repeated
//     failures. Breakers keeps one per endpoint URL.
//
//   - Bulkhead: caps in-flight requests.
//
//   - Timeout: bounds operations that do not watch their context.
//
// # Usage
//
//	rl, err := resilience.NewRateLimiter(resilience.RateLimiterConfig{
//	    Rate:  5, // tokens per second
//	    Burst: 10,
//	})
//	if err != nil {
//	    return err // resilience.ErrInvalidConfig
//	}
//
//	guard := resilience.NewGuard(
//	    resilience.WithRateLimiter(rl),
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 20})),
//	    resilience.WithBreakers(resilience.NewBreakers(resilience.CircuitBreakerConfig{MaxFailures: 5})),
//	)
//
//	err = guard.Do(ctx, endpointURL, func(ctx context.Context) error {
//	    return roundTrip(ctx)
//	})
package resilience
