package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiterConfig configures the token bucket.
type RateLimiterConfig struct {
	// Rate is the number of tokens added per second. Must be > 0.
	Rate float64

	// Burst is the bucket capacity. Must be >= 1.
	Burst int
}

// RateLimiter is a token bucket admitting at most Rate operations per second
// with bursts up to Burst. Concurrent callers are serialized; no ordering
// between waiters is guaranteed.
type RateLimiter struct {
	rate  float64
	burst float64

	mu          sync.Mutex
	tokens      float64
	lastRefresh time.Time

	// now and sleep are swapped out in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a full bucket. It fails with ErrInvalidConfig when
// Rate <= 0 or Burst < 1.
func NewRateLimiter(config RateLimiterConfig) (*RateLimiter, error) {
	if config.Rate <= 0 {
		return nil, fmt.Errorf("%w: rate must be positive, got %v", ErrInvalidConfig, config.Rate)
	}
	if config.Burst < 1 {
		return nil, fmt.Errorf("%w: burst must be at least 1, got %d", ErrInvalidConfig, config.Burst)
	}

	rl := &RateLimiter{
		rate:   config.Rate,
		burst:  float64(config.Burst),
		tokens: float64(config.Burst),
		now:    time.Now,
		sleep:  Sleep,
	}
	rl.lastRefresh = rl.now()
	return rl, nil
}

// Acquire takes one token, suspending for (1-tokens)/rate whenever the bucket
// is short and re-checking after each suspension. It returns ctx.Err() if the
// context ends first.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rl.mu.Lock()
		rl.refillLocked()
		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		if err := rl.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Allow reports whether one token could be taken without waiting.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN takes n tokens if they are all available.
func (rl *RateLimiter) AllowN(n int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()

	if rl.tokens >= float64(n) {
		rl.tokens -= float64(n)
		return true
	}

	return false
}

// Execute acquires a token and runs op.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := rl.Acquire(ctx); err != nil {
		return err
	}
	return op(ctx)
}

func (rl *RateLimiter) refillLocked() {
	now := rl.now()
	elapsed := now.Sub(rl.lastRefresh)
	rl.lastRefresh = now
	if elapsed <= 0 {
		return
	}

	rl.tokens += elapsed.Seconds() * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}

// Rate returns the refill rate in tokens per second.
func (rl *RateLimiter) Rate() float64 {
	return rl.rate
}

// Burst returns the bucket capacity.
func (rl *RateLimiter) Burst() int {
	return int(rl.burst)
}

// Reset refills the bucket to capacity.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = rl.burst
	rl.lastRefresh = rl.now()
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
