package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay by Multiplier each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// String returns the strategy name.
func (s BackoffStrategy) String() string {
	switch s {
	case BackoffExponential:
		return "exponential"
	case BackoffLinear:
		return "linear"
	case BackoffConstant:
		return "constant"
	default:
		return "unknown"
	}
}

// Backoff computes the delay to wait before a retry. Both the endpoint pinger
// and the recovery handler use it so blocking and concurrent callers share
// one piece of arithmetic.
type Backoff struct {
	Strategy   BackoffStrategy
	Initial    time.Duration
	Multiplier float64       // exponential only; <= 0 means 2
	Max        time.Duration // 0 means uncapped
	Jitter     bool          // adds up to 25%
}

// Delay returns the wait before retry number attempt (1-based): the delay
// after the first failure is Delay(1).
//
//	exponential: Initial * Multiplier^(attempt-1)
//	linear:      Initial * attempt
//	constant:    Initial
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var delay time.Duration
	switch b.Strategy {
	case BackoffConstant:
		delay = b.Initial

	case BackoffLinear:
		delay = b.Initial * time.Duration(attempt)

	default:
		mult := b.Multiplier
		if mult <= 0 {
			mult = 2.0
		}
		delay = time.Duration(float64(b.Initial) * math.Pow(mult, float64(attempt-1)))
	}

	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}

	if b.Jitter && delay > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay/4) + 1))
	}

	return delay
}

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry. Zero retries
	// immediately; negative values fall back to 100ms.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries. Zero leaves it uncapped.
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// Jitter adds randomness to delays to prevent thundering herd.
	Jitter bool

	// RetryIf determines if an error should trigger a retry.
	// Default: all non-nil errors trigger retry.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry implements retry with backoff.
type Retry struct {
	config  RetryConfig
	backoff Backoff
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay < 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}

	return &Retry{
		config: config,
		backoff: Backoff{
			Strategy:   config.Strategy,
			Initial:    config.InitialDelay,
			Multiplier: config.Multiplier,
			Max:        config.MaxDelay,
			Jitter:     config.Jitter,
		},
	}
}

// Execute runs op until it succeeds, RetryIf rejects the error, or
// MaxAttempts is reached. Every attempt gets the same ctx; there is no
// per-call deadline beyond what the caller put on it.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !r.config.RetryIf(err) {
			return err
		}

		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := r.backoff.Delay(attempt)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}

	return lastErr
}

// Backoff returns the delay calculator used between attempts.
func (r *Retry) Backoff() Backoff {
	return r.backoff
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
