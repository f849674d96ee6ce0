package recovery

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/sparqlops/observe"
	"github.com/jonwraymond/sparqlops/resilience"
	"github.com/jonwraymond/sparqlops/sparql"
)

// ExecuteFunc runs query against endpoint. A non-nil error marks the
// attempt as failed.
type ExecuteFunc func(ctx context.Context, query string, endpoint sparql.EndpointInfo) (sparql.QueryResult, error)

// Config configures a Handler.
type Config struct {
	// MaxRetries bounds the backoff phase.
	// Default: 3
	MaxRetries int `mapstructure:"max_retries"`

	// RetryDelay is the base backoff delay.
	// Default: 1s
	RetryDelay time.Duration `mapstructure:"retry_delay"`

	// EnableFallback tries alternative endpoints after retries fail.
	EnableFallback bool `mapstructure:"enable_fallback"`

	// EnableAutoOptimization makes one final attempt with a LIMIT injected
	// into timeout and memory failures.
	EnableAutoOptimization bool `mapstructure:"enable_auto_optimization"`

	// DefaultLimit is the LIMIT injected by the rewrite phase.
	// Default: 1000
	DefaultLimit int `mapstructure:"default_limit"`

	// Rules overrides DefaultRules.
	Rules []Rule `mapstructure:"-"`

	// Logger receives one entry per recovery.
	// Default: observe.NopLogger()
	Logger observe.Logger `mapstructure:"-"`
}

// DefaultConfig enables every phase.
func DefaultConfig() Config {
	return Config{
		MaxRetries:             3,
		RetryDelay:             time.Second,
		EnableFallback:         true,
		EnableAutoOptimization: true,
		DefaultLimit:           DefaultLimit,
	}
}

// Phase names the recovery step that produced the final result.
type Phase string

const (
	PhaseNone     Phase = "none"
	PhaseRetry    Phase = "retry"
	PhaseFallback Phase = "fallback"
	PhaseRewrite  Phase = "rewrite"
)

// RecoveryResult reports what Recover did.
type RecoveryResult struct {
	ID      string
	Success bool

	// Result is the successful result, or the last failed one.
	Result *sparql.QueryResult

	// Attempts counts every call to the execute function.
	Attempts int

	Strategy Strategy
	Phase    Phase

	// Context is the categorization of the fault passed to Recover.
	Context ErrorContext

	FallbackUsed     bool
	FallbackEndpoint string
	RewrittenQuery   string

	// Errors holds one entry per failed attempt.
	Errors []ErrorContext

	RecoveryTime time.Duration
	Metadata     map[string]any
}

// Stats summarizes a handler's activity.
type Stats struct {
	TotalErrors int64
	ByCategory  map[Category]int64
	Recovered   int64
	Unrecovered int64

	// Attempts maps an attempt count to how many recoveries used it.
	Attempts map[int]int64
}

// Handler categorizes faults and runs recoveries. Statistics are per
// handler. It is safe for concurrent use.
type Handler struct {
	config Config
	rules  []Rule
	logger observe.Logger
	sleep  func(context.Context, time.Duration) error

	mu    sync.Mutex
	stats Stats
}

// NewHandler creates a handler. Numeric fields left at zero get their
// defaults; the Enable flags are used as given.
func NewHandler(config Config) *Handler {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = DefaultLimit
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	rules := config.Rules
	if rules == nil {
		rules = DefaultRules
	}

	h := &Handler{
		config: config,
		rules:  rules,
		logger: config.Logger,
		sleep:  resilience.Sleep,
	}
	h.resetLocked()
	return h
}

// Categorize classifies err and counts it in the handler's statistics.
func (h *Handler) Categorize(err error, query, endpoint string) ErrorContext {
	ec := categorize(err, query, endpoint, h.rules)

	h.mu.Lock()
	h.stats.TotalErrors++
	h.stats.ByCategory[ec.Category]++
	h.mu.Unlock()

	return ec
}

// Recover tries to turn the failure err of query on endpoint into a
// success:
//
//  1. retry on endpoint following the category's strategy
//  2. try each alternative in order (EnableFallback)
//  3. run the query once more with a LIMIT injected, for timeout and
//     memory failures only (EnableAutoOptimization)
//
// Non-recoverable categories return at once with zero attempts. Each
// timeout is the caller's to set per call; retries do not share one
// overall deadline.
func (h *Handler) Recover(ctx context.Context, err error, query string, endpoint sparql.EndpointInfo, execute ExecuteFunc, alternatives []sparql.EndpointInfo) RecoveryResult {
	start := time.Now()
	ec := h.Categorize(err, query, endpoint.URL)

	rec := &recovery{
		handler: h,
		execute: execute,
		result: RecoveryResult{
			ID:       uuid.NewString(),
			Strategy: ec.Strategy,
			Phase:    PhaseNone,
			Context:  ec,
			Errors:   []ErrorContext{},
			Metadata: map[string]any{"category": string(ec.Category)},
		},
	}

	switch {
	case execute == nil:
		rec.result.Errors = append(rec.result.Errors, categorize(ErrNilExecute, query, endpoint.URL, h.rules))
	case !ec.Recoverable:
		rec.result.Metadata["reason"] = "not recoverable"
	default:
		rec.run(ctx, ec, query, endpoint, alternatives)
	}

	rec.result.RecoveryTime = time.Since(start)
	h.finish(ctx, &rec.result)
	return rec.result
}

// recovery holds the state of one Recover call.
type recovery struct {
	handler *Handler
	execute ExecuteFunc
	result  RecoveryResult
}

func (r *recovery) run(ctx context.Context, ec ErrorContext, query string, endpoint sparql.EndpointInfo, alternatives []sparql.EndpointInfo) {
	cfg := r.handler.config

	if r.retry(ctx, ec.Strategy, query, endpoint) {
		r.result.Phase = PhaseRetry
		return
	}

	if cfg.EnableFallback {
		for _, alt := range alternatives {
			if ctx.Err() != nil {
				return
			}
			if r.attempt(ctx, query, alt) {
				r.result.Phase = PhaseFallback
				r.result.FallbackUsed = true
				r.result.FallbackEndpoint = alt.URL
				return
			}
		}
	}

	if cfg.EnableAutoOptimization && (ec.Category == CategoryTimeout || ec.Category == CategoryMemory) {
		rewritten, changed := Rewrite(query, cfg.DefaultLimit)
		if !changed || ctx.Err() != nil {
			return
		}
		r.result.RewrittenQuery = rewritten
		if r.attempt(ctx, rewritten, endpoint) {
			r.result.Phase = PhaseRewrite
		}
	}
}

// retry runs the backoff phase and reports success.
func (r *recovery) retry(ctx context.Context, strategy Strategy, query string, endpoint sparql.EndpointInfo) bool {
	cfg := r.handler.config

	var (
		tries   int
		backoff resilience.Backoff
	)
	switch strategy {
	case StrategyImmediate:
		tries = 1
	case StrategyExponential:
		tries = cfg.MaxRetries
		backoff = resilience.Backoff{Strategy: resilience.BackoffExponential, Initial: cfg.RetryDelay, Multiplier: 2}
	case StrategyLinear:
		tries = cfg.MaxRetries
		backoff = resilience.Backoff{Strategy: resilience.BackoffLinear, Initial: cfg.RetryDelay}
	default:
		return false
	}

	for i := 0; i < tries; i++ {
		if backoff.Initial > 0 {
			if err := r.handler.sleep(ctx, backoff.Delay(i+1)); err != nil {
				r.result.Metadata["cancelled"] = err.Error()
				return false
			}
		}
		if r.attempt(ctx, query, endpoint) {
			return true
		}
		if last := r.result.Errors[len(r.result.Errors)-1]; !last.Recoverable {
			return false
		}
	}
	return false
}

// attempt calls execute once, recording a failure in Errors.
func (r *recovery) attempt(ctx context.Context, query string, endpoint sparql.EndpointInfo) bool {
	r.result.Attempts++
	res, err := r.execute(ctx, query, endpoint)
	if err == nil && !res.OK() {
		err = res.Err()
	}
	r.result.Result = &res
	if err == nil {
		r.result.Success = true
		return true
	}
	r.result.Errors = append(r.result.Errors, categorize(err, query, endpoint.URL, r.handler.rules))
	return false
}

func (h *Handler) finish(ctx context.Context, res *RecoveryResult) {
	h.mu.Lock()
	if res.Success {
		h.stats.Recovered++
	} else {
		h.stats.Unrecovered++
	}
	h.stats.Attempts[res.Attempts]++
	h.mu.Unlock()

	fields := []observe.Field{
		{Key: "recovery_id", Value: res.ID},
		{Key: "category", Value: string(res.Context.Category)},
		{Key: "strategy", Value: string(res.Strategy)},
		{Key: "attempts", Value: res.Attempts},
		{Key: "phase", Value: string(res.Phase)},
	}
	if res.Success {
		h.logger.Info(ctx, "sparql query recovered", fields...)
		return
	}
	h.logger.Warn(ctx, "sparql query not recovered", fields...)
}

// Stats returns a copy of the handler's statistics.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := h.stats
	out.ByCategory = maps.Clone(h.stats.ByCategory)
	out.Attempts = maps.Clone(h.stats.Attempts)
	return out
}

// ResetStats zeroes the statistics.
func (h *Handler) ResetStats() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resetLocked()
}

func (h *Handler) resetLocked() {
	h.stats = Stats{
		ByCategory: make(map[Category]int64),
		Attempts:   make(map[int]int64),
	}
}

// SuccessRate is Recovered / (Recovered + Unrecovered) as a percentage.
func (s Stats) SuccessRate() float64 {
	total := s.Recovered + s.Unrecovered
	if total == 0 {
		return 0
	}
	return float64(s.Recovered) / float64(total) * 100
}

// IsRecoverable is a shortcut for Categorize(err, "", "").Recoverable.
func IsRecoverable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return Categorize(err, "", "").Recoverable
}
