package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonwraymond/sparqlops/auth"
	"github.com/jonwraymond/sparqlops/cache"
	"github.com/jonwraymond/sparqlops/observe"
	"github.com/jonwraymond/sparqlops/pool"
	"github.com/jonwraymond/sparqlops/resilience"
	"github.com/jonwraymond/sparqlops/sparql"
)

// Defaults applied by New.
const (
	DefaultTimeout          = 30 * time.Second
	DefaultMaxGETLength     = 2048
	DefaultMaxResponseBytes = 64 << 20
)

// Config configures an Executor.
type Config struct {
	// DefaultTimeout bounds a query when neither the call nor the endpoint
	// sets a timeout.
	// Default: 30s
	DefaultTimeout time.Duration

	// DefaultFormat is requested when Options.Format is empty.
	// Default: sparql.FormatJSON
	DefaultFormat sparql.ResultFormat

	// MaxGETLength is the longest encoded request URL sent with GET.
	// Longer queries are sent as a POST form.
	// Default: 2048
	MaxGETLength int

	// MaxResponseBytes caps how much of a response body is read.
	// Default: 64 MiB
	MaxResponseBytes int64

	// Headers are added to every request before per-call headers.
	Headers map[string]string

	// Pool supplies HTTP clients. The executor closes a pool it created
	// itself; a caller-supplied pool is left open.
	// Default: pool.New(pool.Config{})
	Pool *pool.Pool

	// Guard wraps every HTTP exchange. When nil, New builds one from
	// RateLimiter, MaxConcurrent and Breaker.
	Guard *resilience.Guard

	// RateLimiter, when set, admits every HTTP exchange across all
	// endpoints. Per-endpoint politeness comes from EndpointInfo.RateLimit.
	RateLimiter *resilience.RateLimiter

	// MaxConcurrent caps in-flight requests across all endpoints.
	// Zero disables the bulkhead.
	MaxConcurrent int

	// Breaker configures the per-endpoint circuit. IsFailure defaults to
	// BreakerFailure.
	Breaker resilience.CircuitBreakerConfig

	// DisableBreaker turns off per-endpoint circuit breaking.
	DisableBreaker bool

	// Cache, when set, stores successful non-update results.
	Cache       cache.Cache
	CachePolicy cache.Policy

	// Observe wraps every execution with a span, metrics and a log line.
	Observe *observe.Middleware

	// Logger receives executor-level events such as open circuits.
	// Default: observe.NopLogger()
	Logger observe.Logger
}

// Options are per-call settings.
type Options struct {
	// Format is the requested result format.
	Format sparql.ResultFormat

	// Timeout overrides the endpoint and executor timeouts when positive.
	Timeout time.Duration

	// Stream decodes the body incrementally. Only JSON can be streamed.
	Stream bool

	// Credentials are applied to the request. They are required when the
	// endpoint sets AuthRequired.
	Credentials *auth.Credentials

	// Headers are added after Config.Headers.
	Headers map[string]string
}

// Executor runs queries. It is safe for concurrent use.
type Executor struct {
	config   Config
	pool     *pool.Pool
	ownsPool bool
	guard    *resilience.Guard
	cache    *cache.Middleware
	logger   observe.Logger

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter

	stats statsCollector
}

// New creates an executor.
func New(config Config) *Executor {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultTimeout
	}
	if config.DefaultFormat == "" {
		config.DefaultFormat = sparql.FormatJSON
	}
	if config.MaxGETLength <= 0 {
		config.MaxGETLength = DefaultMaxGETLength
	}
	if config.MaxResponseBytes <= 0 {
		config.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}

	e := &Executor{
		config:   config,
		pool:     config.Pool,
		guard:    config.Guard,
		logger:   config.Logger,
		limiters: make(map[string]*rate.Limiter),
	}
	if e.pool == nil {
		e.pool = pool.New(pool.Config{})
		e.ownsPool = true
	}
	if e.guard == nil {
		e.guard = e.newGuard()
	}
	if config.Cache != nil {
		e.cache = cache.NewMiddleware(config.Cache, nil, config.CachePolicy, nil)
	}
	e.stats.reset()
	return e
}

func (e *Executor) newGuard() *resilience.Guard {
	var opts []resilience.GuardOption
	if e.config.RateLimiter != nil {
		opts = append(opts, resilience.WithRateLimiter(e.config.RateLimiter))
	}
	if e.config.MaxConcurrent > 0 {
		opts = append(opts, resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: e.config.MaxConcurrent,
			MaxWait:       -1,
		})))
	}
	if !e.config.DisableBreaker {
		bc := e.config.Breaker
		if bc.IsFailure == nil {
			bc.IsFailure = BreakerFailure
		}
		if bc.OnStateChange == nil {
			logger := e.logger
			bc.OnStateChange = func(name string, from, to resilience.State) {
				logger.Warn(context.Background(), "endpoint circuit changed",
					observe.Field{Key: "endpoint", Value: name},
					observe.Field{Key: "from", Value: from.String()},
					observe.Field{Key: "to", Value: to.String()},
				)
			}
		}
		opts = append(opts, resilience.WithBreakers(resilience.NewBreakers(bc)))
	}
	return resilience.NewGuard(opts...)
}

// BreakerFailure reports whether err says something about the endpoint's
// availability. Query-level faults such as syntax or auth errors do not
// trip a circuit.
func BreakerFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrResponseTooLarge) {
		return false
	}
	switch sparql.KindOf(err) {
	case sparql.KindTimeout, sparql.KindUnavailable, sparql.KindConnection, sparql.KindTLS, sparql.KindUnknown:
		return true
	default:
		return false
	}
}

// Pool returns the pool the executor draws clients from.
func (e *Executor) Pool() *pool.Pool {
	return e.pool
}

// Guard returns the guard wrapped around each exchange.
func (e *Executor) Guard() *resilience.Guard {
	return e.guard
}

// CacheStats returns result cache counters; zero when caching is off.
func (e *Executor) CacheStats() cache.Stats {
	if e.cache == nil {
		return cache.Stats{}
	}
	return e.cache.Stats()
}

// Close releases pooled connections owned by the executor.
func (e *Executor) Close() error {
	if e.ownsPool {
		return e.pool.Close()
	}
	return nil
}

// Execute runs query against endpoint. It never returns an error; faults
// are reported through the result's Status, ErrorKind and ErrorMessage.
func (e *Executor) Execute(ctx context.Context, query string, endpoint sparql.EndpointInfo, opts Options) sparql.QueryResult {
	m := sparql.StartMetrics(endpoint.URL)
	format := opts.Format
	if format == "" {
		format = e.config.DefaultFormat
	}

	var result sparql.QueryResult
	if err := validate(query, endpoint, format); err != nil {
		result = sparql.NewFailure(err, m.Elapsed())
	} else {
		result = e.cached(ctx, m, query, endpoint, format, opts)
	}

	m.ResultCount = result.RowCount
	result = m.Fold(result)
	e.stats.record(endpoint.URL, result)
	return result
}

func validate(query string, endpoint sparql.EndpointInfo, format sparql.ResultFormat) error {
	if strings.TrimSpace(query) == "" {
		return sparql.NewFault(sparql.KindSyntax, "", sparql.ErrEmptyQuery)
	}
	if strings.TrimSpace(endpoint.URL) == "" {
		return sparql.NewFault(sparql.KindSyntax, "endpoint URL is required", nil)
	}
	if !format.Valid() {
		return sparql.NewFault(sparql.KindSyntax, "", fmt.Errorf("%w: %s", sparql.ErrUnsupportedFormat, format))
	}
	return nil
}

func (e *Executor) cached(ctx context.Context, m *sparql.ExecutionMetrics, query string, endpoint sparql.EndpointInfo, format sparql.ResultFormat, opts Options) sparql.QueryResult {
	if e.cache == nil || opts.Stream {
		return e.observed(ctx, m, query, endpoint, format, opts)
	}

	req := cache.Request{
		Endpoint: endpoint.URL,
		Format:   string(format),
		Query:    query,
		Headers:  e.cacheHeaders(opts),
	}
	result, hit := e.cache.Execute(ctx, req, func(ctx context.Context, _ cache.Request) sparql.QueryResult {
		return e.observed(ctx, m, query, endpoint, format, opts)
	})
	if hit {
		e.stats.cacheHit()
	}
	return result
}

// cacheHeaders keys cached answers by request headers and by the identity
// the request is made as.
func (e *Executor) cacheHeaders(opts Options) map[string]string {
	h := make(map[string]string, len(e.config.Headers)+len(opts.Headers)+1)
	for k, v := range e.config.Headers {
		h[k] = v
	}
	for k, v := range opts.Headers {
		h[k] = v
	}
	if !opts.Credentials.Empty() {
		h["x-sparqlops-principal"] = opts.Credentials.Principal()
	}
	return h
}

func (e *Executor) observed(ctx context.Context, m *sparql.ExecutionMetrics, query string, endpoint sparql.EndpointInfo, format sparql.ResultFormat, opts Options) sparql.QueryResult {
	if e.config.Observe == nil {
		return e.execute(ctx, m, query, endpoint, format, opts)
	}

	meta := observe.QueryMeta{
		ID:        m.ID,
		Operation: strings.ToLower(sparql.Analyze(query).Form),
		Endpoint:  endpoint.URL,
		Name:      endpoint.Name,
		Format:    string(format),
	}

	var result sparql.QueryResult
	run := e.config.Observe.Wrap(func(ctx context.Context, _ observe.QueryMeta, _ string) (int, error) {
		result = e.execute(ctx, m, query, endpoint, format, opts)
		return result.RowCount, result.Err()
	})
	_, _ = run(ctx, meta, query)
	return result
}

// Timeout returns the budget for one call: opts.Timeout, else the
// endpoint's timeout, else the executor default.
func (e *Executor) Timeout(endpoint sparql.EndpointInfo, opts Options) time.Duration {
	switch {
	case opts.Timeout > 0:
		return opts.Timeout
	case endpoint.Timeout > 0:
		return endpoint.Timeout
	default:
		return e.config.DefaultTimeout
	}
}

func (e *Executor) execute(ctx context.Context, m *sparql.ExecutionMetrics, query string, endpoint sparql.EndpointInfo, format sparql.ResultFormat, opts Options) sparql.QueryResult {
	timeout := e.Timeout(endpoint, opts)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		body []byte
		resp *response
	)
	err := e.admit(ctx, endpoint)
	if err == nil {
		err = e.guard.Do(ctx, endpoint.URL, func(ctx context.Context) error {
			var rerr error
			resp, rerr = e.exchange(ctx, m, query, endpoint, format, opts)
			if rerr != nil || opts.Stream {
				return rerr
			}
			defer resp.body.Close()
			body, rerr = readCapped(resp.body, e.config.MaxResponseBytes)
			m.NetworkTime = time.Since(resp.sent)
			return rerr
		})
	}
	if err != nil {
		return sparql.NewFailure(e.fault(ctx, err, timeout, endpoint), m.Elapsed())
	}

	if opts.Stream {
		return e.decodeStream(ctx, m, resp, timeout, endpoint)
	}
	return e.decode(m, resp, body)
}

// admit waits on the endpoint's politeness limiter.
func (e *Executor) admit(ctx context.Context, endpoint sparql.EndpointInfo) error {
	lim := e.limiter(endpoint)
	if lim == nil {
		return nil
	}
	if err := lim.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return sparql.NewFault(sparql.KindRateLimit, "politeness delay exceeds the query deadline", err)
	}
	return nil
}

func (e *Executor) limiter(endpoint sparql.EndpointInfo) *rate.Limiter {
	if endpoint.RateLimit <= 0 {
		return nil
	}
	limit := rate.Limit(endpoint.RateLimit)
	burst := int(math.Max(1, math.Ceil(endpoint.RateLimit)))

	e.limitersMu.Lock()
	defer e.limitersMu.Unlock()

	lim, ok := e.limiters[endpoint.URL]
	if !ok {
		lim = rate.NewLimiter(limit, burst)
		e.limiters[endpoint.URL] = lim
		return lim
	}
	if lim.Limit() != limit {
		lim.SetLimit(limit)
		lim.SetBurst(burst)
	}
	return lim
}

// fault turns err into a typed fault. Deadline expiry always reads as a
// timeout naming the budget.
func (e *Executor) fault(ctx context.Context, err error, timeout time.Duration, endpoint sparql.EndpointInfo) error {
	switch {
	case errors.Is(err, ErrResponseTooLarge):
		return sparql.NewFault(sparql.KindTooLarge, fmt.Sprintf("response exceeds %d bytes", e.config.MaxResponseBytes), err)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return sparql.NewFault(sparql.KindUnavailable, "circuit open for "+endpoint.DisplayName(), err)
	case errors.Is(err, resilience.ErrBulkheadFull):
		return sparql.NewFault(sparql.KindUnavailable, "too many concurrent queries", err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded), sparql.KindOf(err) == sparql.KindTimeout:
		var f *sparql.Fault
		if errors.As(err, &f) && f.StatusCode != 0 {
			return err
		}
		return sparql.NewFault(sparql.KindTimeout, fmt.Sprintf("query timeout after %s", timeout), err)
	case errors.Is(err, context.Canceled):
		return sparql.NewFault(sparql.KindUnknown, "query canceled", err)
	}
	return err
}
