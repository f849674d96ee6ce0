package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/sparqlops/cache"
	"github.com/jonwraymond/sparqlops/executor"
	"github.com/jonwraymond/sparqlops/health"
	"github.com/jonwraymond/sparqlops/observe"
	"github.com/jonwraymond/sparqlops/pool"
	"github.com/jonwraymond/sparqlops/recovery"
	"github.com/jonwraymond/sparqlops/sparql"
)

// Config is the complete sparqlops configuration.
type Config struct {
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Federation FederationConfig `mapstructure:"federation"`
	Pinger     PingerConfig     `mapstructure:"pinger"`

	// RateLimit is the token bucket shared by every probe.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	Recovery recovery.Config `mapstructure:"recovery"`
	Pool     pool.Config     `mapstructure:"pool"`
	Cache    CacheConfig     `mapstructure:"cache"`
	Observe  observe.Config  `mapstructure:"observe"`
	Secrets  SecretsConfig   `mapstructure:"secrets"`

	Endpoints []EndpointConfig `mapstructure:"endpoints"`
}

// ExecutorConfig holds the serializable part of executor.Config.
type ExecutorConfig struct {
	// Default: 30s
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`

	// Default: json
	DefaultFormat string `mapstructure:"default_format"`

	// Default: 2048
	MaxGETLength int `mapstructure:"max_get_length"`

	// Default: 64 MiB
	MaxResponseBytes int64 `mapstructure:"max_response_bytes"`

	// MaxConcurrent caps in-flight requests; zero is unbounded.
	MaxConcurrent int `mapstructure:"max_concurrent"`

	// RateLimit admits queries to all endpoints through one token bucket.
	// A zero rate disables it.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	Headers map[string]string `mapstructure:"headers"`
	Breaker BreakerConfig     `mapstructure:"breaker"`
}

// BreakerConfig configures per-endpoint circuit breaking.
type BreakerConfig struct {
	Disabled bool `mapstructure:"disabled"`

	// Default: 5
	MaxFailures int `mapstructure:"max_failures"`

	// Default: 30s
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`

	// Default: 1
	HalfOpenMaxRequests int `mapstructure:"half_open_max_requests"`
}

// FederationConfig holds defaults for federated queries.
type FederationConfig struct {
	// Default: union
	Strategy    string        `mapstructure:"strategy"`
	Parallel    bool          `mapstructure:"parallel"`
	FailOnError bool          `mapstructure:"fail_on_error"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// PingerConfig configures endpoint probing.
type PingerConfig struct {
	// Method is ask or head.
	// Default: ask
	Method     string `mapstructure:"method"`
	CheckQuery string `mapstructure:"check_query"`

	// Default: 30s
	Timeout   time.Duration `mapstructure:"timeout"`
	VerifySSL bool          `mapstructure:"verify_ssl"`

	// Default: 3
	RetryAttempts int `mapstructure:"retry_attempts"`

	// Default: 1s
	RetryDelay time.Duration `mapstructure:"retry_delay"`

	// Default: 2
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`

	// Default: 10
	MaxConcurrent int  `mapstructure:"max_concurrent"`
	AutoRecord    bool `mapstructure:"auto_record"`

	// Default: 100
	MaxHistory int `mapstructure:"max_history"`

	SkipTLSCheck bool `mapstructure:"skip_tls_check"`

	// Default: 5s
	TLSTimeout time.Duration `mapstructure:"tls_timeout"`
}

// RateLimitConfig configures a token bucket.
type RateLimitConfig struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

// CacheConfig enables the executor's result cache.
type CacheConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Policy  cache.Policy `mapstructure:",squash"`
}

// SecretsConfig selects the providers used to resolve secretref values.
// Providers maps a registered provider name to its settings; the env
// provider is always available.
type SecretsConfig struct {
	Strict    bool                      `mapstructure:"strict"`
	Providers map[string]map[string]any `mapstructure:"providers"`
}

// EndpointConfig is an endpoint plus the credentials used to reach it.
// Password, BearerToken and Token.Key may hold ${VAR} or secretref values.
type EndpointConfig struct {
	sparql.EndpointInfo `mapstructure:",squash"`

	Username    string       `mapstructure:"username"`
	Password    string       `mapstructure:"password"`
	BearerToken string       `mapstructure:"bearer_token"`
	Token       *TokenConfig `mapstructure:"token"`
}

// TokenConfig mints HS256 bearer JWTs for an endpoint.
type TokenConfig struct {
	Issuer  string `mapstructure:"issuer"`
	Subject string `mapstructure:"subject"`

	// Audience defaults to the endpoint URL.
	Audience string `mapstructure:"audience"`
	KeyID    string `mapstructure:"key_id"`
	Key      string `mapstructure:"key"`

	// Default: 5m
	TTL time.Duration `mapstructure:"ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Executor: ExecutorConfig{
			DefaultTimeout:   executor.DefaultTimeout,
			DefaultFormat:    string(sparql.FormatJSON),
			MaxGETLength:     executor.DefaultMaxGETLength,
			MaxResponseBytes: executor.DefaultMaxResponseBytes,
			Breaker: BreakerConfig{
				MaxFailures:         5,
				ResetTimeout:        30 * time.Second,
				HalfOpenMaxRequests: 1,
			},
		},
		Federation: FederationConfig{
			Strategy: string(executor.StrategyUnion),
			Parallel: true,
		},
		Pinger: PingerConfig{
			Method:            "ask",
			CheckQuery:        health.DefaultCheckQuery,
			Timeout:           30 * time.Second,
			VerifySSL:         true,
			RetryAttempts:     3,
			RetryDelay:        time.Second,
			BackoffMultiplier: 2,
			MaxConcurrent:     10,
			AutoRecord:        true,
			MaxHistory:        health.DefaultMaxHistory,
			TLSTimeout:        5 * time.Second,
		},
		RateLimit: RateLimitConfig{Rate: 10, Burst: 10},
		Recovery:  recovery.DefaultConfig(),
		Pool: pool.Config{
			MaxConnections: 100,
			MaxKeepalive:   20,
			IdleTimeout:    90 * time.Second,
			DialTimeout:    10 * time.Second,
		},
		Cache: CacheConfig{Policy: cache.DefaultPolicy()},
		Observe: observe.Config{
			ServiceName: "sparqlops",
			Version:     pool.Version,
			Tracing:     observe.TracingConfig{Exporter: "none", SamplePct: 1},
			Metrics:     observe.MetricsConfig{Exporter: "none"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Validate checks the configuration for values the components would reject
// or misuse.
func (c *Config) Validate() error {
	if c.RateLimit.Rate <= 0 {
		return fmt.Errorf("%w: rate_limit.rate = %v", ErrInvalidRate, c.RateLimit.Rate)
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("%w: rate_limit.burst = %d", ErrInvalidBurst, c.RateLimit.Burst)
	}
	if c.Executor.RateLimit.Rate < 0 {
		return fmt.Errorf("%w: executor.rate_limit.rate = %v", ErrInvalidRate, c.Executor.RateLimit.Rate)
	}
	if c.Executor.RateLimit.Rate > 0 && c.Executor.RateLimit.Burst < 1 {
		return fmt.Errorf("%w: executor.rate_limit.burst = %d", ErrInvalidBurst, c.Executor.RateLimit.Burst)
	}
	if _, err := sparql.ParseFormat(c.Executor.DefaultFormat); err != nil {
		return fmt.Errorf("executor.default_format: %w", err)
	}
	if _, err := executor.ParseStrategy(c.Federation.Strategy); err != nil {
		return fmt.Errorf("federation.strategy: %w", err)
	}
	if _, err := parseProbeMethod(c.Pinger.Method); err != nil {
		return err
	}
	if err := c.Observe.Validate(); err != nil {
		return err
	}

	names := make(map[string]bool, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		if strings.TrimSpace(ep.URL) == "" {
			return fmt.Errorf("%w: endpoints[%d]", ErrMissingURL, i)
		}
		u, err := url.Parse(ep.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: endpoints[%d] = %q", ErrInvalidURL, i, ep.URL)
		}
		if ep.RateLimit < 0 {
			return fmt.Errorf("%w: endpoints[%d].rate_limit = %v", ErrInvalidRate, i, ep.RateLimit)
		}
		name := ep.DisplayName()
		if names[name] {
			return fmt.Errorf("%w: %q", ErrDuplicateEndpoint, name)
		}
		names[name] = true
	}
	return nil
}

// Endpoint returns the endpoint whose name or URL is key.
func (c *Config) Endpoint(key string) (EndpointConfig, error) {
	for _, ep := range c.Endpoints {
		if ep.Name == key || ep.URL == key {
			return ep, nil
		}
	}
	return EndpointConfig{}, fmt.Errorf("%w: %q", ErrUnknownEndpoint, key)
}

func parseProbeMethod(s string) (health.ProbeMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ask":
		return health.ProbeASK, nil
	case "head":
		return health.ProbeHead, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidProbeMethod, s)
}
