package config

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/jonwraymond/sparqlops/auth"
	"github.com/jonwraymond/sparqlops/cache"
	"github.com/jonwraymond/sparqlops/executor"
	"github.com/jonwraymond/sparqlops/health"
	"github.com/jonwraymond/sparqlops/observe"
	"github.com/jonwraymond/sparqlops/recovery"
	"github.com/jonwraymond/sparqlops/resilience"
	"github.com/jonwraymond/sparqlops/secret"
	"github.com/jonwraymond/sparqlops/sparql"
)

// ExecutorConfig returns the executor settings. Pool, Observe and Logger
// are left for the caller; Cache is a fresh MemoryCache when enabled.
func (c *Config) ExecutorConfig() (executor.Config, error) {
	format, err := sparql.ParseFormat(c.Executor.DefaultFormat)
	if err != nil {
		return executor.Config{}, err
	}

	out := executor.Config{
		DefaultTimeout:   c.Executor.DefaultTimeout,
		DefaultFormat:    format,
		MaxGETLength:     c.Executor.MaxGETLength,
		MaxResponseBytes: c.Executor.MaxResponseBytes,
		Headers:          maps.Clone(c.Executor.Headers),
		MaxConcurrent:    c.Executor.MaxConcurrent,
		DisableBreaker:   c.Executor.Breaker.Disabled,
		Breaker: resilience.CircuitBreakerConfig{
			MaxFailures:         c.Executor.Breaker.MaxFailures,
			ResetTimeout:        c.Executor.Breaker.ResetTimeout,
			HalfOpenMaxRequests: c.Executor.Breaker.HalfOpenMaxRequests,
		},
	}
	if c.Executor.RateLimit.Rate > 0 {
		limiter, err := resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:  c.Executor.RateLimit.Rate,
			Burst: c.Executor.RateLimit.Burst,
		})
		if err != nil {
			return executor.Config{}, err
		}
		out.RateLimiter = limiter
	}
	if c.Cache.Enabled {
		out.Cache = cache.NewMemoryCache(c.Cache.Policy)
		out.CachePolicy = c.Cache.Policy
	}
	return out, nil
}

// FederatedQuery returns a federated query over endpoints using the
// configured federation defaults.
func (c *Config) FederatedQuery(endpoints []sparql.EndpointInfo, opts executor.Options) (executor.FederatedQuery, error) {
	strategy, err := executor.ParseStrategy(c.Federation.Strategy)
	if err != nil {
		return executor.FederatedQuery{}, err
	}
	return executor.FederatedQuery{
		Endpoints:   endpoints,
		Strategy:    strategy,
		Parallel:    c.Federation.Parallel,
		FailOnError: c.Federation.FailOnError,
		Timeout:     c.Federation.Timeout,
		Options:     opts,
	}, nil
}

// ConnectionConfig returns the probe transport defaults.
func (c *Config) ConnectionConfig() sparql.ConnectionConfig {
	return sparql.ConnectionConfig{
		Timeout:           c.Pinger.Timeout,
		VerifySSL:         c.Pinger.VerifySSL,
		RetryAttempts:     c.Pinger.RetryAttempts,
		RetryDelay:        c.Pinger.RetryDelay,
		BackoffMultiplier: c.Pinger.BackoffMultiplier,
	}
}

// PingerConfig returns the pinger settings with the shared rate limiter
// built from RateLimit. Pool and Recorder are left for the caller.
func (c *Config) PingerConfig() (health.PingerConfig, error) {
	method, err := parseProbeMethod(c.Pinger.Method)
	if err != nil {
		return health.PingerConfig{}, err
	}
	limiter, err := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Rate:  c.RateLimit.Rate,
		Burst: c.RateLimit.Burst,
	})
	if err != nil {
		return health.PingerConfig{}, err
	}

	cc := c.ConnectionConfig()
	return health.PingerConfig{
		Method:        method,
		CheckQuery:    c.Pinger.CheckQuery,
		Connection:    &cc,
		RateLimiter:   limiter,
		AutoRecord:    c.Pinger.AutoRecord,
		MaxHistory:    c.Pinger.MaxHistory,
		MaxConcurrent: c.Pinger.MaxConcurrent,
		SkipTLSCheck:  c.Pinger.SkipTLSCheck,
		TLSTimeout:    c.Pinger.TLSTimeout,
	}, nil
}

// RecoveryConfig returns the recovery settings logging to logger.
func (c *Config) RecoveryConfig(logger observe.Logger) recovery.Config {
	out := c.Recovery
	out.Logger = logger
	return out
}

// Resolver builds a secret resolver from Secrets using
// secret.DefaultRegistry. The env provider is registered when not
// configured explicitly.
func (c *Config) Resolver() (*secret.Resolver, error) {
	r := secret.NewResolver(c.Secrets.Strict)
	if _, ok := c.Secrets.Providers["env"]; !ok {
		r.Register(&secret.EnvProvider{})
	}

	for _, name := range slices.Sorted(maps.Keys(c.Secrets.Providers)) {
		p, err := secret.DefaultRegistry.Create(name, c.Secrets.Providers[name])
		if err != nil {
			return nil, fmt.Errorf("secrets.providers.%s: %w", name, err)
		}
		r.Register(p)
	}
	return r, nil
}

// Endpoint is a configured endpoint with resolved credentials.
type Endpoint struct {
	Info sparql.EndpointInfo

	// Credentials is nil when none are configured.
	Credentials *auth.Credentials
}

// ResolveEndpoints resolves every endpoint's credentials through r.
func (c *Config) ResolveEndpoints(ctx context.Context, r *secret.Resolver) ([]Endpoint, error) {
	out := make([]Endpoint, 0, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		resolved, err := ep.Resolve(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

// Resolve resolves the endpoint's credentials through r.
func (ep EndpointConfig) Resolve(ctx context.Context, r *secret.Resolver) (Endpoint, error) {
	out := Endpoint{Info: ep.EndpointInfo}

	resolve := func(field, value string) (string, error) {
		if value == "" {
			return "", nil
		}
		v, err := r.ResolveValue(ctx, value)
		if err != nil {
			return "", fmt.Errorf("endpoint %s: %s: %w", ep.DisplayName(), field, err)
		}
		return v, nil
	}

	password, err := resolve("password", ep.Password)
	if err != nil {
		return Endpoint{}, err
	}
	token, err := resolve("bearer_token", ep.BearerToken)
	if err != nil {
		return Endpoint{}, err
	}

	creds := &auth.Credentials{
		Username:    ep.Username,
		Password:    password,
		BearerToken: token,
	}

	if ep.Token != nil {
		key, err := resolve("token.key", ep.Token.Key)
		if err != nil {
			return Endpoint{}, err
		}
		audience := ep.Token.Audience
		if audience == "" {
			audience = ep.URL
		}
		creds.Signer = auth.NewTokenSigner(auth.TokenSignerConfig{
			Issuer:   ep.Token.Issuer,
			Subject:  ep.Token.Subject,
			Audience: audience,
			KeyID:    ep.Token.KeyID,
			TTL:      ep.Token.TTL,
		}, auth.NewStaticKeyProvider([]byte(key)))
	}

	if !creds.Empty() {
		out.Credentials = creds
	}
	return out, nil
}
