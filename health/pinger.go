package health

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/sparqlops/pool"
	"github.com/jonwraymond/sparqlops/resilience"
	"github.com/jonwraymond/sparqlops/sparql"
)

// ProbeMethod selects how an endpoint is probed.
type ProbeMethod int

const (
	// ProbeASK sends GET ?query=<check query> and expects a results body.
	ProbeASK ProbeMethod = iota
	// ProbeHead sends a HEAD request to the endpoint URL.
	ProbeHead
)

// DefaultCheckQuery is the probe sent when none is given.
const DefaultCheckQuery = "ASK { ?s ?p ?o }"

// Latency thresholds applied to HTTP 200 answers.
const (
	HealthyLatency  = time.Second
	DegradedLatency = 5 * time.Second
)

// PingRecorder receives one call per finished probe.
type PingRecorder interface {
	RecordPing(ctx context.Context, endpoint string, status string, latency time.Duration)
}

// PingerConfig configures a Pinger.
type PingerConfig struct {
	// Method selects HEAD or ASK probing.
	// Default: ProbeASK
	Method ProbeMethod

	// CheckQuery is the ASK probe used when Ping gets an empty one.
	// Default: DefaultCheckQuery
	CheckQuery string

	// Connection holds timeout and retry defaults used when Ping is given a
	// nil config.
	// Default: sparql.DefaultConnectionConfig()
	Connection *sparql.ConnectionConfig

	// RateLimiter, when set, is acquired once per Ping before any attempt.
	RateLimiter *resilience.RateLimiter

	// Pool supplies HTTP clients.
	// Default: a private pool
	Pool *pool.Pool

	// History receives every outcome when AutoRecord is set.
	History    *History
	AutoRecord bool
	MaxHistory int

	// MaxConcurrent bounds PingMany.
	// Default: 10
	MaxConcurrent int

	// SkipTLSCheck disables the separate certificate handshake.
	SkipTLSCheck bool

	// TLSTimeout bounds the certificate handshake.
	// Default: 5s
	TLSTimeout time.Duration

	// RootCAs verifies endpoint certificates; nil uses the system pool.
	RootCAs *x509.CertPool

	// Recorder is told about every probe (metrics).
	Recorder PingRecorder
}

// Pinger probes SPARQL endpoints. Ping never fails: every fault ends up in
// the returned EndpointHealth.
type Pinger struct {
	config   PingerConfig
	ownsPool bool
	insecure *pool.Pool
	now      func() time.Time
}

// NewPinger creates a pinger.
func NewPinger(config PingerConfig) *Pinger {
	if config.CheckQuery == "" {
		config.CheckQuery = DefaultCheckQuery
	}
	if config.Connection == nil {
		cc := sparql.DefaultConnectionConfig()
		config.Connection = &cc
	}
	ownsPool := false
	if config.Pool == nil {
		config.Pool = pool.New(pool.Config{})
		ownsPool = true
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	if config.TLSTimeout <= 0 {
		config.TLSTimeout = 5 * time.Second
	}
	if config.AutoRecord && config.History == nil {
		config.History = NewHistory()
	}

	return &Pinger{
		config:   config,
		ownsPool: ownsPool,
		insecure: pool.New(pool.Config{InsecureSkipVerify: true}),
		now:      time.Now,
	}
}

// History returns the history the pinger records into, if any.
func (p *Pinger) History() *History {
	return p.config.History
}

// Close releases the pools the pinger created. A pool passed in
// PingerConfig.Pool is left to its owner. The pinger stays usable.
func (p *Pinger) Close() error {
	var errs []error
	if p.ownsPool {
		errs = append(errs, p.config.Pool.Close())
	}
	errs = append(errs, p.insecure.Close())
	return errors.Join(errs...)
}

// Classify maps an HTTP answer and its latency to a status:
//
//	200 below HealthyLatency        healthy
//	200 below DegradedLatency       degraded
//	200 otherwise                   unhealthy
//	other 2xx                       healthy
//	401                             auth_required
//	403                             auth_failed
//	anything else                   unhealthy
func Classify(statusCode int, latency time.Duration) Status {
	switch {
	case statusCode == http.StatusOK:
		switch {
		case latency < HealthyLatency:
			return StatusHealthy
		case latency < DegradedLatency:
			return StatusDegraded
		default:
			return StatusUnhealthy
		}
	case statusCode >= 200 && statusCode < 300:
		return StatusHealthy
	case statusCode == http.StatusUnauthorized:
		return StatusAuthRequired
	case statusCode == http.StatusForbidden:
		return StatusAuthFailed
	default:
		return StatusUnhealthy
	}
}

// classifyFault maps a transport error to a status.
func classifyFault(err error) Status {
	switch sparql.KindOf(err) {
	case sparql.KindTimeout:
		return StatusTimeout
	case sparql.KindTLS:
		return StatusSSLError
	default:
		return StatusUnreachable
	}
}

// errTransport marks an attempt that never got an HTTP answer.
var errTransport = errors.New("health: transport fault")

// Ping probes endpointURL. Attempt k>0 first waits
// RetryDelay * BackoffMultiplier^(k-1). Only transport faults are retried;
// any HTTP answer is classified and returned at once. Running out of
// attempts yields StatusUnreachable with the last fault in ErrorMessage. A nil cfg uses the
// pinger's connection defaults.
func (p *Pinger) Ping(ctx context.Context, endpointURL, checkQuery string, cfg *sparql.ConnectionConfig) EndpointHealth {
	if cfg == nil {
		cfg = p.config.Connection
	}
	if checkQuery == "" {
		checkQuery = p.config.CheckQuery
	}

	h := p.ping(ctx, endpointURL, checkQuery, cfg)

	if !p.config.SkipTLSCheck && strings.HasPrefix(strings.ToLower(endpointURL), "https://") {
		info := CheckCertificate(ctx, endpointURL, p.config.RootCAs, p.config.TLSTimeout)
		valid := info.Valid
		h.SSLValid = &valid
		if !info.Expiry.IsZero() {
			expiry := info.Expiry
			h.SSLExpiry = &expiry
		}
	}

	if p.config.AutoRecord && p.config.History != nil {
		p.config.History.Record(h, p.config.MaxHistory)
	}
	if p.config.Recorder != nil {
		p.config.Recorder.RecordPing(ctx, endpointURL, h.Status.String(), h.Latency())
	}

	return h
}

func (p *Pinger) ping(ctx context.Context, endpointURL, checkQuery string, cfg *sparql.ConnectionConfig) EndpointHealth {
	base := EndpointHealth{
		EndpointURL: endpointURL,
		Status:      StatusUnknown,
		Timestamp:   p.now(),
	}

	if p.config.RateLimiter != nil {
		if err := p.config.RateLimiter.Acquire(ctx); err != nil {
			base.Status = classifyFault(err)
			base.ErrorMessage = "rate limiter: " + err.Error()
			return base
		}
	}

	client, err := p.client(endpointURL, cfg)
	if err != nil {
		base.Status = StatusUnreachable
		base.ErrorMessage = err.Error()
		return base
	}

	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	last := base
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: cfg.RetryDelay,
		Multiplier:   cfg.BackoffMultiplier,
		Strategy:     resilience.BackoffExponential,
		RetryIf:      func(err error) bool { return errors.Is(err, errTransport) },
	})

	n := 0
	err = retry.Execute(ctx, func(ctx context.Context) error {
		n++
		h, retryable := p.attempt(ctx, client, endpointURL, checkQuery, cfg)
		h.Attempts = n
		last = h
		if retryable {
			return errTransport
		}
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, errTransport):
		last.Status = StatusUnreachable
		last.ErrorMessage = fmt.Sprintf("unreachable after %d %s: %s", n, plural(n, "attempt"), last.ErrorMessage)
	default:
		// cancelled while backing off
		last.ErrorMessage = strings.TrimSpace(last.ErrorMessage + " (" + err.Error() + ")")
	}

	return last
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func (p *Pinger) client(endpointURL string, cfg *sparql.ConnectionConfig) (*http.Client, error) {
	pl := p.config.Pool
	if !cfg.VerifySSL {
		pl = p.insecure
	}
	return pl.GetClient(endpointURL, sparql.FormatJSON)
}

// attempt runs one probe bounded by cfg.Timeout. retryable is set for
// transport faults other than TLS failures.
func (p *Pinger) attempt(ctx context.Context, client *http.Client, endpointURL, checkQuery string, cfg *sparql.ConnectionConfig) (h EndpointHealth, retryable bool) {
	h = EndpointHealth{EndpointURL: endpointURL, Timestamp: p.now()}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	req, err := p.newRequest(ctx, endpointURL, checkQuery)
	if err != nil {
		h.Status = StatusUnreachable
		h.ErrorMessage = err.Error()
		return h, false
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if err := cfg.Credentials.Apply(ctx, req); err != nil {
		h.Status = StatusAuthRequired
		h.ErrorMessage = err.Error()
		return h, false
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		h.Status = classifyFault(err)
		h.ErrorMessage = err.Error()
		return h, h.Status != StatusSSLError
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	latency := time.Since(start)

	h.StatusCode = resp.StatusCode
	h.ResponseTimeMs = millis(latency)
	h.Status = Classify(resp.StatusCode, latency)
	h.ServerInfo = serverInfo(resp)
	h.Capabilities = capabilities(p.config.Method, resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.ErrorMessage = resp.Status
	}
	return h, false
}

func (p *Pinger) newRequest(ctx context.Context, endpointURL, checkQuery string) (*http.Request, error) {
	if p.config.Method == ProbeHead {
		return http.NewRequestWithContext(ctx, http.MethodHead, endpointURL, nil)
	}

	u, err := url.Parse(endpointURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("query", checkQuery)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", sparql.FormatJSON.Accept())
	return req, nil
}

func serverInfo(resp *http.Response) map[string]string {
	info := map[string]string{}
	if s := resp.Header.Get("Server"); s != "" {
		info["server"] = s
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		info["content_type"] = ct
	}
	if len(info) == 0 {
		return nil
	}
	return info
}

func capabilities(method ProbeMethod, resp *http.Response) []string {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	var caps []string
	if method == ProbeASK {
		caps = append(caps, "ask")
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "sparql-results+json"):
		caps = append(caps, "json")
	case strings.Contains(ct, "sparql-results+xml"):
		caps = append(caps, "xml")
	}
	if allow := resp.Header.Get("Allow"); strings.Contains(strings.ToUpper(allow), http.MethodPost) {
		caps = append(caps, "post")
	}
	return caps
}

// PingMany probes every URL concurrently, at most MaxConcurrent at a time.
// The result at index i belongs to urls[i].
func (p *Pinger) PingMany(ctx context.Context, urls []string, checkQuery string, cfg *sparql.ConnectionConfig) []EndpointHealth {
	out := make([]EndpointHealth, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.MaxConcurrent)
	for i, u := range urls {
		g.Go(func() error {
			out[i] = p.Ping(gctx, u, checkQuery, cfg)
			return nil
		})
	}
	_ = g.Wait()

	return out
}
