package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/jonwraymond/sparqlops/auth"
	"github.com/jonwraymond/sparqlops/config"
	"github.com/jonwraymond/sparqlops/executor"
	"github.com/jonwraymond/sparqlops/health"
	"github.com/jonwraymond/sparqlops/observe"
	"github.com/jonwraymond/sparqlops/observe/exporters"
	"github.com/jonwraymond/sparqlops/pool"
	"github.com/jonwraymond/sparqlops/sparql"
)

// app holds the components shared by every command.
type app struct {
	cfg       config.Config
	obs       observe.Observer
	logger    observe.Logger
	pool      *pool.Pool
	exec      *executor.Executor
	pinger    *health.Pinger
	endpoints []config.Endpoint
}

// loadConfig reads the configuration named by the root flags.
func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath, opts.envPrefix)
	if err != nil {
		return config.Config{}, err
	}
	if opts.logLevel != "" {
		cfg.Observe.Logging.Level = opts.logLevel
		if err := cfg.Observe.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg config.Config, eopts ...exporters.Option) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(ctx)
		}
	}()

	resolver, err := cfg.Resolver()
	if err != nil {
		return nil, err
	}
	defer func() { _ = resolver.Close() }()
	if a.endpoints, err = cfg.ResolveEndpoints(ctx, resolver); err != nil {
		return nil, err
	}

	if a.obs, err = observe.NewObserver(ctx, cfg.Observe, eopts...); err != nil {
		return nil, err
	}
	a.logger = a.obs.Logger()

	mw, err := observe.MiddlewareFromObserver(a.obs)
	if err != nil {
		return nil, err
	}
	metrics, err := observe.MetricsFromObserver(a.obs)
	if err != nil {
		return nil, err
	}

	a.pool = pool.New(cfg.Pool)

	ec, err := cfg.ExecutorConfig()
	if err != nil {
		return nil, err
	}
	ec.Pool = a.pool
	ec.Observe = mw
	ec.Logger = a.logger
	a.exec = executor.New(ec)

	pc, err := cfg.PingerConfig()
	if err != nil {
		return nil, err
	}
	pc.Pool = a.pool
	pc.Recorder = metrics
	a.pinger = health.NewPinger(pc)

	return a, nil
}

// Close releases the executor, the pinger, the pool and the telemetry
// providers.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.exec != nil {
		errs = append(errs, a.exec.Close())
	}
	if a.pinger != nil {
		errs = append(errs, a.pinger.Close())
	}
	if a.pool != nil {
		errs = append(errs, a.pool.Close())
	}
	if a.obs != nil {
		errs = append(errs, a.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// endpoint finds a configured endpoint by name or URL. An unknown absolute
// http(s) URL is used as is, without credentials.
func (a *app) endpoint(key string) (config.Endpoint, error) {
	for _, ep := range a.endpoints {
		if ep.Info.Name == key || ep.Info.URL == key {
			return ep, nil
		}
	}
	if u, err := url.Parse(key); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return config.Endpoint{Info: sparql.EndpointInfo{URL: key}}, nil
	}
	return config.Endpoint{}, fmt.Errorf("%w: %q", config.ErrUnknownEndpoint, key)
}

// selectEndpoints resolves keys, or returns every configured endpoint when
// keys is empty.
func (a *app) selectEndpoints(keys []string) ([]config.Endpoint, error) {
	if len(keys) == 0 {
		if len(a.endpoints) == 0 {
			return nil, errors.New("no endpoints given and none configured")
		}
		return a.endpoints, nil
	}
	out := make([]config.Endpoint, 0, len(keys))
	for _, k := range keys {
		ep, err := a.endpoint(k)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}

// credentials returns the configured credentials for endpointURL.
func (a *app) credentials(endpointURL string) *auth.Credentials {
	for _, ep := range a.endpoints {
		if ep.Info.URL == endpointURL {
			return ep.Credentials
		}
	}
	return nil
}

// Execute runs a query with the credentials configured for the endpoint.
func (a *app) Execute(ctx context.Context, query string, endpoint sparql.EndpointInfo, opts executor.Options) sparql.QueryResult {
	if opts.Credentials == nil {
		opts.Credentials = a.credentials(endpoint.URL)
	}
	return a.exec.Execute(ctx, query, endpoint, opts)
}

// readQuery returns arg, or the contents of the file it names when it
// starts with @. "@-" reads standard input.
func readQuery(arg string, stdin io.Reader) (string, error) {
	name, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return arg, nil
	}
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("reading query: %w", err)
	}
	return string(data), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
