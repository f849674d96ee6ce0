package executor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/sparqlops/sparql"
)

// Strategy selects how federated answers are combined.
type Strategy string

const (
	// StrategyUnion concatenates every answer.
	StrategyUnion Strategy = "union"
	// StrategyIntersection keeps rows present in every answer.
	StrategyIntersection Strategy = "intersection"
	// StrategySequential keeps the first collected answer in input order.
	StrategySequential Strategy = "sequential"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyUnion, StrategyIntersection, StrategySequential:
		return true
	}
	return false
}

// ParseStrategy parses a strategy name. An empty string yields
// StrategyUnion.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if st == "" {
		return StrategyUnion, nil
	}
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
	}
	return st, nil
}

// FederatedQuery describes one query sent to several endpoints.
type FederatedQuery struct {
	Endpoints []sparql.EndpointInfo

	// Strategy combines the answers.
	// Default: StrategyUnion
	Strategy Strategy

	// Parallel dispatches every endpoint at once; otherwise endpoints are
	// queried in input order.
	Parallel bool

	// FailOnError stops the federation at the first failed endpoint and
	// returns a failed result naming it.
	FailOnError bool

	// Timeout bounds each endpoint call and overrides Options.Timeout.
	Timeout time.Duration

	// Options apply to every endpoint call.
	Options Options
}

// abortError carries the endpoint that stopped a FailOnError federation.
type abortError struct {
	endpoint sparql.EndpointInfo
	result   sparql.QueryResult
}

func (a *abortError) Error() string {
	return fmt.Sprintf("%s: %s", a.endpoint.DisplayName(), a.result.ErrorMessage)
}

// ExecuteFederated runs query against every endpoint in fq and merges the
// answers. Like Execute, it never returns an error.
func (e *Executor) ExecuteFederated(ctx context.Context, query string, fq FederatedQuery) sparql.QueryResult {
	start := time.Now()

	strategy := fq.Strategy
	if strategy == "" {
		strategy = StrategyUnion
	}
	if len(fq.Endpoints) == 0 {
		return sparql.NewFailure(ErrNoEndpoints, time.Since(start))
	}
	if !strategy.Valid() {
		return sparql.NewFailure(fmt.Errorf("%w: %q", ErrInvalidStrategy, fq.Strategy), time.Since(start))
	}

	opts := fq.Options
	if fq.Timeout > 0 {
		opts.Timeout = fq.Timeout
	}

	var (
		results []sparql.QueryResult
		err     error
	)
	if fq.Parallel {
		results, err = e.dispatchParallel(ctx, query, fq, opts)
	} else {
		results, err = e.dispatchSequential(ctx, query, fq, opts)
	}

	var abort *abortError
	if errors.As(err, &abort) {
		r := sparql.NewFailure(fmt.Errorf("%w: %w", ErrFederationAborted, abort), time.Since(start))
		r.Metadata["failed_endpoint"] = abort.endpoint.URL
		r.Metadata["strategy"] = string(strategy)
		return r
	}

	var (
		answered []sparql.QueryResult
		errs     []error
	)
	for i, r := range results {
		if r.OK() {
			answered = append(answered, r)
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", fq.Endpoints[i].DisplayName(), r.Err()))
	}

	merged := Merge(answered, strategy, errs)
	merged.Metadata = maps.Clone(merged.Metadata)
	if merged.Metadata == nil {
		merged.Metadata = map[string]any{}
	}
	merged.Metadata["federated"] = true
	merged.Metadata["endpoint_count"] = len(fq.Endpoints)
	merged.Metadata["parallel"] = fq.Parallel
	if !merged.OK() {
		merged.ExecutionTime = time.Since(start)
	}
	return merged
}

// dispatchParallel runs one Execute per endpoint on an errgroup sized to
// the endpoint count. Results are gathered by index.
func (e *Executor) dispatchParallel(ctx context.Context, query string, fq FederatedQuery, opts Options) ([]sparql.QueryResult, error) {
	results := make([]sparql.QueryResult, len(fq.Endpoints))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(fq.Endpoints))
	for i, ep := range fq.Endpoints {
		g.Go(func() error {
			r := e.Execute(gctx, query, ep, opts)
			results[i] = r
			if fq.FailOnError && !r.OK() {
				return &abortError{endpoint: ep, result: r}
			}
			return nil
		})
	}
	return results, g.Wait()
}

func (e *Executor) dispatchSequential(ctx context.Context, query string, fq FederatedQuery, opts Options) ([]sparql.QueryResult, error) {
	results := make([]sparql.QueryResult, 0, len(fq.Endpoints))
	for _, ep := range fq.Endpoints {
		r := e.Execute(ctx, query, ep, opts)
		results = append(results, r)
		if fq.FailOnError && !r.OK() {
			return results, &abortError{endpoint: ep, result: r}
		}
	}
	return results, nil
}
