package recovery

import (
	"context"

	"github.com/jonwraymond/sparqlops/executor"
	"github.com/jonwraymond/sparqlops/sparql"
)

// Executor is the part of *executor.Executor that recovery drives.
type Executor interface {
	Execute(ctx context.Context, query string, endpoint sparql.EndpointInfo, opts executor.Options) sparql.QueryResult
}

// FromExecutor adapts e to an ExecuteFunc. Every call uses opts; a result
// that is not a success is returned together with its fault.
func FromExecutor(e Executor, opts executor.Options) ExecuteFunc {
	return func(ctx context.Context, query string, endpoint sparql.EndpointInfo) (sparql.QueryResult, error) {
		res := e.Execute(ctx, query, endpoint, opts)
		if !res.OK() {
			return res, res.Err()
		}
		return res, nil
	}
}
