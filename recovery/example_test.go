package recovery_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/sparqlops/recovery"
	"github.com/jonwraymond/sparqlops/sparql"
)

func ExampleCategorize() {
	ec := recovery.Categorize(errors.New("HTTP 429: rate limit exceeded"), "", "")
	fmt.Println(ec.Category, ec.Strategy, ec.Recoverable)
	// Output: rate_limit linear_backoff true
}

func ExampleRewrite() {
	q, changed := recovery.Rewrite("SELECT ?s WHERE { ?s ?p ?o }", 100)
	fmt.Println(changed)
	fmt.Println(q)
	// Output:
	// true
	// SELECT ?s WHERE { ?s ?p ?o }
	// LIMIT 100
}

func ExampleHandler_Recover() {
	h := recovery.NewHandler(recovery.Config{
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
		EnableFallback: true,
	})

	primary := sparql.EndpointInfo{URL: "http://primary.example/sparql"}
	mirror := sparql.EndpointInfo{URL: "http://mirror.example/sparql"}

	execute := func(_ context.Context, _ string, ep sparql.EndpointInfo) (sparql.QueryResult, error) {
		if ep.URL == primary.URL {
			err := sparql.NewFault(sparql.KindUnavailable, "maintenance", nil)
			return sparql.NewFailure(err, 0), err
		}
		return sparql.NewSuccess([]string{"s"}, nil, 0), nil
	}

	err := sparql.NewFault(sparql.KindUnavailable, "maintenance", nil)
	res := h.Recover(context.Background(), err, "SELECT ?s WHERE { ?s ?p ?o }", primary, execute, []sparql.EndpointInfo{mirror})
	fmt.Println(res.Success, res.Attempts, res.FallbackEndpoint)
	// Output: true 2 http://mirror.example/sparql
}
