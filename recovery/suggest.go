package recovery

import (
	"fmt"

	"github.com/jonwraymond/sparqlops/sparql"
)

var baseSuggestions = map[Category][]string{
	CategorySyntax: {
		"Check the query for unbalanced braces and missing dots between triple patterns",
		"Declare every prefix used in the query",
		"Validate the query with a SPARQL 1.1 parser before sending it",
	},
	CategoryTimeout: {
		"Add a LIMIT clause or lower the existing one",
		"Make triple patterns more specific so the engine can use its indexes",
		"Retry later, when the endpoint may be less loaded",
	},
	CategoryMemory: {
		"Add a LIMIT clause and page with OFFSET",
		"Select only the variables you need instead of SELECT *",
	},
	CategoryNetwork: {
		"Check connectivity and DNS resolution for the endpoint host",
		"Verify the endpoint URL and its TLS certificate",
	},
	CategoryAuthentication: {
		"Provide valid credentials for this endpoint",
		"Check that the username, password or token has not expired",
	},
	CategoryRateLimit: {
		"Slow down: lower the request rate configured for this endpoint",
		"Cache results of repeated queries",
	},
	CategoryEndpointUnavailable: {
		"Retry later; the endpoint reports it is unavailable",
		"Use an alternative endpoint serving the same dataset",
	},
	CategoryQueryTooComplex: {
		"Split the query into smaller queries",
		"Reduce OPTIONAL and UNION blocks",
		"Add a LIMIT clause",
	},
	CategoryResourceNotFound: {
		"Check the endpoint URL path",
		"Check that the named graphs in FROM / GRAPH clauses exist",
	},
	CategoryPermissionDenied: {
		"Request access to this dataset from the endpoint operator",
		"Use credentials with read permission on the queried graphs",
	},
	CategoryMalformedResponse: {
		"Request a different result format",
		"Retry; the response may have been truncated in transit",
	},
	CategoryUnknown: {
		"Retry the query",
		"Inspect the endpoint's error message for details",
	},
}

// Suggestions returns actionable advice for cat. Timeout and memory
// failures also get advice from a heuristic scan of query.
func Suggestions(cat Category, query string) []string {
	out := append([]string(nil), baseSuggestions[cat]...)
	if cat != CategoryTimeout && cat != CategoryMemory {
		return out
	}
	if query == "" {
		return out
	}

	shape := sparql.Analyze(query)
	if !shape.HasLimit && !shape.IsAsk() {
		out = append(out, "The query has no LIMIT; add one to bound the result size")
	}
	if shape.TooManyOptionals() {
		out = append(out, fmt.Sprintf("The query has %d OPTIONAL blocks; more than %d is usually expensive", shape.OptionalCount, sparql.MaxOptionalHeuristic))
	}
	if shape.HasTripleWildcard {
		out = append(out, "The query contains a ?s ?p ?o pattern; bind the subject or predicate")
	}
	return out
}
