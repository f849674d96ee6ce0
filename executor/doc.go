// Package executor runs SPARQL queries against one or many endpoints.
//
// Execute never returns an error. Every transport, protocol or decoding
// fault is folded into a sparql.QueryResult whose Status and ErrorKind
// describe what went wrong, so callers branch on values rather than on
// error chains.
//
// Each execution passes through, outermost first:
//
//	result cache      (optional, skips update queries)
//	observe middleware (span, metrics, log line)
//	per-call timeout   (explicit > endpoint > executor default)
//	politeness limiter (per endpoint, from EndpointInfo.RateLimit)
//	resilience guard   (bulkhead, then the endpoint's circuit breaker)
//	HTTP exchange      (pooled client, GET or POST form)
//
// ExecuteFederated fans a query out to several endpoints and combines the
// answers with Merge.
package executor
