// Package recovery categorizes query failures and tries to recover from
// them.
//
// Categorize places a fault in one of a fixed set of categories, first by
// its typed sparql.ErrorKind and then by an ordered table of message
// patterns. Each category carries a policy: severity, whether it is
// recoverable, and the retry strategy to apply.
//
// Handler.Recover drives a failed query through up to three phases: retry
// with the category's strategy, fallback to alternative endpoints, and a
// single attempt with a rewritten query. Recovery is opt-in; the executor
// never invokes it on its own.
package recovery
