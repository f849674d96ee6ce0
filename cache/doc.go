// Package cache stores successful SPARQL query results.
//
// It provides a byte-oriented Cache interface with an in-memory
// implementation, SHA-256 keys derived from endpoint, format and normalized
// query text, TTL policies, and a Middleware that never caches update
// requests or failed results.
package cache
