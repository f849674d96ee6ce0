// Package pool caches one *http.Client per (endpoint, result format) so
// repeated queries to the same endpoint reuse keep-alive connections.
//
// The pool does not retry. It only hands out clients.
package pool
