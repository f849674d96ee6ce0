// Package observe instruments SPARQL query execution and endpoint probing.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The executor wraps each query with Middleware; the
// health pinger reports probes through Metrics.RecordPing.
package observe
