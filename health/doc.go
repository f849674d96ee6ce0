// Package health probes SPARQL endpoints and reports their status.
//
// # Probing
//
// Pinger sends a lightweight ASK query (or a HEAD request) to an endpoint,
// retries transport faults with exponential backoff and classifies the
// answer. Ping never returns an error: every fault ends up in the returned
// EndpointHealth.
//
//	p := health.NewPinger(health.PingerConfig{AutoRecord: true})
//	h := p.Ping(ctx, "https://dbpedia.org/sparql", "", nil)
//	if !h.Status.Usable() {
//	    log.Printf("%s: %s", h.Status, h.ErrorMessage)
//	}
//
// PingMany probes several endpoints concurrently and returns results in
// input order.
//
// # History
//
// History keeps a bounded ring of outcomes per endpoint URL and derives
// uptime and mean response time over a window.
//
// # Aggregation and HTTP
//
// EndpointChecker adapts a pinged endpoint to the Checker interface so an
// Aggregator can combine endpoints with any other checks:
//
//	agg := health.NewAggregator()
//	agg.Register("dbpedia", health.NewEndpointChecker(p, "https://dbpedia.org/sparql", ""))
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg, p.History())
package health
