package executor

import (
	"maps"
	"sync"
	"time"

	"github.com/jonwraymond/sparqlops/sparql"
)

// EndpointStats counts executions against one endpoint.
type EndpointStats struct {
	Total   int64
	Success int64
	Failure int64
}

// Stats is a snapshot of executor counters.
type Stats struct {
	Total   int64
	Success int64
	Failure int64

	// ByEndpoint is keyed by endpoint URL.
	ByEndpoint map[string]EndpointStats

	// ByKind counts failures by sparql.ErrorKind name.
	ByKind map[string]int64

	// ByStatus counts results by sparql.Status name.
	ByStatus map[string]int64

	TotalTime time.Duration
	CacheHits int64
}

// AverageTime is TotalTime / Total, or zero before any execution.
func (s Stats) AverageTime() time.Duration {
	if s.Total == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.Total)
}

// SuccessRate is Success / Total as a percentage.
func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.Total) * 100
}

type statsCollector struct {
	mu sync.Mutex
	s  Stats
}

func (c *statsCollector) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s = Stats{
		ByEndpoint: make(map[string]EndpointStats),
		ByKind:     make(map[string]int64),
		ByStatus:   make(map[string]int64),
	}
}

func (c *statsCollector) record(endpointURL string, r sparql.QueryResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.s.Total++
	c.s.TotalTime += r.ExecutionTime
	c.s.ByStatus[r.Status.String()]++

	es := c.s.ByEndpoint[endpointURL]
	es.Total++
	if r.OK() {
		c.s.Success++
		es.Success++
	} else {
		c.s.Failure++
		es.Failure++
		c.s.ByKind[r.ErrorKind.String()]++
	}
	c.s.ByEndpoint[endpointURL] = es
}

func (c *statsCollector) cacheHit() {
	c.mu.Lock()
	c.s.CacheHits++
	c.mu.Unlock()
}

func (c *statsCollector) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.s
	out.ByEndpoint = maps.Clone(c.s.ByEndpoint)
	out.ByKind = maps.Clone(c.s.ByKind)
	out.ByStatus = maps.Clone(c.s.ByStatus)
	return out
}

// Stats returns a copy of the running counters.
func (e *Executor) Stats() Stats {
	return e.stats.snapshot()
}

// ResetStats zeroes every counter.
func (e *Executor) ResetStats() {
	e.stats.reset()
}
