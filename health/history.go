package health

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxHistory bounds each endpoint's ring when Record is given zero.
const DefaultMaxHistory = 100

// History keeps a bounded ring of probe outcomes per endpoint URL, in
// insertion order. It is safe for concurrent use. Nothing is persisted.
type History struct {
	mu      sync.RWMutex
	records map[string][]EndpointHealth
	now     func() time.Time
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{
		records: make(map[string][]EndpointHealth),
		now:     time.Now,
	}
}

// Record appends h to its endpoint's ring, evicting the oldest entries
// beyond maxHistory.
func (hs *History) Record(h EndpointHealth, maxHistory int) {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}

	hs.mu.Lock()
	defer hs.mu.Unlock()

	ring := append(hs.records[h.EndpointURL], h)
	if over := len(ring) - maxHistory; over > 0 {
		trimmed := make([]EndpointHealth, maxHistory)
		copy(trimmed, ring[over:])
		ring = trimmed
	}
	hs.records[h.EndpointURL] = ring
}

// Records returns a copy of the ring for url, oldest first.
func (hs *History) Records(url string) []EndpointHealth {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	out := make([]EndpointHealth, len(hs.records[url]))
	copy(out, hs.records[url])
	return out
}

// Latest returns the most recent record for url.
func (hs *History) Latest(url string) (EndpointHealth, bool) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	ring := hs.records[url]
	if len(ring) == 0 {
		return EndpointHealth{}, false
	}
	return ring[len(ring)-1], true
}

// URLs returns every endpoint with at least one record, sorted.
func (hs *History) URLs() []string {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	urls := make([]string, 0, len(hs.records))
	for u := range hs.records {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Clear forgets url, or everything when url is empty.
func (hs *History) Clear(url string) {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if url == "" {
		hs.records = make(map[string][]EndpointHealth)
		return
	}
	delete(hs.records, url)
}

// window returns the records for url no older than window; zero means all.
func (hs *History) window(url string, window time.Duration) []EndpointHealth {
	ring := hs.records[url]
	if window <= 0 {
		return ring
	}
	cutoff := hs.now().Add(-window)
	for i, h := range ring {
		if !h.Timestamp.Before(cutoff) {
			return ring[i:]
		}
	}
	return nil
}

// UptimePercentage is the share of records in window whose status is
// usable, times 100. ok is false when the window holds no records.
func (hs *History) UptimePercentage(url string, window time.Duration) (pct float64, ok bool) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	recs := hs.window(url, window)
	if len(recs) == 0 {
		return 0, false
	}

	up := 0
	for _, h := range recs {
		if h.Status.Usable() {
			up++
		}
	}
	return float64(up) / float64(len(recs)) * 100, true
}

// AverageResponseTime averages the measured latencies (ms) in window,
// ignoring records without one. ok is false when none were measured.
func (hs *History) AverageResponseTime(url string, window time.Duration) (ms float64, ok bool) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	var sum float64
	n := 0
	for _, h := range hs.window(url, window) {
		if h.ResponseTimeMs != nil {
			sum += *h.ResponseTimeMs
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
