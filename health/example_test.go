package health_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/jonwraymond/sparqlops/health"
	"github.com/jonwraymond/sparqlops/sparql"
)

func ExampleClassify() {
	fmt.Println(health.Classify(200, 500*time.Millisecond))
	fmt.Println(health.Classify(200, 2*time.Second))
	fmt.Println(health.Classify(200, 6*time.Second))
	fmt.Println(health.Classify(401, 0))
	fmt.Println(health.Classify(403, 0))
	// Output:
	// healthy
	// degraded
	// unhealthy
	// auth_required
	// auth_failed
}

func ExamplePinger_Ping() {
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/sparql-results+json")
		_, _ = w.Write([]byte(`{"head":{},"boolean":true}`))
	}))
	defer endpoint.Close()

	pinger := health.NewPinger(health.PingerConfig{AutoRecord: true})
	cfg := sparql.DefaultConnectionConfig()

	h := pinger.Ping(context.Background(), endpoint.URL, "", &cfg)

	fmt.Println("Status:", h.Status)
	fmt.Println("HTTP:", h.StatusCode)
	fmt.Println("Recorded:", len(pinger.History().Records(endpoint.URL)))
	// Output:
	// Status: healthy
	// HTTP: 200
	// Recorded: 1
}

func ExamplePinger_PingMany() {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ok.Close()
	locked := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer locked.Close()

	pinger := health.NewPinger(health.PingerConfig{})
	cfg := sparql.DefaultConnectionConfig()

	for _, h := range pinger.PingMany(context.Background(), []string{locked.URL, ok.URL}, "", &cfg) {
		fmt.Println(h.Status)
	}
	// Output:
	// auth_required
	// healthy
}

func ExampleHistory_UptimePercentage() {
	hist := health.NewHistory()
	now := time.Now()
	for _, s := range []health.Status{health.StatusHealthy, health.StatusDegraded, health.StatusUnhealthy, health.StatusUnreachable} {
		hist.Record(health.EndpointHealth{EndpointURL: "https://dbpedia.org/sparql", Status: s, Timestamp: now}, 100)
	}

	pct, ok := hist.UptimePercentage("https://dbpedia.org/sparql", time.Hour)
	fmt.Println(pct, ok)

	_, ok = hist.UptimePercentage("https://query.wikidata.org/sparql", time.Hour)
	fmt.Println("wikidata has data:", ok)
	// Output:
	// 50 true
	// wikidata has data: false
}

func ExampleNewCheckerFunc() {
	checker := health.NewCheckerFunc("result-cache", func(ctx context.Context) health.Result {
		return health.Healthy("cache reachable")
	})

	result := checker.Check(context.Background())

	fmt.Println("Checker name:", checker.Name())
	fmt.Println("Status:", result.Status.String())
	// Output:
	// Checker name: result-cache
	// Status: healthy
}

func ExampleAggregator_OverallStatus() {
	agg := health.NewAggregator(health.AggregatorConfig{MinUsable: 1})

	results := map[string]health.Result{
		"https://dbpedia.org/sparql": health.Healthy("ok"),
	}
	fmt.Println("All healthy:", agg.OverallStatus(results))

	results["https://query.wikidata.org/sparql"] = health.Degraded("slow")
	fmt.Println("One degraded:", agg.OverallStatus(results))

	results["https://mirror.example.org/sparql"] = health.Result{Status: health.StatusTimeout}
	fmt.Println("One timed out:", agg.OverallStatus(results))
	// Output:
	// All healthy: healthy
	// One degraded: degraded
	// One timed out: degraded
}

func ExampleRegisterHandlers() {
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer endpoint.Close()

	pinger := health.NewPinger(health.PingerConfig{AutoRecord: true})
	agg := health.NewAggregator()
	agg.RegisterEndpoints(pinger, "", endpoint.URL)

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg, pinger.History())

	for _, path := range []string{"/healthz", "/readyz", "/health", "/health/endpoints"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		fmt.Printf("%s: %d\n", path, rec.Code)
	}
	// Output:
	// /healthz: 200
	// /readyz: 200
	// /health: 200
	// /health/endpoints: 200
}

func ExampleDetailedHandler() {
	agg := health.NewAggregator()
	agg.Register("executor", health.NewCheckerFunc("executor", func(ctx context.Context) health.Result {
		return health.Degraded("circuit half-open for 1 endpoint")
	}))

	rec := httptest.NewRecorder()
	health.DetailedHandler(agg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response health.HealthResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &response)
	fmt.Println("Status code:", rec.Code)
	fmt.Println("Overall status:", response.Status)
	// Output:
	// Status code: 200
	// Overall status: degraded
}
