package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/sparqlops/sparql"
)

type countingExecutor struct {
	calls  int
	result sparql.QueryResult
}

func (c *countingExecutor) execute(_ context.Context, _ Request) sparql.QueryResult {
	c.calls++
	return c.result
}

func oneRow() sparql.QueryResult {
	return sparql.NewSuccess([]string{"s"}, []sparql.Row{{
		"s": {Variable: "s", Value: "http://dbpedia.org/resource/Berlin", Kind: sparql.KindURI},
	}}, 40*time.Millisecond)
}

var selectReq = Request{
	Endpoint: "https://dbpedia.org/sparql",
	Query:    "SELECT ?s WHERE { ?s a <http://dbpedia.org/ontology/City> } LIMIT 1",
}

func TestMiddleware_CacheHit(t *testing.T) {
	mw := NewMiddleware(NewMemoryCache(DefaultPolicy()), nil, DefaultPolicy(), nil)
	exec := &countingExecutor{result: oneRow()}
	ctx := context.Background()

	first, hit := mw.Execute(ctx, selectReq, exec.execute)
	if hit || !first.OK() {
		t.Fatalf("first call: hit=%v status=%v", hit, first.Status)
	}

	second, hit := mw.Execute(ctx, selectReq, exec.execute)
	if !hit {
		t.Fatal("second call should hit")
	}
	if exec.calls != 1 {
		t.Errorf("executor called %d times, want 1", exec.calls)
	}
	if second.RowCount != 1 || second.Bindings[0]["s"] != first.Bindings[0]["s"] {
		t.Errorf("cached result differs: %+v", second)
	}
	if second.Metadata["cache_hit"] != true {
		t.Error("cached result should be marked")
	}

	if got := mw.Stats(); got != (Stats{Hits: 1, Misses: 1}) {
		t.Errorf("Stats = %+v", got)
	}
}

func TestMiddleware_UpdatesBypassCache(t *testing.T) {
	mw := NewMiddleware(NewMemoryCache(DefaultPolicy()), nil, DefaultPolicy(), nil)
	exec := &countingExecutor{result: sparql.NewSuccess(nil, nil, 0)}
	req := Request{Endpoint: selectReq.Endpoint, Query: "INSERT DATA { <a> <b> <c> }"}

	for i := 0; i < 2; i++ {
		if _, hit := mw.Execute(context.Background(), req, exec.execute); hit {
			t.Error("update request served from cache")
		}
	}
	if exec.calls != 2 {
		t.Errorf("calls = %d, want 2", exec.calls)
	}
	if mw.Stats().Skipped != 2 {
		t.Errorf("Skipped = %d", mw.Stats().Skipped)
	}
}

func TestMiddleware_FailuresNotCached(t *testing.T) {
	mw := NewMiddleware(NewMemoryCache(DefaultPolicy()), nil, DefaultPolicy(), nil)
	exec := &countingExecutor{result: sparql.NewFailure(errors.New("boom"), 0)}

	mw.Execute(context.Background(), selectReq, exec.execute)
	mw.Execute(context.Background(), selectReq, exec.execute)

	if exec.calls != 2 {
		t.Errorf("calls = %d, failures must not be cached", exec.calls)
	}
}

func TestMiddleware_NoCachePolicy(t *testing.T) {
	mw := NewMiddleware(NewMemoryCache(DefaultPolicy()), nil, NoCachePolicy(), nil)
	exec := &countingExecutor{result: oneRow()}

	mw.Execute(context.Background(), selectReq, exec.execute)
	mw.Execute(context.Background(), selectReq, exec.execute)

	if exec.calls != 2 {
		t.Errorf("calls = %d, want 2", exec.calls)
	}
}

func TestMiddleware_NilCache(t *testing.T) {
	mw := NewMiddleware(nil, nil, DefaultPolicy(), nil)
	exec := &countingExecutor{result: oneRow()}

	if res, hit := mw.Execute(context.Background(), selectReq, exec.execute); hit || !res.OK() {
		t.Errorf("nil cache: hit=%v status=%v", hit, res.Status)
	}
}

func TestMiddleware_CustomSkipRule(t *testing.T) {
	skipAll := func(Request) bool { return true }
	mw := NewMiddleware(NewMemoryCache(DefaultPolicy()), nil, DefaultPolicy(), skipAll)
	exec := &countingExecutor{result: oneRow()}

	mw.Execute(context.Background(), selectReq, exec.execute)
	mw.Execute(context.Background(), selectReq, exec.execute)

	if exec.calls != 2 {
		t.Errorf("calls = %d, want 2", exec.calls)
	}
}

func TestMiddleware_CorruptEntryIsDropped(t *testing.T) {
	mem := NewMemoryCache(DefaultPolicy())
	mw := NewMiddleware(mem, nil, DefaultPolicy(), nil)
	key, _ := NewDefaultKeyer().Key(selectReq)
	_ = mem.Set(context.Background(), key, []byte("not json"), time.Minute)

	exec := &countingExecutor{result: oneRow()}
	if _, hit := mw.Execute(context.Background(), selectReq, exec.execute); hit {
		t.Error("corrupt entry served")
	}
	if exec.calls != 1 {
		t.Errorf("calls = %d", exec.calls)
	}
	if _, hit := mw.Execute(context.Background(), selectReq, exec.execute); !hit {
		t.Error("fresh result should have replaced the corrupt entry")
	}
}

func TestDefaultSkipRule(t *testing.T) {
	tests := map[string]bool{
		"SELECT * WHERE { ?s ?p ?o }":               false,
		"ASK { ?s ?p ?o }":                          false,
		"DELETE WHERE { ?s ?p ?o }":                 true,
		"PREFIX ex: <http://ex/> INSERT DATA {}":    true,
		"# comment\nCLEAR GRAPH <http://ex/g>":      true,
		"CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }": false,
	}
	for q, want := range tests {
		if got := DefaultSkipRule(Request{Query: q}); got != want {
			t.Errorf("DefaultSkipRule(%q) = %v, want %v", q, got, want)
		}
	}
}
