package pool

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/sparqlops/sparql"
)

func TestNew_Defaults(t *testing.T) {
	p := New(Config{})

	assert.Equal(t, 100, p.config.MaxConnections)
	assert.Equal(t, 20, p.config.MaxKeepalive)
	assert.Equal(t, DefaultUserAgent, p.UserAgent())
}

func TestGetClient_ReusesPerKey(t *testing.T) {
	p := New(Config{})

	a, err := p.GetClient("https://query.example.org/sparql", sparql.FormatJSON)
	require.NoError(t, err)
	b, err := p.GetClient("https://query.example.org/sparql", sparql.FormatJSON)
	require.NoError(t, err)
	c, err := p.GetClient("https://query.example.org/sparql", sparql.FormatCSV)
	require.NoError(t, err)
	d, err := p.GetClient("https://query.example.org/sparql", "")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c, "format is part of the key")
	assert.Same(t, a, d, "empty format means json")

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.Created)
	assert.Equal(t, int64(2), stats.Reused)
	assert.Equal(t, 2, stats.Active)
}

func TestGetClient_ConcurrentFirstUse(t *testing.T) {
	p := New(Config{})

	const n = 50
	clients := make([]*http.Client, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := p.GetClient("http://localhost:3030/ds/sparql", sparql.FormatJSON)
			if err == nil {
				clients[i] = c
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, clients[0], clients[i])
	}
	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Created)
	assert.Equal(t, int64(n-1), stats.Reused)
}

func TestGetClient_InvalidURL(t *testing.T) {
	p := New(Config{})

	for _, u := range []string{"", "not a url", "/relative/path", "://missing-scheme"} {
		_, err := p.GetClient(u, sparql.FormatJSON)
		assert.True(t, errors.Is(err, ErrInvalidURL), "url %q", u)
	}
}

func TestClose(t *testing.T) {
	p := New(Config{})

	before, err := p.GetClient("http://localhost:8890/sparql", sparql.FormatJSON)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "Close is idempotent")
	assert.Equal(t, 0, p.Stats().Active)

	after, err := p.GetClient("http://localhost:8890/sparql", sparql.FormatJSON)
	require.NoError(t, err)
	assert.NotSame(t, before, after)
}

func TestClient_SendsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	p := New(Config{UserAgent: "sparqlops-test/1"})
	c, err := p.GetClient(srv.URL, sparql.FormatJSON)
	require.NoError(t, err)

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "sparqlops-test/1", got)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "custom")
	resp, err = c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "custom", got)
}
