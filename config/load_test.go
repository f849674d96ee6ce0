package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
executor:
  default_timeout: 10s
  max_concurrent: 8
  headers:
    X-Client: sparqlctl
  breaker:
    max_failures: 2
federation:
  strategy: intersection
  fail_on_error: true
pinger:
  method: head
  retry_attempts: 5
rate_limit:
  rate: 2.5
  burst: 3
recovery:
  max_retries: 4
  retry_delay: 250ms
  enable_fallback: false
cache:
  enabled: true
  default_ttl: 1m
endpoints:
  - url: https://dbpedia.org/sparql
    name: dbpedia
    timeout: 20s
    rate_limit: 1
  - url: https://private.example.org/sparql
    name: private
    auth_required: true
    username: alice
    password: ${SPARQL_TEST_PASSWORD}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "sparqlops.yaml", sampleYAML)

	cfg, err := Load(path, "SPARQLOPS_TEST_")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Executor.DefaultTimeout)
	assert.Equal(t, 8, cfg.Executor.MaxConcurrent)
	assert.Equal(t, "sparqlctl", cfg.Executor.Headers["x-client"])
	assert.Equal(t, 2, cfg.Executor.Breaker.MaxFailures)
	assert.Equal(t, 30*time.Second, cfg.Executor.Breaker.ResetTimeout, "unset keys keep defaults")
	assert.Equal(t, "intersection", cfg.Federation.Strategy)
	assert.True(t, cfg.Federation.FailOnError)
	assert.True(t, cfg.Federation.Parallel)
	assert.Equal(t, "head", cfg.Pinger.Method)
	assert.Equal(t, 5, cfg.Pinger.RetryAttempts)
	assert.InDelta(t, 2.5, cfg.RateLimit.Rate, 1e-9)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
	assert.Equal(t, 4, cfg.Recovery.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Recovery.RetryDelay)
	assert.False(t, cfg.Recovery.EnableFallback)
	assert.True(t, cfg.Recovery.EnableAutoOptimization)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Minute, cfg.Cache.Policy.DefaultTTL)
	assert.Equal(t, time.Hour, cfg.Cache.Policy.MaxTTL)

	require.Len(t, cfg.Endpoints, 2)
	assert.Equal(t, "dbpedia", cfg.Endpoints[0].Name)
	assert.Equal(t, 20*time.Second, cfg.Endpoints[0].Timeout)
	assert.InDelta(t, 1.0, cfg.Endpoints[0].RateLimit, 1e-9)
	assert.True(t, cfg.Endpoints[1].AuthRequired)
	assert.Equal(t, "alice", cfg.Endpoints[1].Username)
	assert.Equal(t, "${SPARQL_TEST_PASSWORD}", cfg.Endpoints[1].Password, "secrets resolve later")
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "sparqlops.yaml", sampleYAML)
	t.Setenv("SPARQLOPS_TEST_EXECUTOR__MAX_CONCURRENT", "16")
	t.Setenv("SPARQLOPS_TEST_RECOVERY__RETRY_DELAY", "2s")
	t.Setenv("SPARQLOPS_TEST_OBSERVE__LOGGING__LEVEL", "debug")
	t.Setenv("SPARQLOPS_TEST_PINGER__SKIP_TLS_CHECK", "true")

	cfg, err := Load(path, "SPARQLOPS_TEST_")
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Executor.MaxConcurrent)
	assert.Equal(t, 2*time.Second, cfg.Recovery.RetryDelay)
	assert.Equal(t, "debug", cfg.Observe.Logging.Level)
	assert.True(t, cfg.Pinger.SkipTLSCheck)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("", "SPARQLOPS_TEST_NOFILE_")
	require.NoError(t, err)
	assert.Equal(t, Default().Executor, cfg.Executor)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
		assert.ErrorIs(t, err, ErrRead)
	})

	t.Run("bad value", func(t *testing.T) {
		path := writeFile(t, "bad.yaml", "rate_limit:\n  rate: 0\n")
		_, err := Load(path, "SPARQLOPS_TEST_")
		assert.ErrorIs(t, err, ErrInvalidRate)
	})

	t.Run("json", func(t *testing.T) {
		path := writeFile(t, "cfg.json", `{"endpoints":[{"name":"x"}]}`)
		_, err := Load(path, "SPARQLOPS_TEST_")
		assert.ErrorIs(t, err, ErrMissingURL)
	})
}

func TestApplyEnv(t *testing.T) {
	v := viper.New()
	applyEnv(v, "app", []string{
		"APP_POOL__MAX_CONNECTIONS=7",
		"APP_=ignored",
		"OTHER_POOL__MAX_CONNECTIONS=9",
		"PATH=/usr/bin",
	})

	assert.Equal(t, "7", v.GetString("pool.max_connections"))
	assert.Len(t, v.AllKeys(), 1)
}
