package sparql

import (
	"time"

	"github.com/jonwraymond/sparqlops/auth"
)

// EndpointInfo describes a SPARQL query service. Treat it as immutable once
// handed to the executor or pinger.
type EndpointInfo struct {
	URL  string `json:"url" mapstructure:"url"`
	Name string `json:"name,omitempty" mapstructure:"name"`

	// Timeout overrides the executor default for queries to this endpoint.
	Timeout time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`

	// RateLimit is the politeness limit in requests per second; zero means
	// unlimited.
	RateLimit float64 `json:"rate_limit,omitempty" mapstructure:"rate_limit"`

	AuthRequired bool              `json:"auth_required,omitempty" mapstructure:"auth_required"`
	Metadata     map[string]string `json:"metadata,omitempty" mapstructure:"metadata"`
}

// DisplayName returns Name, or URL when no name was given.
func (e EndpointInfo) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.URL
}

// ConnectionConfig overrides transport and retry defaults for one call.
type ConnectionConfig struct {
	Timeout           time.Duration
	VerifySSL         bool
	RetryAttempts     int
	RetryDelay        time.Duration
	BackoffMultiplier float64
	Headers           map[string]string
	Credentials       *auth.Credentials
}

// DefaultConnectionConfig returns the defaults used when a caller passes nil.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Timeout:           30 * time.Second,
		VerifySSL:         true,
		RetryAttempts:     3,
		RetryDelay:        time.Second,
		BackoffMultiplier: 2.0,
	}
}
