package health

import (
	"context"
	"fmt"
	"time"
)

// Status is the health of an endpoint or component.
//
// Only Healthy and Degraded count as usable. The remaining values say why a
// target is not usable.
type Status int

const (
	// StatusHealthy indicates the endpoint answered quickly.
	StatusHealthy Status = iota
	// StatusDegraded indicates the endpoint answered, but slowly.
	StatusDegraded
	// StatusUnhealthy indicates the endpoint answered with an error, or too
	// slowly to be useful.
	StatusUnhealthy
	// StatusTimeout indicates the probe's deadline passed.
	StatusTimeout
	// StatusUnreachable indicates a transport fault (DNS, refused, reset).
	StatusUnreachable
	// StatusAuthRequired is an HTTP 401 answer.
	StatusAuthRequired
	// StatusAuthFailed is an HTTP 403 answer.
	StatusAuthFailed
	// StatusSSLError indicates the TLS handshake failed.
	StatusSSLError
	// StatusUnknown is the zero-information state.
	StatusUnknown
)

var statusNames = [...]string{
	StatusHealthy:      "healthy",
	StatusDegraded:     "degraded",
	StatusUnhealthy:    "unhealthy",
	StatusTimeout:      "timeout",
	StatusUnreachable:  "unreachable",
	StatusAuthRequired: "auth_required",
	StatusAuthFailed:   "auth_failed",
	StatusSSLError:     "ssl_error",
	StatusUnknown:      "unknown",
}

// String returns the string representation of the status.
func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name written by MarshalText.
func (s *Status) UnmarshalText(b []byte) error {
	for c := range statusNames {
		if statusNames[c] == string(b) {
			*s = Status(c)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownStatus, b)
}

// Usable reports whether queries can be sent to a target in this state.
func (s Status) Usable() bool {
	return s == StatusHealthy || s == StatusDegraded
}

// Result contains the outcome of a health check.
type Result struct {
	// Status is the health status.
	Status Status

	// Message provides additional context about the status.
	Message string

	// Details contains arbitrary metadata about the check.
	Details map[string]any

	// Duration is how long the check took.
	Duration time.Duration

	// Timestamp is when the check was performed.
	Timestamp time.Time

	// Error is the error if the check failed.
	Error error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{
		Status:    StatusHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{
		Status:    StatusDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{
		Status:    StatusUnhealthy,
		Message:   message,
		Error:     err,
		Timestamp: time.Now(),
	}
}

// WithDetails adds details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithDuration sets the duration on a result.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

// Checker is the interface for health checks.
type Checker interface {
	// Name returns the name of this checker.
	Name() string

	// Check performs the health check and returns the result.
	Check(ctx context.Context) Result
}

// CheckerFunc is an adapter to allow ordinary functions to be used as Checkers.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a new CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name returns the name of this checker.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check performs the health check.
func (f *CheckerFunc) Check(ctx context.Context) Result {
	return f.fn(ctx)
}

// EndpointChecker probes one SPARQL endpoint through a Pinger so endpoints
// can be registered with an Aggregator next to any other Checker.
type EndpointChecker struct {
	pinger     *Pinger
	url        string
	checkQuery string
}

// NewEndpointChecker creates a checker for url. An empty checkQuery uses
// the pinger's default probe.
func NewEndpointChecker(p *Pinger, url, checkQuery string) *EndpointChecker {
	return &EndpointChecker{pinger: p, url: url, checkQuery: checkQuery}
}

// Name returns the endpoint URL.
func (c *EndpointChecker) Name() string {
	return c.url
}

// Check pings the endpoint.
func (c *EndpointChecker) Check(ctx context.Context) Result {
	eh := c.pinger.Ping(ctx, c.url, c.checkQuery, nil)

	details := map[string]any{
		"status_code": eh.StatusCode,
	}
	if eh.ResponseTimeMs != nil {
		details["response_time_ms"] = *eh.ResponseTimeMs
	}
	if eh.SSLValid != nil {
		details["ssl_valid"] = *eh.SSLValid
	}
	if eh.SSLExpiry != nil {
		details["ssl_expiry"] = eh.SSLExpiry.UTC().Format(time.RFC3339)
	}
	if len(eh.Capabilities) > 0 {
		details["capabilities"] = eh.Capabilities
	}

	var err error
	if eh.ErrorMessage != "" && !eh.Status.Usable() {
		err = &ProbeError{URL: eh.EndpointURL, Status: eh.Status, Message: eh.ErrorMessage}
	}

	return Result{
		Status:    eh.Status,
		Message:   eh.Summary(),
		Details:   details,
		Timestamp: eh.Timestamp,
		Error:     err,
	}
}
