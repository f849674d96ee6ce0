package config

import "errors"

var (
	// ErrRead indicates the configuration file could not be read or decoded.
	ErrRead = errors.New("config: read failed")

	// ErrInvalidRate indicates a non-positive rate limit.
	ErrInvalidRate = errors.New("config: rate must be positive")

	// ErrInvalidBurst indicates a burst below one.
	ErrInvalidBurst = errors.New("config: burst must be at least 1")

	// ErrMissingURL indicates an endpoint without a URL.
	ErrMissingURL = errors.New("config: endpoint url is required")

	// ErrInvalidURL indicates an endpoint URL that is not absolute http(s).
	ErrInvalidURL = errors.New("config: endpoint url must be an absolute http or https url")

	// ErrDuplicateEndpoint indicates two endpoints sharing a name.
	ErrDuplicateEndpoint = errors.New("config: duplicate endpoint")

	// ErrUnknownEndpoint indicates a lookup for an endpoint not configured.
	ErrUnknownEndpoint = errors.New("config: unknown endpoint")

	// ErrInvalidProbeMethod indicates a probe method other than ask or head.
	ErrInvalidProbeMethod = errors.New("config: probe method must be ask or head")
)
