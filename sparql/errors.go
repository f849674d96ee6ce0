package sparql

import "errors"

// Sentinel errors for result decoding.
var (
	// ErrUnsupportedFormat is returned for formats a decoder cannot handle.
	ErrUnsupportedFormat = errors.New("sparql: unsupported result format")

	// ErrEmptyQuery is returned when a query string is blank.
	ErrEmptyQuery = errors.New("sparql: empty query")

	// ErrStreamClosed is returned by Next after Close.
	ErrStreamClosed = errors.New("sparql: stream closed")
)
