package pool

import "errors"

// ErrInvalidURL is returned when an endpoint URL cannot be parsed.
var ErrInvalidURL = errors.New("pool: invalid endpoint url")
