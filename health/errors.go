package health

import (
	"errors"
	"fmt"
)

var (
	// ErrCheckFailed indicates a health check failed.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout indicates a health check timed out.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrNoCheckers indicates no checkers are registered.
	ErrNoCheckers = errors.New("health: no checkers registered")

	// ErrUnknownStatus is returned when decoding a status name fails.
	ErrUnknownStatus = errors.New("health: unknown status")
)

// ProbeError describes an endpoint probe that did not end usable. It
// matches ErrCheckFailed with errors.Is.
type ProbeError struct {
	URL     string
	Status  Status
	Message string
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("health: %s is %s: %s", e.URL, e.Status, e.Message)
}

// Is reports ErrCheckFailed, and ErrCheckTimeout for timed out probes.
func (e *ProbeError) Is(target error) bool {
	switch target {
	case ErrCheckFailed:
		return true
	case ErrCheckTimeout:
		return e.Status == StatusTimeout
	}
	return false
}
