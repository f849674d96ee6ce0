package executor

import "errors"

var (
	// ErrNoEndpoints is reported when a federated query lists no endpoints.
	ErrNoEndpoints = errors.New("executor: no endpoints")

	// ErrInvalidStrategy is reported for an unknown merge strategy.
	ErrInvalidStrategy = errors.New("executor: invalid merge strategy")

	// ErrAllEndpointsFailed is reported when no federated endpoint answered.
	ErrAllEndpointsFailed = errors.New("executor: all endpoints failed")

	// ErrFederationAborted is reported when FailOnError stops a federation.
	ErrFederationAborted = errors.New("executor: federation aborted")

	// ErrResponseTooLarge is reported when a body exceeds MaxResponseBytes.
	ErrResponseTooLarge = errors.New("executor: response too large")
)
