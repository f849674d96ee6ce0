package secret

import "errors"

var (
	// ErrMissingEnv is returned when a ${VAR} reference names an unset
	// variable.
	ErrMissingEnv = errors.New("secret: missing required environment variables")

	// ErrUnknownProvider is returned when a reference names a provider
	// that was never registered.
	ErrUnknownProvider = errors.New("secret: provider not registered")

	// ErrDuplicateProvider is returned when a factory name is registered
	// twice.
	ErrDuplicateProvider = errors.New("secret: provider already registered")

	// ErrInvalidRef is returned for malformed references.
	ErrInvalidRef = errors.New("secret: invalid reference")

	// ErrEmptyValue is returned by strict resolvers when a provider
	// yields an empty secret.
	ErrEmptyValue = errors.New("secret: empty value")

	// ErrNotFound is returned by providers when a reference does not
	// exist.
	ErrNotFound = errors.New("secret: not found")
)
