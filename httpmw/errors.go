package httpmw

import "errors"

var (
	// ErrUnauthorized is returned by a Guard when the request's credentials
	// are missing or invalid.
	ErrUnauthorized = errors.New("httpmw: unauthorized")

	// ErrNilEngine is returned when a nil engine is supplied.
	ErrNilEngine = errors.New("httpmw: nil engine")

	// ErrNilHandler is returned when a nil handler is supplied.
	ErrNilHandler = errors.New("httpmw: nil handler")

	// ErrNoKeys is returned when an API key guard is created without keys.
	ErrNoKeys = errors.New("httpmw: no API keys configured")

	// ErrNoSecret is returned when a JWT guard is created without a secret.
	ErrNoSecret = errors.New("httpmw: no JWT secret configured")
)
