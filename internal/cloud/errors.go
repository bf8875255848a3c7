package cloud

import "errors"

// Domain errors for the cloud HTTP API.
var (
	// ErrAPIStatus is returned when the API answers with a non-zero apiStatus.
	ErrAPIStatus = errors.New("cloud: api error")

	// ErrUnauthorized is returned when the token is missing, expired, or the
	// login credentials are rejected.
	ErrUnauthorized = errors.New("cloud: unauthorized")

	// ErrNotLoggedIn is returned when a call needing a token is made before Login.
	ErrNotLoggedIn = errors.New("cloud: not logged in")

	// ErrUnexpectedResponse is returned when the HTTP response cannot be decoded.
	ErrUnexpectedResponse = errors.New("cloud: unexpected response")
)
