package session

import "errors"

// Domain errors for the session manager.
var (
	// ErrAlreadyStarted is returned by Start when the manager is already
	// started or starting.
	ErrAlreadyStarted = errors.New("session: already started")

	// ErrNotStarted is returned by Stop when the manager was never started.
	ErrNotStarted = errors.New("session: not started")

	// ErrStopped is returned by Start after the manager has been stopped.
	ErrStopped = errors.New("session: manager stopped")

	// ErrMissingDependency is returned by New when a collaborator is nil.
	ErrMissingDependency = errors.New("session: missing dependency")
)
