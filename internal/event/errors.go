package event

import "errors"

// ErrHandlerPanic wraps a panic recovered from an event handler.
var ErrHandlerPanic = errors.New("event: handler panicked")
