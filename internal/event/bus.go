package event

import (
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Bus.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bus is an ordered, concurrency-safe list of event handlers.
//
// Fire delivers to a snapshot of the handlers taken at call time, in
// registration order. The lock is never held while a handler runs, so a
// handler may register, unregister, or fire further events.
type Bus struct {
	mu       sync.Mutex
	handlers []Handler
	logger   Logger
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{logger: noopLogger{}}
}

// SetLogger sets the logger used to report handler failures.
func (b *Bus) SetLogger(logger Logger) {
	b.mu.Lock()
	b.logger = logger
	b.mu.Unlock()
}

// Register appends h to the handler list.
// It returns false, and does nothing, if h is nil or already registered.
func (b *Bus) Register(h Handler) bool {
	if h == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.handlers {
		if sameHandler(existing, h) {
			return false
		}
	}
	b.handlers = append(b.handlers, h)
	return true
}

// Unregister removes h from the handler list.
// It returns false if h was not registered.
func (b *Bus) Unregister(h Handler) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, existing := range b.handlers {
		if sameHandler(existing, h) {
			// Copy instead of re-slicing in place so snapshots handed out
			// earlier never observe the removal.
			next := make([]Handler, 0, len(b.handlers)-1)
			next = append(next, b.handlers[:i]...)
			next = append(next, b.handlers[i+1:]...)
			b.handlers = next
			return true
		}
	}
	return false
}

// Contains reports whether h is currently registered.
func (b *Bus) Contains(h Handler) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.handlers {
		if sameHandler(existing, h) {
			return true
		}
	}
	return false
}

// Handlers returns a snapshot of the registered handlers in registration order.
func (b *Bus) Handlers() []Handler {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Handler, len(b.handlers))
	copy(out, b.handlers)
	return out
}

// Len returns the number of registered handlers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

// Fire delivers e to every handler registered at the time of the call.
//
// Each handler runs in isolation: an error or panic is logged and the next
// handler still runs. Fire never returns an error to its caller.
func (b *Bus) Fire(e Event) {
	b.mu.Lock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	logger := b.logger
	b.mu.Unlock()

	for _, h := range handlers {
		if err := invoke(h, e); err != nil {
			logger.Error("event handler failed",
				"kind", e.Kind(),
				"handler", fmt.Sprintf("%T", h),
				"error", err,
			)
		}
	}
}

// invoke calls h and converts a panic into an error.
func invoke(h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h.HandleEvent(e)
}
