package event

import "reflect"

// Handler receives lifecycle events.
//
// Handlers are invoked synchronously by Bus.Fire. A returned error is logged
// by the bus and never stops delivery to the remaining handlers.
type Handler interface {
	HandleEvent(e Event) error
}

// funcHandler adapts a plain function to Handler.
type funcHandler struct {
	fn func(Event) error
}

func (h *funcHandler) HandleEvent(e Event) error {
	return h.fn(e)
}

// NewHandler wraps fn as a Handler.
//
// Each call returns a distinct handler, so keep the returned value to
// unregister it later.
func NewHandler(fn func(Event) error) Handler {
	return &funcHandler{fn: fn}
}

// sameHandler reports whether a and b are the same registration.
// Handlers whose dynamic type is not comparable are never considered equal.
func sameHandler(a, b Handler) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil || !ta.Comparable() {
		return false
	}
	return a == b
}
