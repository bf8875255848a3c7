package mqtt

import "sync"

// ConnectionState is the state of the push channel.
type ConnectionState string

// Connection states, in the order a healthy client passes through them.
const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateSubscribed   ConnectionState = "subscribed"
)

// String implements fmt.Stringer.
func (s ConnectionState) String() string { return string(s) }

// stateTracker holds the connection state and notifies a listener on change.
// The listener runs after the lock is released.
type stateTracker struct {
	mu       sync.Mutex
	state    ConnectionState
	listener func(ConnectionState)
}

func newStateTracker() *stateTracker {
	return &stateTracker{state: StateDisconnected}
}

func (t *stateTracker) get() ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *stateTracker) setListener(fn func(ConnectionState)) {
	t.mu.Lock()
	t.listener = fn
	t.mu.Unlock()
}

// set records s and returns true if it differs from the previous state.
func (t *stateTracker) set(s ConnectionState) bool {
	t.mu.Lock()
	if t.state == s {
		t.mu.Unlock()
		return false
	}
	t.state = s
	listener := t.listener
	t.mu.Unlock()

	if listener != nil {
		listener(s)
	}
	return true
}
