package device

import (
	"strings"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
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

// Registry is the in-memory directory of device handles for one session.
//
// Each identity maps to exactly one handle. Entries are only ever added;
// nothing is persisted. Multi-step reads take a snapshot under the lock and
// evaluate predicates after releasing it, so no handle method or caller
// callback runs while the lock is held.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Handle // Handles by identity
	logger  Logger
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]Handle),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Get returns the handle stored under id.
func (r *Registry) Get(id string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.devices[id]
	return h, ok
}

// GetByName returns a handle whose name equals name, ignoring case.
// When several handles share a name, which one is returned is unspecified.
func (r *Registry) GetByName(name string) (Handle, bool) {
	for _, h := range r.All() {
		if strings.EqualFold(h.Name(), name) {
			return h, true
		}
	}
	return nil, false
}

// All returns a snapshot of every handle in unspecified order.
// The returned slice is owned by the caller.
func (r *Registry) All() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handle, 0, len(r.devices))
	for _, h := range r.devices {
		out = append(out, h)
	}
	return out
}

// Filter returns the handles for which keep returns true.
// keep runs without the registry lock held.
func (r *Registry) Filter(keep func(Handle) bool) []Handle {
	var out []Handle
	for _, h := range r.All() {
		if keep(h) {
			out = append(out, h)
		}
	}
	return out
}

// ByCapability returns the handles that declare capability c.
func (r *Registry) ByCapability(c Capability) []Handle {
	return r.Filter(func(h Handle) bool {
		return h.HasCapability(c)
	})
}

// ByType returns the handles whose type tag equals typeName, ignoring case.
func (r *Registry) ByType(typeName string) []Handle {
	return r.Filter(func(h Handle) bool {
		return strings.EqualFold(h.Type(), typeName)
	})
}

// InsertIfAbsent stores h under id unless the identity is already present.
//
// Returns:
//   - Handle: The handle stored under id after the call (h if inserted,
//     otherwise the existing handle)
//   - bool: true if h was inserted
func (r *Registry) InsertIfAbsent(id string, h Handle) (Handle, bool) {
	r.mu.Lock()
	if existing, ok := r.devices[id]; ok {
		r.mu.Unlock()
		return existing, false
	}
	r.devices[id] = h
	count := len(r.devices)
	r.mu.Unlock()

	r.logger.Info("device added", "id", id, "type", h.Type(), "name", h.Name(), "count", count)
	return h, true
}

// Count returns the number of handles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalDevices int                `json:"total_devices"`
	Online       int                `json:"online"`
	ByType       map[string]int     `json:"by_type"`
	ByCapability map[Capability]int `json:"by_capability"`
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	handles := r.All()

	stats := Stats{
		TotalDevices: len(handles),
		ByType:       make(map[string]int),
		ByCapability: make(map[Capability]int),
	}

	for _, h := range handles {
		if h.IsOnline() {
			stats.Online++
		}
		stats.ByType[strings.ToLower(h.Type())]++
		for _, c := range h.Capabilities() {
			stats.ByCapability[c]++
		}
	}

	return stats
}
