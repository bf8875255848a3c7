package event

import "time"

// Kind identifies the type of a lifecycle event.
type Kind string

// Event kinds raised by the session manager, the transport, and device handles.
const (
	KindDeviceOnline Kind = "device.online_status"
	KindConnection   Kind = "cloud.connection_state"
	KindDeviceState  Kind = "device.state_changed"
)

// Event is a lifecycle notification delivered to registered handlers.
type Event interface {
	Kind() Kind
}

// Source is the view of a device handle carried by device events.
// Handlers that need the full handle can type-assert it to device.Handle.
type Source interface {
	ID() string
	Name() string
	Type() string
}

// DeviceOnlineEvent reports that a device is tracked with the given online flag,
// or that its online flag changed.
type DeviceOnlineEvent struct {
	Device Source
	Online bool
	// Discovered is true when the event announces a device that was just added to the registry.
	Discovered bool
	Time       time.Time
}

// Kind implements Event.
func (DeviceOnlineEvent) Kind() Kind { return KindDeviceOnline }

// ConnectionEvent reports a change of the push channel connection state.
type ConnectionEvent struct {
	State string
	Time  time.Time
}

// Kind implements Event.
func (ConnectionEvent) Kind() Kind { return KindConnection }

// DeviceStateEvent reports a state change pushed by a device, such as a
// toggle or a sensor reading.
type DeviceStateEvent struct {
	Device    Source
	Namespace string
	State     map[string]any
	Time      time.Time
}

// Kind implements Event.
func (DeviceStateEvent) Kind() Kind { return KindDeviceState }
