package device

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/nerrad567/cloudlink-core/internal/event"
)

// Handle is the in-process representation of a cloud device.
//
// A handle is built once per discovered device and is the single object the
// registry hands out for that identity for the rest of the session.
type Handle interface {
	event.Source

	// UUID returns the cloud UUID. For sub-devices this is the parent hub's UUID.
	UUID() string
	IsOnline() bool
	Capabilities() []Capability
	HasCapability(c Capability) bool

	// HandlePushNotification applies an asynchronous notification addressed to
	// this device. It returns true if the namespace was understood.
	HandlePushNotification(namespace string, payload json.RawMessage, fromSelf bool) bool

	RegisterEventHandler(h event.Handler) bool
	UnregisterEventHandler(h event.Handler) bool
}

// Hub is a device that relays notifications for sub-devices paired to it.
type Hub interface {
	Handle

	// AttachSubDevice makes sub receive the hub's fan-out notifications.
	// It returns false if a sub-device with the same ID is already attached.
	AttachSubDevice(sub Child) bool

	// SubDevices returns a snapshot of the attached sub-devices.
	SubDevices() []Child
}

// Child is a sub-device reachable only through its hub.
type Child interface {
	Handle

	SubDeviceID() string
	Hub() Hub

	// HandleHubNotification applies one entry of a hub fan-out payload.
	HandleHubNotification(namespace string, entry map[string]any) bool
}

// Requester sends a command to a device over the push channel and waits for
// the correlated response.
type Requester interface {
	Request(ctx context.Context, uuid, method, namespace string, payload any) (json.RawMessage, error)
}

// SubDeviceKey returns the registry identity of a sub-device.
func SubDeviceKey(hubUUID, subDeviceID string) string {
	return hubUUID + ":" + subDeviceID
}

// Capability is a declared marker of what a device can do.
type Capability string

// Capability constants.
const (
	CapToggle     Capability = "toggle"
	CapLight      Capability = "light"
	CapHub        Capability = "hub"
	CapSubDevice  Capability = "sub_device"
	CapThermostat Capability = "thermostat"
	CapSensor     Capability = "sensor"
	CapBattery    Capability = "battery"
)

// AllCapabilities returns all valid capability values.
func AllCapabilities() []Capability {
	return []Capability{
		CapToggle, CapLight, CapHub, CapSubDevice, CapThermostat, CapSensor, CapBattery,
	}
}

// ParseCapability converts s to a Capability.
// Returns ErrInvalidCapability if s is not a known capability.
func ParseCapability(s string) (Capability, error) {
	for _, c := range AllCapabilities() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", ErrInvalidCapability
}

// Online status values reported by the cloud device list.
const (
	StatusNotOnline = 0
	StatusOnline    = 1
	StatusOffline   = 2
	StatusUpgrading = 3
)

// Descriptor is the raw attribute record returned by the cloud device list.
//
// Top-level devices carry "uuid" and "deviceType"; sub-devices carry
// "subDeviceId" and "subDeviceType".
type Descriptor map[string]any

// String returns the string value of key, or "" if it is absent or not a string.
func (d Descriptor) String(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Int returns the integer value of key and whether it was present and numeric.
func (d Descriptor) Int(key string) (int, bool) {
	switch v := d[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// UUID returns the "uuid" attribute.
func (d Descriptor) UUID() string { return d.String("uuid") }

// DeviceType returns the "deviceType" attribute.
func (d Descriptor) DeviceType() string { return d.String("deviceType") }

// SubDeviceID returns the "subDeviceId" attribute.
func (d Descriptor) SubDeviceID() string { return d.String("subDeviceId") }

// SubDeviceType returns the "subDeviceType" attribute.
func (d Descriptor) SubDeviceType() string { return d.String("subDeviceType") }

// IsTopLevel reports whether d describes a directly connected device.
func (d Descriptor) IsTopLevel() bool {
	return d.DeviceType() != "" && d.UUID() != ""
}

// IsSubDevice reports whether d describes a device paired to a hub.
func (d Descriptor) IsSubDevice() bool {
	return d.SubDeviceType() != "" && d.SubDeviceID() != ""
}

// Name returns the human-readable name, falling back through the name
// attributes the cloud uses for devices and sub-devices.
func (d Descriptor) Name() string {
	for _, key := range []string{"devName", "subDeviceName", "name"} {
		if v := d.String(key); v != "" {
			return v
		}
	}
	return ""
}

// OnlineStatus returns the "onlineStatus" attribute and whether it was present.
func (d Descriptor) OnlineStatus() (int, bool) {
	return d.Int("onlineStatus")
}

// IsOnline reports whether the descriptor marks the device as online.
func (d Descriptor) IsOnline() bool {
	status, ok := d.OnlineStatus()
	return ok && status == StatusOnline
}

// Clone returns a deep copy of d.
func (d Descriptor) Clone() Descriptor {
	return Descriptor(deepCopyMap(d))
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}

// Info is the JSON projection of a handle used by the status API and audit trail.
type Info struct {
	ID           string         `json:"id"`
	UUID         string         `json:"uuid"`
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	Online       bool           `json:"online"`
	Capabilities []Capability   `json:"capabilities"`
	HubID        string         `json:"hub_id,omitempty"`
	SubDevices   []string       `json:"sub_devices,omitempty"`
	State        map[string]any `json:"state,omitempty"`
}

// stateReporter is implemented by handles that expose their last known state.
type stateReporter interface {
	State() map[string]any
}

// Describe builds the Info projection of h.
func Describe(h Handle) Info {
	info := Info{
		ID:           h.ID(),
		UUID:         h.UUID(),
		Name:         h.Name(),
		Type:         h.Type(),
		Online:       h.IsOnline(),
		Capabilities: h.Capabilities(),
	}
	if c, ok := h.(Child); ok && c.Hub() != nil {
		info.HubID = c.Hub().ID()
	}
	if hub, ok := h.(Hub); ok {
		for _, sub := range hub.SubDevices() {
			info.SubDevices = append(info.SubDevices, sub.ID())
		}
	}
	if s, ok := h.(stateReporter); ok {
		info.State = s.State()
	}
	return info
}
