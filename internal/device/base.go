package device

import (
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/cloudlink-core/internal/event"
)

// Namespaces understood by every device handle.
const (
	NamespaceSystemOnline  = "Appliance.System.Online"
	NamespaceToggleX       = "Appliance.Control.ToggleX"
	NamespaceToggle        = "Appliance.Control.Toggle"
	NamespaceHubPrefix     = "Appliance.Hub."
	NamespaceHubOnline     = "Appliance.Hub.Online"
	NamespaceHubToggleX    = "Appliance.Hub.ToggleX"
	NamespaceHubBattery    = "Appliance.Hub.Battery"
	NamespaceHubTempHum    = "Appliance.Hub.Sensor.TempHum"
	NamespaceHubMts100Temp = "Appliance.Hub.Mts100.Temperature"
)

// Request methods.
const (
	MethodGet = "GET"
	MethodSet = "SET"
)

// base holds the state shared by every handle implementation.
//
// The embedding type sets self after construction so that events carry the
// full handle rather than the embedded base.
type base struct {
	id        string
	uuid      string
	name      string
	kind      string
	caps      []Capability
	requester Requester
	bus       *event.Bus
	logger    Logger
	self      Handle

	mu         sync.RWMutex
	online     bool
	state      map[string]any
	descriptor Descriptor
}

func newBase(id, uuid, kind string, desc Descriptor, req Requester, logger Logger, caps ...Capability) base {
	if logger == nil {
		logger = noopLogger{}
	}
	bus := event.NewBus()
	bus.SetLogger(logger)
	return base{
		id:         id,
		uuid:       uuid,
		name:       desc.Name(),
		kind:       kind,
		caps:       caps,
		requester:  req,
		bus:        bus,
		logger:     logger,
		online:     desc.IsOnline(),
		state:      make(map[string]any),
		descriptor: desc.Clone(),
	}
}

// ID returns the registry identity.
func (b *base) ID() string { return b.id }

// UUID returns the cloud UUID of the device, or of its hub for sub-devices.
func (b *base) UUID() string { return b.uuid }

// Name returns the user-assigned name.
func (b *base) Name() string { return b.name }

// Type returns the device type tag, such as "mss310".
func (b *base) Type() string { return b.kind }

// IsOnline reports the last known online flag.
func (b *base) IsOnline() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.online
}

// Capabilities returns a copy of the declared capabilities.
func (b *base) Capabilities() []Capability {
	return slices.Clone(b.caps)
}

// HasCapability reports whether c is declared.
func (b *base) HasCapability(c Capability) bool {
	return slices.Contains(b.caps, c)
}

// RegisterEventHandler adds h to the handle's own event bus.
func (b *base) RegisterEventHandler(h event.Handler) bool {
	return b.bus.Register(h)
}

// UnregisterEventHandler removes h from the handle's own event bus.
func (b *base) UnregisterEventHandler(h event.Handler) bool {
	return b.bus.Unregister(h)
}

// State returns a copy of the last known state.
func (b *base) State() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return deepCopyMap(b.state)
}

// Descriptor returns a copy of the descriptor the handle was built from.
func (b *base) Descriptor() Descriptor {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.descriptor.Clone()
}

// setOnline records the online flag and fires DeviceOnlineEvent on change.
func (b *base) setOnline(online bool) {
	b.mu.Lock()
	changed := b.online != online
	b.online = online
	b.mu.Unlock()

	if !changed {
		return
	}
	b.logger.Debug("device online status changed", "device", b.id, "online", online)
	b.bus.Fire(event.DeviceOnlineEvent{
		Device: b.self,
		Online: online,
		Time:   time.Now().UTC(),
	})
}

// mergeState merges values into the state and fires DeviceStateEvent.
func (b *base) mergeState(namespace string, values map[string]any) {
	if len(values) == 0 {
		return
	}

	b.mu.Lock()
	for k, v := range values {
		b.state[k] = deepCopyValue(v)
	}
	b.mu.Unlock()

	b.bus.Fire(event.DeviceStateEvent{
		Device:    b.self,
		Namespace: namespace,
		State:     deepCopyMap(values),
		Time:      time.Now().UTC(),
	})
}

// handleSystemOnline applies an Appliance.System.Online payload:
//
//	{"online": {"status": 1}}
func (b *base) handleSystemOnline(payload json.RawMessage) bool {
	var body struct {
		Online struct {
			Status *int `json:"status"`
		} `json:"online"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Online.Status == nil {
		b.logger.Warn("malformed online notification", "device", b.id, "error", err)
		return false
	}
	b.setOnline(*body.Online.Status == StatusOnline)
	return true
}

// Generic is a handle for a device type with no specialised behaviour.
// It tracks the online flag only.
type Generic struct {
	base
}

func newGeneric(id, uuid, kind string, desc Descriptor, req Requester, logger Logger, caps ...Capability) *Generic {
	g := &Generic{base: newBase(id, uuid, kind, desc, req, logger, caps...)}
	g.self = g
	return g
}

// HandlePushNotification implements Handle.
func (g *Generic) HandlePushNotification(namespace string, payload json.RawMessage, _ bool) bool {
	if namespace == NamespaceSystemOnline {
		return g.handleSystemOnline(payload)
	}
	g.logger.Debug("unhandled namespace", "device", g.id, "namespace", namespace)
	return false
}

// flag converts a numeric 0/1 JSON value to a bool.
func flag(v any) (bool, bool) {
	switch n := v.(type) {
	case float64:
		return n != 0, true
	case int:
		return n != 0, true
	case bool:
		return n, true
	default:
		return false, false
	}
}

// onOff converts a bool to the numeric form used on the wire.
func onOff(on bool) int {
	if on {
		return 1
	}
	return 0
}
