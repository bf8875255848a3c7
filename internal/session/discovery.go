package session

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/cloudlink-core/internal/device"
	"github.com/nerrad567/cloudlink-core/internal/event"
)

// Discover performs one discovery pass and returns a snapshot of the registry.
//
// For every descriptor returned by the discoverer:
//  1. Offline devices are skipped when onlineOnly is set
//  2. A handle is built unless the identity is already known
//  3. The handle is inserted if absent; a losing handle is discarded
//  4. For hubs, the hub's sub-devices are listed and handled the same way,
//     with the registry's hub handle as their parent
//
// Each newly inserted handle receives the current event handlers and one
// DeviceOnlineEvent is fired for it. Collaborator errors abort the pass and
// are returned wrapped; nothing is retried.
func (m *Manager) Discover(ctx context.Context, onlineOnly bool) ([]device.Handle, error) {
	descs, err := m.discoverer.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	for _, desc := range descs {
		if onlineOnly && !desc.IsOnline() {
			continue
		}

		h, err := m.handleDiscovered(desc, nil)
		if err != nil {
			return nil, err
		}

		hub, ok := h.(device.Hub)
		if !ok {
			continue
		}
		subs, err := m.discoverer.ListHubSubDevices(ctx, hub.UUID())
		if err != nil {
			return nil, fmt.Errorf("listing sub-devices of hub %s: %w", hub.UUID(), err)
		}
		for _, sub := range subs {
			if _, err := m.handleDiscovered(sub, hub); err != nil {
				return nil, err
			}
		}
	}

	return m.registry.All(), nil
}

// handleDiscovered classifies desc, builds its handle if the identity is new,
// and inserts it. It returns the registry's handle for the identity, or nil
// for a malformed descriptor.
func (m *Manager) handleDiscovered(desc device.Descriptor, parent device.Hub) (device.Handle, error) {
	var (
		id    string
		build func() (device.Handle, error)
	)

	switch {
	case desc.IsTopLevel():
		id = desc.UUID()
		build = func() (device.Handle, error) {
			return m.factory.BuildDevice(desc.DeviceType(), desc.UUID(), m.transport, desc)
		}
	case desc.IsSubDevice() && parent != nil:
		id = device.SubDeviceKey(parent.UUID(), desc.SubDeviceID())
		build = func() (device.Handle, error) {
			return m.factory.BuildSubDevice(desc.SubDeviceType(), desc.SubDeviceID(), parent, m.transport, desc)
		}
	default:
		m.logger.Warn("malformed descriptor: neither a device nor a sub-device of a known hub",
			"uuid", desc.UUID(),
			"sub_device_id", desc.SubDeviceID(),
		)
		return nil, nil
	}

	if existing, ok := m.registry.Get(id); ok {
		return existing, nil
	}

	h, err := build()
	if err != nil {
		return nil, fmt.Errorf("building handle for %s: %w", id, err)
	}

	stored, inserted := m.registry.InsertIfAbsent(id, h)
	if !inserted {
		m.logger.Debug("concurrent discovery won the insert; discarding handle", "id", id)
		return stored, nil
	}

	if child, ok := stored.(device.Child); ok && parent != nil {
		parent.AttachSubDevice(child)
	}
	m.attachHandlers(stored)

	m.bus.Fire(event.DeviceOnlineEvent{
		Device:     stored,
		Online:     stored.IsOnline(),
		Discovered: true,
		Time:       time.Now().UTC(),
	})

	return stored, nil
}

// attachHandlers gives a newly inserted handle the manager's handlers.
//
// RegisterEventHandler and UnregisterEventHandler walk the registry after
// updating the bus, so a call racing with this insert may have missed the
// handle. Reconciling against the bus after the first pass closes that gap:
// late registrations are added and handlers removed in the meantime are
// taken off again.
func (m *Manager) attachHandlers(h device.Handle) {
	seen := m.bus.Handlers()
	for _, eh := range seen {
		h.RegisterEventHandler(eh)
	}

	for _, eh := range m.bus.Handlers() {
		h.RegisterEventHandler(eh)
	}
	for _, eh := range seen {
		if !m.bus.Contains(eh) {
			h.UnregisterEventHandler(eh)
		}
	}
}
