package device

import (
	"encoding/json"
	"strings"
	"sync"
)

// HubDevice is a handle for a hub. Notifications in the Appliance.Hub.*
// namespaces carry per-sub-device entries keyed by "id"; the hub fans each
// entry out to the attached sub-device with that ID.
type HubDevice struct {
	base

	subMu sync.RWMutex
	subs  map[string]Child
	order []string
}

func newHub(uuid, kind string, desc Descriptor, req Requester, logger Logger) *HubDevice {
	h := &HubDevice{
		base: newBase(uuid, uuid, kind, desc, req, logger, CapHub),
		subs: make(map[string]Child),
	}
	h.self = h
	return h
}

// AttachSubDevice implements Hub.
func (h *HubDevice) AttachSubDevice(sub Child) bool {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	if _, exists := h.subs[sub.SubDeviceID()]; exists {
		return false
	}
	h.subs[sub.SubDeviceID()] = sub
	h.order = append(h.order, sub.SubDeviceID())
	return true
}

// SubDevices implements Hub. Sub-devices are returned in attach order.
func (h *HubDevice) SubDevices() []Child {
	h.subMu.RLock()
	defer h.subMu.RUnlock()

	out := make([]Child, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.subs[id])
	}
	return out
}

// SubDevice returns the attached sub-device with the given sub-device ID.
func (h *HubDevice) SubDevice(subDeviceID string) (Child, bool) {
	h.subMu.RLock()
	defer h.subMu.RUnlock()
	sub, ok := h.subs[subDeviceID]
	return sub, ok
}

// HandlePushNotification implements Handle.
func (h *HubDevice) HandlePushNotification(namespace string, payload json.RawMessage, _ bool) bool {
	if namespace == NamespaceSystemOnline {
		return h.handleSystemOnline(payload)
	}
	if !strings.HasPrefix(namespace, NamespaceHubPrefix) {
		h.logger.Debug("unhandled namespace", "device", h.id, "namespace", namespace)
		return false
	}

	entries, err := hubEntries(payload)
	if err != nil {
		h.logger.Warn("malformed hub notification", "device", h.id, "namespace", namespace, "error", err)
		return false
	}

	handled := false
	for _, entry := range entries {
		id := Descriptor(entry).String("id")
		sub, ok := h.SubDevice(id)
		if !ok {
			h.logger.Debug("notification for unknown sub-device", "hub", h.id, "sub_device", id)
			continue
		}
		if sub.HandleHubNotification(namespace, entry) {
			handled = true
		}
	}
	return handled
}

// hubEntries extracts every object carrying an "id" from the top-level
// arrays of a hub payload, for example:
//
//	{"togglex": [{"id": "01005A3B", "onoff": 1}]}
func hubEntries(payload json.RawMessage) ([]map[string]any, error) {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}

	var entries []map[string]any
	for _, v := range body {
		list, ok := v.([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if _, hasID := entry["id"]; hasID {
				entries = append(entries, entry)
			}
		}
	}
	return entries, nil
}
