package device

import (
	"context"
	"encoding/json"
	"fmt"
)

// SubDevice is a handle for a device paired to a hub, such as a thermostatic
// valve or a temperature/humidity sensor. Its identity is "<hubUUID>:<subDeviceID>"
// and its commands are sent through the hub.
type SubDevice struct {
	base

	subID string
	hub   Hub
}

func newSubDevice(subID, kind string, hub Hub, desc Descriptor, req Requester, logger Logger, caps ...Capability) *SubDevice {
	all := append([]Capability{CapSubDevice}, caps...)
	s := &SubDevice{
		base:  newBase(SubDeviceKey(hub.UUID(), subID), hub.UUID(), kind, desc, req, logger, all...),
		subID: subID,
		hub:   hub,
	}
	if _, ok := desc.OnlineStatus(); !ok {
		s.online = hub.IsOnline()
	}
	s.self = s
	return s
}

// SubDeviceID implements Child.
func (s *SubDevice) SubDeviceID() string { return s.subID }

// Hub implements Child.
func (s *SubDevice) Hub() Hub { return s.hub }

// HandlePushNotification implements Handle. It accepts a hub payload and
// applies only the entries addressed to this sub-device.
func (s *SubDevice) HandlePushNotification(namespace string, payload json.RawMessage, _ bool) bool {
	entries, err := hubEntries(payload)
	if err != nil {
		s.logger.Warn("malformed hub notification", "device", s.id, "namespace", namespace, "error", err)
		return false
	}
	handled := false
	for _, entry := range entries {
		if Descriptor(entry).String("id") != s.subID {
			continue
		}
		if s.HandleHubNotification(namespace, entry) {
			handled = true
		}
	}
	return handled
}

// HandleHubNotification implements Child.
func (s *SubDevice) HandleHubNotification(namespace string, entry map[string]any) bool {
	d := Descriptor(entry)

	switch namespace {
	case NamespaceHubOnline:
		status, ok := d.Int("status")
		if !ok {
			return false
		}
		s.setOnline(status == StatusOnline)
		return true

	case NamespaceHubToggleX:
		on, ok := flag(entry["onoff"])
		if !ok {
			return false
		}
		s.mergeState(namespace, map[string]any{"on": on})
		return true

	case NamespaceHubBattery:
		if !s.HasCapability(CapBattery) {
			return false
		}
		value, ok := d.Int("value")
		if !ok {
			return false
		}
		s.mergeState(namespace, map[string]any{"battery": value})
		return true

	case NamespaceHubTempHum:
		if !s.HasCapability(CapSensor) {
			return false
		}
		values := make(map[string]any)
		// Readings are reported in tenths.
		if t, ok := d.Int("latestTemperature"); ok {
			values["temperature"] = float64(t) / 10
		}
		if h, ok := d.Int("latestHumidity"); ok {
			values["humidity"] = float64(h) / 10
		}
		s.mergeState(namespace, values)
		return len(values) > 0

	case NamespaceHubMts100Temp:
		if !s.HasCapability(CapThermostat) {
			return false
		}
		values := make(map[string]any)
		if t, ok := d.Int("room"); ok {
			values["room_temperature"] = float64(t) / 10
		}
		if t, ok := d.Int("currentSet"); ok {
			values["target_temperature"] = float64(t) / 10
		}
		s.mergeState(namespace, values)
		return len(values) > 0

	default:
		s.logger.Debug("unhandled namespace", "device", s.id, "namespace", namespace)
		return false
	}
}

// IsOn reports the last known on/off state.
func (s *SubDevice) IsOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	on, _ := s.state["on"].(bool)
	return on
}

// SetOn switches the sub-device on or off through its hub.
func (s *SubDevice) SetOn(ctx context.Context, on bool) error {
	if !s.HasCapability(CapToggle) {
		return fmt.Errorf("%w: %s cannot be switched", ErrUnsupported, s.id)
	}
	if s.requester == nil {
		return ErrNoRequester
	}
	payload := map[string]any{
		"togglex": []map[string]any{{"id": s.subID, "onoff": onOff(on)}},
	}
	if _, err := s.requester.Request(ctx, s.uuid, MethodSet, NamespaceHubToggleX, payload); err != nil {
		return fmt.Errorf("switching %s: %w", s.id, err)
	}
	s.mergeState(NamespaceHubToggleX, map[string]any{"on": on})
	return nil
}
