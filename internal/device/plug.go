package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Plug is a handle for switchable devices: smart plugs, power strips, and lights.
// Each outlet is a channel; channel 0 is the master channel on multi-outlet strips.
type Plug struct {
	base
}

func newPlug(uuid, kind string, desc Descriptor, req Requester, logger Logger, caps ...Capability) *Plug {
	p := &Plug{base: newBase(uuid, uuid, kind, desc, req, logger, caps...)}
	p.self = p
	return p
}

// toggleEntry is one channel of a ToggleX payload.
type toggleEntry struct {
	Channel int `json:"channel"`
	OnOff   int `json:"onoff"`
}

// HandlePushNotification implements Handle.
func (p *Plug) HandlePushNotification(namespace string, payload json.RawMessage, _ bool) bool {
	switch namespace {
	case NamespaceSystemOnline:
		return p.handleSystemOnline(payload)
	case NamespaceToggleX:
		entries, err := decodeToggleX(payload)
		if err != nil {
			p.logger.Warn("malformed togglex notification", "device", p.id, "error", err)
			return false
		}
		for _, e := range entries {
			p.applyToggle(namespace, e.Channel, e.OnOff != 0)
		}
		return true
	case NamespaceToggle:
		var body struct {
			Toggle toggleEntry `json:"toggle"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			p.logger.Warn("malformed toggle notification", "device", p.id, "error", err)
			return false
		}
		p.applyToggle(namespace, 0, body.Toggle.OnOff != 0)
		return true
	default:
		p.logger.Debug("unhandled namespace", "device", p.id, "namespace", namespace)
		return false
	}
}

// decodeToggleX accepts both the single-object and array forms of "togglex".
func decodeToggleX(payload json.RawMessage) ([]toggleEntry, error) {
	var body struct {
		ToggleX json.RawMessage `json:"togglex"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	if len(body.ToggleX) == 0 {
		return nil, errors.New("missing togglex")
	}

	var many []toggleEntry
	if err := json.Unmarshal(body.ToggleX, &many); err == nil {
		return many, nil
	}
	var one toggleEntry
	if err := json.Unmarshal(body.ToggleX, &one); err != nil {
		return nil, err
	}
	return []toggleEntry{one}, nil
}

func (p *Plug) applyToggle(namespace string, channel int, on bool) {
	p.mergeState(namespace, map[string]any{channelKey(channel): on})
}

// IsOn reports the last known state of channel.
func (p *Plug) IsOn(channel int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	on, _ := p.state[channelKey(channel)].(bool)
	return on
}

// SetOn switches channel on or off.
func (p *Plug) SetOn(ctx context.Context, channel int, on bool) error {
	if p.requester == nil {
		return ErrNoRequester
	}
	payload := map[string]any{
		"togglex": toggleEntry{Channel: channel, OnOff: onOff(on)},
	}
	if _, err := p.requester.Request(ctx, p.uuid, MethodSet, NamespaceToggleX, payload); err != nil {
		return fmt.Errorf("setting channel %d of %s: %w", channel, p.id, err)
	}
	p.applyToggle(NamespaceToggleX, channel, on)
	return nil
}

func channelKey(channel int) string {
	return "channel_" + strconv.Itoa(channel)
}
