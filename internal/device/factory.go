package device

import (
	"fmt"
	"strings"
)

// Factory builds device handles from cloud descriptors by type tag.
//
// Type tags are matched by prefix, case-insensitively:
//
//	msh*          hub
//	mss*, mso*    plug (toggle)
//	msl*          light (toggle, light)
//	anything else generic device
//
// Sub-device tags:
//
//	mts100*       thermostatic valve (thermostat, toggle, battery)
//	ms100*        temperature/humidity sensor (sensor, battery)
//	anything else generic sub-device
type Factory struct {
	logger Logger
}

// NewFactory creates a device factory.
func NewFactory() *Factory {
	return &Factory{logger: noopLogger{}}
}

// SetLogger sets the logger passed to every handle the factory builds.
func (f *Factory) SetLogger(logger Logger) {
	f.logger = logger
}

// BuildDevice builds the handle of a top-level device.
//
// Parameters:
//   - kind: Device type tag from the descriptor, such as "mss310"
//   - uuid: Cloud UUID, also the registry identity
//   - req: Transport used by the handle to send commands
//   - desc: Raw descriptor the handle keeps for reference
//
// Returns:
//   - Handle: Fully constructed handle, not yet registered anywhere
//   - error: ErrMalformedDescriptor if kind or uuid is empty
func (f *Factory) BuildDevice(kind, uuid string, req Requester, desc Descriptor) (Handle, error) {
	if kind == "" || uuid == "" {
		return nil, fmt.Errorf("%w: type %q uuid %q", ErrMalformedDescriptor, kind, uuid)
	}

	tag := strings.ToLower(kind)
	switch {
	case strings.HasPrefix(tag, "msh"):
		return newHub(uuid, kind, desc, req, f.logger), nil
	case strings.HasPrefix(tag, "mss"), strings.HasPrefix(tag, "mso"):
		return newPlug(uuid, kind, desc, req, f.logger, CapToggle), nil
	case strings.HasPrefix(tag, "msl"):
		return newPlug(uuid, kind, desc, req, f.logger, CapToggle, CapLight), nil
	default:
		f.logger.Debug("no specialised handle for device type", "type", kind, "uuid", uuid)
		return newGeneric(uuid, uuid, kind, desc, req, f.logger), nil
	}
}

// BuildSubDevice builds the handle of a device paired to hub.
// The handle is not attached to the hub; the caller attaches it once the
// handle has been accepted into the registry.
func (f *Factory) BuildSubDevice(kind, subID string, hub Hub, req Requester, desc Descriptor) (Handle, error) {
	if hub == nil {
		return nil, ErrMissingHub
	}
	if kind == "" || subID == "" {
		return nil, fmt.Errorf("%w: sub-device type %q id %q", ErrMalformedDescriptor, kind, subID)
	}

	tag := strings.ToLower(kind)
	switch {
	case strings.HasPrefix(tag, "mts100"):
		return newSubDevice(subID, kind, hub, desc, req, f.logger, CapThermostat, CapToggle, CapBattery), nil
	case strings.HasPrefix(tag, "ms100"):
		return newSubDevice(subID, kind, hub, desc, req, f.logger, CapSensor, CapBattery), nil
	default:
		return newSubDevice(subID, kind, hub, desc, req, f.logger), nil
	}
}
