// Package device provides the device directory and device handles for CloudLink Core.
//
// The Registry is the in-process catalogue of every device visible to the
// cloud account for the current session. It maps a device identity to the
// single Handle built for that device. Handles are created by the Factory from
// the raw descriptors returned by the cloud device list and receive push
// notifications routed by the session manager.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                          Device Directory                         │
//	│                                                                   │
//	│  ┌──────────────────┐    ┌──────────────────┐   ┌──────────────┐ │
//	│  │     Registry     │    │     Factory      │   │   Handles    │ │
//	│  │  (registry.go)   │◀───│  (factory.go)    │──▶│ Plug, Hub,   │ │
//	│  │                  │    │                  │   │ SubDevice,   │ │
//	│  │ • InsertIfAbsent │    │ • type tag match │   │ Generic      │ │
//	│  │ • snapshot reads │    │ • sub-devices    │   │ • own Bus    │ │
//	│  └──────────────────┘    └──────────────────┘   └──────────────┘ │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Identities
//
// A top-level device is keyed by its cloud UUID. A sub-device is keyed by
// "<hubUUID>:<subDeviceID>" (see SubDeviceKey), so sub-devices of different
// hubs never collide even when their sub-device IDs are equal.
//
// # Usage
//
//	registry := device.NewRegistry()
//	factory := device.NewFactory()
//
//	h, err := factory.BuildDevice(desc.DeviceType(), desc.UUID(), transport, desc)
//	if err != nil {
//	    return err
//	}
//	stored, inserted := registry.InsertIfAbsent(h.ID(), h)
//
//	plugs := registry.ByCapability(device.CapToggle)
//	lamp, ok := registry.GetByName("desk lamp")
//
// # Thread Safety
//
// The Registry and every handle are safe for concurrent use. The registry lock
// is never held while handle methods or caller-supplied predicates run.
package device
