package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when no device matches a lookup.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidCapability is returned when a capability is not recognised.
	ErrInvalidCapability = errors.New("device: invalid capability")

	// ErrMalformedDescriptor is returned when a descriptor is neither a
	// top-level device nor a sub-device.
	ErrMalformedDescriptor = errors.New("device: malformed descriptor")

	// ErrMissingHub is returned when a sub-device is built without a parent hub.
	ErrMissingHub = errors.New("device: sub-device requires a parent hub")

	// ErrUnsupported is returned when a command is sent to a device that lacks
	// the required capability.
	ErrUnsupported = errors.New("device: operation not supported")

	// ErrNoRequester is returned when a command is sent through a handle built
	// without a transport.
	ErrNoRequester = errors.New("device: no transport for commands")
)
