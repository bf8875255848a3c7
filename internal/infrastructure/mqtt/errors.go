package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidTopic is returned when an empty or invalid topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("mqtt: operation timed out")

	// ErrMissingCredentials is returned when the client is built without a
	// user ID or key.
	ErrMissingCredentials = errors.New("mqtt: missing cloud credentials")

	// ErrMalformedMessage is returned when an inbound message cannot be decoded.
	ErrMalformedMessage = errors.New("mqtt: malformed message")

	// ErrMalformedOrigin is returned when a header "from" field does not
	// contain a device UUID.
	ErrMalformedOrigin = errors.New("mqtt: malformed message origin")

	// ErrDeviceError is returned when a device answers a request with an ERROR message.
	ErrDeviceError = errors.New("mqtt: device returned an error")
)
