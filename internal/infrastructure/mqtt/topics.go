package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes of the cloud broker.
const (
	// TopicPrefixApp is the base for topics delivered to client applications.
	TopicPrefixApp = "/app"

	// TopicPrefixAppliance is the base for per-device topics.
	TopicPrefixAppliance = "/appliance"
)

// Topics provides builders for the cloud MQTT topics of one user session.
//
//	topics := mqtt.Topics{UserID: "12345", AppID: "a1b2"}
//	topics.UserPush()              // "/app/12345/subscribe"
//	topics.AppResponse()           // "/app/12345-a1b2/subscribe"
//	topics.DeviceRequest("uuid")   // "/appliance/uuid/subscribe"
type Topics struct {
	UserID string
	AppID  string
}

// UserPush returns the topic on which the cloud pushes notifications from
// every device of the account.
func (t Topics) UserPush() string {
	return fmt.Sprintf("%s/%s/subscribe", TopicPrefixApp, t.UserID)
}

// AppResponse returns the topic on which devices answer requests issued by
// this client. It is also the "from" field of outgoing requests.
func (t Topics) AppResponse() string {
	return fmt.Sprintf("%s/%s-%s/subscribe", TopicPrefixApp, t.UserID, t.AppID)
}

// DeviceRequest returns the topic a device listens on for requests.
func (Topics) DeviceRequest(uuid string) string {
	return fmt.Sprintf("%s/%s/subscribe", TopicPrefixAppliance, uuid)
}

// DevicePublish returns the topic a device publishes on; it is the "from"
// field of device notifications.
func (Topics) DevicePublish(uuid string) string {
	return fmt.Sprintf("%s/%s/publish", TopicPrefixAppliance, uuid)
}

// PushTopics returns the topics the client subscribes to.
func (t Topics) PushTopics() []string {
	return []string{t.UserPush(), t.AppResponse()}
}

// OriginUUID extracts the device UUID from a header "from" field of the form
// "/appliance/<uuid>/publish": the third segment when split on "/".
//
// Returns ErrMalformedOrigin if the segment is missing or empty.
func OriginUUID(from string) (string, error) {
	parts := strings.Split(from, "/")
	if len(parts) < 3 || parts[2] == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedOrigin, from)
	}
	return parts[2], nil
}
