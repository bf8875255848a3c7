package mqtt

import (
	"crypto/md5" //nolint:gosec // the cloud protocol mandates MD5 signatures
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message methods.
const (
	MethodGet    = "GET"
	MethodGetAck = "GETACK"
	MethodSet    = "SET"
	MethodSetAck = "SETACK"
	MethodPush   = "PUSH"
	MethodError  = "ERROR"
)

// Header is the envelope header of every message exchanged with devices.
type Header struct {
	From           string `json:"from"`
	MessageID      string `json:"messageId"`
	Method         string `json:"method"`
	Namespace      string `json:"namespace"`
	PayloadVersion int    `json:"payloadVersion"`
	Sign           string `json:"sign"`
	Timestamp      int64  `json:"timestamp"`
}

// Message is a decoded device message.
type Message struct {
	Header  Header          `json:"header"`
	Payload json.RawMessage `json:"payload"`
}

// Credentials are the cloud account details needed to use the broker.
type Credentials struct {
	UserID string
	// Key is the account secret used for the broker password and message signatures.
	Key string
	// Domain optionally overrides the configured broker host.
	Domain string
}

// md5Hex returns the lowercase hex MD5 digest of s.
func md5Hex(s string) string {
	sum := md5.Sum([]byte(s)) //nolint:gosec // protocol requirement
	return hex.EncodeToString(sum[:])
}

// Sign computes the signature of a message: md5(messageId + key + timestamp).
func Sign(messageID, key string, timestamp int64) string {
	return md5Hex(fmt.Sprintf("%s%s%d", messageID, key, timestamp))
}

// NewAppID generates a random application ID for one client instance.
func NewAppID() string {
	return md5Hex("API" + uuid.NewString())
}

// ClientID returns the broker client ID for appID.
func ClientID(appID string) string {
	return "app:" + appID
}

// Password returns the broker password for the given credentials.
func Password(creds Credentials) string {
	return md5Hex(creds.UserID + creds.Key)
}

// NewMessage builds a signed request.
//
// Parameters:
//   - method: Request method (GET or SET)
//   - namespace: Device namespace, e.g. "Appliance.Control.ToggleX"
//   - from: Topic the device should answer on (the app response topic)
//   - key: Signing key
//   - payload: Value marshalled as the message payload
//   - now: Time used for the timestamp
func NewMessage(method, namespace, from, key string, payload any, now time.Time) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	messageID := md5Hex(uuid.NewString())
	timestamp := now.Unix()

	return &Message{
		Header: Header{
			From:           from,
			MessageID:      messageID,
			Method:         method,
			Namespace:      namespace,
			PayloadVersion: 1,
			Sign:           Sign(messageID, key, timestamp),
			Timestamp:      timestamp,
		},
		Payload: body,
	}, nil
}

// DecodeMessage parses an inbound message.
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if msg.Header.MessageID == "" || msg.Header.Namespace == "" {
		return nil, fmt.Errorf("%w: missing header fields", ErrMalformedMessage)
	}
	return &msg, nil
}

// Verify reports whether the message signature matches key.
func (m *Message) Verify(key string) bool {
	return m.Header.Sign == Sign(m.Header.MessageID, key, m.Header.Timestamp)
}

// OriginUUID returns the UUID of the device that sent the message.
func (m *Message) OriginUUID() (string, error) {
	return OriginUUID(m.Header.From)
}
