package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Request sends a signed request to a device and waits for its response.
//
// The request is published on the device's request topic with the app
// response topic as its origin; the device answers there with the same
// message ID.
//
// Parameters:
//   - ctx: Bounds the wait, together with the configured request timeout
//   - uuid: Target device UUID (the hub's UUID for sub-devices)
//   - method: GET or SET
//   - namespace: Device namespace, e.g. "Appliance.Control.ToggleX"
//   - payload: Value marshalled as the request payload
//
// Returns:
//   - json.RawMessage: Response payload
//   - error: ErrNotConnected, ErrPublishFailed, ErrTimeout, or ErrDeviceError
func (c *Client) Request(ctx context.Context, uuid, method, namespace string, payload any) (json.RawMessage, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	msg, err := NewMessage(method, namespace, c.topics.AppResponse(), c.creds.Key, payload, c.now())
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}

	ch := make(chan *Message, 1)
	c.pendingMu.Lock()
	c.pending[msg.Header.MessageID] = ch
	c.pendingMu.Unlock()
	defer c.forget(msg.Header.MessageID)

	if err := c.publish(c.topics.DeviceRequest(uuid), body); err != nil {
		return nil, err
	}

	timeout := c.requestTimeout()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrNotConnected
		}
		if resp.Header.Method == MethodError {
			return nil, fmt.Errorf("%w: %s %s: %s", ErrDeviceError, uuid, namespace, resp.Payload)
		}
		return resp.Payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s %s on %s after %v", ErrTimeout, method, namespace, uuid, timeout)
	}
}

// resolve delivers msg to the pending request with the same message ID.
func (c *Client) resolve(msg *Message) bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	ch, ok := c.pending[msg.Header.MessageID]
	if !ok {
		return false
	}
	delete(c.pending, msg.Header.MessageID)
	ch <- msg // buffered, single response
	return true
}

// isPending reports whether messageID belongs to an unanswered request.
func (c *Client) isPending(messageID string) bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	_, ok := c.pending[messageID]
	return ok
}

func (c *Client) forget(messageID string) {
	c.pendingMu.Lock()
	delete(c.pending, messageID)
	c.pendingMu.Unlock()
}

// PendingRequests returns the number of requests awaiting a response.
func (c *Client) PendingRequests() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending)
}

// publish sends payload to topic with the configured QoS.
func (c *Client) publish(topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), false, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// subscribe subscribes to topic and tracks it for restoration on reconnect.
func (c *Client) subscribe(ctx context.Context, topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return fmt.Errorf("%w: invalid QoS %d", ErrSubscribeFailed, qos)
	}

	token := c.client.Subscribe(topic, qos, c.wrapHandler(c.handleMessage))
	if err := waitToken(ctx, token, defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}

	c.subMu.Lock()
	c.subscriptions[topic] = qos
	c.subMu.Unlock()
	return nil
}

// HasSubscription checks if a subscription exists for the given topic.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[topic]
	return exists
}
