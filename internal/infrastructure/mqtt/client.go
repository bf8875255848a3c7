package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/cloudlink-core/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang as the cloud push channel.
//
// It subscribes to the user push topic and the app response topic, decodes
// every inbound message, resolves pending requests, and hands device
// notifications to the registered PushHandler.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	creds   Credentials
	topics  Topics

	// newClient builds the paho client; replaced in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
	now       func() time.Time

	// subscriptions tracks active subscriptions for re-subscription on reconnect.
	subscriptions map[string]byte
	subMu         sync.RWMutex

	state *stateTracker

	handler   PushHandler
	handlerMu sync.RWMutex

	// pending maps message IDs of issued requests to their response channel.
	pending   map[string]chan *Message
	pendingMu sync.Mutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// PushHandler receives device notifications.
//
// fromSelf is true when the message arrived on this client's response topic
// or correlates with a request this client issued.
//
// Handlers are invoked on paho's goroutines and may block, for example on a
// discovery round trip.
type PushHandler func(msg *Message, fromSelf bool)

// New creates a client for the cloud broker. It does not connect.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - creds: Cloud account credentials obtained at login
//
// Returns:
//   - *Client: Disconnected client; call Connect to start it
//   - error: ErrMissingCredentials if creds lacks a user ID or key
func New(cfg config.MQTTConfig, creds Credentials) (*Client, error) {
	if creds.UserID == "" || creds.Key == "" {
		return nil, ErrMissingCredentials
	}

	appID := NewAppID()
	return &Client{
		cfg:           cfg,
		creds:         creds,
		topics:        Topics{UserID: creds.UserID, AppID: appID},
		options:       buildClientOptions(cfg, creds, appID),
		newClient:     pahomqtt.NewClient,
		now:           time.Now,
		subscriptions: make(map[string]byte),
		state:         newStateTracker(),
		pending:       make(map[string]chan *Message),
	}, nil
}

// Topics returns the topic builders of this session.
func (c *Client) Topics() Topics {
	return c.topics
}

// Connect establishes the connection and subscribes to the push topics.
//
// It performs the following setup:
//  1. Builds the paho client with connection callbacks
//  2. Connects, bounded by ctx and the connect timeout
//  3. Subscribes to the user push topic and the app response topic
//
// On return without error the state is StateSubscribed.
func (c *Client) Connect(ctx context.Context) error {
	c.options.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	c.options.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	c.options.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.state.set(StateConnecting)
	})

	c.state.set(StateConnecting)
	c.client = c.newClient(c.options)

	if err := waitToken(ctx, c.client.Connect(), defaultConnectTimeout); err != nil {
		c.state.set(StateDisconnected)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	c.state.set(StateConnected)

	for _, topic := range c.topics.PushTopics() {
		if err := c.subscribe(ctx, topic, byte(c.cfg.QoS)); err != nil {
			return err
		}
	}
	c.state.set(StateSubscribed)

	return nil
}

// handleConnect is called when the connection is established or re-established.
func (c *Client) handleConnect() {
	c.state.set(StateConnected)

	if c.restoreSubscriptions() {
		c.state.set(StateSubscribed)
	}
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.state.set(StateDisconnected)

	if logger := c.getLogger(); logger != nil {
		logger.Warn("MQTT connection lost", "error", err)
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
// It returns true if every push topic is subscribed.
func (c *Client) restoreSubscriptions() bool {
	c.subMu.RLock()
	subs := make(map[string]byte, len(c.subscriptions))
	for topic, qos := range c.subscriptions {
		subs[topic] = qos
	}
	c.subMu.RUnlock()

	if len(subs) < len(c.topics.PushTopics()) {
		// Initial connect: Connect subscribes itself.
		return false
	}

	ok := true
	for topic, qos := range subs {
		token := c.client.Subscribe(topic, qos, c.wrapHandler(c.handleMessage))
		if !token.WaitTimeout(defaultPublishTimeout) || token.Error() != nil {
			ok = false
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT re-subscribe failed", "topic", topic, "error", token.Error())
			}
		}
	}
	return ok
}

// Close disconnects from the broker. Pending requests fail with ErrNotConnected.
//
// Returns:
//   - error: Always nil; closing an unconnected client is not an error
func (c *Client) Close() error {
	if c.client == nil {
		c.state.set(StateDisconnected)
		return nil
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.state.set(StateDisconnected)

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	return nil
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return c.state.get()
}

// IsSubscribed reports whether the push topics are subscribed.
func (c *Client) IsSubscribed() bool {
	return c.state.get() == StateSubscribed
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	s := c.state.get()
	if s != StateConnected && s != StateSubscribed {
		return false
	}
	return c.client != nil && c.client.IsConnected()
}

// HealthCheck verifies the push channel is connected and subscribed.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	if !c.IsSubscribed() {
		return fmt.Errorf("%w: push topics not subscribed", ErrNotConnected)
	}
	return nil
}

// SetMessageHandler sets the handler for device notifications.
func (c *Client) SetMessageHandler(h PushHandler) {
	c.handlerMu.Lock()
	c.handler = h
	c.handlerMu.Unlock()
}

// SetOnStateChange sets a callback invoked on every connection state change.
// The callback runs outside the client's locks.
func (c *Client) SetOnStateChange(callback func(ConnectionState)) {
	c.state.setListener(callback)
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// handleMessage decodes an inbound message and dispatches it.
//
// Messages whose signature does not match the account key are dropped.
// PUSH messages go to the PushHandler. Other methods are responses: they
// resolve the pending request with the same message ID, or are dropped.
func (c *Client) handleMessage(topic string, payload []byte) error {
	msg, err := DecodeMessage(payload)
	if err != nil {
		return err
	}

	// Devices and the cloud sign with the account key.
	if !msg.Verify(c.creds.Key) {
		if logger := c.getLogger(); logger != nil {
			logger.Debug("dropping message with bad signature",
				"topic", topic,
				"message_id", msg.Header.MessageID,
				"from", msg.Header.From,
			)
		}
		return nil
	}

	if msg.Header.Method != MethodPush {
		if !c.resolve(msg) {
			if logger := c.getLogger(); logger != nil {
				logger.Debug("dropping unsolicited response",
					"topic", topic,
					"message_id", msg.Header.MessageID,
					"namespace", msg.Header.Namespace,
				)
			}
		}
		return nil
	}

	fromSelf := topic == c.topics.AppResponse() || c.isPending(msg.Header.MessageID)

	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()

	if handler != nil {
		handler(msg, fromSelf)
	}
	return nil
}

// wrapHandler wraps a message callback with panic recovery and optional logging.
func (c *Client) wrapHandler(handler func(topic string, payload []byte) error) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}

// waitToken waits for token to complete, bounded by ctx and timeout.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
}

// requestTimeout returns the configured request timeout.
func (c *Client) requestTimeout() time.Duration {
	if c.cfg.RequestTimeout > 0 {
		return time.Duration(c.cfg.RequestTimeout) * time.Second
	}
	return defaultRequestTimeout
}
