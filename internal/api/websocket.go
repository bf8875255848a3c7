package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/cloudlink-core/internal/device"
	"github.com/nerrad567/cloudlink-core/internal/event"
	"github.com/nerrad567/cloudlink-core/internal/infrastructure/config"
	"github.com/nerrad567/cloudlink-core/internal/infrastructure/logging"
)

// WebSocket constants.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// WSChannelAll subscribes a client to every event kind.
	WSChannelAll = "*"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256

	defaultPingInterval   = 30 // seconds
	defaultPongTimeout    = 10 // seconds
	defaultMaxMessageSize = 8192
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub fans lifecycle events out to connected stream clients.
type Hub struct {
	timing  wsTiming
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// wsTiming holds the connection limits derived from config.WebSocketConfig.
type wsTiming struct {
	pingEvery  time.Duration
	readWait   time.Duration // ping interval + pong timeout
	writeWait  time.Duration
	maxMessage int64
}

// Hub event payloads. Device events carry the device projection so clients
// need no follow-up lookup.
type wsDeviceOnline struct {
	Device     any    `json:"device"`
	Online     bool   `json:"online"`
	Discovered bool   `json:"discovered"`
	Time       string `json:"time"`
}

type wsConnection struct {
	State string `json:"state"`
	Time  string `json:"time"`
}

type wsDeviceState struct {
	Device    any            `json:"device"`
	Namespace string         `json:"namespace"`
	State     map[string]any `json:"state"`
	Time      string         `json:"time"`
}

// NewHub creates a new WebSocket hub. Zero timing values fall back to defaults.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultPongTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	ping := time.Duration(cfg.PingInterval) * time.Second
	pong := time.Duration(cfg.PongTimeout) * time.Second
	return &Hub{
		timing: wsTiming{
			pingEvery:  ping,
			readWait:   ping + pong,
			writeWait:  pong,
			maxMessage: int64(cfg.MaxMessageSize),
		},
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run starts the hub's main loop. It blocks until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub. Only the call that removes the
// client closes its send channel, so it is safe to call more than once.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Broadcast queues an event for every client subscribed to channel.
// The hub lock is released before any client lock is taken.
func (h *Hub) Broadcast(channel string, payload any) {
	msg := WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var sent, dropped int
	for _, client := range clients {
		if !client.isSubscribed(channel) {
			continue
		}
		if client.enqueue(data) {
			sent++
		} else {
			dropped++
		}
	}
	if sent+dropped > 0 {
		h.logger.Debug("event broadcast", "channel", channel, "recipients", sent, "dropped", dropped)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll drops every client. Closing send ends each client's write loop.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// HandleEvent implements event.Handler. Each event is broadcast on the
// channel named by its kind, e.g. "device.online_status".
func (h *Hub) HandleEvent(e event.Event) error {
	var payload any
	switch ev := e.(type) {
	case event.DeviceOnlineEvent:
		payload = wsDeviceOnline{
			Device:     describeSource(ev.Device),
			Online:     ev.Online,
			Discovered: ev.Discovered,
			Time:       formatTime(ev.Time),
		}
	case event.ConnectionEvent:
		payload = wsConnection{State: ev.State, Time: formatTime(ev.Time)}
	case event.DeviceStateEvent:
		payload = wsDeviceState{
			Device:    describeSource(ev.Device),
			Namespace: ev.Namespace,
			State:     ev.State,
			Time:      formatTime(ev.Time),
		}
	default:
		payload = e
	}

	h.Broadcast(string(e.Kind()), payload)
	return nil
}

// describeSource returns the full device projection when the source is a
// device handle, otherwise just its identity.
func describeSource(src event.Source) any {
	if h, ok := src.(device.Handle); ok {
		return device.Describe(h)
	}
	return map[string]string{"id": src.ID(), "name": src.Name(), "type": src.Type()}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}
