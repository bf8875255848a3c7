package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is one event stream connection.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex
}

// wsInbound is a client request. Payload is decoded according to Type.
type wsInbound struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Origins are checked by corsMiddleware before the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket upgrades the request and attaches the client to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	s.hub.Register(c)

	go c.writeLoop()
	go c.readLoop()
}

// readLoop handles client requests until the connection fails or closes.
func (c *WSClient) readLoop() {
	t := c.hub.timing
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(t.readWait))
	}

	c.conn.SetReadLimit(t.maxMessage)
	_ = extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		// Browsers may not answer control pings; any request counts as liveness.
		_ = extend()
		c.dispatch(data)
	}
}

// writeLoop drains send and pings the client until send is closed.
func (c *WSClient) writeLoop() {
	ping := time.NewTicker(c.hub.timing.pingEvery)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"))
				return
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) write(kind int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.timing.writeWait))
	return c.conn.WriteMessage(kind, data)
}

// dispatch answers one client request.
func (c *WSClient) dispatch(data []byte) {
	var in wsInbound
	if err := json.Unmarshal(data, &in); err != nil {
		c.replyError("", "invalid JSON message")
		return
	}

	switch in.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.updateSubscriptions(in)
	case WSTypePing:
		c.reply(in.ID, WSTypePong, nil)
	default:
		c.replyError(in.ID, "unknown message type: "+in.Type)
	}
}

// updateSubscriptions adds or removes the channels named in the payload.
func (c *WSClient) updateSubscriptions(in wsInbound) {
	var req WSSubscribePayload
	if len(in.Payload) > 0 {
		if err := json.Unmarshal(in.Payload, &req); err != nil {
			c.replyError(in.ID, "invalid "+in.Type+" payload")
			return
		}
	}

	add := in.Type == WSTypeSubscribe

	c.mu.Lock()
	for _, ch := range req.Channels {
		if add {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if add {
		key = "subscribed"
	}
	c.hub.logger.Debug("websocket subscriptions changed", key, req.Channels)
	c.reply(in.ID, WSTypeResponse, map[string][]string{key: req.Channels})
}

// enqueue queues data without blocking. It reports false when the buffer is
// full or the client has already been unregistered.
func (c *WSClient) enqueue(data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false // send on a channel closed by Unregister
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, all := c.subscriptions[WSChannelAll]; all {
		return true
	}
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		c.hub.logger.Error("encoding websocket reply", "error", err)
		return
	}
	c.enqueue(data)
}

func (c *WSClient) replyError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
