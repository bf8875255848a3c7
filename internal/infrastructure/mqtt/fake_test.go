package mqtt

import (
	"errors"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is a completed paho token.
type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

// pendingToken never completes.
type pendingToken struct{ fakeToken }

func (t *pendingToken) WaitTimeout(time.Duration) bool { return false }
func (t *pendingToken) Done() <-chan struct{}          { return make(chan struct{}) }

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type published struct {
	topic   string
	payload []byte
}

// fakePaho is an in-memory paho client. Methods not overridden panic via the
// embedded nil interface.
type fakePaho struct {
	pahomqtt.Client

	mu           sync.Mutex
	connected    bool
	connectErr   error
	connectHang  bool
	subscribeErr error
	handlers     map[string]pahomqtt.MessageHandler
	published    []published
	disconnected bool

	// onPublish, if set, runs after a publish is recorded.
	onPublish func(topic string, payload []byte)
}

func newFakePaho() *fakePaho {
	return &fakePaho{handlers: make(map[string]pahomqtt.MessageHandler)}
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) Connect() pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectHang {
		return &pendingToken{}
	}
	if f.connectErr != nil {
		return newToken(f.connectErr)
	}
	f.connected = true
	return newToken(nil)
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	f.connected = false
	f.disconnected = true
	f.mu.Unlock()
}

func (f *fakePaho) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return newToken(f.subscribeErr)
	}
	f.handlers[topic] = cb
	return newToken(nil)
}

func (f *fakePaho) Publish(topic string, _ byte, _ bool, payload interface{}) pahomqtt.Token {
	body, ok := payload.([]byte)
	if !ok {
		return newToken(errors.New("unexpected payload type"))
	}
	f.mu.Lock()
	f.published = append(f.published, published{topic, body})
	hook := f.onPublish
	f.mu.Unlock()

	if hook != nil {
		hook(topic, body)
	}
	return newToken(nil)
}

// deliver simulates the broker sending payload on topic.
func (f *fakePaho) deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	cb, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		return false
	}
	cb(f, &fakeMessage{topic: topic, payload: payload})
	return true
}

func (f *fakePaho) publishedMessages() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}
