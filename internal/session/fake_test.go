package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nerrad567/cloudlink-core/internal/device"
	"github.com/nerrad567/cloudlink-core/internal/event"
	"github.com/nerrad567/cloudlink-core/internal/infrastructure/mqtt"
)

// fakeDiscoverer returns canned descriptors and counts calls.
type fakeDiscoverer struct {
	mu         sync.Mutex
	devices    []device.Descriptor
	subDevices map[string][]device.Descriptor
	listErr    error
	subErr     error

	listCalls atomic.Int32
	subCalls  atomic.Int32
}

func newFakeDiscoverer(devices ...device.Descriptor) *fakeDiscoverer {
	return &fakeDiscoverer{
		devices:    devices,
		subDevices: make(map[string][]device.Descriptor),
	}
}

func (f *fakeDiscoverer) setDevices(devices ...device.Descriptor) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

func (f *fakeDiscoverer) setSubDevices(hubUUID string, subs ...device.Descriptor) {
	f.mu.Lock()
	f.subDevices[hubUUID] = subs
	f.mu.Unlock()
}

func (f *fakeDiscoverer) ListDevices(_ context.Context) ([]device.Descriptor, error) {
	f.listCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]device.Descriptor, len(f.devices))
	for i, d := range f.devices {
		out[i] = d.Clone()
	}
	return out, nil
}

func (f *fakeDiscoverer) ListHubSubDevices(_ context.Context, hubUUID string) ([]device.Descriptor, error) {
	f.subCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	subs := f.subDevices[hubUUID]
	out := make([]device.Descriptor, len(subs))
	for i, d := range subs {
		out[i] = d.Clone()
	}
	return out, nil
}

// fakeTransport records lifecycle calls and captures the callbacks the
// manager installs.
type fakeTransport struct {
	mu         sync.Mutex
	connectErr error
	closeErr   error
	subscribed bool
	state      mqtt.ConnectionState

	handler mqtt.PushHandler
	onState func(mqtt.ConnectionState)

	// connectHook, when set, runs inside Connect after the state change.
	connectHook func()

	connects atomic.Int32
	closes   atomic.Int32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{state: mqtt.StateDisconnected}
}

func (f *fakeTransport) Request(_ context.Context, uuid, method, namespace string, _ any) (json.RawMessage, error) {
	return nil, fmt.Errorf("fake transport: no response for %s %s %s", method, namespace, uuid)
}

func (f *fakeTransport) Connect(_ context.Context) error {
	f.connects.Add(1)
	f.mu.Lock()
	err := f.connectErr
	if err == nil {
		f.subscribed = true
		f.state = mqtt.StateSubscribed
	}
	cb := f.onState
	hook := f.connectHook
	f.mu.Unlock()

	if err == nil && cb != nil {
		cb(mqtt.StateSubscribed)
	}
	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeTransport) Close() error {
	f.closes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = false
	f.state = mqtt.StateDisconnected
	return f.closeErr
}

func (f *fakeTransport) State() mqtt.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) IsSubscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed
}

func (f *fakeTransport) SetMessageHandler(h mqtt.PushHandler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *fakeTransport) SetOnStateChange(cb func(mqtt.ConnectionState)) {
	f.mu.Lock()
	f.onState = cb
	f.mu.Unlock()
}

// push delivers a notification through the handler the manager installed.
func (f *fakeTransport) push(from, namespace string, payload any) {
	raw, _ := json.Marshal(payload)
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()

	h(&mqtt.Message{
		Header: mqtt.Header{
			From:      from,
			Method:    mqtt.MethodPush,
			Namespace: namespace,
		},
		Payload: raw,
	}, false)
}

// recordingLogger captures warnings and errors.
type recordingLogger struct {
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

func (l *recordingLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

// eventRecorder is an event handler that keeps every event it receives.
type eventRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *eventRecorder) HandleEvent(e event.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *eventRecorder) onlineEvents() []event.DeviceOnlineEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.DeviceOnlineEvent
	for _, e := range r.events {
		if oe, ok := e.(event.DeviceOnlineEvent); ok {
			out = append(out, oe)
		}
	}
	return out
}

func (r *eventRecorder) count(kind event.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind() == kind {
			n++
		}
	}
	return n
}

// Descriptor builders.

func plugDesc(uuid, name string, online int) device.Descriptor {
	return device.Descriptor{
		"uuid":         uuid,
		"deviceType":   "mss310",
		"devName":      name,
		"onlineStatus": float64(online),
	}
}

func hubDesc(uuid, name string) device.Descriptor {
	return device.Descriptor{
		"uuid":         uuid,
		"deviceType":   "msh300",
		"devName":      name,
		"onlineStatus": float64(device.StatusOnline),
	}
}

func subDesc(id, kind, name string) device.Descriptor {
	return device.Descriptor{
		"subDeviceId":   id,
		"subDeviceType": kind,
		"subDeviceName": name,
		"onlineStatus":  float64(device.StatusOnline),
	}
}

// newTestManager builds a manager over the given fakes with the real factory.
func newTestManager(t testing.TB, d *fakeDiscoverer, tr *fakeTransport) *Manager {
	t.Helper()
	m, err := New(d, tr, device.NewFactory())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}
