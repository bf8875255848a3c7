package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/cloudlink-core/internal/event"
)

// fakeRequester records commands sent through a handle.
type fakeRequester struct {
	mu    sync.Mutex
	calls []requestCall
	err   error
}

type requestCall struct {
	uuid      string
	method    string
	namespace string
	payload   string
}

func (f *fakeRequester) Request(_ context.Context, uuid, method, namespace string, payload any) (json.RawMessage, error) {
	body, _ := json.Marshal(payload)
	f.mu.Lock()
	f.calls = append(f.calls, requestCall{uuid, method, namespace, string(body)})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{}`), nil
}

// eventRecorder collects events delivered through a handle's bus.
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

func (r *eventRecorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

func typeName(v any) string { return fmt.Sprintf("%T", v) }

func buildHubWithSubs(t *testing.T, req Requester) (*HubDevice, *SubDevice, *SubDevice) {
	t.Helper()
	f := NewFactory()

	h, err := f.BuildDevice("msh300", "H1", req, Descriptor{"onlineStatus": float64(StatusOnline)})
	if err != nil {
		t.Fatalf("BuildDevice() error = %v", err)
	}
	hub := h.(*HubDevice)

	valve, err := f.BuildSubDevice("mts100v3", "S1", hub, req, Descriptor{"subDeviceId": "S1", "subDeviceType": "mts100v3"})
	if err != nil {
		t.Fatalf("BuildSubDevice() error = %v", err)
	}
	sensor, err := f.BuildSubDevice("ms100", "S2", hub, req, Descriptor{"subDeviceId": "S2", "subDeviceType": "ms100"})
	if err != nil {
		t.Fatalf("BuildSubDevice() error = %v", err)
	}

	hub.AttachSubDevice(valve.(Child))
	hub.AttachSubDevice(sensor.(Child))
	return hub, valve.(*SubDevice), sensor.(*SubDevice)
}

func TestPlug_HandlePushNotification(t *testing.T) {
	tests := []struct {
		name        string
		namespace   string
		payload     string
		wantHandled bool
		wantOn      map[int]bool
	}{
		{
			name:        "togglex array",
			namespace:   NamespaceToggleX,
			payload:     `{"togglex":[{"channel":0,"onoff":1},{"channel":2,"onoff":1}]}`,
			wantHandled: true,
			wantOn:      map[int]bool{0: true, 1: false, 2: true},
		},
		{
			name:        "togglex object",
			namespace:   NamespaceToggleX,
			payload:     `{"togglex":{"channel":1,"onoff":1}}`,
			wantHandled: true,
			wantOn:      map[int]bool{0: false, 1: true},
		},
		{
			name:        "legacy toggle",
			namespace:   NamespaceToggle,
			payload:     `{"toggle":{"onoff":1}}`,
			wantHandled: true,
			wantOn:      map[int]bool{0: true},
		},
		{
			name:        "malformed",
			namespace:   NamespaceToggleX,
			payload:     `{"other":1}`,
			wantHandled: false,
			wantOn:      map[int]bool{0: false},
		},
		{
			name:        "unknown namespace",
			namespace:   "Appliance.Control.Electricity",
			payload:     `{}`,
			wantHandled: false,
			wantOn:      map[int]bool{0: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPlug("P1", "mss425e", Descriptor{}, nil, nil, CapToggle)

			if got := p.HandlePushNotification(tt.namespace, json.RawMessage(tt.payload), false); got != tt.wantHandled {
				t.Errorf("HandlePushNotification() = %v, want %v", got, tt.wantHandled)
			}
			for ch, want := range tt.wantOn {
				if p.IsOn(ch) != want {
					t.Errorf("IsOn(%d) = %v, want %v", ch, p.IsOn(ch), want)
				}
			}
		})
	}
}

func TestPlug_OnlineStatusFiresEvent(t *testing.T) {
	p := newPlug("P1", "mss310", Descriptor{"onlineStatus": float64(StatusOnline)}, nil, nil, CapToggle)
	rec := &eventRecorder{}
	p.RegisterEventHandler(rec)

	p.HandlePushNotification(NamespaceSystemOnline, json.RawMessage(`{"online":{"status":2}}`), false)
	// Same status again: no second event.
	p.HandlePushNotification(NamespaceSystemOnline, json.RawMessage(`{"online":{"status":2}}`), false)

	if p.IsOnline() {
		t.Error("IsOnline() = true after offline notification")
	}
	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("received %d events, want 1", len(events))
	}
	e, ok := events[0].(event.DeviceOnlineEvent)
	if !ok {
		t.Fatalf("event type = %T, want DeviceOnlineEvent", events[0])
	}
	if e.Online {
		t.Error("event Online = true, want false")
	}
	if e.Device.(Handle) != Handle(p) {
		t.Error("event does not carry the plug handle")
	}
}

func TestPlug_SetOn(t *testing.T) {
	req := &fakeRequester{}
	p := newPlug("P1", "mss310", Descriptor{}, req, nil, CapToggle)
	rec := &eventRecorder{}
	p.RegisterEventHandler(rec)

	if err := p.SetOn(context.Background(), 0, true); err != nil {
		t.Fatalf("SetOn() error = %v", err)
	}

	if len(req.calls) != 1 {
		t.Fatalf("requests = %d, want 1", len(req.calls))
	}
	call := req.calls[0]
	if call.uuid != "P1" || call.method != MethodSet || call.namespace != NamespaceToggleX {
		t.Errorf("request = %+v", call)
	}
	if call.payload != `{"togglex":{"channel":0,"onoff":1}}` {
		t.Errorf("payload = %s", call.payload)
	}
	if !p.IsOn(0) {
		t.Error("IsOn(0) = false after successful SetOn")
	}
	if len(rec.all()) != 1 {
		t.Errorf("events = %d, want 1", len(rec.all()))
	}
}

func TestPlug_SetOnErrors(t *testing.T) {
	t.Run("no requester", func(t *testing.T) {
		p := newPlug("P1", "mss310", Descriptor{}, nil, nil, CapToggle)
		if err := p.SetOn(context.Background(), 0, true); !errors.Is(err, ErrNoRequester) {
			t.Errorf("SetOn() error = %v, want ErrNoRequester", err)
		}
	})

	t.Run("transport failure leaves state unchanged", func(t *testing.T) {
		sentinel := errors.New("timeout")
		p := newPlug("P1", "mss310", Descriptor{}, &fakeRequester{err: sentinel}, nil, CapToggle)
		if err := p.SetOn(context.Background(), 0, true); !errors.Is(err, sentinel) {
			t.Errorf("SetOn() error = %v, want wrapped transport error", err)
		}
		if p.IsOn(0) {
			t.Error("IsOn(0) = true after failed SetOn")
		}
	})
}

func TestHub_FanOut(t *testing.T) {
	hub, valve, sensor := buildHubWithSubs(t, nil)

	valveEvents := &eventRecorder{}
	sensorEvents := &eventRecorder{}
	valve.RegisterEventHandler(valveEvents)
	sensor.RegisterEventHandler(sensorEvents)

	handled := hub.HandlePushNotification(NamespaceHubToggleX,
		json.RawMessage(`{"togglex":[{"id":"S1","onoff":1},{"id":"S9","onoff":1}]}`), false)
	if !handled {
		t.Error("HandlePushNotification(ToggleX) = false, want true")
	}
	if !valve.IsOn() {
		t.Error("valve IsOn() = false after fan-out")
	}
	if len(sensorEvents.all()) != 0 {
		t.Error("sensor received an entry addressed to S1")
	}

	hub.HandlePushNotification(NamespaceHubTempHum,
		json.RawMessage(`{"tempHum":[{"id":"S2","latestTemperature":215,"latestHumidity":480}]}`), false)
	state := sensor.State()
	if state["temperature"] != 21.5 || state["humidity"] != 48.0 {
		t.Errorf("sensor state = %v", state)
	}

	hub.HandlePushNotification(NamespaceHubOnline,
		json.RawMessage(`{"online":[{"id":"S2","status":2}]}`), false)
	if sensor.IsOnline() {
		t.Error("sensor IsOnline() = true after offline entry")
	}
	if !valve.IsOnline() {
		t.Error("valve went offline from an entry addressed to S2")
	}
}

func TestHub_AttachSubDevice(t *testing.T) {
	hub, valve, _ := buildHubWithSubs(t, nil)

	if hub.AttachSubDevice(valve) {
		t.Error("AttachSubDevice() of an attached sub-device = true, want false")
	}
	subs := hub.SubDevices()
	if len(subs) != 2 || subs[0].SubDeviceID() != "S1" || subs[1].SubDeviceID() != "S2" {
		t.Errorf("SubDevices() = %v", subs)
	}
}

func TestHub_IgnoresOtherNamespaces(t *testing.T) {
	hub, _, _ := buildHubWithSubs(t, nil)

	if hub.HandlePushNotification("Appliance.Control.Bind", json.RawMessage(`{}`), false) {
		t.Error("HandlePushNotification() = true for a non-hub namespace")
	}
	if hub.HandlePushNotification(NamespaceHubOnline, json.RawMessage(`not json`), false) {
		t.Error("HandlePushNotification() = true for a malformed payload")
	}
}

func TestSubDevice_CapabilityGatedNamespaces(t *testing.T) {
	_, valve, sensor := buildHubWithSubs(t, nil)

	if valve.HandleHubNotification(NamespaceHubTempHum, map[string]any{"id": "S1", "latestTemperature": float64(200)}) {
		t.Error("valve accepted a sensor reading")
	}
	if sensor.HandleHubNotification(NamespaceHubMts100Temp, map[string]any{"id": "S2", "room": float64(200)}) {
		t.Error("sensor accepted a thermostat reading")
	}
	if !sensor.HandleHubNotification(NamespaceHubBattery, map[string]any{"id": "S2", "value": float64(87)}) {
		t.Error("sensor rejected a battery reading")
	}
	if sensor.State()["battery"] != 87 {
		t.Errorf("battery = %v, want 87", sensor.State()["battery"])
	}
}

func TestSubDevice_SetOn(t *testing.T) {
	req := &fakeRequester{}
	_, valve, sensor := buildHubWithSubs(t, req)

	if err := valve.SetOn(context.Background(), true); err != nil {
		t.Fatalf("SetOn() error = %v", err)
	}
	if len(req.calls) != 1 {
		t.Fatalf("requests = %d, want 1", len(req.calls))
	}
	call := req.calls[0]
	if call.uuid != "H1" || call.namespace != NamespaceHubToggleX {
		t.Errorf("request = %+v, want routed through hub H1", call)
	}
	if call.payload != `{"togglex":[{"id":"S1","onoff":1}]}` {
		t.Errorf("payload = %s", call.payload)
	}

	if err := sensor.SetOn(context.Background(), true); !errors.Is(err, ErrUnsupported) {
		t.Errorf("sensor SetOn() error = %v, want ErrUnsupported", err)
	}
}

func TestDescribe(t *testing.T) {
	hub, valve, _ := buildHubWithSubs(t, nil)
	valve.HandleHubNotification(NamespaceHubToggleX, map[string]any{"id": "S1", "onoff": float64(1)})

	hubInfo := Describe(hub)
	if hubInfo.ID != "H1" || len(hubInfo.SubDevices) != 2 {
		t.Errorf("Describe(hub) = %+v", hubInfo)
	}

	valveInfo := Describe(valve)
	if valveInfo.ID != "H1:S1" || valveInfo.HubID != "H1" {
		t.Errorf("Describe(valve) = %+v", valveInfo)
	}
	if valveInfo.State["on"] != true {
		t.Errorf("Describe(valve).State = %v", valveInfo.State)
	}

	body, err := json.Marshal(valveInfo)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded["hub_id"] != "H1" {
		t.Errorf("hub_id = %v", decoded["hub_id"])
	}
}

func TestDescriptor(t *testing.T) {
	d := Descriptor{
		"uuid":         "abc",
		"deviceType":   "mss310",
		"devName":      "Lamp",
		"onlineStatus": float64(1),
		"nested":       map[string]any{"k": []any{"v"}},
	}

	if !d.IsTopLevel() || d.IsSubDevice() {
		t.Error("top-level classification wrong")
	}
	if !d.IsOnline() {
		t.Error("IsOnline() = false, want true")
	}
	if d.Name() != "Lamp" {
		t.Errorf("Name() = %q", d.Name())
	}

	clone := d.Clone()
	clone["nested"].(map[string]any)["k"] = "changed"
	if _, ok := d["nested"].(map[string]any)["k"].([]any); !ok {
		t.Error("Clone() shares nested maps with the original")
	}

	sub := Descriptor{"subDeviceId": "S1", "subDeviceType": "ms100", "subDeviceName": "Bath"}
	if sub.IsTopLevel() || !sub.IsSubDevice() {
		t.Error("sub-device classification wrong")
	}
	if sub.Name() != "Bath" {
		t.Errorf("Name() = %q, want Bath", sub.Name())
	}
	if _, ok := sub.OnlineStatus(); ok {
		t.Error("OnlineStatus() ok = true for a descriptor without the key")
	}
}

func TestParseCapability(t *testing.T) {
	if c, err := ParseCapability("light"); err != nil || c != CapLight {
		t.Errorf("ParseCapability(light) = %q, %v", c, err)
	}
	if _, err := ParseCapability("teleport"); !errors.Is(err, ErrInvalidCapability) {
		t.Errorf("ParseCapability(teleport) error = %v, want ErrInvalidCapability", err)
	}
}
