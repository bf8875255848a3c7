package session

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/cloudlink-core/internal/device"
	"github.com/nerrad567/cloudlink-core/internal/event"
)

func startedManager(t *testing.T, d *fakeDiscoverer) (*Manager, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	m := newTestManager(t, d, tr)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Stop() })
	return m, tr
}

func TestHandlePush_RoutesToKnownDevice(t *testing.T) {
	d := newFakeDiscoverer(plugDesc("P1", "Kettle", device.StatusOnline))
	m, tr := startedManager(t, d)

	rec := &eventRecorder{}
	m.RegisterEventHandler(rec)

	tr.push("/appliance/P1/publish", device.NamespaceToggleX, map[string]any{
		"togglex": map[string]any{"channel": 0, "onoff": 1},
	})

	h, _ := m.DeviceByUUID("P1")
	plug, ok := h.(*device.Plug)
	if !ok {
		t.Fatalf("P1 is %T, want *device.Plug", h)
	}
	if !plug.IsOn(0) {
		t.Error("IsOn(0) = false after push")
	}
	if got := rec.count(event.KindDeviceState); got != 1 {
		t.Errorf("state events = %d, want 1", got)
	}
	if got := d.listCalls.Load(); got != 1 {
		t.Errorf("ListDevices calls = %d, want 1 (no rediscovery)", got)
	}
}

func TestHandlePush_OnlineStatusChange(t *testing.T) {
	d := newFakeDiscoverer(plugDesc("P1", "Kettle", device.StatusOnline))
	m, tr := startedManager(t, d)

	rec := &eventRecorder{}
	m.RegisterEventHandler(rec)

	tr.push("/appliance/P1/publish", device.NamespaceSystemOnline, map[string]any{
		"online": map[string]any{"status": device.StatusOffline},
	})

	events := rec.onlineEvents()
	if len(events) != 1 {
		t.Fatalf("online events = %d, want 1", len(events))
	}
	if events[0].Online || events[0].Discovered {
		t.Errorf("event = %+v, want Online=false Discovered=false", events[0])
	}
	h, _ := m.DeviceByUUID("P1")
	if h.IsOnline() {
		t.Error("IsOnline() = true after offline push")
	}
}

func TestHandlePush_HubFanOut(t *testing.T) {
	d := newFakeDiscoverer(hubDesc("H1", "Hub"))
	d.setSubDevices("H1",
		subDesc("S1", "mts100v3", "Valve"),
		subDesc("S2", "mts100v3", "Other Valve"),
	)
	m, tr := startedManager(t, d)

	tr.push("/appliance/H1/publish", device.NamespaceHubToggleX, map[string]any{
		"togglex": []map[string]any{{"id": "S1", "onoff": 1}},
	})

	s1, _ := m.DeviceByUUID("H1:S1")
	s2, _ := m.DeviceByUUID("H1:S2")
	if !s1.(*device.SubDevice).IsOn() {
		t.Error("S1 IsOn() = false after hub push")
	}
	if s2.(*device.SubDevice).IsOn() {
		t.Error("S2 IsOn() = true, notification was for S1 only")
	}
}

func TestHandlePush_UnknownOriginTriggersOneDiscovery(t *testing.T) {
	d := newFakeDiscoverer(plugDesc("P1", "Kettle", device.StatusOnline))
	m, tr := startedManager(t, d)
	logger := &recordingLogger{}
	m.SetLogger(logger)

	rec := &eventRecorder{}
	m.RegisterEventHandler(rec)

	d.setDevices(
		plugDesc("P1", "Kettle", device.StatusOnline),
		plugDesc("P2", "Lamp", device.StatusOnline),
	)
	before := d.listCalls.Load()

	tr.push("/appliance/P2/publish", device.NamespaceToggleX, map[string]any{
		"togglex": map[string]any{"channel": 0, "onoff": 1},
	})

	if got := d.listCalls.Load() - before; got != 1 {
		t.Errorf("discovery passes = %d, want 1", got)
	}
	h, err := m.DeviceByUUID("P2")
	if err != nil {
		t.Fatalf("P2 not discovered: %v", err)
	}
	// The triggering notification is dropped, not replayed.
	if h.(*device.Plug).IsOn(0) {
		t.Error("triggering notification was applied to the new device")
	}
	if got := len(rec.onlineEvents()); got != 1 {
		t.Errorf("online events = %d, want 1", got)
	}
	if logger.errorCount() != 0 {
		t.Errorf("errors logged = %d, want 0", logger.errorCount())
	}
}

func TestHandlePush_UnknownOriginStillUnknown(t *testing.T) {
	d := newFakeDiscoverer(plugDesc("P1", "Kettle", device.StatusOnline))
	m, tr := startedManager(t, d)
	logger := &recordingLogger{}
	m.SetLogger(logger)
	before := d.listCalls.Load()

	tr.push("/appliance/GHOST/publish", device.NamespaceToggleX, map[string]any{})

	if got := d.listCalls.Load() - before; got != 1 {
		t.Errorf("discovery passes = %d, want 1", got)
	}
	if logger.warnCount() != 1 {
		t.Errorf("warnings = %d, want 1", logger.warnCount())
	}
	if got := len(m.SupportedDevices()); got != 1 {
		t.Errorf("devices = %d, want 1", got)
	}
}

func TestHandlePush_DiscoveryFailureIsLogged(t *testing.T) {
	d := newFakeDiscoverer(plugDesc("P1", "Kettle", device.StatusOnline))
	m, tr := startedManager(t, d)
	logger := &recordingLogger{}
	m.SetLogger(logger)

	d.mu.Lock()
	d.listErr = errors.New("api down")
	d.mu.Unlock()

	tr.push("/appliance/P2/publish", device.NamespaceToggleX, map[string]any{})

	if logger.errorCount() != 1 {
		t.Errorf("errors logged = %d, want 1", logger.errorCount())
	}
}

func TestHandlePush_MalformedOriginDropped(t *testing.T) {
	d := newFakeDiscoverer(plugDesc("P1", "Kettle", device.StatusOnline))
	m, tr := startedManager(t, d)
	logger := &recordingLogger{}
	m.SetLogger(logger)
	before := d.listCalls.Load()

	for _, from := range []string{"", "P1", "/appliance"} {
		tr.push(from, device.NamespaceToggleX, map[string]any{})
	}

	if got := d.listCalls.Load() - before; got != 0 {
		t.Errorf("discovery passes = %d, want 0", got)
	}
	if logger.warnCount() != 3 {
		t.Errorf("warnings = %d, want 3", logger.warnCount())
	}
}

func TestHandlePush_FailingHandlerIsolated(t *testing.T) {
	d := newFakeDiscoverer(plugDesc("P1", "Kettle", device.StatusOnline))
	m, tr := startedManager(t, d)

	m.RegisterEventHandler(event.NewHandler(func(event.Event) error {
		return errors.New("observer failed")
	}))
	m.RegisterEventHandler(event.NewHandler(func(event.Event) error {
		panic("observer panicked")
	}))
	rec := &eventRecorder{}
	m.RegisterEventHandler(rec)

	tr.push("/appliance/P1/publish", device.NamespaceToggleX, map[string]any{
		"togglex": map[string]any{"channel": 0, "onoff": 1},
	})

	if got := rec.count(event.KindDeviceState); got != 1 {
		t.Errorf("state events after failing handlers = %d, want 1", got)
	}
	h, _ := m.DeviceByUUID("P1")
	if !h.(*device.Plug).IsOn(0) {
		t.Error("device state not applied")
	}
}
