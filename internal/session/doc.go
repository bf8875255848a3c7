// Package session provides the session manager of CloudLink Core.
//
// The Manager ties the cloud collaborators together for one login session:
//
//	┌──────────────┐  push   ┌──────────────────┐  lookup  ┌─────────────────┐
//	│  Transport   │────────▶│  Router          │─────────▶│ device.Registry │
//	│ (mqtt)       │         │  (router.go)     │          └─────────────────┘
//	└──────────────┘         │  miss → Discover │                  ▲
//	       │ state           └──────────────────┘                  │ insert
//	       ▼                          │                            │
//	┌──────────────┐         ┌──────────────────┐  list   ┌─────────────────┐
//	│  event.Bus   │◀────────│  Discovery       │────────▶│  Discoverer     │
//	│              │  fire   │  (discovery.go)  │         │  (cloud HTTP)   │
//	└──────────────┘         └──────────────────┘         └─────────────────┘
//
// The device registry lags the cloud: a notification from an unknown device
// triggers one discovery pass and is then dropped. Devices are never removed
// from the registry for the lifetime of the manager.
//
// # Lifecycle
//
//	created ──Start──▶ started ──Stop──▶ stopped
//
// A failed Start closes the transport and leaves the manager in created, so
// Start may be retried. Queries work in every state; they log a warning when
// the push channel is not subscribed.
//
// # Usage
//
//	mgr, err := session.New(httpClient, mqttClient, device.NewFactory())
//	if err != nil {
//	    return err
//	}
//	mgr.SetLogger(log)
//	mgr.RegisterEventHandler(event.NewHandler(func(e event.Event) error {
//	    log.Info("event", "kind", e.Kind())
//	    return nil
//	}))
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
//
//	lamp, err := mgr.DeviceByName("desk lamp")
package session
