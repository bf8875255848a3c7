// Package event defines the lifecycle events raised by CloudLink Core and the
// Bus that fans them out to observers.
//
// Three event kinds exist:
//   - DeviceOnlineEvent: a device became tracked, or its online flag changed
//   - ConnectionEvent: the cloud push channel changed connection state
//   - DeviceStateEvent: a device pushed a state change
//
// Observers implement Handler. Plain functions are adapted with NewHandler:
//
//	h := event.NewHandler(func(e event.Event) error {
//	    log.Info("event", "kind", e.Kind())
//	    return nil
//	})
//	bus.Register(h)
//	defer bus.Unregister(h)
//
// # Failure isolation
//
// Bus.Fire recovers errors and panics per handler. One misbehaving observer
// never prevents delivery to the others and never reaches the code that fired
// the event.
package event
