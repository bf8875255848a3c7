// Package api implements the read-only HTTP status API and WebSocket event
// stream for CloudLink Core.
//
// Routes (all under /api/v1):
//
//	GET  /health          session, push channel, and component health
//	GET  /metrics         runtime, session, and directory counters
//	GET  /devices         tracked devices (?name=, ?type=, ?capability=)
//	GET  /devices/stats   directory statistics
//	GET  /devices/{id}    one device; sub-devices use "hub:sub"
//	POST /discover        run a discovery pass (?online_only=true)
//	GET  /events          recorded lifecycle events (audit trail)
//	GET  /ws              WebSocket event stream
//
// # Authentication
//
// When api.auth.jwt_secret is set, every route except /health requires an
// HS256 bearer token minted with the same secret (see package auth). Viewer
// tokens may read; POST /discover needs an operator token. WebSocket
// upgrades may pass the token as ?token= since browsers cannot set headers
// on them. With no secret the API is open, which suits a loopback bind.
//
// # Event stream
//
// The Hub is an event.Handler. Registered on the session manager, it
// broadcasts each lifecycle event on the channel named by the event kind:
//
//	device.online_status   cloud.connection_state   device.state_changed
//
// Clients pick channels with subscribe/unsubscribe messages ("*" selects
// all) and may send ping to receive pong:
//
//	→ {"type":"subscribe","id":"1","payload":{"channels":["device.online_status"]}}
//	← {"type":"response","id":"1","payload":{"subscribed":["device.online_status"]}}
//	← {"type":"event","event_type":"device.online_status","payload":{...}}
//
// # Usage
//
//	hub := api.NewHub(cfg.WebSocket, log)
//	mgr.RegisterEventHandler(hub)
//	go hub.Run(ctx)
//
//	srv, err := api.New(api.Deps{Config: cfg.API, Logger: log, Manager: mgr, Hub: hub})
//	srv.Start(ctx)
//	defer srv.Close()
//
// The API never commands devices. Discovery is the only operation with side
// effects and goes through the session manager like any other pass.
package api
