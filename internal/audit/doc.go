// Package audit keeps a persistent trail of session lifecycle events.
//
// The Recorder is registered on the session manager like any other event
// handler and turns events into rows of the audit_logs table:
//
//	DeviceOnlineEvent (Discovered) → device_discovered
//	DeviceOnlineEvent              → online_status
//	ConnectionEvent                → connection_state
//	DeviceStateEvent               → state_changed (opt-in)
//
// The status API reads the trail back through Repository.List.
package audit
