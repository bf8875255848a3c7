// Package influxdb records session telemetry in InfluxDB.
//
// The Client is an event handler. Registered on the session manager it
// writes one point per lifecycle event:
//
//	DeviceOnlineEvent → device_online   (tags: device_id, device_type)
//	ConnectionEvent   → cloud_connection
//	DeviceStateEvent  → device_state    (tags: device_id, device_type, namespace)
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	mgr.RegisterEventHandler(client)
//
// Writes are batched according to batch_size and flush_interval and never
// block the event bus.
package influxdb
