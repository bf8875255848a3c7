package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/cloudlink-core/internal/event"
)

// Measurement names.
const (
	MeasurementDeviceOnline    = "device_online"
	MeasurementCloudConnection = "cloud_connection"
	MeasurementDeviceState     = "device_state"
)

// HandleEvent implements event.Handler, turning lifecycle events into points.
// Events that carry no telemetry are ignored.
func (c *Client) HandleEvent(e event.Event) error {
	switch ev := e.(type) {
	case event.DeviceOnlineEvent:
		c.WriteDeviceOnline(ev.Device.ID(), ev.Device.Type(), ev.Online, ev.Discovered, ev.Time)
	case event.ConnectionEvent:
		c.WriteConnectionState(ev.State, ev.Time)
	case event.DeviceStateEvent:
		c.WriteDeviceState(ev.Device.ID(), ev.Device.Type(), ev.Namespace, ev.State, ev.Time)
	}
	return nil
}

// WriteDeviceOnline records a device online flag.
//
// Example line:
//
//	device_online,device_id=H1:S1,device_type=mts100v3 online=true,discovered=false
func (c *Client) WriteDeviceOnline(deviceID, deviceType string, online, discovered bool, ts time.Time) {
	c.writePoint(MeasurementDeviceOnline,
		map[string]string{"device_id": deviceID, "device_type": deviceType},
		map[string]any{"online": online, "discovered": discovered},
		ts)
}

// WriteConnectionState records a push channel state change. The subscribed
// field makes uptime queries a simple mean.
func (c *Client) WriteConnectionState(state string, ts time.Time) {
	c.writePoint(MeasurementCloudConnection,
		nil,
		map[string]any{"state": state, "subscribed": state == "subscribed"},
		ts)
}

// WriteDeviceState records the numeric and boolean values of a state change.
// Other value types are skipped; nothing is written if none remain.
func (c *Client) WriteDeviceState(deviceID, deviceType, namespace string, state map[string]any, ts time.Time) {
	fields := make(map[string]any, len(state))
	for k, v := range state {
		switch v.(type) {
		case bool, int, int64, float64:
			fields[k] = v
		}
	}
	if len(fields) == 0 {
		return
	}

	c.writePoint(MeasurementDeviceState,
		map[string]string{"device_id": deviceID, "device_type": deviceType, "namespace": namespace},
		fields,
		ts)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
