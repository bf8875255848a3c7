// Package mqtt provides the cloud push channel for CloudLink Core.
//
// This package manages:
//   - Connection to the cloud broker with auto-reconnect
//   - Subscription to the user push topic and the app response topic
//   - Signed request/response exchanges with devices
//   - Connection state tracking with change notification
//
// # Architecture
//
// Devices publish notifications through the cloud broker. The broker relays
// them to every client of the account on the user push topic. Requests issued
// by this client are answered on a topic unique to this client instance.
//
//	Device ↔ Cloud Broker ↔ Client (push topic + app response topic)
//
// # Message Format
//
//	{
//	  "header": {
//	    "from": "/appliance/<uuid>/publish",
//	    "messageId": "<md5 hex>",
//	    "method": "PUSH",
//	    "namespace": "Appliance.Control.ToggleX",
//	    "payloadVersion": 1,
//	    "sign": "md5(messageId + key + timestamp)",
//	    "timestamp": 1700000000
//	  },
//	  "payload": {"togglex": {"channel": 0, "onoff": 1}}
//	}
//
// # Security Considerations
//
//   - TLS is used for the cloud broker (cfg.Broker.TLS=true)
//   - The broker password is md5(userID + key); the key never leaves the process
//   - Signatures authenticate requests to devices, not confidentiality
//
// # Usage
//
//	client, err := mqtt.New(cfg.MQTT, mqtt.Credentials{UserID: id, Key: key})
//	if err != nil {
//	    return err
//	}
//	client.SetMessageHandler(func(msg *mqtt.Message, fromSelf bool) {
//	    log.Printf("%s from %s", msg.Header.Namespace, msg.Header.From)
//	})
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	resp, err := client.Request(ctx, uuid, mqtt.MethodGet, "Appliance.System.All", map[string]any{})
package mqtt
