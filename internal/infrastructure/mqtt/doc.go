// Package mqtt connects the TV bridge to the building's MQTT broker.
//
// It wraps paho.mqtt.golang with:
//   - auto-reconnect with backoff and subscription restore
//   - a retained online/offline status per client, with a last will
//   - topic builders for the flat graylogic/{category}/{protocol}/{address}
//     scheme
//   - panic recovery around message handlers
//   - retained publishes limited to state, health and status topics
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.PublishJSON(mqtt.Topics{}.BridgeState("tv", "living-room"), state, true)
//
// Tests that need a broker at 127.0.0.1:1883 carry the integration build tag:
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...
package mqtt
