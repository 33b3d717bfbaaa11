// Package influxdb records TV bridge telemetry in InfluxDB 2.x.
//
// It wraps influxdb-client-go v2 with a non-blocking, batched write API.
// The bridge uses it to keep a history of:
//   - power state transitions ("tv_power")
//   - command outcomes and latency ("tv_command")
//   - pairing attempts ("tv_pairing")
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.RecordPower("living-room", true)
//
// Write failures are delivered asynchronously to the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
