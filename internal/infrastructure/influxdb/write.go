package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementPower   = "tv_power"
	MeasurementCommand = "tv_command"
	MeasurementPairing = "tv_pairing"
)

// RecordPower writes the observed power state of a TV.
func (c *Client) RecordPower(deviceKey string, on bool) {
	c.WritePoint(MeasurementPower,
		map[string]string{"device": deviceKey},
		map[string]any{"on": on},
	)
}

// RecordCommand writes the outcome and latency of one bridge command.
//
//	client.RecordCommand("living-room", "key", true, 420*time.Millisecond)
func (c *Client) RecordCommand(deviceKey, command string, ok bool, elapsed time.Duration) {
	c.WritePoint(MeasurementCommand,
		map[string]string{"device": deviceKey, "command": command},
		map[string]any{"ok": ok, "duration_ms": elapsed.Milliseconds()},
	)
}

// RecordPairing writes the result of a pairing attempt ("paired",
// "failed" or "unreachable").
func (c *Client) RecordPairing(deviceKey, outcome string) {
	c.WritePoint(MeasurementPairing,
		map[string]string{"device": deviceKey, "outcome": outcome},
		map[string]any{"count": 1},
	)
}

// WritePoint writes a point stamped now. Tags should be low cardinality.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
