package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementIndicatorState is the measurement holding one point per
// indicator state change.
const MeasurementIndicatorState = "indicator_state"

// StatePoint is the data recorded for one state change.
type StatePoint struct {
	DeviceID    string
	Source      string
	WaterStatus string
	BrightOn    bool
	RelaxOn     bool
	WaterLevel  int
	At          time.Time
}

// WriteIndicatorState queues a state change point. The write is batched
// and non-blocking; it is dropped silently when the client is closed.
//
// Example:
//
//	client.WriteIndicatorState(influxdb.StatePoint{
//	    DeviceID:   "sensecap-indicator-d1",
//	    Source:     "water_level",
//	    WaterLevel: 42,
//	    At:         time.Now(),
//	})
func (c *Client) WriteIndicatorState(p StatePoint) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newStatePoint(p))
}

// newStatePoint builds the line-protocol point for p.
// Tags stay low cardinality: device, source, and water status.
func newStatePoint(p StatePoint) *write.Point {
	tags := map[string]string{
		"device_id": p.DeviceID,
		"source":    p.Source,
	}
	if p.WaterStatus != "" {
		tags["water_status"] = p.WaterStatus
	}

	at := p.At
	if at.IsZero() {
		at = time.Now()
	}

	return write.NewPoint(
		MeasurementIndicatorState,
		tags,
		map[string]any{
			"bright_on":   p.BrightOn,
			"relax_on":    p.RelaxOn,
			"water_level": int64(p.WaterLevel),
		},
		at,
	)
}
