// Package influxdb records indicator state changes as time-series points.
//
// Each controller transition becomes one indicator_state point carrying the
// light mode flags and tank level, so dashboards can chart water level
// against mode usage. Writes are batched and non-blocking; the indicator
// never waits on InfluxDB.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteIndicatorState(influxdb.StatePoint{DeviceID: id, WaterLevel: 42, At: time.Now()})
package influxdb
