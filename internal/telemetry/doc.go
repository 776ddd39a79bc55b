// Package telemetry records indicator state changes off the hot path.
//
// The Recorder is the mode controller's Observer. It queues every change
// and a single worker writes it to the local state history audit trail
// (SQLite) and to InfluxDB. Both sinks are optional and best-effort: a
// failed write is logged and counted, never retried. The worker also
// prunes history older than the configured retention once a day.
package telemetry
