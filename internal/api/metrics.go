package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/indicator-core/internal/bridges/network"
	"github.com/nerrad567/indicator-core/internal/bridges/presentation"
	"github.com/nerrad567/indicator-core/internal/loop"
	"github.com/nerrad567/indicator-core/internal/telemetry"
)

// MetricsSources supplies component counters for GET /metrics.
// Any field may be nil.
type MetricsSources struct {
	Network   func() network.Status
	Display   func() presentation.Status
	Loop      func() loop.Stats
	Telemetry func() telemetry.Stats
}

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string               `json:"timestamp"`
	Version       string               `json:"version"`
	DeviceID      string               `json:"device_id"`
	UptimeSeconds int64                `json:"uptime_seconds"`
	Runtime       RuntimeMetrics       `json:"runtime"`
	WebSocket     WSMetrics            `json:"websocket"`
	Network       *network.Status      `json:"network,omitempty"`
	Display       *presentation.Status `json:"display,omitempty"`
	Loop          *loop.Stats          `json:"loop,omitempty"`
	Telemetry     *telemetry.Stats     `json:"telemetry,omitempty"`
	Database      *DatabaseMetrics     `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns runtime and component metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		DeviceID:      s.deviceID,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
	}

	if fn := s.metrics.Network; fn != nil {
		st := fn()
		metrics.Network = &st
	}
	if fn := s.metrics.Display; fn != nil {
		st := fn()
		metrics.Display = &st
	}
	if fn := s.metrics.Loop; fn != nil {
		st := fn()
		metrics.Loop = &st
	}
	if fn := s.metrics.Telemetry; fn != nil {
		st := fn()
		metrics.Telemetry = &st
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
