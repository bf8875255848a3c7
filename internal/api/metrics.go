package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Session       SessionMetrics `json:"session"`
	Devices       DeviceMetrics  `json:"devices"`
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

// SessionMetrics reports the session lifecycle and push channel state.
type SessionMetrics struct {
	State      string `json:"state"`
	Connection string `json:"connection"`
}

// DeviceMetrics contains device directory statistics.
type DeviceMetrics struct {
	Total        int            `json:"total"`
	Online       int            `json:"online"`
	ByType       map[string]int `json:"by_type"`
	ByCapability map[string]int `json:"by_capability"`
}

const bytesPerMB = 1024 * 1024

// handleMetrics returns runtime, session, and directory metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / bytesPerMB,
			MemoryTotalMB: float64(memStats.TotalAlloc) / bytesPerMB,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Session: SessionMetrics{
			State:      string(s.manager.State()),
			Connection: string(s.manager.ConnectionState()),
		},
	}

	stats := s.manager.Stats()
	metrics.Devices = DeviceMetrics{
		Total:        stats.TotalDevices,
		Online:       stats.Online,
		ByType:       make(map[string]int, len(stats.ByType)),
		ByCapability: make(map[string]int, len(stats.ByCapability)),
	}
	for t, n := range stats.ByType {
		metrics.Devices.ByType[t] = n
	}
	for c, n := range stats.ByCapability {
		metrics.Devices.ByCapability[string(c)] = n
	}

	writeJSON(w, http.StatusOK, metrics)
}
