package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/railcontrol-core/internal/layout"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Locos         LocoMetrics      `json:"locos"`
	Layout        LayoutMetrics    `json:"layout"`
	Events        EventMetrics     `json:"events"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
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
	ConnectedClients int    `json:"connected_clients"`
	DroppedMessages  uint64 `json:"dropped_messages"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// LocoMetrics counts locomotives by automode state.
type LocoMetrics struct {
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state"`
}

// LayoutMetrics counts layout objects and current holdings.
type LayoutMetrics struct {
	Tracks         int `json:"tracks"`
	TracksHeld     int `json:"tracks_held"`
	TracksBlocked  int `json:"tracks_blocked"`
	Streets        int `json:"streets"`
	StreetsHeld    int `json:"streets_held"`
	Devices        int `json:"devices"`
	Feedbacks      int `json:"feedbacks"`
	FeedbacksInUse int `json:"feedbacks_occupied"`
}

// EventMetrics reports the manager fan-out.
type EventMetrics struct {
	Dropped uint64 `json:"dropped"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			DroppedMessages:  s.hub.Dropped(),
		},
		Events: EventMetrics{
			Dropped: s.mgr.Dropped(),
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Connected: s.mqtt.IsConnected(),
		}
	}

	locos := s.mgr.Locos()
	metrics.Locos = LocoMetrics{
		Total:   len(locos),
		ByState: make(map[string]int),
	}
	for _, lo := range locos {
		metrics.Locos.ByState[lo.State.String()]++
	}

	metrics.Layout = layoutMetrics(s.mgr.Layout())

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

func layoutMetrics(l *layout.Layout) LayoutMetrics {
	var m LayoutMetrics

	tracks := l.Tracks()
	m.Tracks = len(tracks)
	for _, t := range tracks {
		if t.Owner != layout.LocoNone {
			m.TracksHeld++
		}
		if t.Blocked {
			m.TracksBlocked++
		}
	}

	streets := l.Streets()
	m.Streets = len(streets)
	for _, st := range streets {
		if st.Owner != layout.LocoNone {
			m.StreetsHeld++
		}
	}

	m.Devices = len(l.Devices())

	feedbacks := l.Feedbacks()
	m.Feedbacks = len(feedbacks)
	for _, f := range feedbacks {
		if f.Occupied {
			m.FeedbacksInUse++
		}
	}
	return m
}
