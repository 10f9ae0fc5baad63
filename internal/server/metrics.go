package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics collects basic application counters exposed as JSON.
type Metrics struct {
	awardsTotal   atomic.Int64
	pointsTotal   atomic.Int64
	cappedAwards  atomic.Int64
	seasonsRolled atomic.Int64
	feedClients   atomic.Int64
	startTime     time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) IncrAwards(points int) {
	m.awardsTotal.Add(1)
	m.pointsTotal.Add(int64(points))
}
func (m *Metrics) IncrCapped()     { m.cappedAwards.Add(1) }
func (m *Metrics) IncrSeasonRoll() { m.seasonsRolled.Add(1) }
func (m *Metrics) IncrFeedClient() { m.feedClients.Add(1) }
func (m *Metrics) DecrFeedClient() { m.feedClients.Add(-1) }

// ServeHTTP exposes metrics as JSON at /metrics.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	data := map[string]any{
		"uptime_seconds": int(time.Since(m.startTime).Seconds()),
		"awards_total":   m.awardsTotal.Load(),
		"points_total":   m.pointsTotal.Load(),
		"capped_awards":  m.cappedAwards.Load(),
		"seasons_rolled": m.seasonsRolled.Load(),
		"feed_clients":   m.feedClients.Load(),
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc_mb":  mem.HeapAlloc / 1024 / 1024,
		"sys_mb":         mem.Sys / 1024 / 1024,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
}
