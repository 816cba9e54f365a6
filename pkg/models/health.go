package models

import "time"

// HealthStatus buckets the composite health score.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// StatusForScore maps a 0-100 health score onto a status bucket.
func StatusForScore(score float64) HealthStatus {
	switch {
	case score >= 80:
		return HealthStatusHealthy
	case score >= 50:
		return HealthStatusDegraded
	default:
		return HealthStatusUnhealthy
	}
}

// ProviderHealth is the dispatch-side view of one provider.
type ProviderHealth struct {
	Enabled      bool   `json:"enabled"`
	Healthy      bool   `json:"healthy"`
	Error        string `json:"error,omitempty"`
	BreakerState string `json:"breaker_state,omitempty"`
}

// BufferStats reports current dispatch buffer occupancy.
type BufferStats struct {
	Metrics int `json:"metrics"`
	Logs    int `json:"logs"`
	Traces  int `json:"traces"`
}

// SystemStats captures process and host gauges sampled by the dispatcher.
type SystemStats struct {
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	ProcessRSSBytes   uint64  `json:"process_rss_bytes"`
	CPUPercent        float64 `json:"cpu_percent"`
	Goroutines        int     `json:"goroutines"`
	ErrorRate         float64 `json:"error_rate"`
	AvgResponseMs     float64 `json:"avg_response_ms"`
	RequestRate       float64 `json:"request_rate"`
}

// HealthSnapshot is the periodic composite health evaluation exposed on
// the status endpoint.
type HealthSnapshot struct {
	Timestamp    time.Time                 `json:"timestamp"`
	Score        float64                   `json:"score"`
	Status       HealthStatus              `json:"status"`
	System       SystemStats               `json:"system"`
	Buffers      BufferStats               `json:"buffers"`
	Providers    map[string]ProviderHealth `json:"providers,omitempty"`
	ActiveAlerts []ActiveAlert             `json:"active_alerts,omitempty"`
}
