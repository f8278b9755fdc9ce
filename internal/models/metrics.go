package models

import "time"

// EngineMetrics is a point-in-time aggregate of engine instrumentation,
// exposed on the detailed health endpoint.
type EngineMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	RecalcCellsSucceeded     uint64    `json:"recalc_cells_succeeded"`
	RecalcCellsFailed        uint64    `json:"recalc_cells_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
