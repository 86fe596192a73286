package models

import "time"

// SystemMetrics is a lightweight aggregate snapshot for the metrics endpoint.
type SystemMetrics struct {
	CacheHitRatio              float64   `json:"cache_hit_ratio"`
	CacheHits                  uint64    `json:"cache_hits"`
	CacheMisses                uint64    `json:"cache_misses"`
	RequestsTotal              uint64    `json:"requests_total"`
	AverageRequestDurationMs   float64   `json:"average_request_duration_ms"`
	ReconcileRuns              uint64    `json:"reconcile_runs"`
	AverageReconcileDurationMs float64   `json:"average_reconcile_duration_ms"`
	Goroutines                 int       `json:"goroutines"`
	GeneratedAt                time.Time `json:"generated_at"`
}
