package events

// ProgressEvent is emitted periodically during a run.
type ProgressEvent struct {
	BaseEvent

	// Progress describes how far along the run is.
	Progress ProgressInfo `json:"progress"`

	// Rate contains current throughput measurements.
	Rate RateInfo `json:"rate"`

	// Timing contains elapsed and estimated remaining time.
	Timing TimingInfo `json:"timing"`

	// Stats contains running outcome counts.
	Stats StatsInfo `json:"stats"`

	// Resources optionally reports process resource usage.
	Resources *ResourceInfo `json:"resources,omitempty"`
}

// ProgressInfo describes run progress.
type ProgressInfo struct {
	// Phase is the current run phase: "facts", "evaluating", "reporting".
	Phase string `json:"phase"`

	// Current is the number of components processed so far.
	Current int `json:"current"`

	// Total is the total number of components.
	Total int `json:"total"`

	// Percentage is the completion percentage (0-100).
	Percentage float64 `json:"percentage"`
}

// RateInfo contains throughput measurements.
type RateInfo struct {
	ComponentsPerSec  float64 `json:"components_per_sec"`
	EvaluationsPerSec float64 `json:"evaluations_per_sec,omitempty"`
	AvgEvalMs         float64 `json:"avg_eval_ms,omitempty"`
}

// TimingInfo contains timing measurements.
type TimingInfo struct {
	ElapsedSec float64 `json:"elapsed_sec"`
	EtaSec     float64 `json:"eta_sec,omitempty"`
}

// StatsInfo contains running outcome counts.
type StatsInfo struct {
	Violations   int     `json:"violations"`
	Passes       int     `json:"passes"`
	Errors       int     `json:"errors"`
	Skipped      int     `json:"skipped,omitempty"`
	CleanRatePct float64 `json:"clean_rate_pct"`
}

// ResourceInfo reports process resource usage.
type ResourceInfo struct {
	MemoryMB   float64 `json:"memory_mb"`
	Goroutines int     `json:"goroutines"`
}
