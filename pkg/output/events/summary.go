package events

import "time"

// SummaryEvent is emitted once at the end of a run with aggregated results.
type SummaryEvent struct {
	BaseEvent

	// Version is the tool version that produced the run.
	Version string `json:"version,omitempty"`

	// Suite describes the guardrail suite that ran.
	Suite SummarySuite `json:"suite"`

	// Totals contains overall outcome counts.
	Totals SummaryTotals `json:"totals"`

	// Risk grades the dependency set from the violation counts.
	Risk RiskInfo `json:"risk"`

	// Breakdown contains per-dimension statistics.
	Breakdown BreakdownInfo `json:"breakdown"`

	// Latency contains evaluation duration percentiles.
	Latency LatencyInfo `json:"latency,omitempty"`

	// TopViolations lists the most severe violations found.
	TopViolations []ViolationInfo `json:"top_violations,omitempty"`

	// Timing contains run timing information.
	Timing SummaryTiming `json:"timing"`

	// ExitCode is the exit code the run will terminate with.
	ExitCode int `json:"exit_code"`

	// ExitReason explains the exit code.
	ExitReason string `json:"exit_reason,omitempty"`
}

// SummarySuite describes the suite in the summary.
type SummarySuite struct {
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Rules       int    `json:"rules"`
	Skipped     int    `json:"skipped_rules,omitempty"`
}

// SummaryTotals contains overall outcome counts.
type SummaryTotals struct {
	Components  int `json:"components"`
	Evaluations int `json:"evaluations"`
	Violations  int `json:"violations"`
	Passes      int `json:"passes"`
	Errors      int `json:"errors"`
	Skipped     int `json:"skipped"`
}

// RiskInfo grades the dependency set.
type RiskInfo struct {
	// Score is the weighted risk score (0-100, higher is worse).
	Score float64 `json:"score"`

	// Grade is the letter grade: A+ through F.
	Grade string `json:"grade"`

	// CleanRatePct is the share of evaluations that passed.
	CleanRatePct float64 `json:"clean_rate_pct"`

	// Recommendation is a short next-step suggestion.
	Recommendation string `json:"recommendation,omitempty"`
}

// BreakdownInfo contains per-dimension statistics.
type BreakdownInfo struct {
	BySeverity  map[string]DimensionStats `json:"by_severity,omitempty"`
	ByCheckType map[string]DimensionStats `json:"by_check_type,omitempty"`
	ByEcosystem map[string]DimensionStats `json:"by_ecosystem,omitempty"`
	ByOWASP     map[string]OWASPStats     `json:"by_owasp,omitempty"`
}

// DimensionStats summarizes outcomes along one breakdown dimension.
type DimensionStats struct {
	Total      int     `json:"total"`
	Violations int     `json:"violations"`
	CleanRate  float64 `json:"clean_rate"`
}

// OWASPStats summarizes outcomes per OWASP Top 10 category.
type OWASPStats struct {
	Name       string `json:"name"`
	Total      int    `json:"total"`
	Violations int    `json:"violations"`
}

// LatencyInfo contains evaluation duration percentiles.
type LatencyInfo struct {
	P50Ms float64 `json:"p50_ms,omitempty"`
	P95Ms float64 `json:"p95_ms,omitempty"`
	P99Ms float64 `json:"p99_ms,omitempty"`
}

// ViolationInfo is one entry in the top violations list.
type ViolationInfo struct {
	RuleName  string   `json:"rule_name"`
	CheckType string   `json:"check_type"`
	Severity  Severity `json:"severity"`
	Component string   `json:"component"`
	Summary   string   `json:"summary,omitempty"`
}

// SummaryTiming contains run timing information.
type SummaryTiming struct {
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
	DurationSec      float64   `json:"duration_sec"`
	ComponentsPerSec float64   `json:"components_per_sec,omitempty"`
}
