package events

import "time"

// StartEvent is emitted when a guardrail run begins.
type StartEvent struct {
	BaseEvent

	// Suite is the name of the loaded guardrail suite.
	Suite string `json:"suite"`

	// SuitePath is the file the suite was loaded from, when known.
	SuitePath string `json:"suite_path,omitempty"`

	// SuiteFingerprint identifies the exact suite content.
	SuiteFingerprint string `json:"suite_fingerprint,omitempty"`

	// TotalRules is the number of rules that compiled and will run.
	TotalRules int `json:"total_rules"`

	// SkippedRules is the number of rules rejected at load time.
	SkippedRules int `json:"skipped_rules,omitempty"`

	// TotalComponents is the number of components queued for evaluation.
	TotalComponents int `json:"total_components"`

	// Sources names the fact providers feeding the run ("file", "osv").
	Sources []string `json:"sources,omitempty"`

	// CheckTypes lists the distinct check types present in the suite.
	CheckTypes []string `json:"check_types,omitempty"`

	// Config captures the run configuration.
	Config ConfigInfo `json:"config"`
}

// ConfigInfo describes the run configuration in the start event.
type ConfigInfo struct {
	Concurrency int    `json:"concurrency"`
	Timeout     int    `json:"timeout_sec,omitempty"`
	FailFast    bool   `json:"fail_fast,omitempty"`
	Offline     bool   `json:"offline,omitempty"`
	MinSeverity string `json:"min_severity,omitempty"`
}

// NewStartEvent creates a start event for the given run.
func NewStartEvent(runID string) *StartEvent {
	return &StartEvent{
		BaseEvent: BaseEvent{
			Type: EventTypeStart,
			Time: time.Now(),
			Run:  runID,
		},
	}
}
