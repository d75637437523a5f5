package events

import (
	"time"

	"github.com/depgate/depgate/pkg/defaults"
)

// CompleteEvent is the final event of a run.
type CompleteEvent struct {
	BaseEvent

	// Success is true when the run finished without fatal errors,
	// whether or not violations were found.
	Success bool `json:"success"`

	// ExitCode is the process exit code.
	ExitCode int `json:"exit_code"`

	// ExitReason explains the exit code.
	ExitReason string `json:"exit_reason,omitempty"`

	// Summary embeds the run summary for consumers that only subscribe
	// to the complete event.
	Summary *SummaryEvent `json:"summary,omitempty"`
}

// NewCompleteEvent creates a complete event for the given run.
func NewCompleteEvent(runID string, exitCode int, reason string) *CompleteEvent {
	return &CompleteEvent{
		BaseEvent: BaseEvent{
			Type: EventTypeComplete,
			Time: time.Now(),
			Run:  runID,
		},
		Success:    exitCode < defaults.ExitConfigError,
		ExitCode:   exitCode,
		ExitReason: reason,
	}
}
