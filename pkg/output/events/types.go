// Package events defines the event types emitted during a guardrail run.
// Events flow from the runner through the dispatcher to writers and hooks,
// giving every consumer the same structured view of the run: evaluations,
// violations, progress, and the final summary.
package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/depgate/depgate/pkg/finding"
)

// EventType identifies the kind of event.
type EventType string

// Event types emitted during a run, in rough lifecycle order.
const (
	// EventTypeStart is emitted once when a run begins.
	EventTypeStart EventType = "start"

	// EventTypeEvaluation is emitted for every rule evaluated against a
	// component, whatever the outcome.
	EventTypeEvaluation EventType = "evaluation"

	// EventTypeProgress is emitted periodically during long runs.
	EventTypeProgress EventType = "progress"

	// EventTypeViolation is emitted when a rule triggers. It duplicates the
	// matching evaluation event with alerting context so hooks can act on
	// violations without tracking all evaluations.
	EventTypeViolation EventType = "violation"

	// EventTypeComponent is emitted when a component's sweep starts or
	// finishes.
	EventTypeComponent EventType = "component"

	// EventTypeSource is emitted for fact source conditions such as rate
	// limiting or an unreachable provider.
	EventTypeSource EventType = "source"

	// EventTypeError is emitted for errors that do not stop the run.
	EventTypeError EventType = "error"

	// EventTypeSummary is emitted once with the aggregated run results.
	EventTypeSummary EventType = "summary"

	// EventTypeComplete is the final event of a run.
	EventTypeComplete EventType = "complete"
)

// Outcome is the result of evaluating one rule against one component.
type Outcome string

const (
	// OutcomePass means the rule did not trigger.
	OutcomePass Outcome = "pass"

	// OutcomeTriggered means the rule expression evaluated to true.
	OutcomeTriggered Outcome = "triggered"

	// OutcomeError means the expression raised an evaluation error.
	OutcomeError Outcome = "error"

	// OutcomeSkipped means the rule never ran, usually because it failed
	// to compile or the run was cancelled.
	OutcomeSkipped Outcome = "skipped"
)

// IsValid reports whether o is a recognized outcome.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomePass, OutcomeTriggered, OutcomeError, OutcomeSkipped:
		return true
	}
	return false
}

// ParseOutcome validates a raw string from a CLI flag or stored record.
// Matching is case-insensitive; the returned value is canonical lowercase.
func ParseOutcome(raw string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(raw)))
	if !o.IsValid() {
		return "", fmt.Errorf("invalid outcome %q", raw)
	}
	return o, nil
}

// Severity is re-exported so event consumers do not import finding directly.
type Severity = finding.Severity

// Severity levels, most severe first.
const (
	SeverityCritical = finding.Critical
	SeverityHigh     = finding.High
	SeverityMedium   = finding.Medium
	SeverityLow      = finding.Low
	SeverityInfo     = finding.Info
)

// OrderedSeverities returns all severities from most to least severe.
func OrderedSeverities() []Severity { return finding.Ordered() }

// OrderedStrings returns the severity names from most to least severe,
// for writers that key breakdowns by severity name.
func OrderedStrings() []string { return finding.OrderedStrings() }

// Event is the interface all run events implement.
type Event interface {
	// EventType returns the type of this event.
	EventType() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// RunID returns the unique identifier of the run.
	RunID() string
}

// BaseEvent provides common fields for all events.
// Embed it in concrete event types.
type BaseEvent struct {
	Type EventType `json:"type"`
	Time time.Time `json:"timestamp"`
	Run  string    `json:"run_id"`
}

// EventType returns the type of this event.
func (e *BaseEvent) EventType() EventType { return e.Type }

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time { return e.Time }

// RunID returns the unique identifier of the run.
func (e *BaseEvent) RunID() string { return e.Run }
