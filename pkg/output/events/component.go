package events

import "time"

// ComponentPhase marks where a component is in its sweep.
type ComponentPhase string

const (
	// ComponentStarted means the component's rule sweep has begun.
	ComponentStarted ComponentPhase = "started"

	// ComponentCompleted means every rule has been evaluated.
	ComponentCompleted ComponentPhase = "completed"
)

// ComponentEvent is emitted when a component's rule sweep starts or
// finishes. Streaming consumers use it to group the evaluation events
// in between.
type ComponentEvent struct {
	BaseEvent

	// Phase is "started" or "completed".
	Phase ComponentPhase `json:"phase"`

	// Component describes the package.
	Component ComponentInfo `json:"component"`

	// Violations is the violation count for the component. Only set on
	// completion.
	Violations int `json:"violations,omitempty"`

	// Errors is the evaluation error count for the component. Only set
	// on completion.
	Errors int `json:"errors,omitempty"`

	// DurationMs is the full sweep duration. Only set on completion.
	DurationMs float64 `json:"duration_ms,omitempty"`
}

// NewComponentStartedEvent creates the event opening a component sweep.
func NewComponentStartedEvent(runID string, component ComponentInfo) *ComponentEvent {
	return &ComponentEvent{
		BaseEvent: BaseEvent{
			Type: EventTypeComponent,
			Time: time.Now(),
			Run:  runID,
		},
		Phase:     ComponentStarted,
		Component: component,
	}
}

// NewComponentCompletedEvent creates the event closing a component sweep.
func NewComponentCompletedEvent(runID string, component ComponentInfo, violations, errors int, durationMs float64) *ComponentEvent {
	return &ComponentEvent{
		BaseEvent: BaseEvent{
			Type: EventTypeComponent,
			Time: time.Now(),
			Run:  runID,
		},
		Phase:      ComponentCompleted,
		Component:  component,
		Violations: violations,
		Errors:     errors,
		DurationMs: durationMs,
	}
}
