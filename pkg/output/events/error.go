package events

import "time"

// ErrorEvent is emitted for errors that do not terminate the run: a rule
// that failed to evaluate, a fact source that timed out, a component whose
// snapshot could not be built.
type ErrorEvent struct {
	BaseEvent

	// Component is the affected component ref, when the error is scoped
	// to one.
	Component string `json:"component,omitempty"`

	// Rule is the affected rule name, when the error is scoped to one.
	Rule string `json:"rule,omitempty"`

	// ErrorType classifies the error: "eval", "facts", "config", or
	// "internal".
	ErrorType string `json:"error_type"`

	// Message is the error text.
	Message string `json:"message"`

	// Fatal is true when the runner will stop after this event.
	Fatal bool `json:"fatal,omitempty"`
}

// Error type classifications.
const (
	ErrorTypeEval     = "eval"
	ErrorTypeFacts    = "facts"
	ErrorTypeConfig   = "config"
	ErrorTypeInternal = "internal"
)

// NewErrorEvent creates an error event for the given run.
func NewErrorEvent(runID, errorType, message string) *ErrorEvent {
	return &ErrorEvent{
		BaseEvent: BaseEvent{
			Type: EventTypeError,
			Time: time.Now(),
			Run:  runID,
		},
		ErrorType: errorType,
		Message:   message,
	}
}
