package events

import "time"

// SourceCondition classifies a fact source event.
type SourceCondition string

const (
	// SourceRateLimited means the provider returned 429 and the runner
	// is backing off.
	SourceRateLimited SourceCondition = "rate_limited"

	// SourceUnavailable means the provider could not be reached and the
	// affected components will be evaluated from whatever facts exist.
	SourceUnavailable SourceCondition = "unavailable"

	// SourceDegraded means the provider answered partially, for example
	// with truncated vulnerability pages.
	SourceDegraded SourceCondition = "degraded"
)

// SourceEvent is emitted for fact provider conditions worth surfacing:
// rate limiting, outages, and partial answers. These are advisory; the
// run continues and errors that affect outcomes arrive as error events.
type SourceEvent struct {
	BaseEvent

	// Source names the provider ("osv", "file").
	Source string `json:"source"`

	// Condition classifies what happened.
	Condition SourceCondition `json:"condition"`

	// Detail is a human-readable explanation.
	Detail string `json:"detail,omitempty"`

	// RetryAfterSec is the provider-requested backoff, when known.
	RetryAfterSec float64 `json:"retry_after_sec,omitempty"`

	// Components lists affected component refs, when scoped.
	Components []string `json:"components,omitempty"`
}

// NewSourceEvent creates a source condition event for the given run.
func NewSourceEvent(runID, source string, condition SourceCondition, detail string) *SourceEvent {
	return &SourceEvent{
		BaseEvent: BaseEvent{
			Type: EventTypeSource,
			Time: time.Now(),
			Run:  runID,
		},
		Source:    source,
		Condition: condition,
		Detail:    detail,
	}
}
