package events

// ViolationEvent is emitted when a rule triggers against a component.
// It carries alerting context so hooks can page on violations without
// reconstructing state from the evaluation stream.
type ViolationEvent struct {
	BaseEvent

	// Priority is the alert priority derived from rule severity:
	// "critical", "high", "medium", or "low".
	Priority string `json:"priority"`

	// Alert contains human-readable alert content.
	Alert AlertInfo `json:"alert"`

	// Details identifies the rule and component behind the violation.
	Details ViolationDetails `json:"details"`

	// Context situates the violation within the run.
	Context AlertContext `json:"context"`
}

// AlertInfo contains the displayable alert content.
type AlertInfo struct {
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	ActionRequired string `json:"action_required,omitempty"`
}

// ViolationDetails identifies what triggered and where.
type ViolationDetails struct {
	RuleName   string   `json:"rule_name"`
	CheckType  string   `json:"check_type"`
	Severity   Severity `json:"severity"`
	Component  string   `json:"component"`
	Version    string   `json:"version"`
	Ecosystem  string   `json:"ecosystem,omitempty"`
	Direct     bool     `json:"direct,omitempty"`
	Expression string   `json:"expression,omitempty"`
	VulnIDs    []string `json:"vuln_ids,omitempty"`
}

// AlertContext situates the violation within the run so far.
type AlertContext struct {
	Suite            string `json:"suite,omitempty"`
	EvaluationsSoFar int    `json:"evaluations_so_far"`
	ViolationsSoFar  int    `json:"violations_so_far"`
}

// PriorityFor maps a rule severity to an alert priority.
func PriorityFor(sev Severity) string {
	switch sev {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}
