package events

// EvaluationEvent is emitted for each rule evaluated against a component.
type EvaluationEvent struct {
	BaseEvent

	// Rule describes the guardrail rule that ran.
	Rule RuleInfo `json:"rule"`

	// Component describes the package under evaluation.
	Component ComponentInfo `json:"component"`

	// Result contains the evaluation outcome.
	Result ResultInfo `json:"result"`

	// Evidence optionally carries the expression and observed facts.
	Evidence *Evidence `json:"evidence,omitempty"`
}

// RuleInfo describes a guardrail rule in events.
type RuleInfo struct {
	Name       string   `json:"name"`
	CheckType  string   `json:"check_type"`
	Severity   Severity `json:"severity"`
	Summary    string   `json:"summary,omitempty"`
	References []string `json:"references,omitempty"`
}

// ComponentInfo describes the component in events.
type ComponentInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Ecosystem string `json:"ecosystem,omitempty"`

	// Ref is the short coordinate, e.g. "npm/lodash@4.17.20".
	Ref string `json:"ref"`

	// Direct is true for dependencies declared in the manifest, false for
	// transitive ones pulled in further down the tree.
	Direct bool `json:"direct,omitempty"`

	// Fingerprint identifies the fact snapshot the rule ran against.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// ResultInfo contains the outcome of one evaluation.
type ResultInfo struct {
	Outcome    Outcome `json:"outcome"`
	DurationMs float64 `json:"duration_ms,omitempty"`

	// Err holds the evaluation error message for OutcomeError.
	Err string `json:"error,omitempty"`
}

// Evidence carries the expression and fact values behind an outcome.
type Evidence struct {
	// Expression is the rule expression that produced the outcome.
	Expression string `json:"expression,omitempty"`

	// VulnIDs lists advisory identifiers that contributed to the outcome.
	VulnIDs []string `json:"vuln_ids,omitempty"`

	// Observed summarizes the fact values the expression inspected.
	Observed string `json:"observed,omitempty"`
}
