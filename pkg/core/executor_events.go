package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/finding"
	"github.com/depgate/depgate/pkg/output/events"
	"github.com/depgate/depgate/pkg/policy"
	"github.com/depgate/depgate/pkg/scoring"
)

// outcomeFor maps an engine evaluation to its event outcome. Skipped wins
// over the error text it carries: a rule that never ran is not an
// evaluation failure.
func outcomeFor(ev policy.Evaluation) events.Outcome {
	switch {
	case ev.Skipped:
		return events.OutcomeSkipped
	case ev.Err != "":
		return events.OutcomeError
	case ev.Triggered:
		return events.OutcomeTriggered
	default:
		return events.OutcomePass
	}
}

// componentInfo converts a snapshot's component into its event form.
func componentInfo(snap *facts.Snapshot) events.ComponentInfo {
	if snap == nil {
		return events.ComponentInfo{}
	}
	return events.ComponentInfo{
		Name:        snap.Component.Name,
		Version:     snap.Component.Version,
		Ecosystem:   snap.Component.Ecosystem,
		Ref:         snap.Component.Ref(),
		Direct:      snap.Component.Direct,
		Fingerprint: fmt.Sprintf("%016x", snap.Fingerprint()),
	}
}

// suiteFingerprint renders the suite content hash for event fields.
func suiteFingerprint(s *policy.Suite) string {
	return fmt.Sprintf("%016x", s.Fingerprint())
}

// checkTypeOrder returns check type names in report order.
func checkTypeOrder() []string {
	cts := finding.CheckTypes()
	out := make([]string, len(cts))
	for i, ct := range cts {
		out[i] = ct.String()
	}
	return out
}

// buildEvaluationEvent converts one engine evaluation into its event.
// idx is the evaluation's position, which matches the compiled rule at
// the same position since sweeps walk rules in document order.
func (e *Executor) buildEvaluationEvent(res policy.ComponentResult, idx int, snap *facts.Snapshot) *events.EvaluationEvent {
	ev := res.Evaluations[idx]
	outcome := outcomeFor(ev)

	event := &events.EvaluationEvent{
		BaseEvent: events.BaseEvent{
			Type: events.EventTypeEvaluation,
			Time: time.Now(),
			Run:  e.runID,
		},
		Rule: events.RuleInfo{
			Name:      ev.RuleName,
			CheckType: ev.CheckType.String(),
			Severity:  ev.Severity,
			Summary:   ev.Summary,
		},
		Component: componentInfo(snap),
		Result: events.ResultInfo{
			Outcome:    outcome,
			DurationMs: float64(ev.Duration.Microseconds()) / 1000.0,
			Err:        ev.Err,
		},
	}

	if idx < len(e.config.Suite.Rules) {
		rule := e.config.Suite.Rules[idx]
		event.Rule.References = rule.References
		if outcome == events.OutcomeTriggered || outcome == events.OutcomeError {
			event.Evidence = buildEvidence(rule.Rule, snap)
		}
	}
	return event
}

// buildEvidence gathers the fact values behind a verdict, shaped by the
// rule's check type.
func buildEvidence(rule policy.Rule, snap *facts.Snapshot) *events.Evidence {
	ev := &events.Evidence{Expression: rule.Value}
	if snap == nil {
		return ev
	}

	switch rule.CheckType {
	case finding.CheckVuln:
		for _, v := range snap.SortedVulnerabilities() {
			ev.VulnIDs = append(ev.VulnIDs, v.ID)
		}
	case finding.CheckScorecard:
		if snap.Scorecard != nil {
			ev.Observed = fmt.Sprintf("scorecard aggregate %.1f across %d checks",
				snap.Scorecard.Aggregate(), len(snap.Scorecard.Scores))
		}
	case finding.CheckPopularity:
		if stars, ok := maxStars(snap.Projects); ok {
			ev.Observed = fmt.Sprintf("max stars %d across %d projects", stars, len(snap.Projects))
		}
	case finding.CheckLicense:
		if len(snap.Licenses) > 0 {
			ev.Observed = "licenses: " + strings.Join(snap.Licenses, ", ")
		}
	}
	return ev
}

// maxStars returns the largest star count among the linked projects.
func maxStars(projects []facts.Project) (int, bool) {
	if len(projects) == 0 {
		return 0, false
	}
	max := projects[0].Stars
	for _, p := range projects[1:] {
		if p.Stars > max {
			max = p.Stars
		}
	}
	return max, true
}

// buildEvalErrorEvent wraps an errored evaluation in an error event so
// consumers that only watch the error stream still see it.
func (e *Executor) buildEvalErrorEvent(event *events.EvaluationEvent) *events.ErrorEvent {
	errEvent := events.NewErrorEvent(e.runID, events.ErrorTypeEval, event.Result.Err)
	errEvent.Component = event.Component.Ref
	errEvent.Rule = event.Rule.Name
	return errEvent
}

// buildViolationEvent wraps a triggered evaluation with alerting context.
func (e *Executor) buildViolationEvent(event *events.EvaluationEvent, counts *runCounts) *events.ViolationEvent {
	details := events.ViolationDetails{
		RuleName:  event.Rule.Name,
		CheckType: event.Rule.CheckType,
		Severity:  event.Rule.Severity,
		Component: event.Component.Name,
		Version:   event.Component.Version,
		Ecosystem: event.Component.Ecosystem,
		Direct:    event.Component.Direct,
	}
	if event.Evidence != nil {
		details.Expression = event.Evidence.Expression
		details.VulnIDs = event.Evidence.VulnIDs
	}

	return &events.ViolationEvent{
		BaseEvent: events.BaseEvent{
			Type: events.EventTypeViolation,
			Time: time.Now(),
			Run:  e.runID,
		},
		Priority: events.PriorityFor(event.Rule.Severity),
		Alert: events.AlertInfo{
			Title:          fmt.Sprintf("Guardrail %q triggered on %s", event.Rule.Name, event.Component.Ref),
			Description:    event.Rule.Summary,
			ActionRequired: actionFor(event.Rule.Severity),
		},
		Details: details,
		Context: events.AlertContext{
			Suite:            e.config.Suite.Suite.Name,
			EvaluationsSoFar: int(counts.evaluations.Load()),
			ViolationsSoFar:  int(counts.violations.Load()),
		},
	}
}

// actionFor suggests a next step for a violation of the given severity.
func actionFor(sev events.Severity) string {
	switch sev {
	case events.SeverityCritical:
		return "Block the release and remediate immediately"
	case events.SeverityHigh:
		return "Upgrade or replace the component before the next release"
	case events.SeverityMedium:
		return "Schedule remediation this cycle"
	default:
		return "Review at the next dependency update"
	}
}

// scoringInput builds the risk-scoring input for one evaluation.
func scoringInput(event *events.EvaluationEvent, snap *facts.Snapshot) scoring.Input {
	in := scoring.Input{
		Severity:  event.Rule.Severity.String(),
		Outcome:   string(event.Result.Outcome),
		CheckType: event.Rule.CheckType,
	}
	if snap != nil {
		in.VulnCount = len(snap.Vulnerabilities)
		in.HasScorecard = snap.Scorecard != nil
		in.ScorecardScore = snap.Scorecard.Aggregate()
		in.Direct = snap.Component.Direct
	}
	return in
}
