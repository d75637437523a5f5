// Regression tests for rule isolation in the evaluation engine.
//
// Bug: an EvalError in one rule aborted the remaining rules of the suite,
// so a single bad expression hid every later violation.
// Fix: errors are recorded per evaluation and the sweep always visits
// every rule.
package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/finding"
)

// TestEngine_ErrorDoesNotAbortSweep verifies that rules after a failing one
// still evaluate and can still trigger.
func TestEngine_ErrorDoesNotAbortSweep(t *testing.T) {
	t.Parallel()

	suite, err := Parse([]byte(`
filters:
  - name: broken-first
    check_type: other
    summary: "Fails at evaluation time"
    value: "pkg.nosuch == true"
  - name: fires-after
    check_type: vuln
    summary: "Must still be evaluated"
    value: "vulns.critical.exists(p, true)"
`))
	require.NoError(t, err)

	snap := &facts.Snapshot{
		Vulnerabilities: []facts.Vulnerability{{ID: "CVE-2024-9999", Severity: finding.Critical}},
	}
	res, err := NewEngine(nil).EvaluateComponent(context.Background(), suite.Compile(), snap)
	require.NoError(t, err)
	require.Len(t, res.Evaluations, 2)

	assert.NotEmpty(t, res.Evaluations[0].Err, "first rule must record its error")
	assert.False(t, res.Evaluations[0].Triggered, "failing rule must not report triggered")
	assert.True(t, res.Evaluations[1].Triggered, "rule after a failure must still evaluate")
}

// TestEngine_NoEarlyStopOnTrigger verifies the sweep never stops at the
// first triggered rule.
func TestEngine_NoEarlyStopOnTrigger(t *testing.T) {
	t.Parallel()

	suite, err := Parse([]byte(`
filters:
  - name: first
    check_type: other
    summary: "Triggers"
    value: "true"
  - name: second
    check_type: other
    summary: "Also triggers"
    value: "true"
  - name: third
    check_type: other
    summary: "Also triggers"
    value: "1 < 2"
`))
	require.NoError(t, err)

	res, err := NewEngine(nil).EvaluateComponent(context.Background(), suite.Compile(), &facts.Snapshot{})
	require.NoError(t, err)
	require.Len(t, res.Evaluations, 3)
	for _, ev := range res.Evaluations {
		assert.True(t, ev.Triggered, "rule %s must have been evaluated", ev.RuleName)
	}
}

// TestEngine_ShortCircuitGuardsEvalErrors verifies the documented guard
// idiom: a false left operand keeps an error-prone right operand latent.
func TestEngine_ShortCircuitGuardsEvalErrors(t *testing.T) {
	t.Parallel()

	suite, err := Parse([]byte(`
filters:
  - name: guarded
    check_type: other
    summary: "Guard keeps the probe latent"
    value: "false && vulns.nosuch.exists(p, true)"
  - name: unguarded
    check_type: other
    summary: "Same probe without the guard"
    value: "vulns.nosuch.exists(p, true)"
`))
	require.NoError(t, err)

	res, err := NewEngine(nil).EvaluateComponent(context.Background(), suite.Compile(), &facts.Snapshot{})
	require.NoError(t, err)

	guarded, unguarded := res.Evaluations[0], res.Evaluations[1]
	assert.Empty(t, guarded.Err, "guarded probe must not error")
	assert.False(t, guarded.Triggered)
	assert.NotEmpty(t, unguarded.Err, "unguarded probe must surface its EvalError")
}
