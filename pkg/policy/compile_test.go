package policy

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/finding"
)

func addTestSuite(t *testing.T) *CompiledSuite {
	t.Helper()
	suite, err := Parse([]byte(`
filters:
  - name: no-critical
    check_type: vuln
    summary: "Critical advisories"
    value: "vulns.critical.exists(p, true)"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return suite.Compile()
}

func TestCompiledSuiteAdd(t *testing.T) {
	t.Parallel()

	cs := addTestSuite(t)
	err := cs.Add(CompiledRule{
		Rule:  Rule{Name: "scripted", CheckType: finding.CheckOther, Severity: finding.Info},
		Check: func(*facts.Snapshot) (bool, error) { return false, nil },
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(cs.Rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(cs.Rules))
	}
}

func TestCompiledSuiteAddRejectsDuplicates(t *testing.T) {
	t.Parallel()

	cs := addTestSuite(t)
	err := cs.Add(
		CompiledRule{
			Rule:  Rule{Name: "fresh", CheckType: finding.CheckOther, Severity: finding.Info},
			Check: func(*facts.Snapshot) (bool, error) { return false, nil },
		},
		CompiledRule{
			Rule:  Rule{Name: "no-critical", CheckType: finding.CheckOther, Severity: finding.Info},
			Check: func(*facts.Snapshot) (bool, error) { return false, nil },
		},
	)
	if !errors.Is(err, ErrInvalidSuite) {
		t.Fatalf("error = %v, want ErrInvalidSuite", err)
	}
	// The whole batch is rejected, including the non-colliding rule.
	if len(cs.Rules) != 1 {
		t.Errorf("got %d rules after rejected Add, want 1", len(cs.Rules))
	}
}

func TestEngineRunsCheckRules(t *testing.T) {
	t.Parallel()

	cs := addTestSuite(t)
	err := cs.Add(
		CompiledRule{
			Rule: Rule{
				Name:      "direct-only",
				CheckType: finding.CheckPopularity,
				Severity:  finding.Low,
				Summary:   "Triggers on direct dependencies",
			},
			Check: func(snap *facts.Snapshot) (bool, error) { return snap.Component.Direct, nil },
		},
		CompiledRule{
			Rule: Rule{
				Name:      "broken-check",
				CheckType: finding.CheckOther,
				Severity:  finding.Info,
				Summary:   "Always errors",
			},
			Check: func(*facts.Snapshot) (bool, error) { return false, fmt.Errorf("no such fact") },
		},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	engine := NewEngine(nil)
	res, err := engine.EvaluateComponent(context.Background(), cs, vulnerableSnapshot())
	if err != nil {
		t.Fatalf("EvaluateComponent: %v", err)
	}
	if len(res.Evaluations) != 3 {
		t.Fatalf("got %d evaluations, want 3", len(res.Evaluations))
	}

	byName := make(map[string]Evaluation)
	for _, ev := range res.Evaluations {
		byName[ev.RuleName] = ev
	}
	if !byName["no-critical"].Triggered {
		t.Error("expression rule did not run alongside check rules")
	}
	direct := byName["direct-only"]
	if !direct.Triggered {
		t.Error("check rule did not trigger on a direct dependency")
	}
	if direct.Severity != finding.Low || direct.CheckType != finding.CheckPopularity {
		t.Errorf("check rule metadata not carried: %+v", direct)
	}
	broken := byName["broken-check"]
	if broken.Err == "" || broken.Skipped || broken.Triggered {
		t.Errorf("check error must be recorded like an eval error: %+v", broken)
	}
}
