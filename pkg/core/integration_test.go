package core

// End-to-end tests: suite file on disk, executor, dispatcher with real
// writers, and the post-run consumers that read RunResult.Events.

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/finding"
	"github.com/depgate/depgate/pkg/output/baseline"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/events"
	"github.com/depgate/depgate/pkg/output/exitcode"
	"github.com/depgate/depgate/pkg/output/writers"
	"github.com/depgate/depgate/pkg/policy"
)

const integrationSuite = `
name: supply-chain-gate
description: "Release guardrails for the dependency tree"
filters:
  - name: no-critical-vulns
    check_type: vuln
    summary: "Critical advisories block the release"
    severity: critical
    value: "vulns.critical.exists(p, true)"
  - name: no-unfixed-high
    check_type: vuln
    summary: "High advisories without a fix"
    value: "vulns.high.exists(p, !p.fixed)"
  - name: scorecard-floor
    check_type: scorecard
    summary: "OpenSSF maintained score too low"
    value: "size(scorecard.scores) > 0 && scorecard.scores[\"Maintained\"] < 5.0"
  - name: min-adoption
    check_type: popularity
    summary: "Fewer than 50 stars"
    value: "projects.exists(p, p.stars < 50)"
`

func integrationSnapshots() []*facts.Snapshot {
	return []*facts.Snapshot{
		{
			Component: facts.Component{Name: "minimist", Version: "0.0.8", Ecosystem: "npm", Direct: true},
			Vulnerabilities: []facts.Vulnerability{
				{ID: "CVE-2020-7598", Severity: finding.Critical, Summary: "Prototype pollution"},
				{ID: "GHSA-vh95-rmgr-6w4m", Severity: finding.High, FixedVersion: "0.2.1"},
			},
			Scorecard: &facts.Scorecard{
				Repo:   "github.com/minimistjs/minimist",
				Scores: map[string]float64{"Maintained": 3.0},
			},
			Projects: []facts.Project{{Type: facts.ProjectGitHub, Stars: 500}},
		},
		{
			Component: facts.Component{Name: "left-pad", Version: "1.3.0", Ecosystem: "npm"},
			Projects:  []facts.Project{{Type: facts.ProjectGitHub, Stars: 10}},
		},
		{
			Component: facts.Component{Name: "chalk", Version: "5.3.0", Ecosystem: "npm", Direct: true},
			Scorecard: &facts.Scorecard{
				Repo:   "github.com/chalk/chalk",
				Scores: map[string]float64{"Maintained": 9.0},
			},
			Projects: []facts.Project{{Type: facts.ProjectGitHub, Stars: 22000}},
		},
	}
}

func TestIntegration_SuiteFileToEventStream(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	suitePath := filepath.Join(dir, "gate.yaml")
	if err := os.WriteFile(suitePath, []byte(integrationSuite), 0o644); err != nil {
		t.Fatal(err)
	}

	suite, err := policy.Load(suitePath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cs := suite.Compile()
	if len(cs.BrokenRules()) != 0 {
		t.Fatalf("broken rules in fixture: %v", cs.BrokenRules())
	}

	outPath := filepath.Join(dir, "run.jsonl")
	outFile, err := os.Create(outPath)
	if err != nil {
		t.Fatal(err)
	}

	disp := dispatcher.New(dispatcher.Config{})
	disp.RegisterWriter(writers.NewJSONLWriter(outFile, writers.JSONLOptions{}))
	cw := &captureWriter{}
	disp.RegisterWriter(cw)

	exits := exitcode.New(exitcode.DefaultConfig())
	exec := NewExecutor(ExecutorConfig{
		Suite:     cs,
		SuitePath: suitePath,
		Snapshots: integrationSnapshots(),
		Sources:   []string{"file"},
	}, disp, exits, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	res, err := exec.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := disp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := outFile.Close(); err != nil {
		t.Fatal(err)
	}

	// minimist: critical vuln + scorecard floor. left-pad: low stars.
	if res.Totals.Violations != 3 {
		t.Errorf("violations = %d, want 3", res.Totals.Violations)
	}
	if res.Totals.Evaluations != 12 || res.Totals.Errors != 0 {
		t.Errorf("totals = %+v", res.Totals)
	}
	if res.ExitCode != exitcode.Violations {
		t.Errorf("exit code = %d (%s)", res.ExitCode, res.ExitReason)
	}

	// Every line of the JSONL stream is standalone JSON with an event
	// envelope.
	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		lines++
		var envelope struct {
			Type  string `json:"type"`
			RunID string `json:"run_id"`
		}
		if err := json.Unmarshal(sc.Bytes(), &envelope); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		if envelope.Type == "" {
			t.Fatalf("line %d has no event type: %s", lines, sc.Text())
		}
		if envelope.RunID != res.RunID {
			t.Fatalf("line %d run_id = %q, want %q", lines, envelope.RunID, res.RunID)
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	if lines != len(cw.all()) {
		t.Errorf("JSONL lines = %d, capture writer saw %d events", lines, len(cw.all()))
	}

	// The summary in the stream matches the returned result.
	sum := cw.byType(events.EventTypeSummary)[0].(*events.SummaryEvent)
	if sum.Totals != res.Totals {
		t.Errorf("stream summary totals %+v, result %+v", sum.Totals, res.Totals)
	}
	if sum.Suite.Name != "supply-chain-gate" {
		t.Errorf("suite name = %q", sum.Suite.Name)
	}
}

func TestIntegration_BaselineFromRunEvents(t *testing.T) {
	t.Parallel()

	suite, err := policy.Parse([]byte(integrationSuite))
	if err != nil {
		t.Fatal(err)
	}

	res, _, _ := runExecutor(t, ExecutorConfig{
		Suite:     suite.Compile(),
		Snapshots: integrationSnapshots(),
	}, WithRunID("baseline-run"))

	base := baseline.CreateFromResults(res.Events, res.RunID, "supply-chain-gate")
	if base.RunID != "baseline-run" {
		t.Errorf("baseline run ID = %q", base.RunID)
	}
	if base.Len() != res.Totals.Violations {
		t.Errorf("baseline entries = %d, want %d", base.Len(), res.Totals.Violations)
	}

	// A second identical run compares clean against the captured baseline.
	again, _, _ := runExecutor(t, ExecutorConfig{
		Suite:     suite.Compile(),
		Snapshots: integrationSnapshots(),
	})
	cmp := base.Compare(baseline.ExtractViolations(again.Events))
	if cmp.HasNewViolations {
		t.Errorf("identical rerun reported new violations: %+v", cmp.NewViolations)
	}
	if len(cmp.KnownViolations) != res.Totals.Violations {
		t.Errorf("known violations = %d, want %d", len(cmp.KnownViolations), res.Totals.Violations)
	}
	if len(cmp.FixedViolations) != 0 {
		t.Errorf("fixed violations = %d, want 0", len(cmp.FixedViolations))
	}

	// Fixing the advisory drops the violation on the next run.
	fixed := integrationSnapshots()
	fixed[0].Vulnerabilities = nil
	third, _, _ := runExecutor(t, ExecutorConfig{
		Suite:     suite.Compile(),
		Snapshots: fixed,
	})
	cmp = base.Compare(baseline.ExtractViolations(third.Events))
	if len(cmp.FixedViolations) != 1 {
		t.Errorf("fixed violations = %d, want 1 (critical vuln gone)", len(cmp.FixedViolations))
	}
	if cmp.HasNewViolations {
		t.Errorf("removing facts must not create violations: %+v", cmp.NewViolations)
	}
}

func TestIntegration_SuiteWithDuplicateRuleNeverRuns(t *testing.T) {
	t.Parallel()

	// A duplicate rule name fails the whole load; there is no partial
	// suite to execute.
	_, err := policy.Parse([]byte(`
filters:
  - name: dup
    check_type: other
    summary: "first"
    value: "true"
  - name: dup
    check_type: other
    summary: "second"
    value: "false"
`))
	if err == nil {
		t.Fatal("duplicate rule names must fail the parse")
	}
}

func TestIntegration_BrokenRuleStillReportedPerComponent(t *testing.T) {
	t.Parallel()

	suite, err := policy.Parse([]byte(`
filters:
  - name: fine
    check_type: other
    summary: "Parses and passes"
    value: "false"
  - name: broken
    check_type: other
    summary: "Does not parse"
    value: "1 +"
`))
	if err != nil {
		t.Fatal(err)
	}
	cs := suite.Compile()
	if len(cs.BrokenRules()) != 1 {
		t.Fatalf("broken rules = %d, want 1", len(cs.BrokenRules()))
	}

	res, cw, _ := runExecutor(t, ExecutorConfig{
		Suite:     cs,
		Snapshots: integrationSnapshots(),
	})

	// The broken rule surfaces as a skipped evaluation on every
	// component instead of disappearing.
	if res.Totals.Skipped != 3 {
		t.Errorf("skipped = %d, want 3", res.Totals.Skipped)
	}
	var skippedSeen int
	for _, ev := range cw.evaluations() {
		if ev.Rule.Name == "broken" {
			if ev.Result.Outcome != events.OutcomeSkipped {
				t.Errorf("broken rule outcome = %s", ev.Result.Outcome)
			}
			if ev.Result.Err == "" {
				t.Error("skipped broken rule must carry its parse error")
			}
			skippedSeen++
		}
	}
	if skippedSeen != 3 {
		t.Errorf("broken rule events = %d, want 3", skippedSeen)
	}
}
