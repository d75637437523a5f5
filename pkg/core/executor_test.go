package core

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/duration"
	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/filter"
	"github.com/depgate/depgate/pkg/finding"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/events"
	"github.com/depgate/depgate/pkg/output/exitcode"
	"github.com/depgate/depgate/pkg/policy"
)

// ============================================================================
// Test helpers
// ============================================================================

// captureWriter records every dispatched event for assertions.
type captureWriter struct {
	mu     sync.Mutex
	events []events.Event
}

func (w *captureWriter) Write(event events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event)
	return nil
}

func (w *captureWriter) Flush() error                          { return nil }
func (w *captureWriter) Close() error                          { return nil }
func (w *captureWriter) SupportsEvent(_ events.EventType) bool { return true }

func (w *captureWriter) all() []events.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]events.Event, len(w.events))
	copy(out, w.events)
	return out
}

func (w *captureWriter) byType(t events.EventType) []events.Event {
	var out []events.Event
	for _, ev := range w.all() {
		if ev.EventType() == t {
			out = append(out, ev)
		}
	}
	return out
}

func (w *captureWriter) evaluations() []*events.EvaluationEvent {
	var out []*events.EvaluationEvent
	for _, ev := range w.byType(events.EventTypeEvaluation) {
		out = append(out, ev.(*events.EvaluationEvent))
	}
	return out
}

func newCaptureDispatcher() (*dispatcher.Dispatcher, *captureWriter) {
	disp := dispatcher.New(dispatcher.Config{})
	cw := &captureWriter{}
	disp.RegisterWriter(cw)
	return disp, cw
}

func executorSuite(t *testing.T) *policy.CompiledSuite {
	t.Helper()
	content := `
name: release-gate
filters:
  - name: no-critical-vulns
    check_type: vuln
    summary: "Critical advisories block the release"
    value: "vulns.critical.exists(p, true)"
  - name: has-stars
    check_type: popularity
    summary: "Adoption sanity check"
    value: "projects.exists(p, p.stars < 10)"
  - name: bad-field
    check_type: other
    summary: "References an unbound name"
    value: "pkg.nosuch == true"
  - name: bad-syntax
    check_type: other
    summary: "Does not parse"
    value: "pkg.name =="
`
	suite, err := policy.Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return suite.Compile()
}

func executorSnapshots() []*facts.Snapshot {
	return []*facts.Snapshot{
		{
			Component: facts.Component{Name: "minimist", Version: "0.0.8", Ecosystem: "npm", Direct: true},
			Vulnerabilities: []facts.Vulnerability{
				{ID: "CVE-2020-7598", Severity: finding.Critical, Summary: "Prototype pollution"},
			},
		},
		{
			Component: facts.Component{Name: "left-pad", Version: "1.3.0", Ecosystem: "npm"},
			Projects:  []facts.Project{{Type: facts.ProjectGitHub, Stars: 3}},
		},
		{
			Component: facts.Component{Name: "chalk", Version: "5.3.0", Ecosystem: "npm"},
			Projects:  []facts.Project{{Type: facts.ProjectGitHub, Stars: 22000}},
		},
	}
}

func runExecutor(t *testing.T, cfg ExecutorConfig, opts ...ExecutorOption) (RunResult, *captureWriter, *exitcode.Manager) {
	t.Helper()
	disp, cw := newCaptureDispatcher()
	exits := exitcode.New(exitcode.DefaultConfig())
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	exec := NewExecutor(cfg, disp, exits, opts...)
	res, err := exec.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return res, cw, exits
}

// ============================================================================
// Constructor tests
// ============================================================================

func TestNewExecutor_Defaults(t *testing.T) {
	t.Parallel()

	e := NewExecutor(ExecutorConfig{}, nil, nil)
	if e.config.Concurrency != defaults.ConcurrencyMedium {
		t.Errorf("Concurrency = %d, want %d", e.config.Concurrency, defaults.ConcurrencyMedium)
	}
	if e.config.Timeout != duration.ContextShort {
		t.Errorf("Timeout = %v, want %v", e.config.Timeout, duration.ContextShort)
	}
	if e.exits == nil {
		t.Error("exit manager must be defaulted, not nil")
	}
	if e.runID == "" {
		t.Error("run ID must be generated")
	}
}

func TestNewExecutor_ConcurrencyCappedToSnapshots(t *testing.T) {
	t.Parallel()

	cfg := ExecutorConfig{
		Concurrency: defaults.ConcurrencyMax,
		Snapshots:   executorSnapshots(),
	}
	e := NewExecutor(cfg, nil, nil)
	if e.config.Concurrency != len(cfg.Snapshots) {
		t.Errorf("Concurrency = %d, want %d (capped)", e.config.Concurrency, len(cfg.Snapshots))
	}
}

func TestNewExecutor_DefaultLogger(t *testing.T) {
	t.Parallel()

	e := NewExecutor(ExecutorConfig{}, nil, nil)
	if e.logger != slog.Default() {
		t.Error("executor without WithLogger must use slog.Default()")
	}
}

func TestWithLogger_SetsCustomLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewExecutor(ExecutorConfig{}, nil, nil, WithLogger(custom))
	if e.logger != custom {
		t.Error("WithLogger must replace the default logger")
	}
}

func TestWithRunID(t *testing.T) {
	t.Parallel()

	e := NewExecutor(ExecutorConfig{}, nil, nil, WithRunID("run-fixed"))
	if e.RunID() != "run-fixed" {
		t.Errorf("RunID = %q, want run-fixed", e.RunID())
	}
}

// ============================================================================
// Lifecycle tests
// ============================================================================

func TestExecute_EventLifecycle(t *testing.T) {
	t.Parallel()

	res, cw, _ := runExecutor(t, ExecutorConfig{
		Suite:     executorSuite(t),
		Snapshots: executorSnapshots(),
	})

	all := cw.all()
	if len(all) == 0 {
		t.Fatal("no events dispatched")
	}
	if all[0].EventType() != events.EventTypeStart {
		t.Errorf("first event = %s, want start", all[0].EventType())
	}
	if all[len(all)-1].EventType() != events.EventTypeComplete {
		t.Errorf("last event = %s, want complete", all[len(all)-1].EventType())
	}

	if n := len(cw.byType(events.EventTypeStart)); n != 1 {
		t.Errorf("start events = %d, want 1", n)
	}
	if n := len(cw.byType(events.EventTypeSummary)); n != 1 {
		t.Errorf("summary events = %d, want 1", n)
	}
	if n := len(cw.byType(events.EventTypeComplete)); n != 1 {
		t.Errorf("complete events = %d, want 1", n)
	}

	// One started and one completed event per component.
	if n := len(cw.byType(events.EventTypeComponent)); n != 6 {
		t.Errorf("component events = %d, want 6", n)
	}

	// Every rule against every component, including broken rules.
	if n := len(cw.evaluations()); n != 12 {
		t.Errorf("evaluation events = %d, want 12", n)
	}
	if res.Totals.Evaluations != 12 {
		t.Errorf("Totals.Evaluations = %d, want 12", res.Totals.Evaluations)
	}
	if res.Totals.Components != 3 {
		t.Errorf("Totals.Components = %d, want 3", res.Totals.Components)
	}
	if len(res.Events) != 12 {
		t.Errorf("RunResult.Events = %d, want 12", len(res.Events))
	}
}

func TestExecute_StampsRunID(t *testing.T) {
	t.Parallel()

	_, cw, _ := runExecutor(t, ExecutorConfig{
		Suite:     executorSuite(t),
		Snapshots: executorSnapshots(),
	}, WithRunID("run-42"))

	for _, ev := range cw.all() {
		if ev.RunID() != "run-42" {
			t.Fatalf("%s event has run ID %q, want run-42", ev.EventType(), ev.RunID())
		}
	}
}

func TestExecute_OutcomeMapping(t *testing.T) {
	t.Parallel()

	_, cw, _ := runExecutor(t, ExecutorConfig{
		Suite:     executorSuite(t),
		Snapshots: executorSnapshots()[:1], // minimist only
	})

	byRule := make(map[string]*events.EvaluationEvent)
	for _, ev := range cw.evaluations() {
		byRule[ev.Rule.Name] = ev
	}

	tests := []struct {
		rule    string
		outcome events.Outcome
	}{
		{"no-critical-vulns", events.OutcomeTriggered},
		{"has-stars", events.OutcomePass},
		{"bad-field", events.OutcomeError},
		{"bad-syntax", events.OutcomeSkipped},
	}
	for _, tt := range tests {
		ev, ok := byRule[tt.rule]
		if !ok {
			t.Errorf("no evaluation event for rule %s", tt.rule)
			continue
		}
		if ev.Result.Outcome != tt.outcome {
			t.Errorf("rule %s outcome = %s, want %s", tt.rule, ev.Result.Outcome, tt.outcome)
		}
	}

	if ev := byRule["bad-field"]; ev != nil && ev.Result.Err == "" {
		t.Error("errored evaluation must carry the error message")
	}
	if ev := byRule["no-critical-vulns"]; ev != nil {
		if ev.Component.Ref != "npm/minimist@0.0.8" {
			t.Errorf("component ref = %q", ev.Component.Ref)
		}
		if ev.Evidence == nil || len(ev.Evidence.VulnIDs) != 1 {
			t.Errorf("triggered vuln rule must carry advisory evidence: %+v", ev.Evidence)
		}
	}
}

func TestExecute_ViolationEvents(t *testing.T) {
	t.Parallel()

	_, cw, _ := runExecutor(t, ExecutorConfig{
		Suite:     executorSuite(t),
		Snapshots: executorSnapshots(),
	})

	violations := cw.byType(events.EventTypeViolation)
	// minimist critical vuln, left-pad low stars.
	if len(violations) != 2 {
		t.Fatalf("violation events = %d, want 2", len(violations))
	}
	for _, raw := range violations {
		v := raw.(*events.ViolationEvent)
		if v.Priority == "" {
			t.Error("violation priority must be set")
		}
		if v.Alert.Title == "" || v.Alert.ActionRequired == "" {
			t.Errorf("violation alert incomplete: %+v", v.Alert)
		}
		if v.Details.RuleName == "" || v.Details.Component == "" {
			t.Errorf("violation details incomplete: %+v", v.Details)
		}
		if v.Context.Suite != "release-gate" {
			t.Errorf("violation context suite = %q", v.Context.Suite)
		}
		if v.Context.EvaluationsSoFar == 0 {
			t.Error("violation context must carry running evaluation count")
		}
	}
}

func TestExecute_ErrorEvents(t *testing.T) {
	t.Parallel()

	_, cw, _ := runExecutor(t, ExecutorConfig{
		Suite:     executorSuite(t),
		Snapshots: executorSnapshots(),
	})

	errEvents := cw.byType(events.EventTypeError)
	// bad-field errors once per component.
	if len(errEvents) != 3 {
		t.Fatalf("error events = %d, want 3", len(errEvents))
	}
	for _, raw := range errEvents {
		ee := raw.(*events.ErrorEvent)
		if ee.ErrorType != events.ErrorTypeEval {
			t.Errorf("error type = %q, want eval", ee.ErrorType)
		}
		if ee.Rule != "bad-field" {
			t.Errorf("error rule = %q, want bad-field", ee.Rule)
		}
		if ee.Component == "" || ee.Message == "" {
			t.Errorf("error event incomplete: %+v", ee)
		}
	}
}

// ============================================================================
// Exit code tests
// ============================================================================

func TestExecute_ExitCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		suite string
		want  exitcode.Code
	}{
		{
			name: "clean run",
			suite: `
filters:
  - name: never
    check_type: other
    summary: "Never triggers"
    value: "false"
`,
			want: exitcode.Success,
		},
		{
			name: "violations",
			suite: `
filters:
  - name: always
    check_type: other
    summary: "Always triggers"
    value: "true"
`,
			want: exitcode.Violations,
		},
		{
			name: "evaluation errors only",
			suite: `
filters:
  - name: broken-at-runtime
    check_type: other
    summary: "Unbound name"
    value: "pkg.nosuch == true"
`,
			want: exitcode.Errors,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			suite, err := policy.Parse([]byte(tt.suite))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			res, _, _ := runExecutor(t, ExecutorConfig{
				Suite:     suite.Compile(),
				Snapshots: executorSnapshots(),
			})
			if res.ExitCode != tt.want {
				t.Errorf("exit code = %d (%s), want %d", res.ExitCode, res.ExitReason, tt.want)
			}
			if res.ExitReason == "" {
				t.Error("exit reason must be set")
			}
		})
	}
}

func TestExecute_Interrupted(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	disp, cw := newCaptureDispatcher()
	exits := exitcode.New(exitcode.DefaultConfig())
	exec := NewExecutor(ExecutorConfig{
		Suite:     executorSuite(t),
		Snapshots: executorSnapshots(),
	}, disp, exits, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	res, err := exec.Execute(ctx)
	if err == nil {
		t.Fatal("cancelled context must surface an error")
	}
	if res.ExitCode != exitcode.Interrupted {
		t.Errorf("exit code = %d, want %d", res.ExitCode, exitcode.Interrupted)
	}

	// The stream still closes properly under cancellation.
	if n := len(cw.byType(events.EventTypeSummary)); n != 1 {
		t.Errorf("summary events = %d, want 1", n)
	}
	if n := len(cw.byType(events.EventTypeComplete)); n != 1 {
		t.Errorf("complete events = %d, want 1", n)
	}
}

func TestExecute_FailFast(t *testing.T) {
	t.Parallel()

	// Every component triggers, so fail-fast must stop well short of the
	// full set.
	suite, err := policy.Parse([]byte(`
filters:
  - name: always
    check_type: other
    summary: "Always triggers"
    value: "true"
`))
	if err != nil {
		t.Fatal(err)
	}

	var snaps []*facts.Snapshot
	for i := 0; i < 100; i++ {
		snaps = append(snaps, &facts.Snapshot{
			Component: facts.Component{Name: "pkg", Version: "1.0.0", Ecosystem: "npm"},
		})
	}

	res, _, _ := runExecutor(t, ExecutorConfig{
		Suite:       suite.Compile(),
		Snapshots:   snaps,
		Concurrency: 1,
		FailFast:    true,
	})

	if res.Totals.Violations == 0 {
		t.Fatal("expected at least one violation before the stop")
	}
	if res.Totals.Components == len(snaps) {
		t.Error("fail-fast run evaluated every component")
	}
	if res.ExitCode != exitcode.Violations {
		t.Errorf("exit code = %d, want %d", res.ExitCode, exitcode.Violations)
	}
}

// ============================================================================
// Edge cases
// ============================================================================

func TestExecute_EmptySnapshots(t *testing.T) {
	t.Parallel()

	res, cw, _ := runExecutor(t, ExecutorConfig{
		Suite:     executorSuite(t),
		Snapshots: nil,
	})

	if res.Totals.Evaluations != 0 || res.Totals.Components != 0 {
		t.Errorf("empty run totals = %+v", res.Totals)
	}
	if res.ExitCode != exitcode.Success {
		t.Errorf("exit code = %d, want success", res.ExitCode)
	}
	if n := len(cw.byType(events.EventTypeSummary)); n != 1 {
		t.Errorf("summary events = %d, want 1", n)
	}
}

func TestExecute_NilDispatcher(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(ExecutorConfig{
		Suite:     executorSuite(t),
		Snapshots: executorSnapshots(),
	}, nil, nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	res, err := exec.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute without dispatcher: %v", err)
	}
	if res.Totals.Evaluations != 12 {
		t.Errorf("Totals.Evaluations = %d, want 12", res.Totals.Evaluations)
	}
}

func TestExecute_OnEvaluationCallback(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var seen []string

	res, _, _ := runExecutor(t, ExecutorConfig{
		Suite:     executorSuite(t),
		Snapshots: executorSnapshots(),
		OnEvaluation: func(ev *events.EvaluationEvent) {
			mu.Lock()
			seen = append(seen, ev.Rule.Name+"/"+ev.Component.Name)
			mu.Unlock()
		},
	})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != res.Totals.Evaluations {
		t.Errorf("callback saw %d evaluations, want %d", len(seen), res.Totals.Evaluations)
	}
}

// ============================================================================
// Filter integration
// ============================================================================

func TestExecute_FilterSuppressesDisplayNotAccounting(t *testing.T) {
	t.Parallel()

	flt, err := filter.NewBuilder().MatchOutcome("triggered").BuildFilter()
	if err != nil {
		t.Fatalf("build filter: %v", err)
	}

	var callbackCount int
	var mu sync.Mutex

	res, cw, exits := runExecutor(t, ExecutorConfig{
		Suite:     executorSuite(t),
		Snapshots: executorSnapshots(),
		Filter:    flt,
		OnEvaluation: func(*events.EvaluationEvent) {
			mu.Lock()
			callbackCount++
			mu.Unlock()
		},
	})

	// Only the two triggered evaluations reach writers and callbacks.
	if n := len(cw.evaluations()); n != 2 {
		t.Errorf("dispatched evaluations = %d, want 2", n)
	}
	mu.Lock()
	if callbackCount != 2 {
		t.Errorf("callback count = %d, want 2", callbackCount)
	}
	mu.Unlock()

	// Accounting still covers the full run.
	if res.Totals.Evaluations != 12 {
		t.Errorf("Totals.Evaluations = %d, want 12", res.Totals.Evaluations)
	}
	violations, errors := exits.Stats()
	if violations != 2 {
		t.Errorf("exit manager violations = %d, want 2", violations)
	}
	if errors != 3 {
		t.Errorf("exit manager errors = %d, want 3", errors)
	}
	if len(res.Events) != 12 {
		t.Errorf("RunResult.Events = %d, want 12 (filter must not trim the record)", len(res.Events))
	}
}

// ============================================================================
// Summary content
// ============================================================================

func TestExecute_SummaryContent(t *testing.T) {
	t.Parallel()

	res, cw, _ := runExecutor(t, ExecutorConfig{
		Suite:     executorSuite(t),
		Snapshots: executorSnapshots(),
		SuitePath: "policies/release-gate.yaml",
	})

	summaries := cw.byType(events.EventTypeSummary)
	if len(summaries) != 1 {
		t.Fatalf("summary events = %d, want 1", len(summaries))
	}
	sum := summaries[0].(*events.SummaryEvent)

	if sum.Version != defaults.Version {
		t.Errorf("summary version = %q, want %q", sum.Version, defaults.Version)
	}
	if sum.Suite.Name != "release-gate" {
		t.Errorf("suite name = %q", sum.Suite.Name)
	}
	if sum.Suite.Fingerprint == "" {
		t.Error("suite fingerprint must be set")
	}
	if sum.Suite.Rules != 3 || sum.Suite.Skipped != 1 {
		t.Errorf("suite rules = %d skipped = %d, want 3 and 1", sum.Suite.Rules, sum.Suite.Skipped)
	}

	if sum.Risk.Grade == "" {
		t.Error("risk grade must be set")
	}
	if sum.Risk.Recommendation == "" {
		t.Error("risk recommendation must be set")
	}

	if len(sum.Breakdown.ByCheckType) == 0 {
		t.Error("check type breakdown must not be empty")
	}
	vulnStats, ok := sum.Breakdown.ByCheckType["vuln"]
	if !ok {
		t.Fatal("breakdown missing vuln check type")
	}
	if vulnStats.Total != 3 || vulnStats.Violations != 1 {
		t.Errorf("vuln breakdown = %+v, want total 3 violations 1", vulnStats)
	}

	if len(sum.Breakdown.ByEcosystem) != 1 {
		t.Errorf("ecosystem breakdown = %v, want npm only", sum.Breakdown.ByEcosystem)
	}

	if sum.Latency.P50Ms < 0 || sum.Latency.P99Ms < sum.Latency.P50Ms {
		t.Errorf("latency percentiles inconsistent: %+v", sum.Latency)
	}

	if len(sum.TopViolations) != 2 {
		t.Fatalf("top violations = %d, want 2", len(sum.TopViolations))
	}
	// Most severe first: the critical vuln before the low-severity stars rule.
	if sum.TopViolations[0].RuleName != "no-critical-vulns" {
		t.Errorf("top violation = %q, want no-critical-vulns", sum.TopViolations[0].RuleName)
	}

	if sum.Timing.DurationSec <= 0 {
		t.Error("summary timing must be populated")
	}
	if sum.ExitCode != int(exitcode.Violations) {
		t.Errorf("summary exit code = %d, want %d", sum.ExitCode, exitcode.Violations)
	}
	if res.Summary != sum {
		t.Error("RunResult.Summary must be the dispatched summary event")
	}
}

func TestExecute_SummaryOWASPBreakdown(t *testing.T) {
	t.Parallel()

	// vuln maps to A06, license stays out of the OWASP breakdown entirely.
	suite, err := policy.Parse([]byte(`
filters:
  - name: any-vuln
    check_type: vuln
    summary: "Any known advisory"
    value: "vulns.all.exists(p, true)"
  - name: copyleft
    check_type: license
    summary: "Copyleft license"
    value: "licenses.exists(l, l == \"GPL-3.0\")"
`))
	if err != nil {
		t.Fatal(err)
	}

	snaps := []*facts.Snapshot{
		{
			Component: facts.Component{Name: "minimist", Version: "0.0.8", Ecosystem: "npm"},
			Vulnerabilities: []facts.Vulnerability{
				{ID: "CVE-2020-7598", Severity: finding.Critical},
			},
			Licenses: []string{"GPL-3.0"},
		},
	}

	_, cw, _ := runExecutor(t, ExecutorConfig{Suite: suite.Compile(), Snapshots: snaps})

	sum := cw.byType(events.EventTypeSummary)[0].(*events.SummaryEvent)
	stats, ok := sum.Breakdown.ByOWASP["A06:2021"]
	if !ok {
		t.Fatalf("ByOWASP missing A06:2021: %v", sum.Breakdown.ByOWASP)
	}
	if stats.Violations != 1 || stats.Name == "" {
		t.Errorf("A06 stats = %+v", stats)
	}
	for code := range sum.Breakdown.ByOWASP {
		if code == "A00:2021" {
			t.Error("unmapped check types must stay out of the OWASP breakdown")
		}
	}
}

// ============================================================================
// Start event content
// ============================================================================

func TestExecute_StartEventContent(t *testing.T) {
	t.Parallel()

	_, cw, _ := runExecutor(t, ExecutorConfig{
		Suite:       executorSuite(t),
		Snapshots:   executorSnapshots(),
		SuitePath:   "policies/release-gate.yaml",
		Concurrency: 2,
		Timeout:     10 * time.Second,
		Sources:     []string{"file"},
		MinSeverity: "low",
	})

	start := cw.byType(events.EventTypeStart)[0].(*events.StartEvent)
	if start.Suite != "release-gate" {
		t.Errorf("suite = %q", start.Suite)
	}
	if start.SuitePath != "policies/release-gate.yaml" {
		t.Errorf("suite path = %q", start.SuitePath)
	}
	if start.TotalRules != 3 || start.SkippedRules != 1 {
		t.Errorf("rules = %d skipped = %d, want 3 and 1", start.TotalRules, start.SkippedRules)
	}
	if start.TotalComponents != 3 {
		t.Errorf("components = %d, want 3", start.TotalComponents)
	}
	if start.Config.Concurrency != 2 || start.Config.Timeout != 10 {
		t.Errorf("config = %+v", start.Config)
	}
	if start.Config.MinSeverity != "low" {
		t.Errorf("min severity = %q", start.Config.MinSeverity)
	}

	// Check types in report order: vuln before popularity before other.
	want := []string{"vuln", "popularity", "other"}
	if len(start.CheckTypes) != len(want) {
		t.Fatalf("check types = %v, want %v", start.CheckTypes, want)
	}
	for i, ct := range want {
		if start.CheckTypes[i] != ct {
			t.Errorf("check type %d = %q, want %q", i, start.CheckTypes[i], ct)
		}
	}
}
