package filter

import (
	"regexp"
	"strings"
	"testing"

	"github.com/depgate/depgate/pkg/finding"
	"github.com/depgate/depgate/pkg/output/events"
)

func evalEvt(rule, check string, sev events.Severity, outcome events.Outcome) *events.EvaluationEvent {
	return &events.EvaluationEvent{
		Rule: events.RuleInfo{Name: rule, CheckType: check, Severity: sev},
		Component: events.ComponentInfo{
			Name:      "lodash",
			Version:   "4.17.20",
			Ecosystem: "npm",
			Ref:       "npm/lodash@4.17.20",
		},
		Result: events.ResultInfo{Outcome: outcome, DurationMs: 5},
	}
}

func withVulns(ev *events.EvaluationEvent, ids ...string) *events.EvaluationEvent {
	ev.Evidence = &events.Evidence{VulnIDs: ids}
	return ev
}

func TestFilter_ShouldShow(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		ev     *events.EvaluationEvent
		want   bool
	}{
		{
			name:   "no criteria shows all",
			config: &Config{},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   true,
		},
		{
			name:   "match severity",
			config: &Config{MatchSeverity: []finding.Severity{finding.Critical}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   true,
		},
		{
			name:   "match severity miss",
			config: &Config{MatchSeverity: []finding.Severity{finding.Critical}},
			ev:     evalEvt("weak-adoption", "popularity", events.SeverityLow, events.OutcomeTriggered),
			want:   false,
		},
		{
			name:   "filter severity",
			config: &Config{FilterSeverity: []finding.Severity{finding.Info}},
			ev:     evalEvt("notes-only", "other", events.SeverityInfo, events.OutcomePass),
			want:   false,
		},
		{
			name:   "filter severity pass",
			config: &Config{FilterSeverity: []finding.Severity{finding.Info}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   true,
		},
		{
			name:   "min severity floor",
			config: &Config{MatchMinSeverity: finding.High},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   true,
		},
		{
			name:   "min severity floor miss",
			config: &Config{MatchMinSeverity: finding.High},
			ev:     evalEvt("license-allow", "license", events.SeverityMedium, events.OutcomeTriggered),
			want:   false,
		},
		{
			name:   "match check type",
			config: &Config{MatchCheck: []finding.CheckType{finding.CheckVuln}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   true,
		},
		{
			name:   "match check type miss",
			config: &Config{MatchCheck: []finding.CheckType{finding.CheckLicense}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   false,
		},
		{
			name:   "match outcome",
			config: &Config{MatchOutcome: []events.Outcome{events.OutcomeTriggered}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   true,
		},
		{
			name:   "filter outcome",
			config: &Config{FilterOutcome: []events.Outcome{events.OutcomePass}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomePass),
			want:   false,
		},
		{
			name:   "triggered shorthand",
			config: &Config{MatchTriggered: true},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   true,
		},
		{
			name:   "triggered shorthand hides pass",
			config: &Config{MatchTriggered: true},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomePass),
			want:   false,
		},
		{
			name:   "match rule name case-insensitive",
			config: &Config{MatchRule: []string{"No-Critical-Vulns"}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   true,
		},
		{
			name:   "match rule regex",
			config: &Config{MatchRuleRegex: []*regexp.Regexp{regexp.MustCompile(`^no-`)}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   true,
		},
		{
			name:   "filter rule regex",
			config: &Config{FilterRuleRegex: []*regexp.Regexp{regexp.MustCompile(`-vulns$`)}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   false,
		},
		{
			name:   "match component by name",
			config: &Config{MatchComponent: []string{"lodash"}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   true,
		},
		{
			name:   "match component by ref",
			config: &Config{MatchComponent: []string{"npm/lodash@4.17.20"}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   true,
		},
		{
			name:   "match component miss",
			config: &Config{MatchComponent: []string{"react"}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   false,
		},
		{
			name:   "match ecosystem case-insensitive",
			config: &Config{MatchEcosystem: []string{"NPM"}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   true,
		},
		{
			name:   "match advisory id",
			config: &Config{MatchVulnID: []string{"GHSA-p6mc-m468-83gw"}},
			ev:     withVulns(evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered), "GHSA-p6mc-m468-83gw"),
			want:   true,
		},
		{
			name:   "match advisory id without evidence",
			config: &Config{MatchVulnID: []string{"GHSA-p6mc-m468-83gw"}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   false,
		},
		{
			name:   "match advisory count range",
			config: &Config{MatchVulnCount: []Range{{Min: 2, Max: 5}}},
			ev:     withVulns(evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered), "CVE-2021-23337", "CVE-2020-8203", "GHSA-p6mc-m468-83gw"),
			want:   true,
		},
		{
			name:   "match advisory count range miss",
			config: &Config{MatchVulnCount: []Range{{Min: 2, Max: 5}}},
			ev:     withVulns(evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered), "CVE-2021-23337"),
			want:   false,
		},
		{
			name:   "match duration range",
			config: &Config{MatchDuration: []Range{{Min: 0, Max: 10}}},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want:   true,
		},
		{
			name:   "filter duration range",
			config: &Config{FilterDuration: []Range{{Min: 100, Max: 60000}}},
			ev: func() *events.EvaluationEvent {
				ev := evalEvt("slow-rule", "vuln", events.SeverityHigh, events.OutcomePass)
				ev.Result.DurationMs = 250
				return ev
			}(),
			want: false,
		},
		{
			name:   "filter errors drops error outcome",
			config: &Config{FilterErrors: true},
			ev:     evalEvt("bad-field", "vuln", events.SeverityHigh, events.OutcomeError),
			want:   false,
		},
		{
			name:   "filter errors drops skipped outcome",
			config: &Config{FilterErrors: true},
			ev:     evalEvt("bad-expr", "vuln", events.SeverityHigh, events.OutcomeSkipped),
			want:   false,
		},
		{
			name:   "filter errors keeps verdicts",
			config: &Config{FilterErrors: true},
			ev:     evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomePass),
			want:   true,
		},
		{
			name: "combined match AND mode - all match",
			config: &Config{
				MatchSeverity: []finding.Severity{finding.Critical},
				MatchCheck:    []finding.CheckType{finding.CheckVuln},
				MatchMode:     ModeAnd,
			},
			ev:   evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want: true,
		},
		{
			name: "combined match AND mode - one misses",
			config: &Config{
				MatchSeverity: []finding.Severity{finding.Critical},
				MatchCheck:    []finding.CheckType{finding.CheckLicense},
				MatchMode:     ModeAnd,
			},
			ev:   evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want: false,
		},
		{
			name: "combined match OR mode - one hits",
			config: &Config{
				MatchSeverity: []finding.Severity{finding.Info},
				MatchCheck:    []finding.CheckType{finding.CheckVuln},
				MatchMode:     ModeOr,
			},
			ev:   evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want: true,
		},
		{
			name: "filter AND mode needs every criterion",
			config: &Config{
				FilterSeverity: []finding.Severity{finding.Critical},
				FilterCheck:    []finding.CheckType{finding.CheckLicense},
				FilterMode:     ModeAnd,
			},
			ev:   evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter(tt.config)
			if got := f.ShouldShow(tt.ev); got != tt.want {
				t.Errorf("ShouldShow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_DuplicateDetection(t *testing.T) {
	f := NewFilter(&Config{FilterDuplicates: true})

	first := evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered)
	if !f.ShouldShow(first) {
		t.Fatal("first occurrence must be shown")
	}

	repeat := evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered)
	if f.ShouldShow(repeat) {
		t.Error("repeat rule+component pair must be filtered")
	}

	otherRule := evalEvt("license-allow", "license", events.SeverityMedium, events.OutcomeTriggered)
	if !f.ShouldShow(otherRule) {
		t.Error("same component under a different rule must be shown")
	}

	otherComponent := evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered)
	otherComponent.Component.Name = "react"
	otherComponent.Component.Ref = "npm/react@18.2.0"
	if !f.ShouldShow(otherComponent) {
		t.Error("different component under the same rule must be shown")
	}
}

func TestFilter_DuplicateDetectionUsesFingerprint(t *testing.T) {
	f := NewFilter(&Config{FilterDuplicates: true})

	// Same ref but distinct fingerprints count as distinct components.
	a := evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered)
	a.Component.Fingerprint = "fp-aaaa"
	b := evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered)
	b.Component.Fingerprint = "fp-bbbb"

	if !f.ShouldShow(a) {
		t.Fatal("first fingerprint must be shown")
	}
	if !f.ShouldShow(b) {
		t.Error("different fingerprint must be shown")
	}
	if f.ShouldShow(a) {
		t.Error("repeat fingerprint must be filtered")
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		input   string
		want    Range
		wantErr bool
	}{
		{"100", Range{Min: 100, Max: 100}, false},
		{"100-200", Range{Min: 100, Max: 200}, false},
		{" 100 - 200 ", Range{Min: 100, Max: 200}, false},
		{"0-0", Range{Min: 0, Max: 0}, false},
		{"abc", Range{}, true},
		{"100-abc", Range{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRange(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRange(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseRange(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRanges(t *testing.T) {
	got, err := ParseRanges("1,3-10,25")
	if err != nil {
		t.Fatalf("ParseRanges: %v", err)
	}
	want := []Range{{Min: 1, Max: 1}, {Min: 3, Max: 10}, {Min: 25, Max: 25}}
	if len(got) != len(want) {
		t.Fatalf("got %d ranges, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("range %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if _, err := ParseRanges("1,bogus"); err == nil {
		t.Error("expected error for invalid range list")
	}
}

func TestBuilder_Build(t *testing.T) {
	cfg, err := NewBuilder().
		MatchSeverity("critical,high").
		MatchCheck("vuln").
		MatchTriggered().
		FilterErrors().
		MatchModeAnd().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(cfg.MatchSeverity) != 2 {
		t.Errorf("MatchSeverity length = %d, want 2", len(cfg.MatchSeverity))
	}
	if len(cfg.MatchCheck) != 1 || cfg.MatchCheck[0] != finding.CheckVuln {
		t.Errorf("MatchCheck = %v, want [vuln]", cfg.MatchCheck)
	}
	if !cfg.MatchTriggered || !cfg.FilterErrors {
		t.Error("MatchTriggered and FilterErrors must be set")
	}
	if cfg.MatchMode != ModeAnd {
		t.Errorf("MatchMode = %q, want %q", cfg.MatchMode, ModeAnd)
	}
}

func TestBuilder_AccumulatesErrors(t *testing.T) {
	_, err := NewBuilder().
		MatchSeverity("severe").
		MatchCheck("typo").
		MatchRuleRegex("(unclosed").
		Build()
	if err == nil {
		t.Fatal("expected accumulated errors")
	}

	for _, fragment := range []string{"match-severity", "match-check", "match-rule-regex"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q missing fragment %q", err.Error(), fragment)
		}
	}
}

func TestBuilder_BuildFilterUsableDespiteErrors(t *testing.T) {
	f, err := NewBuilder().
		MatchOutcome("nonsense").
		MatchSeverity("critical").
		BuildFilter()
	if err == nil {
		t.Fatal("expected error for invalid outcome")
	}
	if f == nil {
		t.Fatal("BuildFilter must still return a usable filter")
	}

	// Valid criteria still apply.
	if !f.ShouldShow(evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered)) {
		t.Error("valid criteria must still match")
	}
}
