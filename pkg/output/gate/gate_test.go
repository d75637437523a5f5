package gate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/depgate/depgate/pkg/defaults"
)

func intPtr(i int) *int {
	return &i
}

func floatPtr(f float64) *float64 {
	return &f
}

func TestLoadPolicy(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantErr     bool
		errContains string
		validate    func(t *testing.T, p *Policy)
	}{
		{
			name: "valid full policy",
			content: `
version: "1.0"
name: "production-gate"
fail_on:
  violations:
    total: 5
    critical: 0
    high: 3
  check_types:
    - vuln
    - scorecards
  clean_rate_below: 95.0
  error_rate_above: 10.0
ignore:
  rules:
    - "legacy-license-check"
  check_types:
    - popularity
`,
			wantErr: false,
			validate: func(t *testing.T, p *Policy) {
				if p.Name != "production-gate" {
					t.Errorf("got name %q, want %q", p.Name, "production-gate")
				}
				if p.Version != "1.0" {
					t.Errorf("got version %q, want %q", p.Version, "1.0")
				}
				if p.FailOn.Violations.Total == nil || *p.FailOn.Violations.Total != 5 {
					t.Errorf("got total threshold %v, want 5", p.FailOn.Violations.Total)
				}
				if p.FailOn.Violations.Critical == nil || *p.FailOn.Violations.Critical != 0 {
					t.Errorf("got critical threshold %v, want 0", p.FailOn.Violations.Critical)
				}
				if len(p.FailOn.CheckTypes) != 2 {
					t.Errorf("got %d check types, want 2", len(p.FailOn.CheckTypes))
				}
				if p.FailOn.CleanRateBelow == nil || *p.FailOn.CleanRateBelow != 95.0 {
					t.Errorf("got clean rate threshold %v, want 95.0", p.FailOn.CleanRateBelow)
				}
				if len(p.Ignore.Rules) != 1 {
					t.Errorf("got %d ignored rules, want 1", len(p.Ignore.Rules))
				}
			},
		},
		{
			name: "minimal policy",
			content: `
name: "minimal"
fail_on:
  violations:
    critical: 0
`,
			wantErr: false,
			validate: func(t *testing.T, p *Policy) {
				if p.Name != "minimal" {
					t.Errorf("got name %q, want %q", p.Name, "minimal")
				}
				if p.Version != "1.0" {
					t.Errorf("default version should be 1.0, got %q", p.Version)
				}
				if p.FailOn.Violations.Critical == nil || *p.FailOn.Violations.Critical != 0 {
					t.Errorf("got critical threshold %v, want 0", p.FailOn.Violations.Critical)
				}
			},
		},
		{
			name: "empty policy",
			content: `
name: "empty"
`,
			wantErr: false,
			validate: func(t *testing.T, p *Policy) {
				if p.Name != "empty" {
					t.Errorf("got name %q, want %q", p.Name, "empty")
				}
			},
		},
		{
			name: "check types normalized to lowercase",
			content: `
name: "case-test"
fail_on:
  check_types:
    - Vuln
    - Scorecards
ignore:
  check_types:
    - Popularity
`,
			wantErr: false,
			validate: func(t *testing.T, p *Policy) {
				for _, ct := range p.FailOn.CheckTypes {
					if ct != strings.ToLower(ct) {
						t.Errorf("check type %q should be lowercase", ct)
					}
				}
				for _, ct := range p.Ignore.CheckTypes {
					if ct != strings.ToLower(ct) {
						t.Errorf("ignore check type %q should be lowercase", ct)
					}
				}
			},
		},
		{
			name:        "invalid yaml",
			content:     "{{invalid yaml",
			wantErr:     true,
			errContains: "invalid gate policy file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "gate.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write temp file: %v", err)
			}

			p, err := LoadPolicy(path)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				} else if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestLoadPolicy_NotFound(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrPolicyNotFound) {
		t.Errorf("error = %v, want ErrPolicyNotFound", err)
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy([]byte(`
name: "parsed"
fail_on:
  violations:
    total: 10
`))
	if err != nil {
		t.Fatalf("ParsePolicy failed: %v", err)
	}
	if p.Name != "parsed" {
		t.Errorf("got name %q, want parsed", p.Name)
	}
	if p.FailOn.Violations.Total == nil || *p.FailOn.Violations.Total != 10 {
		t.Errorf("got total threshold %v, want 10", p.FailOn.Violations.Total)
	}
}

func TestEvaluate_TotalViolations(t *testing.T) {
	p := &Policy{
		Name: "total-gate",
		FailOn: FailOn{
			Violations: ViolationThresholds{Total: intPtr(5)},
		},
	}

	tests := []struct {
		name       string
		violations int
		wantPass   bool
	}{
		{"under threshold", 3, true},
		{"at threshold", 5, true},
		{"over threshold", 6, false},
		{"zero violations", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.Evaluate(SummaryData{TotalViolations: tt.violations})
			if result.Pass != tt.wantPass {
				t.Errorf("Pass = %v, want %v (failures: %v)", result.Pass, tt.wantPass, result.Failures)
			}
		})
	}
}

func TestEvaluate_SeverityThresholds(t *testing.T) {
	p := &Policy{
		FailOn: FailOn{
			Violations: ViolationThresholds{
				Critical: intPtr(0),
				High:     intPtr(2),
			},
		},
	}

	tests := []struct {
		name       string
		bySeverity map[string]int
		wantPass   bool
	}{
		{"no violations", map[string]int{}, true},
		{"one critical fails", map[string]int{"critical": 1}, false},
		{"two high passes", map[string]int{"high": 2}, true},
		{"three high fails", map[string]int{"high": 3}, false},
		{"medium unchecked", map[string]int{"medium": 100}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.Evaluate(SummaryData{ViolationsBySeverity: tt.bySeverity})
			if result.Pass != tt.wantPass {
				t.Errorf("Pass = %v, want %v (failures: %v)", result.Pass, tt.wantPass, result.Failures)
			}
		})
	}
}

func TestEvaluate_CheckTypeViolations(t *testing.T) {
	p := &Policy{
		FailOn: FailOn{
			CheckTypes: []string{"vuln", "scorecards"},
		},
	}

	tests := []struct {
		name     string
		byCheck  map[string]int
		wantPass bool
	}{
		{"no violations", map[string]int{}, true},
		{"vuln violation fails", map[string]int{"vuln": 1}, false},
		{"scorecards violation fails", map[string]int{"scorecards": 2}, false},
		{"popularity violation passes", map[string]int{"popularity": 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.Evaluate(SummaryData{ViolationsByCheckType: tt.byCheck})
			if result.Pass != tt.wantPass {
				t.Errorf("Pass = %v, want %v (failures: %v)", result.Pass, tt.wantPass, result.Failures)
			}
		})
	}
}

func TestEvaluate_CleanRate(t *testing.T) {
	p := &Policy{
		FailOn: FailOn{CleanRateBelow: floatPtr(95.0)},
	}

	tests := []struct {
		name      string
		cleanRate float64
		wantPass  bool
	}{
		{"above threshold", 98.0, true},
		{"at threshold", 95.0, true},
		{"below threshold", 90.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.Evaluate(SummaryData{CleanRate: tt.cleanRate})
			if result.Pass != tt.wantPass {
				t.Errorf("Pass = %v, want %v", result.Pass, tt.wantPass)
			}
		})
	}
}

func TestEvaluate_ErrorRate(t *testing.T) {
	p := &Policy{
		FailOn: FailOn{ErrorRateAbove: floatPtr(10.0)},
	}

	tests := []struct {
		name      string
		errorRate float64
		wantPass  bool
	}{
		{"below threshold", 5.0, true},
		{"at threshold", 10.0, true},
		{"above threshold", 15.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.Evaluate(SummaryData{ErrorRate: tt.errorRate})
			if result.Pass != tt.wantPass {
				t.Errorf("Pass = %v, want %v", result.Pass, tt.wantPass)
			}
		})
	}
}

func TestEvaluate_IgnoreCheckTypes(t *testing.T) {
	p := &Policy{
		FailOn: FailOn{
			Violations: ViolationThresholds{Total: intPtr(0)},
			CheckTypes: []string{"popularity"},
		},
		Ignore: IgnoreSpec{
			CheckTypes: []string{"popularity"},
		},
	}

	// All violations come from the ignored check type.
	result := p.Evaluate(SummaryData{
		TotalViolations:       3,
		ViolationsByCheckType: map[string]int{"popularity": 3},
	})

	if !result.Pass {
		t.Errorf("ignored check type should not fail the gate: %v", result.Failures)
	}
}

func TestEvaluate_IgnoreRules(t *testing.T) {
	p := &Policy{
		FailOn: FailOn{
			Violations: ViolationThresholds{Total: intPtr(0)},
		},
		Ignore: IgnoreSpec{
			Rules: []string{"legacy-license-check"},
		},
	}

	result := p.Evaluate(SummaryData{
		TotalViolations: 2,
		ViolationRules:  []string{"legacy-license-check", "legacy-license-check"},
	})

	if !result.Pass {
		t.Errorf("ignored rules should not fail the gate: %v", result.Failures)
	}

	// A non-ignored rule still counts.
	result = p.Evaluate(SummaryData{
		TotalViolations: 2,
		ViolationRules:  []string{"legacy-license-check", "no-critical-vulns"},
	})

	if result.Pass {
		t.Error("non-ignored rule should fail the gate")
	}
}

func TestEvaluate_ExitCode(t *testing.T) {
	p := &Policy{
		FailOn: FailOn{
			Violations: ViolationThresholds{Total: intPtr(0)},
		},
	}

	pass := p.Evaluate(SummaryData{TotalViolations: 0})
	if pass.ExitCode != defaults.ExitSuccess {
		t.Errorf("passing ExitCode = %d, want %d", pass.ExitCode, defaults.ExitSuccess)
	}

	fail := p.Evaluate(SummaryData{TotalViolations: 1})
	if fail.ExitCode != defaults.ExitViolations {
		t.Errorf("failing ExitCode = %d, want %d", fail.ExitCode, defaults.ExitViolations)
	}
}

func TestEvaluate_FailureMessages(t *testing.T) {
	p := &Policy{
		Name: "msg-gate",
		FailOn: FailOn{
			Violations:     ViolationThresholds{Total: intPtr(1), Critical: intPtr(0)},
			CheckTypes:     []string{"vuln"},
			CleanRateBelow: floatPtr(95.0),
			ErrorRateAbove: floatPtr(5.0),
		},
	}

	result := p.Evaluate(SummaryData{
		TotalViolations:       10,
		ViolationsBySeverity:  map[string]int{"critical": 2},
		ViolationsByCheckType: map[string]int{"vuln": 10},
		CleanRate:             80.0,
		ErrorRate:             12.0,
	})

	if result.Pass {
		t.Fatal("gate should fail")
	}
	if len(result.Failures) != 5 {
		t.Fatalf("got %d failures, want 5: %v", len(result.Failures), result.Failures)
	}
	if result.PolicyName != "msg-gate" {
		t.Errorf("PolicyName = %q, want msg-gate", result.PolicyName)
	}

	wantFragments := []string{
		"total violations",
		"critical severity violations",
		"check type 'vuln'",
		"clean rate",
		"error rate",
	}
	for _, frag := range wantFragments {
		found := false
		for _, f := range result.Failures {
			if strings.Contains(f, frag) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no failure message mentions %q: %v", frag, result.Failures)
		}
	}
}

func TestEvaluate_ThreadSafety(t *testing.T) {
	p := &Policy{
		FailOn: FailOn{
			Violations: ViolationThresholds{Total: intPtr(5)},
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			result := p.Evaluate(SummaryData{TotalViolations: n})
			wantPass := n <= 5
			if result.Pass != wantPass {
				t.Errorf("Evaluate(%d).Pass = %v, want %v", n, result.Pass, wantPass)
			}
		}(i)
	}
	wg.Wait()
}

func TestPolicy_String(t *testing.T) {
	named := &Policy{Name: "prod", Version: "1.0"}
	if got := named.String(); !strings.Contains(got, "prod") {
		t.Errorf("String() = %q, want policy name included", got)
	}

	anon := &Policy{Version: "1.0"}
	if got := anon.String(); !strings.Contains(got, "1.0") {
		t.Errorf("String() = %q, want version included", got)
	}
}

func TestEvaluate_ComplexPolicy(t *testing.T) {
	p, err := ParsePolicy([]byte(`
name: "release-gate"
fail_on:
  violations:
    total: 20
    critical: 0
    high: 5
  check_types:
    - vuln
  clean_rate_below: 90.0
ignore:
  check_types:
    - popularity
`))
	if err != nil {
		t.Fatalf("ParsePolicy failed: %v", err)
	}

	// A run that passes everything: popularity violations are ignored and
	// no gated check type triggered.
	result := p.Evaluate(SummaryData{
		TotalViolations:       8,
		ViolationsBySeverity:  map[string]int{"high": 2, "low": 6},
		ViolationsByCheckType: map[string]int{"popularity": 8},
		CleanRate:             94.0,
	})
	if !result.Pass {
		t.Errorf("expected pass, got failures: %v", result.Failures)
	}

	// A run with a critical vulnerability violation fails twice over.
	result = p.Evaluate(SummaryData{
		TotalViolations:       1,
		ViolationsBySeverity:  map[string]int{"critical": 1},
		ViolationsByCheckType: map[string]int{"vuln": 1},
		CleanRate:             99.0,
	})
	if result.Pass {
		t.Error("critical vuln violation should fail the gate")
	}
	if len(result.Failures) != 2 {
		t.Errorf("got %d failures, want 2: %v", len(result.Failures), result.Failures)
	}
}

func TestEvaluate_NilThresholds(t *testing.T) {
	p := &Policy{Name: "permissive"}

	result := p.Evaluate(SummaryData{
		TotalViolations:      1000,
		ViolationsBySeverity: map[string]int{"critical": 50},
		CleanRate:            10.0,
		ErrorRate:            90.0,
	})

	if !result.Pass {
		t.Errorf("gate with no thresholds should always pass: %v", result.Failures)
	}
}

func TestEvaluate_ZeroThresholdVsNilThreshold(t *testing.T) {
	zero := &Policy{
		FailOn: FailOn{Violations: ViolationThresholds{Critical: intPtr(0)}},
	}
	unset := &Policy{}

	summary := SummaryData{ViolationsBySeverity: map[string]int{"critical": 1}}

	if zero.Evaluate(summary).Pass {
		t.Error("zero threshold should fail on the first critical violation")
	}
	if !unset.Evaluate(summary).Pass {
		t.Error("nil threshold should not gate critical violations")
	}
}
