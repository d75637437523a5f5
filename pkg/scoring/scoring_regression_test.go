// Regression test for bug: case-sensitive severity comparison in scoring
package scoring

import (
	"testing"
)

// TestCalculate_CaseInsensitiveSeverity verifies that severity matching is
// case-insensitive. All case variants of the same severity must produce
// identical scores.
func TestCalculate_CaseInsensitiveSeverity(t *testing.T) {
	tests := []struct {
		severity  string
		canonical string
	}{
		{"CRITICAL", "critical"},
		{"Critical", "critical"},
		{"CrItIcAl", "critical"},
		{"HIGH", "high"},
		{"High", "high"},
		{"MEDIUM", "medium"},
		{"Medium", "medium"},
		{"LOW", "low"},
		{"Low", "low"},
		{"INFO", "info"},
		{"Info", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			result := Calculate(Input{Severity: tt.severity, Outcome: "triggered"})
			reference := Calculate(Input{Severity: tt.canonical, Outcome: "triggered"})

			if result.RiskScore != reference.RiskScore {
				t.Errorf("Calculate(%q).RiskScore = %f, want %f (same as %q)",
					tt.severity, result.RiskScore, reference.RiskScore, tt.canonical)
			}
		})
	}
}

// TestCalculate_CaseInsensitiveOutcome verifies that outcome matching is
// case-insensitive so callers feeding event constants and callers feeding
// raw user input score identically.
func TestCalculate_CaseInsensitiveOutcome(t *testing.T) {
	variants := []string{"TRIGGERED", "Triggered", "triggered"}

	reference := Calculate(Input{Severity: "high", Outcome: "triggered"})
	for _, outcome := range variants {
		result := Calculate(Input{Severity: "high", Outcome: outcome})
		if result.RiskScore != reference.RiskScore {
			t.Errorf("Calculate(outcome=%q).RiskScore = %f, want %f",
				outcome, result.RiskScore, reference.RiskScore)
		}
	}
}

// TestCalculate_UnknownSeverity_DefaultsToMedium verifies that unknown or
// empty severity values default to the medium baseline.
func TestCalculate_UnknownSeverity_DefaultsToMedium(t *testing.T) {
	tests := []struct {
		name     string
		severity string
	}{
		{"unknown_string", "UNKNOWN"},
		{"empty_string", ""},
		{"garbage", "not-a-severity"},
		{"numeric", "42"},
	}

	mediumResult := Calculate(Input{Severity: "medium", Outcome: "triggered"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Calculate(Input{Severity: tt.severity, Outcome: "triggered"})

			if result.RiskScore != mediumResult.RiskScore {
				t.Errorf("Calculate(severity=%q).RiskScore = %f, want %f (medium default)",
					tt.severity, result.RiskScore, mediumResult.RiskScore)
			}
		})
	}
}
