package finding

import (
	"fmt"
	"strings"
)

// Severity represents the severity level of a guardrail finding.
// All values are lowercase strings, matching the vulnerability tier
// keys used in fact snapshots.
type Severity string

const (
	// Critical represents immediate risk (actively exploited advisory,
	// compromised release).
	Critical Severity = "critical"

	// High represents significant risk requiring a prompt upgrade
	// (exploitable advisory, unverifiable provenance).
	High Severity = "high"

	// Medium represents moderate risk (disallowed license, stale
	// maintenance).
	Medium Severity = "medium"

	// Low represents limited risk (weak adoption, hygiene shortfalls).
	Low Severity = "low"

	// Info represents informational findings with no direct risk.
	Info Severity = "info"
)

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case Critical, High, Medium, Low, Info:
		return true
	}
	return false
}

// Score returns a numeric score for sorting and comparison.
// Critical=5, High=4, Medium=3, Low=2, Info=1, Unknown=0.
func (s Severity) Score() int {
	switch s {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity validates a raw string from a suite document or CLI flag.
// Matching is case-insensitive; the returned value is canonical lowercase.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid severity %q", raw)
	}
	return s, nil
}

// FromCVSS maps a CVSS v3.x base score to the qualitative severity
// rating defined by the specification. A zero score means no rating
// and maps to Info.
func FromCVSS(score float64) Severity {
	switch {
	case score >= 9.0:
		return Critical
	case score >= 7.0:
		return High
	case score >= 4.0:
		return Medium
	case score > 0:
		return Low
	default:
		return Info
	}
}

// Ordered returns all severities from most to least severe.
// Writers iterate this when rendering severity breakdowns.
func Ordered() []Severity {
	return []Severity{Critical, High, Medium, Low, Info}
}

// OrderedStrings returns Ordered as plain strings, for writers that key
// maps by severity name.
func OrderedStrings() []string {
	ordered := Ordered()
	out := make([]string, len(ordered))
	for i, s := range ordered {
		out[i] = string(s)
	}
	return out
}

// ToSARIF maps severity to SARIF result level.
// Critical/High → error, Medium → warning, Low/Info → note.
// See: https://docs.oasis-open.org/sarif/sarif/v2.1.0/
func (s Severity) ToSARIF() string {
	switch s {
	case Critical, High:
		return "error"
	case Medium:
		return "warning"
	default:
		return "note"
	}
}

// ToSARIFScore maps severity to GitHub security-severity score.
// These scores align with GitHub Advanced Security severity thresholds.
func (s Severity) ToSARIFScore() string {
	switch s {
	case Critical:
		return "9.5"
	case High:
		return "8.0"
	case Medium:
		return "5.5"
	case Low:
		return "2.0"
	default:
		return "0.0"
	}
}
