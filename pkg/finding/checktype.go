package finding

import "fmt"

// CheckType classifies what property of a component a guardrail inspects.
type CheckType string

const (
	// CheckVuln covers known vulnerability guardrails.
	CheckVuln CheckType = "vuln"

	// CheckLicense covers license allow/deny guardrails.
	CheckLicense CheckType = "license"

	// CheckMaintenance covers abandonment and upkeep guardrails.
	CheckMaintenance CheckType = "maintenance"

	// CheckPopularity covers adoption and usage guardrails.
	CheckPopularity CheckType = "popularity"

	// CheckScorecard covers OpenSSF Scorecard guardrails.
	CheckScorecard CheckType = "scorecard"

	// CheckProvenance covers build and release integrity guardrails.
	CheckProvenance CheckType = "provenance"

	// CheckOther covers guardrails outside the named categories.
	CheckOther CheckType = "other"
)

// CheckTypes lists all valid check types in report order.
func CheckTypes() []CheckType {
	return []CheckType{
		CheckVuln,
		CheckLicense,
		CheckMaintenance,
		CheckPopularity,
		CheckScorecard,
		CheckProvenance,
		CheckOther,
	}
}

// IsValid reports whether c is a recognized check type.
func (c CheckType) IsValid() bool {
	switch c {
	case CheckVuln, CheckLicense, CheckMaintenance, CheckPopularity,
		CheckScorecard, CheckProvenance, CheckOther:
		return true
	}
	return false
}

// String returns the check type as a string.
func (c CheckType) String() string {
	return string(c)
}

// DefaultSeverity returns the reporting severity for rules that do not set
// one explicitly.
func (c CheckType) DefaultSeverity() Severity {
	switch c {
	case CheckVuln, CheckProvenance:
		return High
	case CheckLicense, CheckMaintenance, CheckScorecard:
		return Medium
	case CheckPopularity:
		return Low
	default:
		return Info
	}
}

// ParseCheckType validates a raw string from a suite document.
func ParseCheckType(raw string) (CheckType, error) {
	c := CheckType(raw)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid check_type %q", raw)
	}
	return c, nil
}
