package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/depgate/depgate/pkg/defaults"
)

// Input contains all data needed to score one guardrail evaluation
type Input struct {
	Severity  string
	Outcome   string
	CheckType string
	// Optional evidence fields for escalation
	VulnCount      int
	HasScorecard   bool    // ScorecardScore is only meaningful when set
	ScorecardScore float64 // aggregate OpenSSF score 0-10
	Direct         bool
}

// Result contains the calculated risk score and metadata
type Result struct {
	RiskScore        float64
	FinalSeverity    string
	EscalationReason string
}

// Base severity scores
var severityScores = map[string]float64{
	"critical": 10.0,
	"high":     7.0,
	"medium":   5.0,
	"low":      3.0,
	"info":     1.0,
}

// Check-type weights. Confirmed advisories and tampered builds outweigh
// hygiene signals.
var checkTypeWeights = map[string]float64{
	"vuln":        1.5,
	"provenance":  1.3,
	"license":     1.1,
	"maintenance": 1.0,
	"scorecard":   1.0,
	"popularity":  0.8,
}

// Calculate computes the risk score for one evaluation using a multi-factor
// algorithm: severity base points, outcome weight, check-type weight, and
// evidence escalation.
func Calculate(input Input) Result {
	result := Result{
		FinalSeverity: input.Severity,
	}

	// Get base severity score (case-insensitive)
	severity := strings.ToLower(input.Severity)
	baseSeverity, ok := severityScores[severity]
	if !ok {
		baseSeverity = 5.0 // Default to Medium
	}

	// Initialize modifiers
	impactWeight := 1.0
	exploitabilityMod := 0.0
	detectionMod := 0.0

	// 1. Outcome-based impact adjustment (case-insensitive)
	outcome := strings.ToLower(input.Outcome)
	switch outcome {
	case "triggered":
		impactWeight = 1.5 // Violation confirmed
	case "pass":
		impactWeight = 0.1 // Component clean
		detectionMod = -3.0
	case "skipped":
		impactWeight = 0.2 // Not evaluated
		detectionMod = -2.0
	case "error":
		impactWeight = 0.5 // Uncertain
		detectionMod = -1.0
	}

	// 2. Check-type weight
	impactWeight *= checkWeight(input.CheckType)

	// 3. Evidence escalation: deterministic, highest-impact signal wins
	if outcome == "triggered" {
		if esc, found := bestEscalation(input); found {
			exploitabilityMod += esc.Impact
			result.EscalationReason = esc.Reason
			if esc.Impact >= 4.0 && strings.ToLower(result.FinalSeverity) != "critical" {
				result.FinalSeverity = "critical"
				baseSeverity = severityScores["critical"]
			}
		}
	}

	// 4. Direct dependencies are reachable without an intermediate
	if input.Direct && outcome == "triggered" {
		exploitabilityMod += 0.5
	}

	// 5. Check-type reasons for violations without specific evidence
	if result.EscalationReason == "" && outcome == "triggered" {
		result.EscalationReason = checkTypeReason(input.CheckType, input.Direct)
	}

	// 6. Pass/Error/Skipped get generic reasons
	if result.EscalationReason == "" {
		switch outcome {
		case "pass":
			result.EscalationReason = "Guardrail satisfied - no action needed"
		case "error":
			result.EscalationReason = "Evaluation error - inconclusive result"
		case "skipped":
			result.EscalationReason = "Evaluation skipped"
		default:
			// Catch-all for any uncategorized outcome
			result.EscalationReason = "Evaluation completed with outcome: " + input.Outcome
		}
	}

	// Calculate final score: (impact * base + mods) / normalization
	// Normalize to 0-100 scale
	rawScore := impactWeight*baseSeverity + exploitabilityMod + detectionMod
	result.RiskScore = normalize(rawScore)

	return result
}

// escalation is one evidence signal that can raise the score
type escalation struct {
	Impact float64
	Reason string
}

// bestEscalation returns the highest-impact evidence signal. Candidates are
// collected in a fixed order and ties keep the earlier candidate, so the
// same input always yields the same reason.
func bestEscalation(input Input) (escalation, bool) {
	var best escalation
	for _, esc := range collectEscalations(input) {
		if esc.Impact > best.Impact {
			best = esc
		}
	}
	return best, best.Impact > 0
}

func collectEscalations(input Input) []escalation {
	var out []escalation

	switch {
	case input.VulnCount >= defaults.VulnCountSevere:
		out = append(out, escalation{
			Impact: 4.0,
			Reason: fmt.Sprintf("%d known advisories affect this version", input.VulnCount),
		})
	case input.VulnCount > 1:
		out = append(out, escalation{
			Impact: 2.5,
			Reason: fmt.Sprintf("%d known advisories affect this version", input.VulnCount),
		})
	case input.VulnCount == 1:
		out = append(out, escalation{
			Impact: 1.5,
			Reason: "known advisory affects this version",
		})
	}

	if input.HasScorecard && input.ScorecardScore < defaults.ScorecardFloor {
		shortfall := defaults.ScorecardFloor - input.ScorecardScore
		if shortfall > defaults.ScorecardFloor {
			shortfall = defaults.ScorecardFloor
		}
		out = append(out, escalation{
			Impact: shortfall * 0.6,
			Reason: fmt.Sprintf("OpenSSF Scorecard %.1f is below the %.1f floor",
				input.ScorecardScore, float64(defaults.ScorecardFloor)),
		})
	}

	return out
}

// normalize scales the score to 0-100
func normalize(raw float64) float64 {
	// Max possible: 1.5 * 1.5 * 10 + 4.5 + 0 = 27
	// Min possible: 0.1 * 0.8 * 1 + 0 - 3 = -2.92
	// Scale to 0-100
	normalized := ((raw + 3) / 30) * defaults.RiskScale
	if normalized < 0 {
		return 0
	}
	if normalized > defaults.RiskScale {
		return defaults.RiskScale
	}
	return normalized
}

// checkWeight returns the weight for a check type
func checkWeight(checkType string) float64 {
	if w, ok := checkTypeWeights[strings.ToLower(checkType)]; ok {
		return w
	}
	return 1.0
}

// checkTypeReason returns a reason based on check type for triggered evaluations
func checkTypeReason(checkType string, direct bool) string {
	ct := strings.ToLower(checkType)

	directHint := ""
	if direct {
		directHint = " (direct dependency)"
	}

	switch ct {
	case "vuln":
		return "Known vulnerability matched this version" + directHint
	case "license":
		return "License outside the allowed set" + directHint
	case "maintenance":
		return "Component looks unmaintained" + directHint
	case "popularity":
		return "Adoption below the configured threshold" + directHint
	case "scorecard":
		return "OpenSSF Scorecard posture below the configured threshold" + directHint
	case "provenance":
		return "Build provenance could not be verified" + directHint
	default:
		return "Guardrail expression matched component facts" + directHint
	}
}

// gradeThreshold maps a maximum risk score to a letter grade
type gradeThreshold struct {
	grade   string
	maxRisk float64
}

// defaultGradeThresholds returns grade cutoffs, ascending by risk.
// Risk runs opposite to a school score: 0 is a perfect A+.
func defaultGradeThresholds() []gradeThreshold {
	return []gradeThreshold{
		{"A+", 3},
		{"A", 7},
		{"A-", 10},
		{"B+", 13},
		{"B", 17},
		{"B-", 20},
		{"C+", 23},
		{"C", 27},
		{"C-", 30},
		{"D+", 33},
		{"D", 37},
		{"D-", 40},
		{"F", defaults.RiskScale},
	}
}

// GradeFromRisk converts a 0-100 risk score (higher is worse) to a letter grade
func GradeFromRisk(risk float64) string {
	for _, t := range defaultGradeThresholds() {
		if risk <= t.maxRisk {
			return t.grade
		}
	}
	return "F"
}

// RiskFromGrade returns the maximum risk score that still earns a grade
func RiskFromGrade(grade string) float64 {
	for _, t := range defaultGradeThresholds() {
		if t.grade == grade {
			return t.maxRisk
		}
	}
	return defaults.RiskScale
}

// RunRisk is the run-level risk summary
type RunRisk struct {
	Score          float64
	Grade          string
	CleanRatePct   float64
	Recommendation string
}

// Summarize computes the run-level risk from per-evaluation risk scores
// grouped by check type. Check types carry the same weights Calculate uses,
// so a clean popularity sweep cannot mask vulnerability violations.
func Summarize(scoresByCheck map[string][]float64, evaluations, violations int) RunRisk {
	checkTypes := make([]string, 0, len(scoresByCheck))
	for ct := range scoresByCheck {
		checkTypes = append(checkTypes, ct)
	}
	sort.Strings(checkTypes)

	var weightedSum, totalWeight float64
	for _, ct := range checkTypes {
		scores := scoresByCheck[ct]
		if len(scores) == 0 {
			continue
		}
		var sum float64
		for _, s := range scores {
			sum += s
		}
		weight := checkWeight(ct)
		weightedSum += (sum / float64(len(scores))) * weight
		totalWeight += weight
	}

	var risk float64
	if totalWeight > 0 {
		risk = weightedSum / totalWeight
	}

	cleanRate := 100.0
	if evaluations > 0 {
		cleanRate = float64(evaluations-violations) / float64(evaluations) * 100
	}

	return RunRisk{
		Score:          risk,
		Grade:          GradeFromRisk(risk),
		CleanRatePct:   cleanRate,
		Recommendation: recommendationFor(risk, violations),
	}
}

// recommendationFor picks a next step from the risk band
func recommendationFor(risk float64, violations int) string {
	switch {
	case violations == 0:
		return "No guardrail violations. Dependency set is in good shape."
	case GradeFromRisk(risk) == "F":
		return "Hold the release until the flagged components are remediated."
	case risk > RiskFromGrade("B-"):
		return "Schedule remediation for the flagged components this cycle."
	default:
		return "Review flagged components at the next dependency update."
	}
}
