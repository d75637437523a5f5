package gate

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/depgate/depgate/pkg/defaults"
)

// ErrPolicyNotFound is returned when a gate policy file does not exist.
var ErrPolicyNotFound = errors.New("gate policy file not found")

// ErrInvalidPolicy is returned when a gate policy file is malformed.
var ErrInvalidPolicy = errors.New("invalid gate policy file")

// Policy represents a parsed quality gate configuration.
type Policy struct {
	Version string     `yaml:"version"`
	Name    string     `yaml:"name"`
	FailOn  FailOn     `yaml:"fail_on"`
	Ignore  IgnoreSpec `yaml:"ignore"`

	mu sync.RWMutex // protects evaluation
}

// FailOn defines conditions that cause a run to fail the gate.
type FailOn struct {
	Violations     ViolationThresholds `yaml:"violations"`
	CheckTypes     []string            `yaml:"check_types"`
	CleanRateBelow *float64            `yaml:"clean_rate_below"`
	ErrorRateAbove *float64            `yaml:"error_rate_above"`
}

// ViolationThresholds defines maximum allowed violations by severity.
// A nil value means no threshold. A value of N means fail if violations > N,
// so 0 fails on the first violation of that severity.
type ViolationThresholds struct {
	Total    *int `yaml:"total"`
	Critical *int `yaml:"critical"`
	High     *int `yaml:"high"`
	Medium   *int `yaml:"medium"`
	Low      *int `yaml:"low"`
	Info     *int `yaml:"info"`
}

// IgnoreSpec defines rules and check types excluded from gate evaluation.
type IgnoreSpec struct {
	Rules      []string `yaml:"rules"`
	CheckTypes []string `yaml:"check_types"`
}

// SummaryData holds the run summary metrics the gate evaluates.
type SummaryData struct {
	// TotalViolations is the total number of triggered rules.
	TotalViolations int

	// ViolationsBySeverity maps severity (critical, high, medium, low, info)
	// to violation count.
	ViolationsBySeverity map[string]int

	// ViolationsByCheckType maps check type to violation count.
	ViolationsByCheckType map[string]int

	// ViolationRules contains the rule names behind the violations, used for
	// ignore matching.
	ViolationRules []string

	// CleanRate is the percentage of conclusive evaluations that passed (0-100).
	CleanRate float64

	// ErrorRate is the percentage of evaluations that errored (0-100).
	ErrorRate float64

	// TotalEvaluations is the total number of rule evaluations.
	TotalEvaluations int

	// TotalErrors is the total number of evaluation errors.
	TotalErrors int
}

// Result contains the outcome of a gate evaluation.
type Result struct {
	// Pass is true if the gate passed (no failures).
	Pass bool

	// Failures contains human-readable failure messages.
	Failures []string

	// ExitCode is the recommended process exit code for the result.
	ExitCode int

	// PolicyName is the name of the evaluated gate policy.
	PolicyName string
}

// LoadPolicy loads and parses a gate policy file from the given path.
// Returns ErrPolicyNotFound if the file doesn't exist.
// Returns ErrInvalidPolicy if the file is malformed.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, path)
		}
		return nil, fmt.Errorf("reading gate policy file: %w", err)
	}

	return ParsePolicy(data)
}

// ParsePolicy parses gate policy YAML data.
// Returns ErrInvalidPolicy if the data is malformed.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	if p.Version == "" {
		p.Version = "1.0"
	}

	// Check types match case-insensitively.
	for i := range p.FailOn.CheckTypes {
		p.FailOn.CheckTypes[i] = strings.ToLower(p.FailOn.CheckTypes[i])
	}
	for i := range p.Ignore.CheckTypes {
		p.Ignore.CheckTypes[i] = strings.ToLower(p.Ignore.CheckTypes[i])
	}

	return &p, nil
}

// Evaluate evaluates the gate against the given run summary.
// This method is thread-safe.
func (p *Policy) Evaluate(summary SummaryData) Result {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := Result{
		Pass:       true,
		Failures:   make([]string, 0),
		ExitCode:   defaults.ExitSuccess,
		PolicyName: p.Name,
	}

	ignoreRules := make(map[string]bool)
	for _, name := range p.Ignore.Rules {
		ignoreRules[name] = true
	}
	ignoreChecks := make(map[string]bool)
	for _, ct := range p.Ignore.CheckTypes {
		ignoreChecks[strings.ToLower(ct)] = true
	}

	adjusted := p.applyIgnores(summary, ignoreRules, ignoreChecks)

	p.checkViolationThresholds(&result, adjusted)
	p.checkCheckTypeViolations(&result, adjusted, ignoreChecks)
	p.checkCleanRate(&result, adjusted)
	p.checkErrorRate(&result, adjusted)

	if len(result.Failures) > 0 {
		result.Pass = false
		result.ExitCode = defaults.ExitViolations
	}

	return result
}

// applyIgnores adjusts the summary for ignored rules and check types.
// ViolationRules carries one entry per violation, so ignored rules can be
// subtracted from the total. Severity and check-type counts lack per-rule
// attribution and are left untouched by rule ignores. Rule and check-type
// ignores are applied to the total independently, so a violation matching
// both is subtracted twice; gates should use one mechanism per rule.
func (p *Policy) applyIgnores(summary SummaryData, ignoreRules, ignoreChecks map[string]bool) SummaryData {
	adjusted := SummaryData{
		TotalViolations:       summary.TotalViolations,
		ViolationsBySeverity:  make(map[string]int),
		ViolationsByCheckType: make(map[string]int),
		ViolationRules:        summary.ViolationRules,
		CleanRate:             summary.CleanRate,
		ErrorRate:             summary.ErrorRate,
		TotalEvaluations:      summary.TotalEvaluations,
		TotalErrors:           summary.TotalErrors,
	}

	for k, v := range summary.ViolationsBySeverity {
		adjusted.ViolationsBySeverity[k] = v
	}

	ignoredCount := 0
	for _, rule := range summary.ViolationRules {
		if ignoreRules[rule] {
			ignoredCount++
		}
	}

	for ct, count := range summary.ViolationsByCheckType {
		if ignoreChecks[strings.ToLower(ct)] {
			ignoredCount += count
			continue
		}
		adjusted.ViolationsByCheckType[ct] = count
	}

	adjusted.TotalViolations -= ignoredCount
	if adjusted.TotalViolations < 0 {
		adjusted.TotalViolations = 0
	}

	return adjusted
}

// checkViolationThresholds checks the total and per-severity counts.
func (p *Policy) checkViolationThresholds(result *Result, summary SummaryData) {
	thresholds := p.FailOn.Violations

	if thresholds.Total != nil && summary.TotalViolations > *thresholds.Total {
		result.Failures = append(result.Failures,
			fmt.Sprintf("total violations (%d) exceeds threshold (%d)",
				summary.TotalViolations, *thresholds.Total))
	}

	severities := []struct {
		name      string
		threshold *int
	}{
		{"critical", thresholds.Critical},
		{"high", thresholds.High},
		{"medium", thresholds.Medium},
		{"low", thresholds.Low},
		{"info", thresholds.Info},
	}

	for _, s := range severities {
		if s.threshold == nil {
			continue
		}
		count := summary.ViolationsBySeverity[s.name]
		if count > *s.threshold {
			result.Failures = append(result.Failures,
				fmt.Sprintf("%s severity violations (%d) exceeds threshold (%d)",
					s.name, count, *s.threshold))
		}
	}
}

// checkCheckTypeViolations fails on any violation in the listed check types.
func (p *Policy) checkCheckTypeViolations(result *Result, summary SummaryData, ignoreChecks map[string]bool) {
	for _, checkType := range p.FailOn.CheckTypes {
		ct := strings.ToLower(checkType)

		if ignoreChecks[ct] {
			continue
		}

		count := summary.ViolationsByCheckType[ct]
		if count > 0 {
			result.Failures = append(result.Failures,
				fmt.Sprintf("violations detected in check type '%s' (%d found)",
					checkType, count))
		}
	}
}

// checkCleanRate checks the clean rate floor.
func (p *Policy) checkCleanRate(result *Result, summary SummaryData) {
	if p.FailOn.CleanRateBelow == nil {
		return
	}

	threshold := *p.FailOn.CleanRateBelow
	if summary.CleanRate < threshold {
		result.Failures = append(result.Failures,
			fmt.Sprintf("clean rate (%.1f%%) is below threshold (%.1f%%)",
				summary.CleanRate, threshold))
	}
}

// checkErrorRate checks the error rate ceiling.
func (p *Policy) checkErrorRate(result *Result, summary SummaryData) {
	if p.FailOn.ErrorRateAbove == nil {
		return
	}

	threshold := *p.FailOn.ErrorRateAbove
	if summary.ErrorRate > threshold {
		result.Failures = append(result.Failures,
			fmt.Sprintf("error rate (%.1f%%) exceeds threshold (%.1f%%)",
				summary.ErrorRate, threshold))
	}
}

// String returns a human-readable representation of the gate policy.
func (p *Policy) String() string {
	if p.Name != "" {
		return fmt.Sprintf("Gate(%s v%s)", p.Name, p.Version)
	}
	return fmt.Sprintf("Gate(v%s)", p.Version)
}
