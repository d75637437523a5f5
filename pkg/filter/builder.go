package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/depgate/depgate/pkg/finding"
	"github.com/depgate/depgate/pkg/output/events"
)

// Builder provides a fluent API for constructing filter configurations
// from CLI flag values. Parse errors accumulate and surface on Build.
type Builder struct {
	config *Config
	errors []error
}

// NewBuilder creates a new filter configuration builder
func NewBuilder() *Builder {
	return &Builder{
		config: &Config{},
	}
}

// MatchSeverity adds severities to match (show only these)
// Accepts: "critical", "critical,high"
func (b *Builder) MatchSeverity(s string) *Builder {
	sevs, err := parseSeverities(s)
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("match-severity: %w", err))
		return b
	}
	b.config.MatchSeverity = append(b.config.MatchSeverity, sevs...)
	return b
}

// FilterSeverity adds severities to filter (exclude these)
func (b *Builder) FilterSeverity(s string) *Builder {
	sevs, err := parseSeverities(s)
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("filter-severity: %w", err))
		return b
	}
	b.config.FilterSeverity = append(b.config.FilterSeverity, sevs...)
	return b
}

// MatchMinSeverity sets a severity floor: show this level and above
func (b *Builder) MatchMinSeverity(s string) *Builder {
	sev, err := finding.ParseSeverity(s)
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("match-min-severity: %w", err))
		return b
	}
	b.config.MatchMinSeverity = sev
	return b
}

// MatchCheck adds check types to match
// Accepts: "vuln", "vuln,license,scorecard"
func (b *Builder) MatchCheck(s string) *Builder {
	checks, err := parseChecks(s)
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("match-check: %w", err))
		return b
	}
	b.config.MatchCheck = append(b.config.MatchCheck, checks...)
	return b
}

// FilterCheck adds check types to filter
func (b *Builder) FilterCheck(s string) *Builder {
	checks, err := parseChecks(s)
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("filter-check: %w", err))
		return b
	}
	b.config.FilterCheck = append(b.config.FilterCheck, checks...)
	return b
}

// MatchOutcome adds evaluation outcomes to match
// Accepts: "triggered", "pass,error"
func (b *Builder) MatchOutcome(s string) *Builder {
	outcomes, err := parseOutcomes(s)
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("match-outcome: %w", err))
		return b
	}
	b.config.MatchOutcome = append(b.config.MatchOutcome, outcomes...)
	return b
}

// FilterOutcome adds evaluation outcomes to filter
func (b *Builder) FilterOutcome(s string) *Builder {
	outcomes, err := parseOutcomes(s)
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("filter-outcome: %w", err))
		return b
	}
	b.config.FilterOutcome = append(b.config.FilterOutcome, outcomes...)
	return b
}

// MatchRule adds exact rule names to match
func (b *Builder) MatchRule(names ...string) *Builder {
	b.config.MatchRule = append(b.config.MatchRule, names...)
	return b
}

// FilterRule adds exact rule names to filter
func (b *Builder) FilterRule(names ...string) *Builder {
	b.config.FilterRule = append(b.config.FilterRule, names...)
	return b
}

// MatchRuleRegex adds rule name patterns to match
func (b *Builder) MatchRuleRegex(patterns ...string) *Builder {
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			b.errors = append(b.errors, fmt.Errorf("match-rule-regex %q: %w", p, err))
			continue
		}
		b.config.MatchRuleRegex = append(b.config.MatchRuleRegex, re)
	}
	return b
}

// FilterRuleRegex adds rule name patterns to filter
func (b *Builder) FilterRuleRegex(patterns ...string) *Builder {
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			b.errors = append(b.errors, fmt.Errorf("filter-rule-regex %q: %w", p, err))
			continue
		}
		b.config.FilterRuleRegex = append(b.config.FilterRuleRegex, re)
	}
	return b
}

// MatchComponent adds component names or refs to match
func (b *Builder) MatchComponent(refs ...string) *Builder {
	b.config.MatchComponent = append(b.config.MatchComponent, refs...)
	return b
}

// FilterComponent adds component names or refs to filter
func (b *Builder) FilterComponent(refs ...string) *Builder {
	b.config.FilterComponent = append(b.config.FilterComponent, refs...)
	return b
}

// MatchEcosystem adds ecosystem names to match
func (b *Builder) MatchEcosystem(names ...string) *Builder {
	b.config.MatchEcosystem = append(b.config.MatchEcosystem, names...)
	return b
}

// FilterEcosystem adds ecosystem names to filter
func (b *Builder) FilterEcosystem(names ...string) *Builder {
	b.config.FilterEcosystem = append(b.config.FilterEcosystem, names...)
	return b
}

// MatchVulnID adds advisory identifiers to match
func (b *Builder) MatchVulnID(ids ...string) *Builder {
	b.config.MatchVulnID = append(b.config.MatchVulnID, ids...)
	return b
}

// FilterVulnID adds advisory identifiers to filter
func (b *Builder) FilterVulnID(ids ...string) *Builder {
	b.config.FilterVulnID = append(b.config.FilterVulnID, ids...)
	return b
}

// MatchVulnCount adds advisory count ranges to match
// Accepts: "1", "2-5", "1,3-10"
func (b *Builder) MatchVulnCount(s string) *Builder {
	ranges, err := ParseRanges(s)
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("match-vuln-count: %w", err))
		return b
	}
	b.config.MatchVulnCount = append(b.config.MatchVulnCount, ranges...)
	return b
}

// MatchDuration adds evaluation duration ranges in milliseconds to match
func (b *Builder) MatchDuration(s string) *Builder {
	ranges, err := ParseRanges(s)
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("match-duration: %w", err))
		return b
	}
	b.config.MatchDuration = append(b.config.MatchDuration, ranges...)
	return b
}

// FilterDuration adds evaluation duration ranges in milliseconds to filter
func (b *Builder) FilterDuration(s string) *Builder {
	ranges, err := ParseRanges(s)
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("filter-duration: %w", err))
		return b
	}
	b.config.FilterDuration = append(b.config.FilterDuration, ranges...)
	return b
}

// MatchTriggered restricts output to triggered evaluations
func (b *Builder) MatchTriggered() *Builder {
	b.config.MatchTriggered = true
	return b
}

// FilterDuplicates enables rule+component duplicate filtering
func (b *Builder) FilterDuplicates() *Builder {
	b.config.FilterDuplicates = true
	return b
}

// FilterErrors excludes error and skipped outcomes
func (b *Builder) FilterErrors() *Builder {
	b.config.FilterErrors = true
	return b
}

// MatchModeAnd sets match mode to AND (all criteria must match)
func (b *Builder) MatchModeAnd() *Builder {
	b.config.MatchMode = ModeAnd
	return b
}

// MatchModeOr sets match mode to OR (any criterion can match)
func (b *Builder) MatchModeOr() *Builder {
	b.config.MatchMode = ModeOr
	return b
}

// FilterModeAnd sets filter mode to AND (all criteria must match to filter)
func (b *Builder) FilterModeAnd() *Builder {
	b.config.FilterMode = ModeAnd
	return b
}

// FilterModeOr sets filter mode to OR (any criterion can filter)
func (b *Builder) FilterModeOr() *Builder {
	b.config.FilterMode = ModeOr
	return b
}

// Build returns the filter configuration and any errors
func (b *Builder) Build() (*Config, error) {
	if len(b.errors) > 0 {
		var errStrs []string
		for _, e := range b.errors {
			errStrs = append(errStrs, e.Error())
		}
		return b.config, fmt.Errorf("filter configuration errors: %s", strings.Join(errStrs, "; "))
	}
	return b.config, nil
}

// BuildFilter returns a ready-to-use filter
func (b *Builder) BuildFilter() (*Filter, error) {
	cfg, err := b.Build()
	return NewFilter(cfg), err
}

func parseSeverities(s string) ([]finding.Severity, error) {
	var sevs []finding.Severity
	for _, part := range strings.Split(s, ",") {
		sev, err := finding.ParseSeverity(part)
		if err != nil {
			return nil, err
		}
		sevs = append(sevs, sev)
	}
	return sevs, nil
}

func parseChecks(s string) ([]finding.CheckType, error) {
	var checks []finding.CheckType
	for _, part := range strings.Split(s, ",") {
		c, err := finding.ParseCheckType(strings.ToLower(strings.TrimSpace(part)))
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return checks, nil
}

func parseOutcomes(s string) ([]events.Outcome, error) {
	var outcomes []events.Outcome
	for _, part := range strings.Split(s, ",") {
		o, err := events.ParseOutcome(part)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}
