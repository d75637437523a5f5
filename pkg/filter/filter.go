// Package filter implements match and exclude filtering for evaluation
// events before they reach the output writers.
// Modeled after ffuf's filter/matcher split
package filter

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/depgate/depgate/pkg/finding"
	"github.com/depgate/depgate/pkg/output/events"
)

// Config holds all filter and matcher configuration
type Config struct {
	// Match criteria (show ONLY evaluations matching these)
	MatchSeverity    []finding.Severity  // rule severities to match
	MatchMinSeverity finding.Severity    // severity floor (this level and above)
	MatchCheck       []finding.CheckType // check types to match
	MatchOutcome     []events.Outcome    // evaluation outcomes to match
	MatchRule        []string            // exact rule names
	MatchRuleRegex   []*regexp.Regexp    // rule name patterns
	MatchComponent   []string            // component name or ref
	MatchEcosystem   []string            // ecosystem names
	MatchVulnID      []string            // advisory identifiers in evidence
	MatchVulnCount   []Range             // advisory count ranges
	MatchDuration    []Range             // evaluation duration ranges (ms)
	MatchTriggered   bool                // shorthand for outcome "triggered"

	// Filter criteria (EXCLUDE evaluations matching these)
	FilterSeverity   []finding.Severity
	FilterCheck      []finding.CheckType
	FilterOutcome    []events.Outcome
	FilterRule       []string
	FilterRuleRegex  []*regexp.Regexp
	FilterComponent  []string
	FilterEcosystem  []string
	FilterVulnID     []string
	FilterDuration   []Range
	FilterDuplicates bool // drop repeat rule+component pairs
	FilterErrors     bool // drop error and skipped outcomes

	// Modes
	MatchMode  Mode // "and" | "or" - how to combine match criteria
	FilterMode Mode // "and" | "or" - how to combine filter criteria
}

// Mode defines how multiple criteria are combined
type Mode string

const (
	ModeAnd Mode = "and" // ALL criteria must match
	ModeOr  Mode = "or"  // ANY criterion can match
)

// Range represents a numeric range for filtering
type Range struct {
	Min int
	Max int
}

// Filter evaluates events against configured criteria.
// Safe for concurrent use; evaluation workers share one instance.
type Filter struct {
	config *Config

	mu       sync.Mutex
	seenKeys map[string]bool // For duplicate detection
}

// NewFilter creates a new filter with the given configuration
func NewFilter(cfg *Config) *Filter {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.MatchMode == "" {
		cfg.MatchMode = ModeOr // Default: match if ANY criterion matches
	}
	if cfg.FilterMode == "" {
		cfg.FilterMode = ModeOr // Default: filter if ANY criterion matches
	}
	return &Filter{
		config:   cfg,
		seenKeys: make(map[string]bool),
	}
}

// ShouldShow returns true if the evaluation should be shown (passed filtering)
func (f *Filter) ShouldShow(ev *events.EvaluationEvent) bool {
	// First check filters (exclusions) - if ANY filter matches, exclude
	if f.matchesFilter(ev) {
		return false
	}

	// If no match criteria defined, show by default
	if !f.hasMatchCriteria() {
		return true
	}

	// Check match criteria
	return f.matchesMatcher(ev)
}

// hasMatchCriteria returns true if any match criteria is configured
func (f *Filter) hasMatchCriteria() bool {
	c := f.config
	return len(c.MatchSeverity) > 0 ||
		c.MatchMinSeverity != "" ||
		len(c.MatchCheck) > 0 ||
		len(c.MatchOutcome) > 0 ||
		len(c.MatchRule) > 0 ||
		len(c.MatchRuleRegex) > 0 ||
		len(c.MatchComponent) > 0 ||
		len(c.MatchEcosystem) > 0 ||
		len(c.MatchVulnID) > 0 ||
		len(c.MatchVulnCount) > 0 ||
		len(c.MatchDuration) > 0 ||
		c.MatchTriggered
}

// matchesMatcher checks if the event matches configured match criteria
func (f *Filter) matchesMatcher(ev *events.EvaluationEvent) bool {
	c := f.config
	results := make([]bool, 0)

	// Severity matching
	if len(c.MatchSeverity) > 0 {
		results = append(results, containsSeverity(c.MatchSeverity, ev.Rule.Severity))
	}

	// Severity floor matching
	if c.MatchMinSeverity != "" {
		results = append(results, ev.Rule.Severity.Score() >= c.MatchMinSeverity.Score())
	}

	// Check type matching
	if len(c.MatchCheck) > 0 {
		results = append(results, containsCheck(c.MatchCheck, ev.Rule.CheckType))
	}

	// Outcome matching
	if len(c.MatchOutcome) > 0 {
		results = append(results, containsOutcome(c.MatchOutcome, ev.Result.Outcome))
	}

	// Triggered shorthand
	if c.MatchTriggered {
		results = append(results, ev.Result.Outcome == events.OutcomeTriggered)
	}

	// Exact rule name matching
	if len(c.MatchRule) > 0 {
		results = append(results, containsFold(c.MatchRule, ev.Rule.Name))
	}

	// Rule name pattern matching
	if len(c.MatchRuleRegex) > 0 {
		matched := false
		for _, re := range c.MatchRuleRegex {
			if re.MatchString(ev.Rule.Name) {
				matched = true
				break
			}
		}
		results = append(results, matched)
	}

	// Component matching (name or full ref)
	if len(c.MatchComponent) > 0 {
		results = append(results, matchesComponent(c.MatchComponent, ev))
	}

	// Ecosystem matching
	if len(c.MatchEcosystem) > 0 {
		results = append(results, containsFold(c.MatchEcosystem, ev.Component.Ecosystem))
	}

	// Advisory identifier matching
	if len(c.MatchVulnID) > 0 {
		results = append(results, matchesVulnID(c.MatchVulnID, ev))
	}

	// Advisory count matching
	if len(c.MatchVulnCount) > 0 {
		results = append(results, matchesAnyRange(c.MatchVulnCount, vulnCount(ev)))
	}

	// Evaluation duration matching
	if len(c.MatchDuration) > 0 {
		results = append(results, matchesAnyRange(c.MatchDuration, int(ev.Result.DurationMs)))
	}

	// Combine results based on mode
	return combineResults(results, c.MatchMode)
}

// matchesFilter checks if the event should be filtered out
func (f *Filter) matchesFilter(ev *events.EvaluationEvent) bool {
	c := f.config
	results := make([]bool, 0)

	// Duplicate detection (check first for efficiency)
	if c.FilterDuplicates {
		if f.seenBefore(dupKey(ev)) {
			return true // Already seen, filter out
		}
	}

	// Severity filtering
	if len(c.FilterSeverity) > 0 {
		results = append(results, containsSeverity(c.FilterSeverity, ev.Rule.Severity))
	}

	// Check type filtering
	if len(c.FilterCheck) > 0 {
		results = append(results, containsCheck(c.FilterCheck, ev.Rule.CheckType))
	}

	// Outcome filtering
	if len(c.FilterOutcome) > 0 {
		results = append(results, containsOutcome(c.FilterOutcome, ev.Result.Outcome))
	}

	// Rule name filtering
	if len(c.FilterRule) > 0 {
		results = append(results, containsFold(c.FilterRule, ev.Rule.Name))
	}

	// Rule name pattern filtering
	if len(c.FilterRuleRegex) > 0 {
		for _, re := range c.FilterRuleRegex {
			if re.MatchString(ev.Rule.Name) {
				results = append(results, true)
				break
			}
		}
	}

	// Component filtering
	if len(c.FilterComponent) > 0 {
		results = append(results, matchesComponent(c.FilterComponent, ev))
	}

	// Ecosystem filtering
	if len(c.FilterEcosystem) > 0 {
		results = append(results, containsFold(c.FilterEcosystem, ev.Component.Ecosystem))
	}

	// Advisory identifier filtering
	if len(c.FilterVulnID) > 0 {
		results = append(results, matchesVulnID(c.FilterVulnID, ev))
	}

	// Evaluation duration filtering
	if len(c.FilterDuration) > 0 {
		results = append(results, matchesAnyRange(c.FilterDuration, int(ev.Result.DurationMs)))
	}

	// Inconclusive outcome filtering
	if c.FilterErrors && isInconclusive(ev) {
		return true
	}

	// If no filter results, don't filter
	if len(results) == 0 {
		return false
	}

	// Combine results based on mode
	return combineResults(results, c.FilterMode)
}

// seenBefore records the key and reports whether it was already present.
func (f *Filter) seenBefore(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seenKeys[key] {
		return true
	}
	f.seenKeys[key] = true
	return false
}

// dupKey identifies a rule+component pair. The fingerprint covers
// coordinates precisely; the ref is the fallback for synthetic events.
func dupKey(ev *events.EvaluationEvent) string {
	id := ev.Component.Fingerprint
	if id == "" {
		id = ev.Component.Ref
	}
	return ev.Rule.Name + "\x00" + id
}

// Helper functions

func containsFold(slice []string, val string) bool {
	for _, v := range slice {
		if strings.EqualFold(v, val) {
			return true
		}
	}
	return false
}

func containsSeverity(slice []finding.Severity, val finding.Severity) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}

func containsCheck(slice []finding.CheckType, val string) bool {
	for _, v := range slice {
		if string(v) == val {
			return true
		}
	}
	return false
}

func containsOutcome(slice []events.Outcome, val events.Outcome) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}

func matchesAnyRange(ranges []Range, val int) bool {
	for _, r := range ranges {
		if val >= r.Min && val <= r.Max {
			return true
		}
	}
	return false
}

func matchesComponent(want []string, ev *events.EvaluationEvent) bool {
	for _, w := range want {
		if strings.EqualFold(w, ev.Component.Name) || strings.EqualFold(w, ev.Component.Ref) {
			return true
		}
	}
	return false
}

func matchesVulnID(want []string, ev *events.EvaluationEvent) bool {
	if ev.Evidence == nil {
		return false
	}
	for _, w := range want {
		for _, id := range ev.Evidence.VulnIDs {
			if strings.EqualFold(w, id) {
				return true
			}
		}
	}
	return false
}

func vulnCount(ev *events.EvaluationEvent) int {
	if ev.Evidence == nil {
		return 0
	}
	return len(ev.Evidence.VulnIDs)
}

func combineResults(results []bool, mode Mode) bool {
	if len(results) == 0 {
		return false
	}
	if mode == ModeAnd {
		for _, r := range results {
			if !r {
				return false
			}
		}
		return true
	}
	// ModeOr
	for _, r := range results {
		if r {
			return true
		}
	}
	return false
}

// isInconclusive reports outcomes that carry no guardrail verdict
func isInconclusive(ev *events.EvaluationEvent) bool {
	switch ev.Result.Outcome {
	case events.OutcomeError, events.OutcomeSkipped:
		return true
	}
	return false
}

// ParseRange parses a range string like "100-200" or "100" into a Range
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "-") {
		parts := strings.SplitN(s, "-", 2)
		min, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return Range{}, err
		}
		max, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return Range{}, err
		}
		return Range{Min: min, Max: max}, nil
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return Range{}, err
	}
	return Range{Min: val, Max: val}, nil
}

// ParseRanges parses multiple range specifications
// Supports formats: "100-200", "100,200,300", "100-200,300-400"
func ParseRanges(s string) ([]Range, error) {
	var ranges []Range
	parts := strings.Split(s, ",")
	for _, part := range parts {
		r, err := ParseRange(part)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}
