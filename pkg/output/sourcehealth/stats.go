package sourcehealth

import (
	"github.com/depgate/depgate/pkg/defaults"
)

// Stats holds fact-source health statistics for display.
// This struct provides a unified interface for all output formats.
type Stats struct {
	// SourcesUnavailable is the number of fact sources that failed past
	// their failure threshold and were marked unavailable.
	SourcesUnavailable int `json:"sources_unavailable"`

	// SourcesDegraded is the number of sources that are retrying or
	// recovering but still serving requests.
	SourcesDegraded int `json:"sources_degraded"`

	// ComponentsMissing is the number of components that lacked facts for
	// at least one requested check type.
	ComponentsMissing int `json:"components_missing"`

	// Details contains additional breakdown stats (e.g. per-source failure
	// counts, cache hit counts).
	Details map[string]int `json:"details,omitempty"`
}

// StatsProvider abstracts the stats source for testability.
// The factsource health registry implements this interface via its
// Stats() method.
type StatsProvider interface {
	Stats() map[string]int
}

// FromProvider creates Stats from any StatsProvider.
func FromProvider(p StatsProvider) Stats {
	return FromMap(p.Stats())
}

// FromMap creates Stats from a raw health counter map.
// This is useful for converting existing code that already has stats as a map.
func FromMap(m map[string]int) Stats {
	s := Stats{
		Details: make(map[string]int),
	}

	// Extract core fields
	if v, ok := m["sources_unavailable_total"]; ok {
		s.SourcesUnavailable = v
	}
	if v, ok := m["sources_degraded_total"]; ok {
		s.SourcesDegraded = v
	}
	if v, ok := m["components_missing_facts"]; ok {
		s.ComponentsMissing = v
	}

	// Copy all stats to Details for detailed reporting
	for k, v := range m {
		s.Details[k] = v
	}

	return s
}

// HasData returns true if any health stats are non-zero.
// Use this to conditionally display the source health section.
func (s Stats) HasData() bool {
	return s.SourcesUnavailable > 0 || s.SourcesDegraded > 0 || s.ComponentsMissing > 0
}

// Severity returns the severity level based on health stats.
// Returns: "none", "info", "warning", or "error"
func (s Stats) Severity() string {
	if s.SourcesUnavailable > 0 {
		return "error"
	}
	if s.SourcesDegraded > 0 {
		return "warning"
	}
	if s.ComponentsMissing > 0 {
		return "info"
	}
	return "none"
}

// ExitCodeContribution returns the exit code contribution for CI/CD.
// An unavailable source means facts could not be fetched at all, which maps
// to the facts-unavailable exit code. Degraded sources and missing facts do
// not change the exit code on their own; affected rules surface evaluation
// errors instead.
func (s Stats) ExitCodeContribution() int {
	if s.Severity() == "error" {
		return defaults.ExitFactsUnavailable
	}
	return defaults.ExitSuccess
}

// ToJSON returns the stats as a map suitable for JSON marshaling.
// This ensures consistent JSON output across all callers.
func (s Stats) ToJSON() map[string]interface{} {
	result := map[string]interface{}{
		"sources_unavailable": s.SourcesUnavailable,
		"sources_degraded":    s.SourcesDegraded,
		"components_missing":  s.ComponentsMissing,
	}

	if len(s.Details) > 0 {
		result["details"] = s.Details
	}

	return result
}
