// Package facts defines the component metadata snapshots that guardrail
// expressions evaluate against: vulnerability records, OpenSSF Scorecard
// results, source project popularity, licenses, and package identity.
//
// A Snapshot is immutable once built. Evaluating many rules against the
// same snapshot, concurrently or not, is safe and always yields the same
// environment.
package facts

import (
	"fmt"
	"sort"

	"github.com/depgate/depgate/pkg/finding"
)

// Project hosting service tags as they appear in snapshot documents.
const (
	ProjectGitHub    = "GITHUB"
	ProjectGitLab    = "GITLAB"
	ProjectBitbucket = "BITBUCKET"
	ProjectUnknown   = "UNKNOWN"
)

// Component identifies the package a snapshot describes.
type Component struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Ecosystem string `json:"ecosystem"`
	Direct    bool   `json:"direct"`
}

// Ref returns a short human-readable coordinate like "npm/lodash@4.17.20".
func (c Component) Ref() string {
	if c.Ecosystem == "" {
		return fmt.Sprintf("%s@%s", c.Name, c.Version)
	}
	return fmt.Sprintf("%s/%s@%s", c.Ecosystem, c.Name, c.Version)
}

// Vulnerability is one known advisory affecting the component.
type Vulnerability struct {
	ID           string           `json:"id"`
	Severity     finding.Severity `json:"severity"`
	Summary      string           `json:"summary,omitempty"`
	Aliases      []string         `json:"aliases,omitempty"`
	FixedVersion string           `json:"fixed_version,omitempty"`
}

// Fixed reports whether a patched release is known.
func (v Vulnerability) Fixed() bool {
	return v.FixedVersion != ""
}

// Scorecard carries OpenSSF Scorecard results: a numeric score per check
// name ("Maintained", "Code-Review", "Signed-Releases", ...).
type Scorecard struct {
	Repo        string             `json:"repo,omitempty"`
	GeneratedAt string             `json:"generated_at,omitempty"`
	Scores      map[string]float64 `json:"scores,omitempty"`
}

// Aggregate returns the mean check score, the rough equivalent of the
// overall score Scorecard reports upstream. Zero when no checks ran.
func (sc *Scorecard) Aggregate() float64 {
	if sc == nil || len(sc.Scores) == 0 {
		return 0
	}
	var sum float64
	for _, score := range sc.Scores {
		sum += score
	}
	return sum / float64(len(sc.Scores))
}

// Project describes the source repository backing the component.
type Project struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Stars  int    `json:"stars"`
	Forks  int    `json:"forks"`
	Issues int    `json:"issues"`
}

// Snapshot is the full read-only fact set for one component.
type Snapshot struct {
	Component       Component       `json:"component"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities,omitempty"`
	Scorecard       *Scorecard      `json:"scorecard,omitempty"`
	Projects        []Project       `json:"projects,omitempty"`
	Licenses        []string        `json:"licenses,omitempty"`
}

// BySeverity buckets the snapshot's vulnerabilities by tier. Every valid
// tier is present in the result, empty or not, so callers never branch on
// missing keys.
func (s *Snapshot) BySeverity() map[finding.Severity][]Vulnerability {
	buckets := make(map[finding.Severity][]Vulnerability, 5)
	for _, sev := range finding.Ordered() {
		buckets[sev] = nil
	}
	for _, v := range s.Vulnerabilities {
		sev := v.Severity
		if !sev.IsValid() {
			sev = finding.Info
		}
		buckets[sev] = append(buckets[sev], v)
	}
	return buckets
}

// CountBySeverity returns the number of vulnerabilities per tier, counting
// unrecognized tiers as info.
func (s *Snapshot) CountBySeverity() map[finding.Severity]int {
	counts := make(map[finding.Severity]int, 5)
	for sev, vs := range s.BySeverity() {
		counts[sev] = len(vs)
	}
	return counts
}

// SortedVulnerabilities returns the vulnerabilities ordered by descending
// severity, then by ID, without mutating the snapshot.
func (s *Snapshot) SortedVulnerabilities() []Vulnerability {
	out := make([]Vulnerability, len(s.Vulnerabilities))
	copy(out, s.Vulnerabilities)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Severity.Score(), out[j].Severity.Score()
		if si != sj {
			return si > sj
		}
		return out[i].ID < out[j].ID
	})
	return out
}
