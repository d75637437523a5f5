package facts

import (
	"testing"

	"github.com/depgate/depgate/pkg/finding"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Component: Component{Name: "lodash", Version: "4.17.20", Ecosystem: "npm", Direct: true},
		Vulnerabilities: []Vulnerability{
			{ID: "GHSA-p6mc-m468-83gw", Severity: finding.High, Summary: "Prototype pollution", FixedVersion: "4.17.21"},
			{ID: "CVE-2021-23337", Severity: finding.High, Summary: "Command injection", FixedVersion: "4.17.21"},
			{ID: "CVE-2020-28500", Severity: finding.Medium, Summary: "ReDoS"},
		},
		Scorecard: &Scorecard{
			Repo:   "github.com/lodash/lodash",
			Scores: map[string]float64{"Maintained": 4.0, "Code-Review": 8.2},
		},
		Projects: []Project{
			{Name: "lodash/lodash", Type: ProjectGitHub, Stars: 55000, Forks: 7000, Issues: 120},
		},
		Licenses: []string{"MIT"},
	}
}

func TestComponentRef(t *testing.T) {
	t.Parallel()

	c := Component{Name: "lodash", Version: "4.17.20", Ecosystem: "npm"}
	if got := c.Ref(); got != "npm/lodash@4.17.20" {
		t.Errorf("Ref() = %q", got)
	}

	bare := Component{Name: "lodash", Version: "4.17.20"}
	if got := bare.Ref(); got != "lodash@4.17.20" {
		t.Errorf("Ref() without ecosystem = %q", got)
	}
}

func TestBySeverity(t *testing.T) {
	t.Parallel()

	s := sampleSnapshot()
	buckets := s.BySeverity()

	// All tiers are present even when empty.
	for _, sev := range finding.Ordered() {
		if _, ok := buckets[sev]; !ok {
			t.Errorf("missing tier %s", sev)
		}
	}

	if got := len(buckets[finding.High]); got != 2 {
		t.Errorf("high tier = %d vulns, want 2", got)
	}
	if got := len(buckets[finding.Medium]); got != 1 {
		t.Errorf("medium tier = %d vulns, want 1", got)
	}
	if got := len(buckets[finding.Critical]); got != 0 {
		t.Errorf("critical tier = %d vulns, want 0", got)
	}
}

func TestBySeverityUnknownTier(t *testing.T) {
	t.Parallel()

	s := &Snapshot{Vulnerabilities: []Vulnerability{{ID: "X-1", Severity: "weird"}}}
	buckets := s.BySeverity()
	if got := len(buckets[finding.Info]); got != 1 {
		t.Errorf("unknown severity should land in info, got %d there", got)
	}
}

func TestCountBySeverity(t *testing.T) {
	t.Parallel()

	counts := sampleSnapshot().CountBySeverity()
	want := map[finding.Severity]int{
		finding.Critical: 0,
		finding.High:     2,
		finding.Medium:   1,
		finding.Low:      0,
		finding.Info:     0,
	}
	for sev, n := range want {
		if counts[sev] != n {
			t.Errorf("counts[%s] = %d, want %d", sev, counts[sev], n)
		}
	}
}

func TestSortedVulnerabilities(t *testing.T) {
	t.Parallel()

	s := sampleSnapshot()
	sorted := s.SortedVulnerabilities()

	wantOrder := []string{"CVE-2021-23337", "GHSA-p6mc-m468-83gw", "CVE-2020-28500"}
	for i, id := range wantOrder {
		if sorted[i].ID != id {
			t.Errorf("pos %d: got %s, want %s", i, sorted[i].ID, id)
		}
	}

	// Input order untouched.
	if s.Vulnerabilities[0].ID != "GHSA-p6mc-m468-83gw" {
		t.Error("SortedVulnerabilities mutated the snapshot")
	}
}

func TestVulnerabilityFixed(t *testing.T) {
	t.Parallel()

	if !(Vulnerability{FixedVersion: "1.2.3"}).Fixed() {
		t.Error("vuln with fixed_version should report Fixed")
	}
	if (Vulnerability{}).Fixed() {
		t.Error("vuln without fixed_version should not report Fixed")
	}
}

func TestScorecardAggregate(t *testing.T) {
	t.Parallel()

	var nilCard *Scorecard
	if got := nilCard.Aggregate(); got != 0 {
		t.Errorf("nil scorecard aggregate = %v, want 0", got)
	}
	if got := (&Scorecard{}).Aggregate(); got != 0 {
		t.Errorf("empty scorecard aggregate = %v, want 0", got)
	}

	sc := &Scorecard{Scores: map[string]float64{
		"Maintained":      10,
		"Code-Review":     7,
		"Signed-Releases": 4,
	}}
	if got := sc.Aggregate(); got != 7 {
		t.Errorf("aggregate = %v, want 7", got)
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := &Snapshot{Component: Component{Name: "lodash", Version: "4.17.20", Ecosystem: "npm"}}
	b := &Snapshot{Component: Component{Name: "lodash", Version: "4.17.20", Ecosystem: "npm"}}
	c := &Snapshot{Component: Component{Name: "lodash", Version: "4.17.21", Ecosystem: "npm"}}

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical coordinates must fingerprint identically")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different versions must fingerprint differently")
	}

	// Facts beyond identity do not affect the fingerprint.
	b.Vulnerabilities = sampleSnapshot().Vulnerabilities
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint must depend only on component coordinates")
	}
}
