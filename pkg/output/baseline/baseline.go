package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/depgate/depgate/pkg/jsonutil"
	"github.com/depgate/depgate/pkg/output/events"
)

// ErrBaselineNotFound is returned when a baseline file does not exist.
var ErrBaselineNotFound = errors.New("baseline file not found")

// ErrInvalidBaseline is returned when a baseline file is malformed.
var ErrInvalidBaseline = errors.New("invalid baseline file")

// baselineVersion is the current baseline file format version.
const baselineVersion = "1.0"

// Baseline records known violations from a reference run.
type Baseline struct {
	Version    string           `json:"version"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	RunID      string           `json:"run_id,omitempty"`
	Suite      string           `json:"suite,omitempty"`
	Violations []ViolationEntry `json:"violations"`
	Summary    Summary          `json:"summary"`

	mu sync.RWMutex
}

// ViolationEntry identifies one known violation.
type ViolationEntry struct {
	// Rule is the name of the guardrail rule that triggered.
	Rule string `json:"rule"`

	// CheckType is the rule's check type, e.g. "vuln" or "scorecards".
	CheckType string `json:"check_type"`

	// Severity is the rule severity at the time the violation was recorded.
	Severity string `json:"severity"`

	// Key is the stable identity: a SHA256 over the rule name and the
	// component coordinates.
	Key string `json:"key"`

	// Component is the display coordinate, e.g. "npm/lodash@4.17.20".
	Component string `json:"component"`

	// FirstSeen is when this violation first appeared in a baseline.
	FirstSeen time.Time `json:"first_seen"`
}

// Summary carries aggregate metrics from the run that produced the baseline.
type Summary struct {
	TotalViolations int     `json:"total_violations"`
	CleanRate       float64 `json:"clean_rate"`
}

// ComparisonResult holds the outcome of comparing a run against a baseline.
type ComparisonResult struct {
	// NewViolations triggered in the current run but are not in the baseline.
	NewViolations []ViolationEntry `json:"new_violations"`

	// FixedViolations are in the baseline but did not trigger this run.
	FixedViolations []ViolationEntry `json:"fixed_violations"`

	// KnownViolations triggered this run and are already in the baseline.
	KnownViolations []ViolationEntry `json:"known_violations"`

	// HasNewViolations is true when NewViolations is non-empty.
	HasNewViolations bool `json:"has_new_violations"`

	// Summary is a human-readable one-line verdict.
	Summary string `json:"summary"`
}

// New returns an empty baseline with the current format version.
func New() *Baseline {
	now := time.Now().UTC()
	return &Baseline{
		Version:    baselineVersion,
		CreatedAt:  now,
		UpdatedAt:  now,
		Violations: make([]ViolationEntry, 0),
	}
}

// LoadBaseline reads and parses a baseline file.
// Returns ErrBaselineNotFound if the file does not exist and
// ErrInvalidBaseline if it cannot be parsed.
func LoadBaseline(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBaselineNotFound, path)
		}
		return nil, fmt.Errorf("reading baseline file: %w", err)
	}

	var b Baseline
	if err := jsonutil.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseline, err)
	}

	if b.Version == "" {
		return nil, fmt.Errorf("%w: missing version field", ErrInvalidBaseline)
	}

	if b.Violations == nil {
		b.Violations = make([]ViolationEntry, 0)
	}

	return &b, nil
}

// SaveBaseline writes the baseline to path, updating its UpdatedAt stamp.
func (b *Baseline) SaveBaseline(path string) error {
	b.mu.Lock()
	b.UpdatedAt = time.Now().UTC()
	if b.Version == "" {
		b.Version = baselineVersion
	}
	b.mu.Unlock()

	b.mu.RLock()
	data, err := jsonutil.MarshalIndent(b, "", "  ")
	b.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshaling baseline: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing baseline file: %w", err)
	}

	return nil
}

// Compare diffs the current run's violations against the baseline.
// Entries are matched by Key, so ordering in either set is irrelevant.
func (b *Baseline) Compare(current []ViolationEntry) *ComparisonResult {
	b.mu.RLock()
	defer b.mu.RUnlock()

	known := make(map[string]ViolationEntry, len(b.Violations))
	for _, v := range b.Violations {
		known[v.Key] = v
	}

	seen := make(map[string]bool, len(current))

	result := &ComparisonResult{
		NewViolations:   make([]ViolationEntry, 0),
		FixedViolations: make([]ViolationEntry, 0),
		KnownViolations: make([]ViolationEntry, 0),
	}

	for _, v := range current {
		if seen[v.Key] {
			continue
		}
		seen[v.Key] = true

		if base, ok := known[v.Key]; ok {
			// Preserve the baseline's FirstSeen on matches.
			v.FirstSeen = base.FirstSeen
			result.KnownViolations = append(result.KnownViolations, v)
		} else {
			result.NewViolations = append(result.NewViolations, v)
		}
	}

	for _, v := range b.Violations {
		if !seen[v.Key] {
			result.FixedViolations = append(result.FixedViolations, v)
		}
	}

	result.HasNewViolations = len(result.NewViolations) > 0
	result.Summary = generateSummary(result)

	return result
}

// generateSummary produces the one-line comparison verdict.
func generateSummary(r *ComparisonResult) string {
	switch {
	case r.HasNewViolations:
		return fmt.Sprintf("REGRESSION: %d new violation(s) found (%d known, %d fixed)",
			len(r.NewViolations), len(r.KnownViolations), len(r.FixedViolations))
	case len(r.FixedViolations) > 0:
		return fmt.Sprintf("IMPROVED: %d violation(s) fixed (%d known remain)",
			len(r.FixedViolations), len(r.KnownViolations))
	case len(r.KnownViolations) > 0:
		return fmt.Sprintf("NO CHANGE: %d known violation(s) remain", len(r.KnownViolations))
	default:
		return "CLEAN: no violations against baseline"
	}
}

// CreateFromResults builds a baseline from evaluation events.
// Only triggered evaluations are recorded.
func CreateFromResults(results []*events.EvaluationEvent, runID, suite string) *Baseline {
	b := New()
	b.RunID = runID
	b.Suite = suite
	b.Violations = ExtractViolations(results)
	b.Summary = Summary{
		TotalViolations: len(b.Violations),
		CleanRate:       calculateCleanRate(results),
	}
	return b
}

// ExtractViolations converts triggered evaluations into baseline entries,
// deduplicated by key and sorted by check type, rule, then key.
func ExtractViolations(results []*events.EvaluationEvent) []ViolationEntry {
	entries := make([]ViolationEntry, 0)
	seen := make(map[string]bool)
	now := time.Now().UTC()

	for _, ev := range results {
		if ev == nil || ev.Result.Outcome != events.OutcomeTriggered {
			continue
		}

		key := ViolationKey(ev.Rule.Name, ev.Component.Ecosystem, ev.Component.Name, ev.Component.Version)
		if seen[key] {
			continue
		}
		seen[key] = true

		entries = append(entries, ViolationEntry{
			Rule:      ev.Rule.Name,
			CheckType: ev.Rule.CheckType,
			Severity:  string(ev.Rule.Severity),
			Key:       key,
			Component: ev.Component.Ref,
			FirstSeen: now,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CheckType != entries[j].CheckType {
			return entries[i].CheckType < entries[j].CheckType
		}
		if entries[i].Rule != entries[j].Rule {
			return entries[i].Rule < entries[j].Rule
		}
		return entries[i].Key < entries[j].Key
	})

	return entries
}

// ViolationKey derives the stable identity for a rule firing on a component.
// The version is part of the identity, so an upgrade produces a new key.
func ViolationKey(rule, ecosystem, name, version string) string {
	h := sha256.New()
	h.Write([]byte(rule))
	h.Write([]byte{0})
	h.Write([]byte(ecosystem))
	h.Write([]byte{0})
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(version))
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// calculateCleanRate returns the percentage of conclusive evaluations that
// passed. Errors and skips are excluded from the denominator.
func calculateCleanRate(results []*events.EvaluationEvent) float64 {
	var passes, violations int
	for _, ev := range results {
		if ev == nil {
			continue
		}
		switch ev.Result.Outcome {
		case events.OutcomePass:
			passes++
		case events.OutcomeTriggered:
			violations++
		}
	}

	total := passes + violations
	if total == 0 {
		return 100.0
	}
	return float64(passes) / float64(total) * 100.0
}

// AddViolation appends an entry if its key is not already present.
// A zero FirstSeen is stamped with the current time.
func (b *Baseline) AddViolation(entry ViolationEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, v := range b.Violations {
		if v.Key == entry.Key {
			return
		}
	}

	if entry.FirstSeen.IsZero() {
		entry.FirstSeen = time.Now().UTC()
	}

	b.Violations = append(b.Violations, entry)
	b.UpdatedAt = time.Now().UTC()
	b.Summary.TotalViolations = len(b.Violations)
}

// RemoveViolation deletes the entry with the given key.
// Returns true if an entry was removed.
func (b *Baseline) RemoveViolation(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, v := range b.Violations {
		if v.Key == key {
			b.Violations = append(b.Violations[:i], b.Violations[i+1:]...)
			b.UpdatedAt = time.Now().UTC()
			b.Summary.TotalViolations = len(b.Violations)
			return true
		}
	}
	return false
}

// GetViolation looks up an entry by key.
func (b *Baseline) GetViolation(key string) (ViolationEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, v := range b.Violations {
		if v.Key == key {
			return v, true
		}
	}
	return ViolationEntry{}, false
}

// Len returns the number of recorded violations.
func (b *Baseline) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.Violations)
}

// Merge adds entries from other that are not already present.
// Existing entries keep their FirstSeen stamps.
func (b *Baseline) Merge(other *Baseline) {
	if other == nil {
		return
	}

	other.mu.RLock()
	incoming := make([]ViolationEntry, len(other.Violations))
	copy(incoming, other.Violations)
	other.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	known := make(map[string]bool, len(b.Violations))
	for _, v := range b.Violations {
		known[v.Key] = true
	}

	added := false
	for _, v := range incoming {
		if known[v.Key] {
			continue
		}
		known[v.Key] = true
		b.Violations = append(b.Violations, v)
		added = true
	}

	if added {
		b.UpdatedAt = time.Now().UTC()
		b.Summary.TotalViolations = len(b.Violations)
	}
}
