// Package history provides file-based historical guardrail run storage.
// Historical data enables trend analysis, regression detection, and
// comparison across repeated runs of the same suite.
//
// Data is stored in JSON format for portability and simplicity.
// For high-volume production use, consider upgrading to a database backend.
package history

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/depgate/depgate/pkg/jsonutil"
)

// Store manages historical run data using JSON file storage.
type Store struct {
	mu       sync.RWMutex
	basePath string
	index    *storeIndex
}

// storeIndex tracks all stored runs for quick lookup.
type storeIndex struct {
	Runs map[string]*RunRecord `json:"runs"`
}

// RunRecord represents a stored guardrail run result.
type RunRecord struct {
	// ID is the unique run identifier
	ID string `json:"id"`

	// Timestamp is when the run was executed
	Timestamp time.Time `json:"timestamp"`

	// Suite is the guardrail suite name
	Suite string `json:"suite"`

	// SuiteFingerprint identifies the exact suite revision that ran
	SuiteFingerprint string `json:"suite_fingerprint,omitempty"`

	// Grade is the overall risk grade (A+ to F)
	Grade string `json:"grade"`

	// RiskScore is the weighted risk score (0-100, higher is worse)
	RiskScore float64 `json:"risk_score"`

	// CleanRatePct is the percentage of evaluations that passed
	CleanRatePct float64 `json:"clean_rate_pct"`

	// ViolationCount is the number of guardrail violations found
	ViolationCount int `json:"violation_count"`

	// ErrorCount is the number of evaluation errors
	ErrorCount int `json:"error_count"`

	// TotalEvaluations is the total number of rule evaluations executed
	TotalEvaluations int `json:"total_evaluations"`

	// Components is the number of components evaluated
	Components int `json:"components"`

	// PassedEvaluations is the number of evaluations that passed
	PassedEvaluations int `json:"passed_evaluations"`

	// Duration is the run duration in milliseconds
	Duration int64 `json:"duration"`

	// P50EvalMs is the median evaluation latency
	P50EvalMs int `json:"p50_eval_ms"`

	// P95EvalMs is the 95th percentile evaluation latency
	P95EvalMs int `json:"p95_eval_ms"`

	// CheckCleanRates maps check type to clean rate
	CheckCleanRates map[string]float64 `json:"check_clean_rates"`

	// Version is the depgate version used
	Version string `json:"version"`

	// Tags are user-defined labels
	Tags []string `json:"tags"`

	// Notes are optional run notes
	Notes string `json:"notes"`
}

// TrendPoint represents a single data point for trend visualization.
type TrendPoint struct {
	Timestamp      time.Time `json:"timestamp"`
	Grade          string    `json:"grade"`
	CleanRatePct   float64   `json:"clean_rate_pct"`
	ViolationCount int       `json:"violation_count"`
}

// CheckTrend represents clean rate per check type over time.
type CheckTrend struct {
	CheckType string       `json:"check_type"`
	Points    []TrendPoint `json:"points"`
}

// ComparisonResult represents the difference between two runs.
type ComparisonResult struct {
	BaseID           string             `json:"base_id"`
	CompareID        string             `json:"compare_id"`
	BaseTimestamp    time.Time          `json:"base_timestamp"`
	CompareTimestamp time.Time          `json:"compare_timestamp"`
	GradeChange      int                `json:"grade_change"`
	CleanRateDelta   float64            `json:"clean_rate_delta"`
	ViolationDelta   int                `json:"violation_delta"`
	ErrorDelta       int                `json:"error_delta"`
	CheckDeltas      map[string]float64 `json:"check_deltas"`
	Improved         bool               `json:"improved"`
}

// StoreStats contains storage statistics.
type StoreStats struct {
	TotalRuns        int       `json:"total_runs"`
	UniqueSuites     int       `json:"unique_suites"`
	OldestRun        time.Time `json:"oldest_run"`
	NewestRun        time.Time `json:"newest_run"`
	StorageSizeBytes int64     `json:"storage_size_bytes"`
}

// NewStore creates a new history store at the specified directory.
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, err
	}

	store := &Store{
		basePath: basePath,
		index: &storeIndex{
			Runs: make(map[string]*RunRecord),
		},
	}

	// Load existing index if present
	if err := store.loadIndex(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return store, nil
}

// indexPath returns the path to the store index file.
func (s *Store) indexPath() string {
	return filepath.Join(s.basePath, "index.json")
}

// loadIndex loads the store index from disk.
func (s *Store) loadIndex() error {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return err
	}
	return jsonutil.Unmarshal(data, s.index)
}

// saveIndex persists the store index to disk using atomic write.
// Writes to a temporary file first, then renames to prevent corruption.
func (s *Store) saveIndex() error {
	data, err := jsonutil.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.indexPath()); err != nil {
		os.Remove(tmpPath) // Clean up orphaned temp file
		return err
	}
	return nil
}

// Save stores a run record.
func (s *Store) Save(record *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index.Runs[record.ID] = record
	return s.saveIndex()
}

// copyRunRecord creates a deep copy of a RunRecord.
func copyRunRecord(r *RunRecord) *RunRecord {
	c := *r
	if r.CheckCleanRates != nil {
		c.CheckCleanRates = make(map[string]float64, len(r.CheckCleanRates))
		for k, v := range r.CheckCleanRates {
			c.CheckCleanRates[k] = v
		}
	}
	if r.Tags != nil {
		c.Tags = make([]string, len(r.Tags))
		copy(c.Tags, r.Tags)
	}
	return &c
}

// Get retrieves a run record by ID.
func (s *Store) Get(id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.index.Runs[id]
	if !ok {
		return nil, errors.New("run not found")
	}
	return copyRunRecord(record), nil
}

// List retrieves run records for a suite within a time range.
func (s *Store) List(suite string, since, until time.Time, limit int) ([]*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*RunRecord
	for _, record := range s.index.Runs {
		if suite != "" && record.Suite != suite {
			continue
		}
		if record.Timestamp.Before(since) || record.Timestamp.After(until) {
			continue
		}
		records = append(records, copyRunRecord(record))
	}

	// Sort by timestamp descending
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	// Apply limit
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// GetTrend retrieves trend data for a suite over time.
func (s *Store) GetTrend(suite string, since time.Time, maxPoints int) ([]TrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var points []TrendPoint
	for _, record := range s.index.Runs {
		if suite != "" && record.Suite != suite {
			continue
		}
		if record.Timestamp.Before(since) {
			continue
		}
		points = append(points, TrendPoint{
			Timestamp:      record.Timestamp,
			Grade:          record.Grade,
			CleanRatePct:   record.CleanRatePct,
			ViolationCount: record.ViolationCount,
		})
	}

	// Sort by timestamp ascending
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	// Apply limit
	if maxPoints > 0 && len(points) > maxPoints {
		points = points[:maxPoints]
	}

	return points, nil
}

// GetCheckTrends retrieves per-check-type trends.
func (s *Store) GetCheckTrends(suite string, since time.Time, checkTypes []string) ([]CheckTrend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trends := make([]CheckTrend, len(checkTypes))
	for i, ct := range checkTypes {
		trends[i] = CheckTrend{
			CheckType: ct,
			Points:    []TrendPoint{},
		}
	}

	// Get matching runs
	for _, record := range s.index.Runs {
		if suite != "" && record.Suite != suite {
			continue
		}
		if record.Timestamp.Before(since) {
			continue
		}

		for i, ct := range checkTypes {
			if rate, ok := record.CheckCleanRates[ct]; ok {
				trends[i].Points = append(trends[i].Points, TrendPoint{
					Timestamp:    record.Timestamp,
					CleanRatePct: rate,
				})
			}
		}
	}

	// Sort each check type's points
	for i := range trends {
		sort.Slice(trends[i].Points, func(a, b int) bool {
			return trends[i].Points[a].Timestamp.Before(trends[i].Points[b].Timestamp)
		})
	}

	return trends, nil
}

// Compare compares two run records and returns the delta.
func (s *Store) Compare(baseID, compareID string) (*ComparisonResult, error) {
	base, err := s.Get(baseID)
	if err != nil {
		return nil, err
	}

	compare, err := s.Get(compareID)
	if err != nil {
		return nil, err
	}

	result := &ComparisonResult{
		BaseID:           baseID,
		CompareID:        compareID,
		BaseTimestamp:    base.Timestamp,
		CompareTimestamp: compare.Timestamp,
		GradeChange:      gradeValue(compare.Grade) - gradeValue(base.Grade),
		CleanRateDelta:   compare.CleanRatePct - base.CleanRatePct,
		ViolationDelta:   compare.ViolationCount - base.ViolationCount,
		ErrorDelta:       compare.ErrorCount - base.ErrorCount,
		CheckDeltas:      make(map[string]float64),
	}

	// Calculate per-check deltas
	for ct, baseRate := range base.CheckCleanRates {
		if compareRate, ok := compare.CheckCleanRates[ct]; ok {
			result.CheckDeltas[ct] = compareRate - baseRate
		}
	}

	// Determine if this is an improvement
	result.Improved = result.ViolationDelta < 0 ||
		(result.ViolationDelta == 0 && result.CleanRateDelta > 0)

	return result, nil
}

// gradeValue converts a grade to a numeric value for comparison.
func gradeValue(grade string) int {
	values := map[string]int{
		"A+": 12, "A": 11, "A-": 10,
		"B+": 9, "B": 8, "B-": 7,
		"C+": 6, "C": 5, "C-": 4,
		"D+": 3, "D": 2, "D-": 1,
		"F": 0,
	}
	if v, ok := values[grade]; ok {
		return v
	}
	return 0
}

// Delete removes a run record.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index.Runs[id]; !ok {
		return errors.New("run not found")
	}

	delete(s.index.Runs, id)
	return s.saveIndex()
}

// Prune removes run records older than the specified duration.
func (s *Store) Prune(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	count := 0

	for id, record := range s.index.Runs {
		if record.Timestamp.Before(cutoff) {
			delete(s.index.Runs, id)
			count++
		}
	}

	if count > 0 {
		if err := s.saveIndex(); err != nil {
			return count, err
		}
	}

	return count, nil
}

// Stats returns storage statistics.
func (s *Store) Stats() (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &StoreStats{
		TotalRuns: len(s.index.Runs),
	}

	suites := make(map[string]bool)
	for _, record := range s.index.Runs {
		suites[record.Suite] = true
		if stats.OldestRun.IsZero() || record.Timestamp.Before(stats.OldestRun) {
			stats.OldestRun = record.Timestamp
		}
		if record.Timestamp.After(stats.NewestRun) {
			stats.NewestRun = record.Timestamp
		}
	}
	stats.UniqueSuites = len(suites)

	// Get storage size
	info, err := os.Stat(s.indexPath())
	if err == nil {
		stats.StorageSizeBytes = info.Size()
	}

	return stats, nil
}

// Close closes the store (no-op for file-based storage).
func (s *Store) Close() error {
	return nil
}

// ListAll returns all run records, sorted by timestamp descending.
func (s *Store) ListAll(limit int) ([]*RunRecord, error) {
	return s.List("", time.Time{}, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC), limit)
}

// GetLatest returns the most recent run for a suite.
func (s *Store) GetLatest(suite string) (*RunRecord, error) {
	records, err := s.List(suite, time.Time{}, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC), 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("no runs recorded for suite")
	}
	return records[0], nil
}
