package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestRecord(id, suite string, ts time.Time, violations int) *RunRecord {
	return &RunRecord{
		ID:               id,
		Timestamp:        ts,
		Suite:            suite,
		SuiteFingerprint: "sha256:abc123",
		Grade:            "B",
		RiskScore:        28.5,
		CleanRatePct:     96.0,
		ViolationCount:   violations,
		ErrorCount:       1,
		TotalEvaluations: 120,
		Components:       10,
		PassedEvaluations: 120 - violations - 1,
		Duration:         12500,
		P50EvalMs:        3,
		P95EvalMs:        9,
		CheckCleanRates: map[string]float64{
			"vuln":       95.0,
			"scorecards": 100.0,
		},
		Version: "1.4.2",
		Tags:    []string{"ci"},
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	record := newTestRecord("run-001", "org-guardrails", ts, 5)
	if err := store.Save(record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get("run-001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Suite != "org-guardrails" {
		t.Errorf("expected suite 'org-guardrails', got %q", got.Suite)
	}
	if got.ViolationCount != 5 {
		t.Errorf("expected 5 violations, got %d", got.ViolationCount)
	}
	if got.Grade != "B" {
		t.Errorf("expected grade B, got %q", got.Grade)
	}
	if got.CheckCleanRates["vuln"] != 95.0 {
		t.Errorf("expected vuln clean rate 95.0, got %f", got.CheckCleanRates["vuln"])
	}

	if _, err := store.Get("nonexistent"); err == nil {
		t.Error("expected error for unknown run ID")
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	if err := store.Save(newTestRecord("run-001", "org-guardrails", ts, 5)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	first, err := store.Get("run-001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	first.CheckCleanRates["vuln"] = 0.0
	first.Tags[0] = "mutated"

	second, err := store.Get("run-001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if second.CheckCleanRates["vuln"] != 95.0 {
		t.Error("mutation of returned record leaked into the store")
	}
	if second.Tags[0] != "ci" {
		t.Error("mutation of returned tags leaked into the store")
	}
}

func TestStore_ListFiltersBySuite(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	records := []*RunRecord{
		newTestRecord("run-001", "suite-a", base, 5),
		newTestRecord("run-002", "suite-a", base.Add(time.Hour), 3),
		newTestRecord("run-003", "suite-b", base.Add(2*time.Hour), 1),
	}
	for _, r := range records {
		if err := store.Save(r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	got, err := store.List("suite-a", time.Time{}, base.Add(24*time.Hour), 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records for suite-a, got %d", len(got))
	}

	// Sorted newest first
	if got[0].ID != "run-002" || got[1].ID != "run-001" {
		t.Errorf("expected [run-002 run-001], got [%s %s]", got[0].ID, got[1].ID)
	}

	// Limit applies after sorting
	limited, err := store.List("suite-a", time.Time{}, base.Add(24*time.Hour), 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "run-002" {
		t.Errorf("expected limit to keep newest record, got %v", limited)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	if err := store.Save(newTestRecord("run-001", "org-guardrails", ts, 5)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore on existing path failed: %v", err)
	}
	got, err := reopened.Get("run-001")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got.Suite != "org-guardrails" || got.ViolationCount != 5 {
		t.Errorf("reloaded record does not match saved record: %+v", got)
	}
}

func TestStore_CorruptIndexFails(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := NewStore(dir); err == nil {
		t.Error("expected error for corrupt index file")
	}
}

func TestStore_GetTrend(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, violations := range []int{10, 5, 0} {
		r := newTestRecord("run-00"+string(rune('1'+i)), "org-guardrails", base.Add(time.Duration(i)*time.Hour), violations)
		if err := store.Save(r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	points, err := store.GetTrend("org-guardrails", time.Time{}, 0)
	if err != nil {
		t.Fatalf("GetTrend failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 trend points, got %d", len(points))
	}

	// Oldest first
	if points[0].ViolationCount != 10 || points[2].ViolationCount != 0 {
		t.Errorf("trend points out of order: %+v", points)
	}

	// Since filter excludes older points
	recent, err := store.GetTrend("org-guardrails", base.Add(90*time.Minute), 0)
	if err != nil {
		t.Fatalf("GetTrend failed: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("expected 1 recent point, got %d", len(recent))
	}

	// maxPoints caps the result
	capped, err := store.GetTrend("org-guardrails", time.Time{}, 2)
	if err != nil {
		t.Fatalf("GetTrend failed: %v", err)
	}
	if len(capped) != 2 {
		t.Errorf("expected 2 capped points, got %d", len(capped))
	}
}

func TestStore_GetCheckTrends(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	first := newTestRecord("run-001", "org-guardrails", base, 5)
	first.CheckCleanRates = map[string]float64{"vuln": 90.0}
	second := newTestRecord("run-002", "org-guardrails", base.Add(time.Hour), 2)
	second.CheckCleanRates = map[string]float64{"vuln": 96.0, "license": 100.0}
	for _, r := range []*RunRecord{first, second} {
		if err := store.Save(r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	trends, err := store.GetCheckTrends("org-guardrails", time.Time{}, []string{"vuln", "license"})
	if err != nil {
		t.Fatalf("GetCheckTrends failed: %v", err)
	}
	if len(trends) != 2 {
		t.Fatalf("expected 2 check trends, got %d", len(trends))
	}

	if trends[0].CheckType != "vuln" || len(trends[0].Points) != 2 {
		t.Errorf("expected 2 vuln points, got %+v", trends[0])
	}
	if trends[0].Points[0].CleanRatePct != 90.0 || trends[0].Points[1].CleanRatePct != 96.0 {
		t.Errorf("vuln trend points out of order: %+v", trends[0].Points)
	}
	if trends[1].CheckType != "license" || len(trends[1].Points) != 1 {
		t.Errorf("expected 1 license point, got %+v", trends[1])
	}
}

func TestStore_Compare(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	older := newTestRecord("run-001", "org-guardrails", base, 5)
	older.Grade = "C"
	older.CleanRatePct = 90.0
	older.CheckCleanRates = map[string]float64{"vuln": 88.0}

	newer := newTestRecord("run-002", "org-guardrails", base.Add(time.Hour), 2)
	newer.Grade = "B"
	newer.CleanRatePct = 96.0
	newer.CheckCleanRates = map[string]float64{"vuln": 95.0}

	for _, r := range []*RunRecord{older, newer} {
		if err := store.Save(r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	result, err := store.Compare("run-001", "run-002")
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if result.ViolationDelta != -3 {
		t.Errorf("expected violation delta -3, got %d", result.ViolationDelta)
	}
	if result.CleanRateDelta != 6.0 {
		t.Errorf("expected clean rate delta 6.0, got %f", result.CleanRateDelta)
	}
	if result.GradeChange != 3 {
		t.Errorf("expected grade change 3 (C to B), got %d", result.GradeChange)
	}
	if result.CheckDeltas["vuln"] != 7.0 {
		t.Errorf("expected vuln delta 7.0, got %f", result.CheckDeltas["vuln"])
	}
	if !result.Improved {
		t.Error("expected comparison to report improvement")
	}

	// Reverse direction is a regression
	reverse, err := store.Compare("run-002", "run-001")
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if reverse.Improved {
		t.Error("expected reverse comparison to report regression")
	}

	if _, err := store.Compare("run-001", "nonexistent"); err == nil {
		t.Error("expected error for unknown compare ID")
	}
}

func TestGradeValue(t *testing.T) {
	tests := []struct {
		grade string
		want  int
	}{
		{"A+", 12},
		{"A", 11},
		{"B", 8},
		{"F", 0},
		{"unknown", 0},
	}

	for _, tt := range tests {
		if got := gradeValue(tt.grade); got != tt.want {
			t.Errorf("gradeValue(%q) = %d, want %d", tt.grade, got, tt.want)
		}
	}
}

func TestStore_Delete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	if err := store.Save(newTestRecord("run-001", "org-guardrails", ts, 5)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Delete("run-001"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get("run-001"); err == nil {
		t.Error("expected Get to fail after Delete")
	}

	if err := store.Delete("nonexistent"); err == nil {
		t.Error("expected error deleting unknown run")
	}
}

func TestStore_Prune(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	old := newTestRecord("run-old", "org-guardrails", time.Now().Add(-48*time.Hour), 5)
	recent := newTestRecord("run-new", "org-guardrails", time.Now(), 2)
	for _, r := range []*RunRecord{old, recent} {
		if err := store.Save(r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	count, err := store.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 pruned record, got %d", count)
	}

	if _, err := store.Get("run-old"); err == nil {
		t.Error("expected old record to be pruned")
	}
	if _, err := store.Get("run-new"); err != nil {
		t.Errorf("recent record should survive pruning: %v", err)
	}
}

func TestStore_Stats(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	records := []*RunRecord{
		newTestRecord("run-001", "suite-a", base, 5),
		newTestRecord("run-002", "suite-b", base.Add(time.Hour), 3),
		newTestRecord("run-003", "suite-a", base.Add(2*time.Hour), 1),
	}
	for _, r := range records {
		if err := store.Save(r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalRuns != 3 {
		t.Errorf("expected 3 total runs, got %d", stats.TotalRuns)
	}
	if stats.UniqueSuites != 2 {
		t.Errorf("expected 2 unique suites, got %d", stats.UniqueSuites)
	}
	if !stats.OldestRun.Equal(base) {
		t.Errorf("expected oldest run %v, got %v", base, stats.OldestRun)
	}
	if !stats.NewestRun.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("expected newest run %v, got %v", base.Add(2*time.Hour), stats.NewestRun)
	}
	if stats.StorageSizeBytes == 0 {
		t.Error("expected nonzero storage size")
	}
}

func TestStore_ListAllAndGetLatest(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		r := newTestRecord("run-00"+string(rune('1'+i)), "org-guardrails", base.Add(time.Duration(i)*time.Hour), i)
		if err := store.Save(r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	all, err := store.ListAll(0)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 records, got %d", len(all))
	}

	latest, err := store.GetLatest("org-guardrails")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.ID != "run-003" {
		t.Errorf("expected latest run-003, got %s", latest.ID)
	}

	if _, err := store.GetLatest("empty-suite"); err == nil {
		t.Error("expected error for suite with no runs")
	}
}
