package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depgate/depgate/pkg/history"
	"github.com/depgate/depgate/pkg/jsonutil"
	"github.com/depgate/depgate/pkg/output/baseline"
)

const sampleSuite = `name: test-guardrails
description: guardrails used by the command tests
filters:
  - name: vuln-critical
    check_type: vuln
    summary: No critical vulnerabilities
    value: vulns.critical.exists(v, true)
    severity: critical
  - name: scorecard-maintained
    check_type: scorecard
    summary: Maintained score above floor
    value: scorecard.scores["Maintained"] < 3
    severity: medium
`

func writeSuite(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(sampleSuite), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.False(t, config.Verbose)
	assert.Equal(t, "text", config.Format)
}

func TestCollectSuiteFiles_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, "security.yaml")

	files, err := CollectSuiteFiles([]string{path})
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestCollectSuiteFiles_Directory(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "b.yaml")
	writeSuite(t, dir, "a.yml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	files, err := CollectSuiteFiles([]string{dir})
	require.NoError(t, err)
	require.Len(t, files, 2)
	// Sorted, non-YAML skipped
	assert.Equal(t, filepath.Join(dir, "a.yml"), files[0])
	assert.Equal(t, filepath.Join(dir, "b.yaml"), files[1])
}

func TestCollectSuiteFiles_Missing(t *testing.T) {
	_, err := CollectSuiteFiles([]string{"/nonexistent/suites"})
	assert.Error(t, err)
}

func TestRunRules_Text(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, "security.yaml")

	var buf bytes.Buffer
	err := RunRules(DefaultConfig(), []string{path}, &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "vuln-critical")
	assert.Contains(t, out, "scorecard-maintained")
	assert.Contains(t, out, "2 rules across 1 suite file(s)")
}

func TestRunRules_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, "security.yaml")

	cfg := &Config{Format: "json"}
	var buf bytes.Buffer
	err := RunRules(cfg, []string{path}, &buf)
	require.NoError(t, err)

	var listings []RuleListing
	require.NoError(t, jsonutil.Unmarshal(buf.Bytes(), &listings))
	require.Len(t, listings, 2)
	assert.Equal(t, "test-guardrails", listings[0].Suite)
	assert.Equal(t, "vuln-critical", listings[0].Name)
	assert.Equal(t, "vuln", listings[0].CheckType)
	assert.Equal(t, "critical", listings[0].Severity)
}

func TestRunRules_Verbose(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, "security.yaml")

	cfg := &Config{Verbose: true}
	var buf bytes.Buffer
	require.NoError(t, RunRules(cfg, []string{path}, &buf))
	assert.Contains(t, buf.String(), "No critical vulnerabilities")
}

func TestRunRules_NoSuites(t *testing.T) {
	var buf bytes.Buffer
	err := RunRules(DefaultConfig(), []string{t.TempDir()}, &buf)
	assert.Error(t, err)
}

func TestRunLint_Valid(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "security.yaml")

	var buf bytes.Buffer
	result, err := RunLint(DefaultConfig(), dir, false, &buf)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.TotalRules)
}

func seedHistory(t *testing.T, dir string) *history.RunRecord {
	t.Helper()
	store, err := history.NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	rec := &history.RunRecord{
		ID:               "run-001",
		Timestamp:        time.Now().Add(-time.Hour),
		Suite:            "test-guardrails",
		Grade:            "B",
		CleanRatePct:     92.5,
		ViolationCount:   3,
		TotalEvaluations: 40,
	}
	require.NoError(t, store.Save(rec))
	return rec
}

func TestRunHistoryList(t *testing.T) {
	dir := t.TempDir()
	seedHistory(t, dir)

	var buf bytes.Buffer
	err := RunHistoryList(DefaultConfig(), dir, "", 10, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "run-001")
	assert.Contains(t, buf.String(), "test-guardrails")
}

func TestRunHistoryList_Empty(t *testing.T) {
	var buf bytes.Buffer
	err := RunHistoryList(DefaultConfig(), t.TempDir(), "", 10, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "no stored runs")
}

func TestRunHistoryTrend(t *testing.T) {
	dir := t.TempDir()
	seedHistory(t, dir)

	var buf bytes.Buffer
	err := RunHistoryTrend(DefaultConfig(), dir, "test-guardrails", 24*time.Hour, 30, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "violations=3")
}

func TestRunHistoryTrend_RequiresSuite(t *testing.T) {
	var buf bytes.Buffer
	err := RunHistoryTrend(DefaultConfig(), t.TempDir(), "", time.Hour, 30, &buf)
	assert.Error(t, err)
}

func TestRunHistoryStats(t *testing.T) {
	dir := t.TempDir()
	seedHistory(t, dir)

	var buf bytes.Buffer
	err := RunHistoryStats(DefaultConfig(), dir, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "runs:    1")
}

func TestRunHistoryPrune(t *testing.T) {
	dir := t.TempDir()
	seedHistory(t, dir)

	var buf bytes.Buffer
	err := RunHistoryPrune(DefaultConfig(), dir, time.Minute, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "pruned 1 run(s)")
}

func writeBaseline(t *testing.T, dir string) string {
	t.Helper()
	b := baseline.New()
	b.Suite = "test-guardrails"
	b.AddViolation(baseline.ViolationEntry{
		Rule:      "vuln-critical",
		CheckType: "vuln",
		Severity:  "critical",
		Key:       baseline.ViolationKey("vuln-critical", "npm", "lodash", "4.17.20"),
		Component: "npm/lodash@4.17.20",
	})
	path := filepath.Join(dir, "baseline.json")
	require.NoError(t, b.SaveBaseline(path))
	return path
}

func TestRunBaselineShow(t *testing.T) {
	dir := t.TempDir()
	path := writeBaseline(t, dir)

	var buf bytes.Buffer
	err := RunBaselineShow(DefaultConfig(), path, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "1 known violation(s)")
	assert.Contains(t, buf.String(), "npm/lodash@4.17.20")
}

func TestRunBaselineDiff_NoNewViolations(t *testing.T) {
	dir := t.TempDir()
	basePath := writeBaseline(t, dir)

	// Empty results: the known violation reads as fixed.
	resultsPath := filepath.Join(dir, "results.json")
	require.NoError(t, os.WriteFile(resultsPath, []byte("[]"), 0o644))

	var buf bytes.Buffer
	comp, err := RunBaselineDiff(DefaultConfig(), basePath, resultsPath, &buf)
	require.NoError(t, err)
	require.NotNil(t, comp)
	assert.False(t, comp.HasNewViolations)
	assert.Len(t, comp.FixedViolations, 1)
}

func TestRunBaselineDiff_BadResults(t *testing.T) {
	dir := t.TempDir()
	basePath := writeBaseline(t, dir)
	resultsPath := filepath.Join(dir, "results.json")
	require.NoError(t, os.WriteFile(resultsPath, []byte("{not json"), 0o644))

	var buf bytes.Buffer
	_, err := RunBaselineDiff(DefaultConfig(), basePath, resultsPath, &buf)
	assert.Error(t, err)
}
