package output

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/output/events"
)

// =============================================================================
// Test Fixtures
// =============================================================================

func dispatchRunLifecycle(t *testing.T, cfg Config) {
	t.Helper()

	d, err := BuildDispatcher(cfg)
	if err != nil {
		t.Fatalf("BuildDispatcher failed: %v", err)
	}

	ctx := context.Background()
	now := time.Now()

	start := &events.StartEvent{
		BaseEvent:       events.BaseEvent{Type: events.EventTypeStart, Time: now, Run: "test-run-123"},
		Suite:           "org-guardrails",
		TotalRules:      2,
		TotalComponents: 1,
	}
	if err := d.Dispatch(ctx, start); err != nil {
		t.Fatalf("dispatch start: %v", err)
	}

	eval := &events.EvaluationEvent{
		BaseEvent: events.BaseEvent{Type: events.EventTypeEvaluation, Time: now, Run: "test-run-123"},
		Rule: events.RuleInfo{
			Name:      "no-critical-vulns",
			CheckType: "vuln",
			Severity:  events.SeverityCritical,
		},
		Component: events.ComponentInfo{
			Name:      "lodash",
			Version:   "4.17.20",
			Ecosystem: "npm",
			Ref:       "npm/lodash@4.17.20",
		},
		Result: events.ResultInfo{Outcome: events.OutcomeTriggered, DurationMs: 1.5},
	}
	if err := d.Dispatch(ctx, eval); err != nil {
		t.Fatalf("dispatch evaluation: %v", err)
	}

	summary := &events.SummaryEvent{
		BaseEvent: events.BaseEvent{Type: events.EventTypeSummary, Time: now, Run: "test-run-123"},
		Version:   defaults.Version,
		Suite:     events.SummarySuite{Name: "org-guardrails", Rules: 2},
		Totals:    events.SummaryTotals{Components: 1, Evaluations: 2, Violations: 1, Passes: 1},
	}
	if err := d.Dispatch(ctx, summary); err != nil {
		t.Fatalf("dispatch summary: %v", err)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("close dispatcher: %v", err)
	}
}

// =============================================================================
// BuildDispatcher
// =============================================================================

func TestBuildDispatcher_Default(t *testing.T) {
	d, err := BuildDispatcher(Config{Silent: true})
	if err != nil {
		t.Fatalf("BuildDispatcher failed: %v", err)
	}
	if d == nil {
		t.Fatal("dispatcher should not be nil")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestBuildDispatcher_FileExports(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		JSONExport:  filepath.Join(dir, "out.json"),
		JSONLExport: filepath.Join(dir, "out.jsonl"),
		SARIFExport: filepath.Join(dir, "out.sarif"),
		JUnitExport: filepath.Join(dir, "junit.xml"),
		MDExport:    filepath.Join(dir, "report.md"),
		Silent:      true,
	}

	dispatchRunLifecycle(t, cfg)

	for _, path := range []string{cfg.JSONExport, cfg.JSONLExport, cfg.SARIFExport, cfg.JUnitExport, cfg.MDExport} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("export %s not created: %v", path, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("export %s is empty", path)
		}
	}
}

func TestBuildDispatcher_SARIFContainsViolation(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		SARIFExport: filepath.Join(dir, "out.sarif"),
		Silent:      true,
	}

	dispatchRunLifecycle(t, cfg)

	content, err := os.ReadFile(cfg.SARIFExport)
	if err != nil {
		t.Fatalf("read SARIF: %v", err)
	}
	if !strings.Contains(string(content), "no-critical-vulns") {
		t.Error("SARIF output should contain the triggered rule id")
	}
	if !strings.Contains(string(content), defaults.ToolName) {
		t.Error("SARIF output should contain the tool name")
	}
}

func TestBuildDispatcher_InvalidExportPath(t *testing.T) {
	cfg := Config{
		JSONExport: filepath.Join(t.TempDir(), "no-such-dir", "out.json"),
		Silent:     true,
	}

	if _, err := BuildDispatcher(cfg); err == nil {
		t.Fatal("expected error for unwritable export path")
	}
}

func TestBuildDispatcher_TemplateBuiltin(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		TemplateBuiltin: "summary",
		TemplateExport:  filepath.Join(dir, "summary.txt"),
		Silent:          true,
	}

	dispatchRunLifecycle(t, cfg)

	info, err := os.Stat(cfg.TemplateExport)
	if err != nil {
		t.Fatalf("template export not created: %v", err)
	}
	if info.Size() == 0 {
		t.Error("template export is empty")
	}
}

func TestBuildDispatcher_UnknownTemplateBuiltin(t *testing.T) {
	cfg := Config{
		TemplateBuiltin: "does-not-exist",
		Silent:          true,
	}

	if _, err := BuildDispatcher(cfg); err == nil {
		t.Fatal("expected error for unknown template builtin")
	}
}

func TestBuildDispatcher_UnknownTemplateCleansUpFiles(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "out.json")
	cfg := Config{
		JSONExport:      jsonPath,
		TemplateBuiltin: "does-not-exist",
		Silent:          true,
	}

	if _, err := BuildDispatcher(cfg); err == nil {
		t.Fatal("expected error for unknown template builtin")
	}

	// The JSON file was created before the failure; it must be closed so
	// the caller can retry or remove it.
	if err := os.Remove(jsonPath); err != nil {
		t.Errorf("opened export should be closed and removable: %v", err)
	}
}

func TestBuildDispatcher_HistoryHook(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		HistoryPath: filepath.Join(dir, "history"),
		HistoryTags: []string{"ci"},
		Silent:      true,
	}

	dispatchRunLifecycle(t, cfg)

	// The history hook stores run records under the configured path.
	entries, err := os.ReadDir(cfg.HistoryPath)
	if err != nil {
		t.Fatalf("history dir not created: %v", err)
	}
	if len(entries) == 0 {
		t.Error("history dir should contain stored records after a summary")
	}
}

func TestBuildDispatcher_JSONMode(t *testing.T) {
	d, err := BuildDispatcher(Config{JSONMode: true})
	if err != nil {
		t.Fatalf("BuildDispatcher failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestBuildDispatcher_PDFExport(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		PDFExport: filepath.Join(dir, "report.pdf"),
		Silent:    true,
	}

	dispatchRunLifecycle(t, cfg)

	content, err := os.ReadFile(cfg.PDFExport)
	if err != nil {
		t.Fatalf("PDF export not created: %v", err)
	}
	if !strings.HasPrefix(string(content), "%PDF") {
		t.Error("PDF export should start with the PDF magic bytes")
	}
}
