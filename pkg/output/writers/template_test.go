package writers

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/depgate/depgate/pkg/output/events"
)

func renderTemplate(t *testing.T, opts TemplateOptions, evts ...events.Event) string {
	t.Helper()
	buf := &bytes.Buffer{}
	w, err := NewTemplateWriter(buf, opts)
	if err != nil {
		t.Fatalf("new template writer: %v", err)
	}
	for _, e := range evts {
		if err := w.Write(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.String()
}

func TestTemplateWriter_InlineSource(t *testing.T) {
	out := renderTemplate(t,
		TemplateOptions{Source: "{{.Tool}} v{{.Version}}: {{len .Findings}} finding(s)"},
		makeViolation("no-critical-vulns", "vuln", events.SeverityCritical),
	)

	if out != "DepGate v1.4.2: 1 finding(s)" {
		t.Errorf("unexpected render: %q", out)
	}
}

func TestTemplateWriter_BuiltinCSV(t *testing.T) {
	out := renderTemplate(t, TemplateOptions{Builtin: "csv"},
		makeViolation("no-critical-vulns", "vuln", events.SeverityCritical),
		makePass("license-allowlist", "license"),
	)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines:\n%s", len(lines), out)
	}
	if lines[0] != "rule,check_type,severity,component,version,ecosystem,direct,outcome,advisories" {
		t.Errorf("header = %q", lines[0])
	}
	want := "no-critical-vulns,vuln,critical,lodash,4.17.20,npm,true,triggered,GHSA-p6mc-m468-83gw;CVE-2020-8203"
	if lines[1] != want {
		t.Errorf("row = %q, want %q", lines[1], want)
	}
}

func TestTemplateWriter_BuiltinGitHub(t *testing.T) {
	out := renderTemplate(t, TemplateOptions{Builtin: "github"},
		makeViolation("no-critical-vulns", "vuln", events.SeverityCritical),
		makeViolation("min-popularity", "popularity", events.SeverityLow),
		makeEvalError("min-scorecard", "scorecard"),
		makePDFTestSummaryEvent(),
	)

	if !strings.Contains(out, "::error title=no-critical-vulns::") {
		t.Errorf("critical violations should annotate as errors:\n%s", out)
	}
	if !strings.Contains(out, "::warning title=min-popularity::") {
		t.Errorf("low violations should annotate as warnings:\n%s", out)
	}
	if !strings.Contains(out, "::warning title=min-scorecard::evaluation error on npm/lodash@4.17.20: undefined field: scorecard.pinned_deps") {
		t.Errorf("evaluation errors should annotate with the message:\n%s", out)
	}
	if !strings.Contains(out, "::notice title=DepGate::15 violations across 100 components (grade B)") {
		t.Errorf("summary notice missing:\n%s", out)
	}
}

func TestTemplateWriter_BuiltinSummary(t *testing.T) {
	out := renderTemplate(t, TemplateOptions{Builtin: "summary"},
		makeViolation("no-critical-vulns", "vuln", events.SeverityCritical),
		makePDFTestSummaryEvent(),
	)

	for _, want := range []string{
		"DepGate v1.4.2 guardrail run",
		"components: 100  evaluations: 1200",
		"violations: 15  errors: 3  grade: B",
		"[critical] no-critical-vulns npm/lodash@4.17.20",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary digest missing %q:\n%s", want, out)
		}
	}
}

func TestTemplateWriter_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.tmpl")
	if err := os.WriteFile(path, []byte("findings={{len .Findings}}"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := renderTemplate(t, TemplateOptions{Path: path},
		makeViolation("rule-a", "vuln", events.SeverityHigh),
		makeViolation("rule-b", "vuln", events.SeverityLow),
	)

	if out != "findings=2" {
		t.Errorf("unexpected render: %q", out)
	}
}

func TestTemplateWriter_FindingsSortedBySeverity(t *testing.T) {
	out := renderTemplate(t, TemplateOptions{Builtin: "csv"},
		makeViolation("medium-rule", "vuln", events.SeverityMedium),
		makeViolation("critical-rule", "vuln", events.SeverityCritical),
	)

	critIdx := strings.Index(out, "critical-rule")
	medIdx := strings.Index(out, "medium-rule")
	if critIdx < 0 || medIdx < 0 {
		t.Fatal("expected both rows")
	}
	if critIdx > medIdx {
		t.Error("critical findings should sort before medium ones")
	}
}

func TestTemplateWriter_UnknownBuiltin(t *testing.T) {
	_, err := NewTemplateWriter(&bytes.Buffer{}, TemplateOptions{Builtin: "nagios"})
	if err == nil || !strings.Contains(err.Error(), "unknown builtin") {
		t.Errorf("expected unknown builtin error, got %v", err)
	}
}

func TestTemplateWriter_NoTemplate(t *testing.T) {
	_, err := NewTemplateWriter(&bytes.Buffer{}, TemplateOptions{})
	if err == nil || !strings.Contains(err.Error(), "no template configured") {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestTemplateWriter_ParseError(t *testing.T) {
	_, err := NewTemplateWriter(&bytes.Buffer{}, TemplateOptions{Source: "{{.Unclosed"})
	if err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestTemplateWriter_MissingFile(t *testing.T) {
	_, err := NewTemplateWriter(&bytes.Buffer{}, TemplateOptions{
		Path: filepath.Join(t.TempDir(), "absent.tmpl"),
	})
	if err == nil {
		t.Error("expected error for a missing template file")
	}
}

func TestTemplateWriter_HelperFunctions(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"sprig upper", "{{upper .Tool}}", "DEPGATE"},
		{"cweLink", "{{cweLink 1395}}", "[CWE-1395](https://cwe.mitre.org/data/definitions/1395.html)"},
		{"owaspLink plain", `{{owaspLink "license"}}`, "A00:2021"},
		{"advisoryLink", `{{advisoryLink "CVE-2020-8203"}}`, "[CVE-2020-8203](https://osv.dev/vulnerability/CVE-2020-8203)"},
		{"severityIcon", `{{range .Findings}}{{severityIcon .Rule.Severity}}{{end}}`, "🔴"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := renderTemplate(t, TemplateOptions{Source: tc.source},
				makeViolation("no-critical-vulns", "vuln", events.SeverityCritical))
			if out != tc.want {
				t.Errorf("render = %q, want %q", out, tc.want)
			}
		})
	}
}

func TestTemplateWriter_SupportsEvent(t *testing.T) {
	w, err := NewTemplateWriter(&bytes.Buffer{}, TemplateOptions{Builtin: "summary"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		eventType events.EventType
		expected  bool
	}{
		{events.EventTypeStart, true},
		{events.EventTypeEvaluation, true},
		{events.EventTypeSummary, true},
		{events.EventTypeSource, false},
		{events.EventTypeProgress, false},
	}
	for _, tc := range tests {
		if got := w.SupportsEvent(tc.eventType); got != tc.expected {
			t.Errorf("SupportsEvent(%s) = %v, want %v", tc.eventType, got, tc.expected)
		}
	}
}

func TestEscapeCSV(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"has,comma", `"has,comma"`},
		{`has "quotes"`, `"has ""quotes"""`},
		{"line\nbreak", "\"line\nbreak\""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := escapeCSV(tc.in); got != tc.want {
			t.Errorf("escapeCSV(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEscapeXML(t *testing.T) {
	got := escapeXML(`a & b < c > "d" 'e'`)
	want := "a &amp; b &lt; c &gt; &quot;d&quot; &apos;e&apos;"
	if got != want {
		t.Errorf("escapeXML = %q, want %q", got, want)
	}
}
