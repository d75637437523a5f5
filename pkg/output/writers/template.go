package writers

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/jsonutil"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*TemplateWriter)(nil)

// TemplateWriter renders results through a user-supplied Go template.
// Teams use it to produce whatever shape their downstream tooling
// expects without waiting for a dedicated writer: ticket bodies, CSV
// exports, chat messages, CI annotations.
//
// Templates get the full sprig function library plus guardrail helpers
// (severityIcon, owaspLink, advisoryLink, escapeCSV, escapeXML, toJSON,
// prettyJSON). Events are buffered and the template executes once on
// Close against a TemplateData value.
type TemplateWriter struct {
	w    io.Writer
	mu   sync.Mutex
	opts TemplateOptions
	tmpl *template.Template
	data TemplateData
}

// TemplateOptions configures the template writer.
// Exactly one of Builtin, Path, or Source selects the template.
type TemplateOptions struct {
	// Builtin names a built-in template: "csv", "github", or "summary".
	Builtin string

	// Path loads the template from a file.
	Path string

	// Source is an inline template string.
	Source string
}

// TemplateData is the value the template executes against.
type TemplateData struct {
	// Tool is the display name of the tool.
	Tool string

	// Version is the tool version.
	Version string

	// GeneratedAt is when the report was rendered.
	GeneratedAt time.Time

	// Start is the run start event, when one was seen.
	Start *events.StartEvent

	// Findings holds triggered and errored evaluations, sorted most
	// severe first.
	Findings []*events.EvaluationEvent

	// Evaluations holds every evaluation event seen, in arrival order.
	Evaluations []*events.EvaluationEvent

	// Summary is the run summary, when one was seen.
	Summary *events.SummaryEvent
}

// Built-in templates. These cover the common CI shapes so most teams
// never need to write their own.
var builtinTemplates = map[string]string{
	// csv emits one row per finding.
	"csv": `rule,check_type,severity,component,version,ecosystem,direct,outcome,advisories
{{- range .Findings}}
{{escapeCSV .Rule.Name}},{{escapeCSV .Rule.CheckType}},{{.Rule.Severity}},{{escapeCSV .Component.Name}},{{escapeCSV .Component.Version}},{{escapeCSV .Component.Ecosystem}},{{.Component.Direct}},{{.Result.Outcome}},{{if .Evidence}}{{escapeCSV (join ";" .Evidence.VulnIDs)}}{{end}}
{{- end}}
`,

	// github emits workflow command annotations that GitHub Actions
	// surfaces inline on the PR.
	"github": `{{- range .Findings}}
{{- if eq (printf "%s" .Result.Outcome) "error"}}
::warning title={{.Rule.Name}}::evaluation error on {{.Component.Ref}}: {{.Result.Err}}
{{- else if or (eq (printf "%s" .Rule.Severity) "critical") (eq (printf "%s" .Rule.Severity) "high")}}
::error title={{.Rule.Name}}::{{.Rule.Summary}} ({{.Component.Ref}})
{{- else}}
::warning title={{.Rule.Name}}::{{.Rule.Summary}} ({{.Component.Ref}})
{{- end}}
{{- end}}
{{- if .Summary}}
::notice title={{.Tool}}::{{.Summary.Totals.Violations}} violations across {{.Summary.Totals.Components}} components (grade {{.Summary.Risk.Grade}})
{{- end}}
`,

	// summary emits a short plain-text digest.
	"summary": `{{.Tool}} v{{.Version}} guardrail run {{.GeneratedAt.Format "2006-01-02 15:04:05"}}
{{- if .Summary}}
components: {{.Summary.Totals.Components}}  evaluations: {{.Summary.Totals.Evaluations}}
violations: {{.Summary.Totals.Violations}}  errors: {{.Summary.Totals.Errors}}  grade: {{.Summary.Risk.Grade}}
{{- end}}
{{- range .Findings}}
[{{.Rule.Severity}}] {{.Rule.Name}} {{.Component.Ref}}{{if .Result.Err}} ({{.Result.Err}}){{end}}
{{- end}}
`,
}

// NewTemplateWriter creates a template writer.
// The template is parsed immediately so configuration errors surface
// before the run starts.
func NewTemplateWriter(w io.Writer, opts TemplateOptions) (*TemplateWriter, error) {
	source, name, err := resolveTemplateSource(opts)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).Funcs(templateFuncs()).Parse(source)
	if err != nil {
		return nil, fmt.Errorf("template: parse %s: %w", name, err)
	}

	return &TemplateWriter{
		w:    w,
		opts: opts,
		tmpl: tmpl,
		data: TemplateData{
			Tool:    defaults.ToolNameDisplay,
			Version: defaults.Version,
		},
	}, nil
}

// resolveTemplateSource picks the template text from the options.
func resolveTemplateSource(opts TemplateOptions) (source, name string, err error) {
	switch {
	case opts.Builtin != "":
		source, ok := builtinTemplates[opts.Builtin]
		if !ok {
			names := make([]string, 0, len(builtinTemplates))
			for n := range builtinTemplates {
				names = append(names, n)
			}
			return "", "", fmt.Errorf("template: unknown builtin %q (have: %s)",
				opts.Builtin, strings.Join(names, ", "))
		}
		return source, opts.Builtin, nil
	case opts.Path != "":
		raw, err := os.ReadFile(opts.Path)
		if err != nil {
			return "", "", fmt.Errorf("template: read %s: %w", opts.Path, err)
		}
		return string(raw), opts.Path, nil
	case opts.Source != "":
		return opts.Source, "inline", nil
	}
	return "", "", fmt.Errorf("template: no template configured")
}

// templateFuncs builds the function map: sprig plus guardrail helpers.
func templateFuncs() template.FuncMap {
	funcs := sprig.TxtFuncMap()

	funcs["severityIcon"] = func(sev events.Severity) string {
		return severityEmoji(sev)
	}
	funcs["owaspLink"] = owaspLink
	funcs["advisoryLink"] = advisoryLink
	funcs["cweLink"] = func(cwe int) string {
		return fmt.Sprintf("[CWE-%d](https://cwe.mitre.org/data/definitions/%d.html)", cwe, cwe)
	}
	funcs["escapeCSV"] = escapeCSV
	funcs["escapeXML"] = escapeXML
	funcs["toJSON"] = func(v any) (string, error) {
		raw, err := jsonutil.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	funcs["prettyJSON"] = func(v any) (string, error) {
		raw, err := jsonutil.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	return funcs
}

// escapeCSV quotes a CSV field when it contains separators or quotes.
func escapeCSV(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// escapeXML escapes the five XML special characters.
func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

// Write buffers events for the Close-time render.
func (tw *TemplateWriter) Write(event events.Event) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	switch e := event.(type) {
	case *events.StartEvent:
		tw.data.Start = e
	case *events.EvaluationEvent:
		tw.data.Evaluations = append(tw.data.Evaluations, e)
		if e.Result.Outcome == events.OutcomeTriggered || e.Result.Outcome == events.OutcomeError {
			tw.data.Findings = append(tw.data.Findings, e)
		}
	case *events.SummaryEvent:
		tw.data.Summary = e
	}
	return nil
}

// Flush is a no-op; the template executes on Close.
func (tw *TemplateWriter) Flush() error { return nil }

// Close executes the template against the buffered data.
// If the underlying writer implements io.Closer, it will be closed.
func (tw *TemplateWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	tw.data.GeneratedAt = time.Now()
	sortFindings(tw.data.Findings)

	if err := tw.tmpl.Execute(tw.w, tw.data); err != nil {
		return fmt.Errorf("template: execute: %w", err)
	}

	if closer, ok := tw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for the event types templates can render.
func (tw *TemplateWriter) SupportsEvent(eventType events.EventType) bool {
	switch eventType {
	case events.EventTypeStart, events.EventTypeEvaluation, events.EventTypeSummary:
		return true
	}
	return false
}
