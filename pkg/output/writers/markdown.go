package writers

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*MarkdownWriter)(nil)

// MarkdownWriter renders a guardrail report as GitHub-flavored markdown.
// The output is suitable for PR comments, GitHub step summaries
// (GITHUB_STEP_SUMMARY), and wiki pages. Results are buffered and the
// report is rendered on Close.
type MarkdownWriter struct {
	w       io.Writer
	mu      sync.Mutex
	opts    MarkdownOptions
	rows    []*events.EvaluationEvent
	sources []*events.SourceEvent
	summary *events.SummaryEvent
	start   *events.StartEvent
}

// MarkdownOptions configures the markdown writer.
type MarkdownOptions struct {
	// Title is the report heading (default: "<tool> Guardrail Report").
	Title string

	// IncludeEvidence adds collapsible expression and fact evidence
	// under each violation.
	IncludeEvidence bool

	// MaxFindings caps the findings listed in detail (default: 50, 0 = all).
	MaxFindings int
}

// NewMarkdownWriter creates a markdown report writer.
// The writer is safe for concurrent use.
func NewMarkdownWriter(w io.Writer, opts MarkdownOptions) *MarkdownWriter {
	if opts.Title == "" {
		opts.Title = defaults.ToolNameDisplay + " Guardrail Report"
	}
	if opts.MaxFindings == 0 {
		opts.MaxFindings = 50
	}
	return &MarkdownWriter{w: w, opts: opts}
}

// Write buffers events for rendering on Close.
func (mw *MarkdownWriter) Write(event events.Event) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	switch e := event.(type) {
	case *events.StartEvent:
		mw.start = e
	case *events.EvaluationEvent:
		if e.Result.Outcome == events.OutcomeTriggered || e.Result.Outcome == events.OutcomeError {
			mw.rows = append(mw.rows, e)
		}
	case *events.SourceEvent:
		mw.sources = append(mw.sources, e)
	case *events.SummaryEvent:
		mw.summary = e
	}
	return nil
}

// Flush is a no-op; the report is rendered on Close.
func (mw *MarkdownWriter) Flush() error { return nil }

// Close renders the buffered results as a markdown document.
// If the underlying writer implements io.Closer, it will be closed.
func (mw *MarkdownWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var b strings.Builder
	mw.renderHeader(&b)
	mw.renderSummary(&b)
	mw.renderRisk(&b)
	mw.renderSeverityBreakdown(&b)
	mw.renderCheckTypeBreakdown(&b)
	mw.renderFindings(&b)
	mw.renderSourceWarnings(&b)
	mw.renderFooter(&b)

	if _, err := io.WriteString(mw.w, b.String()); err != nil {
		return fmt.Errorf("markdown: write: %w", err)
	}

	if closer, ok := mw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for the event types the report renders.
func (mw *MarkdownWriter) SupportsEvent(eventType events.EventType) bool {
	switch eventType {
	case events.EventTypeStart, events.EventTypeEvaluation,
		events.EventTypeSource, events.EventTypeSummary:
		return true
	}
	return false
}

func (mw *MarkdownWriter) renderHeader(b *strings.Builder) {
	fmt.Fprintf(b, "# %s\n\n", mw.opts.Title)

	version := defaults.Version
	if mw.summary != nil && mw.summary.Version != "" {
		version = mw.summary.Version
	}
	fmt.Fprintf(b, "Generated by %s v%s on %s\n\n",
		defaults.ToolNameDisplay, version, time.Now().UTC().Format("2006-01-02 15:04 UTC"))

	if mw.start != nil {
		fmt.Fprintf(b, "**Suite:** `%s`", mw.start.Suite)
		if mw.start.TotalRules > 0 {
			fmt.Fprintf(b, " | **Rules:** %d", mw.start.TotalRules)
		}
		if mw.start.TotalComponents > 0 {
			fmt.Fprintf(b, " | **Components:** %d", mw.start.TotalComponents)
		}
		if len(mw.start.Sources) > 0 {
			fmt.Fprintf(b, " | **Sources:** %s", strings.Join(mw.start.Sources, ", "))
		}
		b.WriteString("\n\n")
	}
}

func (mw *MarkdownWriter) renderSummary(b *strings.Builder) {
	if mw.summary == nil {
		return
	}
	s := mw.summary

	b.WriteString("## Summary\n\n")

	status := "✅ **All guardrails passed**"
	if s.Totals.Violations > 0 {
		status = fmt.Sprintf("❌ **%d guardrail violation(s) found**", s.Totals.Violations)
	} else if s.Totals.Errors > 0 {
		status = fmt.Sprintf("⚠️ **%d evaluation error(s)**", s.Totals.Errors)
	}
	fmt.Fprintf(b, "%s\n\n", status)

	b.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(b, "| Components | %d |\n", s.Totals.Components)
	fmt.Fprintf(b, "| Evaluations | %d |\n", s.Totals.Evaluations)
	fmt.Fprintf(b, "| Violations | %d |\n", s.Totals.Violations)
	fmt.Fprintf(b, "| Passes | %d |\n", s.Totals.Passes)
	fmt.Fprintf(b, "| Errors | %d |\n", s.Totals.Errors)
	fmt.Fprintf(b, "| Skipped | %d |\n", s.Totals.Skipped)
	fmt.Fprintf(b, "| Duration | %.1fs |\n", s.Timing.DurationSec)
	b.WriteString("\n")
}

func (mw *MarkdownWriter) renderRisk(b *strings.Builder) {
	if mw.summary == nil {
		return
	}
	r := mw.summary.Risk

	b.WriteString("## Risk\n\n")
	fmt.Fprintf(b, "**Grade: %s** (score %.1f/100, clean rate %.1f%%)\n\n",
		r.Grade, r.Score, r.CleanRatePct)
	if r.Recommendation != "" {
		fmt.Fprintf(b, "> %s\n\n", r.Recommendation)
	}
}

func (mw *MarkdownWriter) renderSeverityBreakdown(b *strings.Builder) {
	if mw.summary == nil || len(mw.summary.Breakdown.BySeverity) == 0 {
		return
	}

	b.WriteString("## Findings by Severity\n\n")
	b.WriteString("| Severity | Violations | Evaluations |\n|----------|-----------:|------------:|\n")
	for _, name := range events.OrderedStrings() {
		stats, ok := mw.summary.Breakdown.BySeverity[name]
		if !ok || stats.Total == 0 {
			continue
		}
		fmt.Fprintf(b, "| %s %s | %d | %d |\n",
			severityEmoji(events.Severity(name)), name, stats.Violations, stats.Total)
	}
	b.WriteString("\n")
}

func (mw *MarkdownWriter) renderCheckTypeBreakdown(b *strings.Builder) {
	if mw.summary == nil || len(mw.summary.Breakdown.ByCheckType) == 0 {
		return
	}

	b.WriteString("## Findings by Check Type\n\n")
	b.WriteString("| Check | OWASP | Violations | Evaluations |\n|-------|-------|-----------:|------------:|\n")

	names := make([]string, 0, len(mw.summary.Breakdown.ByCheckType))
	for name := range mw.summary.Breakdown.ByCheckType {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		stats := mw.summary.Breakdown.ByCheckType[name]
		fmt.Fprintf(b, "| %s | %s | %d | %d |\n",
			defaults.GetCategoryReadableName(name), owaspLink(name),
			stats.Violations, stats.Total)
	}
	b.WriteString("\n")
}

func (mw *MarkdownWriter) renderFindings(b *strings.Builder) {
	if len(mw.rows) == 0 {
		return
	}

	sorted := make([]*events.EvaluationEvent, len(mw.rows))
	copy(sorted, mw.rows)
	sortFindings(sorted)

	b.WriteString("## Findings\n\n")

	limit := len(sorted)
	if mw.opts.MaxFindings > 0 && limit > mw.opts.MaxFindings {
		limit = mw.opts.MaxFindings
	}

	for _, e := range sorted[:limit] {
		mw.renderFinding(b, e)
	}

	if limit < len(sorted) {
		fmt.Fprintf(b, "_... and %d more findings. Use the JSON or SARIF output for the full list._\n\n",
			len(sorted)-limit)
	}
}

func (mw *MarkdownWriter) renderFinding(b *strings.Builder, e *events.EvaluationEvent) {
	emoji := severityEmoji(e.Rule.Severity)
	if e.Result.Outcome == events.OutcomeError {
		fmt.Fprintf(b, "### ⚠️ `%s` on `%s` (evaluation error)\n\n", e.Rule.Name, e.Component.Ref)
		fmt.Fprintf(b, "```\n%s\n```\n\n", e.Result.Err)
		return
	}

	fmt.Fprintf(b, "### %s `%s` on `%s`\n\n", emoji, e.Rule.Name, e.Component.Ref)
	fmt.Fprintf(b, "- **Severity:** %s\n", e.Rule.Severity)
	fmt.Fprintf(b, "- **Check:** %s (%s)\n",
		defaults.GetCategoryReadableName(e.Rule.CheckType), owaspLink(e.Rule.CheckType))
	if e.Rule.Summary != "" {
		fmt.Fprintf(b, "- **Rule:** %s\n", e.Rule.Summary)
	}
	if e.Component.Ecosystem != "" {
		kind := "transitive"
		if e.Component.Direct {
			kind = "direct"
		}
		fmt.Fprintf(b, "- **Dependency:** %s, %s\n", e.Component.Ecosystem, kind)
	}
	if e.Evidence != nil && len(e.Evidence.VulnIDs) > 0 {
		links := make([]string, 0, len(e.Evidence.VulnIDs))
		for _, id := range e.Evidence.VulnIDs {
			links = append(links, advisoryLink(id))
		}
		fmt.Fprintf(b, "- **Advisories:** %s\n", strings.Join(links, ", "))
	}
	b.WriteString("\n")

	if mw.opts.IncludeEvidence && e.Evidence != nil &&
		(e.Evidence.Expression != "" || e.Evidence.Observed != "") {
		b.WriteString("<details><summary>Evidence</summary>\n\n")
		if e.Evidence.Expression != "" {
			fmt.Fprintf(b, "**Expression:**\n\n```\n%s\n```\n\n", e.Evidence.Expression)
		}
		if e.Evidence.Observed != "" {
			fmt.Fprintf(b, "**Observed facts:**\n\n```\n%s\n```\n\n", e.Evidence.Observed)
		}
		b.WriteString("</details>\n\n")
	}
}

func (mw *MarkdownWriter) renderSourceWarnings(b *strings.Builder) {
	if len(mw.sources) == 0 {
		return
	}

	b.WriteString("## Fact Source Warnings\n\n")
	for _, e := range mw.sources {
		fmt.Fprintf(b, "- ⚠️ `%s`: %s", e.Source, e.Condition)
		if e.Detail != "" {
			fmt.Fprintf(b, " (%s)", e.Detail)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func (mw *MarkdownWriter) renderFooter(b *strings.Builder) {
	b.WriteString("---\n\n")
	if mw.summary != nil && mw.summary.ExitReason != "" {
		fmt.Fprintf(b, "_Exit: %s._ ", mw.summary.ExitReason)
	}
	fmt.Fprintf(b, "_Report produced by [%s](https://github.com/depgate/depgate)._\n",
		defaults.ToolNameDisplay)
}

// sortFindings orders findings by severity (most severe first), then by
// component ref, then by rule name.
func sortFindings(rows []*events.EvaluationEvent) {
	sort.SliceStable(rows, func(i, j int) bool {
		si, sj := rows[i].Rule.Severity.Score(), rows[j].Rule.Severity.Score()
		if si != sj {
			return si > sj
		}
		if rows[i].Component.Ref != rows[j].Component.Ref {
			return rows[i].Component.Ref < rows[j].Component.Ref
		}
		return rows[i].Rule.Name < rows[j].Rule.Name
	})
}

// severityEmoji returns the status emoji for a severity.
func severityEmoji(sev events.Severity) string {
	switch sev {
	case events.SeverityCritical:
		return "🔴"
	case events.SeverityHigh:
		return "🟠"
	case events.SeverityMedium:
		return "🟡"
	case events.SeverityLow:
		return "🔵"
	default:
		return "⚪"
	}
}

// owaspLink renders a markdown link to the OWASP Top 10 category for a
// check type, or plain text when the check has no category.
func owaspLink(checkType string) string {
	code := defaults.GetOWASPCategory(checkType)
	url := defaults.GetOWASPURL(code)
	if url == "" {
		return code
	}
	return fmt.Sprintf("[%s](%s)", code, url)
}

// advisoryLink renders a markdown link to the advisory database entry for
// an advisory ID. OSV hosts CVE, GHSA, and ecosystem-prefixed IDs alike.
func advisoryLink(id string) string {
	return fmt.Sprintf("[%s](https://osv.dev/vulnerability/%s)", id, id)
}
