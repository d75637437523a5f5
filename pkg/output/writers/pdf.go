package writers

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	gofpdf "github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*PDFWriter)(nil)

// PDFWriter renders a polished guardrail report as a PDF document.
// Intended for compliance evidence, audit trails, and sharing results
// with stakeholders who will never run the CLI. Events are buffered
// and the document is rendered on Close.
type PDFWriter struct {
	w       io.Writer
	mu      sync.Mutex
	config  PDFConfig
	results []*events.EvaluationEvent
	summary *events.SummaryEvent
	start   *events.StartEvent

	// noCompress disables PDF stream compression so rendered text stays
	// byte-searchable. Used by tests.
	noCompress bool
}

// PDFConfig configures the PDF report.
type PDFConfig struct {
	// Title is the report title on the cover page.
	Title string

	// CompanyName appears on the cover page and in metadata.
	CompanyName string

	// Author appears on the cover page and in metadata.
	Author string

	// Classification renders a handling badge on the cover, for example
	// "CONFIDENTIAL" or "INTERNAL".
	Classification string

	// WatermarkText renders diagonally across the cover page.
	WatermarkText string

	// FooterText overrides the default page footer.
	FooterText string

	// IncludeEvidence adds rule expressions and observed facts to each
	// finding card.
	IncludeEvidence bool

	// IncludeTOC inserts a table of contents after the cover page.
	IncludeTOC bool

	// PageSize is "A4" or "Letter" (default: A4).
	PageSize string

	// Orientation is "P" (portrait) or "L" (landscape) (default: P).
	Orientation string
}

// pdfSeverityColors maps severity names to RGB colors.
var pdfSeverityColors = map[string][]int{
	"critical": {153, 27, 27},
	"high":     {220, 38, 38},
	"medium":   {202, 138, 4},
	"low":      {37, 99, 235},
	"info":     {107, 114, 128},
}

// pdfOutcomeColors maps evaluation outcomes to RGB colors.
var pdfOutcomeColors = map[events.Outcome][]int{
	events.OutcomeTriggered: {220, 38, 38},
	events.OutcomePass:      {22, 163, 74},
	events.OutcomeError:     {202, 138, 4},
	events.OutcomeSkipped:   {107, 114, 128},
}

// NewPDFWriter creates a PDF report writer.
// The writer buffers all events and renders the document on Close.
// The writer is safe for concurrent use.
func NewPDFWriter(w io.Writer, config PDFConfig) *PDFWriter {
	if config.Title == "" {
		config.Title = defaults.ToolNameDisplay + " Guardrail Report"
	}
	if config.PageSize == "" {
		config.PageSize = "A4"
	}
	if config.Orientation == "" {
		config.Orientation = "P"
	}
	return &PDFWriter{
		w:       w,
		config:  config,
		results: make([]*events.EvaluationEvent, 0),
	}
}

// Write buffers events for the Close-time render.
func (pw *PDFWriter) Write(event events.Event) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	switch e := event.(type) {
	case *events.StartEvent:
		pw.start = e
	case *events.EvaluationEvent:
		pw.results = append(pw.results, e)
	case *events.SummaryEvent:
		pw.summary = e
	}
	return nil
}

// Flush is a no-op; the document is rendered on Close.
func (pw *PDFWriter) Flush() error { return nil }

// SupportsEvent returns true for the event types the report renders.
func (pw *PDFWriter) SupportsEvent(eventType events.EventType) bool {
	switch eventType {
	case events.EventTypeStart, events.EventTypeEvaluation, events.EventTypeSummary:
		return true
	}
	return false
}

// pdfSection is one TOC-addressable part of the report. Collecting the
// sections up front keeps the table of contents and the rendered body
// in lockstep.
type pdfSection struct {
	title  string
	render func(pdf *gofpdf.Fpdf)
}

// Close renders the buffered events into the final PDF document.
// If the underlying writer implements io.Closer, it will be closed.
func (pw *PDFWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	pdf := gofpdf.New(pw.config.Orientation, "mm", pw.config.PageSize, "")
	pdf.SetTitle(pw.config.Title, true)
	pdf.SetAuthor(pw.config.Author, true)
	pdf.SetCreator(defaults.ToolNameDisplay+" v"+defaults.Version, true)
	pdf.SetCompression(!pw.noCompress)
	pdf.AliasNbPages("")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)

	footer := pw.config.FooterText
	if footer == "" {
		footer = "Generated by " + defaults.ToolNameDisplay + " v" + defaults.Version
	}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, footer, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pw.addCoverPage(pdf)

	sections := pw.sections()
	if pw.config.IncludeTOC {
		pw.addTableOfContents(pdf, sections)
	}
	for _, s := range sections {
		s.render(pdf)
	}

	if err := pdf.Output(pw.w); err != nil {
		return fmt.Errorf("pdf: render: %w", err)
	}

	if closer, ok := pw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// sections assembles the report body in render order. Data-dependent
// sections are omitted when they have nothing to show.
func (pw *PDFWriter) sections() []pdfSection {
	s := []pdfSection{
		{"Executive Summary", pw.addExecutiveSummary},
	}
	if pw.summary != nil && len(pw.summary.TopViolations) > 0 {
		s = append(s, pdfSection{"Top Violations", pw.addTopViolations})
	}
	if pw.summary != nil && len(pw.summary.Breakdown.ByCheckType) > 0 {
		s = append(s, pdfSection{"Check Type Breakdown", pw.addCheckTypeBreakdown})
	}
	if pw.summary != nil && len(pw.summary.Breakdown.ByEcosystem) > 0 {
		s = append(s, pdfSection{"Ecosystem Breakdown", pw.addEcosystemBreakdown})
	}
	if pw.hasLatencyData() {
		s = append(s, pdfSection{"Evaluation Latency Profile", pw.addLatencyProfile})
	}
	s = append(s, pdfSection{"OWASP Top 10 Coverage", pw.addOWASPCoverage})

	if violations := pw.violations(); len(violations) > 0 {
		for _, checkType := range orderedCheckTypes(pw.groupByCheckType(violations)) {
			readable := defaults.GetCategoryReadableName(checkType)
			ct := checkType
			s = append(s, pdfSection{
				"Findings: " + readable,
				func(pdf *gofpdf.Fpdf) { pw.addFindingsForCheck(pdf, ct) },
			})
		}
	} else {
		s = append(s, pdfSection{"Findings", pw.addNoFindings})
	}

	if pw.hasMatrixData() {
		s = append(s, pdfSection{"Severity vs Check Type Matrix", pw.addSeverityCheckMatrix})
	}
	if pw.hasCleanChecks() {
		s = append(s, pdfSection{"Clean Checks", pw.addCleanChecks})
	}
	if len(pw.violations()) > 0 {
		s = append(s, pdfSection{"Remediation Guidance", pw.addRemediationGuidanceSection})
	}
	s = append(s,
		pdfSection{"Run Insights", pw.addRunInsights},
		pdfSection{"Appendix: Run Configuration", pw.addRunConfiguration},
		pdfSection{"Appendix: Evaluation Methodology", pw.addMethodology},
	)
	return s
}

// violations returns the buffered evaluations that triggered.
func (pw *PDFWriter) violations() []*events.EvaluationEvent {
	out := make([]*events.EvaluationEvent, 0, len(pw.results))
	for _, r := range pw.results {
		if r.Result.Outcome == events.OutcomeTriggered {
			out = append(out, r)
		}
	}
	return out
}

// groupByCheckType groups evaluations by their rule's check type.
func (pw *PDFWriter) groupByCheckType(results []*events.EvaluationEvent) map[string][]*events.EvaluationEvent {
	grouped := make(map[string][]*events.EvaluationEvent)
	for _, r := range results {
		checkType := r.Rule.CheckType
		if checkType == "" {
			checkType = "other"
		}
		grouped[checkType] = append(grouped[checkType], r)
	}
	return grouped
}

// orderedCheckTypes sorts check type keys by violation count descending.
func orderedCheckTypes(grouped map[string][]*events.EvaluationEvent) []string {
	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(grouped[keys[i]]) != len(grouped[keys[j]]) {
			return len(grouped[keys[i]]) > len(grouped[keys[j]])
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (pw *PDFWriter) hasLatencyData() bool {
	return pw.summary != nil && (pw.summary.Latency.P50Ms > 0 ||
		pw.summary.Latency.P95Ms > 0 || pw.summary.Latency.P99Ms > 0)
}

// --- cover page ---

func (pw *PDFWriter) addCoverPage(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	// Header band.
	pdf.SetFillColor(30, 41, 59)
	pdf.Rect(0, 0, pageW, 50, "F")

	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetXY(15, 18)
	pdf.CellFormat(0, 12, pw.config.Title, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(203, 213, 225)
	pdf.SetX(15)
	pdf.CellFormat(0, 8, "Dependency Guardrail Evaluation", "", 1, "L", false, 0, "")

	if pw.config.Classification != "" {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(220, 38, 38)
		pdf.SetTextColor(255, 255, 255)
		badgeW := float64(len(pw.config.Classification))*2.5 + 10
		pdf.SetXY(pageW-15-badgeW, 8)
		pdf.CellFormat(badgeW, 8, pw.config.Classification, "", 0, "C", true, 0, "")
	}

	if pw.config.WatermarkText != "" {
		pdf.SetFont("Helvetica", "B", 48)
		pdf.SetTextColor(229, 231, 235)
		pdf.TransformBegin()
		pdf.TransformRotate(45, pageW/2, pageH/2)
		pdf.Text(pageW/2-60, pageH/2, pw.config.WatermarkText)
		pdf.TransformEnd()
	}

	// Grade block.
	pdf.SetY(75)
	if pw.summary != nil {
		grade := pw.summary.Risk.Grade
		gc := pw.getGradeColor(grade)
		pdf.SetFont("Helvetica", "B", 64)
		pdf.SetTextColor(gc[0], gc[1], gc[2])
		pdf.CellFormat(0, 28, grade, "", 1, "C", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.SetTextColor(80, 80, 80)
		pdf.CellFormat(0, 8, "Dependency Risk Grade", "", 1, "C", false, 0, "")
		pdf.Ln(8)

		// Stat strip.
		stats := []struct {
			label string
			value string
		}{
			{"Components", fmt.Sprintf("%d", pw.summary.Totals.Components)},
			{"Violations", fmt.Sprintf("%d", pw.summary.Totals.Violations)},
			{"Clean Rate", fmt.Sprintf("%.1f%%", pw.summary.Risk.CleanRatePct)},
			{"Duration", formatDuration(pw.summary.Timing.DurationSec)},
		}
		cellW := (pageW - 30) / float64(len(stats))
		pdf.SetFont("Helvetica", "B", 16)
		pdf.SetTextColor(30, 41, 59)
		for _, st := range stats {
			pdf.CellFormat(cellW, 10, st.value, "", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(128, 128, 128)
		for _, st := range stats {
			pdf.CellFormat(cellW, 6, st.label, "", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		if pw.summary.Timing.ComponentsPerSec > 0 {
			pdf.Ln(4)
			pdf.SetFont("Helvetica", "", 9)
			pdf.CellFormat(0, 6, fmt.Sprintf("%.1f components/s", pw.summary.Timing.ComponentsPerSec), "", 1, "C", false, 0, "")
		}
	}

	// Run details block.
	pdf.SetY(pageH - 80)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)

	details := make([][2]string, 0, 6)
	if pw.start != nil && pw.start.Suite != "" {
		details = append(details, [2]string{"Suite", pw.start.Suite})
	} else if pw.summary != nil && pw.summary.Suite.Name != "" {
		details = append(details, [2]string{"Suite", pw.summary.Suite.Name})
	}
	if pw.summary != nil && !pw.summary.Timing.StartedAt.IsZero() {
		details = append(details, [2]string{"Started", pw.summary.Timing.StartedAt.UTC().Format("2006-01-02 15:04 UTC")})
	}
	if pw.config.CompanyName != "" {
		details = append(details, [2]string{"Organization", pw.config.CompanyName})
	}
	if pw.config.Author != "" {
		details = append(details, [2]string{"Author", pw.config.Author})
	}
	details = append(details, [2]string{"Generated", time.Now().UTC().Format("2006-01-02 15:04 UTC")})

	for _, d := range details {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(35, 7, d[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 7, d[1], "", 1, "L", false, 0, "")
	}
}

// --- table of contents ---

func (pw *PDFWriter) addTableOfContents(pdf *gofpdf.Fpdf, sections []pdfSection) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, "Table of Contents")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(60, 60, 60)
	for i, s := range sections {
		pdf.CellFormat(10, 8, fmt.Sprintf("%d.", i+1), "", 0, "R", false, 0, "")
		pdf.CellFormat(4, 8, "", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, s.title, "", 1, "L", false, 0, "")
	}
}

// --- executive summary ---

func (pw *PDFWriter) addExecutiveSummary(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, "Executive Summary")

	if pw.summary == nil {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, "No summary data available for this run.", "", 1, "L", false, 0, "")
		return
	}
	s := pw.summary

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, fmt.Sprintf(
		"Suite %q evaluated %d guardrail rule(s) against %d component(s), "+
			"producing %d evaluation(s). The dependency set scored %.1f/100 for a grade of %s.",
		s.Suite.Name, s.Suite.Rules, s.Totals.Components, s.Totals.Evaluations,
		s.Risk.Score, s.Risk.Grade), "", "L", false)
	pdf.Ln(5)

	// Totals table.
	rows := []struct {
		label string
		value string
		color []int
	}{
		{"Total Evaluations", fmt.Sprintf("%d", s.Totals.Evaluations), nil},
		{"Violations", fmt.Sprintf("%d", s.Totals.Violations), pdfOutcomeColors[events.OutcomeTriggered]},
		{"Passes", fmt.Sprintf("%d", s.Totals.Passes), pdfOutcomeColors[events.OutcomePass]},
		{"Errors", fmt.Sprintf("%d", s.Totals.Errors), pdfOutcomeColors[events.OutcomeError]},
		{"Skipped", fmt.Sprintf("%d", s.Totals.Skipped), pdfOutcomeColors[events.OutcomeSkipped]},
	}
	for i, r := range rows {
		if i%2 == 0 {
			pdf.SetFillColor(248, 250, 252)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(60, 8, r.label, "1", 0, "L", true, 0, "")
		if r.color != nil {
			pdf.SetTextColor(r.color[0], r.color[1], r.color[2])
			pdf.SetFont("Helvetica", "B", 10)
		}
		pdf.CellFormat(40, 8, r.value, "1", 1, "C", true, 0, "")
	}
	pdf.Ln(5)

	// Severity breakdown.
	if len(s.Breakdown.BySeverity) > 0 {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(30, 41, 59)
		pdf.CellFormat(0, 9, "Violations by Severity", "", 1, "L", false, 0, "")
		pdf.Ln(1)

		titleCaser := titleCaserFor()
		for _, name := range events.OrderedStrings() {
			stats, ok := s.Breakdown.BySeverity[name]
			if !ok || stats.Total == 0 {
				continue
			}
			color := pdfSeverityColors[name]
			if color == nil {
				color = []int{128, 128, 128}
			}
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetTextColor(color[0], color[1], color[2])
			pdf.CellFormat(25, 7, titleCaser(name), "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.SetTextColor(60, 60, 60)
			pdf.CellFormat(0, 7, fmt.Sprintf("%d violation(s) across %d evaluation(s)",
				stats.Violations, stats.Total), "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	if s.Risk.Recommendation != "" {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(30, 41, 59)
		pdf.CellFormat(0, 9, "Recommendation", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(80, 80, 80)
		pdf.MultiCell(0, 5, s.Risk.Recommendation, "", "L", false)
	}
}

// --- top violations ---

func (pw *PDFWriter) addTopViolations(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, "Top Violations")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, "The most severe guardrail violations in this run. "+
		"Address these components first.", "", "L", false)
	pdf.Ln(5)

	// Header.
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(22, 8, "Severity", "1", 0, "C", true, 0, "")
	pdf.CellFormat(55, 8, "Rule", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Check", "1", 0, "L", true, 0, "")
	pdf.CellFormat(0, 8, "Component", "1", 1, "L", true, 0, "")

	titleCaser := titleCaserFor()
	pdf.SetFont("Helvetica", "", 9)
	for i, v := range pw.summary.TopViolations {
		if i%2 == 0 {
			pdf.SetFillColor(250, 250, 250)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		color := pdfSeverityColors[string(v.Severity)]
		if color == nil {
			color = []int{128, 128, 128}
		}
		pdf.SetTextColor(color[0], color[1], color[2])
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(22, 7, strings.ToUpper(string(v.Severity)), "1", 0, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(55, 7, truncateString(v.RuleName, 32), "1", 0, "L", true, 0, "")
		pdf.CellFormat(30, 7, titleCaser(v.CheckType), "1", 0, "L", true, 0, "")
		pdf.CellFormat(0, 7, truncateString(v.Component, 40), "1", 1, "L", true, 0, "")
	}
}

// --- check type breakdown ---

func (pw *PDFWriter) addCheckTypeBreakdown(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, "Check Type Breakdown")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, "Clean Rate by Check Type. Low clean rates show where the "+
		"dependency set needs the most attention.", "", "L", false)
	pdf.Ln(5)

	names := make([]string, 0, len(pw.summary.Breakdown.ByCheckType))
	for name := range pw.summary.Breakdown.ByCheckType {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return pw.summary.Breakdown.ByCheckType[names[i]].Violations >
			pw.summary.Breakdown.ByCheckType[names[j]].Violations
	})

	// Header.
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(55, 8, "Check", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Checks", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 8, "Violations", "1", 0, "C", true, 0, "")
	pdf.CellFormat(28, 8, "Clean Rate", "1", 0, "C", true, 0, "")
	pdf.CellFormat(0, 8, "Risk", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for i, name := range names {
		stats := pw.summary.Breakdown.ByCheckType[name]
		if i%2 == 0 {
			pdf.SetFillColor(250, 250, 250)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(55, 7, defaults.GetCategoryReadableName(name), "1", 0, "L", true, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", stats.Total), "1", 0, "C", true, 0, "")
		if stats.Violations > 0 {
			pdf.SetTextColor(220, 38, 38)
		}
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", stats.Violations), "1", 0, "C", true, 0, "")
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(28, 7, fmt.Sprintf("%.1f%%", stats.CleanRate), "1", 0, "C", true, 0, "")

		label, color := riskLabelFor(stats.CleanRate)
		pdf.SetTextColor(color[0], color[1], color[2])
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(0, 7, label, "1", 1, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
	}
}

// riskLabelFor classifies a clean rate into a coarse risk label.
func riskLabelFor(cleanRate float64) (string, []int) {
	switch {
	case cleanRate >= 90:
		return "LOW", []int{22, 163, 74}
	case cleanRate >= 70:
		return "MEDIUM", []int{202, 138, 4}
	default:
		return "HIGH", []int{220, 38, 38}
	}
}

// --- latency profile ---

func (pw *PDFWriter) addLatencyProfile(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, "Evaluation Latency Profile")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, "Per-evaluation duration percentiles. Slow evaluations usually "+
		"point at fact providers, not at the rule engine.", "", "L", false)
	pdf.Ln(5)

	rows := []struct {
		label string
		value float64
	}{
		{"P50 (median)", pw.summary.Latency.P50Ms},
		{"P95", pw.summary.Latency.P95Ms},
		{"P99", pw.summary.Latency.P99Ms},
	}
	for i, r := range rows {
		if r.value <= 0 {
			continue
		}
		if i%2 == 0 {
			pdf.SetFillColor(248, 250, 252)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(50, 8, r.label, "1", 0, "L", true, 0, "")
		pdf.CellFormat(40, 8, fmt.Sprintf("%.0f ms", r.value), "1", 1, "C", true, 0, "")
	}
}

// --- OWASP coverage ---

func (pw *PDFWriter) addOWASPCoverage(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, "OWASP Top 10 Coverage")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, "Guardrail checks mapped to OWASP Top 10 2021 categories. "+
		"Dependency risks concentrate in A06 (Vulnerable and Outdated Components) "+
		"and A08 (Software and Data Integrity Failures).", "", "L", false)
	pdf.Ln(5)

	// Header.
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(25, 8, "Category", "1", 0, "C", true, 0, "")
	pdf.CellFormat(85, 8, "Name", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Checks", "1", 0, "C", true, 0, "")
	pdf.CellFormat(0, 8, "Violations", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	i := 0
	for _, code := range defaults.OWASPTop10Ordered {
		cat := defaults.OWASPTop10[code]
		var stats events.OWASPStats
		if pw.summary != nil {
			stats = pw.summary.Breakdown.ByOWASP[code]
		}
		if i%2 == 0 {
			pdf.SetFillColor(250, 250, 250)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		i++

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(25, 7, code, "1", 0, "C", true, 0, "")
		pdf.CellFormat(85, 7, truncateString(cat.Name, 52), "1", 0, "L", true, 0, "")
		if stats.Total > 0 {
			pdf.CellFormat(25, 7, fmt.Sprintf("%d", stats.Total), "1", 0, "C", true, 0, "")
			if stats.Violations > 0 {
				pdf.SetTextColor(220, 38, 38)
				pdf.SetFont("Helvetica", "B", 9)
			}
			pdf.CellFormat(0, 7, fmt.Sprintf("%d", stats.Violations), "1", 1, "C", true, 0, "")
			pdf.SetFont("Helvetica", "", 9)
		} else {
			pdf.SetTextColor(180, 180, 180)
			pdf.CellFormat(25, 7, "-", "1", 0, "C", true, 0, "")
			pdf.CellFormat(0, 7, "-", "1", 1, "C", true, 0, "")
		}
	}
}

// --- findings ---

func (pw *PDFWriter) addFindingsForCheck(pdf *gofpdf.Fpdf, checkType string) {
	violations := pw.groupByCheckType(pw.violations())[checkType]
	if len(violations) == 0 {
		return
	}
	sortFindings(violations)

	pdf.AddPage()
	pw.addSectionHeader(pdf, "Findings: "+defaults.GetCategoryReadableName(checkType))

	_, pageH := pdf.GetPageSize()
	for _, e := range violations {
		// Finding cards need ~45mm; break early rather than splitting one.
		if pdf.GetY()+45 > pageH-25 {
			pdf.AddPage()
		}
		pw.addFindingCard(pdf, e)
	}
}

func (pw *PDFWriter) addFindingCard(pdf *gofpdf.Fpdf, e *events.EvaluationEvent) {
	color := pdfSeverityColors[string(e.Rule.Severity)]
	if color == nil {
		color = []int{128, 128, 128}
	}

	// Severity edge bar and rule title.
	y := pdf.GetY()
	pdf.SetFillColor(color[0], color[1], color[2])
	pdf.Rect(15, y, 1.5, 10, "F")

	pdf.SetX(19)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(120, 10, e.Rule.Name, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(color[0], color[1], color[2])
	pdf.CellFormat(0, 10, strings.ToUpper(string(e.Rule.Severity)), "", 1, "R", false, 0, "")

	rows := make([][2]string, 0, 6)
	rows = append(rows, [2]string{"Component", e.Component.Ref})
	if e.Component.Ecosystem != "" {
		kind := "transitive"
		if e.Component.Direct {
			kind = "direct"
		}
		rows = append(rows, [2]string{"Dependency", e.Component.Ecosystem + ", " + kind})
	}
	if e.Rule.Summary != "" {
		rows = append(rows, [2]string{"Rule", e.Rule.Summary})
	}
	if e.Evidence != nil && len(e.Evidence.VulnIDs) > 0 {
		rows = append(rows, [2]string{"Advisories", strings.Join(e.Evidence.VulnIDs, ", ")})
	}
	if cwes := checkTypeToCWEs(e.Rule.CheckType); len(cwes) > 0 {
		labels := make([]string, 0, len(cwes))
		for _, cwe := range cwes {
			label := fmt.Sprintf("CWE-%d", cwe)
			if name := cweName(cwe); name != "" {
				label += ": " + name
			}
			labels = append(labels, label)
		}
		rows = append(rows, [2]string{"Weakness", strings.Join(labels, "; ")})
	}

	pdf.SetFont("Helvetica", "", 9)
	for _, r := range rows {
		pdf.SetX(19)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(28, 6, r[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(60, 60, 60)
		pdf.MultiCell(0, 6, r[1], "", "L", false)
	}

	if pw.config.IncludeEvidence && e.Evidence != nil {
		if e.Evidence.Expression != "" {
			pdf.SetX(19)
			pdf.SetFont("Courier", "", 8)
			pdf.SetTextColor(80, 80, 80)
			pdf.SetFillColor(248, 250, 252)
			pdf.MultiCell(0, 5, "expr: "+e.Evidence.Expression, "", "L", true)
		}
		if e.Evidence.Observed != "" {
			pdf.SetX(19)
			pdf.SetFont("Courier", "", 8)
			pdf.SetTextColor(80, 80, 80)
			pdf.SetFillColor(248, 250, 252)
			pdf.MultiCell(0, 5, "observed: "+e.Evidence.Observed, "", "L", true)
		}
	}

	pdf.Ln(5)
}

func (pw *PDFWriter) addNoFindings(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, "Findings")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(22, 163, 74)
	pdf.CellFormat(0, 8, "No guardrail violations detected.", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, "Every component passed every applicable guardrail rule in this run.", "", "L", false)
}

// --- run configuration appendix ---

func (pw *PDFWriter) addRunConfiguration(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, "Appendix: Run Configuration")

	rows := make([][2]string, 0, 10)
	if pw.start != nil {
		if pw.start.Suite != "" {
			rows = append(rows, [2]string{"Suite", pw.start.Suite})
		}
		if pw.start.SuitePath != "" {
			rows = append(rows, [2]string{"Suite Path", pw.start.SuitePath})
		}
		if pw.start.TotalRules > 0 {
			rows = append(rows, [2]string{"Rules", fmt.Sprintf("%d", pw.start.TotalRules)})
		}
		if pw.start.Config.Concurrency > 0 {
			rows = append(rows, [2]string{"Concurrency", fmt.Sprintf("%d", pw.start.Config.Concurrency)})
		}
		if pw.start.Config.Timeout > 0 {
			rows = append(rows, [2]string{"Timeout", fmt.Sprintf("%ds", pw.start.Config.Timeout)})
		}
		if len(pw.start.Sources) > 0 {
			rows = append(rows, [2]string{"Fact Sources", strings.Join(pw.start.Sources, ", ")})
		}
		if len(pw.start.CheckTypes) > 0 {
			rows = append(rows, [2]string{"Check Types", strings.Join(pw.start.CheckTypes, ", ")})
		}
		if pw.start.Config.MinSeverity != "" {
			rows = append(rows, [2]string{"Min Severity", pw.start.Config.MinSeverity})
		}
		if pw.start.Config.Offline {
			rows = append(rows, [2]string{"Offline", "true"})
		}
	}
	if pw.summary != nil {
		rows = append(rows, [2]string{"Components", fmt.Sprintf("%d", pw.summary.Totals.Components)})
		if pw.summary.ExitReason != "" {
			rows = append(rows, [2]string{"Exit Reason", pw.summary.ExitReason})
		}
	}

	if len(rows) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, "No configuration data recorded for this run.", "", 1, "L", false, 0, "")
		return
	}

	for i, r := range rows {
		if i%2 == 0 {
			pdf.SetFillColor(248, 250, 252)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(45, 8, r[0], "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 8, r[1], "1", 1, "L", true, 0, "")
	}
}

// --- methodology appendix ---

func (pw *PDFWriter) addMethodology(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, "Appendix: Evaluation Methodology")

	steps := []struct {
		title string
		body  string
	}{
		{"1. FACT COLLECTION", "Component metadata is gathered from the configured fact " +
			"sources: vulnerability advisories by severity tier, OpenSSF Scorecard check " +
			"results, popularity and maintenance signals, license and provenance data. " +
			"Facts are frozen into immutable per-component snapshots before any rule runs."},
		{"2. RULE EVALUATION", "Each guardrail rule is a boolean expression over the fact " +
			"snapshot. Rules evaluate independently; one rule's failure never blocks " +
			"another. Expressions short-circuit and report an error when they touch a " +
			"fact the snapshot does not carry."},
		{"3. RISK SCORING", "Violations are weighted by rule severity and aggregated into " +
			"a 0-100 risk score for the dependency set, along with a clean-rate " +
			"percentage of evaluations that passed."},
		{"4. SEVERITY CLASSIFICATION", "Each rule carries a severity: critical, high, " +
			"medium, low, or info. Severity drives exit-code policy, report ordering, " +
			"and alert routing."},
	}

	for _, step := range steps {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(30, 41, 59)
		pdf.CellFormat(0, 8, step.title, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(80, 80, 80)
		pdf.MultiCell(0, 5, step.body, "", "L", false)
		pdf.Ln(3)
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 8, "Grading Scale", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	grades := []string{
		"A+ / A / A-: clean or near-clean dependency set, keep monitoring",
		"B: isolated low-severity violations, schedule upgrades in normal planning",
		"C: multiple violations, prioritize the flagged components",
		"D: widespread violations, dependency hygiene needs a dedicated effort",
		"F: critical violations present, gate releases until resolved",
	}
	for _, g := range grades {
		pdf.CellFormat(0, 6, g, "", 1, "L", false, 0, "")
	}
}

// --- shared helpers ---

// addSectionHeader draws the standard dark section banner.
func (pw *PDFWriter) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, "  "+title, "", 1, "L", true, 0, "")
	pdf.Ln(4)
	pdf.SetTextColor(60, 60, 60)
}

// getGradeColor returns the RGB color for a risk grade.
func (pw *PDFWriter) getGradeColor(grade string) []int {
	switch {
	case strings.HasPrefix(grade, "A"):
		return []int{22, 163, 74}
	case strings.HasPrefix(grade, "B"):
		return []int{202, 138, 4}
	case strings.HasPrefix(grade, "C"):
		return []int{234, 88, 12}
	default:
		return []int{220, 38, 38}
	}
}

// titleCaserFor returns a title-casing function for display labels.
func titleCaserFor() func(string) string {
	return cases.Title(language.English).String
}

// truncateString shortens s to at most maxLen bytes, ellipsizing.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return strings.Repeat(".", maxLen)
	}
	return s[:maxLen-3] + "..."
}

// formatDuration renders seconds as "5.3s", "2m 5s", or "1h 2m 3s".
func formatDuration(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}
