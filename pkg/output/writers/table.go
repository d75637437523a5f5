package writers

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*TableWriter)(nil)

// TableMode selects how much the table writer prints.
type TableMode string

const (
	// TableModeSummary prints the final summary tables only.
	TableModeSummary TableMode = "summary"

	// TableModeDetailed prints the summary plus a row per violation
	// and evaluation error.
	TableModeDetailed TableMode = "detailed"

	// TableModeMinimal prints a single result line.
	TableModeMinimal TableMode = "minimal"

	// TableModeStreaming prints violations as they happen, then the
	// summary.
	TableModeStreaming TableMode = "streaming"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	// ColorAuto enables color when writing to a terminal.
	ColorAuto ColorMode = "auto"

	// ColorAlways forces color on.
	ColorAlways ColorMode = "always"

	// ColorNever forces color off.
	ColorNever ColorMode = "never"
)

// TableConfig configures the table writer.
type TableConfig struct {
	// Mode selects the output style (default: summary).
	Mode TableMode

	// Color controls ANSI colors (default: auto).
	Color ColorMode

	// Width is the table width in columns (default: 76).
	Width int

	// ASCII forces plain ASCII box drawing instead of Unicode.
	ASCII bool

	// ShowPasses also lists passing evaluations in detailed mode.
	ShowPasses bool

	// MaxRows caps the violation rows printed (default: 25, 0 = all).
	MaxRows int
}

// TableWriter renders guardrail results as human-readable tables.
// It is the default writer for interactive terminal runs. Summary and
// detailed modes buffer until Close; streaming mode prints violations
// as evaluation events arrive.
type TableWriter struct {
	w       io.Writer
	mu      sync.Mutex
	config  TableConfig
	color   bool
	ascii   bool
	chars   boxCharset
	rows    []*events.EvaluationEvent
	summary *events.SummaryEvent
	start   *events.StartEvent
	sources []*events.SourceEvent
}

// ANSI escape sequences.
const (
	ansiReset   = "\033[0m"
	ansiBold    = "\033[1m"
	ansiDim     = "\033[2m"
	ansiRed     = "\033[31m"
	ansiGreen   = "\033[32m"
	ansiYellow  = "\033[33m"
	ansiBlue    = "\033[34m"
	ansiMagenta = "\033[35m"
	ansiCyan    = "\033[36m"
)

var ansiPattern = regexp.MustCompile(`\033\[[0-9;]*m`)

// boxCharset holds the characters used to draw table borders.
type boxCharset struct {
	topLeft, topRight       string
	bottomLeft, bottomRight string
	horizontal, vertical    string
	teeLeft, teeRight       string
}

var (
	unicodeChars = boxCharset{"┌", "┐", "└", "┘", "─", "│", "├", "┤"}
	asciiChars   = boxCharset{"+", "+", "+", "+", "-", "|", "+", "+"}
)

// NewTableWriter creates a table writer with the given configuration.
// The writer is safe for concurrent use.
func NewTableWriter(w io.Writer, config TableConfig) *TableWriter {
	if config.Mode == "" {
		config.Mode = TableModeSummary
	}
	if config.Color == "" {
		config.Color = ColorAuto
	}
	if config.Width <= 0 {
		config.Width = 76
	}
	if config.MaxRows == 0 {
		config.MaxRows = 25
	}
	ascii := config.ASCII || !unicodeSupported(w)
	chars := unicodeChars
	if ascii {
		chars = asciiChars
	}
	return &TableWriter{
		w:      w,
		config: config,
		color:  detectColorSupport(w, config.Color),
		ascii:  ascii,
		chars:  chars,
	}
}

// detectColorSupport decides whether to emit ANSI colors.
// NO_COLOR and FORCE_COLOR follow the informal conventions at
// https://no-color.org; otherwise color requires a terminal.
func detectColorSupport(w io.Writer, mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Write collects events for rendering. Streaming mode prints violation
// rows immediately; other modes buffer everything until Close.
func (tw *TableWriter) Write(event events.Event) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	switch e := event.(type) {
	case *events.StartEvent:
		tw.start = e
		if tw.config.Mode == TableModeStreaming {
			return tw.printStreamHeader(e)
		}
	case *events.EvaluationEvent:
		if e.Result.Outcome == events.OutcomePass && !tw.config.ShowPasses {
			return nil
		}
		if tw.config.Mode == TableModeStreaming {
			return tw.printStreamRow(e)
		}
		tw.rows = append(tw.rows, e)
	case *events.SourceEvent:
		tw.sources = append(tw.sources, e)
		if tw.config.Mode == TableModeStreaming {
			return tw.printSourceRow(e)
		}
	case *events.SummaryEvent:
		tw.summary = e
	}
	return nil
}

// Flush is a no-op; rendering happens on Close or per-row in streaming mode.
func (tw *TableWriter) Flush() error { return nil }

// Close renders the buffered results.
func (tw *TableWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	var err error
	switch tw.config.Mode {
	case TableModeMinimal:
		err = tw.writeMinimal()
	case TableModeDetailed:
		err = tw.writeDetailed()
	case TableModeStreaming:
		err = tw.writeSummaryTables()
	default:
		err = tw.writeSummaryTables()
	}
	if err != nil {
		return err
	}

	if closer, ok := tw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for the event types the table renders.
func (tw *TableWriter) SupportsEvent(eventType events.EventType) bool {
	switch eventType {
	case events.EventTypeStart, events.EventTypeEvaluation,
		events.EventTypeSource, events.EventTypeSummary:
		return true
	}
	return false
}

// --- streaming rendering ---

func (tw *TableWriter) printStreamHeader(e *events.StartEvent) error {
	suite := e.Suite
	if suite == "" {
		suite = "guardrails"
	}
	line := fmt.Sprintf("%s %s  suite=%s rules=%d components=%d",
		tw.paint(defaults.ToolNameDisplay, ansiBold),
		tw.paint("v"+defaults.Version, ansiDim),
		suite, e.TotalRules, e.TotalComponents)
	_, err := fmt.Fprintln(tw.w, line)
	return err
}

func (tw *TableWriter) printStreamRow(e *events.EvaluationEvent) error {
	var tag, color string
	switch e.Result.Outcome {
	case events.OutcomeTriggered:
		tag, color = "FAIL", ansiRed
	case events.OutcomeError:
		tag, color = "ERR ", ansiYellow
	case events.OutcomeSkipped:
		tag, color = "SKIP", ansiDim
	default:
		tag, color = "PASS", ansiGreen
	}
	line := fmt.Sprintf("%s %s %s %s",
		tw.paint(tag, ansiBold+color),
		tw.paintSeverity(e.Rule.Severity),
		e.Rule.Name,
		tw.paint(e.Component.Ref, ansiCyan))
	if e.Result.Outcome == events.OutcomeError && e.Result.Err != "" {
		line += tw.paint("  "+e.Result.Err, ansiDim)
	}
	_, err := fmt.Fprintln(tw.w, line)
	return err
}

func (tw *TableWriter) printSourceRow(e *events.SourceEvent) error {
	line := fmt.Sprintf("%s source %s %s",
		tw.paint("WARN", ansiBold+ansiYellow), e.Source, e.Condition)
	if e.Detail != "" {
		line += tw.paint("  "+e.Detail, ansiDim)
	}
	_, err := fmt.Fprintln(tw.w, line)
	return err
}

// --- minimal rendering ---

func (tw *TableWriter) writeMinimal() error {
	if tw.summary == nil {
		_, err := fmt.Fprintln(tw.w, "no summary available")
		return err
	}
	s := tw.summary
	status := tw.paint("PASS", ansiBold+ansiGreen)
	if s.Totals.Violations > 0 {
		status = tw.paint("FAIL", ansiBold+ansiRed)
	} else if s.Totals.Errors > 0 {
		status = tw.paint("ERROR", ansiBold+ansiYellow)
	}
	_, err := fmt.Fprintf(tw.w, "%s %d components, %d evaluations, %d violations, %d errors, grade %s (%.1f%%)\n",
		status, s.Totals.Components, s.Totals.Evaluations,
		s.Totals.Violations, s.Totals.Errors, s.Risk.Grade, s.Risk.CleanRatePct)
	return err
}

// --- detailed rendering ---

func (tw *TableWriter) writeDetailed() error {
	if err := tw.writeViolationRows(); err != nil {
		return err
	}
	return tw.writeSummaryTables()
}

func (tw *TableWriter) writeViolationRows() error {
	if len(tw.rows) == 0 {
		return nil
	}

	sorted := make([]*events.EvaluationEvent, len(tw.rows))
	copy(sorted, tw.rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := sorted[i].Rule.Severity.Score(), sorted[j].Rule.Severity.Score()
		if si != sj {
			return si > sj
		}
		return sorted[i].Component.Ref < sorted[j].Component.Ref
	})

	tw.printSectionTitle("Findings")
	limit := len(sorted)
	if tw.config.MaxRows > 0 && limit > tw.config.MaxRows {
		limit = tw.config.MaxRows
	}
	for _, e := range sorted[:limit] {
		if err := tw.printStreamRow(e); err != nil {
			return err
		}
	}
	if limit < len(sorted) {
		_, err := fmt.Fprintln(tw.w, tw.paint(
			fmt.Sprintf("  ... and %d more", len(sorted)-limit), ansiDim))
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(tw.w)
	return err
}

// --- summary rendering ---

func (tw *TableWriter) writeSummaryTables() error {
	if tw.summary == nil {
		_, err := fmt.Fprintln(tw.w, "no summary available")
		return err
	}
	s := tw.summary

	if err := tw.printBanner(); err != nil {
		return err
	}
	if err := tw.printSuiteInfo(s); err != nil {
		return err
	}
	if err := tw.printTotals(s); err != nil {
		return err
	}
	if err := tw.printRisk(s); err != nil {
		return err
	}
	if err := tw.printSeverityBreakdown(s); err != nil {
		return err
	}
	if err := tw.printCheckTypeBreakdown(s); err != nil {
		return err
	}
	if err := tw.printTopViolations(s); err != nil {
		return err
	}
	if err := tw.printSourceWarnings(); err != nil {
		return err
	}
	return tw.printFooter(s)
}

func (tw *TableWriter) printBanner() error {
	title := defaults.ToolNameDisplay + " Guardrail Report"
	w := tw.config.Width
	top := tw.chars.topLeft + strings.Repeat(tw.chars.horizontal, w-2) + tw.chars.topRight
	mid := tw.chars.vertical + tw.paint(centerText(title, w-2), ansiBold) + tw.chars.vertical
	bot := tw.chars.bottomLeft + strings.Repeat(tw.chars.horizontal, w-2) + tw.chars.bottomRight
	_, err := fmt.Fprintf(tw.w, "%s\n%s\n%s\n", top, mid, bot)
	return err
}

func (tw *TableWriter) printSuiteInfo(s *events.SummaryEvent) error {
	fp := s.Suite.Fingerprint
	if len(fp) > 12 {
		fp = fp[:12]
	}
	line := fmt.Sprintf("  Suite: %s (%d rules", s.Suite.Name, s.Suite.Rules)
	if s.Suite.Skipped > 0 {
		line += fmt.Sprintf(", %s", tw.paint(fmt.Sprintf("%d skipped", s.Suite.Skipped), ansiYellow))
	}
	line += ")"
	if fp != "" {
		line += tw.paint("  "+fp, ansiDim)
	}
	_, err := fmt.Fprintf(tw.w, "\n%s\n\n", line)
	return err
}

func (tw *TableWriter) printTotals(s *events.SummaryEvent) error {
	tw.printSectionTitle("Totals")
	rows := []struct {
		label string
		value string
	}{
		{"Components", fmt.Sprintf("%d", s.Totals.Components)},
		{"Evaluations", fmt.Sprintf("%d", s.Totals.Evaluations)},
		{"Violations", tw.paintCount(s.Totals.Violations, ansiRed)},
		{"Passes", tw.paint(fmt.Sprintf("%d", s.Totals.Passes), ansiGreen)},
		{"Errors", tw.paintCount(s.Totals.Errors, ansiYellow)},
		{"Skipped", fmt.Sprintf("%d", s.Totals.Skipped)},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw.w, "  %-14s %s\n", r.label, r.value); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(tw.w)
	return err
}

func (tw *TableWriter) printRisk(s *events.SummaryEvent) error {
	tw.printSectionTitle("Risk")
	barWidth := tw.config.Width - 30
	if barWidth < 10 {
		barWidth = 10
	}
	bar := tw.renderBar(s.Risk.Score/100.0, barWidth)
	grade := tw.paint(s.Risk.Grade, ansiBold+tw.gradeColor(s.Risk.Grade))
	if _, err := fmt.Fprintf(tw.w, "  Score %5.1f/100  %s  Grade %s\n",
		s.Risk.Score, bar, grade); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tw.w, "  Clean rate %.1f%%\n", s.Risk.CleanRatePct); err != nil {
		return err
	}
	if s.Risk.Recommendation != "" {
		if _, err := fmt.Fprintf(tw.w, "  %s\n", tw.paint(s.Risk.Recommendation, ansiDim)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(tw.w)
	return err
}

func (tw *TableWriter) printSeverityBreakdown(s *events.SummaryEvent) error {
	if len(s.Breakdown.BySeverity) == 0 {
		return nil
	}
	tw.printSectionTitle("By Severity")
	barWidth := tw.config.Width - 44
	if barWidth < 10 {
		barWidth = 10
	}
	for _, name := range events.OrderedStrings() {
		stats, ok := s.Breakdown.BySeverity[name]
		if !ok || stats.Total == 0 {
			continue
		}
		frac := 0.0
		if stats.Total > 0 {
			frac = float64(stats.Violations) / float64(stats.Total)
		}
		sev := events.Severity(name)
		if _, err := fmt.Fprintf(tw.w, "  %s %s %4d/%-4d violations\n",
			tw.padSeverity(sev), tw.renderBar(frac, barWidth),
			stats.Violations, stats.Total); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(tw.w)
	return err
}

func (tw *TableWriter) printCheckTypeBreakdown(s *events.SummaryEvent) error {
	if len(s.Breakdown.ByCheckType) == 0 {
		return nil
	}
	tw.printSectionTitle("By Check")
	names := make([]string, 0, len(s.Breakdown.ByCheckType))
	for name := range s.Breakdown.ByCheckType {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats := s.Breakdown.ByCheckType[name]
		readable := defaults.GetCategoryReadableName(name)
		count := tw.paintCount(stats.Violations, ansiRed)
		if _, err := fmt.Fprintf(tw.w, "  %-24s %s violations / %d checks (%.1f%% clean)\n",
			readable, count, stats.Total, stats.CleanRate); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(tw.w)
	return err
}

func (tw *TableWriter) printTopViolations(s *events.SummaryEvent) error {
	if len(s.TopViolations) == 0 {
		return nil
	}
	tw.printSectionTitle("Top Violations")
	for i, v := range s.TopViolations {
		if tw.config.MaxRows > 0 && i >= tw.config.MaxRows {
			_, err := fmt.Fprintln(tw.w, tw.paint(
				fmt.Sprintf("  ... and %d more", len(s.TopViolations)-i), ansiDim))
			if err != nil {
				return err
			}
			break
		}
		if _, err := fmt.Fprintf(tw.w, "  %s %-28s %s\n",
			tw.padSeverity(v.Severity), truncate(v.RuleName, 28),
			tw.paint(v.Component, ansiCyan)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(tw.w)
	return err
}

func (tw *TableWriter) printSourceWarnings() error {
	if len(tw.sources) == 0 {
		return nil
	}
	tw.printSectionTitle("Fact Sources")
	for _, e := range tw.sources {
		line := fmt.Sprintf("  %s %s: %s", tw.paint("!", ansiYellow), e.Source, e.Condition)
		if e.Detail != "" {
			line += " (" + e.Detail + ")"
		}
		if _, err := fmt.Fprintln(tw.w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(tw.w)
	return err
}

func (tw *TableWriter) printFooter(s *events.SummaryEvent) error {
	line := fmt.Sprintf("  Completed in %.1fs", s.Timing.DurationSec)
	if s.Timing.ComponentsPerSec > 0 {
		line += fmt.Sprintf(" (%.1f components/s)", s.Timing.ComponentsPerSec)
	}
	if s.ExitReason != "" {
		line += tw.paint("  exit: "+s.ExitReason, ansiDim)
	}
	_, err := fmt.Fprintf(tw.w, "%s\n", line)
	return err
}

// --- helpers ---

func (tw *TableWriter) printSectionTitle(title string) {
	fmt.Fprintf(tw.w, "%s %s %s\n",
		tw.chars.teeLeft+tw.chars.horizontal,
		tw.paint(title, ansiBold),
		strings.Repeat(tw.chars.horizontal, max(0, tw.config.Width-len(title)-5))+tw.chars.teeRight)
}

// paint wraps s in the given ANSI sequence when color is enabled.
func (tw *TableWriter) paint(s, color string) string {
	if !tw.color || color == "" {
		return s
	}
	return color + s + ansiReset
}

// paintCount colors a count only when it is nonzero.
func (tw *TableWriter) paintCount(n int, color string) string {
	s := fmt.Sprintf("%d", n)
	if n == 0 {
		return s
	}
	return tw.paint(s, ansiBold+color)
}

func (tw *TableWriter) paintSeverity(sev events.Severity) string {
	return tw.paint(string(sev), tw.severityColor(sev))
}

// padSeverity renders the severity in a fixed-width colored cell.
func (tw *TableWriter) padSeverity(sev events.Severity) string {
	return tw.paint(fmt.Sprintf("%-8s", sev), tw.severityColor(sev))
}

func (tw *TableWriter) severityColor(sev events.Severity) string {
	switch sev {
	case events.SeverityCritical:
		return ansiBold + ansiMagenta
	case events.SeverityHigh:
		return ansiRed
	case events.SeverityMedium:
		return ansiYellow
	case events.SeverityLow:
		return ansiBlue
	default:
		return ansiDim
	}
}

func (tw *TableWriter) gradeColor(grade string) string {
	switch {
	case strings.HasPrefix(grade, "A"):
		return ansiGreen
	case strings.HasPrefix(grade, "B"):
		return ansiCyan
	case strings.HasPrefix(grade, "C"):
		return ansiYellow
	case strings.HasPrefix(grade, "D"):
		return ansiMagenta
	default:
		return ansiRed
	}
}

// renderBar draws a horizontal bar for frac in [0, 1].
func (tw *TableWriter) renderBar(frac float64, width int) string {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac*float64(width) + 0.5)
	fill, rest := "█", "░"
	if tw.ascii {
		fill, rest = "#", "."
	}
	color := ansiGreen
	if frac >= 0.5 {
		color = ansiRed
	} else if frac >= 0.2 {
		color = ansiYellow
	}
	return tw.paint(strings.Repeat(fill, filled), color) +
		tw.paint(strings.Repeat(rest, width-filled), ansiDim)
}

// stripANSI removes ANSI escape sequences, used when measuring text width.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// centerText pads s with spaces to center it in width columns.
func centerText(s string, width int) string {
	visible := len([]rune(stripANSI(s)))
	if visible >= width {
		return s
	}
	left := (width - visible) / 2
	right := width - visible - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// truncate shortens s to at most n runes, appending an ellipsis marker.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
