package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ResultFormatter formats evaluation results for display
type ResultFormatter struct {
	verbose        bool
	showExpression bool
}

// NewResultFormatter creates a new result formatter
func NewResultFormatter(verbose, showExpression bool) *ResultFormatter {
	return &ResultFormatter{
		verbose:        verbose,
		showExpression: showExpression,
	}
}

// FormatResult formats a single evaluation result in nuclei-style
// Output: [severity] [check] [outcome] rule-name component [latency]
func (rf *ResultFormatter) FormatResult(rule, check, severity, outcome, component string, latencyMs int64, expression string) string {
	var parts []string

	// Severity badge
	sevStyle := SeverityStyle(severity)
	parts = append(parts, BracketStyle.Render("[")+sevStyle.Render(strings.ToLower(severity))+BracketStyle.Render("]"))

	// Check type
	parts = append(parts, BracketStyle.Render("[")+CheckStyle.Render(check)+BracketStyle.Render("]"))

	// Outcome
	outcomeStyle := OutcomeStyle(outcome)
	parts = append(parts, BracketStyle.Render("[")+outcomeStyle.Render(strings.ToLower(outcome))+BracketStyle.Render("]"))

	// Rule name
	parts = append(parts, StatValueStyle.Render(rule))

	// Component under evaluation
	if component != "" {
		parts = append(parts, ConfigValueStyle.Render(component))
	}

	// Latency
	latencyStr := formatLatency(latencyMs)
	parts = append(parts, BracketStyle.Render("[")+StatLabelStyle.Render(latencyStr)+BracketStyle.Render("]"))

	result := strings.Join(parts, " ")

	// Add expression if verbose
	if rf.showExpression && expression != "" {
		truncatedExpr := truncateString(expression, 60)
		result += "\n      " + SubtitleStyle.Render("-> "+truncatedExpr)
	}

	return result
}

// FormatViolation formats a triggered guardrail with more detail
func (rf *ResultFormatter) FormatViolation(rule, check, severity, component string, latencyMs int64, summary string) string {
	output := strings.Builder{}

	// Header line
	output.WriteString(TriggeredStyle.Render("  [X] GUARDRAIL TRIGGERED"))
	output.WriteString("\n")

	// Details
	output.WriteString(fmt.Sprintf("    %s %s\n",
		ConfigLabelStyle.Render("Rule:"),
		StatValueStyle.Render(rule),
	))
	output.WriteString(fmt.Sprintf("    %s %s\n",
		ConfigLabelStyle.Render("Check:"),
		CheckStyle.Render(check),
	))
	output.WriteString(fmt.Sprintf("    %s %s\n",
		ConfigLabelStyle.Render("Severity:"),
		SeverityStyle(severity).Render(strings.ToLower(severity)),
	))
	output.WriteString(fmt.Sprintf("    %s %s\n",
		ConfigLabelStyle.Render("Component:"),
		ConfigValueStyle.Render(component),
	))
	output.WriteString(fmt.Sprintf("    %s %s\n",
		ConfigLabelStyle.Render("Latency:"),
		StatLabelStyle.Render(formatLatency(latencyMs)),
	))

	if summary != "" {
		output.WriteString(fmt.Sprintf("    %s %s\n",
			ConfigLabelStyle.Render("Summary:"),
			SubtitleStyle.Render(truncateString(summary, 80)),
		))
	}

	return output.String()
}

// FormatError formats an evaluation error result
func (rf *ResultFormatter) FormatError(rule, check, errorMsg string) string {
	return fmt.Sprintf("  %s %s %s %s: %s",
		ErrorStyle.Render("!"),
		BracketStyle.Render("[")+CheckStyle.Render(check)+BracketStyle.Render("]"),
		StatValueStyle.Render(rule),
		ErrorStyle.Render("Error"),
		SubtitleStyle.Render(truncateString(errorMsg, 50)),
	)
}

// formatLatency formats latency in a human-readable way
func formatLatency(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}

// truncateString truncates a string with ellipsis
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// GradeBracket returns a formatted risk grade bracket
func GradeBracket(grade string) string {
	return GradeStyle(grade).Render(grade)
}

// Summary holds run summary data
type Summary struct {
	Evaluations  int
	Passed       int
	Violations   int
	Errors       int
	Skipped      int
	Components   int
	Duration     time.Duration
	EvalsPerSec  float64
	ManifestPath string
	SuiteName    string
	MinSeverity  string
	RiskGrade    string
}

// PrintSummary prints a beautiful summary box
func PrintSummary(s Summary) {
	fmt.Println()
	PrintSection("Evaluation Summary")
	fmt.Println()

	// Manifest info
	if s.ManifestPath != "" {
		fmt.Printf("  %s %s\n",
			ConfigLabelStyle.Render("Manifest:"),
			URLStyle.Render(s.ManifestPath),
		)
	}

	if s.SuiteName != "" {
		fmt.Printf("  %s %s\n",
			ConfigLabelStyle.Render("Suite:"),
			CheckStyle.Render(s.SuiteName),
		)
	}

	if s.MinSeverity != "" {
		fmt.Printf("  %s %s\n",
			ConfigLabelStyle.Render("Severity:"),
			SeverityStyle(s.MinSeverity).Render(strings.ToLower(s.MinSeverity)+"+"),
		)
	}

	fmt.Println()

	// Results box - simple fixed-width layout
	// Use simple ASCII to avoid Unicode width issues
	boxWidth := 50

	topBorder := "+" + strings.Repeat("-", boxWidth-2) + "+"
	bottomBorder := "+" + strings.Repeat("-", boxWidth-2) + "+"
	separator := "+" + strings.Repeat("-", boxWidth-2) + "+"

	fmt.Println(BracketStyle.Render("  " + topBorder))

	// Simple row format: "|  Label:          Value                    |"
	printRow := func(label string, value string, valueStyle lipgloss.Style) {
		// Fixed widths: label=18, value fills rest
		const labelW = 18
		const totalInner = 46 // boxWidth - 4 for borders and spaces

		// Pad label to fixed width
		labelPadded := label
		for len(labelPadded) < labelW {
			labelPadded += " "
		}

		// Calculate value padding (use rune count for visible width)
		valueW := totalInner - labelW
		valuePadded := value
		for len([]rune(valuePadded)) < valueW {
			valuePadded += " "
		}

		fmt.Printf("  |  %s%s|\n",
			StatLabelStyle.Render(labelPadded),
			valueStyle.Render(valuePadded),
		)
	}

	// Total evaluations
	printRow("Evaluations:", fmt.Sprintf("%d", s.Evaluations), StatValueStyle)
	if s.Components > 0 {
		printRow("Components:", fmt.Sprintf("%d", s.Components), StatValueStyle)
	}

	// Separator
	fmt.Println(BracketStyle.Render("  " + separator))

	// Results breakdown - use simple text symbols
	printRow("Passed:", fmt.Sprintf("[OK] %d", s.Passed), PassStyle)
	printRow("Violations:", fmt.Sprintf("[!!] %d", s.Violations), TriggeredStyle)
	printRow("Errors:", fmt.Sprintf("[??] %d", s.Errors), ErrorStyle)
	printRow("Skipped:", fmt.Sprintf("[--] %d", s.Skipped), SkippedStyle)

	// Separator
	fmt.Println(BracketStyle.Render("  " + separator))

	// Performance stats
	printRow("Duration:", formatDuration(s.Duration), StatValueStyle)
	printRow("Evals/sec:", fmt.Sprintf("%.1f", s.EvalsPerSec), StatValueStyle)
	if s.RiskGrade != "" {
		printRow("Risk Grade:", s.RiskGrade, GradeStyle(s.RiskGrade))
	}

	fmt.Println(BracketStyle.Render("  " + bottomBorder))

	// Clean rate = Passed / (Passed + Violations)
	// This measures what % of decided guardrail checks came back clean
	fmt.Println()
	decided := s.Passed + s.Violations
	var cleanRate float64
	if decided > 0 {
		cleanRate = float64(s.Passed) / float64(decided) * 100
	} else {
		cleanRate = 0 // No decided evaluations
	}
	PrintCleanRate(cleanRate)

	// Final verdict
	fmt.Println()
	if s.Violations > 0 {
		PrintError(fmt.Sprintf("%d guardrail violations found - Review required!", s.Violations))
	} else if s.Evaluations > 0 && s.Errors > s.Evaluations/10 {
		PrintWarning("High error rate detected - check fact sources")
	} else {
		PrintSuccess("All guardrails passed - dependency set is clean")
	}
	fmt.Println()
}

// PrintCleanRate prints a visual clean-rate meter
func PrintCleanRate(percent float64) {
	barWidth := 25

	var color lipgloss.Color
	var icon string
	switch {
	case percent >= 99:
		color = lipgloss.Color("#00D26A")
		icon = "[+]"
	case percent >= 95:
		color = lipgloss.Color("#6BCB77")
		icon = "[+]"
	case percent >= 90:
		color = lipgloss.Color("#FFD93D")
		icon = "[!]"
	case percent >= 80:
		color = lipgloss.Color("#FF6B6B")
		icon = "[!]"
	default:
		color = lipgloss.Color("#FF0000")
		icon = "[X]"
	}

	filled := int(float64(barWidth) * percent / 100)
	bar := strings.Builder{}
	for i := 0; i < barWidth; i++ {
		if i < filled {
			bar.WriteString(lipgloss.NewStyle().Foreground(color).Render("#"))
		} else {
			bar.WriteString(ProgressEmptyStyle.Render("."))
		}
	}

	percentStyle := lipgloss.NewStyle().Foreground(color).Bold(true)

	// Print on single line - avoid style rendering issues
	labelStyled := StatLabelStyle.Render("Clean Rate: ")
	fmt.Printf("  %s%s %s %s %s\n",
		labelStyled,
		bar.String(),
		percentStyle.Render(fmt.Sprintf("%.1f%%", percent)),
		icon,
		getCleanRateRating(percent),
	)
}

// getCleanRateRating returns a text rating for the clean rate
func getCleanRateRating(percent float64) string {
	switch {
	case percent >= 99:
		return PassStyle.Render("Excellent")
	case percent >= 95:
		return PassStyle.Render("Good")
	case percent >= 90:
		return ErrorStyle.Render("Fair")
	case percent >= 80:
		return ErrorStyle.Render("Poor")
	default:
		return TriggeredStyle.Render("Critical")
	}
}

// padRight pads a string to the right to reach a specific width
// Uses lipgloss.Width to correctly measure visible width (excludes ANSI codes)
func padRight(s string, width int) string {
	visibleWidth := lipgloss.Width(s)
	padding := width - visibleWidth
	if padding <= 0 {
		return s
	}
	return s + strings.Repeat(" ", padding)
}

// PrintLiveResult prints a single result during execution (for verbose mode)
func PrintLiveResult(outcome, rule, check, severity, component string) {
	switch strings.ToLower(outcome) {
	case "triggered":
		fmt.Printf("\n  %s %s %s %s %s\n",
			TriggeredStyle.Render("[X]"),
			SeverityStyle(severity).Render(strings.ToLower(severity)),
			BracketStyle.Render("[")+CheckStyle.Render(check)+BracketStyle.Render("]"),
			StatValueStyle.Render(rule),
			ConfigValueStyle.Render(component),
		)
	case "error":
		fmt.Printf("\n  %s %s %s\n",
			ErrorStyle.Render("[!]"),
			BracketStyle.Render("[")+CheckStyle.Render(check)+BracketStyle.Render("]"),
			StatValueStyle.Render(rule),
		)
	}
}
