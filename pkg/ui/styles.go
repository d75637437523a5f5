package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ANSI escape codes for simple terminal output (CLI commands)
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
	BoldRed = "\033[1;31m"
)

// Color palette inspired by top security tools
var (
	// Brand colors
	Primary   = lipgloss.Color("#7D56F4") // Purple - brand color
	Secondary = lipgloss.Color("#00D4AA") // Cyan/Teal

	// Severity colors (OSV/OpenSSF-style ordering)
	Critical = lipgloss.Color("#FF0000") // Bright red
	High     = lipgloss.Color("#FF6B6B") // Red/Orange
	Medium   = lipgloss.Color("#FFD93D") // Yellow
	Low      = lipgloss.Color("#6BCB77") // Green
	Info     = lipgloss.Color("#4D96FF") // Blue

	// Status colors
	Success = lipgloss.Color("#00D26A") // Bright green
	Warning = lipgloss.Color("#FFB800") // Amber
	Error   = lipgloss.Color("#FF3838") // Red
	Muted   = lipgloss.Color("#6B7280") // Gray

	// Outcome colors
	Pass      = lipgloss.Color("#00D26A") // Green - guardrail satisfied
	Triggered = lipgloss.Color("#FF3838") // Red - guardrail violation
	Errored   = lipgloss.Color("#FFB800") // Yellow - evaluation error
	Skipped   = lipgloss.Color("#6B7280") // Gray - rule never ran

	// Risk grade colors
	GradeA = lipgloss.Color("#00D26A") // Green
	GradeB = lipgloss.Color("#6BCB77") // Light green
	GradeC = lipgloss.Color("#FFD93D") // Yellow
	GradeD = lipgloss.Color("#FF6B6B") // Orange
	GradeF = lipgloss.Color("#FF3838") // Red

	// Background colors
	DarkBg  = lipgloss.Color("#1A1A2E")
	LightBg = lipgloss.Color("#16213E")
)

// Pre-configured styles
var (
	// Title and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	// Banner style
	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	// Version badge
	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	// Section headers
	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			MarginTop(1)

	// Configuration display
	ConfigLabelStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Width(15)

	ConfigValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FAFAFA"))

	// Progress bar
	ProgressFullStyle = lipgloss.NewStyle().
				Foreground(Primary)

	ProgressEmptyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#3B3B4F"))

	// Statistics
	StatLabelStyle = lipgloss.NewStyle().
			Foreground(Muted)

	StatValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true)

	// Bracketed metadata (nuclei-style)
	BracketStyle = lipgloss.NewStyle().
			Foreground(Muted)

	// Outcome styles
	PassStyle = lipgloss.NewStyle().
			Foreground(Pass).
			Bold(true)

	TriggeredStyle = lipgloss.NewStyle().
			Foreground(Triggered).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Errored).
			Bold(true)

	SkippedStyle = lipgloss.NewStyle().
			Foreground(Skipped)

	// Divider
	DividerStyle = lipgloss.NewStyle().
			Foreground(Muted)

	// Help/footer
	HelpStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	// URL style
	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)

	// Check type badge
	CheckStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#3B3B4F")).
			Padding(0, 1)

	// Spinner frames
	SpinnerStyle = lipgloss.NewStyle().
			Foreground(Primary)
)

// SeverityStyle returns the appropriate style for a severity level.
// Severity names are canonical lowercase; mixed case is accepted.
func SeverityStyle(severity string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch strings.ToLower(severity) {
	case "critical":
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(Critical)
	case "high":
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(High)
	case "medium":
		return base.Foreground(lipgloss.Color("#000000")).Background(Medium)
	case "low":
		return base.Foreground(lipgloss.Color("#000000")).Background(Low)
	case "info":
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(Info)
	default:
		return base.Foreground(Muted)
	}
}

// GradeStyle returns the appropriate style for a risk letter grade
// ("A" through "F", with optional +/- suffix).
func GradeStyle(grade string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	if grade == "" {
		return base.Foreground(Muted)
	}
	switch grade[0] {
	case 'A':
		return base.Foreground(GradeA)
	case 'B':
		return base.Foreground(GradeB)
	case 'C':
		return base.Foreground(GradeC)
	case 'D':
		return base.Foreground(GradeD)
	case 'F':
		return base.Foreground(GradeF)
	default:
		return base.Foreground(Muted)
	}
}

// ScoreStyle returns the appropriate style for an OpenSSF scorecard
// score (0-10 scale, higher is better).
func ScoreStyle(score float64) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch {
	case score >= 8:
		return base.Foreground(GradeA)
	case score >= 5:
		return base.Foreground(GradeC)
	case score >= 2.5:
		return base.Foreground(GradeD)
	case score >= 0:
		return base.Foreground(GradeF)
	default:
		return base.Foreground(Muted)
	}
}

// OutcomeStyle returns the appropriate style for evaluation outcomes.
// Outcome names are canonical lowercase; mixed case is accepted.
func OutcomeStyle(outcome string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch strings.ToLower(outcome) {
	case "pass":
		return base.Foreground(Pass)
	case "triggered":
		return base.Foreground(Triggered)
	case "error":
		return base.Foreground(Errored)
	case "skipped":
		return base.Foreground(Skipped)
	default:
		return base.Foreground(Muted)
	}
}
