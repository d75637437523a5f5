package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Version information - these can be overridden at build time via ldflags:
// go build -ldflags "-X github.com/depgate/depgate/pkg/ui.Version=1.0.0"
var (
	Version   = "1.4.2"
	BuildDate = "2026-08-12"
	Commit    = "dev"
)

const (
	Author  = "DepGate Team"
	Website = "https://depgate.dev"
)

// UserAgent returns the standard User-Agent string for DepGate requests
func UserAgent() string {
	return fmt.Sprintf("depgate/%s", Version)
}

// UserAgentWithContext returns a User-Agent with context (e.g., "depgate/X.Y.Z (OSV)")
func UserAgentWithContext(context string) string {
	return fmt.Sprintf("depgate/%s (%s)", Version, context)
}

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	uiMu        sync.RWMutex
)

// SetSilent enables or disables silent mode (suppresses most output)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		// Use ASCII profile to disable colors
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

// ASCII art banner - nuclei/httpx inspired design
const bannerArt = `
       __                        __
  ____/ /__  ____  ____ _____ _/ /____
 / __  / _ \/ __ \/ __ '/ __ '/ __/ _ \
/ /_/ /  __/ /_/ / /_/ / /_/ / /_/  __/
\__,_/\___/ .___/\__, /\__,_/\__/\___/
         /_/    /____/
`

// Compact banner for smaller terminals
const compactBanner = `
       __                        __
  ____/ /__  ____  ____ _____ _/ /____
 / __  / _ \/ __ \/ __ '/ __ '/ __/ _ \
/ /_/ /  __/ /_/ / /_/ / /_/ / /_/  __/
\__,_/\___/ .___/\__, /\__,_/\__/\___/
         /_/    /____/
`

// Minimalist banner (ffuf-style box)
const miniBanner = `
________________________________________________

 depgate v%s
________________________________________________`

// Separator line
const bannerSeparator = "________________________________________________"

// PrintBanner prints the httpx/nuclei-style application banner with version info
func PrintBanner() {
	// Print the styled banner to stderr (like httpx/nuclei)
	lines := strings.Split(bannerArt, "\n")
	for _, line := range lines {
		if line != "" {
			fmt.Fprintln(os.Stderr, BannerStyle.Render(line))
		}
	}

	// Version line centered below banner (httpx-style)
	fmt.Fprintf(os.Stderr, "                  v%s\n", VersionStyle.Render(Version))
	fmt.Fprintf(os.Stderr, "\n\t\tdepgate.dev\n\n")
}

// PrintCompactBanner prints a smaller banner for constrained environments
func PrintCompactBanner() {
	lines := strings.Split(compactBanner, "\n")
	for _, line := range lines {
		if line != "" {
			fmt.Fprintln(os.Stderr, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(os.Stderr, "                  v%s\n\n", VersionStyle.Render(Version))
}

// PrintMiniBanner prints the minimal banner (ffuf-style box)
func PrintMiniBanner() {
	fmt.Fprintf(os.Stderr, "%s\n", BannerStyle.Render(fmt.Sprintf(miniBanner, Version)))
	fmt.Fprintln(os.Stderr)
}

// printOption prints a configuration option in ffuf/nuclei style
// Format:  :: Option              : Value
func printOption(name, value string) {
	fmt.Fprintf(os.Stderr, " :: %-20s : %s\n", ConfigLabelStyle.Render(name), ConfigValueStyle.Render(value))
}

// PrintConfigBanner prints the configuration banner like ffuf/nuclei
// This shows all the current settings before execution starts
// Uses ordered keys for consistent display
func PrintConfigBanner(options map[string]string) {
	// Define display order for config options (ffuf-style)
	order := []string{
		"Manifest", "SBOM", "Facts", "Suite", "Min Severity",
		"Checks", "Components", "Concurrency", "Rate Limit", "Timeout",
		"Sources", "Offline", "Fail Fast",
		"Output", "Format", "History",
	}

	// Print in defined order first
	printed := make(map[string]bool)
	for _, name := range order {
		if value, ok := options[name]; ok && value != "" {
			printOption(name, value)
			printed[name] = true
		}
	}

	// Print any remaining options not in the order list
	for name, value := range options {
		if !printed[name] && value != "" {
			printOption(name, value)
		}
	}

	fmt.Fprintf(os.Stderr, "%s\n\n", DividerStyle.Render(bannerSeparator))
}

// PrintDivider prints a stylized divider (to stderr)
func PrintDivider() {
	divider := strings.Repeat("-", 75)
	fmt.Fprintln(os.Stderr, DividerStyle.Render(divider))
}

// PrintSection prints a section header (to stderr)
func PrintSection(title string) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, SectionStyle.Render("> "+title))
	PrintDivider()
}

// PrintConfig prints configuration in a nice format
func PrintConfig(config map[string]string) {
	if IsSilent() {
		return
	}

	maxKeyLen := 0
	for key := range config {
		if len(key) > maxKeyLen {
			maxKeyLen = len(key)
		}
	}

	for key, value := range config {
		paddedKey := key + strings.Repeat(" ", maxKeyLen-len(key))
		fmt.Fprintf(os.Stderr, "  %s : %s\n",
			ConfigLabelStyle.Render(paddedKey),
			ConfigValueStyle.Render(value),
		)
	}
}

// PrintConfigLine prints a single config line
func PrintConfigLine(key, value string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(os.Stderr, "  %s %s\n",
		ConfigLabelStyle.Render(key+":"),
		ConfigValueStyle.Render(value),
	)
}

// PrintBracketedInfo prints nuclei-style bracketed information
// Example: [critical] [vuln] lodash@4.17.20 [no-severe-vulns]
func PrintBracketedInfo(parts ...BracketPart) {
	if IsSilent() {
		return
	}

	var output strings.Builder
	for _, part := range parts {
		output.WriteString(BracketStyle.Render("["))
		output.WriteString(part.Style.Render(part.Text))
		output.WriteString(BracketStyle.Render("] "))
	}
	fmt.Fprintln(os.Stderr, output.String())
}

// BracketPart represents a piece of bracketed output
type BracketPart struct {
	Text  string
	Style Style
}

// Style is a simplified style type for bracket parts
type Style = lipgloss.Style

// Helper functions for creating bracket parts
func SeverityBracket(severity string) BracketPart {
	return BracketPart{
		Text:  strings.ToLower(severity),
		Style: SeverityStyle(severity),
	}
}

func CheckBracket(check string) BracketPart {
	return BracketPart{
		Text:  check,
		Style: CheckStyle,
	}
}

func OutcomeBracket(outcome string) BracketPart {
	return BracketPart{
		Text:  strings.ToLower(outcome),
		Style: OutcomeStyle(outcome),
	}
}

func TextBracket(text string) BracketPart {
	return BracketPart{
		Text:  text,
		Style: lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")),
	}
}

func MutedBracket(text string) BracketPart {
	return BracketPart{
		Text:  text,
		Style: lipgloss.NewStyle().Foreground(Muted),
	}
}

// PrintHelp prints contextual help (to stderr like ffuf/nuclei)
func PrintHelp(text string) {
	fmt.Fprintln(os.Stderr, HelpStyle.Render("  [i] "+text))
}

// PrintSuccess prints a success message (to stderr)
func PrintSuccess(message string) {
	fmt.Fprintln(os.Stderr, PassStyle.Render("  [+] "+message))
}

// PrintError prints an error message (to stderr)
func PrintError(message string) {
	fmt.Fprintln(os.Stderr, TriggeredStyle.Render("  [X] "+message))
}

// PrintWarning prints a warning message (to stderr)
func PrintWarning(message string) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("  [!] "+message))
}

// PrintInfo prints an info message (to stderr)
func PrintInfo(message string) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", SpinnerStyle.Render("*"), message)
}

// PrintResult prints a live evaluation line in nuclei/httpx style
// Format: [timestamp] [severity] [check] rule component [outcome] [latency]
func PrintResult(rule, check, severity, outcome, component string, latencyMs int64, showTimestamp bool) {
	var output strings.Builder

	// Timestamp (optional, like nuclei's -ts flag)
	if showTimestamp {
		ts := time.Now().Format("15:04:05")
		output.WriteString(BracketStyle.Render("["))
		output.WriteString(StatValueStyle.Render(ts))
		output.WriteString(BracketStyle.Render("] "))
	}

	// Severity badge
	output.WriteString(BracketStyle.Render("["))
	output.WriteString(SeverityStyle(severity).Render(strings.ToLower(severity)))
	output.WriteString(BracketStyle.Render("] "))

	// Check type
	output.WriteString(BracketStyle.Render("["))
	output.WriteString(CheckStyle.Render(check))
	output.WriteString(BracketStyle.Render("] "))

	// Rule name
	output.WriteString(ConfigValueStyle.Render(rule))
	output.WriteString(" ")

	// Component under evaluation
	if component != "" {
		output.WriteString(StatValueStyle.Render(component))
		output.WriteString(" ")
	}

	// Outcome
	output.WriteString(BracketStyle.Render("["))
	output.WriteString(OutcomeStyle(outcome).Render(strings.ToLower(outcome)))
	output.WriteString(BracketStyle.Render("] "))

	// Latency
	output.WriteString(BracketStyle.Render("["))
	output.WriteString(StatLabelStyle.Render(fmt.Sprintf("%dms", latencyMs)))
	output.WriteString(BracketStyle.Render("]"))

	if !IsSilent() {
		fmt.Fprintln(os.Stderr, output.String())
	}
}

// PrintResultCompact prints a compact evaluation line (ffuf-style)
// Format: component [Rule: name, Outcome: pass, Duration: 45ms]
func PrintResultCompact(component, rule, outcome string, latencyMs int64) {
	if IsSilent() {
		return
	}

	var output strings.Builder

	output.WriteString(ConfigValueStyle.Render(component))
	output.WriteString(" ")
	output.WriteString(BracketStyle.Render("["))

	// Rule name
	output.WriteString("Rule: ")
	output.WriteString(StatValueStyle.Render(rule))
	output.WriteString(", ")

	// Outcome with color
	output.WriteString("Outcome: ")
	output.WriteString(OutcomeStyle(outcome).Render(strings.ToLower(outcome)))
	output.WriteString(", ")

	// Duration
	output.WriteString(fmt.Sprintf("Duration: %dms", latencyMs))

	output.WriteString(BracketStyle.Render("]"))

	fmt.Fprintln(os.Stderr, output.String())
}
