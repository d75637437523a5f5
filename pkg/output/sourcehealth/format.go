package sourcehealth

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/jsonutil"
	"github.com/depgate/depgate/pkg/ui"
)

// Format represents an output format for source health stats.
type Format int

const (
	// FormatConsole outputs colored text suitable for terminal display.
	FormatConsole Format = iota
	// FormatJSON outputs machine-readable JSON.
	FormatJSON
	// FormatMarkdown outputs Markdown suitable for reports.
	FormatMarkdown
	// FormatSARIF outputs SARIF format for security tools.
	FormatSARIF
)

// WriteTo writes the stats in the specified format to the writer.
func (s Stats) WriteTo(w io.Writer, format Format) error {
	switch format {
	case FormatConsole:
		return s.writeConsole(w)
	case FormatJSON:
		return s.writeJSON(w)
	case FormatMarkdown:
		return s.writeMarkdown(w)
	case FormatSARIF:
		return s.writeSARIF(w)
	default:
		return fmt.Errorf("unknown format: %d", format)
	}
}

// PrintConsole prints colored stats to stderr.
// This is a convenience method for the most common use case.
func (s Stats) PrintConsole() {
	s.WriteTo(os.Stderr, FormatConsole)
}

// writeConsole writes colored console output
func (s Stats) writeConsole(w io.Writer) error {
	if !s.HasData() {
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat(ui.Icon("─", "-"), 40))
	fmt.Fprintln(w, "  Source Health:")
	fmt.Fprintln(w)

	if s.SourcesUnavailable > 0 {
		fmt.Fprintf(w, "\033[31m    %s Sources Unavailable: %d\033[0m\n", ui.Icon("🚫", "x"), s.SourcesUnavailable)
	}
	if s.SourcesDegraded > 0 {
		fmt.Fprintf(w, "\033[33m    %s Sources Degraded:    %d\033[0m\n", ui.Icon("⚠", "!"), s.SourcesDegraded)
	}
	if s.ComponentsMissing > 0 {
		fmt.Fprintf(w, "\033[36m    %s Missing Facts:       %d\033[0m\n", ui.Icon("⭕", "o"), s.ComponentsMissing)
	}

	// Show recommendations if any
	recs := s.Recommendations()
	if len(recs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Recommendations:")
		for _, rec := range recs {
			fmt.Fprintf(w, "    %s %s\n", ui.Icon("•", "-"), rec)
		}
	}

	fmt.Fprintln(w)
	return nil
}

// writeJSON writes JSON output
func (s Stats) writeJSON(w io.Writer) error {
	encoder := jsonutil.NewStreamEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(s.ToJSON())
}

// writeMarkdown writes Markdown output
func (s Stats) writeMarkdown(w io.Writer) error {
	if !s.HasData() {
		fmt.Fprintln(w, "All fact sources healthy.")
		return nil
	}

	fmt.Fprintln(w, "### Source Health")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Metric | Value |")
	fmt.Fprintln(w, "|--------|-------|")

	if s.SourcesUnavailable > 0 {
		fmt.Fprintf(w, "| 🚫 Sources Unavailable | %d |\n", s.SourcesUnavailable)
	}
	if s.SourcesDegraded > 0 {
		fmt.Fprintf(w, "| ⚠️ Sources Degraded | %d |\n", s.SourcesDegraded)
	}
	if s.ComponentsMissing > 0 {
		fmt.Fprintf(w, "| ⭕ Missing Facts | %d |\n", s.ComponentsMissing)
	}

	// Add severity indicator
	fmt.Fprintln(w)
	fmt.Fprintf(w, "**Severity:** %s\n", s.Severity())

	// Add recommendations
	recs := s.Recommendations()
	if len(recs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "**Recommendations:**")
		for _, rec := range recs {
			fmt.Fprintf(w, "- %s\n", rec)
		}
	}

	return nil
}

// writeSARIF writes SARIF format output (for security tools integration)
func (s Stats) writeSARIF(w io.Writer) error {
	sarif := map[string]interface{}{
		"$schema": "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		"version": "2.1.0",
		"runs": []map[string]interface{}{
			{
				"tool": map[string]interface{}{
					"driver": map[string]interface{}{
						"name":    defaults.ToolName,
						"version": defaults.Version,
					},
				},
				"results": s.toSARIFResults(),
			},
		},
	}

	encoder := jsonutil.NewStreamEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(sarif)
}

// toSARIFResults converts stats to SARIF result entries
func (s Stats) toSARIFResults() []map[string]interface{} {
	var results []map[string]interface{}

	if s.SourcesUnavailable > 0 {
		results = append(results, map[string]interface{}{
			"ruleId":  "source-health/unavailable",
			"level":   "error",
			"message": map[string]string{"text": fmt.Sprintf("%d fact sources unavailable", s.SourcesUnavailable)},
		})
	}

	if s.SourcesDegraded > 0 {
		results = append(results, map[string]interface{}{
			"ruleId":  "source-health/degraded",
			"level":   "warning",
			"message": map[string]string{"text": fmt.Sprintf("%d fact sources degraded", s.SourcesDegraded)},
		})
	}

	if s.ComponentsMissing > 0 {
		results = append(results, map[string]interface{}{
			"ruleId":  "source-health/missing-facts",
			"level":   "note",
			"message": map[string]string{"text": fmt.Sprintf("%d components missing facts", s.ComponentsMissing)},
		})
	}

	return results
}
