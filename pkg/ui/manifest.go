// pkg/ui/manifest.go - Execution manifest display for pre-run info
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ManifestItem represents a single item in the execution manifest
type ManifestItem struct {
	Label    string
	Value    interface{}
	Icon     string
	Emphasis bool // If true, highlight this item
}

// ExecutionManifest displays what will be executed before a run starts
type ExecutionManifest struct {
	Title       string
	Description string
	Items       []ManifestItem
	Writer      io.Writer
	BoxStyle    bool // If true, draw a box around the manifest
}

// NewExecutionManifest creates a new manifest with default settings
func NewExecutionManifest(title string) *ExecutionManifest {
	return &ExecutionManifest{
		Title:    title,
		Items:    make([]ManifestItem, 0),
		Writer:   os.Stdout,
		BoxStyle: true,
	}
}

// SetDescription sets a description line under the title
func (m *ExecutionManifest) SetDescription(desc string) *ExecutionManifest {
	m.Description = desc
	return m
}

// Add adds an item to the manifest
func (m *ExecutionManifest) Add(label string, value interface{}) *ExecutionManifest {
	m.Items = append(m.Items, ManifestItem{Label: label, Value: value})
	return m
}

// AddWithIcon adds an item with an icon. The icon is sanitized for the
// current terminal capability.
func (m *ExecutionManifest) AddWithIcon(icon, label string, value interface{}) *ExecutionManifest {
	m.Items = append(m.Items, ManifestItem{Icon: SanitizeString(icon), Label: label, Value: value})
	return m
}

// AddEmphasis adds an emphasized item (highlighted)
func (m *ExecutionManifest) AddEmphasis(icon, label string, value interface{}) *ExecutionManifest {
	m.Items = append(m.Items, ManifestItem{Icon: SanitizeString(icon), Label: label, Value: value, Emphasis: true})
	return m
}

// AddRuleInfo adds rule count information (common pattern)
func (m *ExecutionManifest) AddRuleInfo(count int, checkTypes []string) *ExecutionManifest {
	m.AddEmphasis("📦", "Rules", fmt.Sprintf("%d rules loaded", count))
	if len(checkTypes) > 0 {
		m.AddWithIcon("🏷️", "Checks", strings.Join(checkTypes, ", "))
	}
	return m
}

// AddComponentInfo adds component count information
func (m *ExecutionManifest) AddComponentInfo(count int, sample string) *ExecutionManifest {
	if count == 1 {
		m.AddWithIcon("🎯", "Component", sample)
	} else {
		m.AddEmphasis("🎯", "Components", fmt.Sprintf("%d components", count))
		if sample != "" {
			m.AddWithIcon("", "First", sample)
		}
	}
	return m
}

// AddEstimate adds estimated time/evaluation information
func (m *ExecutionManifest) AddEstimate(evaluations int, rate float64) *ExecutionManifest {
	if rate > 0 {
		estimatedSecs := float64(evaluations) / rate
		var estimate string
		if estimatedSecs < 60 {
			estimate = fmt.Sprintf("~%.0fs", estimatedSecs)
		} else if estimatedSecs < 3600 {
			estimate = fmt.Sprintf("~%.1f min", estimatedSecs/60)
		} else {
			estimate = fmt.Sprintf("~%.1f hrs", estimatedSecs/3600)
		}
		m.AddWithIcon("⏱️", "Estimate", fmt.Sprintf("%s @ %.0f eval/s", estimate, rate))
	}
	return m
}

// AddConcurrency adds concurrency/rate info
func (m *ExecutionManifest) AddConcurrency(workers int, rateLimit float64) *ExecutionManifest {
	m.AddWithIcon("⚡", "Workers", fmt.Sprintf("%d concurrent", workers))
	if rateLimit > 0 {
		m.AddWithIcon("🚦", "Rate Limit", fmt.Sprintf("%.0f req/s", rateLimit))
	}
	return m
}

// Print displays the manifest. When stderr is not a terminal (piped or
// redirected output) the manifest downgrades to a plain layout with no
// ANSI codes; the boxed layout additionally requires Unicode support.
func (m *ExecutionManifest) Print() {
	plain := !StderrIsTerminal() || IsNoColor()
	if m.BoxStyle && !plain && UnicodeTerminal() {
		m.printBoxed()
	} else {
		m.printSimple(plain)
	}
}

// printBoxed displays manifest in a Unicode box
func (m *ExecutionManifest) printBoxed() {
	w := m.Writer

	// Calculate max width
	maxWidth := len(m.Title) + 4
	for _, item := range m.Items {
		width := len(item.Label) + len(fmt.Sprintf("%v", item.Value)) + 10
		if width > maxWidth {
			maxWidth = width
		}
	}
	if maxWidth > 70 {
		maxWidth = 70
	}
	if maxWidth < 50 {
		maxWidth = 50
	}

	// Box characters
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  ╔%s╗\n", strings.Repeat("═", maxWidth))
	
	// Title
	titlePadding := (maxWidth - len(m.Title)) / 2
	fmt.Fprintf(w, "  ║%s\033[1m%s\033[0m%s║\n",
		strings.Repeat(" ", titlePadding),
		m.Title,
		strings.Repeat(" ", maxWidth-titlePadding-len(m.Title)))

	// Description
	if m.Description != "" {
		descPadding := (maxWidth - len(m.Description)) / 2
		fmt.Fprintf(w, "  ║%s\033[2m%s\033[0m%s║\n",
			strings.Repeat(" ", descPadding),
			m.Description,
			strings.Repeat(" ", maxWidth-descPadding-len(m.Description)))
	}

	fmt.Fprintf(w, "  ╠%s╣\n", strings.Repeat("═", maxWidth))

	// Items
	for _, item := range m.Items {
		icon := item.Icon
		if icon != "" {
			icon = icon + " "
		}

		valueStr := fmt.Sprintf("%v", item.Value)
		
		// Apply emphasis styling
		if item.Emphasis {
			valueStr = fmt.Sprintf("\033[1;36m%s\033[0m", valueStr)
		}

		// Calculate padding
		labelPart := fmt.Sprintf("%s%s:", icon, item.Label)
		displayLen := len(icon) + len(item.Label) + 1 + len(fmt.Sprintf("%v", item.Value))
		padding := maxWidth - displayLen - 4
		if padding < 1 {
			padding = 1
		}

		fmt.Fprintf(w, "  ║  %s%s%s  ║\n", labelPart, strings.Repeat(" ", padding), valueStr)
	}

	fmt.Fprintf(w, "  ╚%s╝\n", strings.Repeat("═", maxWidth))
	fmt.Fprintln(w)
}

// printSimple displays manifest as simple key-value pairs. With plain set,
// no ANSI codes are emitted at all.
func (m *ExecutionManifest) printSimple(plain bool) {
	w := m.Writer

	fmt.Fprintln(w)
	if plain {
		fmt.Fprintf(w, "  %s\n", m.Title)
	} else {
		fmt.Fprintf(w, "  \033[1m%s\033[0m\n", m.Title)
	}
	if m.Description != "" {
		if plain {
			fmt.Fprintf(w, "  %s\n", m.Description)
		} else {
			fmt.Fprintf(w, "  \033[2m%s\033[0m\n", m.Description)
		}
	}
	fmt.Fprintln(w)

	for _, item := range m.Items {
		icon := item.Icon
		if icon != "" {
			icon = icon + " "
		}

		valueStr := fmt.Sprintf("%v", item.Value)
		if item.Emphasis && !plain {
			valueStr = fmt.Sprintf("\033[1;36m%s\033[0m", valueStr)
		}

		fmt.Fprintf(w, "    %s%s: %s\n", icon, item.Label, valueStr)
	}
	fmt.Fprintln(w)
}

// === Pre-built Manifest Templates ===

// EvalManifest creates a manifest for a guardrail evaluation run
func EvalManifest(suite string, ruleCount int, checkTypes []string, componentCount int, concurrency int) *ExecutionManifest {
	m := NewExecutionManifest("EVALUATION MANIFEST")
	m.SetDescription("Guardrail suite and component configuration")
	m.AddWithIcon("📋", "Suite", suite)
	m.AddRuleInfo(ruleCount, checkTypes)
	m.AddComponentInfo(componentCount, "")
	m.AddConcurrency(concurrency, 0)
	return m
}

// MultiSuiteManifest creates a manifest for multi-suite operations
func MultiSuiteManifest(title string, suites []string, operation string) *ExecutionManifest {
	m := NewExecutionManifest(title)
	m.SetDescription(operation)

	sample := ""
	if len(suites) > 0 {
		sample = suites[0]
		if len(sample) > 50 {
			sample = sample[:47] + "..."
		}
	}
	if len(suites) == 1 {
		m.AddWithIcon("📋", "Suite", sample)
	} else {
		m.AddEmphasis("📋", "Suites", fmt.Sprintf("%d suites", len(suites)))
		if sample != "" {
			m.AddWithIcon("", "First", sample)
		}
	}

	return m
}

// EnrichManifest creates a manifest for fact acquisition operations
func EnrichManifest(componentCount int, sources []string, timeout time.Duration) *ExecutionManifest {
	m := NewExecutionManifest("ENRICHMENT MANIFEST")
	m.SetDescription("Fact source configuration")
	m.AddComponentInfo(componentCount, "")
	m.AddEmphasis("🔬", "Sources", fmt.Sprintf("%d fact sources", len(sources)))
	m.AddWithIcon("📡", "Providers", strings.Join(sources, ", "))
	m.AddWithIcon("⏰", "Timeout", timeout.String())
	return m
}
