// Package output provides the CLI builder for wiring up output dispatching.
package output

import (
	"fmt"
	"os"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/hooks"
	"github.com/depgate/depgate/pkg/output/writers"
)

// Config configures the output dispatcher based on CLI flags.
type Config struct {
	// File exports
	JSONExport     string
	JSONLExport    string
	SARIFExport    string
	JUnitExport    string
	MDExport       string
	PDFExport      string
	TemplateExport string

	// Template selection for TemplateExport (or stdout when the export
	// path is empty): a built-in name, a template file path, or inline
	// template source (bundled templates resolve to source).
	TemplateBuiltin string
	TemplatePath    string
	TemplateSource  string

	// ManifestPath is the scanned manifest or SBOM, recorded as the
	// artifact location in SARIF output.
	ManifestPath string

	// Streaming
	JSONMode   bool
	StreamMode bool
	BatchSize  int

	// Content
	OmitEvidence   bool
	OnlyViolations bool
	ShowPasses     bool

	// Console
	Silent  bool
	NoColor bool

	// Hooks
	WebhookURL   string
	WebhookAll   bool
	SlackWebhook string
	MetricsPort  int
	OTelEndpoint string
	OTelInsecure bool

	// History storage
	HistoryPath string
	HistoryTags []string

	// Version for reports
	Version string
}

// BuildDispatcher creates a dispatcher configured with writers and hooks based on the config.
// It opens all output files and registers the appropriate writers and hooks.
// The caller is responsible for calling Close() on the dispatcher when done.
func BuildDispatcher(cfg Config) (*dispatcher.Dispatcher, error) {
	// Create dispatcher with config
	dispatcherCfg := dispatcher.Config{
		BatchSize: cfg.BatchSize,
		Async:     true, // Enable async hook processing for performance
	}
	d := dispatcher.New(dispatcherCfg)

	version := cfg.Version
	if version == "" {
		version = defaults.Version
	}

	// Track opened files for cleanup on error
	var openedFiles []*os.File
	cleanup := func() {
		for _, f := range openedFiles {
			f.Close()
		}
	}

	// Helper to open a file for writing
	openFile := func(path string) (*os.File, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
		}
		openedFiles = append(openedFiles, f)
		return f, nil
	}

	// === FILE WRITERS ===

	// JSON export
	if cfg.JSONExport != "" {
		f, err := openFile(cfg.JSONExport)
		if err != nil {
			cleanup()
			return nil, err
		}
		writer := writers.NewJSONWriter(f, writers.JSONOptions{
			OmitEvidence: cfg.OmitEvidence,
			Pretty:       true,
		})
		d.RegisterWriter(writer)
	}

	// JSONL export (streaming)
	if cfg.JSONLExport != "" {
		f, err := openFile(cfg.JSONLExport)
		if err != nil {
			cleanup()
			return nil, err
		}
		writer := writers.NewJSONLWriter(f, writers.JSONLOptions{
			OmitEvidence:   cfg.OmitEvidence,
			OnlyViolations: cfg.OnlyViolations,
		})
		d.RegisterWriter(writer)
	}

	// SARIF export (GitHub/GitLab security)
	if cfg.SARIFExport != "" {
		f, err := openFile(cfg.SARIFExport)
		if err != nil {
			cleanup()
			return nil, err
		}
		writer := writers.NewSARIFWriter(f, writers.SARIFOptions{
			ToolName:     defaults.ToolName,
			ToolVersion:  version,
			ManifestPath: cfg.ManifestPath,
		})
		d.RegisterWriter(writer)
	}

	// JUnit export (CI/CD)
	if cfg.JUnitExport != "" {
		f, err := openFile(cfg.JUnitExport)
		if err != nil {
			cleanup()
			return nil, err
		}
		writer := writers.NewJUnitWriter(f, writers.JUnitOptions{
			SuiteName:       defaults.ToolName,
			IncludeEvidence: !cfg.OmitEvidence,
		})
		d.RegisterWriter(writer)
	}

	// Markdown export
	if cfg.MDExport != "" {
		f, err := openFile(cfg.MDExport)
		if err != nil {
			cleanup()
			return nil, err
		}
		writer := writers.NewMarkdownWriter(f, writers.MarkdownOptions{
			IncludeEvidence: !cfg.OmitEvidence,
		})
		d.RegisterWriter(writer)
	}

	// PDF export
	if cfg.PDFExport != "" {
		f, err := openFile(cfg.PDFExport)
		if err != nil {
			cleanup()
			return nil, err
		}
		writer := writers.NewPDFWriter(f, writers.PDFConfig{
			IncludeEvidence: !cfg.OmitEvidence,
			IncludeTOC:      true,
		})
		d.RegisterWriter(writer)
	}

	// Template rendering. Writes to the export path when set, otherwise to
	// stdout so builtins compose with shell redirection, e.g.
	// --template github >> "$GITHUB_STEP_SUMMARY".
	if cfg.TemplateBuiltin != "" || cfg.TemplatePath != "" || cfg.TemplateSource != "" {
		var out *os.File = os.Stdout
		if cfg.TemplateExport != "" {
			f, err := openFile(cfg.TemplateExport)
			if err != nil {
				cleanup()
				return nil, err
			}
			out = f
		}
		writer, err := writers.NewTemplateWriter(out, writers.TemplateOptions{
			Builtin: cfg.TemplateBuiltin,
			Path:    cfg.TemplatePath,
			Source:  cfg.TemplateSource,
		})
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to create template writer: %w", err)
		}
		d.RegisterWriter(writer)
	}

	// === CONSOLE OUTPUT ===

	// Table writer for console output (unless silent or JSON mode)
	if !cfg.Silent && !cfg.JSONMode {
		mode := writers.TableModeSummary
		if cfg.ShowPasses {
			mode = writers.TableModeDetailed
		}
		if cfg.StreamMode {
			mode = writers.TableModeStreaming
		}
		color := writers.ColorAuto
		if cfg.NoColor {
			color = writers.ColorNever
		}
		writer := writers.NewTableWriter(os.Stdout, writers.TableConfig{
			Mode:       mode,
			Color:      color,
			ShowPasses: cfg.ShowPasses,
		})
		d.RegisterWriter(writer)
	}

	// JSON streaming mode (to stdout)
	if cfg.JSONMode {
		writer := writers.NewJSONLWriter(os.Stdout, writers.JSONLOptions{
			OmitEvidence:   cfg.OmitEvidence,
			OnlyViolations: cfg.OnlyViolations,
		})
		d.RegisterWriter(writer)
	}

	// === HOOKS ===

	// Generic webhook
	if cfg.WebhookURL != "" {
		hook := hooks.NewWebhookHook(cfg.WebhookURL, hooks.WebhookOptions{
			OnlyViolations: !cfg.WebhookAll,
		})
		d.RegisterHook(hook)
	}

	// Slack
	if cfg.SlackWebhook != "" {
		hook := hooks.NewSlackHook(cfg.SlackWebhook, hooks.SlackOptions{
			OnlyOnViolations: cfg.OnlyViolations,
		})
		d.RegisterHook(hook)
	}

	// Prometheus metrics
	if cfg.MetricsPort > 0 {
		hook, err := hooks.NewPrometheusHook(hooks.PrometheusOptions{
			Port: cfg.MetricsPort,
			Path: "/metrics",
		})
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to create Prometheus hook: %w", err)
		}
		d.RegisterHook(hook)
	}

	// OpenTelemetry
	if cfg.OTelEndpoint != "" {
		hook, err := hooks.NewOTelHook(hooks.OTelOptions{
			Endpoint:    cfg.OTelEndpoint,
			ServiceName: defaults.ToolName,
			Insecure:    cfg.OTelInsecure,
		})
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to create OpenTelemetry hook: %w", err)
		}
		d.RegisterHook(hook)
	}

	// History storage
	if cfg.HistoryPath != "" {
		hook, err := hooks.NewHistoryHook(hooks.HistoryHookOptions{
			StorePath: cfg.HistoryPath,
			Tags:      cfg.HistoryTags,
		})
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to create history hook: %w", err)
		}
		d.RegisterHook(hook)
	}

	return d, nil
}
