package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/depgate/depgate/pkg/input"
)

// Config holds the scan command configuration
type Config struct {
	// Component input
	FactsPath  string                // Facts snapshot file or directory
	SBOMFile   string                // CycloneDX SBOM to derive components from
	Components input.StringSliceFlag // Explicit component refs (repeated or comma-separated)
	ListFile   string                // File containing component refs
	StdinInput bool                  // Read component refs from stdin

	// Suite settings
	SuitePaths input.StringSliceFlag // Suite file(s) or directories
	Preset     string                // Built-in suite name (used when no -suite given)
	ScriptDir  string                // Directory of scripted rules

	// Execution settings (nuclei-style defaults)
	Concurrency int           // Number of parallel workers (default: 25)
	RateLimit   int           // Fact source requests per second (default: 10)
	Timeout     time.Duration // Per-component evaluation budget (default: 30s)
	Retries     int           // Fact fetch retry count (default: 1)
	FailFast    bool          // Stop the run on the first violation
	Offline     bool          // Never touch network fact sources

	// Enrichment settings
	Sources input.StringSliceFlag // Fact providers to query (empty = all)

	// Match/Filter settings (ffuf-style)
	MatchSeverity  string // Report only findings at these severities
	MatchCheck     string // Report only these check types
	MatchOutcome   string // Report only these outcomes
	MinSeverity    string // Severity floor (e.g. "medium")
	FilterSeverity string // Hide findings at these severities
	FilterCheck    string // Hide these check types
	FilterOutcome  string // Hide these outcomes
	OnlyViolations bool   // Hide everything except triggered rules

	// Output settings
	OutputFile    string                // Output file path (empty = stdout)
	OutputFormat  string                // console, json, jsonl, sarif, junit, md, pdf
	Formats       input.StringSliceFlag // Additional formats written next to OutputFile
	JSONLines     bool                  // Output JSONL (one JSON per line)
	Verbose       bool                  // Verbose output
	Silent        bool                  // Silent mode (no progress)
	NoColor       bool                  // Disable colored output
	DryRun        bool                  // List rules without evaluating
	Stats         bool                  // Show statistics during execution
	StatsInterval int                   // Stats update interval in seconds
	ShowPasses    bool                  // Include passing rules in reports
	Template      string                // Output template: builtin, bundled, or file path
	TemplateOut   string                // Template render target (empty = stdout)

	// Hook settings
	WebhookURL   string // POST violations to this URL
	SlackWebhook string // Slack incoming webhook for violations
	MetricsPort  int    // Prometheus metrics port (0 = disabled)
	OTelEndpoint string // OTLP gRPC endpoint for trace export

	// Gate / baseline / history
	GatePolicy     string                // Gate policy YAML path
	BaselineFile   string                // Known-violations baseline path
	UpdateBaseline bool                  // Rewrite the baseline from this run
	HistoryPath    string                // Run history directory (empty = disabled)
	HistoryTags    input.StringSliceFlag // Tags attached to the stored run
}

// knownFormats are the values accepted for -format.
var knownFormats = map[string]bool{
	"console": true,
	"json":    true,
	"jsonl":   true,
	"sarif":   true,
	"junit":   true,
	"md":      true,
	"pdf":     true,
}

// ParseFlags binds the scan flags onto fs, parses args, applies
// DEPGATE_* environment overrides for flags left unset, and validates
// the result.
func ParseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	// === INPUT ===
	fs.StringVar(&cfg.FactsPath, "f", "", "Facts snapshot file or directory")
	fs.StringVar(&cfg.FactsPath, "facts", "", "Facts snapshot file or directory (alias)")
	fs.StringVar(&cfg.SBOMFile, "sbom", "", "CycloneDX SBOM file")
	fs.Var(&cfg.Components, "component", "Component ref(s) - comma-separated or repeated")
	fs.Var(&cfg.Components, "u", "Component ref(s) (alias)")
	fs.StringVar(&cfg.ListFile, "l", "", "File containing component refs")
	fs.BoolVar(&cfg.StdinInput, "stdin", false, "Read component refs from stdin")

	// === SUITES ===
	fs.Var(&cfg.SuitePaths, "suite", "Guardrail suite file(s) or directories")
	fs.Var(&cfg.SuitePaths, "s", "Suite file(s) (alias)")
	fs.StringVar(&cfg.Preset, "preset", "security", "Built-in suite when no -suite is given")
	fs.StringVar(&cfg.ScriptDir, "scripts", "", "Directory of scripted rules")

	// === EXECUTION ===
	fs.IntVar(&cfg.Concurrency, "concurrency", 25, "Concurrent workers")
	fs.IntVar(&cfg.Concurrency, "c", 25, "Concurrent workers (alias)")
	fs.IntVar(&cfg.RateLimit, "rate-limit", 10, "Max fact source requests per second")
	fs.IntVar(&cfg.RateLimit, "rl", 10, "Rate limit (alias)")
	timeout := fs.Int("timeout", 30, "Per-component timeout in seconds")
	fs.IntVar(&cfg.Retries, "retries", 1, "Fact fetch retry count")
	fs.BoolVar(&cfg.FailFast, "fail-fast", false, "Stop on first violation")
	fs.BoolVar(&cfg.Offline, "offline", false, "Evaluate with local facts only")
	fs.Var(&cfg.Sources, "sources", "Fact providers to query (e.g. osv,deps.dev)")

	// === MATCHERS (what to report) ===
	fs.StringVar(&cfg.MatchSeverity, "ms", "", "Match severities (e.g. critical,high)")
	fs.StringVar(&cfg.MatchSeverity, "match-severity", "", "Match severities (alias)")
	fs.StringVar(&cfg.MatchCheck, "mk", "", "Match check types (e.g. vuln,scorecard)")
	fs.StringVar(&cfg.MatchCheck, "match-check", "", "Match check types (alias)")
	fs.StringVar(&cfg.MatchOutcome, "mo", "", "Match outcomes (e.g. triggered,error)")
	fs.StringVar(&cfg.MatchOutcome, "match-outcome", "", "Match outcomes (alias)")
	fs.StringVar(&cfg.MinSeverity, "severity", "", "Minimum severity to report")

	// === FILTERS (what to hide) ===
	fs.StringVar(&cfg.FilterSeverity, "fms", "", "Filter out severities")
	fs.StringVar(&cfg.FilterSeverity, "filter-severity", "", "Filter severities (alias)")
	fs.StringVar(&cfg.FilterCheck, "fk", "", "Filter out check types")
	fs.StringVar(&cfg.FilterCheck, "filter-check", "", "Filter check types (alias)")
	fs.StringVar(&cfg.FilterOutcome, "fo", "", "Filter out outcomes")
	fs.StringVar(&cfg.FilterOutcome, "filter-outcome", "", "Filter outcomes (alias)")
	fs.BoolVar(&cfg.OnlyViolations, "only-violations", false, "Report triggered rules only")
	fs.BoolVar(&cfg.OnlyViolations, "ov", false, "Only violations (alias)")

	// === OUTPUT ===
	fs.StringVar(&cfg.OutputFile, "output", "", "Output file path")
	fs.StringVar(&cfg.OutputFile, "o", "", "Output file (alias)")
	fs.StringVar(&cfg.OutputFormat, "format", "console", "Output format: console,json,jsonl,sarif,junit,md,pdf")
	fs.Var(&cfg.Formats, "formats", "Additional formats written alongside -o")
	fs.BoolVar(&cfg.JSONLines, "jsonl", false, "JSONL output (one JSON per line)")
	fs.BoolVar(&cfg.JSONLines, "j", false, "JSONL output (alias)")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose (alias)")
	fs.BoolVar(&cfg.Silent, "silent", false, "Silent mode - no progress")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&cfg.NoColor, "nc", false, "No color (alias)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "List rules without evaluating")
	fs.BoolVar(&cfg.Stats, "stats", false, "Show statistics during execution")
	fs.IntVar(&cfg.StatsInterval, "stats-interval", 5, "Stats update interval in seconds")
	fs.BoolVar(&cfg.ShowPasses, "show-passes", false, "Include passing rules in reports")
	fs.StringVar(&cfg.Template, "template", "", "Output template: builtin, bundled, or file path")
	fs.StringVar(&cfg.TemplateOut, "template-out", "", "Template render target (empty = stdout)")

	// === HOOKS ===
	fs.StringVar(&cfg.WebhookURL, "webhook", "", "POST violations to this URL")
	fs.StringVar(&cfg.SlackWebhook, "slack", "", "Slack incoming webhook URL")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", 0, "Prometheus metrics port (0 = disabled)")
	fs.StringVar(&cfg.OTelEndpoint, "otel", "", "OTLP gRPC endpoint for traces")

	// === GATE / BASELINE / HISTORY ===
	fs.StringVar(&cfg.GatePolicy, "gate", "", "Gate policy YAML path")
	fs.StringVar(&cfg.BaselineFile, "baseline", "", "Known-violations baseline path")
	fs.BoolVar(&cfg.UpdateBaseline, "update-baseline", false, "Rewrite the baseline from this run")
	fs.StringVar(&cfg.HistoryPath, "history", "", "Run history directory")
	fs.Var(&cfg.HistoryTags, "tag", "Tag attached to the stored run")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// Convert timeout
	cfg.Timeout = time.Duration(*timeout) * time.Second

	applyEnv(cfg, fs)

	// Handle JSONL format shortcut
	if cfg.JSONLines {
		cfg.OutputFormat = "jsonl"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills fields from DEPGATE_* variables when the matching flag
// was not set on the command line. Flags always win over environment.
func applyEnv(cfg *Config, fs *flag.FlagSet) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if v := os.Getenv("DEPGATE_FACTS"); v != "" && !set["f"] && !set["facts"] {
		cfg.FactsPath = v
	}
	if v := os.Getenv("DEPGATE_SUITE"); v != "" && !set["suite"] && !set["s"] {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.SuitePaths = append(cfg.SuitePaths, p)
			}
		}
	}
	if v := os.Getenv("DEPGATE_CONCURRENCY"); v != "" && !set["concurrency"] && !set["c"] {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Concurrency = n
		}
	}
	if v := os.Getenv("DEPGATE_TIMEOUT"); v != "" && !set["timeout"] {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("DEPGATE_FORMAT"); v != "" && !set["format"] {
		cfg.OutputFormat = v
	}
	if v := os.Getenv("DEPGATE_HISTORY"); v != "" && !set["history"] {
		cfg.HistoryPath = v
	}
	if os.Getenv("DEPGATE_OFFLINE") == "1" && !set["offline"] {
		cfg.Offline = true
	}
	// NO_COLOR is the ecosystem convention, DEPGATE_NO_COLOR the scoped one
	if (os.Getenv("NO_COLOR") != "" || os.Getenv("DEPGATE_NO_COLOR") == "1") && !set["no-color"] && !set["nc"] {
		cfg.NoColor = true
	}
}

// validSeverities for -severity and the match/filter severity flags.
var validSeverities = map[string]bool{
	"critical": true,
	"high":     true,
	"medium":   true,
	"low":      true,
	"info":     true,
}

func (cfg *Config) validate() error {
	if cfg.FactsPath == "" && cfg.SBOMFile == "" && len(cfg.Components) == 0 &&
		cfg.ListFile == "" && !cfg.StdinInput {
		return fmt.Errorf("%w: component input (use -f, -sbom, -component, -l, or -stdin)", ErrMissingRequired)
	}
	if cfg.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1", ErrInvalidConfig)
	}
	if !knownFormats[cfg.OutputFormat] {
		return fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, cfg.OutputFormat)
	}
	for _, f := range cfg.Formats {
		if !knownFormats[f] || f == "console" {
			return fmt.Errorf("%w: unknown export format %q", ErrInvalidConfig, f)
		}
	}
	if cfg.MinSeverity != "" && !validSeverities[strings.ToLower(cfg.MinSeverity)] {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidConfig, cfg.MinSeverity)
	}
	if cfg.Offline && len(cfg.Sources) > 0 {
		return fmt.Errorf("%w: -offline conflicts with -sources", ErrInvalidConfig)
	}
	if cfg.UpdateBaseline && cfg.BaselineFile == "" {
		return fmt.Errorf("%w: -update-baseline requires -baseline", ErrMissingRequired)
	}
	return nil
}
