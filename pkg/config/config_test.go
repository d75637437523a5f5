package config

import (
	"errors"
	"flag"
	"testing"
	"time"
)

func newFlagSet() *flag.FlagSet {
	return flag.NewFlagSet("scan", flag.ContinueOnError)
}

// TestConfigDefaults verifies default values are set correctly
func TestConfigDefaults(t *testing.T) {
	cfg, err := ParseFlags(newFlagSet(), []string{"-f", "facts.json"})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if cfg.Concurrency != 25 {
		t.Errorf("Concurrency default: got %d, want 25", cfg.Concurrency)
	}
	if cfg.RateLimit != 10 {
		t.Errorf("RateLimit default: got %d, want 10", cfg.RateLimit)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout default: got %v, want 30s", cfg.Timeout)
	}
	if cfg.Retries != 1 {
		t.Errorf("Retries default: got %d, want 1", cfg.Retries)
	}
	if cfg.OutputFormat != "console" {
		t.Errorf("OutputFormat default: got %q, want 'console'", cfg.OutputFormat)
	}
	if cfg.Preset != "security" {
		t.Errorf("Preset default: got %q, want 'security'", cfg.Preset)
	}
	if cfg.StatsInterval != 5 {
		t.Errorf("StatsInterval default: got %d, want 5", cfg.StatsInterval)
	}
}

// TestConfigFactsPath verifies facts path parsing
func TestConfigFactsPath(t *testing.T) {
	cfg, err := ParseFlags(newFlagSet(), []string{"-facts", "snapshots/"})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if cfg.FactsPath != "snapshots/" {
		t.Errorf("FactsPath: got %q, want 'snapshots/'", cfg.FactsPath)
	}
}

// TestConfigComponentRefs verifies -component accumulates refs
func TestConfigComponentRefs(t *testing.T) {
	cfg, err := ParseFlags(newFlagSet(), []string{
		"-component", "npm/lodash@4.17.20",
		"-component", "pypi/requests@2.31.0,cargo/serde@1.0.190",
	})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if len(cfg.Components) != 3 {
		t.Errorf("Components: got %d, want 3: %v", len(cfg.Components), cfg.Components)
	}
}

// TestConfigConcurrencyAlias verifies -c alias
func TestConfigConcurrencyAlias(t *testing.T) {
	cfg, err := ParseFlags(newFlagSet(), []string{"-f", "facts.json", "-c", "50"})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if cfg.Concurrency != 50 {
		t.Errorf("Concurrency via -c: got %d, want 50", cfg.Concurrency)
	}
}

// TestConfigTimeoutConversion verifies -timeout seconds become a duration
func TestConfigTimeoutConversion(t *testing.T) {
	cfg, err := ParseFlags(newFlagSet(), []string{"-f", "facts.json", "-timeout", "90"})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if cfg.Timeout != 90*time.Second {
		t.Errorf("Timeout: got %v, want 90s", cfg.Timeout)
	}
}

// TestConfigJSONLShortcut verifies -jsonl forces the format
func TestConfigJSONLShortcut(t *testing.T) {
	cfg, err := ParseFlags(newFlagSet(), []string{"-f", "facts.json", "-jsonl"})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if cfg.OutputFormat != "jsonl" {
		t.Errorf("OutputFormat: got %q, want 'jsonl'", cfg.OutputFormat)
	}
}

// TestConfigSuites verifies suite paths accumulate
func TestConfigSuites(t *testing.T) {
	cfg, err := ParseFlags(newFlagSet(), []string{
		"-f", "facts.json",
		"-suite", "suites/security.yaml",
		"-s", "suites/quality.yaml",
	})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if len(cfg.SuitePaths) != 2 {
		t.Errorf("SuitePaths: got %d, want 2: %v", len(cfg.SuitePaths), cfg.SuitePaths)
	}
}

// TestConfigMissingInput ensures a component source is required
func TestConfigMissingInput(t *testing.T) {
	_, err := ParseFlags(newFlagSet(), []string{"-suite", "suites/security.yaml"})
	if err == nil {
		t.Fatal("expected error for missing component input")
	}
	if !errors.Is(err, ErrMissingRequired) {
		t.Errorf("expected ErrMissingRequired, got %v", err)
	}
}

// TestConfigUnknownFormat rejects bad -format values
func TestConfigUnknownFormat(t *testing.T) {
	_, err := ParseFlags(newFlagSet(), []string{"-f", "facts.json", "-format", "xml"})
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

// TestConfigUnknownSeverity rejects bad -severity values
func TestConfigUnknownSeverity(t *testing.T) {
	_, err := ParseFlags(newFlagSet(), []string{"-f", "facts.json", "-severity", "catastrophic"})
	if err == nil {
		t.Fatal("expected error for unknown severity")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

// TestConfigOfflineSourcesConflict rejects -offline with -sources
func TestConfigOfflineSourcesConflict(t *testing.T) {
	_, err := ParseFlags(newFlagSet(), []string{"-f", "facts.json", "-offline", "-sources", "osv"})
	if err == nil {
		t.Fatal("expected error for -offline with -sources")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

// TestConfigUpdateBaselineRequiresBaseline
func TestConfigUpdateBaselineRequiresBaseline(t *testing.T) {
	_, err := ParseFlags(newFlagSet(), []string{"-f", "facts.json", "-update-baseline"})
	if err == nil {
		t.Fatal("expected error for -update-baseline without -baseline")
	}
	if !errors.Is(err, ErrMissingRequired) {
		t.Errorf("expected ErrMissingRequired, got %v", err)
	}
}

// TestConfigEnvOverride verifies DEPGATE_* fills unset flags
func TestConfigEnvOverride(t *testing.T) {
	t.Setenv("DEPGATE_CONCURRENCY", "8")
	t.Setenv("DEPGATE_FORMAT", "sarif")

	cfg, err := ParseFlags(newFlagSet(), []string{"-f", "facts.json"})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if cfg.Concurrency != 8 {
		t.Errorf("Concurrency from env: got %d, want 8", cfg.Concurrency)
	}
	if cfg.OutputFormat != "sarif" {
		t.Errorf("OutputFormat from env: got %q, want 'sarif'", cfg.OutputFormat)
	}
}

// TestConfigFlagBeatsEnv verifies command-line flags win over environment
func TestConfigFlagBeatsEnv(t *testing.T) {
	t.Setenv("DEPGATE_CONCURRENCY", "8")

	cfg, err := ParseFlags(newFlagSet(), []string{"-f", "facts.json", "-c", "50"})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if cfg.Concurrency != 50 {
		t.Errorf("Concurrency: got %d, want flag value 50", cfg.Concurrency)
	}
}

// TestConfigNoColorEnv verifies the NO_COLOR convention is honored
func TestConfigNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	cfg, err := ParseFlags(newFlagSet(), []string{"-f", "facts.json"})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if !cfg.NoColor {
		t.Error("expected NoColor with NO_COLOR set")
	}
}

// TestConfigEnvTimeout verifies DEPGATE_TIMEOUT accepts durations
func TestConfigEnvTimeout(t *testing.T) {
	t.Setenv("DEPGATE_TIMEOUT", "2m")

	cfg, err := ParseFlags(newFlagSet(), []string{"-f", "facts.json"})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Timeout from env: got %v, want 2m", cfg.Timeout)
	}
}

// TestConfigHooks verifies hook flags parse
func TestConfigHooks(t *testing.T) {
	cfg, err := ParseFlags(newFlagSet(), []string{
		"-f", "facts.json",
		"-webhook", "https://ci.internal/hook",
		"-metrics-port", "9090",
	})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if cfg.WebhookURL != "https://ci.internal/hook" {
		t.Errorf("WebhookURL: got %q", cfg.WebhookURL)
	}
	if cfg.MetricsPort != 9090 {
		t.Errorf("MetricsPort: got %d, want 9090", cfg.MetricsPort)
	}
}

// TestConfigHistoryTags verifies -tag accumulates
func TestConfigHistoryTags(t *testing.T) {
	cfg, err := ParseFlags(newFlagSet(), []string{
		"-f", "facts.json",
		"-history", ".depgate/history",
		"-tag", "ci",
		"-tag", "nightly",
	})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	if cfg.HistoryPath != ".depgate/history" {
		t.Errorf("HistoryPath: got %q", cfg.HistoryPath)
	}
	if len(cfg.HistoryTags) != 2 {
		t.Errorf("HistoryTags: got %d, want 2: %v", len(cfg.HistoryTags), cfg.HistoryTags)
	}
}

// TestConfigMultiFormats verifies -formats validation
func TestConfigMultiFormats(t *testing.T) {
	cfg, err := ParseFlags(newFlagSet(), []string{
		"-f", "facts.json", "-o", "report.json", "-formats", "sarif,md",
	})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if len(cfg.Formats) != 2 {
		t.Errorf("Formats: got %d, want 2: %v", len(cfg.Formats), cfg.Formats)
	}

	if _, err := ParseFlags(newFlagSet(), []string{
		"-f", "facts.json", "-formats", "console",
	}); err == nil {
		t.Error("expected error for console in -formats")
	}
}
