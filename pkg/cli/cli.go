// Package cli provides unified CLI integration for the depgate commands.
// It bridges the guardrail packages (policy, validate, history, baseline)
// with the command mux in cmd/cli.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/depgate/depgate/pkg/history"
	"github.com/depgate/depgate/pkg/jsonutil"
	"github.com/depgate/depgate/pkg/output/baseline"
	"github.com/depgate/depgate/pkg/output/events"
	"github.com/depgate/depgate/pkg/policy"
	"github.com/depgate/depgate/pkg/validate"
)

// Config holds shared command configuration.
type Config struct {
	Verbose bool   `json:"verbose"`
	Format  string `json:"format"` // "text" or "json"
}

// DefaultConfig returns default command config.
func DefaultConfig() *Config {
	return &Config{
		Verbose: false,
		Format:  "text",
	}
}

func (c *Config) jsonOutput() bool {
	return strings.EqualFold(c.Format, "json")
}

func writeJSON(w io.Writer, v any) error {
	data, err := jsonutil.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// CollectSuiteFiles resolves each path, which may be a suite file or a
// directory, into the ordered list of suite files underneath it.
func CollectSuiteFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("suite path %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(p))
			if ext == ".yaml" || ext == ".yml" {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking suite dir %s: %w", path, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// RuleListing is one rule row in the rules command output.
type RuleListing struct {
	Suite     string `json:"suite"`
	Name      string `json:"name"`
	CheckType string `json:"check_type"`
	Severity  string `json:"severity"`
	Summary   string `json:"summary,omitempty"`
}

// RunRules lists every rule in the given suite files or directories.
func RunRules(cfg *Config, paths []string, w io.Writer) error {
	files, err := CollectSuiteFiles(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no suite files found")
	}

	var listings []RuleListing
	for _, f := range files {
		suite, err := policy.Load(f)
		if err != nil {
			return err
		}
		for _, r := range suite.Filters {
			listings = append(listings, RuleListing{
				Suite:     suite.Name,
				Name:      r.Name,
				CheckType: string(r.CheckType),
				Severity:  string(r.Severity),
				Summary:   r.Summary,
			})
		}
	}

	if cfg.jsonOutput() {
		return writeJSON(w, listings)
	}

	for _, l := range listings {
		fmt.Fprintf(w, "[%s] %-40s %-12s %s\n", l.Suite, l.Name, l.CheckType, l.Severity)
		if cfg.Verbose && l.Summary != "" {
			fmt.Fprintf(w, "    %s\n", l.Summary)
		}
	}
	fmt.Fprintf(w, "\n%d rules across %d suite file(s)\n", len(listings), len(files))
	return nil
}

// RunLint lints the suites under path and writes the result.
// The returned result is non-nil on lint failure so callers can
// inspect the problem counts for the exit code.
func RunLint(cfg *Config, path string, failFast bool, w io.Writer) (*validate.ValidationResult, error) {
	result, err := validate.ValidateSuites(path, failFast, cfg.Verbose)
	if err != nil {
		return result, err
	}

	if cfg.jsonOutput() {
		if err := writeJSON(w, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// RunHistoryList prints the stored runs, most recent first.
func RunHistoryList(cfg *Config, dir, suite string, limit int, w io.Writer) error {
	store, err := history.NewStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	var records []*history.RunRecord
	if suite != "" {
		records, err = store.List(suite, time.Time{}, time.Time{}, limit)
	} else {
		records, err = store.ListAll(limit)
	}
	if err != nil {
		return err
	}

	if cfg.jsonOutput() {
		return writeJSON(w, records)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "no stored runs")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(w, "%-14s %s  %-24s grade=%-2s clean=%.1f%% violations=%d\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04"), r.Suite,
			r.Grade, r.CleanRatePct, r.ViolationCount)
	}
	return nil
}

// RunHistoryTrend prints the clean-rate trend for one suite.
func RunHistoryTrend(cfg *Config, dir, suite string, since time.Duration, maxPoints int, w io.Writer) error {
	if suite == "" {
		return fmt.Errorf("suite name required for trend")
	}
	store, err := history.NewStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	points, err := store.GetTrend(suite, time.Now().Add(-since), maxPoints)
	if err != nil {
		return err
	}

	if cfg.jsonOutput() {
		return writeJSON(w, points)
	}

	if len(points) == 0 {
		fmt.Fprintf(w, "no runs for suite %q in the window\n", suite)
		return nil
	}
	for _, p := range points {
		fmt.Fprintf(w, "%s  grade=%-2s clean=%.1f%% violations=%d\n",
			p.Timestamp.Format("2006-01-02 15:04"), p.Grade, p.CleanRatePct, p.ViolationCount)
	}
	return nil
}

// RunHistoryCompare diffs two stored runs by ID.
func RunHistoryCompare(cfg *Config, dir, baseID, compareID string, w io.Writer) error {
	store, err := history.NewStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := store.Compare(baseID, compareID)
	if err != nil {
		return err
	}

	if cfg.jsonOutput() {
		return writeJSON(w, result)
	}

	verdict := "regressed"
	if result.Improved {
		verdict = "improved"
	}
	fmt.Fprintf(w, "%s -> %s: %s\n", result.BaseID, result.CompareID, verdict)
	fmt.Fprintf(w, "  clean rate: %+.1f%%\n", result.CleanRateDelta)
	fmt.Fprintf(w, "  violations: %+d\n", result.ViolationDelta)
	fmt.Fprintf(w, "  errors:     %+d\n", result.ErrorDelta)
	for check, delta := range result.CheckDeltas {
		fmt.Fprintf(w, "  %-12s %+.1f%%\n", check, delta)
	}
	return nil
}

// RunHistoryPrune removes runs older than the cutoff.
func RunHistoryPrune(cfg *Config, dir string, olderThan time.Duration, w io.Writer) error {
	store, err := history.NewStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.Prune(olderThan)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "pruned %d run(s)\n", removed)
	return nil
}

// RunHistoryStats prints storage statistics.
func RunHistoryStats(cfg *Config, dir string, w io.Writer) error {
	store, err := history.NewStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats()
	if err != nil {
		return err
	}

	if cfg.jsonOutput() {
		return writeJSON(w, stats)
	}

	fmt.Fprintf(w, "runs:    %d\n", stats.TotalRuns)
	fmt.Fprintf(w, "suites:  %d\n", stats.UniqueSuites)
	if !stats.OldestRun.IsZero() {
		fmt.Fprintf(w, "oldest:  %s\n", stats.OldestRun.Format("2006-01-02 15:04"))
		fmt.Fprintf(w, "newest:  %s\n", stats.NewestRun.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "storage: %d bytes\n", stats.StorageSizeBytes)
	return nil
}

// RunBaselineShow prints the entries of a baseline file.
func RunBaselineShow(cfg *Config, path string, w io.Writer) error {
	b, err := baseline.LoadBaseline(path)
	if err != nil {
		return err
	}

	if cfg.jsonOutput() {
		return writeJSON(w, b)
	}

	fmt.Fprintf(w, "baseline %s: %d known violation(s)\n", path, b.Len())
	for _, v := range b.Violations {
		fmt.Fprintf(w, "  %-40s %-10s %s\n", v.Rule, v.Severity, v.Component)
	}
	return nil
}

// RunBaselineDiff compares a JSON results export against a baseline.
// resultsPath must hold the JSON array written by the scan json writer.
func RunBaselineDiff(cfg *Config, baselinePath, resultsPath string, w io.Writer) (*baseline.ComparisonResult, error) {
	b, err := baseline.LoadBaseline(baselinePath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resultsPath)
	if err != nil {
		return nil, fmt.Errorf("reading results file: %w", err)
	}
	var results []*events.EvaluationEvent
	if err := jsonutil.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parsing results file %s: %w", resultsPath, err)
	}

	comp := b.Compare(baseline.ExtractViolations(results))

	if cfg.jsonOutput() {
		return comp, writeJSON(w, comp)
	}

	fmt.Fprintln(w, comp.Summary)
	for _, v := range comp.NewViolations {
		fmt.Fprintf(w, "  NEW   %-40s %s\n", v.Rule, v.Component)
	}
	for _, v := range comp.FixedViolations {
		fmt.Fprintf(w, "  FIXED %-40s %s\n", v.Rule, v.Component)
	}
	if cfg.Verbose {
		for _, v := range comp.KnownViolations {
			fmt.Fprintf(w, "  KNOWN %-40s %s\n", v.Rule, v.Component)
		}
	}
	return comp, nil
}
