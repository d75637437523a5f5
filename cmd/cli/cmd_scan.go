package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/depgate/depgate/pkg/cli"
	"github.com/depgate/depgate/pkg/config"
	"github.com/depgate/depgate/pkg/core"
	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/duration"
	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/factsource"
	"github.com/depgate/depgate/pkg/filter"
	"github.com/depgate/depgate/pkg/input"
	"github.com/depgate/depgate/pkg/output"
	"github.com/depgate/depgate/pkg/output/baseline"
	"github.com/depgate/depgate/pkg/output/events"
	"github.com/depgate/depgate/pkg/output/exitcode"
	"github.com/depgate/depgate/pkg/output/gate"
	"github.com/depgate/depgate/pkg/policy"
	"github.com/depgate/depgate/pkg/ratelimit"
	"github.com/depgate/depgate/pkg/retry"
	"github.com/depgate/depgate/pkg/sbom"
	"github.com/depgate/depgate/pkg/scriptrule"
	"github.com/depgate/depgate/pkg/ui"
	"github.com/depgate/depgate/presets"
	"github.com/depgate/depgate/templates"
)

func runScan() {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	cfg, err := config.ParseFlags(fs, os.Args[2:])
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(int(exitcode.Configuration))
	}

	ui.SetNoColor(cfg.NoColor)
	ui.SetSilent(cfg.Silent)
	jsonToStdout := cfg.OutputFile == "" && (cfg.OutputFormat != "console" || cfg.JSONLines)
	if !cfg.Silent && !jsonToStdout {
		ui.PrintCompactBanner()
	}

	ctx, cancel := cli.SignalContext(duration.StreamSlow)
	defer cancel()

	// Suite first: a broken suite should fail before any network fetch.
	suite, suitePath, err := loadCompiledSuite(cfg)
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(int(exitcode.Configuration))
	}

	if cfg.DryRun {
		for _, r := range suite.Rules {
			status := "ok"
			if r.Broken() {
				status = fmt.Sprintf("broken: %v", r.Err)
			}
			fmt.Printf("%-40s %-12s %-10s %s\n", r.Name, r.CheckType, r.Severity, status)
		}
		fmt.Printf("\n%d rules (%d valid)\n", len(suite.Rules), suite.ValidCount())
		os.Exit(int(exitcode.Success))
	}

	snapshots, err := loadSnapshots(cfg)
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(int(exitcode.Facts))
	}
	if len(snapshots) == 0 {
		ui.PrintError("no components to evaluate")
		os.Exit(int(exitcode.Facts))
	}

	sources := []string{factsource.SourceFile}
	if !cfg.Offline {
		fetched, err := enrichSnapshots(ctx, cfg, snapshots)
		if err != nil {
			ui.PrintError(err.Error())
			os.Exit(int(exitcode.Facts))
		}
		sources = append(sources, fetched...)
	}

	flt, err := buildFilter(cfg)
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(int(exitcode.Configuration))
	}

	outCfg, err := buildOutputConfig(cfg)
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(int(exitcode.Configuration))
	}
	disp, err := output.BuildDispatcher(outCfg)
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(int(exitcode.Configuration))
	}

	if !cfg.Silent && !jsonToStdout {
		checkTypes := make([]string, 0, 4)
		seen := map[string]bool{}
		for _, r := range suite.Rules {
			ct := r.CheckType.String()
			if !seen[ct] {
				seen[ct] = true
				checkTypes = append(checkTypes, ct)
			}
		}
		ui.EvalManifest(suite.Suite.Name, suite.ValidCount(), checkTypes,
			len(snapshots), cfg.Concurrency).Print()
	}

	exits := exitcode.New(exitcode.DefaultConfig())

	var progress *ui.Progress
	var onEval core.EvaluationCallback
	if cfg.Stats && !cfg.Silent && !jsonToStdout {
		progress = ui.NewProgress(ui.ProgressConfig{
			Total:   len(snapshots) * suite.ValidCount(),
			ShowEPS: true,
		})
		onEval = func(event *events.EvaluationEvent) {
			progress.Increment(string(event.Result.Outcome))
		}
		progress.Start()
	}

	exec := core.NewExecutor(core.ExecutorConfig{
		Suite:        suite,
		SuitePath:    suitePath,
		Snapshots:    snapshots,
		Concurrency:  cfg.Concurrency,
		Timeout:      cfg.Timeout,
		FailFast:     cfg.FailFast,
		Offline:      cfg.Offline,
		MinSeverity:  cfg.MinSeverity,
		Sources:      sources,
		Filter:       flt,
		OnEvaluation: onEval,
	}, disp, exits)

	result, _ := exec.Execute(ctx)
	if progress != nil {
		progress.Stop()
	}

	if err := disp.Close(); err != nil {
		ui.PrintWarning(fmt.Sprintf("closing writers: %v", err))
	}

	code := result.ExitCode

	// Baseline handling can forgive known violations; the gate can only
	// tighten the verdict. Order matters.
	if cfg.BaselineFile != "" {
		code = applyBaseline(cfg, result, code)
	}
	if cfg.GatePolicy != "" {
		code = applyGate(cfg, result, code)
	}

	os.Exit(int(code))
}

// loadSnapshots gathers component snapshots from every configured input:
// facts files, a CycloneDX SBOM, and bare component refs. Refs yield
// empty snapshots that the enrichment pass fills in.
func loadSnapshots(cfg *config.Config) ([]*facts.Snapshot, error) {
	var snaps []*facts.Snapshot

	if cfg.FactsPath != "" {
		loaded, err := factsource.Load(cfg.FactsPath)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, loaded...)
	}

	if cfg.SBOMFile != "" {
		loaded, err := sbom.ReadFile(cfg.SBOMFile)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, loaded...)
	}

	refs, err := (&input.RefSource{
		Refs:     cfg.Components,
		ListFile: cfg.ListFile,
		Stdin:    cfg.StdinInput,
	}).GetRefs()
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		comp, err := facts.ParseRef(ref)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, &facts.Snapshot{Component: comp})
	}

	return dedupeSnapshots(snaps), nil
}

// dedupeSnapshots keeps the first snapshot per component coordinate, so
// a component named both in an SBOM and on the command line is only
// evaluated once.
func dedupeSnapshots(snaps []*facts.Snapshot) []*facts.Snapshot {
	seen := make(map[string]bool, len(snaps))
	out := snaps[:0]
	for _, s := range snaps {
		ref := s.Component.Ref()
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, s)
	}
	return out
}

// enrichSnapshots runs the configured fact providers over the snapshots
// and returns the provider names that took part.
func enrichSnapshots(ctx context.Context, cfg *config.Config, snaps []*facts.Snapshot) ([]string, error) {
	names := cfg.Sources
	if len(names) == 0 {
		names = []string{factsource.SourceOSV}
	}

	var providers []factsource.Provider
	for _, name := range names {
		switch name {
		case factsource.SourceOSV:
			osvCfg := factsource.OSVConfig{Concurrency: cfg.Concurrency}
			if cfg.RateLimit > 0 {
				osvCfg.Limiter = ratelimit.NewAdaptive(cfg.RateLimit)
			}
			if cfg.Retries > 0 {
				osvCfg.Retry = retry.Config{
					MaxAttempts: cfg.Retries + 1,
					InitDelay:   time.Second,
					MaxDelay:    duration.ContextShort,
					Strategy:    retry.Exponential,
					Jitter:      true,
				}
			}
			providers = append(providers, factsource.NewOSV(osvCfg))
		default:
			return nil, fmt.Errorf("unknown fact source %q", name)
		}
	}

	var progress *ui.LiveProgress
	if !cfg.Silent && ui.StderrIsTerminal() {
		ui.EnrichManifest(len(snaps), names, cfg.Timeout).Print()
		progress = ui.NewEnrichProgress("Fetching facts", len(snaps), "components")
		progress.Start()
	}

	fetcher := factsource.NewFetcher(factsource.FetcherConfig{
		Providers:   providers,
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.Timeout,
		OnComponent: func(ref, source string, err error) {
			if progress == nil {
				return
			}
			progress.Increment()
			if err == nil {
				progress.AddMetric("enriched")
			}
		},
	})
	stats, err := fetcher.Fetch(ctx, snaps)
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return nil, fmt.Errorf("fact enrichment: %w", err)
	}
	if stats.Failed > 0 {
		ui.PrintWarning(fmt.Sprintf("%d of %d components could not be enriched", stats.Failed, stats.Components))
	}
	return names, nil
}

// loadCompiledSuite resolves -suite paths (or the embedded preset when
// none are given) into one compiled suite, with scripted rules appended.
func loadCompiledSuite(cfg *config.Config) (*policy.CompiledSuite, string, error) {
	var compiled *policy.CompiledSuite
	var suitePath string

	if len(cfg.SuitePaths) > 0 {
		files, err := cli.CollectSuiteFiles(cfg.SuitePaths)
		if err != nil {
			return nil, "", err
		}
		if len(files) == 0 {
			return nil, "", fmt.Errorf("no suite files under %s", strings.Join(cfg.SuitePaths, ", "))
		}
		for _, f := range files {
			suite, err := policy.Load(f)
			if err != nil {
				return nil, "", err
			}
			if compiled == nil {
				compiled = suite.Compile()
				suitePath = f
				continue
			}
			if err := compiled.Add(suite.Compile().Rules...); err != nil {
				return nil, "", fmt.Errorf("%s: %w", f, err)
			}
		}
		if len(files) > 1 {
			suitePath = strings.Join(files, ",")
		}
	} else {
		data, err := presets.Suite(cfg.Preset)
		if err != nil {
			return nil, "", err
		}
		suite, err := policy.Parse(data)
		if err != nil {
			return nil, "", fmt.Errorf("preset %s: %w", cfg.Preset, err)
		}
		compiled = suite.Compile()
		suitePath = "preset:" + cfg.Preset
	}

	if cfg.ScriptDir != "" {
		rules, errs := scriptrule.LoadDir(cfg.ScriptDir)
		for _, err := range errs {
			ui.PrintWarning(err.Error())
		}
		if err := scriptrule.AddTo(compiled, rules...); err != nil {
			return nil, "", err
		}
	}

	return compiled, suitePath, nil
}

func buildFilter(cfg *config.Config) (*filter.Filter, error) {
	b := filter.NewBuilder()
	if cfg.MatchSeverity != "" {
		b.MatchSeverity(cfg.MatchSeverity)
	}
	if cfg.MinSeverity != "" {
		b.MatchMinSeverity(cfg.MinSeverity)
	}
	if cfg.MatchCheck != "" {
		b.MatchCheck(cfg.MatchCheck)
	}
	if cfg.MatchOutcome != "" {
		b.MatchOutcome(cfg.MatchOutcome)
	}
	if cfg.FilterSeverity != "" {
		b.FilterSeverity(cfg.FilterSeverity)
	}
	if cfg.FilterCheck != "" {
		b.FilterCheck(cfg.FilterCheck)
	}
	if cfg.FilterOutcome != "" {
		b.FilterOutcome(cfg.FilterOutcome)
	}
	if cfg.OnlyViolations {
		b.MatchTriggered()
	}
	return b.BuildFilter()
}

// buildOutputConfig maps the flag surface onto the dispatcher builder
// config: -o/-format pick the primary writer, -formats adds sibling
// exports next to -o, hooks pass straight through.
func buildOutputConfig(cfg *config.Config) (output.Config, error) {
	out := output.Config{
		ManifestPath:   cfg.SBOMFile,
		OnlyViolations: cfg.OnlyViolations,
		ShowPasses:     cfg.ShowPasses,
		Silent:         cfg.Silent,
		NoColor:        cfg.NoColor,
		WebhookURL:     cfg.WebhookURL,
		SlackWebhook:   cfg.SlackWebhook,
		MetricsPort:    cfg.MetricsPort,
		OTelEndpoint:   cfg.OTelEndpoint,
		HistoryPath:    cfg.HistoryPath,
		HistoryTags:    cfg.HistoryTags,
		Version:        defaults.Version,
	}

	format := cfg.OutputFormat
	if cfg.JSONLines {
		format = "jsonl"
	}
	if err := applyFormat(&out, format, cfg.OutputFile); err != nil {
		return out, err
	}
	for _, f := range cfg.Formats {
		if cfg.OutputFile == "" {
			return out, fmt.Errorf("-formats requires -o to derive export paths")
		}
		if err := applyFormat(&out, f, exportPath(cfg.OutputFile, f)); err != nil {
			return out, err
		}
	}

	if cfg.Template != "" {
		if err := applyTemplate(&out, cfg.Template, cfg.TemplateOut); err != nil {
			return out, err
		}
	}
	return out, nil
}

func applyFormat(out *output.Config, format, path string) error {
	switch format {
	case "console":
		return nil
	case "json":
		if path == "" {
			out.JSONMode = true
			return nil
		}
		out.JSONExport = path
	case "jsonl":
		if path == "" {
			out.JSONMode = true
			out.StreamMode = true
			return nil
		}
		out.JSONLExport = path
	case "sarif":
		if path == "" {
			return fmt.Errorf("format sarif requires -o")
		}
		out.SARIFExport = path
	case "junit":
		if path == "" {
			return fmt.Errorf("format junit requires -o")
		}
		out.JUnitExport = path
	case "md":
		if path == "" {
			return fmt.Errorf("format md requires -o")
		}
		out.MDExport = path
	case "pdf":
		if path == "" {
			return fmt.Errorf("format pdf requires -o")
		}
		out.PDFExport = path
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}

// exportPath swaps the extension of the primary output path for a
// sibling export, e.g. report.json + "sarif" -> report.sarif.
func exportPath(base, format string) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "." + format
}

// applyTemplate resolves a -template name against the writer builtins,
// then the bundled templates, then the filesystem.
func applyTemplate(out *output.Config, name, renderPath string) error {
	out.TemplateExport = renderPath
	switch name {
	case "csv", "github", "summary":
		out.TemplateBuiltin = name
		return nil
	}
	if src, err := templates.OutputTemplate(name); err == nil {
		out.TemplateSource = src
		return nil
	}
	if _, err := os.Stat(name); err != nil {
		return fmt.Errorf("unknown template %q: not a builtin (%s), bundled (%s), or file",
			name, "csv, github, summary", strings.Join(templates.OutputTemplates(), ", "))
	}
	out.TemplatePath = name
	return nil
}

// applyBaseline compares the run against a known-violations baseline.
// When every violation is already in the baseline, a violations exit is
// downgraded to success; -update-baseline rewrites the file instead.
func applyBaseline(cfg *config.Config, result core.RunResult, code exitcode.Code) exitcode.Code {
	if cfg.UpdateBaseline {
		suiteName := ""
		if result.Summary != nil {
			suiteName = result.Summary.Suite.Name
		}
		b := baseline.CreateFromResults(result.Events, result.RunID, suiteName)
		if err := b.SaveBaseline(cfg.BaselineFile); err != nil {
			ui.PrintError(fmt.Sprintf("saving baseline: %v", err))
			return exitcode.Configuration
		}
		ui.PrintSuccess(fmt.Sprintf("baseline updated: %s (%d violations)", cfg.BaselineFile, b.Len()))
		return code
	}

	b, err := baseline.LoadBaseline(cfg.BaselineFile)
	if err != nil {
		ui.PrintError(err.Error())
		return exitcode.Configuration
	}
	comp := b.Compare(baseline.ExtractViolations(result.Events))
	ui.PrintInfo(comp.Summary)
	for _, v := range comp.NewViolations {
		ui.PrintLiveResult("triggered", v.Rule, v.CheckType, v.Severity, v.Component)
	}
	if !comp.HasNewViolations && code == exitcode.Violations {
		return exitcode.Success
	}
	return code
}

// applyGate evaluates the run summary against a gate policy. Bare names
// resolve against the bundled policies before the filesystem.
func applyGate(cfg *config.Config, result core.RunResult, code exitcode.Code) exitcode.Code {
	var pol *gate.Policy
	var err error
	if data, bundleErr := templates.GatePolicy(cfg.GatePolicy); bundleErr == nil {
		pol, err = gate.ParsePolicy(data)
	} else {
		pol, err = gate.LoadPolicy(cfg.GatePolicy)
	}
	if err != nil {
		ui.PrintError(err.Error())
		return exitcode.Configuration
	}

	gr := pol.Evaluate(gateSummary(result))
	if gr.Pass {
		ui.PrintSuccess(fmt.Sprintf("gate %q passed", gr.PolicyName))
		return code
	}
	for _, f := range gr.Failures {
		ui.PrintError(fmt.Sprintf("gate: %s", f))
	}
	if code == exitcode.Success {
		return exitcode.Violations
	}
	return code
}

// gateSummary flattens the run summary into the shape gate policies
// evaluate.
func gateSummary(result core.RunResult) gate.SummaryData {
	bySeverity := make(map[string]int)
	byCheck := make(map[string]int)
	// One rule name per violation: gate ignores subtract per entry.
	var rules []string
	for _, ev := range result.Events {
		if ev.Result.Outcome != events.OutcomeTriggered {
			continue
		}
		bySeverity[string(ev.Rule.Severity)]++
		byCheck[ev.Rule.CheckType]++
		rules = append(rules, ev.Rule.Name)
	}

	errorRate := 0.0
	if result.Totals.Evaluations > 0 {
		errorRate = float64(result.Totals.Errors) / float64(result.Totals.Evaluations) * 100
	}
	return gate.SummaryData{
		TotalViolations:       result.Totals.Violations,
		ViolationsBySeverity:  bySeverity,
		ViolationsByCheckType: byCheck,
		ViolationRules:        rules,
		CleanRate:             result.Risk.CleanRatePct,
		ErrorRate:             errorRate,
		TotalEvaluations:      result.Totals.Evaluations,
		TotalErrors:           result.Totals.Errors,
	}
}
