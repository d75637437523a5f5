// Package core orchestrates guardrail runs: it drives the policy engine
// over component snapshots with a worker pool, turns evaluations into
// events on the dispatcher, and aggregates the run summary.
package core

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/duration"
	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/filter"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/events"
	"github.com/depgate/depgate/pkg/output/exitcode"
	"github.com/depgate/depgate/pkg/policy"
)

// EvaluationCallback is called for each evaluation event during execution.
// Use this for real-time streaming beyond the registered writers and hooks.
type EvaluationCallback func(event *events.EvaluationEvent)

// ExecutorConfig holds run settings.
type ExecutorConfig struct {
	Suite       *policy.CompiledSuite
	SuitePath   string
	Snapshots   []*facts.Snapshot
	Concurrency int
	Timeout     time.Duration // per-component sweep budget
	FailFast    bool          // cancel the run on the first violation
	Offline     bool          // no network fact sources in play
	MinSeverity string        // display-only: severity floor applied downstream
	Sources     []string      // fact provider names feeding the run
	Filter      *filter.Filter

	// OnEvaluation is called for each evaluation event (optional).
	OnEvaluation EvaluationCallback
}

// Executor runs a compiled suite against component snapshots in parallel.
type Executor struct {
	config ExecutorConfig
	disp   *dispatcher.Dispatcher
	exits  *exitcode.Manager
	engine *policy.Engine
	logger *slog.Logger
	runID  string
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets a custom structured logger for the executor.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithRunID pins the run identifier instead of generating one.
func WithRunID(id string) ExecutorOption {
	return func(e *Executor) { e.runID = id }
}

// NewExecutor creates a run executor. disp receives every event of the
// run; exits accumulates the outcome for the process exit code.
func NewExecutor(cfg ExecutorConfig, disp *dispatcher.Dispatcher, exits *exitcode.Manager, opts ...ExecutorOption) *Executor {
	// Validate and apply defaults for invalid config values
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.ConcurrencyMedium
	}
	if cfg.Concurrency > len(cfg.Snapshots) && len(cfg.Snapshots) > 0 {
		cfg.Concurrency = len(cfg.Snapshots)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = duration.ContextShort
	}
	if exits == nil {
		exits = exitcode.New(exitcode.DefaultConfig())
	}

	executor := &Executor{
		config: cfg,
		disp:   disp,
		exits:  exits,
		engine: policy.NewEngine(nil),
		logger: slog.Default(),
		runID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(executor)
	}
	return executor
}

// RunID returns the identifier stamped on every event of this run.
func (e *Executor) RunID() string { return e.runID }

// RunResult is what Execute hands back to the caller after the event
// stream has been fully dispatched.
type RunResult struct {
	RunID      string
	Totals     events.SummaryTotals
	Risk       events.RiskInfo
	ExitCode   exitcode.Code
	ExitReason string
	Duration   time.Duration

	// Events holds every evaluation event of the run, for post-run
	// consumers such as baseline capture and gate policies.
	Events []*events.EvaluationEvent

	// Summary is the dispatched summary event.
	Summary *events.SummaryEvent
}

// sweep carries one component's results from a worker to the collector.
type sweep struct {
	snap   *facts.Snapshot
	result policy.ComponentResult
	tookMs float64
}

// Execute runs every rule against every snapshot with the worker pool
// pattern. Events flow to the dispatcher as they happen; the summary and
// complete events close the stream. The returned error is only ever the
// context error that interrupted the run.
func (e *Executor) Execute(ctx context.Context) (RunResult, error) {
	startedAt := time.Now()

	e.dispatch(ctx, e.buildStartEvent())

	// Counters shared between workers, collector, and the progress loop.
	var counts runCounts
	counts.totalComponents = int64(len(e.config.Snapshots))

	// Error spiral detection: a suite that errors on nearly every rule
	// (wrong field names, wrong fact shapes) will error thousands of
	// times on a big dependency tree. Abort early instead.
	const (
		errorSpiralMinSamples     = 50  // Check after this many evaluations
		errorSpiralRatioThreshold = 0.8 // Abort if error ratio exceeds this
	)
	var spiralOnce sync.Once
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	checkErrorSpiral := func() {
		done := counts.evaluations.Load()
		if done < errorSpiralMinSamples {
			return
		}
		errored := counts.errors.Load()
		if float64(errored)/float64(done) > errorSpiralRatioThreshold {
			spiralOnce.Do(func() {
				e.logger.Error("evaluation error spiral detected, aborting run",
					slog.Int64("errors", errored),
					slog.Int64("evaluations", done))
				abort := events.NewErrorEvent(e.runID, events.ErrorTypeEval,
					"error spiral: most evaluations are failing, aborting run")
				abort.Fatal = true
				e.dispatch(ctx, abort)
				cancelRun()
			})
		}
	}

	// Create channels for work distribution
	tasks := make(chan *facts.Snapshot, e.config.Concurrency*2)
	sweeps := make(chan sweep, e.config.Concurrency*2)

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < e.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for snap := range tasks {
				select {
				case <-runCtx.Done():
					return
				default:
				}

				e.dispatch(ctx, events.NewComponentStartedEvent(e.runID, componentInfo(snap)))

				sweepCtx, cancel := context.WithTimeout(runCtx, e.config.Timeout)
				sweepStart := time.Now()
				res, _ := e.engine.EvaluateComponent(sweepCtx, e.config.Suite, snap)
				cancel()

				sweeps <- sweep{
					snap:   snap,
					result: res,
					tookMs: float64(time.Since(sweepStart).Microseconds()) / 1000.0,
				}
			}
		}()
	}

	// Result collector goroutine: converts evaluations to events, applies
	// the filter, records exit state, and accumulates summary stats.
	agg := newAggregator()
	collected := make([]*events.EvaluationEvent, 0, len(e.config.Snapshots)*len(e.config.Suite.Rules))
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for sw := range sweeps {
			snap := sw.snap
			compViolations, compErrors := 0, 0

			for i, ev := range sw.result.Evaluations {
				event := e.buildEvaluationEvent(sw.result, i, snap)
				collected = append(collected, event)

				outcome := event.Result.Outcome
				counts.record(outcome)
				counts.evalMicros.Add(ev.Duration.Microseconds())
				e.exits.Record(outcome)
				agg.observe(event, snap)

				switch outcome {
				case events.OutcomeTriggered:
					compViolations++
				case events.OutcomeError:
					compErrors++
					e.dispatch(ctx, e.buildEvalErrorEvent(event))
					checkErrorSpiral()
				}

				if e.config.Filter != nil && !e.config.Filter.ShouldShow(event) {
					continue
				}
				e.dispatch(ctx, event)
				if e.config.OnEvaluation != nil {
					e.config.OnEvaluation(event)
				}
				if outcome == events.OutcomeTriggered {
					e.dispatch(ctx, e.buildViolationEvent(event, &counts))
					if e.config.FailFast {
						cancelRun()
					}
				}
			}

			counts.componentsDone.Add(1)
			e.dispatch(ctx, events.NewComponentCompletedEvent(
				e.runID, componentInfo(snap), compViolations, compErrors, sw.tookMs))
		}
	}()

	// Progress emission goroutine
	progressDone := make(chan struct{})
	var progressWg sync.WaitGroup
	progressWg.Add(1)
	go func() {
		defer progressWg.Done()
		ticker := time.NewTicker(duration.ProgressRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.dispatch(ctx, e.buildProgressEvent(&counts, startedAt))
			case <-progressDone:
				return
			}
		}
	}()

	// Send all snapshots to workers
sendLoop:
	for _, snap := range e.config.Snapshots {
		select {
		case <-runCtx.Done():
			break sendLoop
		case tasks <- snap:
		}
	}
	close(tasks)

	// Wait for workers to complete
	wg.Wait()
	close(sweeps)

	// Wait for collector, then stop progress
	collectorWg.Wait()
	close(progressDone)
	progressWg.Wait()

	// Only the caller's context marks the run interrupted; fail-fast and
	// spiral aborts keep their own exit classification.
	if ctx.Err() != nil {
		e.exits.SetInterrupted()
	}

	summary := e.buildSummaryEvent(agg, &counts, startedAt)
	e.dispatch(ctx, summary)

	code, reason := e.exits.ExitCode()
	e.dispatch(ctx, events.NewCompleteEvent(e.runID, int(code), reason))

	result := RunResult{
		RunID:      e.runID,
		Totals:     summary.Totals,
		Risk:       summary.Risk,
		ExitCode:   code,
		ExitReason: reason,
		Duration:   time.Since(startedAt),
		Events:     collected,
		Summary:    summary,
	}
	return result, ctx.Err()
}

// dispatch sends one event, logging instead of failing the run when a
// writer rejects it.
func (e *Executor) dispatch(ctx context.Context, event events.Event) {
	if e.disp == nil {
		return
	}
	if err := e.disp.Dispatch(ctx, event); err != nil {
		e.logger.Warn("event dispatch failed",
			slog.String("event_type", string(event.EventType())),
			slog.String("error", err.Error()))
	}
}

// runCounts carries the atomic counters shared across run goroutines.
type runCounts struct {
	totalComponents int64
	componentsDone  atomic.Int64
	evaluations     atomic.Int64
	violations      atomic.Int64
	passes          atomic.Int64
	errors          atomic.Int64
	skipped         atomic.Int64
	evalMicros      atomic.Int64
}

func (c *runCounts) record(outcome events.Outcome) {
	c.evaluations.Add(1)
	switch outcome {
	case events.OutcomeTriggered:
		c.violations.Add(1)
	case events.OutcomePass:
		c.passes.Add(1)
	case events.OutcomeError:
		c.errors.Add(1)
	case events.OutcomeSkipped:
		c.skipped.Add(1)
	}
}

func (c *runCounts) cleanRatePct() float64 {
	evals := c.evaluations.Load()
	if evals == 0 {
		return 100
	}
	return float64(evals-c.violations.Load()) / float64(evals) * 100
}

func (e *Executor) buildStartEvent() *events.StartEvent {
	start := events.NewStartEvent(e.runID)
	start.Suite = e.config.Suite.Suite.Name
	start.SuitePath = e.config.SuitePath
	start.SuiteFingerprint = suiteFingerprint(e.config.Suite.Suite)
	start.TotalRules = e.config.Suite.ValidCount()
	start.SkippedRules = len(e.config.Suite.BrokenRules())
	start.TotalComponents = len(e.config.Snapshots)
	start.Sources = e.config.Sources
	start.CheckTypes = suiteCheckTypes(e.config.Suite)
	start.Config = events.ConfigInfo{
		Concurrency: e.config.Concurrency,
		Timeout:     int(e.config.Timeout.Seconds()),
		FailFast:    e.config.FailFast,
		Offline:     e.config.Offline,
		MinSeverity: e.config.MinSeverity,
	}
	return start
}

// suiteCheckTypes lists the distinct check types of the suite in report
// order.
func suiteCheckTypes(cs *policy.CompiledSuite) []string {
	present := make(map[string]bool, len(cs.Rules))
	for _, r := range cs.Rules {
		present[r.CheckType.String()] = true
	}
	var out []string
	for _, ct := range checkTypeOrder() {
		if present[ct] {
			out = append(out, ct)
		}
	}
	return out
}
