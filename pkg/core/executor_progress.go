package core

import (
	"runtime"
	"sort"
	"time"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/output/events"
	"github.com/depgate/depgate/pkg/scoring"
)

// dimTally accumulates outcomes along one breakdown dimension.
type dimTally struct {
	total      int
	violations int
}

// aggregator accumulates summary statistics during a run. It is owned by
// the collector goroutine; the progress loop reads only the atomic
// counters, never the aggregator.
type aggregator struct {
	latenciesMs   []float64
	scoresByCheck map[string][]float64
	bySeverity    map[string]*dimTally
	byCheckType   map[string]*dimTally
	byEcosystem   map[string]*dimTally
	byOWASP       map[string]*dimTally
	violations    []events.ViolationInfo
}

func newAggregator() *aggregator {
	return &aggregator{
		scoresByCheck: make(map[string][]float64),
		bySeverity:    make(map[string]*dimTally),
		byCheckType:   make(map[string]*dimTally),
		byEcosystem:   make(map[string]*dimTally),
		byOWASP:       make(map[string]*dimTally),
	}
}

func tally(m map[string]*dimTally, key string, triggered bool) {
	if key == "" {
		return
	}
	t := m[key]
	if t == nil {
		t = &dimTally{}
		m[key] = t
	}
	t.total++
	if triggered {
		t.violations++
	}
}

// observe folds one evaluation event into the run statistics.
func (a *aggregator) observe(event *events.EvaluationEvent, snap *facts.Snapshot) {
	a.latenciesMs = append(a.latenciesMs, event.Result.DurationMs)

	score := scoring.Calculate(scoringInput(event, snap))
	ct := event.Rule.CheckType
	a.scoresByCheck[ct] = append(a.scoresByCheck[ct], score.RiskScore)

	triggered := event.Result.Outcome == events.OutcomeTriggered
	tally(a.bySeverity, event.Rule.Severity.String(), triggered)
	tally(a.byCheckType, ct, triggered)
	tally(a.byEcosystem, event.Component.Ecosystem, triggered)

	// Unmapped check types fall to the A00 placeholder; leave those out
	// of the OWASP breakdown rather than report a category that does not
	// exist in the Top 10.
	if code := defaults.GetOWASPCategory(ct); code != "A00:2021" {
		tally(a.byOWASP, code, triggered)
	}

	if triggered {
		a.violations = append(a.violations, events.ViolationInfo{
			RuleName:  event.Rule.Name,
			CheckType: ct,
			Severity:  event.Rule.Severity,
			Component: event.Component.Ref,
			Summary:   event.Rule.Summary,
		})
	}
}

// topViolations returns the worst violations, most severe first, capped
// at n. Ties keep rule name order so reruns produce identical reports.
func (a *aggregator) topViolations(n int) []events.ViolationInfo {
	out := make([]events.ViolationInfo, len(a.violations))
	copy(out, a.violations)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Severity.Score(), out[j].Severity.Score()
		if si != sj {
			return si > sj
		}
		if out[i].RuleName != out[j].RuleName {
			return out[i].RuleName < out[j].RuleName
		}
		return out[i].Component < out[j].Component
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// latencyPercentiles computes p50/p95/p99 over the evaluation durations.
func (a *aggregator) latencyPercentiles() events.LatencyInfo {
	if len(a.latenciesMs) == 0 {
		return events.LatencyInfo{}
	}
	sorted := make([]float64, len(a.latenciesMs))
	copy(sorted, a.latenciesMs)
	sort.Float64s(sorted)

	p99Idx := len(sorted) * 99 / 100
	if p99Idx >= len(sorted) {
		p99Idx = len(sorted) - 1
	}
	return events.LatencyInfo{
		P50Ms: sorted[len(sorted)*50/100],
		P95Ms: sorted[len(sorted)*95/100],
		P99Ms: sorted[p99Idx],
	}
}

// buildProgressEvent snapshots the run counters into a progress event.
// It runs on the progress goroutine and touches only atomic state.
func (e *Executor) buildProgressEvent(counts *runCounts, startedAt time.Time) *events.ProgressEvent {
	done := counts.componentsDone.Load()
	total := counts.totalComponents
	evals := counts.evaluations.Load()
	elapsed := time.Since(startedAt).Seconds()

	var pct float64
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}

	var compRate, evalRate float64
	if elapsed > 0 {
		compRate = float64(done) / elapsed
		evalRate = float64(evals) / elapsed
	}

	var avgEvalMs float64
	if evals > 0 {
		avgEvalMs = float64(counts.evalMicros.Load()) / 1000.0 / float64(evals)
	}

	var etaSec float64
	if compRate > 0 && done < total {
		etaSec = float64(total-done) / compRate
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return &events.ProgressEvent{
		BaseEvent: events.BaseEvent{
			Type: events.EventTypeProgress,
			Time: time.Now(),
			Run:  e.runID,
		},
		Progress: events.ProgressInfo{
			Phase:      "evaluating",
			Current:    int(done),
			Total:      int(total),
			Percentage: pct,
		},
		Rate: events.RateInfo{
			ComponentsPerSec:  compRate,
			EvaluationsPerSec: evalRate,
			AvgEvalMs:         avgEvalMs,
		},
		Timing: events.TimingInfo{
			ElapsedSec: elapsed,
			EtaSec:     etaSec,
		},
		Stats: events.StatsInfo{
			Violations:   int(counts.violations.Load()),
			Passes:       int(counts.passes.Load()),
			Errors:       int(counts.errors.Load()),
			Skipped:      int(counts.skipped.Load()),
			CleanRatePct: counts.cleanRatePct(),
		},
		Resources: &events.ResourceInfo{
			MemoryMB:   float64(mem.Alloc) / 1024 / 1024,
			Goroutines: runtime.NumGoroutine(),
		},
	}
}

// buildSummaryEvent assembles the final run summary from the aggregated
// statistics.
func (e *Executor) buildSummaryEvent(agg *aggregator, counts *runCounts, startedAt time.Time) *events.SummaryEvent {
	completedAt := time.Now()
	elapsed := completedAt.Sub(startedAt).Seconds()

	evaluations := int(counts.evaluations.Load())
	violations := int(counts.violations.Load())
	risk := scoring.Summarize(agg.scoresByCheck, evaluations, violations)

	var compRate float64
	if elapsed > 0 {
		compRate = float64(counts.componentsDone.Load()) / elapsed
	}

	code, reason := e.exits.ExitCode()

	return &events.SummaryEvent{
		BaseEvent: events.BaseEvent{
			Type: events.EventTypeSummary,
			Time: completedAt,
			Run:  e.runID,
		},
		Version: defaults.Version,
		Suite: events.SummarySuite{
			Name:        e.config.Suite.Suite.Name,
			Fingerprint: suiteFingerprint(e.config.Suite.Suite),
			Rules:       e.config.Suite.ValidCount(),
			Skipped:     len(e.config.Suite.BrokenRules()),
		},
		Totals: events.SummaryTotals{
			Components:  int(counts.componentsDone.Load()),
			Evaluations: evaluations,
			Violations:  violations,
			Passes:      int(counts.passes.Load()),
			Errors:      int(counts.errors.Load()),
			Skipped:     int(counts.skipped.Load()),
		},
		Risk: events.RiskInfo{
			Score:          risk.Score,
			Grade:          risk.Grade,
			CleanRatePct:   risk.CleanRatePct,
			Recommendation: risk.Recommendation,
		},
		Breakdown:     e.buildBreakdown(agg),
		Latency:       agg.latencyPercentiles(),
		TopViolations: agg.topViolations(5),
		Timing: events.SummaryTiming{
			StartedAt:        startedAt,
			CompletedAt:      completedAt,
			DurationSec:      elapsed,
			ComponentsPerSec: compRate,
		},
		ExitCode:   int(code),
		ExitReason: reason,
	}
}

// buildBreakdown converts the dimension tallies into their event form.
func (e *Executor) buildBreakdown(agg *aggregator) events.BreakdownInfo {
	return events.BreakdownInfo{
		BySeverity:  dimensionStats(agg.bySeverity),
		ByCheckType: dimensionStats(agg.byCheckType),
		ByEcosystem: dimensionStats(agg.byEcosystem),
		ByOWASP:     owaspStats(agg.byOWASP),
	}
}

func dimensionStats(tallies map[string]*dimTally) map[string]events.DimensionStats {
	if len(tallies) == 0 {
		return nil
	}
	out := make(map[string]events.DimensionStats, len(tallies))
	for key, t := range tallies {
		cleanRate := 100.0
		if t.total > 0 {
			cleanRate = float64(t.total-t.violations) / float64(t.total) * 100
		}
		out[key] = events.DimensionStats{
			Total:      t.total,
			Violations: t.violations,
			CleanRate:  cleanRate,
		}
	}
	return out
}

func owaspStats(tallies map[string]*dimTally) map[string]events.OWASPStats {
	if len(tallies) == 0 {
		return nil
	}
	out := make(map[string]events.OWASPStats, len(tallies))
	for code, t := range tallies {
		out[code] = events.OWASPStats{
			Name:       defaults.GetOWASPFullName(code),
			Total:      t.total,
			Violations: t.violations,
		}
	}
	return out
}
