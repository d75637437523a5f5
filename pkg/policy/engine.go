package policy

import (
	"context"
	"time"

	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/finding"
	"github.com/depgate/depgate/pkg/workerpool"
)

// Evaluation is the outcome of one rule against one component.
type Evaluation struct {
	RuleName  string            `json:"rule_name"`
	CheckType finding.CheckType `json:"check_type"`
	Severity  finding.Severity  `json:"severity"`
	Summary   string            `json:"summary,omitempty"`
	Triggered bool              `json:"triggered"`
	Skipped   bool              `json:"skipped,omitempty"`
	Err       string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
}

// ComponentResult holds every rule evaluation for one component, in suite
// document order.
type ComponentResult struct {
	Component   facts.Component `json:"component"`
	Fingerprint uint64          `json:"fingerprint"`
	Evaluations []Evaluation    `json:"evaluations"`
}

// Violations returns the triggered evaluations.
func (r ComponentResult) Violations() []Evaluation {
	var out []Evaluation
	for _, ev := range r.Evaluations {
		if ev.Triggered {
			out = append(out, ev)
		}
	}
	return out
}

// Errors returns the evaluations that failed or were skipped with an error.
func (r ComponentResult) Errors() []Evaluation {
	var out []Evaluation
	for _, ev := range r.Evaluations {
		if ev.Err != "" {
			out = append(out, ev)
		}
	}
	return out
}

// Engine evaluates compiled suites against snapshots. The zero-value-like
// form from NewEngine(nil) evaluates batches sequentially; give it a worker
// pool to fan components out.
type Engine struct {
	pool *workerpool.Pool
}

// NewEngine returns an engine. pool may be nil.
func NewEngine(pool *workerpool.Pool) *Engine {
	return &Engine{pool: pool}
}

// EvaluateComponent runs every rule of the suite against one snapshot.
// Rules are independent: a triggered rule never stops the sweep, and a
// rule error is recorded on that rule's result without aborting the
// others. The context is checked between rules; once it is done the
// remaining rules are marked skipped and the context error is returned
// alongside the partial results.
func (e *Engine) EvaluateComponent(ctx context.Context, cs *CompiledSuite, snap *facts.Snapshot) (ComponentResult, error) {
	res := ComponentResult{
		Component:   snap.Component,
		Fingerprint: snap.Fingerprint(),
		Evaluations: make([]Evaluation, 0, len(cs.Rules)),
	}
	env := snap.Env()

	var cancelled error
	for _, rule := range cs.Rules {
		if cancelled == nil {
			cancelled = ctx.Err()
		}
		ev := Evaluation{
			RuleName:  rule.Name,
			CheckType: rule.CheckType,
			Severity:  rule.Severity,
			Summary:   rule.Summary,
		}
		switch {
		case cancelled != nil:
			ev.Skipped = true
			ev.Err = cancelled.Error()
		case rule.Broken():
			ev.Skipped = true
			ev.Err = rule.Err.Error()
		default:
			start := time.Now()
			var triggered bool
			var err error
			if rule.Check != nil {
				triggered, err = rule.Check(snap)
			} else {
				triggered, err = rule.Program.EvalBool(env)
			}
			ev.Duration = time.Since(start)
			if err != nil {
				ev.Err = err.Error()
			} else {
				ev.Triggered = triggered
			}
		}
		res.Evaluations = append(res.Evaluations, ev)
	}
	return res, cancelled
}

// EvaluateBatch evaluates the suite against every snapshot. Snapshots are
// read-only, so components fan out over the worker pool while each
// component's rules stay sequential; results keep input order either way.
func (e *Engine) EvaluateBatch(ctx context.Context, cs *CompiledSuite, snaps []*facts.Snapshot) ([]ComponentResult, error) {
	if len(snaps) == 0 {
		return nil, ctx.Err()
	}
	if e.pool == nil {
		out := make([]ComponentResult, len(snaps))
		for i, snap := range snaps {
			out[i], _ = e.EvaluateComponent(ctx, cs, snap)
		}
		return out, ctx.Err()
	}
	out := workerpool.Map(e.pool, snaps, func(snap *facts.Snapshot) ComponentResult {
		res, _ := e.EvaluateComponent(ctx, cs, snap)
		return res
	})
	return out, ctx.Err()
}

// Totals aggregates a batch for summaries, exit codes, and report footers.
type Totals struct {
	Components  int                       `json:"components"`
	Evaluations int                       `json:"evaluations"`
	Violations  int                       `json:"violations"`
	Errors      int                       `json:"errors"`
	Skipped     int                       `json:"skipped"`
	BySeverity  map[finding.Severity]int  `json:"by_severity"`
	ByCheckType map[finding.CheckType]int `json:"by_check_type"`
}

// Summarize folds component results into totals. Violation counts are
// bucketed by rule severity and check type.
func Summarize(results []ComponentResult) Totals {
	t := Totals{
		Components:  len(results),
		BySeverity:  make(map[finding.Severity]int),
		ByCheckType: make(map[finding.CheckType]int),
	}
	for _, res := range results {
		for _, ev := range res.Evaluations {
			t.Evaluations++
			if ev.Skipped {
				t.Skipped++
			}
			if ev.Err != "" && !ev.Skipped {
				t.Errors++
			}
			if ev.Triggered {
				t.Violations++
				t.BySeverity[ev.Severity]++
				t.ByCheckType[ev.CheckType]++
			}
		}
	}
	return t
}

// Clean reports whether the batch had no violations and no errors.
func (t Totals) Clean() bool {
	return t.Violations == 0 && t.Errors == 0 && t.Skipped == 0
}
