// Package runner provides concurrent fan-out for per-component fact fetches.
package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/duration"
	"github.com/depgate/depgate/pkg/ratelimit"
)

// Result holds the outcome of processing a single item.
type Result[I, O any] struct {
	Item     I
	Data     O
	Err      error
	Duration time.Duration
}

// Stats tracks execution statistics.
type Stats struct {
	Total      int64
	Completed  int64
	Successful int64
	Failed     int64
	Skipped    int64
	StartTime  time.Time
}

// RPS returns the completion rate in items per second.
func (s *Stats) RPS() float64 {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&s.Completed)) / elapsed
}

// Progress returns completion percentage (0-100).
func (s *Stats) Progress() float64 {
	total := atomic.LoadInt64(&s.Total)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&s.Completed)) / float64(total) * 100
}

// TaskFunc processes a single item.
type TaskFunc[I, O any] func(ctx context.Context, item I) (O, error)

// Runner executes a task concurrently over a batch of items, pacing
// launches through an optional rate limiter and skipping items the
// caller marks unservable (typically because their fact source is down).
type Runner[I, O any] struct {
	// Concurrency is the number of parallel workers.
	Concurrency int

	// Timeout bounds each task invocation.
	Timeout time.Duration

	// Limiter paces task launches when set. Task outcomes feed its
	// adaptive backoff.
	Limiter *ratelimit.Limiter

	// Key derives the rate-limit source key for an item. Unset means
	// all items share the limiter's global bucket.
	Key func(item I) string

	// Skip is consulted before launching an item. A non-nil return
	// skips the item and records the error on its result.
	Skip func(item I) error

	// OnProgress is called after each item completes or is skipped.
	OnProgress func(completed, total int64, result Result[I, O])

	// OnError is called when an item fails.
	OnError func(item I, err error)

	// Stats tracks execution statistics for the most recent run.
	Stats Stats
}

// New creates a runner with fact-fetch defaults.
func New[I, O any]() *Runner[I, O] {
	return &Runner[I, O]{
		Concurrency: defaults.ConcurrencyLow,
		Timeout:     duration.FactFetch,
	}
}

// Run executes the task for all items concurrently and returns one
// result per launched or skipped item. A cancelled context stops new
// launches; in-flight tasks drain before Run returns, so the result
// slice may be shorter than the input.
func (r *Runner[I, O]) Run(ctx context.Context, items []I, task TaskFunc[I, O]) []Result[I, O] {
	if len(items) == 0 {
		return nil
	}

	resultsChan := make(chan Result[I, O], len(items))
	go func() {
		r.execute(ctx, items, task, func(res Result[I, O]) { resultsChan <- res })
		close(resultsChan)
	}()

	results := make([]Result[I, O], 0, len(items))
	for res := range resultsChan {
		results = append(results, res)
	}
	return results
}

// RunWithCallback executes tasks and streams each result to the
// callback as it completes instead of collecting a slice. The callback
// runs on worker goroutines and must be safe for concurrent use.
func (r *Runner[I, O]) RunWithCallback(ctx context.Context, items []I, task TaskFunc[I, O], callback func(Result[I, O])) {
	if len(items) == 0 {
		return
	}
	r.execute(ctx, items, task, callback)
}

// execute launches workers over items and blocks until every launched
// task has emitted its result.
func (r *Runner[I, O]) execute(ctx context.Context, items []I, task TaskFunc[I, O], emit func(Result[I, O])) {
	r.Stats = Stats{
		Total:     int64(len(items)),
		StartTime: time.Now(),
	}

	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = defaults.ConcurrencyLow
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = duration.FactFetch
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

launch:
	for _, item := range items {
		select {
		case <-ctx.Done():
			break launch
		default:
		}

		if r.Skip != nil {
			if err := r.Skip(item); err != nil {
				res := Result[I, O]{Item: item, Err: fmt.Errorf("skipped: %w", err)}
				atomic.AddInt64(&r.Stats.Completed, 1)
				atomic.AddInt64(&r.Stats.Skipped, 1)
				r.notify(res)
				emit(res)
				continue
			}
		}

		if r.Limiter != nil {
			if err := r.Limiter.WaitForSource(ctx, r.key(item)); err != nil {
				break launch
			}
		}

		sem <- struct{}{}
		wg.Add(1)

		go func(item I) {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			taskCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			data, err := task(taskCtx, item)
			res := Result[I, O]{
				Item:     item,
				Data:     data,
				Err:      err,
				Duration: time.Since(start),
			}

			atomic.AddInt64(&r.Stats.Completed, 1)
			if err == nil {
				atomic.AddInt64(&r.Stats.Successful, 1)
				if r.Limiter != nil {
					r.Limiter.OnSuccess()
				}
			} else {
				atomic.AddInt64(&r.Stats.Failed, 1)
				if r.Limiter != nil {
					r.Limiter.OnError()
				}
				if r.OnError != nil {
					r.OnError(item, err)
				}
			}

			r.notify(res)
			emit(res)
		}(item)
	}

	wg.Wait()
}

func (r *Runner[I, O]) key(item I) string {
	if r.Key == nil {
		return ""
	}
	return r.Key(item)
}

func (r *Runner[I, O]) notify(res Result[I, O]) {
	if r.OnProgress != nil {
		r.OnProgress(
			atomic.LoadInt64(&r.Stats.Completed),
			atomic.LoadInt64(&r.Stats.Total),
			res,
		)
	}
}
