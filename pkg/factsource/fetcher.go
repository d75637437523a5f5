package factsource

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/duration"
	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/runner"
)

// FetchStats summarizes one Fetch call. Counts are per component per
// provider, so a component enriched by two providers counts twice.
type FetchStats struct {
	Components int
	Providers  int
	Enriched   int64
	Failed     int64
	Skipped    int64
	Duration   time.Duration
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// Providers run in order over the component list.
	Providers []Provider

	// Health is the shared source health registry. Nil creates one
	// with default thresholds.
	Health *Registry

	// Concurrency bounds parallel enrichments per provider.
	Concurrency int

	// Timeout bounds each single-component enrichment.
	Timeout time.Duration

	// OnComponent, when set, is called after each component finishes
	// with a provider. It runs on worker goroutines.
	OnComponent func(ref, source string, err error)
}

// Fetcher fans fact providers out over component snapshots. Outcomes
// feed the health registry, so a provider that keeps failing is
// skipped for the remaining components instead of timing out on each.
type Fetcher struct {
	providers   []Provider
	health      *Registry
	concurrency int
	timeout     time.Duration
	onComponent func(ref, source string, err error)
}

// NewFetcher creates a fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	health := cfg.Health
	if health == nil {
		health = NewRegistry(nil)
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaults.ConcurrencyLow
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = duration.FactFetch
	}
	return &Fetcher{
		providers:   cfg.Providers,
		health:      health,
		concurrency: concurrency,
		timeout:     timeout,
		onComponent: cfg.OnComponent,
	}
}

// Health returns the registry tracking source state for this fetcher.
func (f *Fetcher) Health() *Registry { return f.health }

// Fetch runs every provider over the snapshots, mutating them in
// place. It returns early only when the context is cancelled;
// individual failures are recorded in the health registry and the
// affected components simply keep whatever facts they already have.
func (f *Fetcher) Fetch(ctx context.Context, snaps []*facts.Snapshot) (FetchStats, error) {
	stats := FetchStats{Components: len(snaps), Providers: len(f.providers)}
	if len(snaps) == 0 || len(f.providers) == 0 {
		return stats, nil
	}
	if len(snaps) > defaults.MaxComponents {
		return stats, fmt.Errorf("%w: %d (limit %d)", ErrTooManyComponents, len(snaps), defaults.MaxComponents)
	}
	start := time.Now()

	// A component that already carries facts from a file snapshot is
	// never "missing", even if every provider fails on it.
	enriched := make([]atomic.Bool, len(snaps))
	index := make(map[*facts.Snapshot]int, len(snaps))
	for i, snap := range snaps {
		index[snap] = i
		if hasFacts(snap) {
			enriched[i].Store(true)
		}
	}

	for _, provider := range f.providers {
		if ctx.Err() != nil {
			break
		}
		if batch, ok := provider.(BatchProvider); ok {
			f.fetchBatch(ctx, batch, snaps, enriched, &stats)
			continue
		}
		f.fetchEach(ctx, provider, snaps, enriched, index, &stats)
	}

	missing := 0
	for i := range enriched {
		if !enriched[i].Load() {
			missing++
		}
	}
	f.health.RecordMissing(missing)

	stats.Duration = time.Since(start)
	return stats, ctx.Err()
}

// fetchBatch enriches all snapshots in one provider round trip.
func (f *Fetcher) fetchBatch(ctx context.Context, provider BatchProvider, snaps []*facts.Snapshot, enriched []atomic.Bool, stats *FetchStats) {
	name := provider.Name()
	if err := f.health.Skip(name); err != nil {
		stats.Skipped += int64(len(snaps))
		f.notifyAll(snaps, name, err)
		return
	}

	err := provider.EnrichAll(ctx, snaps)
	f.recordOutcome(name, err)
	if err != nil {
		stats.Failed += int64(len(snaps))
		f.notifyAll(snaps, name, err)
		return
	}
	stats.Enriched += int64(len(snaps))
	for i := range enriched {
		enriched[i].Store(true)
	}
	f.notifyAll(snaps, name, nil)
}

// fetchEach fans a per-component provider out with the runner.
func (f *Fetcher) fetchEach(ctx context.Context, provider Provider, snaps []*facts.Snapshot, enriched []atomic.Bool, index map[*facts.Snapshot]int, stats *FetchStats) {
	name := provider.Name()

	r := runner.New[*facts.Snapshot, struct{}]()
	r.Concurrency = f.concurrency
	r.Timeout = f.timeout
	r.Skip = func(*facts.Snapshot) error { return f.health.Skip(name) }

	results := r.Run(ctx, snaps, func(ctx context.Context, snap *facts.Snapshot) (struct{}, error) {
		err := provider.Enrich(ctx, snap)
		f.recordOutcome(name, err)
		if err == nil {
			enriched[index[snap]].Store(true)
		}
		return struct{}{}, err
	})

	if f.onComponent != nil {
		for _, res := range results {
			f.onComponent(res.Item.Component.Ref(), name, res.Err)
		}
	}
	stats.Enriched += r.Stats.Successful
	stats.Failed += r.Stats.Failed
	stats.Skipped += r.Stats.Skipped
}

// recordOutcome feeds one enrichment outcome into the health registry.
// Auth failures poison every request, so they mark the source
// unavailable outright. Non-transient errors other than auth are the
// request's fault, not the source's; they fail the component without
// counting against the source.
func (f *Fetcher) recordOutcome(source string, err error) {
	if err == nil {
		f.health.RecordSuccess(source)
		return
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.AuthFailure() {
		f.health.MarkUnavailable(source, err)
		return
	}
	if IsTransient(err) {
		f.health.RecordFailure(source, err)
	}
}

func (f *Fetcher) notifyAll(snaps []*facts.Snapshot, source string, err error) {
	if f.onComponent == nil {
		return
	}
	for _, snap := range snaps {
		f.onComponent(snap.Component.Ref(), source, err)
	}
}

func hasFacts(snap *facts.Snapshot) bool {
	return len(snap.Vulnerabilities) > 0 ||
		snap.Scorecard != nil ||
		len(snap.Projects) > 0 ||
		len(snap.Licenses) > 0
}
