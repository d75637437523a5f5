package filter

// Concurrency tests for Filter — verifies no data races on concurrent
// ShouldShow calls with FilterDuplicates enabled. Evaluation workers
// share one filter instance, so the seen-key map must be guarded.

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/depgate/depgate/pkg/output/events"
)

// TestFilter_ConcurrentShouldShow_NoPanic verifies ShouldShow is safe
// for concurrent use, especially with FilterDuplicates enabled.
func TestFilter_ConcurrentShouldShow_NoPanic(t *testing.T) {
	t.Parallel()

	f := NewFilter(&Config{FilterDuplicates: true})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ev := evalEvt(
					fmt.Sprintf("rule-%d", idx),
					"vuln",
					events.SeverityHigh,
					events.OutcomeTriggered,
				)
				ev.Component.Ref = fmt.Sprintf("npm/pkg-%d-%d@1.0.0", idx, j)
				f.ShouldShow(ev)
			}
		}(i)
	}
	wg.Wait()
}

// TestFilter_ConcurrentDuplicates_ExactlyOnce verifies that among N
// concurrent submissions of the same rule+component pair, exactly one
// is shown.
func TestFilter_ConcurrentDuplicates_ExactlyOnce(t *testing.T) {
	t.Parallel()

	f := NewFilter(&Config{FilterDuplicates: true})

	var shown atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev := evalEvt("no-critical-vulns", "vuln", events.SeverityCritical, events.OutcomeTriggered)
			if f.ShouldShow(ev) {
				shown.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := shown.Load(); got != 1 {
		t.Errorf("shown %d times, want exactly 1", got)
	}
}

// TestFilter_ConcurrentMixedCriteria verifies match criteria evaluate
// consistently while the duplicate map is being written.
func TestFilter_ConcurrentMixedCriteria(t *testing.T) {
	t.Parallel()

	f := NewFilter(&Config{
		FilterDuplicates: true,
		MatchOutcome:     []events.Outcome{events.OutcomeTriggered},
	})

	var hiddenPass atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ev := evalEvt("adoption-floor", "popularity", events.SeverityLow, events.OutcomePass)
				ev.Component.Ref = fmt.Sprintf("npm/quiet-%d-%d@1.0.0", idx, j)
				if f.ShouldShow(ev) {
					hiddenPass.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()

	if got := hiddenPass.Load(); got != 0 {
		t.Errorf("%d pass outcomes shown despite triggered-only matcher", got)
	}
}
