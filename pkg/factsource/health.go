package factsource

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/duration"
	"github.com/depgate/depgate/pkg/output/sourcehealth"
)

// State describes how a source is currently treated.
type State int

const (
	// StateHealthy sources serve every request.
	StateHealthy State = iota

	// StateDegraded sources still serve requests but are being watched;
	// enough consecutive successes return them to healthy.
	StateDegraded

	// StateUnavailable sources are skipped until their cooloff passes.
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// sourceHealth tracks one source. Each source carries its own lock so
// concurrent fetch workers recording different sources never contend.
type sourceHealth struct {
	mu          sync.Mutex
	state       State
	consecutive int
	probes      int
	failures    int
	lastErr     error
	permanent   bool
	downSince   time.Time
}

// RegistryConfig tunes the failure thresholds.
type RegistryConfig struct {
	// FailureThreshold is the consecutive failure count that marks a
	// source unavailable.
	FailureThreshold int

	// RecoveryProbes is the consecutive success count that returns a
	// degraded source to healthy.
	RecoveryProbes int

	// Cooloff is how long an unavailable source is skipped before
	// probe traffic is let through again.
	Cooloff time.Duration
}

// DefaultRegistryConfig returns the standard thresholds.
func DefaultRegistryConfig() *RegistryConfig {
	return &RegistryConfig{
		FailureThreshold: defaults.SourceFailureThreshold,
		RecoveryProbes:   defaults.SourceRecoveryProbes,
		Cooloff:          duration.CacheMedium,
	}
}

// Registry tracks per-source failure state and the components that
// finished a run without facts. The zero threshold fields fall back to
// defaults, so NewRegistry(nil) is the common call.
//
// Registry implements sourcehealth.StatsProvider; output writers render
// its Stats map in the run summary.
type Registry struct {
	sources   sync.Map // map[string]*sourceHealth
	threshold int
	recovery  int
	cooloff   time.Duration
	missing   atomic.Int64
}

var _ sourcehealth.StatsProvider = (*Registry)(nil)

// NewRegistry creates a registry. A nil config uses the defaults.
func NewRegistry(cfg *RegistryConfig) *Registry {
	if cfg == nil {
		cfg = DefaultRegistryConfig()
	}
	r := &Registry{
		threshold: cfg.FailureThreshold,
		recovery:  cfg.RecoveryProbes,
		cooloff:   cfg.Cooloff,
	}
	if r.threshold <= 0 {
		r.threshold = defaults.SourceFailureThreshold
	}
	if r.recovery <= 0 {
		r.recovery = defaults.SourceRecoveryProbes
	}
	if r.cooloff <= 0 {
		r.cooloff = duration.CacheMedium
	}
	return r
}

func (r *Registry) source(name string) *sourceHealth {
	if v, ok := r.sources.Load(name); ok {
		return v.(*sourceHealth)
	}
	actual, _ := r.sources.LoadOrStore(name, &sourceHealth{})
	return actual.(*sourceHealth)
}

// RecordSuccess notes a served request. A degraded source climbs back
// to healthy after enough consecutive successes; an unavailable source
// first drops to degraded probation.
func (r *Registry) RecordSuccess(name string) {
	s := r.source(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.consecutive = 0
	switch s.state {
	case StateHealthy:
		return
	case StateUnavailable:
		if s.permanent {
			return
		}
		s.state = StateDegraded
		s.probes = 1
	case StateDegraded:
		s.probes++
	}
	if s.probes >= r.recovery {
		s.state = StateHealthy
		s.probes = 0
		s.lastErr = nil
	}
}

// RecordFailure counts a failed request against the source and returns
// the resulting state. Reaching the threshold marks the source
// unavailable until its cooloff passes.
func (r *Registry) RecordFailure(name string, err error) State {
	s := r.source(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures++
	s.consecutive++
	s.probes = 0
	s.lastErr = err

	if s.permanent {
		return StateUnavailable
	}
	if s.consecutive >= r.threshold {
		if s.state != StateUnavailable {
			s.downSince = time.Now()
		}
		s.state = StateUnavailable
	} else {
		s.state = StateDegraded
	}
	return s.state
}

// MarkUnavailable takes a source out of rotation for the rest of the
// run, with no cooloff recovery. Use it for failures that affect every
// request, like rejected credentials.
func (r *Registry) MarkUnavailable(name string, err error) {
	s := r.source(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures++
	s.lastErr = err
	s.permanent = true
	s.state = StateUnavailable
	if s.downSince.IsZero() {
		s.downSince = time.Now()
	}
}

// Skip returns nil when the source should serve the next request, or
// an error wrapping ErrSourceUnavailable when it should be skipped.
// Once the cooloff window passes, an unavailable source is put back on
// degraded probation and traffic flows again.
func (r *Registry) Skip(name string) error {
	s := r.source(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnavailable {
		return nil
	}
	if !s.permanent && time.Since(s.downSince) > r.cooloff {
		s.state = StateDegraded
		s.consecutive = 0
		s.probes = 0
		return nil
	}
	if s.lastErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, name, s.lastErr)
	}
	return fmt.Errorf("%w: %s", ErrSourceUnavailable, name)
}

// StateOf returns the source's current state. Unknown sources are
// healthy.
func (r *Registry) StateOf(name string) State {
	v, ok := r.sources.Load(name)
	if !ok {
		return StateHealthy
	}
	s := v.(*sourceHealth)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the most recent failure recorded for the source,
// or nil.
func (r *Registry) LastError(name string) error {
	v, ok := r.sources.Load(name)
	if !ok {
		return nil
	}
	s := v.(*sourceHealth)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// RecordMissing counts components that finished the run without facts.
func (r *Registry) RecordMissing(n int) {
	if n > 0 {
		r.missing.Add(int64(n))
	}
}

// Stats returns health counters keyed the way output writers expect,
// plus per-source failure counts under "source_<name>_failures".
func (r *Registry) Stats() map[string]int {
	m := map[string]int{
		"sources_total":             0,
		"sources_unavailable_total": 0,
		"sources_degraded_total":    0,
		"components_missing_facts":  int(r.missing.Load()),
	}
	r.sources.Range(func(k, v any) bool {
		name := k.(string)
		s := v.(*sourceHealth)
		s.mu.Lock()
		state, failures := s.state, s.failures
		s.mu.Unlock()

		m["sources_total"]++
		switch state {
		case StateDegraded:
			m["sources_degraded_total"]++
		case StateUnavailable:
			m["sources_unavailable_total"]++
		}
		if failures > 0 {
			m["source_"+name+"_failures"] = failures
		}
		return true
	})
	return m
}
