// Package ratelimit throttles requests against fact source APIs.
//
// The limiter wraps golang.org/x/time/rate with the two additions the
// fact providers need: independent buckets per source key, and an
// adaptive delay that grows while an API keeps answering 429 and decays
// once it recovers.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/duration"
)

// Config holds throttling configuration.
type Config struct {
	// RequestsPerSecond caps the steady-state request rate (0 = unlimited).
	RequestsPerSecond int

	// Burst is the token bucket depth. Zero derives 10% of the rate, minimum 1.
	Burst int

	// PerSource gives every source key its own independent bucket so one
	// throttled API cannot starve the others.
	PerSource bool

	// AdaptiveSlowdown inserts a growing delay after failed requests.
	AdaptiveSlowdown bool

	// SlowdownFactor multiplies the delay after each failure.
	SlowdownFactor float64

	// SlowdownMaxDelay bounds the adaptive delay.
	SlowdownMaxDelay time.Duration

	// RecoveryRate multiplies the delay after each success, decaying it
	// back toward zero.
	RecoveryRate float64
}

// DefaultConfig returns the throttling profile used against public fact
// source APIs: a conservative rate with adaptive backoff.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerSecond: defaults.RateLimitLow,
		AdaptiveSlowdown:  true,
		SlowdownFactor:    1.5,
		SlowdownMaxDelay:  duration.FactBatch,
		RecoveryRate:      0.9,
	}
}

// Limiter paces requests for one or more fact sources.
type Limiter struct {
	config *Config

	bucket *rate.Limiter // nil when unlimited

	mu           sync.Mutex
	currentDelay time.Duration

	sourcesMu sync.RWMutex
	sources   map[string]*Limiter
}

// New creates a limiter from cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Limiter{
		config:  cfg,
		sources: make(map[string]*Limiter),
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.RequestsPerSecond / 10
			if burst < 1 {
				burst = 1
			}
		}
		l.bucket = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return l
}

// Wait blocks until the global limit allows another request.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.WaitForSource(ctx, "")
}

// WaitForSource blocks until the limit for the given source key allows
// another request. With PerSource disabled the key is ignored and the
// global bucket applies.
func (l *Limiter) WaitForSource(ctx context.Context, source string) error {
	if l.config.PerSource && source != "" {
		return l.sourceLimiter(source).waitInternal(ctx)
	}
	return l.waitInternal(ctx)
}

func (l *Limiter) sourceLimiter(source string) *Limiter {
	l.sourcesMu.RLock()
	sl, ok := l.sources[source]
	l.sourcesMu.RUnlock()
	if ok {
		return sl
	}

	l.sourcesMu.Lock()
	defer l.sourcesMu.Unlock()

	// Double-check after acquiring the write lock.
	if sl, ok = l.sources[source]; ok {
		return sl
	}

	cfg := *l.config
	cfg.PerSource = false
	sl = New(&cfg)
	l.sources[source] = sl
	return sl
}

func (l *Limiter) waitInternal(ctx context.Context) error {
	if l.bucket != nil {
		if err := l.bucket.Wait(ctx); err != nil {
			return err
		}
	}

	if d := l.delay(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return nil
}

func (l *Limiter) delay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentDelay
}

// OnError records a failed or throttled request. With adaptive slowdown
// enabled the inter-request delay grows until requests succeed again.
func (l *Limiter) OnError() {
	if !l.config.AdaptiveSlowdown {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentDelay == 0 {
		l.currentDelay = duration.RateLimitPause
	} else {
		l.currentDelay = time.Duration(float64(l.currentDelay) * l.config.SlowdownFactor)
	}

	if max := l.config.SlowdownMaxDelay; max > 0 && l.currentDelay > max {
		l.currentDelay = max
	}
}

// OnSuccess records a successful request, decaying the adaptive delay.
func (l *Limiter) OnSuccess() {
	if !l.config.AdaptiveSlowdown {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentDelay > 0 {
		l.currentDelay = time.Duration(float64(l.currentDelay) * l.config.RecoveryRate)
		if l.currentDelay < time.Millisecond {
			l.currentDelay = 0
		}
	}
}

// Stats reports the limiter's current pacing state.
type Stats struct {
	CurrentDelay    time.Duration
	SourceLimiters  int
	TokensAvailable float64
}

// Stats returns a snapshot of the limiter state.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	s := Stats{CurrentDelay: l.currentDelay}
	l.mu.Unlock()

	l.sourcesMu.RLock()
	s.SourceLimiters = len(l.sources)
	l.sourcesMu.RUnlock()

	if l.bucket != nil {
		s.TokensAvailable = l.bucket.Tokens()
	}

	return s
}

// NewPerSecond creates a limiter with N requests per second and no
// adaptive behaviour.
func NewPerSecond(rps int) *Limiter {
	return New(&Config{RequestsPerSecond: rps})
}

// NewPerSource creates a limiter with N requests per second for each
// source key independently.
func NewPerSource(rps int) *Limiter {
	return New(&Config{RequestsPerSecond: rps, PerSource: true})
}

// NewAdaptive creates a limiter that backs off while an API answers
// errors and recovers once it stops.
func NewAdaptive(rps int) *Limiter {
	return New(&Config{
		RequestsPerSecond: rps,
		AdaptiveSlowdown:  true,
		SlowdownFactor:    1.5,
		SlowdownMaxDelay:  duration.FactBatch,
		RecoveryRate:      0.9,
	})
}
