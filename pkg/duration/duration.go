// Package duration provides canonical time constants for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all time-based configuration.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.ContextShort)
//	StreamInterval: duration.StreamStd,
//	opts.Timeout = duration.WebhookTimeout
//
// DO NOT use hardcoded time.Duration values like `30 * time.Second` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// FACT SOURCE TIMEOUTS
// ============================================================================
//
// These match the presets in pkg/httpclient and are re-exported here for
// packages that need timeout values without importing httpclient.
// ============================================================================

const (
	// FactProbe is for quick source health checks (5s)
	FactProbe = 5 * time.Second

	// FactFetch is for single-component fact lookups (15s)
	FactFetch = 15 * time.Second

	// FactBatch is for batched fact queries (30s) - the default
	FactBatch = 30 * time.Second

	// FactBulk is for full dependency tree hydration (5min)
	FactBulk = 5 * time.Minute
)

// ============================================================================
// CONTEXT/OPERATION TIMEOUTS
// ============================================================================
//
// Use these for context.WithTimeout() calls to bound operation duration.
// ============================================================================

const (
	// ContextShort is for quick operations (30s)
	ContextShort = 30 * time.Second

	// ContextMedium is for standard operations (5min)
	ContextMedium = 5 * time.Minute

	// ContextLong is for full guardrail runs over large trees (15min)
	ContextLong = 15 * time.Minute
)

// ============================================================================
// UI/STREAMING INTERVALS
// ============================================================================
//
// Use these for progress updates, streaming output, and UI refresh rates.
// ============================================================================

const (
	// ProgressRefresh is for in-run progress event emission (500ms)
	ProgressRefresh = 500 * time.Millisecond

	// StreamFast is for real-time updates (1s)
	StreamFast = 1 * time.Second

	// StreamStd is for normal progress reporting (3s)
	StreamStd = 3 * time.Second

	// StreamSlow is for low-frequency updates (5s)
	StreamSlow = 5 * time.Second
)

// ============================================================================
// HEALTH/RETRY INTERVALS
// ============================================================================
//
// Use these for health checks, retries, and worker coordination.
// ============================================================================

const (
	// RetryFast is for quick retries (1s)
	RetryFast = 1 * time.Second

	// RetryStd is for standard retry delay (5s)
	RetryStd = 5 * time.Second

	// HealthCheck is for source health check intervals (2s)
	HealthCheck = 2 * time.Second

	// RateLimitPause is the delay applied after a 429 without Retry-After (100ms)
	RateLimitPause = 100 * time.Millisecond
)

// ============================================================================
// WEBHOOK/HOOK TIMEOUTS
// ============================================================================
//
// Use these for outbound hook deliveries and their shutdown paths.
// ============================================================================

const (
	// WebhookTimeout bounds a single hook delivery attempt (10s)
	WebhookTimeout = 10 * time.Second

	// WebhookShutdown bounds hook cleanup during Close (5s)
	WebhookShutdown = 5 * time.Second
)

// ============================================================================
// CACHE TTLs
// ============================================================================
//
// Use these for cache expiration times.
// ============================================================================

const (
	// CacheShort is for short-lived cache entries (1min)
	CacheShort = 1 * time.Minute

	// CacheMedium is for medium-lived cache entries (5min)
	CacheMedium = 5 * time.Minute

	// CacheLong is for long-lived cache entries (30min)
	CacheLong = 30 * time.Minute

	// CacheFacts is for fetched component facts (6h). Vulnerability and
	// scorecard data moves slowly enough that repeated runs within a work
	// session should not refetch.
	CacheFacts = 6 * time.Hour
)

// ============================================================================
// NETWORK/TRANSPORT
// ============================================================================
//
// Use these for low-level network configuration.
// ============================================================================

const (
	// DialTimeout is for establishing TCP connections (10s)
	DialTimeout = 10 * time.Second

	// KeepAlive is for TCP keep-alive interval (30s)
	KeepAlive = 30 * time.Second

	// IdleConnTimeout is for idle connection pool timeout (90s)
	IdleConnTimeout = 90 * time.Second

	// TLSHandshake is for TLS handshake timeout (10s)
	TLSHandshake = 10 * time.Second
)
