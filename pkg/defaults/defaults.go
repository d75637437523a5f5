// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all runtime configuration defaults.
//
// Usage:
//
//	config.Concurrency = defaults.ConcurrencyMedium
//	config.MaxRetries = defaults.RetryMedium
//	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
//
// DO NOT use hardcoded values like `Concurrency: 10` anywhere.
// Instead, reference the appropriate constant from this package.
package defaults

import "fmt"

// Version is the current DepGate version
const Version = "1.4.2"

// ============================================================================
// TOOL IDENTITY
// ============================================================================
//
// The lowercase name goes into machine-readable output (SARIF driver names,
// webhook payloads, user agents). The display name goes into human-facing
// report titles.
// ============================================================================

const (
	// ToolName is the canonical lowercase tool name
	ToolName = "depgate"

	// ToolNameDisplay is the capitalized tool name for report titles
	ToolNameDisplay = "DepGate"
)

// ============================================================================
// CONCURRENCY SETTINGS
// ============================================================================
//
// Use these for worker pools, semaphores, and parallel operations.
// Choose based on how hard the operation hits external fact sources.
// ============================================================================

const (
	// ConcurrencyMinimal is for single-threaded operations (1)
	ConcurrencyMinimal = 1

	// ConcurrencyLow is for rate-limited fact source fetches (5)
	ConcurrencyLow = 5

	// ConcurrencyMedium is for standard evaluation runs (10)
	ConcurrencyMedium = 10

	// ConcurrencyHigh is for large dependency trees (20)
	ConcurrencyHigh = 20

	// ConcurrencyVeryHigh is for high-throughput local evaluation (40)
	ConcurrencyVeryHigh = 40

	// ConcurrencyMax is for maximum parallelism (50)
	ConcurrencyMax = 50
)

// ============================================================================
// RETRY SETTINGS
// ============================================================================
//
// Use these for retry loops and error recovery against fact source APIs.
// ============================================================================

const (
	// RetryNone disables retries (0)
	RetryNone = 0

	// RetryLow is for quick operations (2)
	RetryLow = 2

	// RetryMedium is the standard retry count (3)
	RetryMedium = 3

	// RetryHigh is for flaky upstream sources (5)
	RetryHigh = 5

	// RetryMax is the maximum retry count (10)
	RetryMax = 10
)

// ============================================================================
// BUFFER SIZES
// ============================================================================
//
// Use these for byte buffers, slices, and I/O operations.
// ============================================================================

const (
	// BufferTiny is for small reads (1KB)
	BufferTiny = 1 * 1024

	// BufferSmall is for typical reads (4KB)
	BufferSmall = 4 * 1024

	// BufferMedium is for larger reads (32KB)
	BufferMedium = 32 * 1024

	// BufferLarge is for bulk reads (64KB)
	BufferLarge = 64 * 1024

	// BufferHuge is for very large reads (1MB)
	BufferHuge = 1024 * 1024

	// BufferMax is the maximum fact response body size (10MB)
	BufferMax = 10 * 1024 * 1024
)

// ============================================================================
// CHANNEL SIZES
// ============================================================================
//
// Use these for buffered channels.
// ============================================================================

const (
	// ChannelTiny is for small buffers (10)
	ChannelTiny = 10

	// ChannelSmall is for typical buffers (100)
	ChannelSmall = 100

	// ChannelMedium is for larger buffers (1000)
	ChannelMedium = 1000

	// ChannelLarge is for high-throughput buffers (10000)
	ChannelLarge = 10000
)

// ============================================================================
// HTTP CONTENT TYPES
// ============================================================================
//
// Use these for Content-Type headers.
// ============================================================================

const (
	// ContentTypeJSON is application/json
	ContentTypeJSON = "application/json"

	// ContentTypeForm is application/x-www-form-urlencoded
	ContentTypeForm = "application/x-www-form-urlencoded"

	// ContentTypeXML is application/xml
	ContentTypeXML = "application/xml"

	// ContentTypeHTML is text/html
	ContentTypeHTML = "text/html"

	// ContentTypePlain is text/plain
	ContentTypePlain = "text/plain"

	// ContentTypeOctetStream is application/octet-stream
	ContentTypeOctetStream = "application/octet-stream"
)

// ============================================================================
// HTTP ACCEPT HEADERS
// ============================================================================

const (
	// AcceptAll accepts any content type
	AcceptAll = "*/*"

	// AcceptJSON accepts JSON
	AcceptJSON = "application/json"
)

// ============================================================================
// USER AGENTS
// ============================================================================
//
// Use UserAgent() for dynamic user agent strings.
// ============================================================================

const (
	// UABot is the user agent sent to fact source APIs
	UABot = "Mozilla/5.0 (compatible; " + ToolNameDisplay + "/" + Version + ")"

	// UAMinimal is a minimal user agent
	UAMinimal = ToolName + "/" + Version
)

// UserAgent returns the DepGate user agent with context
func UserAgent(context string) string {
	if context == "" {
		return UAMinimal
	}
	return fmt.Sprintf("%s/%s (%s)", ToolName, Version, context)
}

// ============================================================================
// RATE LIMITING
// ============================================================================
//
// Use these for throttling requests against fact source APIs.
// Values are requests per second.
// ============================================================================

const (
	// RateLimitNone disables rate limiting (0)
	RateLimitNone = 0

	// RateLimitLow is conservative rate limiting (10 req/s)
	RateLimitLow = 10

	// RateLimitMedium is moderate rate limiting (50 req/s)
	RateLimitMedium = 50

	// RateLimitHigh is aggressive rate limiting (100 req/s)
	RateLimitHigh = 100
)

// ============================================================================
// THRESHOLDS
// ============================================================================
//
// Use these for input limits and safety caps.
// ============================================================================

const (
	// MaxRedirects is the maximum number of redirects to follow
	MaxRedirects = 10

	// MaxSuiteSize is the maximum guardrail suite file size (1MB)
	MaxSuiteSize = 1024 * 1024

	// MaxSBOMSize is the maximum SBOM document size (50MB)
	MaxSBOMSize = 50 * 1024 * 1024

	// MaxComponents is the maximum number of components per run
	MaxComponents = 10000

	// MaxVulnIDsPerFinding is the maximum vulnerability IDs attached to one finding
	MaxVulnIDsPerFinding = 50
)

// ============================================================================
// RISK SCORING
// ============================================================================
//
// Use these for risk score normalization and evidence escalation.
// ============================================================================

const (
	// RiskScale is the upper bound of the normalized risk score
	RiskScale = 100.0

	// VulnCountSevere is the advisory count at which severity escalates to critical
	VulnCountSevere = 5

	// ScorecardFloor is the OpenSSF Scorecard score under which shortfall points accrue
	ScorecardFloor = 5.0
)

// ============================================================================
// FACT SOURCE HEALTH
// ============================================================================
//
// Use these for detecting degraded or unavailable fact sources.
// ============================================================================

const (
	// SourceFailureThreshold is the consecutive failures before a source is degraded
	SourceFailureThreshold = 3

	// SourceRecoveryProbes is the consecutive successes that clear degraded state
	SourceRecoveryProbes = 2
)

// ============================================================================
// WELL-KNOWN PATHS
// ============================================================================
//
// Conventional locations resolved relative to the working tree unless noted.
// ============================================================================

const (
	// SuiteDir is the default directory searched for guardrail suites
	SuiteDir = "guardrails"

	// SuiteFile is the default suite filename
	SuiteFile = "guardrails.yaml"

	// TemplateDir is the directory searched for custom output templates
	TemplateDir = "templates"

	// ReportDir is the default directory for generated reports
	ReportDir = "reports"

	// CacheDirName is the fact cache directory under the user cache root
	CacheDirName = "depgate"
)

// ============================================================================
// PORTS
// ============================================================================

const (
	// PortMetrics is the default Prometheus metrics listen port
	PortMetrics = 9090
)

// ============================================================================
// CONFIG DEFAULTS
// ============================================================================
//
// Baseline values applied when a config file or flag leaves a field unset.
// ============================================================================

const (
	// DefaultConfigConcurrency is the default evaluation concurrency
	DefaultConfigConcurrency = ConcurrencyMedium

	// DefaultConfigTimeoutSec is the default per-run timeout in seconds
	DefaultConfigTimeoutSec = 300

	// DefaultConfigRateLimit is the default fact source rate limit (req/s)
	DefaultConfigRateLimit = RateLimitMedium
)
