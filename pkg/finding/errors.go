package finding

import "errors"

// Sentinel errors for common fact-sourcing failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrFactsUnavailable indicates no fact source could supply
	// metadata for a component.
	ErrFactsUnavailable = errors.New("finding: component facts unavailable")

	// ErrNoSnapshots indicates evaluation was requested before any
	// component snapshots were loaded.
	ErrNoSnapshots = errors.New("finding: no component snapshots loaded")

	// ErrRateLimited indicates an upstream fact source is
	// rate-limiting requests.
	ErrRateLimited = errors.New("finding: fact source rate limiting detected")
)
