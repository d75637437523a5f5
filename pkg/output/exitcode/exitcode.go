// Package exitcode provides semantic exit codes for CI/CD integration.
// Exit codes communicate run outcomes to automation pipelines.
//
// Exit codes:
//   - 0: Success (no violations)
//   - 1: Guardrail violations found (configurable)
//   - 2: Evaluation errors
//   - 3: Invalid configuration
//   - 4: Fact sources unavailable
//   - 5: Run interrupted
package exitcode

import (
	"fmt"
	"sync"

	"github.com/depgate/depgate/pkg/output/events"
)

// Code represents a semantic exit code for CI/CD pipelines.
type Code int

const (
	// Success indicates the run completed with no violations.
	Success Code = 0
	// Violations indicates one or more guardrail rules triggered.
	Violations Code = 1
	// Errors indicates expression evaluation errors occurred.
	Errors Code = 2
	// Configuration indicates the suite or configuration was invalid.
	Configuration Code = 3
	// Facts indicates the fact providers were unavailable.
	Facts Code = 4
	// Interrupted indicates the run was interrupted (e.g., SIGINT).
	Interrupted Code = 5
)

// codeStrings maps exit codes to short machine-readable names.
var codeStrings = map[Code]string{
	Success:       "success",
	Violations:    "violations_found",
	Errors:        "evaluation_errors",
	Configuration: "invalid_configuration",
	Facts:         "facts_unavailable",
	Interrupted:   "run_interrupted",
}

// codeDescriptions provides detailed descriptions for exit codes.
var codeDescriptions = map[Code]string{
	Success:       "Run completed successfully with no violations",
	Violations:    "One or more guardrail violations were found",
	Errors:        "Rule evaluations failed with errors",
	Configuration: "Invalid configuration or suite provided",
	Facts:         "Fact sources are unavailable",
	Interrupted:   "Run was interrupted by user or signal",
}

// Config holds configuration for the exit code manager.
type Config struct {
	// ViolationCode is the exit code to return when violations are found.
	// Default: 1
	ViolationCode int

	// ExitOnError determines whether evaluation errors produce a nonzero
	// exit when no violations occurred.
	ExitOnError bool

	// ErrorThreshold is the number of evaluation errors that triggers an
	// error exit. Default: 1 (any error).
	ErrorThreshold int
}

// DefaultConfig returns the default exit code configuration.
func DefaultConfig() Config {
	return Config{
		ViolationCode:  1,
		ExitOnError:    true,
		ErrorThreshold: 1,
	}
}

// Manager tracks run outcomes and determines the appropriate exit code.
type Manager struct {
	cfg        Config
	violations int
	errors     int
	mu         sync.Mutex

	// Special state flags
	configError bool
	factsError  bool
	interrupted bool
}

// New creates a new exit code manager with the given configuration.
func New(cfg Config) *Manager {
	// Apply defaults for zero values
	if cfg.ViolationCode == 0 {
		cfg.ViolationCode = 1
	}
	if cfg.ErrorThreshold == 0 {
		cfg.ErrorThreshold = 1
	}

	return &Manager{
		cfg: cfg,
	}
}

// Record records the outcome of one rule evaluation.
func (m *Manager) Record(outcome events.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch outcome {
	case events.OutcomeTriggered:
		m.violations++
	case events.OutcomeError:
		m.errors++
	}
}

// RecordViolation increments the violation counter.
func (m *Manager) RecordViolation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations++
}

// RecordError increments the error counter.
func (m *Manager) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

// SetConfigError marks that a configuration error occurred.
func (m *Manager) SetConfigError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configError = true
}

// SetFactsError marks that the fact sources were unavailable.
func (m *Manager) SetFactsError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factsError = true
}

// SetInterrupted marks that the run was interrupted.
func (m *Manager) SetInterrupted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interrupted = true
}

// ExitCode returns the appropriate exit code based on recorded outcomes.
// The returned string provides a human-readable reason for the code.
//
// Priority order (highest to lowest):
//  1. Interrupted
//  2. Configuration error
//  3. Facts unavailable
//  4. Violations found
//  5. Evaluation errors (if ExitOnError enabled)
//  6. Success
//
// Violations outrank evaluation errors: a run that found real violations
// exits 1 even when some rules also errored, so CI gates fail on the
// stronger signal.
func (m *Manager) ExitCode() (Code, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.interrupted {
		return Interrupted, codeDescriptions[Interrupted]
	}

	if m.configError {
		return Configuration, codeDescriptions[Configuration]
	}

	if m.factsError {
		return Facts, codeDescriptions[Facts]
	}

	if m.violations > 0 {
		return Code(m.cfg.ViolationCode), fmt.Sprintf("%s (count: %d)",
			codeDescriptions[Violations], m.violations)
	}

	if m.cfg.ExitOnError && m.errors >= m.cfg.ErrorThreshold {
		return Errors, fmt.Sprintf("%s (threshold: %d, actual: %d)",
			codeDescriptions[Errors], m.cfg.ErrorThreshold, m.errors)
	}

	return Success, codeDescriptions[Success]
}

// String returns the string representation of an exit code.
func (m *Manager) String(code Code) string {
	if s, ok := codeStrings[code]; ok {
		return s
	}
	return fmt.Sprintf("unknown_code_%d", code)
}

// Stats returns the current violation and error counts.
func (m *Manager) Stats() (violations, errors int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.violations, m.errors
}

// Reset clears all recorded outcomes and state flags.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations = 0
	m.errors = 0
	m.configError = false
	m.factsError = false
	m.interrupted = false
}

// CodeString returns the string representation of any exit code.
// This is a package-level function for convenience.
func CodeString(code Code) string {
	if s, ok := codeStrings[code]; ok {
		return s
	}
	return fmt.Sprintf("unknown_code_%d", code)
}

// CodeDescription returns a detailed description of an exit code.
func CodeDescription(code Code) string {
	if s, ok := codeDescriptions[code]; ok {
		return s
	}
	return fmt.Sprintf("Unknown exit code: %d", code)
}
