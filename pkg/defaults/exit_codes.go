package defaults

// Exit codes for the CLI.
const (
	ExitSuccess          = 0 // Clean run, no guardrail violations
	ExitViolations       = 1 // One or more guardrail violations
	ExitEvalErrors       = 2 // Rule evaluation errors without violations
	ExitConfigError      = 3 // Invalid arguments or suite configuration
	ExitFactsUnavailable = 4 // Required fact sources could not be reached
	ExitInterrupted      = 5 // Run cancelled before completion
)
