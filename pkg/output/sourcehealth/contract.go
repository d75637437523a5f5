package sourcehealth

// RequiredStatsFields lists all fields that MUST appear in every output format.
// Contract tests use this to verify completeness - if a field is added here,
// tests will fail until all output formats include it.
var RequiredStatsFields = []string{
	"sources_unavailable",
	"sources_degraded",
	"components_missing",
}

// RequiredJSONKeys lists the exact JSON keys that must appear in JSON output.
var RequiredJSONKeys = []string{
	"sources_unavailable",
	"sources_degraded",
	"components_missing",
}

// RequiredConsoleLabels lists labels that must appear in console output.
var RequiredConsoleLabels = []string{
	"Sources Unavailable",
	"Sources Degraded",
	"Missing Facts",
}

// RequiredMarkdownLabels lists labels that must appear in markdown output.
// These may differ from console labels due to formatting.
var RequiredMarkdownLabels = []string{
	"Sources Unavailable",
	"Sources Degraded",
	"Missing Facts",
}
