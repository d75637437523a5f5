// Package gate provides a quality gate engine for evaluating guardrail run
// summaries against user-defined thresholds to determine CI/CD pass/fail
// outcomes.
//
// The gate engine parses YAML policy files that define conditions under which
// a run should be considered a failure, independent of the rules themselves.
// This lets platform teams set organization-wide gates on top of whatever
// suites individual repositories run:
//   - Violation thresholds (total, by severity)
//   - Check-type-specific violation detection
//   - Clean rate percentages
//   - Error rate thresholds
//
// # Gate File Format
//
// Gate files are YAML documents with the following structure:
//
//	version: "1.0"
//	name: "production-gate"
//
//	fail_on:
//	  violations:
//	    total: 5           # Fail if more than 5 total violations
//	    critical: 0        # Fail if any critical violations
//	    high: 3            # Fail if more than 3 high severity
//	  check_types:
//	    - vuln             # Fail on any vulnerability violation
//	    - scorecards       # Fail on any scorecard violation
//	  clean_rate_below: 95.0   # Fail if clean rate below 95%
//	  error_rate_above: 10.0   # Fail if error rate above 10%
//
//	ignore:
//	  rules:
//	    - "legacy-license-check"   # Ignore specific rules
//	  check_types:
//	    - "popularity"             # Ignore a whole check type
//
// # Usage
//
//	p, err := gate.LoadPolicy("gate.yaml")
//	if err != nil {
//	    return err
//	}
//
//	summary := gate.SummaryData{
//	    TotalViolations:      10,
//	    ViolationsBySeverity: map[string]int{"critical": 2, "high": 5},
//	    // ... other fields
//	}
//
//	result := p.Evaluate(summary)
//	if !result.Pass {
//	    fmt.Printf("Gate failed: %v\n", result.Failures)
//	    os.Exit(result.ExitCode)
//	}
//
// # Thread Safety
//
// Gate evaluation is thread-safe. A single Policy instance can be used
// concurrently from multiple goroutines.
package gate
