// Package baseline provides a baseline comparison engine for tracking
// guardrail violation regressions across runs.
//
// The baseline engine supports CI/CD workflows where you want to:
//   - Fail only on NEW violations (not existing known issues)
//   - Track when known violations get fixed
//   - Update the baseline on main branch merges
//
// # Baseline File Format
//
// Baseline files are JSON documents that record known violations from a
// reference run:
//
//	{
//	  "version": "1.0",
//	  "created_at": "2026-01-15T10:30:00Z",
//	  "updated_at": "2026-01-20T14:45:00Z",
//	  "run_id": "run-abc123",
//	  "suite": "org-guardrails",
//	  "violations": [
//	    {
//	      "rule": "no-critical-vulns",
//	      "check_type": "vuln",
//	      "severity": "critical",
//	      "key": "sha256:abc123...",
//	      "component": "npm/lodash@4.17.20",
//	      "first_seen": "2026-01-15T10:30:00Z"
//	    }
//	  ],
//	  "summary": {
//	    "total_violations": 15,
//	    "clean_rate": 96.0
//	  }
//	}
//
// # Violation Identity
//
// Violations are identified by a SHA256 key over the rule name and the full
// component coordinates (ecosystem, name, version), not by list position.
// This ensures that:
//   - The same rule firing on the same component is tracked consistently
//   - The same rule firing on different components is tracked separately
//   - Upgrading a component resurfaces its violations for review, since the
//     facts under evaluation have changed
//
// # Usage
//
// Loading an existing baseline:
//
//	base, err := baseline.LoadBaseline("baseline.json")
//	if errors.Is(err, baseline.ErrBaselineNotFound) {
//	    // First run, no baseline exists yet
//	    base = baseline.New()
//	}
//
// Creating a baseline from run results:
//
//	results := []*events.EvaluationEvent{...}
//	base := baseline.CreateFromResults(results, "run-123", "org-guardrails")
//	if err := base.SaveBaseline("baseline.json"); err != nil {
//	    return err
//	}
//
// Comparing the current run against the baseline:
//
//	current := baseline.ExtractViolations(results)
//	comparison := base.Compare(current)
//
//	if comparison.HasNewViolations {
//	    fmt.Printf("Found %d new violations!\n", len(comparison.NewViolations))
//	    os.Exit(1)
//	}
//
//	if len(comparison.FixedViolations) > 0 {
//	    fmt.Printf("Good news: %d violations were fixed!\n", len(comparison.FixedViolations))
//	}
//
// # Thread Safety
//
// All Baseline methods are safe for concurrent use. The baseline maintains
// internal synchronization for all read and write operations.
package baseline
