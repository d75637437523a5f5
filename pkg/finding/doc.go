// Package finding provides the shared severity and check-type
// vocabulary used across guardrail evaluation, output writers, and
// history storage.
//
// Keeping one canonical Severity and CheckType here stops each
// consumer from declaring its own copy and drifting: suite loading,
// scoring, SARIF export, and the baseline store all compare against
// these values.
//
// Usage:
//
//	ct, err := finding.ParseCheckType(doc.CheckType)
//	if err != nil {
//	    return err
//	}
//	sev := ct.DefaultSeverity()
package finding
