package finding_test

import (
	"encoding/json"
	"testing"

	"github.com/depgate/depgate/pkg/finding"
	"github.com/depgate/depgate/pkg/output/events"
)

// TestGolden_EventJSONShape captures the JSON shapes persisted by the
// JSONL writer and the baseline store as golden references. Stored
// artifacts from older runs must keep decoding, so these shapes only
// gain fields.
func TestGolden_EventJSONShape(t *testing.T) {
	t.Parallel()

	shapes := map[string]string{
		"vuln": `{
			"rule":{"name":"no-critical-vulns","check_type":"vuln","severity":"critical",
				"summary":"Block critical advisories"},
			"component":{"name":"lodash","version":"4.17.20","ecosystem":"npm",
				"ref":"npm/lodash@4.17.20","direct":true},
			"result":{"outcome":"triggered","duration_ms":0.41},
			"evidence":{"vuln_ids":["GHSA-p6mc-m468-83gw"]}
		}`,
		"license": `{
			"rule":{"name":"allowed-licenses","check_type":"license","severity":"medium",
				"summary":"Copyleft outside allow list"},
			"component":{"name":"left-pad","version":"1.3.0","ecosystem":"pypi",
				"ref":"pypi/left-pad@1.3.0"},
			"result":{"outcome":"triggered","duration_ms":0.12}
		}`,
		"scorecard": `{
			"rule":{"name":"scorecard-floor","check_type":"scorecard","severity":"medium",
				"summary":"Scorecard below floor"},
			"component":{"name":"example","version":"2.0.0","ecosystem":"npm",
				"ref":"npm/example@2.0.0"},
			"result":{"outcome":"pass","duration_ms":0.09},
			"evidence":{"observed":"6.8"}
		}`,
	}

	// Common fields every persisted evaluation shape must have
	topLevel := []string{"rule", "component", "result"}
	ruleFields := []string{"name", "check_type", "severity"}

	for name, rawJSON := range shapes {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var m map[string]any
			if err := json.Unmarshal([]byte(rawJSON), &m); err != nil {
				t.Fatalf("invalid golden JSON for %s: %v", name, err)
			}

			for _, field := range topLevel {
				if _, ok := m[field]; !ok {
					t.Errorf("%s: missing required field %q", name, field)
				}
			}

			rule, ok := m["rule"].(map[string]any)
			if !ok {
				t.Fatalf("%s: rule is not an object", name)
			}
			for _, field := range ruleFields {
				if _, ok := rule[field]; !ok {
					t.Errorf("%s: rule missing required field %q", name, field)
				}
			}

			// The live struct must still decode every golden shape.
			var ev events.EvaluationEvent
			if err := json.Unmarshal([]byte(rawJSON), &ev); err != nil {
				t.Fatalf("%s: EvaluationEvent no longer decodes golden shape: %v", name, err)
			}
			if ev.Rule.Name == "" || ev.Result.Outcome == "" {
				t.Errorf("%s: decoded event lost rule name or outcome", name)
			}
		})
	}
}

// TestGolden_SeverityValues verifies that all severity values are
// lowercase strings. Baseline keys and history rows store these raw,
// so a rename silently orphans prior data.
func TestGolden_SeverityValues(t *testing.T) {
	t.Parallel()

	want := []string{"critical", "high", "medium", "low", "info"}
	got := finding.OrderedStrings()

	if len(got) != len(want) {
		t.Fatalf("OrderedStrings() returned %d values, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("OrderedStrings()[%d] = %q, want %q", i, got[i], w)
		}
	}
}

// TestGolden_CheckTypeValues verifies the canonical check type strings
// referenced by suite documents and OWASP category mapping.
func TestGolden_CheckTypeValues(t *testing.T) {
	t.Parallel()

	want := []string{"vuln", "license", "maintenance", "popularity", "scorecard", "provenance", "other"}
	got := finding.CheckTypes()

	if len(got) != len(want) {
		t.Fatalf("CheckTypes() returned %d values, want %d", len(got), len(want))
	}
	for i, w := range want {
		if string(got[i]) != w {
			t.Errorf("CheckTypes()[%d] = %q, want %q", i, got[i], w)
		}
	}
}
