package mcpserver

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/depgate/depgate/pkg/policy"
)

const internalSuite = `
name: "internal"
filters:
  - name: always
    check_type: other
    summary: "Always"
    value: "true"
`

func TestResolveSuitePrecedence(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "named.yml"), []byte(internalSuite), 0o644); err != nil {
		t.Fatal(err)
	}
	pathSuite := filepath.Join(dir, "by-path.yaml")
	if err := os.WriteFile(pathSuite, []byte(internalSuite), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(&Config{SuiteDir: dir})

	// Inline YAML wins over everything.
	suite, err := s.resolveSuite(suiteArgs{
		SuiteYAML: internalSuite,
		SuitePath: "/does/not/exist.yaml",
		Suite:     "nope",
	})
	if err != nil {
		t.Fatalf("inline: %v", err)
	}
	if suite.Name != "internal" {
		t.Errorf("inline suite name = %q", suite.Name)
	}

	// Path wins over bare name.
	if _, err := s.resolveSuite(suiteArgs{SuitePath: pathSuite, Suite: "nope"}); err != nil {
		t.Errorf("path: %v", err)
	}

	// Bare names try the name as given, then .yaml, then .yml.
	if _, err := s.resolveSuite(suiteArgs{Suite: "named"}); err != nil {
		t.Errorf("bare name: %v", err)
	}
	if _, err := s.resolveSuite(suiteArgs{Suite: "named.yml"}); err != nil {
		t.Errorf("exact name: %v", err)
	}

	_, err = s.resolveSuite(suiteArgs{Suite: "absent"})
	if !errors.Is(err, policy.ErrSuiteNotFound) {
		t.Errorf("absent name error = %v, want ErrSuiteNotFound", err)
	}

	_, err = s.resolveSuite(suiteArgs{})
	if err == nil || !strings.Contains(err.Error(), "required") {
		t.Errorf("empty args error = %v", err)
	}

	// A found-but-invalid suite surfaces the parse error, it does not
	// fall through to the next candidate name.
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("filters: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = s.resolveSuite(suiteArgs{Suite: "bad"})
	if !errors.Is(err, policy.ErrInvalidSuite) {
		t.Errorf("invalid suite error = %v, want ErrInvalidSuite", err)
	}
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		ev   policy.Evaluation
		want string
	}{
		{policy.Evaluation{Skipped: true, Err: "ctx"}, "skipped"},
		{policy.Evaluation{Err: "boom"}, "error"},
		{policy.Evaluation{Triggered: true}, "triggered"},
		{policy.Evaluation{}, "pass"},
	}
	for _, tt := range tests {
		if got := outcomeOf(tt.ev); got != tt.want {
			t.Errorf("outcomeOf(%+v) = %q, want %q", tt.ev, got, tt.want)
		}
	}
}

func TestEvaluateSummaryWording(t *testing.T) {
	clean := evaluateSummary(policy.Totals{Evaluations: 4}, 2, "A")
	if !strings.Contains(clean, "Clean") || !strings.Contains(clean, "components") {
		t.Errorf("clean summary = %q", clean)
	}

	dirty := evaluateSummary(policy.Totals{Evaluations: 4, Violations: 2, Errors: 1}, 1, "F")
	for _, want := range []string{"2 violations", "1 component", "1 evaluation errors", "grade F"} {
		if !strings.Contains(dirty, want) {
			t.Errorf("summary %q missing %q", dirty, want)
		}
	}
}
