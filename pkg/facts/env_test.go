package facts

import (
	"testing"

	"github.com/depgate/depgate/pkg/expr"
)

func evalAgainst(t *testing.T, s *Snapshot, src string) bool {
	t.Helper()
	got, err := expr.MustParse(src).EvalBool(s.Env())
	if err != nil {
		t.Fatalf("EvalBool(%q) error: %v", src, err)
	}
	return got
}

func TestEnvBindings(t *testing.T) {
	t.Parallel()

	s := sampleSnapshot()

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"pkg identity", `pkg.name == "lodash" && pkg.ecosystem == "npm"`, true},
		{"pkg direct", "pkg.direct", true},
		{"high tier populated", "vulns.high.exists(v, true)", true},
		{"critical tier empty", "vulns.critical.exists(v, true)", false},
		{"info tier bound", "size(vulns.info) == 0", true},
		{"all tier concatenated", "size(vulns.all) == 3", true},
		{"all tier severity order", `vulns.all[0].severity == "high"`, true},
		{"vuln fields", `vulns.high.exists(v, v.id.startsWith("GHSA-") && v.fixed)`, true},
		{"unfixed medium", "vulns.medium.exists(v, !v.fixed)", true},
		{"scorecard score", `scorecard.scores["Maintained"] < 5`, true},
		{"scorecard repo", `scorecard.repo.contains("lodash")`, true},
		{"projects stars", "projects.exists(p, p.stars > 10000)", true},
		{"projects type", `projects.all(p, p.type == "GITHUB")`, true},
		{"licenses", `licenses.exists(l, l == "MIT")`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := evalAgainst(t, s, tt.expr); got != tt.want {
				t.Errorf("EvalBool(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEnvWithoutScorecard(t *testing.T) {
	t.Parallel()

	s := &Snapshot{Component: Component{Name: "left-pad", Version: "1.3.0", Ecosystem: "npm"}}

	if got := evalAgainst(t, s, "size(scorecard.scores) == 0"); !got {
		t.Error("missing scorecard should bind an empty score map")
	}
	if got := evalAgainst(t, s, `scorecard.repo == ""`); !got {
		t.Error("missing scorecard should bind an empty repo")
	}

	// Reading a specific score from the empty map is still an error, not
	// a silent zero.
	_, err := expr.MustParse(`scorecard.scores["Maintained"] < 5`).EvalBool(s.Env())
	if err == nil {
		t.Error("expected EvalError for absent score key")
	}
}

func TestEnvFreshPerCall(t *testing.T) {
	t.Parallel()

	s := sampleSnapshot()
	first := s.Env()
	second := s.Env()
	if first == second {
		t.Fatal("Env must return a fresh environment per call")
	}

	first.Set("scratch", expr.BoolVal(true))
	if _, ok := second.Lookup("scratch"); ok {
		t.Error("environments must not share state")
	}
}

func TestEnvSpecExamples(t *testing.T) {
	t.Parallel()

	unpopular := &Snapshot{
		Projects: []Project{{Type: ProjectGitHub, Stars: 5}},
	}
	popular := &Snapshot{
		Projects: []Project{{Type: ProjectGitHub, Stars: 50}},
	}

	if !evalAgainst(t, unpopular, "projects.exists(p, p.stars < 10)") {
		t.Error("5-star project should satisfy stars < 10")
	}
	if evalAgainst(t, popular, "projects.exists(p, p.stars < 10)") {
		t.Error("50-star project should not satisfy stars < 10")
	}

	empty := &Snapshot{}
	one := &Snapshot{Vulnerabilities: []Vulnerability{{ID: "CVE-2024-1", Severity: "critical"}}}
	if evalAgainst(t, empty, "vulns.critical.exists(p, true)") {
		t.Error("empty critical tier should not trigger")
	}
	if !evalAgainst(t, one, "vulns.critical.exists(p, true)") {
		t.Error("single critical vuln should trigger")
	}
}
