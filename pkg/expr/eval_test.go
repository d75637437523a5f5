package expr

import (
	"errors"
	"strings"
	"testing"
)

// guardEnv builds the environment shape rules see in production: severity
// buckets of vulnerability maps, scorecard scores, source projects, license
// list, and package identity.
func guardEnv() *Env {
	env := NewEnv()
	env.Set("vulns", MustFromGo(map[string]any{
		"critical": []any{
			map[string]any{"id": "CVE-2024-0001", "severity": "critical", "summary": "RCE in parser", "fixed": true},
		},
		"high":   []any{},
		"medium": []any{map[string]any{"id": "CVE-2023-1111", "severity": "medium", "summary": "ReDoS", "fixed": false}},
		"low":    []any{},
	}))
	env.Set("projects", MustFromGo([]any{
		map[string]any{"name": "acme/parser", "type": "GITHUB", "stars": 5, "forks": 2, "issues": 12},
	}))
	env.Set("scorecard", MustFromGo(map[string]any{
		"repo": "github.com/acme/parser",
		"scores": map[string]float64{
			"Maintained":  4.0,
			"Code-Review": 7.5,
		},
	}))
	env.Set("licenses", MustFromGo([]string{"MIT", "Apache-2.0"}))
	env.Set("pkg", MustFromGo(map[string]any{
		"name": "parser", "version": "1.2.3", "ecosystem": "npm", "direct": true,
	}))
	return env
}

func TestEvalBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"literal true always triggers", "true", true},
		{"literal false never triggers", "false", false},
		{"negation", "!false", true},
		{"and", "true && true", true},
		{"and false", "true && false", false},
		{"or", "false || true", true},
		{"equality number", "1 == 1", true},
		{"inequality number", "1 != 2", true},
		{"less than", "1 < 2", true},
		{"greater than", "2 > 10", false},
		{"lte", "2 <= 2", true},
		{"gte", "3 >= 4", false},
		{"string equality", `pkg.ecosystem == "npm"`, true},
		{"string ordering", `"abc" < "abd"`, true},
		{"arithmetic", "1 + 2 * 3 == 7", true},
		{"arithmetic parens", "(1 + 2) * 3 == 9", true},
		{"modulo", "7 % 2 == 1", true},
		{"unary minus", "-2 < 0", true},
		{"string concat", `"a" + "b" == "ab"`, true},
		{"member access", "pkg.direct", true},
		{"nested member access", `scorecard.scores["Maintained"] < 5`, true},
		{"nested member miss threshold", `scorecard.scores["Code-Review"] < 5`, false},
		{"index into list", `licenses[0] == "MIT"`, true},
		{"exists over small project", "projects.exists(p, p.stars < 10)", true},
		{"exists respects threshold", "projects.exists(p, p.stars < 3)", false},
		{"exists inline popular project", `[{stars: 50}].exists(p, p.stars < 10)`, false},
		{"exists inline unpopular project", `[{stars: 5}].exists(p, p.stars < 10)`, true},
		{"exists one critical vuln", "vulns.critical.exists(p, true)", true},
		{"exists empty bucket", "vulns.high.exists(p, true)", false},
		{"exists empty bucket constant predicate", "vulns.low.exists(p, p.id == \"anything\")", false},
		{"all over empty list", "vulns.high.all(p, p.id == \"x\")", true},
		{"all holds", `licenses.all(l, l.size() > 2)`, true},
		{"filter then size", `size(licenses.filter(l, l.startsWith("A"))) == 1`, true},
		{"map then index", `licenses.map(l, l + "!")[0] == "MIT!"`, true},
		{"startsWith", `pkg.name.startsWith("par")`, true},
		{"endsWith", `pkg.version.endsWith(".3")`, true},
		{"contains", `scorecard.repo.contains("acme")`, true},
		{"matches", `pkg.version.matches("^[0-9]+\\.[0-9]+\\.[0-9]+$")`, true},
		{"matches negative", `pkg.name.matches("^[0-9]+$")`, false},
		{"size of list", "size(projects) == 1", true},
		{"size of string method form", `pkg.name.size() == 6`, true},
		{"size of map", "size(vulns) == 4", true},
		{"null equality", "null == null", true},
		{"list equality", "[1, 2] == [1, 2]", true},
		{"list inequality", "[1, 2] != [2, 1]", true},
		{"short-circuit and skips undefined", "false && vulns.nosuch.exists(p, true)", false},
		{"short-circuit or skips undefined", "true || pkg.nosuch == 1", true},
		{"guarded bucket probe", "size(vulns.critical) > 0 && vulns.critical.exists(p, p.id.startsWith(\"CVE-\"))", true},
		{"comment ignored", "true // always on", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prog, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.expr, err)
			}
			got, err := prog.EvalBool(guardEnv())
			if err != nil {
				t.Fatalf("EvalBool(%q) error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("EvalBool(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		expr    string
		wantMsg string
	}{
		{"undefined name", "nosuch", "undefined name"},
		{"undefined field", "pkg.nosuch", `undefined field "nosuch"`},
		{"undefined field not silent false", "pkg.nosuch == true", `undefined field "nosuch"`},
		{"undefined map key", `scorecard.scores["NotAScore"] < 5`, `undefined field "NotAScore"`},
		{"member access on list", "projects.stars", "cannot access field"},
		{"member access on string", "pkg.name.stars", "cannot access field"},
		{"not on number", "!1", "expects bool"},
		{"and on number", "1 && true", "expects bool operands"},
		{"or on string", `"a" || true`, "expects bool operands"},
		{"cross-kind equality", `1 == "1"`, "cannot compare number and string"},
		{"cross-kind ordering", `pkg.name < 5`, "cannot compare string and number"},
		{"ordering on bool", "true < false", "expects numbers or strings"},
		{"division by zero", "1 / 0 == 1", "division by zero"},
		{"modulo by zero", "1 % 0 == 1", "modulo by zero"},
		{"plus mismatched", `1 + "a" == 2`, "operator + expects"},
		{"index out of range", "licenses[9] == \"MIT\"", "out of range"},
		{"fractional index", "licenses[0.5] == \"MIT\"", "must be an integer"},
		{"index on number", "1[0] == 1", "cannot index"},
		{"exists on map", "vulns.exists(p, true)", "expects a list receiver"},
		{"exists non-bool predicate", "projects.exists(p, p.stars)", "predicate must be bool"},
		{"predicate error propagates", "projects.exists(p, p.nosuch < 1)", `undefined field "nosuch"`},
		{"startsWith on number", `projects.exists(p, p.stars.startsWith("1"))`, "expects a string receiver"},
		{"startsWith non-string arg", "pkg.name.startsWith(1)", "expects a string argument"},
		{"invalid pattern", `pkg.name.matches("[")`, "invalid pattern"},
		{"unknown method", `pkg.name.reverse()`, `unknown method "reverse"`},
		{"unknown function", "reverse(pkg.name)", `unknown function "reverse"`},
		{"size on bool", "size(true) == 1", "size expects"},
		{"non-bool top level", "1 + 1", "must yield bool"},
		{"non-bool string top level", `pkg.name`, "must yield bool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prog, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.expr, err)
			}
			_, err = prog.EvalBool(guardEnv())
			if err == nil {
				t.Fatalf("EvalBool(%q) expected error, got none", tt.expr)
			}
			var evalErr *EvalError
			if !errors.As(err, &evalErr) {
				t.Fatalf("EvalBool(%q) error type = %T, want *EvalError", tt.expr, err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("EvalBool(%q) error = %q, want substring %q", tt.expr, err, tt.wantMsg)
			}
		})
	}
}

func TestEvalIdempotent(t *testing.T) {
	t.Parallel()

	exprs := []string{
		"projects.exists(p, p.stars < 10)",
		"vulns.critical.exists(p, true)",
		`scorecard.scores["Maintained"] < 5 && pkg.direct`,
	}
	for _, src := range exprs {
		prog := MustParse(src)
		env := guardEnv()
		first, err := prog.EvalBool(env)
		if err != nil {
			t.Fatalf("EvalBool(%q) error: %v", src, err)
		}
		for i := 0; i < 3; i++ {
			got, err := prog.EvalBool(env)
			if err != nil {
				t.Fatalf("EvalBool(%q) repeat error: %v", src, err)
			}
			if got != first {
				t.Errorf("EvalBool(%q) changed between runs: %v then %v", src, first, got)
			}
		}
	}
}

func TestEvalConcurrent(t *testing.T) {
	t.Parallel()

	prog := MustParse("projects.exists(p, p.stars < 10) && vulns.critical.exists(p, true)")
	done := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		go func() {
			got, err := prog.EvalBool(guardEnv())
			done <- err == nil && got
		}()
	}
	for i := 0; i < 16; i++ {
		if !<-done {
			t.Fatal("concurrent evaluation diverged")
		}
	}
}

func TestMacroScopeDoesNotLeak(t *testing.T) {
	t.Parallel()

	env := guardEnv()
	prog := MustParse("projects.exists(p, p.stars < 10)")
	if _, err := prog.EvalBool(env); err != nil {
		t.Fatalf("EvalBool error: %v", err)
	}
	if _, ok := env.Lookup("p"); ok {
		t.Error("macro variable leaked into the outer environment")
	}
}

func TestEvalValueResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
		want Value
	}{
		{"number", "1 + 2", NumberVal(3)},
		{"string", `"a" + "b"`, StringVal("ab")},
		{"list literal", "[1, 2]", ListVal(NumberVal(1), NumberVal(2))},
		{"list concat", "[1] + [2]", ListVal(NumberVal(1), NumberVal(2))},
		{"map literal", `{tier: "critical"}`, MapVal(map[string]Value{"tier": StringVal("critical")})},
		{"filter", "[1, 5, 10].filter(n, n > 2)", ListVal(NumberVal(5), NumberVal(10))},
		{"map macro", "[1, 2].map(n, n * 10)", ListVal(NumberVal(10), NumberVal(20))},
		{"null", "null", NullVal()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := MustParse(tt.expr).Eval(NewEnv())
			if err != nil {
				t.Fatalf("Eval(%q) error: %v", tt.expr, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Eval(%q) = %s, want %s", tt.expr, got, tt.want)
			}
		})
	}
}
