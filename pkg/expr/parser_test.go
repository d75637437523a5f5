package expr

import (
	"errors"
	"strings"
	"testing"
)

func TestParseValid(t *testing.T) {
	t.Parallel()

	exprs := []string{
		"true",
		"false",
		"!triggered",
		"a && b || c",
		"a.b.c == 1",
		`name.startsWith("lib")`,
		"items.exists(x, x.score > 5)",
		"items.all(x, x.ok)",
		"items.filter(x, x.ok).exists(y, y.score == 10)",
		"size(items) > 0",
		"items[0].name != null",
		`m["key with spaces"] == 1`,
		"[1, 2, 3]",
		`{a: 1, "b": 2}`,
		"(a || b) && !(c || d)",
		"1 + 2 * 3 - 4 / 2",
		"-x < 0",
		"a == b // trailing comment",
		"  a\n&& b\t",
		`s.matches("^v[0-9]+")`,
	}
	for _, src := range exprs {
		if _, err := Parse(src); err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", src, err)
		}
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		expr    string
		wantMsg string
	}{
		{"empty", "", "unexpected end of expression"},
		{"only whitespace", "   ", "unexpected end of expression"},
		{"single ampersand", "a & b", "expected '&&'"},
		{"single pipe", "a | b", "expected '||'"},
		{"assignment", "a = 1", "assignment is not supported"},
		{"dangling and", "a &&", "unexpected end of expression"},
		{"dangling dot", "a.", "expected identifier"},
		{"dangling not", "!", "unexpected end of expression"},
		{"unbalanced paren", "(a || b", "expected ')'"},
		{"unbalanced bracket", "items[0", "expected ']'"},
		{"unbalanced brace", "{a: 1", "expected ','"},
		{"unterminated string", `name == "abc`, "unterminated string"},
		{"newline in string", "name == \"a\nb\"", "unterminated string"},
		{"bad escape", `name == "a\q"`, "unknown escape"},
		{"unexpected character", "a # b", "unexpected character"},
		{"trailing tokens", "a b", "unexpected identifier after expression"},
		{"chained comparison", "1 < 2 < 3", "comparisons cannot be chained"},
		{"macro missing variable", "items.exists(1, true)", "exists expects (variable, expression)"},
		{"macro missing comma", "items.exists(x true)", "exists expects (variable, expression)"},
		{"call missing close", "size(items", "expected ',' or ')'"},
		{"map missing colon", "{a 1}", "expected ':'"},
		{"list missing comma", "[1 2]", "expected ',' or ']'"},
		{"empty index", "items[]", "unexpected ']'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tt.expr)
			if err == nil {
				t.Fatalf("Parse(%q) expected error, got none", tt.expr)
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("Parse(%q) error type = %T, want *ParseError", tt.expr, err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Parse(%q) error = %q, want substring %q", tt.expr, err, tt.wantMsg)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	t.Parallel()

	_, err := Parse("abc = 1")
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
	if parseErr.Pos != 5 {
		t.Errorf("Pos = %d, want 5", parseErr.Pos)
	}
}

func TestParseDepthLimit(t *testing.T) {
	t.Parallel()

	deep := strings.Repeat("(", maxNestingDepth+1) + "true" + strings.Repeat(")", maxNestingDepth+1)
	_, err := Parse(deep)
	if err == nil {
		t.Fatal("expected depth error for deeply nested expression")
	}
	if !strings.Contains(err.Error(), "nested too deeply") {
		t.Errorf("error = %q, want nesting message", err)
	}

	shallow := strings.Repeat("!", maxNestingDepth+1) + "true"
	if _, err := Parse(shallow); err == nil {
		t.Fatal("expected depth error for long unary chain")
	}
}

func TestParsePrecedence(t *testing.T) {
	t.Parallel()

	env := NewEnv()
	env.Set("a", BoolVal(true))
	env.Set("b", BoolVal(false))
	env.Set("c", BoolVal(true))

	tests := []struct {
		expr string
		want bool
	}{
		// && binds tighter than ||.
		{"a || b && b", true},
		{"(a || b) && b", false},
		// ! binds tighter than ==.
		{"!b == a", true},
		// Comparison binds tighter than &&.
		{"1 < 2 && 3 < 4", true},
		// * binds tighter than +.
		{"2 + 3 * 4 == 14", true},
	}
	for _, tt := range tests {
		got, err := MustParse(tt.expr).EvalBool(env)
		if err != nil {
			t.Fatalf("EvalBool(%q) error: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Errorf("EvalBool(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestStringEscapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr string
		want string
	}{
		{`"plain"`, "plain"},
		{`'single'`, "single"},
		{`"tab\there"`, "tab\there"},
		{`"line\nbreak"`, "line\nbreak"},
		{`"quote\"inside"`, `quote"inside`},
		{`'it\'s'`, "it's"},
		{`"back\\slash"`, `back\slash`},
	}
	for _, tt := range tests {
		v, err := MustParse(tt.expr).Eval(NewEnv())
		if err != nil {
			t.Fatalf("Eval(%s) error: %v", tt.expr, err)
		}
		got, ok := v.AsString()
		if !ok {
			t.Fatalf("Eval(%s) kind = %s, want string", tt.expr, v.Kind())
		}
		if got != tt.want {
			t.Errorf("Eval(%s) = %q, want %q", tt.expr, got, tt.want)
		}
	}
}
