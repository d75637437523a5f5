// Package expr implements the guardrail expression language: a small,
// side-effect-free language of boolean, comparison, and arithmetic
// operators, member access into fact maps and lists, string predicates
// (startsWith, endsWith, contains, matches), and list comprehensions
// (exists, all, filter, map).
//
// Values carry an explicit kind tag (bool, number, string, list, map,
// null) and every operator checks its operand kinds; a mismatch is an
// EvalError, never a silent false. && and || short-circuit.
//
// Usage:
//
//	prog, err := expr.Parse(`vulns.critical.exists(p, true)`)
//	if err != nil {
//	    // *expr.ParseError
//	}
//	triggered, err := prog.EvalBool(snapshot.Env())
//	if err != nil {
//	    // *expr.EvalError
//	}
package expr

// Program is a compiled expression. Programs are immutable and safe for
// concurrent evaluation against independent environments.
type Program struct {
	src  string
	root node
}

// Parse compiles src into a Program. Malformed syntax yields a *ParseError.
func Parse(src string) (*Program, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	return &Program{src: src, root: root}, nil
}

// MustParse compiles src and panics on error. For fixed expressions in
// tests and builtins.
func MustParse(src string) *Program {
	p, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return p
}

// Source returns the original expression text.
func (p *Program) Source() string {
	return p.src
}

// Eval evaluates the program against env. Runtime failures yield a
// *EvalError.
func (p *Program) Eval(env *Env) (Value, error) {
	return eval(p.root, env)
}

// EvalBool evaluates the program and requires a boolean result. A guardrail
// expression must decide; any other result kind is an EvalError.
func (p *Program) EvalBool(env *Env) (bool, error) {
	v, err := p.Eval(env)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, evalErrf(p.root.pos(), "expression must yield bool, got %s", v.Kind())
	}
	return b, nil
}
