package expr

import (
	"math"
	"strings"

	"github.com/depgate/depgate/pkg/regexcache"
)

func eval(n node, env *Env) (Value, error) {
	switch t := n.(type) {
	case *literalNode:
		return t.val, nil
	case *identNode:
		v, ok := env.Lookup(t.name)
		if !ok {
			return Value{}, evalErrf(t.at, "undefined name %q", t.name)
		}
		return v, nil
	case *unaryNode:
		return evalUnary(t, env)
	case *binaryNode:
		return evalBinary(t, env)
	case *memberNode:
		return evalMember(t, env)
	case *indexNode:
		return evalIndex(t, env)
	case *callNode:
		return evalCall(t, env)
	case *macroNode:
		return evalMacro(t, env)
	case *listNode:
		items := make([]Value, len(t.elems))
		for i, e := range t.elems {
			v, err := eval(e, env)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return ListVal(items...), nil
	case *mapNode:
		m := make(map[string]Value, len(t.keys))
		for i, k := range t.keys {
			v, err := eval(t.entries[i], env)
			if err != nil {
				return Value{}, err
			}
			m[k] = v
		}
		return MapVal(m), nil
	default:
		return Value{}, evalErrf(n.pos(), "unknown expression node")
	}
}

func evalUnary(n *unaryNode, env *Env) (Value, error) {
	v, err := eval(n.operand, env)
	if err != nil {
		return Value{}, err
	}
	switch n.op {
	case tokenNot:
		b, ok := v.AsBool()
		if !ok {
			return Value{}, evalErrf(n.at, "operator ! expects bool, got %s", v.Kind())
		}
		return BoolVal(!b), nil
	case tokenMinus:
		f, ok := v.AsNumber()
		if !ok {
			return Value{}, evalErrf(n.at, "unary - expects number, got %s", v.Kind())
		}
		return NumberVal(-f), nil
	default:
		return Value{}, evalErrf(n.at, "unknown unary operator")
	}
}

// evalBinary handles the logical, comparison, and arithmetic operators.
// && and || short-circuit: the right side is never evaluated when the left
// side decides the result, so guarded subexpressions cannot raise errors.
func evalBinary(n *binaryNode, env *Env) (Value, error) {
	if n.op == tokenAnd || n.op == tokenOr {
		left, err := eval(n.left, env)
		if err != nil {
			return Value{}, err
		}
		lb, ok := left.AsBool()
		if !ok {
			return Value{}, evalErrf(n.at, "operator %s expects bool operands, got %s", n.op, left.Kind())
		}
		if n.op == tokenAnd && !lb {
			return BoolVal(false), nil
		}
		if n.op == tokenOr && lb {
			return BoolVal(true), nil
		}
		right, err := eval(n.right, env)
		if err != nil {
			return Value{}, err
		}
		rb, ok := right.AsBool()
		if !ok {
			return Value{}, evalErrf(n.at, "operator %s expects bool operands, got %s", n.op, right.Kind())
		}
		return BoolVal(rb), nil
	}

	left, err := eval(n.left, env)
	if err != nil {
		return Value{}, err
	}
	right, err := eval(n.right, env)
	if err != nil {
		return Value{}, err
	}

	switch n.op {
	case tokenEq, tokenNeq:
		if left.Kind() != right.Kind() {
			return Value{}, evalErrf(n.at, "cannot compare %s and %s", left.Kind(), right.Kind())
		}
		eq := left.Equal(right)
		if n.op == tokenNeq {
			eq = !eq
		}
		return BoolVal(eq), nil
	case tokenLt, tokenLte, tokenGt, tokenGte:
		return evalOrdered(n.at, n.op, left, right)
	case tokenPlus:
		return evalPlus(n.at, left, right)
	case tokenMinus, tokenStar, tokenSlash, tokenPercent:
		lf, lok := left.AsNumber()
		rf, rok := right.AsNumber()
		if !lok || !rok {
			return Value{}, evalErrf(n.at, "operator %s expects numbers, got %s and %s", n.op, left.Kind(), right.Kind())
		}
		switch n.op {
		case tokenMinus:
			return NumberVal(lf - rf), nil
		case tokenStar:
			return NumberVal(lf * rf), nil
		case tokenSlash:
			if rf == 0 {
				return Value{}, evalErrf(n.at, "division by zero")
			}
			return NumberVal(lf / rf), nil
		default:
			if rf == 0 {
				return Value{}, evalErrf(n.at, "modulo by zero")
			}
			return NumberVal(math.Mod(lf, rf)), nil
		}
	default:
		return Value{}, evalErrf(n.at, "unknown operator")
	}
}

// evalOrdered compares numbers with numbers and strings with strings.
func evalOrdered(at int, op tokenKind, left, right Value) (Value, error) {
	if lf, ok := left.AsNumber(); ok {
		rf, ok := right.AsNumber()
		if !ok {
			return Value{}, evalErrf(at, "cannot compare number and %s", right.Kind())
		}
		return BoolVal(orderedResult(op, lf < rf, lf == rf)), nil
	}
	if ls, ok := left.AsString(); ok {
		rs, ok := right.AsString()
		if !ok {
			return Value{}, evalErrf(at, "cannot compare string and %s", right.Kind())
		}
		return BoolVal(orderedResult(op, ls < rs, ls == rs)), nil
	}
	return Value{}, evalErrf(at, "operator %s expects numbers or strings, got %s", op, left.Kind())
}

func orderedResult(op tokenKind, less, equal bool) bool {
	switch op {
	case tokenLt:
		return less
	case tokenLte:
		return less || equal
	case tokenGt:
		return !less && !equal
	default:
		return !less
	}
}

// evalPlus adds numbers and concatenates strings or lists.
func evalPlus(at int, left, right Value) (Value, error) {
	if lf, ok := left.AsNumber(); ok {
		if rf, ok := right.AsNumber(); ok {
			return NumberVal(lf + rf), nil
		}
	}
	if ls, ok := left.AsString(); ok {
		if rs, ok := right.AsString(); ok {
			return StringVal(ls + rs), nil
		}
	}
	if ll, ok := left.AsList(); ok {
		if rl, ok := right.AsList(); ok {
			joined := make([]Value, 0, len(ll)+len(rl))
			joined = append(joined, ll...)
			joined = append(joined, rl...)
			return ListVal(joined...), nil
		}
	}
	return Value{}, evalErrf(at, "operator + expects matching numbers, strings, or lists, got %s and %s", left.Kind(), right.Kind())
}

// evalMember resolves target.field. A missing field is an EvalError, never
// a silent false.
func evalMember(n *memberNode, env *Env) (Value, error) {
	target, err := eval(n.target, env)
	if err != nil {
		return Value{}, err
	}
	m, ok := target.AsMap()
	if !ok {
		return Value{}, evalErrf(n.at, "cannot access field %q on %s", n.field, target.Kind())
	}
	v, ok := m[n.field]
	if !ok {
		return Value{}, evalErrf(n.at, "undefined field %q", n.field)
	}
	return v, nil
}

func evalIndex(n *indexNode, env *Env) (Value, error) {
	target, err := eval(n.target, env)
	if err != nil {
		return Value{}, err
	}
	idx, err := eval(n.index, env)
	if err != nil {
		return Value{}, err
	}
	if l, ok := target.AsList(); ok {
		f, ok := idx.AsNumber()
		if !ok {
			return Value{}, evalErrf(n.at, "list index must be a number, got %s", idx.Kind())
		}
		i := int(f)
		if float64(i) != f {
			return Value{}, evalErrf(n.at, "list index must be an integer, got %v", f)
		}
		if i < 0 || i >= len(l) {
			return Value{}, evalErrf(n.at, "list index %d out of range (length %d)", i, len(l))
		}
		return l[i], nil
	}
	if m, ok := target.AsMap(); ok {
		k, ok := idx.AsString()
		if !ok {
			return Value{}, evalErrf(n.at, "map key must be a string, got %s", idx.Kind())
		}
		v, ok := m[k]
		if !ok {
			return Value{}, evalErrf(n.at, "undefined field %q", k)
		}
		return v, nil
	}
	return Value{}, evalErrf(n.at, "cannot index %s", target.Kind())
}

// evalCall dispatches bare functions and method calls by explicit kind
// checks on the receiver.
func evalCall(n *callNode, env *Env) (Value, error) {
	if n.target == nil {
		return evalFunction(n, env)
	}
	target, err := eval(n.target, env)
	if err != nil {
		return Value{}, err
	}
	switch n.name {
	case "size":
		if len(n.args) != 0 {
			return Value{}, evalErrf(n.at, "size takes no arguments")
		}
		return sizeOf(n.at, target)
	case "startsWith", "endsWith", "contains", "matches":
		s, ok := target.AsString()
		if !ok {
			return Value{}, evalErrf(n.at, "%s expects a string receiver, got %s", n.name, target.Kind())
		}
		if len(n.args) != 1 {
			return Value{}, evalErrf(n.at, "%s expects 1 argument", n.name)
		}
		argV, err := eval(n.args[0], env)
		if err != nil {
			return Value{}, err
		}
		arg, ok := argV.AsString()
		if !ok {
			return Value{}, evalErrf(n.at, "%s expects a string argument, got %s", n.name, argV.Kind())
		}
		return evalStringMethod(n.at, n.name, s, arg)
	default:
		return Value{}, evalErrf(n.at, "unknown method %q", n.name)
	}
}

func evalFunction(n *callNode, env *Env) (Value, error) {
	switch n.name {
	case "size":
		if len(n.args) != 1 {
			return Value{}, evalErrf(n.at, "size expects 1 argument")
		}
		v, err := eval(n.args[0], env)
		if err != nil {
			return Value{}, err
		}
		return sizeOf(n.at, v)
	default:
		return Value{}, evalErrf(n.at, "unknown function %q", n.name)
	}
}

func sizeOf(at int, v Value) (Value, error) {
	switch v.Kind() {
	case KindString:
		s, _ := v.AsString()
		return NumberVal(float64(len(s))), nil
	case KindList:
		l, _ := v.AsList()
		return NumberVal(float64(len(l))), nil
	case KindMap:
		m, _ := v.AsMap()
		return NumberVal(float64(len(m))), nil
	default:
		return Value{}, evalErrf(at, "size expects string, list, or map, got %s", v.Kind())
	}
}

func evalStringMethod(at int, name, s, arg string) (Value, error) {
	switch name {
	case "startsWith":
		return BoolVal(strings.HasPrefix(s, arg)), nil
	case "endsWith":
		return BoolVal(strings.HasSuffix(s, arg)), nil
	case "contains":
		return BoolVal(strings.Contains(s, arg)), nil
	case "matches":
		re, err := regexcache.Get(arg)
		if err != nil {
			return Value{}, evalErrf(at, "invalid pattern %q: %v", arg, err)
		}
		return BoolVal(re.MatchString(s)), nil
	default:
		return Value{}, evalErrf(at, "unknown method %q", name)
	}
}

// evalMacro runs the comprehensions. Elements are visited left to right and
// exists/all stop at the first deciding element, mirroring && and ||.
func evalMacro(n *macroNode, env *Env) (Value, error) {
	target, err := eval(n.target, env)
	if err != nil {
		return Value{}, err
	}
	items, ok := target.AsList()
	if !ok {
		return Value{}, evalErrf(n.at, "%s expects a list receiver, got %s", n.name, target.Kind())
	}
	scope := env.Child()
	switch n.name {
	case "exists":
		for _, item := range items {
			scope.Set(n.ident, item)
			b, err := evalPredicate(n, scope)
			if err != nil {
				return Value{}, err
			}
			if b {
				return BoolVal(true), nil
			}
		}
		return BoolVal(false), nil
	case "all":
		for _, item := range items {
			scope.Set(n.ident, item)
			b, err := evalPredicate(n, scope)
			if err != nil {
				return Value{}, err
			}
			if !b {
				return BoolVal(false), nil
			}
		}
		return BoolVal(true), nil
	case "filter":
		var kept []Value
		for _, item := range items {
			scope.Set(n.ident, item)
			b, err := evalPredicate(n, scope)
			if err != nil {
				return Value{}, err
			}
			if b {
				kept = append(kept, item)
			}
		}
		return ListVal(kept...), nil
	case "map":
		mapped := make([]Value, 0, len(items))
		for _, item := range items {
			scope.Set(n.ident, item)
			v, err := eval(n.body, scope)
			if err != nil {
				return Value{}, err
			}
			mapped = append(mapped, v)
		}
		return ListVal(mapped...), nil
	default:
		return Value{}, evalErrf(n.at, "unknown macro %q", n.name)
	}
}

func evalPredicate(n *macroNode, scope *Env) (bool, error) {
	v, err := eval(n.body, scope)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, evalErrf(n.body.pos(), "%s predicate must be bool, got %s", n.name, v.Kind())
	}
	return b, nil
}
