package expr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the runtime type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// String returns the kind name as it appears in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is the tagged union the evaluator operates on. Exactly one variant
// is populated according to kind; operators check kinds explicitly instead
// of dispatching through reflection.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	l    []Value
	m    map[string]Value
}

// NullVal returns the null value.
func NullVal() Value { return Value{kind: KindNull} }

// BoolVal wraps a bool.
func BoolVal(b bool) Value { return Value{kind: KindBool, b: b} }

// NumberVal wraps a float64. All numbers share one representation.
func NumberVal(n float64) Value { return Value{kind: KindNumber, n: n} }

// StringVal wraps a string.
func StringVal(s string) Value { return Value{kind: KindString, s: s} }

// ListVal wraps a slice of values. The slice is not copied.
func ListVal(items ...Value) Value { return Value{kind: KindList, l: items} }

// MapVal wraps a map of values. The map is not copied.
func MapVal(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

// Kind returns the populated variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the bool variant. The second result is false when the
// value holds a different kind.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsNumber returns the number variant.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.n, true
}

// AsString returns the string variant.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsList returns the list variant.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.l, true
}

// AsMap returns the map variant.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// Equal reports deep equality. Values of different kinds are never equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.l) != len(o.l) {
			return false
		}
		for i := range v.l {
			if !v.l[i].Equal(o.l[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, ve := range v.m {
			oe, ok := o.m[k]
			if !ok || !ve.Equal(oe) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value for error messages and debug output.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindList:
		parts := make([]string, len(v.l))
		for i, e := range v.l {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ": " + v.m[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "unknown"
	}
}

// FromGo converts a native Go value into a Value. Supported inputs are nil,
// bool, the common integer widths, float64, string, []any, []string,
// map[string]any, and values that are already Values. Anything else is an
// error so binding bugs surface at construction time, not mid-evaluation.
func FromGo(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return NullVal(), nil
	case Value:
		return t, nil
	case bool:
		return BoolVal(t), nil
	case int:
		return NumberVal(float64(t)), nil
	case int32:
		return NumberVal(float64(t)), nil
	case int64:
		return NumberVal(float64(t)), nil
	case uint64:
		return NumberVal(float64(t)), nil
	case float32:
		return NumberVal(float64(t)), nil
	case float64:
		return NumberVal(t), nil
	case string:
		return StringVal(t), nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = StringVal(s)
		}
		return ListVal(items...), nil
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			ev, err := FromGo(e)
			if err != nil {
				return Value{}, err
			}
			items[i] = ev
		}
		return ListVal(items...), nil
	case []Value:
		return ListVal(t...), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			ev, err := FromGo(e)
			if err != nil {
				return Value{}, err
			}
			m[k] = ev
		}
		return MapVal(m), nil
	case map[string]Value:
		return MapVal(t), nil
	case map[string]float64:
		m := make(map[string]Value, len(t))
		for k, n := range t {
			m[k] = NumberVal(n)
		}
		return MapVal(m), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// MustFromGo is FromGo that panics on unsupported input. For literals in
// tests and builtin environments.
func MustFromGo(v any) Value {
	val, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Env binds names to values for one evaluation. Child scopes shadow their
// parent; macros bind their loop variable in a child so snapshots stay
// untouched.
type Env struct {
	vars   map[string]Value
	parent *Env
}

// NewEnv returns an empty root environment.
func NewEnv() *Env {
	return &Env{vars: make(map[string]Value)}
}

// Set binds name to v in this scope.
func (e *Env) Set(name string, v Value) {
	e.vars[name] = v
}

// Lookup resolves name through this scope and its parents.
func (e *Env) Lookup(name string) (Value, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// Child returns a scope that shadows e.
func (e *Env) Child() *Env {
	return &Env{vars: make(map[string]Value, 1), parent: e}
}
