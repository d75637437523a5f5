package expr

import "fmt"

// ParseError reports malformed expression syntax. Pos is the 1-based byte
// offset of the offending token in the source text.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Msg)
}

// EvalError reports a runtime evaluation failure: an undefined reference,
// a type mismatch, an out-of-range index, or an invalid pattern. Undefined
// names and missing fields are errors, never a silent false.
type EvalError struct {
	Pos int
	Msg string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("eval error at position %d: %s", e.Pos, e.Msg)
}

func parseErrf(pos int, format string, args ...any) *ParseError {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func evalErrf(pos int, format string, args ...any) *EvalError {
	return &EvalError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
