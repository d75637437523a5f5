package policy

import (
	"fmt"

	"github.com/depgate/depgate/pkg/expr"
	"github.com/depgate/depgate/pkg/facts"
)

// CheckFunc evaluates a rule against a snapshot outside the expression
// language. Scripted guardrails plug in here.
type CheckFunc func(snap *facts.Snapshot) (bool, error)

// CompiledRule pairs a rule with its evaluator: the parsed expression
// for suite filters, or a Check function for rules compiled elsewhere.
// Program is nil and Err holds the parse error when the expression is
// malformed; such rules stay in the suite so reports account for every
// filter in the document.
type CompiledRule struct {
	Rule
	Program *expr.Program
	Check   CheckFunc
	Err     error
}

// Broken reports whether the rule failed to compile.
func (r CompiledRule) Broken() bool {
	return r.Err != nil
}

// CompiledSuite holds a suite with every expression parsed once. Programs
// are immutable, so one compiled suite serves any number of concurrent
// evaluations.
type CompiledSuite struct {
	Suite *Suite
	Rules []CompiledRule
}

// Compile parses every rule expression. Parse failures are recorded on the
// affected rule and never abort the rest of the suite.
func (s *Suite) Compile() *CompiledSuite {
	cs := &CompiledSuite{
		Suite: s,
		Rules: make([]CompiledRule, len(s.Filters)),
	}
	for i, r := range s.Filters {
		prog, err := expr.Parse(r.Value)
		cs.Rules[i] = CompiledRule{Rule: r, Program: prog, Err: err}
	}
	return cs
}

// Add appends rules compiled outside the suite document, such as
// scripted guardrails. Names keep the suite's uniqueness invariant: a
// collision with any existing rule rejects the whole batch before
// anything is appended.
func (cs *CompiledSuite) Add(rules ...CompiledRule) error {
	names := make(map[string]bool, len(cs.Rules)+len(rules))
	for _, r := range cs.Rules {
		names[r.Name] = true
	}
	for _, r := range rules {
		if names[r.Name] {
			return fmt.Errorf("%w: duplicate rule name %q", ErrInvalidSuite, r.Name)
		}
		names[r.Name] = true
	}
	cs.Rules = append(cs.Rules, rules...)
	return nil
}

// BrokenRules returns the rules whose expressions failed to parse.
func (cs *CompiledSuite) BrokenRules() []CompiledRule {
	var broken []CompiledRule
	for _, r := range cs.Rules {
		if r.Broken() {
			broken = append(broken, r)
		}
	}
	return broken
}

// ValidCount returns the number of rules that compiled.
func (cs *CompiledSuite) ValidCount() int {
	return len(cs.Rules) - len(cs.BrokenRules())
}
