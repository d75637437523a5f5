// Package scriptrule loads Tengo-scripted guardrails for checks the
// expression language cannot express, like loops or cross-fact
// arithmetic. Scripts run in a sandboxed VM with only safe stdlib
// modules: no file I/O, no network, no OS access.
//
// A rule script declares its metadata as top-level variables and its
// logic as a check function over the facts map:
//
//	name := "abandoned-direct-dep"
//	summary := "Direct dependency with no maintained project"
//	check_type := "maintenance"
//
//	check := func(facts) {
//	    return facts.pkg.direct && len(facts.projects) == 0
//	}
//
// The facts map carries the same names and shapes the expression
// language binds: vulns (severity tiers plus all), scorecard, projects,
// licenses, and pkg.
package scriptrule

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/finding"
	"github.com/depgate/depgate/pkg/policy"
)

// safeModules are the only Tengo stdlib modules available to scripts.
var safeModules = stdlib.GetModuleMap("text", "fmt", "math", "times")

// scriptMaxAllocs bounds VM allocations per script run.
const scriptMaxAllocs = 10_000_000

// ScriptRule is one loaded guardrail script, compiled once and cloned
// per evaluation.
type ScriptRule struct {
	name      string
	summary   string
	checkType finding.CheckType
	severity  finding.Severity
	compiled  *tengo.Compiled
}

// Name returns the rule name declared by the script.
func (r *ScriptRule) Name() string { return r.name }

// Summary returns the rule summary declared by the script.
func (r *ScriptRule) Summary() string { return r.summary }

// CheckType returns the declared check type, or "other".
func (r *ScriptRule) CheckType() finding.CheckType { return r.checkType }

// Severity returns the declared severity, or the check type's default.
func (r *ScriptRule) Severity() finding.Severity { return r.severity }

// Load compiles a .tengo file and extracts its metadata. The script
// must define name (string), summary (string), and check (function);
// check_type and severity are optional.
func Load(path string) (*ScriptRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule script %s: %w", path, err)
	}

	script := tengo.NewScript(data)
	script.SetImports(safeModules)
	script.SetMaxAllocs(scriptMaxAllocs)

	compiled, err := script.Run()
	if err != nil {
		return nil, fmt.Errorf("compile rule script %s: %w", path, err)
	}

	nameVar := compiled.Get("name")
	if nameVar.IsUndefined() {
		return nil, fmt.Errorf("rule script %s: missing 'name' variable", path)
	}
	summaryVar := compiled.Get("summary")
	if summaryVar.IsUndefined() {
		return nil, fmt.Errorf("rule script %s: missing 'summary' variable", path)
	}
	if compiled.Get("check").IsUndefined() {
		return nil, fmt.Errorf("rule script %s: missing 'check' function", path)
	}

	checkType := finding.CheckOther
	if v := compiled.Get("check_type"); !v.IsUndefined() {
		ct, err := finding.ParseCheckType(v.String())
		if err != nil {
			return nil, fmt.Errorf("rule script %s: %w", path, err)
		}
		checkType = ct
	}

	severity := checkType.DefaultSeverity()
	if v := compiled.Get("severity"); !v.IsUndefined() {
		sev, err := finding.ParseSeverity(v.String())
		if err != nil {
			return nil, fmt.Errorf("rule script %s: %w", path, err)
		}
		severity = sev
	}

	r := &ScriptRule{
		name:      nameVar.String(),
		summary:   summaryVar.String(),
		checkType: checkType,
		severity:  severity,
	}
	if err := r.precompile(data); err != nil {
		return nil, err
	}
	return r, nil
}

// precompile wraps the script so Check only needs Clone(). Compile()
// rather than Run() keeps the check function uninvoked at load time.
func (r *ScriptRule) precompile(source []byte) error {
	wrapper := fmt.Sprintf(`%s
__triggered__ := check(__facts__)
`, string(source))

	script := tengo.NewScript([]byte(wrapper))
	script.SetImports(safeModules)
	script.SetMaxAllocs(scriptMaxAllocs)
	_ = script.Add("__facts__", map[string]interface{}{})

	compiled, err := script.Compile()
	if err != nil {
		return fmt.Errorf("precompile rule %s: %w", r.name, err)
	}
	r.compiled = compiled
	return nil
}

// Check evaluates the script against a snapshot. The pre-compiled
// script is cloned per call, so one rule serves concurrent
// evaluations. The check function must return a boolean; anything
// else, including a runtime error or panic, fails the evaluation.
func (r *ScriptRule) Check(snap *facts.Snapshot) (triggered bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			triggered = false
			err = fmt.Errorf("rule %s: script panic: %v", r.name, rec)
		}
	}()

	c := r.compiled.Clone()
	if setErr := c.Set("__facts__", factsMap(snap)); setErr != nil {
		return false, fmt.Errorf("rule %s: bind facts: %w", r.name, setErr)
	}
	if runErr := c.Run(); runErr != nil {
		return false, fmt.Errorf("rule %s: %w", r.name, runErr)
	}

	out := c.Get("__triggered__")
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %s: check returned %s, want bool", r.name, out.ValueType())
	}
	return b, nil
}

// CompiledRule converts the script into a suite rule carrying its
// Check function and the metadata the script declared.
func (r *ScriptRule) CompiledRule() policy.CompiledRule {
	return policy.CompiledRule{
		Rule: policy.Rule{
			Name:      r.name,
			CheckType: r.checkType,
			Summary:   r.summary,
			Severity:  r.severity,
		},
		Check: r.Check,
	}
}

// AddTo appends the scripted rules to a compiled suite, after its
// document filters.
func AddTo(cs *policy.CompiledSuite, rules ...*ScriptRule) error {
	compiled := make([]policy.CompiledRule, len(rules))
	for i, r := range rules {
		compiled[i] = r.CompiledRule()
	}
	return cs.Add(compiled...)
}

// LoadDir loads every .tengo file in a directory. Files that fail to
// load are returned as errors without preventing the others.
func LoadDir(dir string) ([]*ScriptRule, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read rule dir %s: %w", dir, err)}
	}

	var rules []*ScriptRule
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tengo") {
			continue
		}
		r, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, r)
	}
	return rules, errs
}

// factsMap mirrors the expression environment's bindings as plain Go
// values, so scripts read the same names the expression language
// exposes.
func factsMap(snap *facts.Snapshot) map[string]interface{} {
	buckets := snap.BySeverity()
	vulns := make(map[string]interface{}, 6)
	all := make([]interface{}, 0, len(snap.Vulnerabilities))
	for _, sev := range finding.Ordered() {
		tier := make([]interface{}, 0, len(buckets[sev]))
		for _, v := range buckets[sev] {
			tier = append(tier, vulnMap(v))
		}
		vulns[sev.String()] = tier
		all = append(all, tier...)
	}
	vulns["all"] = all

	repo := ""
	scores := map[string]interface{}{}
	if snap.Scorecard != nil {
		repo = snap.Scorecard.Repo
		for check, score := range snap.Scorecard.Scores {
			scores[check] = score
		}
	}

	projects := make([]interface{}, 0, len(snap.Projects))
	for _, p := range snap.Projects {
		projects = append(projects, map[string]interface{}{
			"name":   p.Name,
			"type":   p.Type,
			"stars":  p.Stars,
			"forks":  p.Forks,
			"issues": p.Issues,
		})
	}

	licenses := make([]interface{}, 0, len(snap.Licenses))
	for _, l := range snap.Licenses {
		licenses = append(licenses, l)
	}

	return map[string]interface{}{
		"vulns": vulns,
		"scorecard": map[string]interface{}{
			"repo":   repo,
			"scores": scores,
		},
		"projects": projects,
		"licenses": licenses,
		"pkg": map[string]interface{}{
			"name":      snap.Component.Name,
			"version":   snap.Component.Version,
			"ecosystem": snap.Component.Ecosystem,
			"direct":    snap.Component.Direct,
		},
	}
}

func vulnMap(v facts.Vulnerability) map[string]interface{} {
	return map[string]interface{}{
		"id":       v.ID,
		"severity": v.Severity.String(),
		"summary":  v.Summary,
		"fixed":    v.Fixed(),
	}
}
