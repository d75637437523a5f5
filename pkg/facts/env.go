package facts

import (
	"github.com/depgate/depgate/pkg/expr"
	"github.com/depgate/depgate/pkg/finding"
)

// Env binds the snapshot into an expression environment. The names and
// shapes here are the contract rule authors write against:
//
//	vulns.critical / high / medium / low / info   lists of vuln maps
//	vulns.all                                     all tiers, critical first
//	scorecard.repo, scorecard.scores              scorecard results
//	projects                                      list of project maps
//	licenses                                      list of SPDX strings
//	pkg.name / version / ecosystem / direct       component identity
//
// Each call builds a fresh environment, so evaluations cannot observe one
// another through shared macro scopes.
func (s *Snapshot) Env() *expr.Env {
	env := expr.NewEnv()
	env.Set("vulns", s.vulnsValue())
	env.Set("scorecard", s.scorecardValue())
	env.Set("projects", s.projectsValue())
	env.Set("licenses", stringListValue(s.Licenses))
	env.Set("pkg", expr.MapVal(map[string]expr.Value{
		"name":      expr.StringVal(s.Component.Name),
		"version":   expr.StringVal(s.Component.Version),
		"ecosystem": expr.StringVal(s.Component.Ecosystem),
		"direct":    expr.BoolVal(s.Component.Direct),
	}))
	return env
}

func (s *Snapshot) vulnsValue() expr.Value {
	buckets := s.BySeverity()
	m := make(map[string]expr.Value, 6)
	var all []expr.Value
	for _, sev := range finding.Ordered() {
		tier := make([]expr.Value, 0, len(buckets[sev]))
		for _, v := range buckets[sev] {
			tier = append(tier, vulnValue(v))
		}
		m[sev.String()] = expr.ListVal(tier...)
		all = append(all, tier...)
	}
	m["all"] = expr.ListVal(all...)
	return expr.MapVal(m)
}

func vulnValue(v Vulnerability) expr.Value {
	return expr.MapVal(map[string]expr.Value{
		"id":       expr.StringVal(v.ID),
		"severity": expr.StringVal(v.Severity.String()),
		"summary":  expr.StringVal(v.Summary),
		"fixed":    expr.BoolVal(v.Fixed()),
	})
}

// scorecardValue always binds repo and scores, so expressions read missing
// scorecard data as an empty score map instead of an undefined name.
func (s *Snapshot) scorecardValue() expr.Value {
	repo := ""
	scores := map[string]expr.Value{}
	if s.Scorecard != nil {
		repo = s.Scorecard.Repo
		for check, score := range s.Scorecard.Scores {
			scores[check] = expr.NumberVal(score)
		}
	}
	return expr.MapVal(map[string]expr.Value{
		"repo":   expr.StringVal(repo),
		"scores": expr.MapVal(scores),
	})
}

func (s *Snapshot) projectsValue() expr.Value {
	projects := make([]expr.Value, 0, len(s.Projects))
	for _, p := range s.Projects {
		projects = append(projects, expr.MapVal(map[string]expr.Value{
			"name":   expr.StringVal(p.Name),
			"type":   expr.StringVal(p.Type),
			"stars":  expr.NumberVal(float64(p.Stars)),
			"forks":  expr.NumberVal(float64(p.Forks)),
			"issues": expr.NumberVal(float64(p.Issues)),
		}))
	}
	return expr.ListVal(projects...)
}

func stringListValue(items []string) expr.Value {
	vals := make([]expr.Value, len(items))
	for i, s := range items {
		vals[i] = expr.StringVal(s)
	}
	return expr.ListVal(vals...)
}
