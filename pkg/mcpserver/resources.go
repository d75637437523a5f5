package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/duration"
	"github.com/depgate/depgate/pkg/finding"
)

// registerResources adds all domain-knowledge resources to the MCP server.
func (s *Server) registerResources() {
	s.addVersionResource()
	s.addGuideResource()
	s.addExpressionLanguageResource()
	s.addSeveritiesResource()
	s.addConfigResource()
}

// jsonResource is the common shape of the static JSON resources.
func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, _ := json.MarshalIndent(v, "", "  ")
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: "application/json", Text: string(data)},
		},
	}, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// depgate://version — Server capabilities and version
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addVersionResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         "depgate://version",
			Name:        "DepGate Version",
			Description: "Server version, capabilities, and tool inventory.",
			MIMEType:    "application/json",
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return jsonResource("depgate://version", map[string]any{
				"name":    defaults.ToolNameDisplay,
				"version": defaults.Version,
				"capabilities": map[string]any{
					"tools":     3,
					"resources": 5,
					"prompts":   2,
				},
				"tools":       []string{"evaluate_component", "validate_suite", "list_rules"},
				"check_types": checkTypeNames(),
				"severities":  severityNames(),
				"suite_dir":   s.config.SuiteDir,
				"script_dir":  s.config.ScriptDir,
			})
		},
	)
}

// ═══════════════════════════════════════════════════════════════════════════
// depgate://guide — Suite authoring guide
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addGuideResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         "depgate://guide",
			Name:        "Suite Authoring Guide",
			Description: "How to write guardrail suites: document structure, rule fields, fact snapshot shape, worked examples.",
			MIMEType:    "text/markdown",
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: "depgate://guide", MIMEType: "text/markdown", Text: authoringGuide},
				},
			}, nil
		},
	)
}

// ═══════════════════════════════════════════════════════════════════════════
// depgate://expression-language — Bindings and operators
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addExpressionLanguageResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         "depgate://expression-language",
			Name:        "Expression Language Reference",
			Description: "Fields a rule expression can read and the operators, predicates, and comprehensions it can use.",
			MIMEType:    "text/markdown",
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: "depgate://expression-language", MIMEType: "text/markdown", Text: expressionReference},
				},
			}, nil
		},
	)
}

// ═══════════════════════════════════════════════════════════════════════════
// depgate://severities — Severity model
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addSeveritiesResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         "depgate://severities",
			Name:        "Severity Model",
			Description: "Severity tiers in order, the CVSS score bands they map from, and each check type's default severity.",
			MIMEType:    "application/json",
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			typeDefaults := make(map[string]string, len(finding.CheckTypes()))
			for _, ct := range finding.CheckTypes() {
				typeDefaults[ct.String()] = ct.DefaultSeverity().String()
			}
			return jsonResource("depgate://severities", map[string]any{
				"severities_desc": severityNames(),
				"cvss_bands": map[string]string{
					"critical": "9.0-10.0",
					"high":     "7.0-8.9",
					"medium":   "4.0-6.9",
					"low":      "0.1-3.9",
					"info":     "0.0 or unscored",
				},
				"check_type_defaults": typeDefaults,
			})
		},
	)
}

// ═══════════════════════════════════════════════════════════════════════════
// depgate://config — Default limits
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addConfigResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         "depgate://config",
			Name:        "Default Configuration",
			Description: "Default limits and timeouts: component caps, document size bounds, provider retry and cache settings.",
			MIMEType:    "application/json",
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return jsonResource("depgate://config", map[string]any{
				"max_components":     defaults.MaxComponents,
				"max_sbom_bytes":     defaults.MaxSBOMSize,
				"max_suite_bytes":    defaults.MaxSuiteSize,
				"concurrency":        defaults.ConcurrencyLow,
				"provider_rate_rps":  defaults.RateLimitMedium,
				"provider_retries":   defaults.RetryMedium,
				"fact_fetch_timeout": duration.FactFetch.String(),
				"facts_cache_ttl":    duration.CacheFacts.String(),
			})
		},
	)
}

func severityNames() []string {
	sevs := finding.Ordered()
	out := make([]string, len(sevs))
	for i, sev := range sevs {
		out[i] = sev.String()
	}
	return out
}

const authoringGuide = `# DepGate Suite Authoring Guide

A guardrail suite is one YAML document. Each entry under "filters" is a
rule; a rule whose expression evaluates to true is a VIOLATION.

## Document structure

` + "```yaml" + `
name: "oss-baseline"
description: "Baseline guardrails for third-party components"
tags: [baseline, ci]
filters:
  - name: critical-vulns
    check_type: vuln
    summary: "Component has at least one critical vulnerability"
    value: "vulns.critical.exists(p, true)"
  - name: unmaintained
    check_type: scorecard
    severity: high
    summary: "Scorecard Maintained score below 3"
    value: 'scorecard.scores["Maintained"] < 3'
` + "```" + `

## Rule fields

| Field | Required | Meaning |
|---|---|---|
| name | yes | Unique within the document. A duplicate fails the whole load. |
| check_type | yes | One of: vuln, license, maintenance, popularity, scorecard, provenance, other |
| summary | yes | One line shown in reports next to the rule name |
| value | yes | The boolean expression (see depgate://expression-language) |
| severity | no | critical/high/medium/low/info; defaults per check type |
| references | no | Advisory or policy URLs for reports |

## Validation model

- Document-level problems (bad YAML, missing fields, duplicate names)
  reject the whole suite. No partial load.
- Per-rule expression problems do NOT reject the suite: the broken rule
  is kept, marked, skipped at evaluation, and reported. Run
  validate_suite to see them.

## Fact snapshot shape

` + "```json" + `
{
  "component": {"name": "lodash", "version": "4.17.15", "ecosystem": "npm", "direct": true},
  "vulnerabilities": [
    {"id": "CVE-2020-8203", "severity": "high", "summary": "...", "fixed_version": "4.17.19"}
  ],
  "scorecard": {"repo": "github.com/lodash/lodash", "scores": {"Maintained": 3.0}},
  "projects": [{"name": "lodash", "type": "GITHUB", "stars": 55000, "forks": 6900, "issues": 120}],
  "licenses": ["MIT"]
}
` + "```" + `

Only component.name and component.version are required. Absent sections
bind as empty lists or empty maps, so rules can always reference them;
reading a field that does not exist at all is an evaluation error.

## Worked examples

Block direct dependencies with unfixed high-or-worse advisories:

` + "```yaml" + `
- name: unfixed-high-direct
  check_type: vuln
  summary: "Direct dep has an unfixed high/critical advisory"
  value: "pkg.direct && (vulns.critical.exists(v, !v.fixed) || vulns.high.exists(v, !v.fixed))"
` + "```" + `

Flag copyleft licenses:

` + "```yaml" + `
- name: copyleft
  check_type: license
  summary: "Copyleft license detected"
  value: 'licenses.exists(l, l.startsWith("GPL") || l.startsWith("AGPL"))'
` + "```" + `

Flag abandoned projects with few stars:

` + "```yaml" + `
- name: abandoned-unpopular
  check_type: maintenance
  summary: "Unmaintained project nobody watches"
  value: 'scorecard.scores["Maintained"] < 3 && projects.all(p, p.stars < 50)'
` + "```" + ``

const expressionReference = `# DepGate Expression Language

Rule expressions are side-effect-free and must evaluate to a boolean.
Values are typed (bool, number, string, list, map, null); an operator
applied to the wrong kind is an evaluation error, never a silent false.

## Bound fields

| Binding | Kind | Contents |
|---|---|---|
| pkg | map | name, version, ecosystem (strings), direct (bool) |
| vulns.critical / .high / .medium / .low / .info | list | advisories in that tier |
| vulns.all | list | every advisory, most severe tiers first |
| scorecard | map | repo (string), scores (map of check name to number) |
| projects | list | source repositories backing the component |
| licenses | list | SPDX identifiers or expressions (strings) |

Each advisory in a vulns list: {id, severity, summary (strings), fixed (bool)}.
Each entry in projects: {name, type (strings), stars, forks, issues (numbers)}.

Absent facts bind empty: no advisories means every vulns list is empty,
no scorecard means scorecard.scores is an empty map. Indexing a map key
that is absent, or reading an unbound name, is an evaluation error.

## Operators

- Boolean: && || ! — with short-circuit: the right side of && is not
  evaluated when the left is false, so
  "pkg.direct && vulns.critical.exists(v, true)" is safe even when the
  second operand would error on its own.
- Comparison: == != < <= > >= — numbers compare with numbers, strings
  with strings; mixing kinds is an evaluation error
- Arithmetic: + - * / %
- Member access: scorecard.repo, map indexing: scorecard.scores["Maintained"]
- List indexing: projects[0].stars
- Literals: numbers, "strings", true, false, null, [lists], {maps}

## String predicates

- s.startsWith("pre"), s.endsWith("post"), s.contains("mid")
- s.matches("^GPL-[23]") — RE2 regular expression

## List comprehensions

- list.exists(x, pred) — true if any element satisfies pred
- list.all(x, pred) — true if every element does (true for empty lists)
- list.filter(x, pred) — the matching elements
- list.map(x, expr) — transformed elements
- list.size(), s.size() — element / character count

## Recipes

- Any unfixed critical: vulns.critical.exists(v, !v.fixed)
- More than 3 highs: vulns.high.size() > 3
- Low-signal project: projects.all(p, p.stars < 10)
- Missing scorecard data treated as violation: scorecard.scores.size() == 0
- Scoped npm package: pkg.name.startsWith("@internal/")`
