package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/factsource"
	"github.com/depgate/depgate/pkg/finding"
	"github.com/depgate/depgate/pkg/policy"
	"github.com/depgate/depgate/pkg/scoring"
	"github.com/depgate/depgate/pkg/scriptrule"
)

// registerTools adds all guardrail tools to the MCP server.
func (s *Server) registerTools() {
	s.addEvaluateComponentTool()
	s.addValidateSuiteTool()
	s.addListRulesTool()
}

// suiteArgs is the shared way tools receive a suite: inline YAML, an
// explicit path, or a bare name resolved under the suite directory.
type suiteArgs struct {
	Suite     string `json:"suite"`
	SuitePath string `json:"suite_path"`
	SuiteYAML string `json:"suite_yaml"`
}

// resolveSuite loads the suite a tool call names. Precedence: inline
// YAML, then explicit path, then bare name under SuiteDir.
func (s *Server) resolveSuite(args suiteArgs) (*policy.Suite, error) {
	switch {
	case args.SuiteYAML != "":
		return policy.Parse([]byte(args.SuiteYAML))
	case args.SuitePath != "":
		return policy.Load(args.SuitePath)
	case args.Suite != "":
		for _, name := range []string{args.Suite, args.Suite + ".yaml", args.Suite + ".yml"} {
			suite, err := policy.Load(filepath.Join(s.config.SuiteDir, name))
			if err == nil {
				return suite, nil
			}
			if !errors.Is(err, policy.ErrSuiteNotFound) {
				return nil, err
			}
		}
		return nil, fmt.Errorf("%w: %q under %s", policy.ErrSuiteNotFound, args.Suite, s.config.SuiteDir)
	default:
		return nil, fmt.Errorf("one of 'suite', 'suite_path', or 'suite_yaml' is required")
	}
}

// suiteInputSchema describes the shared suite selection properties.
func suiteInputSchema(extra map[string]any) map[string]any {
	props := map[string]any{
		"suite": map[string]any{
			"type":        "string",
			"description": "Bare suite name resolved under the server's suite directory (e.g. 'baseline' finds baseline.yaml).",
		},
		"suite_path": map[string]any{
			"type":        "string",
			"description": "Filesystem path to a suite YAML document.",
		},
		"suite_yaml": map[string]any{
			"type":        "string",
			"description": "Inline suite YAML. Takes precedence over suite and suite_path.",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

// ruleProblem names one rule that could not be used.
type ruleProblem struct {
	Rule  string `json:"rule"`
	Error string `json:"error"`
}

func brokenRules(cs *policy.CompiledSuite) []ruleProblem {
	var out []ruleProblem
	for _, r := range cs.Rules {
		if r.Broken() {
			out = append(out, ruleProblem{Rule: r.Name, Error: r.Err.Error()})
		}
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════
// evaluate_component — run a suite against component fact snapshots
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addEvaluateComponentTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "evaluate_component",
			Title: "Evaluate Component Against Guardrails",
			Description: `Run every rule of a guardrail suite against component fact snapshots and report violations, evaluation errors, and a risk score.

USE THIS TOOL WHEN:
• The user asks "does this dependency pass our policy?"
• You drafted a rule and want to confirm it triggers on known-bad facts
• Gating a component before adding or upgrading it

DO NOT USE THIS TOOL WHEN:
• You only want to know whether a suite document is well-formed — use 'validate_suite'
• You only want to see what rules exist — use 'list_rules'

This is a READ-ONLY local operation. Zero network requests.

The suite is given inline ('suite_yaml'), by path ('suite_path'), or by bare name ('suite') resolved under the server's suite directory. Facts are given inline ('facts': one snapshot object or an array) or by path ('facts_path': a JSON file or a directory of them).

EXAMPLE INPUTS:
• {"suite": "baseline", "facts": {"component": {"name": "lodash", "version": "4.17.15", "ecosystem": "npm", "direct": true}, "vulnerabilities": [{"id": "CVE-2020-8203", "severity": "high"}]}}
• {"suite_path": "./suites/release.yaml", "facts_path": "./facts/"}

Returns: per-component evaluations with triggered/error/skipped status, run totals, a risk score with grade, and the rules that were broken at compile time.`,
			InputSchema: suiteInputSchema(map[string]any{
				"facts": map[string]any{
					"description": "Inline fact snapshot object, or an array of them. Shape: {component, vulnerabilities, scorecard, projects, licenses}.",
				},
				"facts_path": map[string]any{
					"type":        "string",
					"description": "Path to a snapshot JSON file or a directory of .json files.",
				},
				"full": map[string]any{
					"type":        "boolean",
					"description": "Include every evaluation per component, not just violations and errors.",
				},
			}),
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "Evaluate Component Against Guardrails",
			},
		},
		s.handleEvaluateComponent,
	)
}

type evaluateArgs struct {
	suiteArgs
	Facts     json.RawMessage `json:"facts"`
	FactsPath string          `json:"facts_path"`
	Full      bool            `json:"full"`
}

type componentReport struct {
	Component   string              `json:"component"`
	Fingerprint string              `json:"fingerprint"`
	RiskScore   float64             `json:"risk_score"`
	Violations  []policy.Evaluation `json:"violations,omitempty"`
	Errors      []policy.Evaluation `json:"errors,omitempty"`
	Evaluations []policy.Evaluation `json:"evaluations,omitempty"`
}

type riskReport struct {
	Score          float64 `json:"score"`
	Grade          string  `json:"grade"`
	CleanRatePct   float64 `json:"clean_rate_pct"`
	Recommendation string  `json:"recommendation"`
}

type evaluateResponse struct {
	Summary          string            `json:"summary"`
	Suite            string            `json:"suite,omitempty"`
	SuiteFingerprint string            `json:"suite_fingerprint"`
	Components       []componentReport `json:"components"`
	Totals           policy.Totals     `json:"totals"`
	Risk             riskReport        `json:"risk"`
	BrokenRules      []ruleProblem     `json:"broken_rules,omitempty"`
	ScriptErrors     []string          `json:"script_errors,omitempty"`
	NextSteps        []string          `json:"next_steps,omitempty"`
}

func (s *Server) handleEvaluateComponent(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args evaluateArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	suite, err := s.resolveSuite(args.suiteArgs)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	cs := suite.Compile()

	var scriptErrs []string
	if s.config.ScriptDir != "" {
		rules, errs := scriptrule.LoadDir(s.config.ScriptDir)
		for _, e := range errs {
			scriptErrs = append(scriptErrs, e.Error())
		}
		if err := scriptrule.AddTo(cs, rules...); err != nil {
			return errorResult(fmt.Sprintf("scripted rules conflict with the suite: %v", err)), nil
		}
	}

	var snaps []*facts.Snapshot
	switch {
	case len(args.Facts) > 0:
		snaps, err = factsource.Decode(args.Facts)
	case args.FactsPath != "":
		snaps, err = factsource.Load(args.FactsPath)
	default:
		return errorResult("one of 'facts' or 'facts_path' is required"), nil
	}
	if err != nil {
		return errorResult(fmt.Sprintf("loading facts: %v", err)), nil
	}
	if len(snaps) == 0 {
		return errorResult("the facts document contains no snapshots"), nil
	}

	engine := policy.NewEngine(nil)
	results, err := engine.EvaluateBatch(ctx, cs, snaps)
	if err != nil {
		return errorResult(fmt.Sprintf("evaluation cancelled: %v", err)), nil
	}

	totals := policy.Summarize(results)
	scoresByCheck := make(map[string][]float64)
	reports := make([]componentReport, 0, len(results))
	for i, res := range results {
		report := componentReport{
			Component:   res.Component.Ref(),
			Fingerprint: fmt.Sprintf("%016x", res.Fingerprint),
			Violations:  res.Violations(),
			Errors:      res.Errors(),
		}
		if args.Full {
			report.Evaluations = res.Evaluations
		}
		for _, ev := range res.Evaluations {
			in := evalScoringInput(ev, snaps[i])
			score := scoring.Calculate(in)
			ct := ev.CheckType.String()
			scoresByCheck[ct] = append(scoresByCheck[ct], score.RiskScore)
			if ev.Triggered && score.RiskScore > report.RiskScore {
				report.RiskScore = score.RiskScore
			}
		}
		reports = append(reports, report)
	}
	risk := scoring.Summarize(scoresByCheck, totals.Evaluations, totals.Violations)

	resp := evaluateResponse{
		Suite:            suite.Name,
		SuiteFingerprint: fmt.Sprintf("%016x", suite.Fingerprint()),
		Components:       reports,
		Totals:           totals,
		Risk: riskReport{
			Score:          risk.Score,
			Grade:          risk.Grade,
			CleanRatePct:   risk.CleanRatePct,
			Recommendation: risk.Recommendation,
		},
		BrokenRules:  brokenRules(cs),
		ScriptErrors: scriptErrs,
	}
	resp.Summary = evaluateSummary(totals, len(snaps), risk.Grade)
	resp.NextSteps = evaluateNextSteps(totals, resp.BrokenRules)

	return jsonResult(resp)
}

// evalScoringInput builds the risk-scoring input for one evaluation.
func evalScoringInput(ev policy.Evaluation, snap *facts.Snapshot) scoring.Input {
	in := scoring.Input{
		Severity:  ev.Severity.String(),
		Outcome:   outcomeOf(ev),
		CheckType: ev.CheckType.String(),
	}
	if snap != nil {
		in.VulnCount = len(snap.Vulnerabilities)
		in.HasScorecard = snap.Scorecard != nil
		in.ScorecardScore = snap.Scorecard.Aggregate()
		in.Direct = snap.Component.Direct
	}
	return in
}

// outcomeOf maps an evaluation to its outcome word. Skipped wins over
// the error text it carries.
func outcomeOf(ev policy.Evaluation) string {
	switch {
	case ev.Skipped:
		return "skipped"
	case ev.Err != "":
		return "error"
	case ev.Triggered:
		return "triggered"
	default:
		return "pass"
	}
}

func evaluateSummary(t policy.Totals, components int, grade string) string {
	noun := "components"
	if components == 1 {
		noun = "component"
	}
	if t.Violations == 0 && t.Errors == 0 && t.Skipped == 0 {
		return fmt.Sprintf("Clean: %d %s passed all %d evaluations (grade %s).", components, noun, t.Evaluations, grade)
	}
	parts := []string{fmt.Sprintf("%d violations across %d %s", t.Violations, components, noun)}
	if t.Errors > 0 {
		parts = append(parts, fmt.Sprintf("%d evaluation errors", t.Errors))
	}
	if t.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", t.Skipped))
	}
	return fmt.Sprintf("%s; risk grade %s.", strings.Join(parts, ", "), grade)
}

func evaluateNextSteps(t policy.Totals, broken []ruleProblem) []string {
	var steps []string
	if t.Violations > 0 {
		steps = append(steps, "Review the violations by severity; critical and high block a release gate.")
	}
	if t.Errors > 0 {
		steps = append(steps, "Fix the evaluation errors: an undefined field usually means the facts are missing a section the rule expects.")
	}
	if len(broken) > 0 {
		steps = append(steps, "Repair the broken rules with validate_suite; they were skipped, so coverage has a gap.")
	}
	if len(steps) == 0 {
		steps = append(steps, "Nothing to remediate. Re-run after the next dependency change.")
	}
	return steps
}

// ═══════════════════════════════════════════════════════════════════════════
// validate_suite — lint a suite document
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addValidateSuiteTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "validate_suite",
			Title: "Validate Guardrail Suite",
			Description: `Lint a guardrail suite document: document-level validation (YAML shape, duplicate rule names, missing fields) plus per-rule expression compilation.

USE THIS TOOL WHEN:
• The user edited or authored suite YAML and wants it checked
• evaluate_component reported broken rules and you need the details
• Before committing a suite to version control

DO NOT USE THIS TOOL WHEN:
• You want to evaluate facts — use 'evaluate_component'

This is a READ-ONLY local operation. An invalid document is a normal result ("valid": false), not a tool error.

EXAMPLE INPUTS:
• {"suite_yaml": "filters:\n  - name: no-critical\n    check_type: vuln\n    summary: \"Critical advisories\"\n    value: \"vulns.critical.exists(p, true)\""}
• {"suite_path": "./suites/release.yaml"}

Returns: valid flag, rule count, per-rule compile problems, and the suite fingerprint used for cache keys and report headers.`,
			InputSchema: suiteInputSchema(nil),
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "Validate Guardrail Suite",
			},
		},
		s.handleValidateSuite,
	)
}

type validateResponse struct {
	Valid       bool          `json:"valid"`
	Suite       string        `json:"suite,omitempty"`
	Description string        `json:"description,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	RuleCount   int           `json:"rule_count"`
	BrokenRules []ruleProblem `json:"broken_rules,omitempty"`
	Problems    []string      `json:"problems,omitempty"`
	Summary     string        `json:"summary"`
}

func (s *Server) handleValidateSuite(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args suiteArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	suite, err := s.resolveSuite(args)
	if err != nil {
		// A malformed document is the lint finding, not a failure of
		// the lint itself. Only operational errors are tool errors.
		if errors.Is(err, policy.ErrInvalidSuite) {
			resp := validateResponse{
				Problems: []string{err.Error()},
				Summary:  "Document rejected: " + err.Error(),
			}
			return jsonResult(resp)
		}
		return errorResult(err.Error()), nil
	}

	cs := suite.Compile()
	broken := brokenRules(cs)
	resp := validateResponse{
		Valid:       len(broken) == 0,
		Suite:       suite.Name,
		Description: suite.Description,
		Fingerprint: fmt.Sprintf("%016x", suite.Fingerprint()),
		RuleCount:   len(suite.Filters),
		BrokenRules: broken,
	}
	if resp.Valid {
		resp.Summary = fmt.Sprintf("Suite is valid: %d rules, all compile.", resp.RuleCount)
	} else {
		resp.Summary = fmt.Sprintf("Document parses but %d of %d rules do not compile; they will be skipped and reported at evaluation time.", len(broken), resp.RuleCount)
	}
	return jsonResult(resp)
}

// ═══════════════════════════════════════════════════════════════════════════
// list_rules — inspect rule metadata
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addListRulesTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "list_rules",
			Title: "List Suite Rules",
			Description: `List the rules of a guardrail suite: name, check type, severity, summary, expression, and references. No evaluation happens.

USE THIS TOOL WHEN:
• The user asks "what does this suite check?"
• Planning which rules a new component is likely to trip
• Auditing severity assignments across a suite

DO NOT USE THIS TOOL WHEN:
• You want pass/fail results — use 'evaluate_component'

This is a READ-ONLY local operation.

EXAMPLE INPUTS:
• {"suite": "baseline"}
• {"suite_path": "./suites/release.yaml", "check_type": "vuln"}

CHECK TYPES: vuln, license, maintenance, popularity, scorecard, provenance, other

Returns: rule metadata in document order, optionally filtered by check type. Rules without an explicit severity show their check type's default.`,
			InputSchema: suiteInputSchema(map[string]any{
				"check_type": map[string]any{
					"type":        "string",
					"description": "Only list rules of this check type.",
					"enum":        checkTypeNames(),
				},
			}),
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "List Suite Rules",
			},
		},
		s.handleListRules,
	)
}

type listRulesArgs struct {
	suiteArgs
	CheckType string `json:"check_type"`
}

type ruleInfo struct {
	Name       string   `json:"name"`
	CheckType  string   `json:"check_type"`
	Severity   string   `json:"severity"`
	Summary    string   `json:"summary,omitempty"`
	Expression string   `json:"expression,omitempty"`
	References []string `json:"references,omitempty"`
}

type listRulesResponse struct {
	Suite     string     `json:"suite,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	RuleCount int        `json:"rule_count"`
	Rules     []ruleInfo `json:"rules"`
}

func (s *Server) handleListRules(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args listRulesArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	suite, err := s.resolveSuite(args.suiteArgs)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	resp := listRulesResponse{
		Suite: suite.Name,
		Tags:  suite.Tags,
		Rules: make([]ruleInfo, 0, len(suite.Filters)),
	}
	for _, r := range suite.Filters {
		if args.CheckType != "" && r.CheckType.String() != args.CheckType {
			continue
		}
		resp.Rules = append(resp.Rules, ruleInfo{
			Name:       r.Name,
			CheckType:  r.CheckType.String(),
			Severity:   r.Severity.String(),
			Summary:    r.Summary,
			Expression: r.Value,
			References: r.References,
		})
	}
	resp.RuleCount = len(resp.Rules)
	return jsonResult(resp)
}

// checkTypeNames returns the check type vocabulary for tool schemas.
func checkTypeNames() []string {
	types := finding.CheckTypes()
	out := make([]string, len(types))
	for i, ct := range types {
		out[i] = ct.String()
	}
	return out
}
