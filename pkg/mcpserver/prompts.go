package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerPrompts adds the guided workflow prompts to the MCP server.
func (s *Server) registerPrompts() {
	s.addGateReviewPrompt()
	s.addAuthorRulePrompt()
}

// ═══════════════════════════════════════════════════════════════════════════
// gate_review — evaluate a component and report a gate decision
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addGateReviewPrompt() {
	s.mcp.AddPrompt(
		&mcp.Prompt{
			Name:        "gate_review",
			Description: "Gate a dependency against a guardrail suite and produce a structured release decision.",
			Arguments: []*mcp.PromptArgument{
				{Name: "suite", Description: "Suite to gate against: a bare name, a path, or inline YAML", Required: true},
				{Name: "facts", Description: "Component facts: inline snapshot JSON or a path to a facts file/directory", Required: true},
				{Name: "focus", Description: "Optional check type to weigh first (e.g. 'vuln' or 'license')", Required: false},
			},
		},
		func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			suite := req.Params.Arguments["suite"]
			if suite == "" {
				return nil, fmt.Errorf("'suite' argument is required")
			}
			factsArg := req.Params.Arguments["facts"]
			if factsArg == "" {
				return nil, fmt.Errorf("'facts' argument is required")
			}
			focus := req.Params.Arguments["focus"]
			focusLine := ""
			if focus != "" {
				focusLine = fmt.Sprintf("\nWeigh %s findings first when ordering the report.\n", focus)
			}

			return &mcp.GetPromptResult{
				Description: fmt.Sprintf("Gate review against suite %s", suite),
				Messages: []*mcp.PromptMessage{
					{
						Role: "user",
						Content: &mcp.TextContent{
							Text: fmt.Sprintf(`Gate the given component(s) against the %q guardrail suite.
%s
## Step 1: Lint the suite
Call validate_suite first. If rules are broken, note them in the report: skipped rules are coverage gaps, and the gate decision must say so.

## Step 2: Evaluate
Call evaluate_component with the suite and these facts: %s
Pass the suite the same way it was given to you (bare name via "suite", a path via "suite_path", inline YAML via "suite_yaml"); pass facts via "facts" when inline JSON or "facts_path" when it is a path.

## Step 3: Decide
Produce a decision in this shape:
1. DECISION: PASS / PASS WITH WARNINGS / BLOCK
   - BLOCK when any critical or high violation triggered
   - PASS WITH WARNINGS when only medium or lower triggered, or when rules were broken/skipped
2. Violations by severity, each with the rule name, its summary, and the component it hit
3. Evaluation errors, with what fact or field was missing
4. Risk grade and the recommendation from the response
5. Remediation: for vuln violations name the fixed version when the facts carry one

Stay factual: report only what the tool responses contain.`, suite, focusLine, factsArg),
						},
					},
				},
			}, nil
		},
	)
}

// ═══════════════════════════════════════════════════════════════════════════
// author_rule — draft and verify a new guardrail rule
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addAuthorRulePrompt() {
	s.mcp.AddPrompt(
		&mcp.Prompt{
			Name:        "author_rule",
			Description: "Draft a new guardrail rule from a plain-language goal, validate it, and prove it triggers.",
			Arguments: []*mcp.PromptArgument{
				{Name: "goal", Description: "What the rule should catch, in plain language (e.g. 'block direct deps with unfixed critical vulns')", Required: true},
				{Name: "check_type", Description: "Check type for the rule: vuln, license, maintenance, popularity, scorecard, provenance, other", Required: false},
			},
		},
		func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			goal := req.Params.Arguments["goal"]
			if goal == "" {
				return nil, fmt.Errorf("'goal' argument is required")
			}
			checkType := req.Params.Arguments["check_type"]
			if checkType == "" {
				checkType = "choose the closest fit from: vuln, license, maintenance, popularity, scorecard, provenance, other"
			}

			return &mcp.GetPromptResult{
				Description: "Author a guardrail rule: " + goal,
				Messages: []*mcp.PromptMessage{
					{
						Role: "user",
						Content: &mcp.TextContent{
							Text: fmt.Sprintf(`Author a guardrail rule for this goal: %s

## Step 1: Learn the language
Read depgate://expression-language for the bound fields and operators, and depgate://guide for the rule YAML shape and worked examples.

## Step 2: Draft
Write the rule as a one-filter suite document. Check type: %s. Remember the convention: the expression is the VIOLATION condition, true means blocked.

## Step 3: Validate
Call validate_suite with the draft as suite_yaml. Fix compile errors until it reports valid.

## Step 4: Prove it
Construct two small fact snapshots: one that must trigger the rule and one that must not. Call evaluate_component with each and confirm both behave as intended. Guard optional facts: wrap reads of fields that may be absent behind an exists() or a size() check so the rule errors only when it should.

## Step 5: Deliver
Present the final rule YAML, the two test snapshots, and one sentence on when the rule fires.`, goal, checkType),
						},
					},
				},
			}, nil
		},
	)
}
