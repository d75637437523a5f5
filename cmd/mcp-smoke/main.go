// Command mcp-smoke exercises the depgate MCP server end to end: it boots
// the server over HTTP, connects a real MCP client, and walks the tool,
// resource, and prompt surface the way an AI agent would.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/depgate/depgate/pkg/duration"
)

// scenarioResult tracks the outcome of a single scenario.
type scenarioResult struct {
	name   string
	passed bool
	err    error
}

// scenario is a named test function that runs against a live MCP session.
type scenario struct {
	name string
	fn   func(ctx context.Context, s *mcp.ClientSession) error
}

func main() {
	var (
		port    = flag.Int("port", 18080, "MCP HTTP port")
		timeout = flag.Duration("timeout", 90*time.Second, "Overall timeout")
		runOnly = flag.String("scenario", "", "Run only this named scenario")
	)
	flag.Parse()
	log.SetFlags(0)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	suiteDir, err := writeSmokeSuites()
	if err != nil {
		log.Fatalf("FATAL suite_fixtures: %v", err)
	}
	defer os.RemoveAll(suiteDir)

	serverCmd, err := startServer(ctx, *port, suiteDir)
	if err != nil {
		log.Fatalf("FATAL start_server: %v", err)
	}
	defer stopServer(serverCmd)

	if err := waitForHealth(ctx, *port); err != nil {
		log.Fatalf("FATAL health_check: %v", err)
	}
	fmt.Println("server: healthy")

	client := mcp.NewClient(&mcp.Implementation{Name: "mcp-smoke", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint: fmt.Sprintf("http://127.0.0.1:%d/mcp", *port),
	}, nil)
	if err != nil {
		log.Fatalf("FATAL connect: %v", err)
	}
	defer session.Close()

	var results []scenarioResult
	for _, sc := range allScenarios() {
		if *runOnly != "" && sc.name != *runOnly {
			continue
		}
		err := sc.fn(ctx, session)
		passed := err == nil
		results = append(results, scenarioResult{name: sc.name, passed: passed, err: err})
		if passed {
			fmt.Printf("PASS  %s\n", sc.name)
		} else {
			fmt.Printf("FAIL  %s: %v\n", sc.name, err)
		}
	}

	passed, failed := 0, 0
	for _, r := range results {
		if r.passed {
			passed++
		} else {
			failed++
		}
	}
	fmt.Printf("\n--- %d passed, %d failed ---\n", passed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// allScenarios returns every smoke scenario in execution order.
func allScenarios() []scenario {
	return []scenario{
		// Surface area verification.
		{"tool_discovery", scenarioToolDiscovery},
		{"resource_exploration", scenarioResourceExploration},
		{"prompt_catalog", scenarioPromptCatalog},

		// Individual tool validation (positive + negative for each).
		{"suite_validation", scenarioSuiteValidation},
		{"rule_listing", scenarioRuleListing},
		{"component_evaluation", scenarioComponentEvaluation},
		{"error_handling", scenarioErrorHandling},

		// Agent simulation: a multi-turn dependency review workflow.
		{"agent_dependency_reviewer", agentDependencyReviewer},
	}
}

// smokeSuite is a known-good suite used as the fixture for every scenario.
const smokeSuite = `name: smoke
description: Smoke-test guardrails
filters:
  - name: no-critical-vulns
    check_type: vuln
    summary: "Components must not carry critical advisories"
    value: "vulns.critical.exists(v, true)"
    severity: critical
  - name: unfixed-high-vulns
    check_type: vuln
    summary: "High advisories without a fixed release"
    value: "vulns.high.exists(v, !v.fixed)"
    severity: high
`

// badFacts is a snapshot that must trip no-critical-vulns.
const badFacts = `{
  "component": {"name": "lodash", "version": "4.17.15", "ecosystem": "npm", "direct": true},
  "vulnerabilities": [
    {"id": "CVE-2021-23337", "severity": "critical", "summary": "Command injection", "fixed": true}
  ]
}`

func writeSmokeSuites() (string, error) {
	dir, err := os.MkdirTemp("", "depgate-smoke-suites-*")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "smoke.yaml"), []byte(smokeSuite), 0o644); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}

// ---------------------------------------------------------------------------
// tool_discovery — verifies every tool exists with description and schema,
// plus negative: nonexistent tool calls must not silently succeed.
// ---------------------------------------------------------------------------

func scenarioToolDiscovery(ctx context.Context, s *mcp.ClientSession) error {
	tools, err := s.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return fmt.Errorf("ListTools: %w", err)
	}

	expected := []string{"evaluate_component", "validate_suite", "list_rules"}
	have := make(map[string]bool, len(tools.Tools))
	for _, t := range tools.Tools {
		have[t.Name] = true
	}
	var missing []string
	for _, name := range expected {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tools: %v (have %d)", missing, len(tools.Tools))
	}
	if len(tools.Tools) != len(expected) {
		return fmt.Errorf("tool count mismatch: want %d, got %d", len(expected), len(tools.Tools))
	}

	// Agents select tools by description and build arguments from the schema.
	for _, t := range tools.Tools {
		if t.Description == "" {
			return fmt.Errorf("tool %q has empty description", t.Name)
		}
		if t.InputSchema == nil {
			return fmt.Errorf("tool %q has nil input schema", t.Name)
		}
	}

	// NEGATIVE: a nonexistent tool must fail, either as a protocol error or
	// IsError=true.
	fakeResult, err := callToolRaw(ctx, s, "nonexistent_tool_that_does_not_exist", map[string]any{})
	if err == nil && !fakeResult.IsError {
		return fmt.Errorf("NEG nonexistent tool: expected error, got success")
	}
	return nil
}

// ---------------------------------------------------------------------------
// resource_exploration — every documented resource resolves with content.
// ---------------------------------------------------------------------------

func scenarioResourceExploration(ctx context.Context, s *mcp.ClientSession) error {
	resources, err := s.ListResources(ctx, &mcp.ListResourcesParams{})
	if err != nil {
		return fmt.Errorf("ListResources: %w", err)
	}

	expected := []string{
		"depgate://version",
		"depgate://guide",
		"depgate://expression-language",
		"depgate://severities",
		"depgate://config",
	}
	have := make(map[string]bool, len(resources.Resources))
	for _, r := range resources.Resources {
		have[r.URI] = true
	}
	for _, uri := range expected {
		if !have[uri] {
			return fmt.Errorf("missing resource %s", uri)
		}
	}

	for _, uri := range expected {
		res, err := s.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
		if err != nil {
			return fmt.Errorf("ReadResource %s: %w", uri, err)
		}
		if resourceText(res) == "" {
			return fmt.Errorf("resource %s is empty", uri)
		}
	}

	// The version resource must be JSON an agent can parse.
	res, err := s.ReadResource(ctx, &mcp.ReadResourceParams{URI: "depgate://version"})
	if err != nil {
		return fmt.Errorf("ReadResource version: %w", err)
	}
	data, err := resourceJSON(res)
	if err != nil {
		return fmt.Errorf("version resource: %w", err)
	}
	if data["version"] == nil {
		return fmt.Errorf("version resource missing version field")
	}
	return nil
}

// ---------------------------------------------------------------------------
// prompt_catalog — prompts resolve with required arguments enforced.
// ---------------------------------------------------------------------------

func scenarioPromptCatalog(ctx context.Context, s *mcp.ClientSession) error {
	prompts, err := s.ListPrompts(ctx, &mcp.ListPromptsParams{})
	if err != nil {
		return fmt.Errorf("ListPrompts: %w", err)
	}

	expected := map[string]bool{"gate_review": false, "author_rule": false}
	for _, p := range prompts.Prompts {
		if _, ok := expected[p.Name]; ok {
			expected[p.Name] = true
		}
	}
	for name, found := range expected {
		if !found {
			return fmt.Errorf("missing prompt %q", name)
		}
	}

	got, err := s.GetPrompt(ctx, &mcp.GetPromptParams{
		Name: "author_rule",
		Arguments: map[string]string{
			"goal": "block direct deps with unfixed critical vulns",
		},
	})
	if err != nil {
		return fmt.Errorf("GetPrompt author_rule: %w", err)
	}
	if len(got.Messages) == 0 {
		return fmt.Errorf("author_rule returned no messages")
	}

	// NEGATIVE: required arguments must be enforced.
	if _, err := s.GetPrompt(ctx, &mcp.GetPromptParams{Name: "gate_review"}); err == nil {
		return fmt.Errorf("NEG gate_review without args: expected error")
	}
	return nil
}

// ---------------------------------------------------------------------------
// suite_validation — valid and broken documents, inline and by name.
// ---------------------------------------------------------------------------

func scenarioSuiteValidation(ctx context.Context, s *mcp.ClientSession) error {
	// Bare name resolved under the server's suite directory.
	result, err := callToolRaw(ctx, s, "validate_suite", map[string]any{"suite": "smoke"})
	if err != nil {
		return fmt.Errorf("validate_suite by name: %w", err)
	}
	var resp struct {
		Valid     bool `json:"valid"`
		RuleCount int  `json:"rule_count"`
	}
	if err := decodeResult(result, &resp); err != nil {
		return err
	}
	if !resp.Valid || resp.RuleCount != 2 {
		return fmt.Errorf("smoke suite: valid=%v rules=%d, want valid with 2 rules", resp.Valid, resp.RuleCount)
	}

	// A rule with a broken expression is a finding, not a tool error.
	broken := "filters:\n  - name: bad\n    check_type: vuln\n    summary: x\n    value: \"vulns.critical.exists(\"\n"
	result, err = callToolRaw(ctx, s, "validate_suite", map[string]any{"suite_yaml": broken})
	if err != nil {
		return fmt.Errorf("validate_suite broken: %w", err)
	}
	if result.IsError {
		return fmt.Errorf("broken rule reported as tool error, want valid=false result")
	}
	if err := decodeResult(result, &resp); err != nil {
		return err
	}
	if resp.Valid {
		return fmt.Errorf("broken expression reported valid")
	}
	return nil
}

// ---------------------------------------------------------------------------
// rule_listing — metadata comes back in document order with defaults filled.
// ---------------------------------------------------------------------------

func scenarioRuleListing(ctx context.Context, s *mcp.ClientSession) error {
	result, err := callToolRaw(ctx, s, "list_rules", map[string]any{"suite": "smoke"})
	if err != nil {
		return fmt.Errorf("list_rules: %w", err)
	}
	var resp struct {
		Rules []struct {
			Name      string `json:"name"`
			CheckType string `json:"check_type"`
			Severity  string `json:"severity"`
		} `json:"rules"`
	}
	if err := decodeResult(result, &resp); err != nil {
		return err
	}
	if len(resp.Rules) != 2 {
		return fmt.Errorf("want 2 rules, got %d", len(resp.Rules))
	}
	if resp.Rules[0].Name != "no-critical-vulns" || resp.Rules[0].Severity != "critical" {
		return fmt.Errorf("unexpected first rule: %+v", resp.Rules[0])
	}
	return nil
}

// ---------------------------------------------------------------------------
// component_evaluation — a bad snapshot trips the critical rule.
// ---------------------------------------------------------------------------

func scenarioComponentEvaluation(ctx context.Context, s *mcp.ClientSession) error {
	var facts map[string]any
	if err := json.Unmarshal([]byte(badFacts), &facts); err != nil {
		return fmt.Errorf("fixture facts: %w", err)
	}

	result, err := callToolRaw(ctx, s, "evaluate_component", map[string]any{
		"suite": "smoke",
		"facts": facts,
	})
	if err != nil {
		return fmt.Errorf("evaluate_component: %w", err)
	}
	if result.IsError {
		return fmt.Errorf("evaluate_component errored: %s", extractText(result))
	}

	text := extractText(result)
	if !strings.Contains(text, "no-critical-vulns") {
		return fmt.Errorf("expected no-critical-vulns to trigger, got: %.200s", text)
	}
	// The fixed high advisory must not trip the unfixed-high rule.
	var resp struct {
		Totals struct {
			Violations int `json:"violations"`
		} `json:"totals"`
	}
	if err := decodeResult(result, &resp); err != nil {
		return err
	}
	if resp.Totals.Violations != 1 {
		return fmt.Errorf("want exactly 1 violation, got %d", resp.Totals.Violations)
	}
	return nil
}

// ---------------------------------------------------------------------------
// error_handling — malformed arguments surface as IsError results the
// agent can read, never as silent successes.
// ---------------------------------------------------------------------------

func scenarioErrorHandling(ctx context.Context, s *mcp.ClientSession) error {
	// Unknown bare suite name.
	result, err := callToolRaw(ctx, s, "list_rules", map[string]any{"suite": "does-not-exist"})
	if err == nil && !result.IsError {
		return fmt.Errorf("NEG unknown suite: expected error result")
	}

	// Evaluation without any facts.
	result, err = callToolRaw(ctx, s, "evaluate_component", map[string]any{"suite": "smoke"})
	if err == nil && !result.IsError {
		return fmt.Errorf("NEG missing facts: expected error result")
	}

	// Suite YAML that is not YAML at all.
	result, err = callToolRaw(ctx, s, "validate_suite", map[string]any{"suite_yaml": "{{{not yaml"})
	if err != nil {
		return fmt.Errorf("validate_suite garbage: %w", err)
	}
	if !result.IsError {
		// Garbage may come back as a valid=false lint finding instead.
		var resp struct {
			Valid bool `json:"valid"`
		}
		if err := decodeResult(result, &resp); err == nil && resp.Valid {
			return fmt.Errorf("NEG garbage YAML reported valid")
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// agent_dependency_reviewer — multi-turn workflow mimicking an AI agent
// asked "is lodash 4.17.15 safe to add?": read the docs, inspect the
// suite, evaluate the component, then confirm the remediation loop.
// ---------------------------------------------------------------------------

func agentDependencyReviewer(ctx context.Context, s *mcp.ClientSession) error {
	// Turn 1: the agent reads the expression reference before authoring.
	res, err := s.ReadResource(ctx, &mcp.ReadResourceParams{URI: "depgate://expression-language"})
	if err != nil {
		return fmt.Errorf("turn 1 read reference: %w", err)
	}
	if !strings.Contains(resourceText(res), "exists") {
		return fmt.Errorf("turn 1: reference does not document exists macro")
	}

	// Turn 2: inspect what the gate checks.
	result, err := callToolRaw(ctx, s, "list_rules", map[string]any{"suite": "smoke"})
	if err != nil || result.IsError {
		return fmt.Errorf("turn 2 list_rules failed: %v %s", err, extractText(result))
	}

	// Turn 3: evaluate the candidate component.
	var facts map[string]any
	if err := json.Unmarshal([]byte(badFacts), &facts); err != nil {
		return err
	}
	result, err = callToolRaw(ctx, s, "evaluate_component", map[string]any{
		"suite": "smoke",
		"facts": facts,
	})
	if err != nil || result.IsError {
		return fmt.Errorf("turn 3 evaluate failed: %v %s", err, extractText(result))
	}
	if !strings.Contains(extractText(result), "no-critical-vulns") {
		return fmt.Errorf("turn 3: expected violation not reported")
	}

	// Turn 4: the agent simulates the fix (advisory-free release) and
	// re-evaluates. The gate must now pass.
	cleanFacts := map[string]any{
		"component": map[string]any{
			"name": "lodash", "version": "4.17.21", "ecosystem": "npm", "direct": true,
		},
	}
	result, err = callToolRaw(ctx, s, "evaluate_component", map[string]any{
		"suite": "smoke",
		"facts": cleanFacts,
	})
	if err != nil || result.IsError {
		return fmt.Errorf("turn 4 re-evaluate failed: %v %s", err, extractText(result))
	}
	var resp struct {
		Totals struct {
			Violations int `json:"violations"`
		} `json:"totals"`
	}
	if err := decodeResult(result, &resp); err != nil {
		return err
	}
	if resp.Totals.Violations != 0 {
		return fmt.Errorf("turn 4: upgraded component still has %d violations", resp.Totals.Violations)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers.
// ---------------------------------------------------------------------------

func callToolRaw(ctx context.Context, s *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal %s args: %w", name, err)
	}
	return s.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: json.RawMessage(payload)})
}

func extractText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	if tc, ok := result.Content[0].(*mcp.TextContent); ok {
		return tc.Text
	}
	return fmt.Sprintf("%T", result.Content[0])
}

func decodeResult(result *mcp.CallToolResult, v any) error {
	text := extractText(result)
	if text == "" {
		return fmt.Errorf("empty tool result")
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("decode tool result: %w (body: %.200s)", err, text)
	}
	return nil
}

func resourceText(res *mcp.ReadResourceResult) string {
	if len(res.Contents) == 0 {
		return ""
	}
	return res.Contents[0].Text
}

func resourceJSON(res *mcp.ReadResourceResult) (map[string]any, error) {
	text := resourceText(res)
	if text == "" {
		return nil, fmt.Errorf("empty resource content")
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, err
	}
	return data, nil
}

func startServer(ctx context.Context, port int, suiteDir string) (*exec.Cmd, error) {
	root, err := findRepoRoot()
	if err != nil {
		return nil, fmt.Errorf("find repo root: %w", err)
	}

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/cli", "mcp",
		"--http", fmt.Sprintf(":%d", port), "--suites", suiteDir)
	cmd.Dir = root
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func stopServer(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
	_, _ = cmd.Process.Wait()
}

func findRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		modPath := filepath.Join(dir, "go.mod")
		if data, err := os.ReadFile(modPath); err == nil {
			if strings.Contains(string(data), "module github.com/depgate/depgate\n") ||
				strings.Contains(string(data), "module github.com/depgate/depgate\r\n") {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir || parent == "" {
			return "", fmt.Errorf("repo root not found walking up from %s", dir)
		}
		dir = parent
	}
}

func waitForHealth(ctx context.Context, port int) error {
	client := &http.Client{Timeout: duration.HealthCheck}
	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
