package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/depgate/depgate/pkg/defaults"
)

// Config holds MCP server configuration.
type Config struct {
	// SuiteDir is where bare suite names passed to tools are resolved.
	SuiteDir string

	// ScriptDir optionally holds .tengo rule scripts that
	// evaluate_component appends to every suite. Empty disables
	// scripted rules.
	ScriptDir string
}

// Server wraps the MCP server with DepGate's guardrail tooling.
type Server struct {
	mcp    *mcp.Server
	config *Config
	ready  atomic.Bool
}

// MCPServer returns the underlying MCP server for direct access (e.g., testing).
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// MarkReady signals that startup validation (suite directory checks, etc.)
// passed. Until MarkReady is called, /health returns 503 Service Unavailable.
func (s *Server) MarkReady() { s.ready.Store(true) }

// IsReady returns true if the server has completed startup validation.
func (s *Server) IsReady() bool { return s.ready.Load() }

// New creates an MCP server with all tools, resources, and prompts registered.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.SuiteDir == "" {
		cfg.SuiteDir = "./suites"
	}

	s := &Server{config: cfg}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    defaults.ToolName,
			Title:   "DepGate MCP Server",
			Version: defaults.Version,
		},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// RunStdio runs the MCP server over stdio transport. This is the primary
// mode for IDE integrations (VS Code, Claude Desktop, Cursor).
func (s *Server) RunStdio(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns an http.Handler for the streamable HTTP transport
// with CORS support and a /health endpoint, for remote and Docker
// deployments.
//
// The handler mounts:
//   - /health → readiness/liveness probe (GET only)
//   - /mcp    → streamable HTTP transport (2025-03-26 spec)
//   - /       → streamable HTTP transport (default mount)
func (s *Server) HTTPHandler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return s.mcp },
		&mcp.StreamableHTTPOptions{Stateless: false},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/mcp", streamable)
	mux.Handle("/", streamable)

	return corsMiddleware(recoveryMiddleware(securityHeaders(mux)))
}

// handleHealth serves a readiness/liveness probe. Returns 200 once
// MarkReady() is called, 503 Service Unavailable before.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if !s.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting","service":"depgate-mcp"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"depgate-mcp"}`))
}

// corsMiddleware wraps an http.Handler with permissive CORS headers
// required by browser-based MCP clients and cross-origin integrations.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Always set Vary: Origin so caches don't serve a CORS-enabled
		// response to a non-browser client or vice versa.
		w.Header().Add("Vary", "Origin")

		if origin == "" {
			// No Origin header = non-browser client; skip CORS headers.
			// Setting "*" with Allow-Credentials violates the Fetch spec.
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			strings.Join([]string{
				"Content-Type",
				"Authorization",
				"Mcp-Session-Id",
				"MCP-Protocol-Version",
				"Last-Event-ID",
				"Accept",
			}, ", "))
		w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id, MCP-Protocol-Version")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware catches panics in HTTP handlers and returns a 500
// error instead of killing the connection.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("panic in HTTP handler: %v\n%s", err, debug.Stack())

				// Best-effort error response: if headers were already
				// sent, WriteHeader is a no-op.
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// securityHeaders adds standard defense-in-depth headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// textResult creates a CallToolResult with a single text content block.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// jsonResult marshals v to indented JSON and wraps it in a CallToolResult.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult creates an IsError CallToolResult so the LLM can see the
// error and self-correct rather than raising a protocol-level exception.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// boolPtr returns a pointer to b. Used for optional bool fields in the SDK.
func boolPtr(b bool) *bool { return &b }

// parseArgs unmarshals the raw JSON arguments from a tool call into dst.
func parseArgs(req *mcp.CallToolRequest, dst any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, dst); err != nil {
		return fmt.Errorf("parsing tool arguments: %w", err)
	}
	return nil
}

const serverInstructions = `You are operating DepGate — a dependency guardrail gate that evaluates declarative policy suites against component metadata facts (vulnerability advisories, OpenSSF Scorecard results, project popularity, licenses).

## YOUR IDENTITY

You are a supply-chain policy reviewer. You help users author guardrail suites, lint them, and gate components against them. Everything runs locally: no tool sends network traffic.

## CORE CONCEPTS

- A SUITE is a YAML document of named filters. Each filter is one RULE: a boolean expression over component facts. An expression that evaluates to true means the guardrail is VIOLATED.
- FACTS are JSON snapshots of component metadata: {"component": {...}, "vulnerabilities": [...], "scorecard": {...}, "projects": [...], "licenses": [...]}.
- Rules are independent: one rule's error never stops the others. Broken rules are reported, not silently dropped.

## TOOL SELECTION GUIDE

| User Intent | Tool | Why |
|---|---|---|
| "Does this component pass policy?" | evaluate_component | Runs every rule, returns violations + risk score |
| "Is my suite well-formed?" | validate_suite | Lints the document, reports rules that do not compile |
| "What rules does this suite have?" | list_rules | Metadata only, no evaluation |

All tools are fast and synchronous. Call them freely.

## RECOMMENDED WORKFLOWS

### Authoring a new rule
1. Read depgate://expression-language for the available fields and operators
2. Draft the rule YAML
3. validate_suite with suite_yaml to catch compile errors
4. evaluate_component against known-bad facts to confirm it triggers

### Gating a component
1. validate_suite first if the suite is new or edited
2. evaluate_component with the suite and the component's facts
3. Report violations by severity; a clean run has "violations": 0 in totals

## INTERPRETING RESULTS

- "triggered": true = the guardrail is VIOLATED (bad for the component)
- "error" on an evaluation = the rule could not be evaluated (undefined field, wrong types); fix the rule or the facts
- "skipped" = the rule was broken at compile time or the run was cancelled
- Risk grades run A (clean) through F (release-blocking)

## READING RESOURCES

- depgate://version — server capabilities and version
- depgate://guide — suite authoring guide with worked examples
- depgate://expression-language — field bindings and operator reference
- depgate://severities — severity tiers, CVSS mapping, check-type defaults
- depgate://config — default limits and timeouts

## ERROR RECOVERY

- "one of 'suite', 'suite_path', or 'suite_yaml' is required" → supply the suite inline or by path
- "suite file not found" → check the path, or list files in the suite directory
- "invalid suite" → run validate_suite on the document to see every problem
- "parse snapshot" → the facts JSON does not match the documented shape; read depgate://guide`
