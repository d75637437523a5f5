// Package mcpserver exposes DepGate's guardrail evaluation over the
// Model Context Protocol, so AI agents and IDE integrations can lint
// suites, inspect rules, and gate components without shelling out to
// the CLI.
//
// The server registers three tools:
//
//   - evaluate_component — run a suite against component fact snapshots
//   - validate_suite     — lint a suite document and report broken rules
//   - list_rules         — inspect rule metadata without evaluating
//
// plus read-only resources (version, authoring guide, expression
// language reference, severity model, defaults) and guided prompts for
// gate reviews and rule authoring.
//
// All three tools are local and return in well under a second, so they
// run synchronously on every transport. The primary transport is stdio
// (VS Code, Claude Desktop, Cursor); HTTPHandler serves the streamable
// HTTP transport for remote deployments.
package mcpserver
