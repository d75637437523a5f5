// Command depgate evaluates guardrail policy suites against open-source
// component fact snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/ui"
)

func main() {
	// Check for subcommands
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(3)
	}

	switch os.Args[1] {
	case "scan", "run":
		runScan()
	case "rules":
		runRules()
	case "lint", "validate":
		runLint()
	case "history":
		runHistory()
	case "baseline":
		runBaseline()
	case "mcp":
		runMCP()
	case "-h", "--help", "help":
		printUsage()
		os.Exit(0)
	case "-v", "--version", "version":
		ui.PrintMiniBanner()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(3)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `%s v%s - dependency guardrail policy engine

Usage:
  depgate <command> [flags]

Commands:
  scan       Evaluate guardrail suites against component facts
  rules      List the rules of one or more suites
  lint       Lint suite files for schema and expression problems
  history    Inspect stored run history (list, trend, compare, prune, stats)
  baseline   Inspect or diff a known-violations baseline
  mcp        Serve guardrail tooling over the Model Context Protocol
  version    Print the version

Examples:
  depgate scan -f facts/ -suite guardrails/security.yaml -o report.json -format json
  depgate scan -sbom bom.json -preset security -gate strict
  depgate rules -suite guardrails/ -format json
  depgate history trend -history .depgate/history -suite security

Run 'depgate <command> -h' for command flags.
`, defaults.ToolNameDisplay, defaults.Version)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
