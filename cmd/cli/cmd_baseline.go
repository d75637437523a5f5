package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/depgate/depgate/pkg/cli"
	"github.com/depgate/depgate/pkg/output/exitcode"
	"github.com/depgate/depgate/pkg/ui"
)

func runBaseline() {
	if len(os.Args) < 3 {
		printBaselineUsage()
		os.Exit(int(exitcode.Configuration))
	}
	sub := os.Args[2]

	fs := flag.NewFlagSet("baseline "+sub, flag.ExitOnError)
	cfg := cli.DefaultConfig()
	path := fs.String("baseline", ".depgate-baseline.json", "Baseline file")
	results := fs.String("results", "", "Evaluation results JSON to diff against")
	fs.StringVar(&cfg.Format, "format", "text", "Output format (text, json)")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose output")
	if err := fs.Parse(os.Args[3:]); err != nil {
		os.Exit(int(exitcode.Configuration))
	}

	switch sub {
	case "show":
		if err := cli.RunBaselineShow(cfg, *path, os.Stdout); err != nil {
			ui.PrintError(err.Error())
			os.Exit(int(exitcode.Configuration))
		}
	case "diff":
		if *results == "" {
			ui.PrintError("baseline diff needs -results")
			os.Exit(int(exitcode.Configuration))
		}
		comp, err := cli.RunBaselineDiff(cfg, *path, *results, os.Stdout)
		if err != nil {
			ui.PrintError(err.Error())
			os.Exit(int(exitcode.Configuration))
		}
		if comp.HasNewViolations {
			os.Exit(int(exitcode.Violations))
		}
	default:
		ui.PrintError(fmt.Sprintf("unknown baseline command %q", sub))
		printBaselineUsage()
		os.Exit(int(exitcode.Configuration))
	}
}

func printBaselineUsage() {
	fmt.Fprint(os.Stderr, `Usage: depgate baseline <command> [flags]

Commands:
  show   Print the violations recorded in a baseline file
  diff   Diff evaluation results against a baseline
`)
}
