package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/depgate/depgate/pkg/cli"
	"github.com/depgate/depgate/pkg/input"
	"github.com/depgate/depgate/pkg/output/exitcode"
	"github.com/depgate/depgate/pkg/policy"
	"github.com/depgate/depgate/pkg/ui"
	"github.com/depgate/depgate/presets"
)

func runRules() {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	cfg := cli.DefaultConfig()
	var suites input.StringSliceFlag
	fs.Var(&suites, "suite", "Suite file or directory (repeatable)")
	fs.Var(&suites, "s", "Suite file or directory (shorthand)")
	fs.StringVar(&cfg.Format, "format", "text", "Output format (text, json)")
	fs.BoolVar(&cfg.Verbose, "v", false, "Show rule summaries")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(int(exitcode.Configuration))
	}

	if len(suites) > 0 {
		if err := cli.RunRules(cfg, suites, os.Stdout); err != nil {
			ui.PrintError(err.Error())
			os.Exit(int(exitcode.Configuration))
		}
		return
	}

	// No suites given: list the bundled presets.
	for _, name := range presets.Names() {
		data, err := presets.Suite(name)
		if err != nil {
			ui.PrintError(err.Error())
			os.Exit(int(exitcode.Configuration))
		}
		suite, err := policy.Parse(data)
		if err != nil {
			ui.PrintError(fmt.Sprintf("preset %s: %v", name, err))
			os.Exit(int(exitcode.Configuration))
		}
		fmt.Printf("preset: %s (%s)\n", suite.Name, suite.Description)
		for _, r := range suite.Filters {
			fmt.Printf("  %-40s %-12s %s\n", r.Name, r.CheckType, r.Severity)
			if cfg.Verbose && r.Summary != "" {
				fmt.Printf("      %s\n", r.Summary)
			}
		}
		fmt.Println()
	}
}
