package main

import (
	"flag"
	"os"

	"github.com/depgate/depgate/pkg/cli"
	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/output/exitcode"
	"github.com/depgate/depgate/pkg/ui"
)

func runLint() {
	fs := flag.NewFlagSet("lint", flag.ExitOnError)
	cfg := cli.DefaultConfig()
	path := fs.String("suite", envOrDefault("DEPGATE_SUITE_DIR", defaults.SuiteDir), "Suite file or directory to lint")
	fs.StringVar(path, "s", *path, "Suite file or directory (shorthand)")
	failFast := fs.Bool("fail-fast", false, "Stop at the first invalid suite")
	fs.StringVar(&cfg.Format, "format", "text", "Output format (text, json)")
	fs.BoolVar(&cfg.Verbose, "v", false, "Show per-file detail")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(int(exitcode.Configuration))
	}
	if fs.NArg() > 0 {
		*path = fs.Arg(0)
	}

	result, err := cli.RunLint(cfg, *path, *failFast, os.Stdout)
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(int(exitcode.Configuration))
	}
	if result != nil && !result.Valid {
		os.Exit(int(exitcode.Configuration))
	}
}
