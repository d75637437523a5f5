package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/depgate/depgate/pkg/cli"
	"github.com/depgate/depgate/pkg/output/exitcode"
	"github.com/depgate/depgate/pkg/ui"
)

func runHistory() {
	if len(os.Args) < 3 {
		printHistoryUsage()
		os.Exit(int(exitcode.Configuration))
	}
	sub := os.Args[2]

	fs := flag.NewFlagSet("history "+sub, flag.ExitOnError)
	cfg := cli.DefaultConfig()
	dir := fs.String("dir", envOrDefault("DEPGATE_HISTORY", ".depgate/history"), "History directory")
	suite := fs.String("suite", "", "Filter runs by suite name")
	limit := fs.Int("limit", 20, "Maximum runs to list")
	since := fs.Duration("since", 30*24*time.Hour, "Trend window")
	maxPoints := fs.Int("max-points", 30, "Maximum trend data points")
	olderThan := fs.Duration("older-than", 90*24*time.Hour, "Prune runs older than this")
	fs.StringVar(&cfg.Format, "format", "text", "Output format (text, json)")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose output")
	if err := fs.Parse(os.Args[3:]); err != nil {
		os.Exit(int(exitcode.Configuration))
	}

	var err error
	switch sub {
	case "list":
		err = cli.RunHistoryList(cfg, *dir, *suite, *limit, os.Stdout)
	case "trend":
		err = cli.RunHistoryTrend(cfg, *dir, *suite, *since, *maxPoints, os.Stdout)
	case "compare":
		if fs.NArg() != 2 {
			ui.PrintError("history compare needs two run IDs")
			os.Exit(int(exitcode.Configuration))
		}
		err = cli.RunHistoryCompare(cfg, *dir, fs.Arg(0), fs.Arg(1), os.Stdout)
	case "prune":
		err = cli.RunHistoryPrune(cfg, *dir, *olderThan, os.Stdout)
	case "stats":
		err = cli.RunHistoryStats(cfg, *dir, os.Stdout)
	default:
		ui.PrintError(fmt.Sprintf("unknown history command %q", sub))
		printHistoryUsage()
		os.Exit(int(exitcode.Configuration))
	}
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(int(exitcode.Configuration))
	}
}

func printHistoryUsage() {
	fmt.Fprint(os.Stderr, `Usage: depgate history <command> [flags]

Commands:
  list      List stored runs, newest first
  trend     Show violation and clean-rate trend over time
  compare   Compare two stored runs by ID
  prune     Delete runs older than -older-than
  stats     Aggregate statistics across stored runs
`)
}
