package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/depgate/depgate/pkg/cli"
	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/duration"
	"github.com/depgate/depgate/pkg/mcpserver"
	"github.com/depgate/depgate/pkg/ui"
)

// runMCP starts the MCP (Model Context Protocol) server.
// Supports two transport modes:
//   - --stdio (default): For IDE integrations (VS Code, Claude Desktop, Cursor)
//   - --http <addr>:     For remote/Docker deployments with session management
func runMCP() {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)

	stdio := fs.Bool("stdio", true, "Use stdio transport (default, for IDE integration)")
	httpAddr := fs.String("http", "", "HTTP address to listen on (e.g. :8080). Disables stdio.")
	suiteDir := fs.String("suites", envOrDefault("DEPGATE_SUITE_DIR", defaults.SuiteDir), "Suite directory")
	scriptDir := fs.String("scripts", envOrDefault("DEPGATE_SCRIPT_DIR", ""), "Directory of .tengo rule scripts to load")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: depgate mcp [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Start an MCP server for AI-driven dependency guardrail checks.\n\n")
		fmt.Fprintf(os.Stderr, "Transports:\n")
		fmt.Fprintf(os.Stderr, "  --stdio          Stdio transport for IDE integration (default)\n")
		fmt.Fprintf(os.Stderr, "  --http <addr>    Streamable HTTP transport for remote/Docker\n\n")
		fmt.Fprintf(os.Stderr, "Environment variables:\n")
		fmt.Fprintf(os.Stderr, "  DEPGATE_SUITE_DIR    Suite directory (default: %s)\n", defaults.SuiteDir)
		fmt.Fprintf(os.Stderr, "  DEPGATE_SCRIPT_DIR   Scripted rule directory\n")
		fmt.Fprintf(os.Stderr, "  DEPGATE_HTTP_ADDR    HTTP listen address (same as --http)\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  depgate mcp --stdio\n")
		fmt.Fprintf(os.Stderr, "  depgate mcp --http :8080\n")
		fmt.Fprintf(os.Stderr, "  DEPGATE_SUITE_DIR=/data/guardrails depgate mcp --http :8080\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Allow env var override for HTTP address (useful in Docker/K8s)
	if *httpAddr == "" {
		if envAddr := os.Getenv("DEPGATE_HTTP_ADDR"); envAddr != "" {
			*httpAddr = envAddr
		}
	}

	suiteCount, err := validateSuiteDir(*suiteDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: suite directory %q: %v\n", *suiteDir, err)
		fmt.Fprintf(os.Stderr, "hint: set --suites or DEPGATE_SUITE_DIR to the directory containing suite YAML files\n")
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "%s suite directory: %s (%d suite files)\n", ui.UserAgent(), *suiteDir, suiteCount)

	srv := mcpserver.New(&mcpserver.Config{
		SuiteDir:  *suiteDir,
		ScriptDir: *scriptDir,
	})
	srv.MarkReady() // Signal that startup validation passed

	ctx, cancel := cli.SignalContext(duration.StreamSlow)
	defer cancel()

	if *httpAddr != "" {
		// HTTP transport mode
		*stdio = false
		handler := srv.HTTPHandler()

		httpSrv := &http.Server{
			Addr:              *httpAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			// WriteTimeout intentionally 0: SSE streams are long-lived and
			// any non-zero value sets an absolute deadline that kills SSE
			// connections. ReadHeaderTimeout + ReadTimeout protect against
			// slowloris.
			IdleTimeout:    30 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1 MB
		}

		go func() {
			<-ctx.Done()
			// Graceful shutdown: drain in-flight requests within 15 seconds
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer shutdownCancel()
			fmt.Fprintf(os.Stderr, "%s shutting down gracefully\n", ui.UserAgent())
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
			}
		}()

		fmt.Fprintf(os.Stderr, "%s MCP server listening on %s (HTTP transport)\n",
			ui.UserAgent(), *httpAddr)

		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Stdio transport mode (default)
	if *stdio {
		if err := srv.RunStdio(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "error: no transport selected, use --stdio or --http <addr>\n")
	os.Exit(1)
}

// validateSuiteDir checks that the suite directory exists and counts the
// YAML suite files under it.
func validateSuiteDir(dir string) (int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("not found: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory")
	}

	count := 0
	err = filepath.Walk(dir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yaml" || ext == ".yml" {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, fmt.Errorf("no suite YAML files found")
	}
	return count, nil
}
