// Package sourcehealth provides unified fact-source health output formatting.
//
// This package centralizes all source health display logic, ensuring
// consistent output across console, JSON, Markdown, and SARIF formats. It
// includes contract tests that catch missing implementations when new health
// fields are added.
//
// Basic usage:
//
//	stats := sourcehealth.FromProvider(registry)
//	if stats.HasData() {
//	    stats.PrintConsole()
//	}
//
// For JSON output:
//
//	jsonMap := stats.ToJSON()
//
// For custom output:
//
//	var buf bytes.Buffer
//	stats.WriteTo(&buf, sourcehealth.FormatMarkdown)
//
// Testing with mock data:
//
//	stats := sourcehealth.FromMap(map[string]int{
//	    "sources_unavailable_total": 1,
//	    "components_missing_facts":  4,
//	})
package sourcehealth
