package writers

import (
	"fmt"
	"sort"

	gofpdf "github.com/go-pdf/fpdf"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/output/events"
)

// hasMatrixData reports whether any buffered evaluation triggered, which is
// what the severity/check matrix cross-tabulates.
func (pw *PDFWriter) hasMatrixData() bool {
	for _, r := range pw.results {
		if r.Result.Outcome == events.OutcomeTriggered {
			return true
		}
	}
	return false
}

// addSeverityCheckMatrix renders a 2D cross-tabulation of violation counts
// by severity (rows) and check type (columns). Gives reviewers a quick view
// of where the worst findings cluster.
func (pw *PDFWriter) addSeverityCheckMatrix(pdf *gofpdf.Fpdf) {
	if len(pw.results) == 0 {
		return
	}

	// Build the matrix: severity -> check type -> count (violations only).
	type cell struct{ sev, check string }
	counts := make(map[cell]int)
	for _, r := range pw.results {
		if r.Result.Outcome != events.OutcomeTriggered {
			continue
		}
		check := r.Rule.CheckType
		if check == "" {
			check = "other"
		}
		counts[cell{string(r.Rule.Severity), check}]++
	}
	if len(counts) == 0 {
		return
	}

	pdf.AddPage()
	pw.addSectionHeader(pdf, "Severity vs Check Type Matrix")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, "Cross-tabulation of guardrail violations by severity and check type. "+
		"Cells in the critical and high rows identify the components to fix first.", "", "L", false)
	pdf.Ln(5)

	sevOrder := events.OrderedStrings()
	checkOrder := []string{"vuln", "license", "maintenance", "popularity", "scorecard", "provenance", "other"}

	// Prune empty columns.
	activeChecks := make([]string, 0, len(checkOrder))
	for _, c := range checkOrder {
		for _, s := range sevOrder {
			if counts[cell{s, c}] > 0 {
				activeChecks = append(activeChecks, c)
				break
			}
		}
	}
	if len(activeChecks) == 0 {
		return
	}

	titleCaser := titleCaserFor()
	pageW, _ := pdf.GetPageSize()
	labelW := 30.0
	cellW := (pageW - 30 - labelW) / float64(len(activeChecks))
	if cellW > 35 {
		cellW = 35
	}

	// Header row.
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(labelW, 8, "Severity", "1", 0, "C", true, 0, "")
	for _, c := range activeChecks {
		pdf.CellFormat(cellW, 8, titleCaser(c), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	// Data rows.
	pdf.SetFont("Helvetica", "", 9)
	for _, sev := range sevOrder {
		hasRow := false
		for _, c := range activeChecks {
			if counts[cell{sev, c}] > 0 {
				hasRow = true
				break
			}
		}
		if !hasRow {
			continue
		}

		sevColor := pdfSeverityColors[sev]
		if sevColor == nil {
			sevColor = []int{128, 128, 128}
		}

		pdf.SetTextColor(sevColor[0], sevColor[1], sevColor[2])
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(labelW, 7, titleCaser(sev), "1", 0, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 9)
		for _, c := range activeChecks {
			n := counts[cell{sev, c}]
			if n > 0 {
				// Hot cells: red text for critical and high severities.
				if sev == "critical" || sev == "high" {
					pdf.SetTextColor(220, 38, 38)
					pdf.SetFont("Helvetica", "B", 9)
				} else {
					pdf.SetTextColor(60, 60, 60)
					pdf.SetFont("Helvetica", "", 9)
				}
				pdf.CellFormat(cellW, 7, fmt.Sprintf("%d", n), "1", 0, "C", false, 0, "")
			} else {
				pdf.SetTextColor(180, 180, 180)
				pdf.CellFormat(cellW, 7, "-", "1", 0, "C", false, 0, "")
			}
		}
		pdf.Ln(-1)
	}

	// Column totals line.
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(labelW, 7, "Total", "1", 0, "L", false, 0, "")
	for _, c := range activeChecks {
		total := 0
		for _, s := range sevOrder {
			total += counts[cell{s, c}]
		}
		pdf.CellFormat(cellW, 7, fmt.Sprintf("%d", total), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
}

// hasCleanChecks reports whether any check type had evaluations but zero
// violations.
func (pw *PDFWriter) hasCleanChecks() bool {
	if pw.summary == nil || len(pw.summary.Breakdown.ByCheckType) == 0 {
		return false
	}
	for _, stats := range pw.summary.Breakdown.ByCheckType {
		if stats.Total > 0 && stats.Violations == 0 {
			return true
		}
	}
	return false
}

// addCleanChecks lists check types where every evaluation passed.
// This is the "good news" section of the report.
func (pw *PDFWriter) addCleanChecks(pdf *gofpdf.Fpdf) {
	if !pw.hasCleanChecks() {
		return
	}

	pdf.AddPage()
	pw.addSectionHeader(pdf, "Clean Checks")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, "The following check types produced no violations. "+
		"Every component passed every rule of these kinds.", "", "L", false)
	pdf.Ln(5)

	type cleanRow struct {
		name  string
		total int
	}
	var rows []cleanRow
	for check, stats := range pw.summary.Breakdown.ByCheckType {
		if stats.Total > 0 && stats.Violations == 0 {
			rows = append(rows, cleanRow{name: check, total: stats.Total})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].total > rows[j].total })

	// Table header.
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(22, 163, 74) // Green header
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(60, 8, "Check", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Evaluations", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 8, "Clean Rate", "1", 0, "C", true, 0, "")
	pdf.CellFormat(0, 8, "Status", "1", 1, "C", true, 0, "")

	// Rows.
	pdf.SetFont("Helvetica", "", 10)
	for i, row := range rows {
		if i%2 == 0 {
			pdf.SetFillColor(245, 255, 245)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(60, 7, defaults.GetCategoryReadableName(row.name), "1", 0, "L", true, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", row.total), "1", 0, "C", true, 0, "")

		pdf.SetTextColor(22, 163, 74)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(35, 7, "100.0%", "1", 0, "C", true, 0, "")
		pdf.CellFormat(0, 7, "PASS", "1", 1, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
	}

	// Summary line.
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(22, 163, 74)
	total := len(pw.summary.Breakdown.ByCheckType)
	pdf.CellFormat(0, 6, fmt.Sprintf("%d of %d check types fully clean.", len(rows), total), "", 1, "L", false, 0, "")
}

// addEcosystemBreakdown aggregates violation rates per package ecosystem.
// Shows which registries contribute the most risk to the dependency set.
func (pw *PDFWriter) addEcosystemBreakdown(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, "Ecosystem Breakdown")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, "Violation rates per package ecosystem. A high rate in one "+
		"ecosystem usually reflects a stale lockfile rather than a bad registry.", "", "L", false)
	pdf.Ln(5)

	type ecoRow struct {
		name          string
		total         int
		violations    int
		violationRate float64
	}
	rows := make([]ecoRow, 0, len(pw.summary.Breakdown.ByEcosystem))
	for name, stats := range pw.summary.Breakdown.ByEcosystem {
		rate := 0.0
		if stats.Total > 0 {
			rate = float64(stats.Violations) / float64(stats.Total) * 100
		}
		rows = append(rows, ecoRow{name: name, total: stats.Total, violations: stats.Violations, violationRate: rate})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].violationRate > rows[j].violationRate })

	// Header.
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(50, 7, "Ecosystem", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 7, "Evaluations", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 7, "Violations", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 7, "Violation Rate", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for i, r := range rows {
		if i%2 == 0 {
			pdf.SetFillColor(250, 250, 250)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(50, 6, truncateString(r.name, 28), "1", 0, "L", true, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", r.total), "1", 0, "C", true, 0, "")

		if r.violations > 0 {
			pdf.SetTextColor(220, 38, 38)
		}
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", r.violations), "1", 0, "C", true, 0, "")

		// Color-code the rate.
		var rateColor []int
		if r.violationRate >= 50 {
			rateColor = []int{220, 38, 38}
		} else if r.violationRate >= 20 {
			rateColor = []int{202, 138, 4}
		} else {
			rateColor = []int{22, 163, 74}
		}
		pdf.SetTextColor(rateColor[0], rateColor[1], rateColor[2])
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f%%", r.violationRate), "1", 1, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
	}
}

// addRemediationGuidanceSection renders actionable advice for each check
// type where violations were found.
func (pw *PDFWriter) addRemediationGuidanceSection(pdf *gofpdf.Fpdf) {
	byCheck := pw.groupByCheckType(pw.violations())
	if len(byCheck) == 0 {
		return
	}

	pdf.AddPage()
	pw.addSectionHeader(pdf, "Remediation Guidance")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, "Targeted guidance for each check type where guardrails triggered. "+
		"Prioritize the checks with the highest violation counts and severity.", "", "L", false)
	pdf.Ln(5)

	// Sort check types by violation count descending.
	type checkEntry struct {
		check string
		count int
	}
	sorted := make([]checkEntry, 0, len(byCheck))
	for check, findings := range byCheck {
		sorted = append(sorted, checkEntry{check: check, count: len(findings)})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].count > sorted[j].count })

	_, pageH := pdf.GetPageSize()
	pageBreakY := pageH - 47

	for i, entry := range sorted {
		info := checkRemediationFor(entry.check)

		// Page break check: each guidance block needs ~35mm.
		if i > 0 && pdf.GetY()+35 > pageBreakY {
			pdf.AddPage()
		}

		// Check header with violation count.
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(30, 41, 59)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s (%d violations)", info.Title, entry.count), "", 1, "L", false, 0, "")

		// Guidance text.
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(80, 80, 80)
		pdf.MultiCell(0, 5, info.Guidance, "", "L", false)

		// Reference URL.
		if info.ReferenceURL != "" {
			pdf.SetFont("Helvetica", "I", 8)
			pdf.SetTextColor(37, 99, 235)
			pdf.CellFormat(0, 5, "Reference: "+info.ReferenceURL, "", 1, "L", false, 0, "")
		}

		pdf.Ln(4)
	}
}

// addRunInsights derives and renders heuristic observations from the run.
// Covers: overall posture, error-prone checks, risky ecosystems, latency
// anomalies, and throughput.
func (pw *PDFWriter) addRunInsights(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	pw.addSectionHeader(pdf, "Run Insights")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 5, "Automated observations derived from the evaluation results. "+
		"These insights highlight patterns that may warrant further investigation.", "", "L", false)
	pdf.Ln(5)

	insights := pw.deriveInsights()
	if len(insights) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, "No notable insights from this run.", "", 1, "L", false, 0, "")
		return
	}

	for i, ins := range insights {
		if i > 0 {
			pdf.Ln(2)
		}

		// Icon + title.
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(30, 41, 59)
		pdf.CellFormat(0, 7, fmt.Sprintf("%s %s", ins.icon, ins.title), "", 1, "L", false, 0, "")

		// Body.
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(80, 80, 80)
		pdf.MultiCell(0, 5, ins.body, "", "L", false)
	}
}

// insight is one automatically derived observation.
type insight struct {
	icon  string
	title string
	body  string
}

// deriveInsights builds a list of heuristic observations from the run data.
func (pw *PDFWriter) deriveInsights() []insight {
	var out []insight

	// 1. Overall posture.
	if pw.summary != nil && pw.summary.Risk.Grade != "" {
		out = append(out, insight{
			icon:  "[GRADE]",
			title: "Dependency Posture",
			body: fmt.Sprintf("Overall risk grade: %s (%.1f%% clean rate). %s",
				pw.summary.Risk.Grade, pw.summary.Risk.CleanRatePct,
				postureSummary(pw.summary.Risk.CleanRatePct)),
		})
	}

	// 2. Check types with repeated evaluation errors.
	if len(pw.results) > 0 {
		errCounts := make(map[string]int)
		for _, r := range pw.results {
			if r.Result.Outcome == events.OutcomeError {
				check := r.Rule.CheckType
				if check == "" {
					check = "other"
				}
				errCounts[check]++
			}
		}
		topCheck, topErrs := "", 0
		for check, n := range errCounts {
			if n > topErrs {
				topCheck, topErrs = check, n
			}
		}
		if topErrs >= 3 {
			total := 0
			if pw.summary != nil {
				if stats, ok := pw.summary.Breakdown.ByCheckType[topCheck]; ok {
					total = stats.Total
				}
			}
			pct := 0.0
			if total > 0 {
				pct = float64(topErrs) / float64(total) * 100
			}
			out = append(out, insight{
				icon:  "[ERR]",
				title: "Error-Prone Check",
				body: fmt.Sprintf("Check type %q had %d evaluation errors (%.0f%% of its evaluations). "+
					"Rules of this kind likely reference facts the snapshots do not carry, "+
					"or the backing fact source was unavailable.",
					topCheck, topErrs, pct),
			})
		}
	}

	// 3. Riskiest ecosystem.
	if pw.summary != nil && len(pw.summary.Breakdown.ByEcosystem) > 1 {
		worstEco, worstRate := "", 0.0
		for eco, stats := range pw.summary.Breakdown.ByEcosystem {
			if stats.Total < 5 {
				continue // threshold for significance
			}
			rate := float64(stats.Violations) / float64(stats.Total) * 100
			if rate > worstRate {
				worstEco, worstRate = eco, rate
			}
		}
		if worstEco != "" && worstRate > 10 {
			out = append(out, insight{
				icon:  "[ECO]",
				title: "Riskiest Ecosystem",
				body: fmt.Sprintf("Ecosystem %q has a %.1f%% violation rate, the highest in this run. "+
					"Its lockfile is the best place to start upgrades.", worstEco, worstRate),
			})
		}
	}

	// 4. Latency anomalies.
	if pw.summary != nil && pw.summary.Latency.P95Ms > 0 && pw.summary.Latency.P50Ms > 0 {
		ratio := pw.summary.Latency.P95Ms / pw.summary.Latency.P50Ms
		if ratio > 5 {
			out = append(out, insight{
				icon:  "[LAT]",
				title: "Latency Spike",
				body: fmt.Sprintf("P95 evaluation latency (%.0f ms) is %.0fx the median (%.0f ms). "+
					"A handful of components are waiting on slow fact lookups.",
					pw.summary.Latency.P95Ms, ratio, pw.summary.Latency.P50Ms),
			})
		}
	}

	// 5. Throughput.
	if pw.summary != nil && pw.summary.Timing.ComponentsPerSec > 0 {
		out = append(out, insight{
			icon:  "[PERF]",
			title: "Run Performance",
			body: fmt.Sprintf("Evaluated %d components in %s (%.1f components/s).",
				pw.summary.Totals.Components,
				formatDuration(pw.summary.Timing.DurationSec),
				pw.summary.Timing.ComponentsPerSec),
		})
	}

	// 6. Direct dependency concentration.
	if len(pw.results) > 0 {
		direct, directViolations := 0, 0
		for _, r := range pw.results {
			if !r.Component.Direct {
				continue
			}
			direct++
			if r.Result.Outcome == events.OutcomeTriggered {
				directViolations++
			}
		}
		if directViolations > 0 {
			out = append(out, insight{
				icon:  "[DIRECT]",
				title: "Direct Dependency Violations",
				body: fmt.Sprintf("%d of the violations are on direct dependencies, which your "+
					"manifests control. These upgrades do not depend on upstream maintainers.",
					directViolations),
			})
		} else if direct > 0 {
			out = append(out, insight{
				icon:  "[DIRECT]",
				title: "Transitive Risk Only",
				body: "All violations are on transitive dependencies. Fixes require either " +
					"upgrading the direct dependency that pulls them in or pinning overrides.",
			})
		}
	}

	return out
}

// postureSummary returns a single-sentence assessment for the given clean rate.
func postureSummary(cleanRate float64) string {
	switch {
	case cleanRate >= 97:
		return "The dependency set is effectively clean; keep the suite running in CI."
	case cleanRate >= 90:
		return "Generally healthy with a few flagged components that should be scheduled for upgrades."
	case cleanRate >= 80:
		return "Moderate hygiene; several components violate policy and need attention."
	case cleanRate >= 60:
		return "Weak hygiene; a substantial share of the dependency tree violates policy."
	default:
		return "Critical hygiene gaps; most evaluations violate policy and releases should be gated."
	}
}
