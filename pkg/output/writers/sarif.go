// Package writers provides output writers for various formats.
package writers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/jsonutil"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*SARIFWriter)(nil)

// SARIFWriter writes events in SARIF 2.1.0 format.
// SARIF (Static Analysis Results Interchange Format) is the standard
// for GitHub Security tab, GitLab SAST, and Azure DevOps integration.
// Results are buffered and written as a complete SARIF document on Close.
//
// This implementation follows GitHub-certified patterns from Semgrep, Trivy,
// and Nuclei including:
//   - matchBasedId/v1 fingerprints for result deduplication
//   - security-severity scores for GitHub Advanced Security
//   - Rich markdown help for IDE integration
//   - CWE and OWASP tagging for supply chain risk classification
type SARIFWriter struct {
	w       io.Writer
	mu      sync.Mutex
	opts    SARIFOptions
	results []sarifResult
	rules   map[string]sarifRule
}

// SARIFOptions configures the SARIF writer.
type SARIFOptions struct {
	// ToolName is the name of the tool (default: depgate).
	ToolName string

	// ToolVersion is the version of the tool.
	ToolVersion string

	// ToolURI is the information URI for the tool.
	ToolURI string

	// ToolDownloadURI is the download URI for the tool.
	ToolDownloadURI string

	// Organization is the organization that produces the tool.
	Organization string

	// ManifestPath is the dependency manifest the run covered, used as the
	// artifact location when set (e.g. "sbom.cdx.json" or "package-lock.json").
	ManifestPath string
}

// SARIF 2.1.0 structures.

type sarifDocument struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool     `json:"tool"`
	Results    []sarifResult `json:"results"`
	ColumnKind string        `json:"columnKind,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name            string      `json:"name"`
	Version         string      `json:"version,omitempty"`
	SemanticVersion string      `json:"semanticVersion,omitempty"`
	InformationURI  string      `json:"informationUri,omitempty"`
	DownloadURI     string      `json:"downloadUri,omitempty"`
	Organization    string      `json:"organization,omitempty"`
	Rules           []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string              `json:"id"`
	Name             string              `json:"name,omitempty"`
	ShortDescription *sarifMessage       `json:"shortDescription,omitempty"`
	FullDescription  *sarifMessage       `json:"fullDescription,omitempty"`
	DefaultConfig    *sarifConfiguration `json:"defaultConfiguration,omitempty"`
	Help             *sarifHelp          `json:"help,omitempty"`
	HelpURI          string              `json:"helpUri,omitempty"`
	Properties       map[string]any      `json:"properties,omitempty"`
}

type sarifConfiguration struct {
	Level string `json:"level"`
}

type sarifHelp struct {
	Text     string `json:"text"`
	Markdown string `json:"markdown,omitempty"`
}

type sarifResult struct {
	RuleID       string            `json:"ruleId"`
	Level        string            `json:"level"`
	Message      sarifMessage      `json:"message"`
	Locations    []sarifLocation   `json:"locations,omitempty"`
	Fingerprints map[string]string `json:"fingerprints,omitempty"`
	Properties   map[string]any    `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text     string `json:"text"`
	Markdown string `json:"markdown,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation *sarifPhysicalLocation `json:"physicalLocation,omitempty"`
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifLogicalLocation struct {
	Name               string `json:"name"`
	FullyQualifiedName string `json:"fullyQualifiedName,omitempty"`
	Kind               string `json:"kind,omitempty"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId,omitempty"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
	EndLine     int `json:"endLine,omitempty"`
	EndColumn   int `json:"endColumn,omitempty"`
}

// NewSARIFWriter creates a new SARIF 2.1.0 writer.
// The writer buffers all results and writes a complete SARIF document on Close.
// The writer is safe for concurrent use.
func NewSARIFWriter(w io.Writer, opts SARIFOptions) *SARIFWriter {
	if opts.ToolName == "" {
		opts.ToolName = defaults.ToolName
	}
	if opts.ToolURI == "" {
		opts.ToolURI = "https://github.com/depgate/depgate"
	}
	if opts.ToolDownloadURI == "" {
		opts.ToolDownloadURI = "https://github.com/depgate/depgate/releases"
	}
	if opts.Organization == "" {
		opts.Organization = defaults.ToolNameDisplay
	}
	return &SARIFWriter{
		w:       w,
		opts:    opts,
		results: make([]sarifResult, 0),
		rules:   make(map[string]sarifRule),
	}
}

// severityToLevel maps guardrail severity to SARIF level.
// Delegates to finding.Severity.ToSARIF for canonical mapping.
func severityToLevel(severity events.Severity) string {
	return severity.ToSARIF()
}

// severityToScore maps guardrail severity to GitHub security-severity score.
// Delegates to finding.Severity.ToSARIFScore for canonical mapping.
func severityToScore(severity events.Severity) string {
	return severity.ToSARIFScore()
}

// generateFingerprint creates a matchBasedId/v1 fingerprint for result
// deduplication. The fingerprint is a SHA256 hash of the rule name, the
// component coordinate, and the contributing advisory IDs, so re-runs over
// the same dependency tree produce stable identifiers.
func generateFingerprint(ruleName, componentRef string, vulnIDs []string) string {
	h := sha256.New()
	h.Write([]byte(fmt.Sprintf("%s:%s:%s", ruleName, componentRef, strings.Join(vulnIDs, ","))))
	return hex.EncodeToString(h.Sum(nil))
}

// checkTypeToCWEs returns CWE IDs for a guardrail check type.
// Returns a slice to support check types that map to multiple CWEs.
func checkTypeToCWEs(checkType string) []int {
	cweMap := map[string][]int{
		"vuln":        {1395},     // Dependency on Vulnerable Third-Party Component
		"maintenance": {1104},     // Use of Unmaintained Third Party Components
		"popularity":  {1357},     // Reliance on Insufficiently Trustworthy Component
		"scorecard":   {1357},     // Reliance on Insufficiently Trustworthy Component
		"provenance":  {494, 829}, // Download of Code Without Integrity Check
	}
	if cwes, ok := cweMap[checkType]; ok {
		return cwes
	}
	return nil
}

// checkTypeToOWASP maps check types to OWASP Top 10 2021 categories.
// Uses centralized defaults.OWASPCategoryMapping for consistency.
func checkTypeToOWASP(checkType string) string {
	code := defaults.GetOWASPCategory(checkType)
	if cat, ok := defaults.OWASPTop10[code]; ok {
		return strings.ReplaceAll(cat.FullName, " - ", "-")
	}
	return "A00:2021-Unknown"
}

// buildTags creates the tags array for a rule including CWE, OWASP, and security tags.
func buildTags(checkType string, cwes []int, owasp string) []string {
	tags := []string{"security", "external/cwe"}
	for _, cwe := range cwes {
		tags = append(tags, fmt.Sprintf("CWE-%d", cwe))
	}
	if owasp != "" && owasp != "A00:2021-Unknown" {
		tags = append(tags, owasp)
	}
	tags = append(tags, "dependency-guardrail", checkType)
	return tags
}

// buildHelp creates rich help content with markdown for IDE display.
func buildHelp(rule events.RuleInfo, cwes []int) *sarifHelp {
	readable := defaults.GetCategoryReadableName(rule.CheckType)

	plainText := fmt.Sprintf(
		"Guardrail %q (%s) was triggered. %s Review the flagged component and "+
			"either upgrade, replace, or record an accepted exception for it.",
		rule.Name, readable, rule.Summary)

	var cweLinks strings.Builder
	for _, cwe := range cwes {
		cweLinks.WriteString(fmt.Sprintf("- [CWE-%d](https://cwe.mitre.org/data/definitions/%d.html)\n", cwe, cwe))
	}
	for _, ref := range rule.References {
		cweLinks.WriteString(fmt.Sprintf("- <%s>\n", ref))
	}

	markdown := fmt.Sprintf(`## %s

%s

### Description

The dependency guardrail %q evaluated component metadata and found the
condition it gates on. This is a **%s** policy check.

### Remediation

%s

### References

%s- [OpenSSF Scorecard](https://securityscorecards.dev/)
- [DepGate Documentation](https://github.com/depgate/depgate/docs)
`, rule.Name, rule.Summary, rule.Name, readable, remediationFor(rule.CheckType), cweLinks.String())

	return &sarifHelp{
		Text:     plainText,
		Markdown: markdown,
	}
}

// Write converts an evaluation event to SARIF format.
// Only triggered and error outcomes are included in the SARIF output.
func (sw *SARIFWriter) Write(event events.Event) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	ee, ok := event.(*events.EvaluationEvent)
	if !ok {
		return nil // Skip non-evaluation events
	}

	// Only include triggered/error outcomes
	if ee.Result.Outcome != events.OutcomeTriggered && ee.Result.Outcome != events.OutcomeError {
		return nil
	}

	ruleID := ee.Rule.Name
	owasp := checkTypeToOWASP(ee.Rule.CheckType)
	cwes := checkTypeToCWEs(ee.Rule.CheckType)

	// Add rule if not exists
	if _, exists := sw.rules[ruleID]; !exists {
		tags := buildTags(ee.Rule.CheckType, cwes, owasp)
		help := buildHelp(ee.Rule, cwes)
		helpURI := fmt.Sprintf("https://github.com/depgate/depgate/docs/checks/%s", ee.Rule.CheckType)

		properties := map[string]any{
			"precision":         "very-high",
			"tags":              tags,
			"security-severity": severityToScore(ee.Rule.Severity),
		}

		sw.rules[ruleID] = sarifRule{
			ID:   ruleID,
			Name: ruleID,
			ShortDescription: &sarifMessage{
				Text: ee.Rule.Summary,
			},
			FullDescription: &sarifMessage{
				Text: fmt.Sprintf("%s (%s check)", ee.Rule.Summary,
					defaults.GetCategoryReadableName(ee.Rule.CheckType)),
			},
			DefaultConfig: &sarifConfiguration{
				Level: severityToLevel(ee.Rule.Severity),
			},
			Help:       help,
			HelpURI:    helpURI,
			Properties: properties,
		}
	}

	var vulnIDs []string
	if ee.Evidence != nil {
		vulnIDs = ee.Evidence.VulnIDs
	}
	fingerprint := generateFingerprint(ruleID, ee.Component.Ref, vulnIDs)

	// Build result message with markdown
	var msgText string
	if ee.Result.Outcome == events.OutcomeError {
		msgText = fmt.Sprintf("Guardrail %s failed to evaluate %s: %s",
			ruleID, ee.Component.Ref, ee.Result.Err)
	} else {
		msgText = fmt.Sprintf("Guardrail violation: %s on %s", ruleID, ee.Component.Ref)
	}

	msgMarkdown := fmt.Sprintf(
		"**Guardrail Violation:** %s\n\n"+
			"| Property | Value |\n"+
			"|----------|-------|\n"+
			"| Component | `%s` |\n"+
			"| Check | %s |\n"+
			"| Severity | %s |\n"+
			"| Direct dependency | %t |",
		ruleID, ee.Component.Ref, ee.Rule.CheckType, ee.Rule.Severity, ee.Component.Direct)

	if len(vulnIDs) > 0 {
		msgMarkdown += fmt.Sprintf("\n| Advisories | %s |", strings.Join(vulnIDs, ", "))
	}

	artifactURI := sw.opts.ManifestPath
	if artifactURI == "" {
		artifactURI = ee.Component.Ref
	}

	result := sarifResult{
		RuleID: ruleID,
		Level:  severityToLevel(ee.Rule.Severity),
		Message: sarifMessage{
			Text:     msgText,
			Markdown: msgMarkdown,
		},
		Locations: []sarifLocation{
			{
				PhysicalLocation: &sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{
						URI: artifactURI,
					},
					Region: &sarifRegion{
						StartLine: 1,
					},
				},
				LogicalLocations: []sarifLogicalLocation{
					{
						Name:               ee.Component.Name,
						FullyQualifiedName: ee.Component.Ref,
						Kind:               "package",
					},
				},
			},
		},
		Fingerprints: map[string]string{
			"matchBasedId/v1": fingerprint,
		},
		Properties: map[string]any{
			"check_type":  ee.Rule.CheckType,
			"severity":    string(ee.Rule.Severity),
			"component":   ee.Component.Ref,
			"ecosystem":   ee.Component.Ecosystem,
			"direct":      ee.Component.Direct,
			"duration_ms": ee.Result.DurationMs,
		},
	}

	if len(vulnIDs) > 0 {
		result.Properties["vuln_ids"] = vulnIDs
	}

	sw.results = append(sw.results, result)

	return nil
}

// Flush is a no-op for SARIF writer.
// All results are written as a single document on Close.
func (sw *SARIFWriter) Flush() error { return nil }

// Close writes all buffered results as a complete SARIF 2.1.0 document.
// If the underlying writer implements io.Closer, it will be closed.
func (sw *SARIFWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	// Build rules array from map and sort by ID for deterministic output.
	rules := make([]sarifRule, 0, len(sw.rules))
	for _, rule := range sw.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].ID < rules[j].ID
	})

	// Ensure results is never nil so JSON encodes as [] not null per SARIF spec.
	results := sw.results
	if results == nil {
		results = make([]sarifResult, 0)
	}

	doc := sarifDocument{
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:            sw.opts.ToolName,
						Version:         sw.opts.ToolVersion,
						SemanticVersion: sw.opts.ToolVersion,
						InformationURI:  sw.opts.ToolURI,
						DownloadURI:     sw.opts.ToolDownloadURI,
						Organization:    sw.opts.Organization,
						Rules:           rules,
					},
				},
				Results:    results,
				ColumnKind: "utf16CodeUnits",
			},
		},
	}

	encoder := jsonutil.NewStreamEncoder(sw.w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("sarif: encode: %w", err)
	}

	if closer, ok := sw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for evaluation and violation events.
// These are the event types relevant for SARIF security reporting.
func (sw *SARIFWriter) SupportsEvent(eventType events.EventType) bool {
	return eventType == events.EventTypeEvaluation || eventType == events.EventTypeViolation
}
