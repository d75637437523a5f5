package writers

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*JUnitWriter)(nil)

// JUnitWriter writes events in JUnit XML format for CI/CD integration.
// Each guardrail evaluation becomes a test case, grouped into one test
// suite per check type. Jenkins, GitLab CI, CircleCI, and Azure DevOps
// all render this format natively.
//
// Outcome mapping:
//   - triggered -> <failure> (the guardrail fired, the pipeline should gate)
//   - error     -> <error>   (the rule could not be evaluated)
//   - skipped   -> <skipped>
//   - pass      -> plain passing test case
type JUnitWriter struct {
	w      io.Writer
	mu     sync.Mutex
	opts   JUnitOptions
	suites map[string]*junitSuiteBuilder
	start  time.Time
}

// JUnitOptions configures the JUnit writer.
type JUnitOptions struct {
	// SuiteName is the top-level testsuites name (default: depgate).
	SuiteName string

	// IncludeEvidence adds expression and observed facts as system-out.
	IncludeEvidence bool
}

// junitSuiteBuilder accumulates test cases for one check type.
type junitSuiteBuilder struct {
	name     string
	cases    []junitTestCase
	failures int
	errors   int
	skipped  int
	time     float64
	first    time.Time
}

// JUnit XML structures.

type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      string          `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	Cases     []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	ClassName string        `xml:"classname,attr"`
	Name      string        `xml:"name,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Error     *junitError   `xml:"error,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type junitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// NewJUnitWriter creates a new JUnit XML writer.
// The writer buffers all test cases and writes a complete document on Close.
// The writer is safe for concurrent use.
func NewJUnitWriter(w io.Writer, opts JUnitOptions) *JUnitWriter {
	if opts.SuiteName == "" {
		opts.SuiteName = defaults.ToolName
	}
	return &JUnitWriter{
		w:      w,
		opts:   opts,
		suites: make(map[string]*junitSuiteBuilder),
		start:  time.Now(),
	}
}

// Write converts an evaluation event to a JUnit test case.
func (jw *JUnitWriter) Write(event events.Event) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	ee, ok := event.(*events.EvaluationEvent)
	if !ok {
		return nil // Skip non-evaluation events
	}

	suiteName := defaults.GetCategoryReadableName(ee.Rule.CheckType)
	suite, exists := jw.suites[suiteName]
	if !exists {
		suite = &junitSuiteBuilder{name: suiteName, first: ee.Timestamp()}
		jw.suites[suiteName] = suite
	}

	durationSec := ee.Result.DurationMs / 1000.0
	tc := junitTestCase{
		ClassName: ee.Component.Ref,
		Name:      ee.Rule.Name,
		Time:      fmt.Sprintf("%.3f", durationSec),
	}

	switch ee.Result.Outcome {
	case events.OutcomeTriggered:
		suite.failures++
		tc.Failure = &junitFailure{
			Message: fmt.Sprintf("guardrail %s triggered on %s", ee.Rule.Name, ee.Component.Ref),
			Type:    "violation",
			Content: violationDetail(ee),
		}
	case events.OutcomeError:
		suite.errors++
		tc.Error = &junitError{
			Message: ee.Result.Err,
			Type:    "evaluation-error",
			Content: fmt.Sprintf("rule %s could not be evaluated against %s: %s",
				ee.Rule.Name, ee.Component.Ref, ee.Result.Err),
		}
	case events.OutcomeSkipped:
		suite.skipped++
		tc.Skipped = &junitSkipped{
			Message: fmt.Sprintf("rule %s skipped for %s", ee.Rule.Name, ee.Component.Ref),
		}
	}

	if jw.opts.IncludeEvidence && ee.Evidence != nil {
		tc.SystemOut = evidenceDetail(ee.Evidence)
	}

	suite.cases = append(suite.cases, tc)
	suite.time += durationSec

	return nil
}

// violationDetail renders the failure body for a triggered guardrail.
func violationDetail(ee *events.EvaluationEvent) string {
	detail := fmt.Sprintf("component: %s\ncheck: %s\nseverity: %s\nsummary: %s",
		ee.Component.Ref, ee.Rule.CheckType, ee.Rule.Severity, ee.Rule.Summary)
	if ee.Evidence != nil && len(ee.Evidence.VulnIDs) > 0 {
		detail += "\nadvisories:"
		for _, id := range ee.Evidence.VulnIDs {
			detail += fmt.Sprintf("\n  - %s", id)
		}
	}
	return detail
}

// evidenceDetail renders expression evidence for system-out.
func evidenceDetail(ev *events.Evidence) string {
	out := ""
	if ev.Expression != "" {
		out += fmt.Sprintf("expression: %s\n", ev.Expression)
	}
	if ev.Observed != "" {
		out += fmt.Sprintf("observed: %s\n", ev.Observed)
	}
	return out
}

// Flush is a no-op for JUnit writer.
// All test cases are written as a single document on Close.
func (jw *JUnitWriter) Flush() error { return nil }

// Close writes all buffered test cases as a complete JUnit XML document.
// If the underlying writer implements io.Closer, it will be closed.
func (jw *JUnitWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	names := make([]string, 0, len(jw.suites))
	for name := range jw.suites {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := junitTestSuites{
		Name: jw.opts.SuiteName,
	}
	var totalTime float64
	for _, name := range names {
		sb := jw.suites[name]
		suite := junitTestSuite{
			Name:     sb.name,
			Tests:    len(sb.cases),
			Failures: sb.failures,
			Errors:   sb.errors,
			Skipped:  sb.skipped,
			Time:     fmt.Sprintf("%.3f", sb.time),
			Cases:    sb.cases,
		}
		if !sb.first.IsZero() {
			suite.Timestamp = sb.first.UTC().Format(time.RFC3339)
		}
		doc.Suites = append(doc.Suites, suite)
		doc.Tests += suite.Tests
		doc.Failures += suite.Failures
		doc.Errors += suite.Errors
		doc.Skipped += suite.Skipped
		totalTime += sb.time
	}
	doc.Time = fmt.Sprintf("%.3f", totalTime)

	if _, err := jw.w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("junit: write header: %w", err)
	}
	encoder := xml.NewEncoder(jw.w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("junit: encode: %w", err)
	}
	if _, err := jw.w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("junit: write trailer: %w", err)
	}

	if closer, ok := jw.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SupportsEvent returns true for evaluation events only.
func (jw *JUnitWriter) SupportsEvent(eventType events.EventType) bool {
	return eventType == events.EventTypeEvaluation
}
