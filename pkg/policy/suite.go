// Package policy loads guardrail suites and evaluates their rules against
// component fact snapshots.
//
// A suite is a YAML document of named filters. Loading validates the
// document as a whole: a duplicate rule name or a malformed rule fails the
// entire load, never a partial suite. Compiling is per-rule: a filter whose
// expression does not parse is kept, marked broken, and reported, while the
// rest of the suite stays usable.
package policy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spaolacci/murmur3"
	"gopkg.in/yaml.v3"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/finding"
)

// ErrSuiteNotFound is returned when a suite file does not exist.
var ErrSuiteNotFound = errors.New("suite file not found")

// ErrInvalidSuite is returned when a suite document is malformed.
var ErrInvalidSuite = errors.New("invalid suite")

// Rule is one guardrail: a named boolean expression over component facts.
// A rule whose expression evaluates to true is triggered, meaning the
// guardrail is violated.
type Rule struct {
	Name       string            `yaml:"name" json:"name"`
	CheckType  finding.CheckType `yaml:"check_type" json:"check_type"`
	Summary    string            `yaml:"summary" json:"summary"`
	Value      string            `yaml:"value" json:"value"`
	Severity   finding.Severity  `yaml:"severity,omitempty" json:"severity,omitempty"`
	References []string          `yaml:"references,omitempty" json:"references,omitempty"`
}

// Suite is an ordered collection of rules from one document.
type Suite struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Filters     []Rule   `yaml:"filters" json:"filters"`

	raw []byte
}

// Load reads and parses a suite file.
// Returns ErrSuiteNotFound if the file doesn't exist.
// Returns ErrInvalidSuite if the document is malformed.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSuiteNotFound, path)
		}
		return nil, fmt.Errorf("reading suite file: %w", err)
	}
	if len(data) > defaults.MaxSuiteSize {
		return nil, fmt.Errorf("%s: %w: document exceeds %d bytes", path, ErrInvalidSuite, defaults.MaxSuiteSize)
	}

	suite, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return suite, nil
}

// Parse parses suite YAML data. Document-level violations (bad YAML, no
// filters, duplicate or malformed rules) fail the whole parse; no partial
// suite is ever returned.
func Parse(data []byte) (*Suite, error) {
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuite, err)
	}
	suite.raw = data

	if len(suite.Filters) == 0 {
		return nil, fmt.Errorf("%w: no filters defined", ErrInvalidSuite)
	}

	seen := make(map[string]bool, len(suite.Filters))
	for i := range suite.Filters {
		r := &suite.Filters[i]
		if err := normalizeRule(r, i); err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("%w: duplicate rule name %q", ErrInvalidSuite, r.Name)
		}
		seen[r.Name] = true
	}

	return &suite, nil
}

// normalizeRule enforces the per-rule schema and fills severity defaults.
func normalizeRule(r *Rule, idx int) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return fmt.Errorf("%w: filter %d has no name", ErrInvalidSuite, idx)
	}
	if strings.TrimSpace(r.Value) == "" {
		return fmt.Errorf("%w: rule %q has no value", ErrInvalidSuite, r.Name)
	}
	if r.CheckType == "" {
		return fmt.Errorf("%w: rule %q has no check_type", ErrInvalidSuite, r.Name)
	}
	if !r.CheckType.IsValid() {
		return fmt.Errorf("%w: rule %q: invalid check_type %q", ErrInvalidSuite, r.Name, r.CheckType)
	}
	if r.Severity == "" {
		r.Severity = r.CheckType.DefaultSeverity()
	} else if !r.Severity.IsValid() {
		return fmt.Errorf("%w: rule %q: invalid severity %q", ErrInvalidSuite, r.Name, r.Severity)
	}
	return nil
}

// Rule returns the named rule.
func (s *Suite) Rule(name string) (Rule, bool) {
	for _, r := range s.Filters {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

// Fingerprint returns a stable 64-bit hash of the suite document bytes.
// CI logs carry it so a report can prove which policy revision gated a
// build.
func (s *Suite) Fingerprint() uint64 {
	return murmur3.Sum64(s.raw)
}

// String returns a human-readable representation of the suite.
func (s *Suite) String() string {
	if s.Name != "" {
		return fmt.Sprintf("Suite(%s, %d filters)", s.Name, len(s.Filters))
	}
	return fmt.Sprintf("Suite(%d filters)", len(s.Filters))
}
