// Package validate provides guardrail suite lint functionality
package validate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/depgate/depgate/pkg/expr"
	"github.com/depgate/depgate/pkg/finding"
	"github.com/depgate/depgate/pkg/ui"
)

// ValidationResult holds the results of suite linting
type ValidationResult struct {
	TotalFiles        int      `json:"total_files"`
	TotalRules        int      `json:"total_rules"`
	Errors            []string `json:"errors"`
	Warnings          []string `json:"warnings"`
	DuplicateNames    []string `json:"duplicate_names"`
	MissingFields     []string `json:"missing_fields"`
	InvalidSeverities []string `json:"invalid_severities"`
	BrokenExpressions []string `json:"broken_expressions"`
	Valid             bool     `json:"valid"`
}

// RuleSchema represents the expected structure of a suite filter
type RuleSchema struct {
	Name      string `yaml:"name" json:"name"`
	CheckType string `yaml:"check_type" json:"check_type"`
	Summary   string `yaml:"summary" json:"summary"`
	Value     string `yaml:"value" json:"value"`
	// Optional fields
	Severity   string   `yaml:"severity,omitempty" json:"severity,omitempty"`
	References []string `yaml:"references,omitempty" json:"references,omitempty"`
}

// suiteDoc is a lenient mirror of the suite document so a single bad
// filter doesn't stop the lint of its neighbors.
type suiteDoc struct {
	Name    string                   `yaml:"name"`
	Filters []map[string]interface{} `yaml:"filters"`
}

var (
	// validSeverities mirrors exactly what the suite loader accepts.
	validSeverities = func() map[string]bool {
		sevs := finding.Ordered()
		m := make(map[string]bool, len(sevs))
		for _, s := range sevs {
			m[string(s)] = true
		}
		return m
	}()

	validCheckTypes = func() map[string]bool {
		cts := finding.CheckTypes()
		m := make(map[string]bool, len(cts))
		for _, c := range cts {
			m[string(c)] = true
		}
		return m
	}()

	requiredFields = []string{"name", "check_type", "summary", "value"}

	// Validation constants
	maxNameLength = 256

	green = func(a ...interface{}) string {
		s := fmt.Sprint(a...)
		if !ui.StdoutIsTerminal() {
			return s
		}
		return "\033[32m" + s + "\033[0m"
	}
	red = func(a ...interface{}) string {
		s := fmt.Sprint(a...)
		if !ui.StdoutIsTerminal() {
			return s
		}
		return "\033[31m" + s + "\033[0m"
	}
	yellow = func(a ...interface{}) string {
		s := fmt.Sprint(a...)
		if !ui.StdoutIsTerminal() {
			return s
		}
		return "\033[33m" + s + "\033[0m"
	}
	cyan = func(a ...interface{}) string {
		s := fmt.Sprint(a...)
		if !ui.StdoutIsTerminal() {
			return s
		}
		return "\033[36m" + s + "\033[0m"
	}
)

// ValidateSuites lints every suite file under the given path, which may be
// a single suite file or a directory of suites.
func ValidateSuites(path string, failFast bool, verbose bool) (*ValidationResult, error) {
	result := &ValidationResult{
		Valid: true,
	}

	if ui.UnicodeTerminal() {
		fmt.Println(cyan("╔════════════════════════════════════════════════════════════════╗"))
		fmt.Println(cyan("║                                                                ║"))
		fmt.Println(cyan("║    " + ui.Icon("🔍", ">") + " Guardrail Suite Validator                               ║"))
		fmt.Println(cyan("║                                                                ║"))
		fmt.Println(cyan("╚════════════════════════════════════════════════════════════════╝"))
	} else {
		fmt.Println(cyan("+================================================================+"))
		fmt.Println(cyan("|                                                                |"))
		fmt.Println(cyan("|    " + ui.Icon("🔍", ">") + " Guardrail Suite Validator                               |"))
		fmt.Println(cyan("|                                                                |"))
		fmt.Println(cyan("+================================================================+"))
	}
	fmt.Println()

	allRuleNames := make(map[string]string) // name -> file path

	suiteFiles, baseDir, err := collectSuiteFiles(path)
	if err != nil {
		return nil, err
	}

	result.TotalFiles = len(suiteFiles)
	fmt.Printf("   Found %d suite files\n", result.TotalFiles)
	fmt.Println()

	// Validate each file
	for _, filePath := range suiteFiles {
		relPath, _ := filepath.Rel(baseDir, filePath)
		if verbose {
			fmt.Printf("   Validating %s...\n", relPath)
		}

		data, err := os.ReadFile(filePath)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: cannot read file: %v", relPath, err))
			result.Valid = false
			continue
		}

		var doc suiteDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: YAML parse error: %v", relPath, err))
			result.Valid = false
			continue
		}

		if len(doc.Filters) == 0 {
			msg := fmt.Sprintf("%s: no filters defined", relPath)
			result.Errors = append(result.Errors, msg)
			result.Valid = false
			if failFast {
				return result, errors.New(msg)
			}
			continue
		}

		fileNames := make(map[string]bool, len(doc.Filters))
		for i, f := range doc.Filters {
			result.TotalRules++

			// Check required fields
			for _, field := range requiredFields {
				val, ok := f[field]
				if !ok || val == nil {
					msg := fmt.Sprintf("%s[%d]: missing required field '%s'", relPath, i, field)
					result.MissingFields = append(result.MissingFields, msg)
					result.Valid = false
					if failFast {
						return result, errors.New(msg)
					}
				}
			}

			// Check name uniqueness and validity
			if name, ok := f["name"].(string); ok {
				// Check for empty name
				if name == "" {
					msg := fmt.Sprintf("%s[%d]: rule name cannot be empty", relPath, i)
					result.Errors = append(result.Errors, msg)
					result.Valid = false
					if failFast {
						return result, errors.New(msg)
					}
					continue
				}

				// Check for whitespace in name
				trimmedName := strings.TrimSpace(name)
				if trimmedName != name || strings.ContainsAny(name, "\t\n\r") {
					msg := fmt.Sprintf("%s[%d]: rule name '%s' contains invalid whitespace", relPath, i, name)
					result.Errors = append(result.Errors, msg)
					result.Valid = false
					if failFast {
						return result, errors.New(msg)
					}
					continue
				}

				// Check for very long name
				if len(name) > maxNameLength {
					msg := fmt.Sprintf("%s[%d]: rule name too long (%d chars, max %d)", relPath, i, len(name), maxNameLength)
					result.Errors = append(result.Errors, msg)
					result.Valid = false
					if failFast {
						return result, errors.New(msg)
					}
					continue
				}

				// Within one document a duplicate name would fail the
				// suite load. Across documents it is only a hygiene
				// warning: suites are self-contained.
				if fileNames[name] {
					msg := fmt.Sprintf("Duplicate rule name '%s' in %s", name, relPath)
					result.DuplicateNames = append(result.DuplicateNames, msg)
					result.Valid = false
					if failFast {
						return result, errors.New(msg)
					}
				} else {
					fileNames[name] = true
					if existingFile, exists := allRuleNames[name]; exists {
						result.Warnings = append(result.Warnings,
							fmt.Sprintf("%s: rule name '%s' also defined in %s", relPath, name, existingFile))
					} else {
						allRuleNames[name] = relPath
					}
				}
			}

			// Validate severity
			if severity, ok := f["severity"].(string); ok && severity != "" {
				if !validSeverities[severity] {
					msg := fmt.Sprintf("%s[%d]: invalid severity '%s' (expected: %s)", relPath, i, severity, joinSeverities())
					result.InvalidSeverities = append(result.InvalidSeverities, msg)
					result.Valid = false
				}
			}

			// Validate check type
			if checkType, ok := f["check_type"].(string); ok && checkType != "" {
				if !validCheckTypes[checkType] {
					msg := fmt.Sprintf("%s[%d]: invalid check_type '%s' (expected: %s)", relPath, i, checkType, joinCheckTypes())
					result.Errors = append(result.Errors, msg)
					result.Valid = false
				}
			}

			// Validate the guard expression parses
			if value, ok := f["value"].(string); ok && value != "" {
				if _, err := expr.Parse(value); err != nil {
					msg := fmt.Sprintf("%s[%d]: expression does not parse: %v", relPath, i, err)
					result.BrokenExpressions = append(result.BrokenExpressions, msg)
					result.Valid = false
					if failFast {
						return result, errors.New(msg)
					}
				}
			}
		}
	}

	// Print summary
	fmt.Println()
	if ui.UnicodeTerminal() {
		fmt.Println(cyan("════════════════════════════════════════════════════════════════"))
		fmt.Println(cyan("                     VALIDATION SUMMARY"))
		fmt.Println(cyan("════════════════════════════════════════════════════════════════"))
	} else {
		fmt.Println(cyan("================================================================"))
		fmt.Println(cyan("                     VALIDATION SUMMARY"))
		fmt.Println(cyan("================================================================"))
	}
	fmt.Printf("   Files validated:    %d\n", result.TotalFiles)
	fmt.Printf("   Total rules:        %d\n", result.TotalRules)
	fmt.Printf("   Unique rule names:  %d\n", len(allRuleNames))
	fmt.Println()

	if len(result.Errors) > 0 {
		fmt.Printf("   %s Errors: %d\n", red(ui.Icon("✗", "x")), len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("      %s %s\n", red(ui.Icon("•", "-")), e)
		}
	}

	if len(result.DuplicateNames) > 0 {
		fmt.Printf("   %s Duplicate names: %d\n", red(ui.Icon("✗", "x")), len(result.DuplicateNames))
		for _, d := range result.DuplicateNames {
			fmt.Printf("      %s %s\n", red(ui.Icon("•", "-")), d)
		}
	}

	if len(result.MissingFields) > 0 {
		fmt.Printf("   %s Missing fields: %d\n", red(ui.Icon("✗", "x")), len(result.MissingFields))
		for _, m := range result.MissingFields {
			fmt.Printf("      %s %s\n", red(ui.Icon("•", "-")), m)
		}
	}

	if len(result.InvalidSeverities) > 0 {
		fmt.Printf("   %s Invalid severities: %d\n", red(ui.Icon("✗", "x")), len(result.InvalidSeverities))
		for _, s := range result.InvalidSeverities {
			fmt.Printf("      %s %s\n", red(ui.Icon("•", "-")), s)
		}
	}

	if len(result.BrokenExpressions) > 0 {
		fmt.Printf("   %s Broken expressions: %d\n", red(ui.Icon("✗", "x")), len(result.BrokenExpressions))
		for _, b := range result.BrokenExpressions {
			fmt.Printf("      %s %s\n", red(ui.Icon("•", "-")), b)
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("   %s Warnings: %d\n", yellow(ui.Icon("⚠", "!")), len(result.Warnings))
		if verbose {
			for _, w := range result.Warnings {
				fmt.Printf("      %s %s\n", yellow(ui.Icon("•", "-")), w)
			}
		}
	}

	fmt.Println()
	if result.Valid {
		fmt.Printf("   %s All validations passed!\n", green(ui.Icon("✓", "+")))
	} else {
		fmt.Printf("   %s Validation failed with %d error(s)\n", red(ui.Icon("✗", "x")),
			len(result.Errors)+len(result.DuplicateNames)+len(result.MissingFields)+
				len(result.InvalidSeverities)+len(result.BrokenExpressions))
	}

	return result, nil
}

// collectSuiteFiles resolves path to the list of suite files to lint and
// the directory relative paths are reported against.
func collectSuiteFiles(path string) ([]string, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("error scanning suite path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, filepath.Dir(path), nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && isSuiteFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("error scanning suite directory: %w", err)
	}
	return files, path, nil
}

func isSuiteFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func joinSeverities() string {
	sevs := finding.Ordered()
	parts := make([]string, len(sevs))
	for i, s := range sevs {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

func joinCheckTypes() string {
	cts := finding.CheckTypes()
	parts := make([]string, len(cts))
	for i, c := range cts {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
