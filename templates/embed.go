// Package templates embeds the bundled gate policies and output
// templates for distribution.
//
// This ensures they are available regardless of installation method
// (Homebrew, Docker, or manual download). The scan command resolves
// bare -gate and -template names against these before touching disk.
//
// Usage:
//
//	data, _ := templates.GatePolicy("strict")
//	src, _ := templates.OutputTemplate("gitlab")
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// FS contains the bundled gate policy and output template files.
// Subdirectory structure matches the on-disk templates/ layout minus
// this Go file.
//
//go:embed policies/*.yaml output/*.tmpl
var FS embed.FS

func names(dir, ext string) []string {
	entries, err := fs.ReadDir(FS, dir)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ext) {
			out = append(out, strings.TrimSuffix(e.Name(), ext))
		}
	}
	sort.Strings(out)
	return out
}

// GatePolicies lists the bundled gate policy names, sorted.
func GatePolicies() []string {
	return names("policies", ".yaml")
}

// GatePolicy returns the YAML document for the named bundled gate policy.
func GatePolicy(name string) ([]byte, error) {
	data, err := FS.ReadFile("policies/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown gate policy %q (have: %s)",
			name, strings.Join(GatePolicies(), ", "))
	}
	return data, nil
}

// OutputTemplates lists the bundled output template names, sorted.
func OutputTemplates() []string {
	return names("output", ".tmpl")
}

// OutputTemplate returns the source of the named bundled output template.
func OutputTemplate(name string) (string, error) {
	data, err := FS.ReadFile("output/" + name + ".tmpl")
	if err != nil {
		return "", fmt.Errorf("unknown output template %q (have: %s)",
			name, strings.Join(OutputTemplates(), ", "))
	}
	return string(data), nil
}
