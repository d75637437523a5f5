// Package presets embeds the bundled guardrail suites for distribution.
//
// This ensures a usable suite is available regardless of installation
// method (Homebrew, Docker, or manual download). The scan command falls
// back to these embedded suites when no -suite flag is given.
//
// Usage:
//
//	data, _ := presets.Suite("security")
package presets

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// FS contains all bundled guardrail suite YAML files.
//
//go:embed *.yaml
var FS embed.FS

// Names lists the available preset suite names, sorted.
func Names() []string {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	sort.Strings(names)
	return names
}

// Suite returns the YAML document for the named preset.
func Suite(name string) ([]byte, error) {
	data, err := FS.ReadFile(name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown preset %q (have: %s)", name, strings.Join(Names(), ", "))
	}
	return data, nil
}
