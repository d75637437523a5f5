// pkg/input/refs.go
package input

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// RefSource consolidates all component reference input methods.
// Refs are component coordinates such as "npm/lodash@4.17.20" or
// purl-style "pkg:npm/lodash@4.17.20".
type RefSource struct {
	Refs     []string // From -c flags (repeated or comma-separated via StringSliceFlag)
	ListFile string   // From -l flag
	Stdin    bool     // Pipe input detection
}

// GetRefs returns the deduplicated component reference list
func (rs *RefSource) GetRefs() ([]string, error) {
	var refs []string
	seen := make(map[string]bool)

	add := func(r string) {
		r = strings.TrimSpace(r)
		if r == "" || strings.HasPrefix(r, "#") {
			return
		}
		if !seen[r] {
			seen[r] = true
			refs = append(refs, r)
		}
	}

	// 1. From Refs slice
	for _, r := range rs.Refs {
		add(r)
	}

	// 2. From file
	if rs.ListFile != "" {
		lines, err := readLines(rs.ListFile)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			add(line)
		}
	}

	// 3. From stdin (if enabled and stdin is a pipe)
	if rs.Stdin {
		lines, err := readStdin()
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			add(line)
		}
	}

	return refs, nil
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func readStdin() ([]string, error) {
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		// Not a pipe, return empty
		return nil, nil
	}

	var lines []string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// GetSingleRef returns the first reference or an error if none provided
// Use this for commands that operate on a single component
func (rs *RefSource) GetSingleRef() (string, error) {
	refs, err := rs.GetRefs()
	if err != nil {
		return "", err
	}
	if len(refs) == 0 {
		return "", fmt.Errorf("no components specified")
	}
	if len(refs) > 1 {
		fmt.Fprintf(os.Stderr, "[WARN] Multiple components provided, using first: %s\n", refs[0])
	}
	return refs[0], nil
}
