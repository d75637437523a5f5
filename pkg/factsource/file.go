package factsource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/iohelper"
	"github.com/depgate/depgate/pkg/jsonutil"
)

// Load reads snapshots from path: a single JSON document or a
// directory of them.
func Load(path string) ([]*facts.Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load facts: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// LoadFile reads one snapshot document. A file holds either a single
// snapshot object or an array of snapshots.
func LoadFile(path string) ([]*facts.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load facts: %w", err)
	}
	defer f.Close()

	// Read one byte past the limit so an oversized file is detected
	// rather than silently truncated.
	data, err := iohelper.ReadBody(f, defaults.MaxSBOMSize+1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(data) > defaults.MaxSBOMSize {
		return nil, fmt.Errorf("%s: document exceeds %d bytes", path, defaults.MaxSBOMSize)
	}

	snaps, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snaps, nil
}

// LoadDir reads every .json file in dir, non-recursively, in name
// order. When two files describe the same component, the later file
// wins, so a directory can layer local overrides on top of a base
// export. The result is ordered by component ref.
func LoadDir(dir string) ([]*facts.Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load facts: %w", err)
	}

	var merged []*facts.Snapshot
	byRef := make(map[string]int)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ".json") {
			continue
		}
		snaps, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		for _, snap := range snaps {
			ref := snap.Component.Ref()
			if i, ok := byRef[ref]; ok {
				merged[i] = snap
				continue
			}
			byRef[ref] = len(merged)
			merged = append(merged, snap)
		}
	}

	if len(merged) > defaults.MaxComponents {
		return nil, fmt.Errorf("%s: %w: %d (limit %d)", dir, ErrTooManyComponents, len(merged), defaults.MaxComponents)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Component.Ref() < merged[j].Component.Ref()
	})
	return merged, nil
}

// Decode parses an in-memory snapshot document, a single object or an
// array, with the same validation LoadFile applies. For callers that
// receive facts over a wire instead of from a file.
func Decode(data []byte) ([]*facts.Snapshot, error) {
	snaps, err := decodeSnapshots(data)
	if err != nil {
		return nil, err
	}
	for i, snap := range snaps {
		if err := validateSnapshot(snap); err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", i, err)
		}
	}
	if len(snaps) > defaults.MaxComponents {
		return nil, fmt.Errorf("%w: %d (limit %d)", ErrTooManyComponents, len(snaps), defaults.MaxComponents)
	}
	return snaps, nil
}

// decodeSnapshots accepts either one snapshot object or an array.
func decodeSnapshots(data []byte) ([]*facts.Snapshot, error) {
	switch firstToken(data) {
	case '[':
		var snaps []*facts.Snapshot
		if err := jsonutil.Unmarshal(data, &snaps); err != nil {
			return nil, fmt.Errorf("parse snapshots: %w", err)
		}
		return snaps, nil
	case '{':
		var snap facts.Snapshot
		if err := jsonutil.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("parse snapshot: %w", err)
		}
		return []*facts.Snapshot{&snap}, nil
	}
	return nil, fmt.Errorf("parse snapshot: document is not a JSON object or array")
}

// firstToken returns the first non-whitespace byte, or 0.
func firstToken(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}

func validateSnapshot(snap *facts.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("null snapshot")
	}
	if snap.Component.Name == "" {
		return fmt.Errorf("missing component name")
	}
	if snap.Component.Version == "" {
		return fmt.Errorf("component %s: missing version", snap.Component.Name)
	}
	return nil
}
