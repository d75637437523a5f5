// Package sbom reads CycloneDX JSON bills of materials into component
// fact snapshots, so a guardrail run can start from the SBOM a build
// pipeline already produces instead of a hand-written facts file.
//
// The reader is deliberately minimal: component identities, package
// URLs, license declarations, and the dependency graph's direct edges.
// Components without a resolvable version are skipped; they cannot be
// matched against any advisory database.
package sbom

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/facts"
	"github.com/depgate/depgate/pkg/iohelper"
	"github.com/depgate/depgate/pkg/jsonutil"
)

// ErrNotCycloneDX marks input that is valid JSON but not a CycloneDX
// document.
var ErrNotCycloneDX = errors.New("sbom: not a CycloneDX document")

// CycloneDX 1.5 structures, limited to the fields the reader maps.

type bomDocument struct {
	BOMFormat    string          `json:"bomFormat"`
	SpecVersion  string          `json:"specVersion"`
	Version      int             `json:"version"`
	Metadata     bomMetadata     `json:"metadata"`
	Components   []bomComponent  `json:"components"`
	Dependencies []bomDependency `json:"dependencies"`
}

type bomMetadata struct {
	Timestamp string        `json:"timestamp"`
	Component *bomComponent `json:"component"`
}

type bomComponent struct {
	Type     string             `json:"type"`
	BOMRef   string             `json:"bom-ref"`
	Name     string             `json:"name"`
	Version  string             `json:"version"`
	PURL     string             `json:"purl"`
	Licenses []bomLicenseChoice `json:"licenses"`
}

type bomLicenseChoice struct {
	License    *bomLicense `json:"license"`
	Expression string      `json:"expression"`
}

type bomLicense struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bomDependency struct {
	Ref       string   `json:"ref"`
	DependsOn []string `json:"dependsOn"`
}

// IsCycloneDX reports whether the data looks like a CycloneDX JSON
// document. Used to dispatch between facts files and SBOMs.
func IsCycloneDX(data []byte) bool {
	var probe struct {
		BOMFormat string `json:"bomFormat"`
	}
	if err := jsonutil.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.BOMFormat == "CycloneDX"
}

// ReadFile reads a CycloneDX JSON file into snapshots.
func ReadFile(path string) ([]*facts.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sbom: open %s: %w", path, err)
	}
	defer f.Close()

	snaps, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("sbom: read %s: %w", path, err)
	}
	return snaps, nil
}

// Read parses a CycloneDX JSON document into snapshots, one per
// versioned component, sorted by component ref. Components listed
// under the root component's dependency entry are marked direct; a
// document without a dependency graph leaves every component
// transitive.
func Read(r io.Reader) ([]*facts.Snapshot, error) {
	data, err := iohelper.ReadBody(r, defaults.MaxSBOMSize+1)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > defaults.MaxSBOMSize {
		return nil, fmt.Errorf("document exceeds %d bytes", defaults.MaxSBOMSize)
	}

	var doc bomDocument
	if err := jsonutil.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if doc.BOMFormat != "CycloneDX" {
		return nil, ErrNotCycloneDX
	}
	if len(doc.Components) > defaults.MaxComponents {
		return nil, fmt.Errorf("document lists %d components (limit %d)", len(doc.Components), defaults.MaxComponents)
	}

	direct := directRefs(&doc)

	snaps := make([]*facts.Snapshot, 0, len(doc.Components))
	byRef := make(map[string]bool, len(doc.Components))
	for i := range doc.Components {
		snap, err := toSnapshot(&doc.Components[i], direct)
		if err != nil {
			return nil, fmt.Errorf("component %d (%s): %w", i, doc.Components[i].Name, err)
		}
		if snap == nil {
			continue
		}
		ref := snap.Component.Ref()
		if byRef[ref] {
			continue
		}
		byRef[ref] = true
		snaps = append(snaps, snap)
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Component.Ref() < snaps[j].Component.Ref()
	})
	return snaps, nil
}

// toSnapshot maps one BOM component, or returns nil for components
// that cannot be identified well enough to evaluate.
func toSnapshot(c *bomComponent, direct map[string]bool) (*facts.Snapshot, error) {
	name := c.Name
	version := c.Version
	ecosystem := ""

	if c.PURL != "" {
		p, err := parsePURL(c.PURL)
		if err != nil {
			return nil, err
		}
		// The purl is the canonical identity; bare name/version
		// fields fill any gap it leaves.
		ecosystem = p.Ecosystem
		if p.Name != "" {
			name = p.Name
		}
		if p.Version != "" {
			version = p.Version
		}
	}
	if name == "" || version == "" {
		return nil, nil
	}

	return &facts.Snapshot{
		Component: facts.Component{
			Name:      name,
			Version:   version,
			Ecosystem: ecosystem,
			Direct:    direct[c.BOMRef],
		},
		Licenses: componentLicenses(c),
	}, nil
}

// directRefs returns the bom-refs the root component depends on
// directly, or nil when the document names no root or no graph.
func directRefs(doc *bomDocument) map[string]bool {
	if doc.Metadata.Component == nil || doc.Metadata.Component.BOMRef == "" {
		return nil
	}
	root := doc.Metadata.Component.BOMRef
	for _, dep := range doc.Dependencies {
		if dep.Ref != root {
			continue
		}
		refs := make(map[string]bool, len(dep.DependsOn))
		for _, ref := range dep.DependsOn {
			refs[ref] = true
		}
		return refs
	}
	return nil
}

func componentLicenses(c *bomComponent) []string {
	var licenses []string
	for _, choice := range c.Licenses {
		switch {
		case choice.Expression != "":
			licenses = append(licenses, choice.Expression)
		case choice.License != nil && choice.License.ID != "":
			licenses = append(licenses, choice.License.ID)
		case choice.License != nil && choice.License.Name != "":
			licenses = append(licenses, choice.License.Name)
		}
	}
	return licenses
}

// purl is one parsed package URL.
type purl struct {
	Ecosystem string
	Name      string
	Version   string
}

// parsePURL parses the pkg:type/namespace/name@version form, dropping
// qualifiers and subpaths. Namespace joining follows each ecosystem's
// convention: maven uses group:artifact, everything else path slashes.
func parsePURL(raw string) (purl, error) {
	rest, ok := strings.CutPrefix(raw, "pkg:")
	if !ok {
		return purl{}, fmt.Errorf("purl %q: missing pkg scheme", raw)
	}
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}

	var version string
	if i := strings.LastIndexByte(rest, '@'); i >= 0 {
		version = rest[i+1:]
		rest = rest[:i]
	}

	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) < 2 || segments[0] == "" {
		return purl{}, fmt.Errorf("purl %q: missing type or name", raw)
	}
	ptype := strings.ToLower(segments[0])

	decoded := make([]string, 0, len(segments)-1)
	for _, seg := range segments[1:] {
		s, err := url.PathUnescape(seg)
		if err != nil {
			return purl{}, fmt.Errorf("purl %q: %w", raw, err)
		}
		decoded = append(decoded, s)
	}
	name := decoded[len(decoded)-1]
	namespace := strings.Join(decoded[:len(decoded)-1], "/")
	if name == "" {
		return purl{}, fmt.Errorf("purl %q: empty name", raw)
	}

	if namespace != "" {
		if ptype == "maven" {
			name = namespace + ":" + name
		} else {
			name = namespace + "/" + name
		}
	}

	version, err := url.PathUnescape(version)
	if err != nil {
		return purl{}, fmt.Errorf("purl %q: %w", raw, err)
	}

	return purl{
		Ecosystem: purlEcosystem(ptype),
		Name:      name,
		Version:   version,
	}, nil
}

// purlEcosystem translates purl types into the lowercase ecosystem
// tags snapshots carry. Most types already are the tag; the rest pass
// through unchanged and the OSV name mapping sorts them out.
func purlEcosystem(ptype string) string {
	switch ptype {
	case "golang":
		return "go"
	case "gem":
		return "rubygems"
	}
	return ptype
}
