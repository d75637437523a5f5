package facts

import (
	"fmt"
	"strings"
)

// ParseRef parses a component coordinate into a Component. Accepted
// forms are "ecosystem/name@version" (the Ref format), "name@version",
// and purl-style "pkg:ecosystem/name@version". Scoped npm names like
// "npm/@types/node@20.1.0" keep their @ prefix.
func ParseRef(ref string) (Component, error) {
	raw := strings.TrimSpace(ref)
	if raw == "" {
		return Component{}, fmt.Errorf("empty component ref")
	}
	raw = strings.TrimPrefix(raw, "pkg:")

	at := strings.LastIndex(raw, "@")
	if at <= 0 || at == len(raw)-1 {
		return Component{}, fmt.Errorf("component ref %q: want ecosystem/name@version", ref)
	}
	coord, version := raw[:at], raw[at+1:]

	var c Component
	c.Version = version
	if slash := strings.Index(coord, "/"); slash > 0 {
		c.Ecosystem = strings.ToLower(coord[:slash])
		c.Name = coord[slash+1:]
	} else {
		c.Name = coord
	}
	if c.Name == "" {
		return Component{}, fmt.Errorf("component ref %q: empty package name", ref)
	}
	return c, nil
}
