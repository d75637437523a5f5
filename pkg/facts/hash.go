package facts

import (
	"strings"

	"github.com/spaolacci/murmur3"
)

// Fingerprint returns a stable 64-bit identity hash over the component
// coordinates. Reports carry it so results for the same component can be
// correlated across runs regardless of input ordering.
func (s *Snapshot) Fingerprint() uint64 {
	key := strings.Join([]string{
		s.Component.Ecosystem,
		s.Component.Name,
		s.Component.Version,
	}, "\x00")
	return murmur3.Sum64([]byte(key))
}
