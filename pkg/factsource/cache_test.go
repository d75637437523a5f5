package factsource

import (
	"testing"
	"time"

	"github.com/depgate/depgate/pkg/duration"
)

func TestCacheSetGet(t *testing.T) {
	t.Parallel()

	c := NewCache[string](time.Minute)
	defer c.Close()

	c.Set("GHSA-aaaa", "record")
	got, ok := c.Get("GHSA-aaaa")
	if !ok || got != "record" {
		t.Errorf("Get = %q, %v, want record, true", got, ok)
	}

	if _, ok := c.Get("GHSA-bbbb"); ok {
		t.Error("Get on absent key = hit, want miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	t.Parallel()

	c := NewCache[int](20 * time.Millisecond)
	defer c.Close()

	c.Set("k", 7)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("fresh entry missing")
	}

	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expired entry still served")
	}
	if c.Len() != 0 {
		t.Errorf("Len after expired Get = %d, want 0", c.Len())
	}
}

func TestCacheDelete(t *testing.T) {
	t.Parallel()

	c := NewCache[string](time.Minute)
	defer c.Close()

	c.Set("k", "v")
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("deleted entry still served")
	}
}

func TestCacheStats(t *testing.T) {
	t.Parallel()

	c := NewCache[string](time.Minute)
	defer c.Close()

	c.Set("k", "v")
	c.Get("k")
	c.Get("k")
	c.Get("absent")

	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("Stats = %d hits, %d misses, want 2, 1", hits, misses)
	}
}

func TestCacheDefaultTTL(t *testing.T) {
	t.Parallel()

	c := NewCache[string](0)
	defer c.Close()

	if c.ttl != duration.CacheFacts {
		t.Errorf("ttl = %v, want %v", c.ttl, duration.CacheFacts)
	}
}

func TestCacheCloseIdempotent(t *testing.T) {
	t.Parallel()

	c := NewCache[string](time.Minute)
	c.Close()
	c.Close()

	// Still usable after Close, entries just stop being swept.
	c.Set("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Error("cache unusable after Close")
	}
}

func TestCacheEvictionSweep(t *testing.T) {
	t.Parallel()

	c := NewCache[int](15 * time.Millisecond)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)

	// The sweep runs at twice the TTL; wait for it rather than Get so
	// lazy expiry cannot be what removes the entries.
	deadline := time.After(500 * time.Millisecond)
	for c.Len() > 0 {
		select {
		case <-deadline:
			t.Fatalf("eviction sweep left %d entries", c.Len())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
