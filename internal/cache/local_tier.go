// Package cache implements ContentCache/CacheCoordinator (spec.md §4.6):
// at-most-one concurrent build per key, tag/TTL invalidation fanned out
// across tiers (local, shared, cdn, api) with a bounded per-tier
// timeout, and hit/miss/eviction stats.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   string
	expires time.Time
	tags    []string
}

// LocalTier is an in-process map-backed tier, always enabled.
type LocalTier struct {
	mu      sync.Mutex
	entries map[string]entry
	hits    int64
	misses  int64
	evicts  int64
}

func NewLocalTier() *LocalTier {
	return &LocalTier{entries: make(map[string]entry)}
}

func (t *LocalTier) Name() string { return "local" }

func (t *LocalTier) Get(_ context.Context, key string) (string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		t.misses++
		return "", false, nil
	}
	if time.Now().After(e.expires) {
		delete(t.entries, key)
		t.evicts++
		t.misses++
		return "", false, nil
	}
	t.hits++
	return e.value, true, nil
}

func (t *LocalTier) Set(_ context.Context, key, value string, ttl time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = entry{value: value, expires: time.Now().Add(ttl)}
	return nil
}

// SetTagged is Set plus a tag set, used by invalidation-by-tag.
func (t *LocalTier) SetTagged(key, value string, ttl time.Duration, tags []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = entry{value: value, expires: time.Now().Add(ttl), tags: tags}
}

func (t *LocalTier) Invalidate(_ context.Context, keys []string, pattern string, tags []string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, k := range keys {
		if _, ok := t.entries[k]; ok {
			delete(t.entries, k)
			n++
		}
	}
	for k, e := range t.entries {
		if pattern != "" && matchPattern(pattern, k) {
			delete(t.entries, k)
			n++
			continue
		}
		if len(tags) > 0 && hasAnyTag(e.tags, tags) {
			delete(t.entries, k)
			n++
		}
	}
	return n, nil
}

// Ping always succeeds: the local tier is an in-process map, never
// actually unreachable.
func (t *LocalTier) Ping(_ context.Context) error { return nil }

func (t *LocalTier) Stats() (hits, misses, evictions int64, size int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hits, t.misses, t.evicts, len(t.entries)
}

// MemoryUsageBytes approximates resident size as the sum of key and
// value byte lengths, good enough for spec.md §4.6's "approximate
// memory" stat without tracking per-entry allocations.
func (t *LocalTier) MemoryUsageBytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total int64
	for k, e := range t.entries {
		total += int64(len(k) + len(e.value))
	}
	return total
}

// AvgTTLSeconds returns the mean remaining time-to-live across live
// entries, as of now.
func (t *LocalTier) AvgTTLSeconds() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == 0 {
		return 0
	}
	now := time.Now()
	var total float64
	for _, e := range t.entries {
		remaining := e.expires.Sub(now).Seconds()
		if remaining > 0 {
			total += remaining
		}
	}
	return total / float64(len(t.entries))
}

func hasAnyTag(entryTags, want []string) bool {
	set := make(map[string]bool, len(entryTags))
	for _, t := range entryTags {
		set[t] = true
	}
	for _, w := range want {
		if set[w] {
			return true
		}
	}
	return false
}

// matchPattern supports a single trailing "*" wildcard, the common
// case for tag-free prefix invalidation (e.g. "doc:123:*").
func matchPattern(pattern, key string) bool {
	if len(pattern) == 0 {
		return false
	}
	if pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(key) >= len(prefix) && key[:len(prefix)] == prefix
	}
	return pattern == key
}
