package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/signalpress/signalpress/internal/metrics"
	"github.com/signalpress/signalpress/pkg/contracts"
)

// perTierTimeout bounds each tier's invalidation latency, per spec.md
// §4.6: "a per-tier timeout bounds total latency to 5s; tier failures
// are reported but do not abort other tiers."
const perTierTimeout = 5 * time.Second

// Builder computes the artifact for a cache key on a miss.
type Builder func(ctx context.Context, key string) (string, error)

// InvalidateResult is one tier's outcome, for the aggregate response.
type InvalidateResult struct {
	Tier  string
	Count int
	Error string
}

// Coordinator fans invalidation out across every configured tier and
// collapses concurrent builds for the same key into a single call.
type Coordinator struct {
	tiers []contracts.CacheTier
	group singleflight.Group

	mu          sync.Mutex
	oldestEntry time.Time
}

func NewCoordinator(tiers ...contracts.CacheTier) *Coordinator {
	return &Coordinator{tiers: tiers}
}

// GetOrBuild returns the cached artifact for key from the first tier
// that has it, or builds it via build on a miss. Concurrent misses for
// the same key collapse to a single build call (spec.md §4.6, §8
// property 8): all callers observe the same artifact or the same
// error.
func (c *Coordinator) GetOrBuild(ctx context.Context, key string, ttl time.Duration, build Builder) (string, error) {
	for _, t := range c.tiers {
		if v, ok, err := t.Get(ctx, key); err == nil && ok {
			return v, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, buildErr := build(ctx, key)
		if buildErr != nil {
			return "", buildErr
		}
		for _, t := range c.tiers {
			_ = t.Set(ctx, key, value, ttl)
		}
		c.mu.Lock()
		if c.oldestEntry.IsZero() {
			c.oldestEntry = time.Now()
		}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate fans {keys, pattern, tags} out to every tier in parallel,
// bounding each tier to perTierTimeout. A tier's failure or timeout is
// reported in its own result but never aborts the others.
func (c *Coordinator) Invalidate(ctx context.Context, keys []string, pattern string, tags []string) []InvalidateResult {
	results := make([]InvalidateResult, len(c.tiers))
	var wg sync.WaitGroup

	for i, t := range c.tiers {
		wg.Add(1)
		go func(i int, t contracts.CacheTier) {
			defer wg.Done()
			tierCtx, cancel := context.WithTimeout(ctx, perTierTimeout)
			defer cancel()

			n, err := t.Invalidate(tierCtx, keys, pattern, tags)
			res := InvalidateResult{Tier: t.Name(), Count: n}
			if err != nil {
				res.Error = err.Error()
			}
			metrics.CacheInvalidationsTotal.WithLabelValues(t.Name()).Add(float64(n))
			results[i] = res
		}(i, t)
	}

	wg.Wait()
	return results
}

// Ping checks every configured tier's reachability, bounded by
// perTierTimeout, without touching hit/miss stats the way a Get would.
// Used by the Ready handler's cache check (spec.md §6.1).
func (c *Coordinator) Ping(ctx context.Context) map[string]string {
	results := make(map[string]string, len(c.tiers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, t := range c.tiers {
		wg.Add(1)
		go func(t contracts.CacheTier) {
			defer wg.Done()
			tierCtx, cancel := context.WithTimeout(ctx, perTierTimeout)
			defer cancel()

			status := "ok"
			if err := t.Ping(tierCtx); err != nil {
				status = "error: " + err.Error()
			}
			mu.Lock()
			results[t.Name()] = status
			mu.Unlock()
		}(t)
	}

	wg.Wait()
	return results
}

// Stats returns spec.md §6.1's GetCacheStats shape: hits, misses,
// hit_rate, miss_rate, total_keys, evictions, memory_usage_mb,
// avg_ttl_seconds, oldest_key_age_seconds, and per-tier enablement.
func (c *Coordinator) Stats(local *LocalTier) map[string]interface{} {
	hits, misses, evictions, size := local.Stats()
	total := hits + misses
	hitRate, missRate := 0.0, 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
		missRate = float64(misses) / float64(total)
	}

	cacheTargets := make(map[string]bool, len(c.tiers))
	for _, t := range c.tiers {
		cacheTargets[t.Name()] = true
	}

	c.mu.Lock()
	oldest := c.oldestEntry
	c.mu.Unlock()
	oldestAgeSeconds := 0.0
	if !oldest.IsZero() {
		oldestAgeSeconds = time.Since(oldest).Seconds()
	}

	return map[string]interface{}{
		"hits":                   hits,
		"misses":                 misses,
		"hit_rate":               hitRate,
		"miss_rate":              missRate,
		"total_keys":             size,
		"evictions":              evictions,
		"memory_usage_mb":        float64(local.MemoryUsageBytes()) / (1024 * 1024),
		"avg_ttl_seconds":        local.AvgTTLSeconds(),
		"oldest_key_age_seconds": oldestAgeSeconds,
		"cache_targets":          cacheTargets,
	}
}
