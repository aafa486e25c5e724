package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrBuildCollapsesConcurrentMissesIntoOneBuild(t *testing.T) {
	local := NewLocalTier()
	c := NewCoordinator(local)

	var builds int32
	build := func(_ context.Context, key string) (string, error) {
		atomic.AddInt32(&builds, 1)
		time.Sleep(20 * time.Millisecond)
		return "value-for-" + key, nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrBuild(context.Background(), "k1", time.Minute, build)
			if err != nil {
				t.Errorf("GetOrBuild: %v", err)
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&builds); got != 1 {
		t.Fatalf("expected exactly 1 build call for concurrent misses, got %d", got)
	}
	for _, v := range results {
		if v != "value-for-k1" {
			t.Fatalf("expected every caller to observe the same built value, got %q", v)
		}
	}
}

func TestGetOrBuildServesFromTierOnHitWithoutRebuilding(t *testing.T) {
	local := NewLocalTier()
	c := NewCoordinator(local)
	local.Set(context.Background(), "k1", "cached", time.Minute)

	called := false
	v, err := c.GetOrBuild(context.Background(), "k1", time.Minute, func(context.Context, string) (string, error) {
		called = true
		return "rebuilt", nil
	})
	if err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	if called {
		t.Fatal("expected a tier hit to skip the builder entirely")
	}
	if v != "cached" {
		t.Fatalf("expected the cached value, got %q", v)
	}
}

func TestInvalidateFansOutAcrossEveryTierIndependently(t *testing.T) {
	local := NewLocalTier()
	fixtureA := NewFixtureTier("cdn")
	fixtureB := NewFixtureTier("api")
	c := NewCoordinator(local, fixtureA, fixtureB)

	local.Set(context.Background(), "k1", "v", time.Minute)
	fixtureA.Set(context.Background(), "k1", "v", time.Minute)
	fixtureB.Set(context.Background(), "k1", "v", time.Minute)

	results := c.Invalidate(context.Background(), []string{"k1"}, "", nil)
	if len(results) != 3 {
		t.Fatalf("expected a result per tier, got %d", len(results))
	}
	for _, r := range results {
		if r.Error != "" {
			t.Fatalf("tier %s reported an error: %s", r.Tier, r.Error)
		}
		if r.Count != 1 {
			t.Fatalf("tier %s expected 1 invalidated key, got %d", r.Tier, r.Count)
		}
	}
	if fixtureA.Calls() != 1 || fixtureB.Calls() != 1 {
		t.Fatal("expected every fixture tier to observe exactly one invalidation call")
	}
}

type erroringTier struct{ name string }

func (t *erroringTier) Name() string { return t.name }
func (t *erroringTier) Get(context.Context, string) (string, bool, error) {
	return "", false, fmt.Errorf("unreachable")
}
func (t *erroringTier) Set(context.Context, string, string, time.Duration) error { return nil }
func (t *erroringTier) Invalidate(context.Context, []string, string, []string) (int, error) {
	return 0, fmt.Errorf("unreachable")
}
func (t *erroringTier) Ping(context.Context) error { return fmt.Errorf("unreachable") }

func TestInvalidateReportsOneTierFailureWithoutAbortingOthers(t *testing.T) {
	local := NewLocalTier()
	bad := &erroringTier{name: "shared"}
	c := NewCoordinator(local, bad)

	local.Set(context.Background(), "k1", "v", time.Minute)

	results := c.Invalidate(context.Background(), []string{"k1"}, "", nil)
	var sawGoodTier, sawBadTier bool
	for _, r := range results {
		if r.Tier == "local" && r.Error == "" && r.Count == 1 {
			sawGoodTier = true
		}
		if r.Tier == "shared" && r.Error != "" {
			sawBadTier = true
		}
	}
	if !sawGoodTier || !sawBadTier {
		t.Fatalf("expected local to succeed and shared to report its own error, got %+v", results)
	}
}

func TestPingReportsPerTierReachability(t *testing.T) {
	local := NewLocalTier()
	bad := &erroringTier{name: "shared"}
	c := NewCoordinator(local, bad)

	results := c.Ping(context.Background())
	if results["local"] != "ok" {
		t.Fatalf("expected local tier to be reachable, got %q", results["local"])
	}
	if results["shared"] == "ok" {
		t.Fatal("expected the erroring tier to report unreachable")
	}
}

func TestPingDoesNotPolluteHitMissStats(t *testing.T) {
	local := NewLocalTier()
	c := NewCoordinator(local)

	c.Ping(context.Background())
	c.Ping(context.Background())

	hits, misses, _, _ := local.Stats()
	if hits != 0 || misses != 0 {
		t.Fatalf("expected Ping to leave hit/miss stats untouched, got hits=%d misses=%d", hits, misses)
	}
}
