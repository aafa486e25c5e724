package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisTier(t *testing.T) *RedisTier {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewRedisTier(mr.Addr())
}

func TestRedisTierGetSet(t *testing.T) {
	tier := newTestRedisTier(t)
	ctx := context.Background()

	if _, ok, err := tier.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := tier.Set(ctx, "doc-1:email", "<html>hello</html>", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := tier.Get(ctx, "doc-1:email")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if v != "<html>hello</html>" {
		t.Fatalf("got value %q", v)
	}
}

func TestRedisTierInvalidateByKey(t *testing.T) {
	tier := newTestRedisTier(t)
	ctx := context.Background()

	tier.Set(ctx, "doc-1:web", "v1", time.Minute)
	n, err := tier.Invalidate(ctx, []string{"doc-1:web"}, "", nil)
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 invalidated, got %d", n)
	}

	if _, ok, _ := tier.Get(ctx, "doc-1:web"); ok {
		t.Fatal("expected key to be gone after invalidation")
	}
}

func TestRedisTierInvalidateByPattern(t *testing.T) {
	tier := newTestRedisTier(t)
	ctx := context.Background()

	tier.Set(ctx, "doc-1:email", "v1", time.Minute)
	tier.Set(ctx, "doc-1:web", "v2", time.Minute)
	tier.Set(ctx, "doc-2:email", "v3", time.Minute)

	n, err := tier.Invalidate(ctx, nil, "doc-1:*", nil)
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 invalidated for doc-1:*, got %d", n)
	}

	if _, ok, _ := tier.Get(ctx, "doc-2:email"); !ok {
		t.Fatal("doc-2:email should survive a doc-1:* invalidation")
	}
}

func TestRedisTierInvalidateByTag(t *testing.T) {
	tier := newTestRedisTier(t)
	ctx := context.Background()

	if err := tier.SetTagged(ctx, "doc-1:email", "v1", time.Minute, []string{"document:doc-1"}); err != nil {
		t.Fatalf("SetTagged: %v", err)
	}
	if err := tier.SetTagged(ctx, "doc-1:web", "v2", time.Minute, []string{"document:doc-1"}); err != nil {
		t.Fatalf("SetTagged: %v", err)
	}

	n, err := tier.Invalidate(ctx, nil, "", []string{"document:doc-1"})
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 invalidated by tag, got %d", n)
	}
}
