package cache

import (
	"context"
	"testing"
	"time"
)

func TestCache_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](0)
	defer c.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "market:16", 3000, time.Minute)

	if v, ok := c.Get(ctx, "market:16"); !ok || v != 3000 {
		t.Fatalf("Get() = %d, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "market:16"); ok {
		t.Error("expected entry to be expired")
	}

	c.evictExpired()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after eviction, want 0", c.Len())
	}
}

func TestCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := New[string, string](0)
	defer c.Close()

	c.Set(ctx, "k", "v", time.Hour)
	c.Delete(ctx, "k")

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected deleted key to be absent")
	}
}
