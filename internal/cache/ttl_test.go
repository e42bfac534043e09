package cache

import (
	"testing"
	"time"
)

func TestTTL_GetFresh(t *testing.T) {
	c := NewTTL[string](time.Minute)
	c.Set("k", "v")

	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("expected fresh hit, got %q ok=%v", got, ok)
	}
}

func TestTTL_ExpiryAndStale(t *testing.T) {
	c := NewTTL[string](time.Minute)
	now := time.Now()
	c.SetClock(func() time.Time { return now })
	c.Set("k", "v")

	// Advance past the TTL.
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if got, ok := c.GetStale("k"); !ok || got != "v" {
		t.Fatalf("expected stale fallback, got %q ok=%v", got, ok)
	}
}

func TestTTL_SetResetsTTL(t *testing.T) {
	c := NewTTL[int](time.Minute)
	now := time.Now()
	c.SetClock(func() time.Time { return now })

	c.Set("k", 1)
	now = now.Add(50 * time.Second)
	c.Set("k", 2)
	now = now.Add(50 * time.Second)

	got, ok := c.Get("k")
	if !ok || got != 2 {
		t.Fatalf("expected refreshed entry to survive, got %d ok=%v", got, ok)
	}
}

func TestTTL_MissingKey(t *testing.T) {
	c := NewTTL[string](time.Minute)
	if _, ok := c.Get("absent"); ok {
		t.Fatal("expected miss for absent key")
	}
	if _, ok := c.GetStale("absent"); ok {
		t.Fatal("expected stale miss for absent key")
	}
}

func TestTTL_PurgeDropsOnlyExpired(t *testing.T) {
	c := NewTTL[int](time.Minute)
	now := time.Now()
	c.SetClock(func() time.Time { return now })

	c.Set("old", 1)
	now = now.Add(2 * time.Minute)
	c.Set("new", 2)

	if removed := c.Purge(); removed != 1 {
		t.Fatalf("expected 1 purged entry, got %d", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", c.Len())
	}
	if _, ok := c.Get("new"); !ok {
		t.Fatal("expected fresh entry to survive purge")
	}
}

func TestTTL_PurgeEvery(t *testing.T) {
	c := NewTTL[string](time.Minute)
	c.Set("k", "v")
	// Everything stored so far is already past the TTL.
	c.SetClock(func() time.Time { return time.Now().Add(2 * time.Minute) })

	stop := c.PurgeEvery(time.Millisecond)
	defer stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Len() == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expired entry was never purged")
}

func TestTTL_Delete(t *testing.T) {
	c := NewTTL[string](time.Minute)
	c.Set("k", "v")
	c.Delete("k")
	if _, ok := c.GetStale("k"); ok {
		t.Fatal("expected deleted key to be gone")
	}
}
