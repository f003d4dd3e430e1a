package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemorySetAndGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "v" {
		t.Errorf("expected v, got %q", value)
	}

	if _, err := c.Get(ctx, "absent"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

func TestMemoryTTL(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	current := time.Now()
	c.now = func() time.Time { return current }

	if err := c.Set(ctx, "k", "v", 10*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	current = current.Add(9 * time.Second)
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	current = current.Add(2 * time.Second)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss after expiry, got %v", err)
	}
}

func TestMemorySetIfAbsent(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	current := time.Now()
	c.now = func() time.Time { return current }

	set, err := c.SetIfAbsent(ctx, "k", "1", 10*time.Second)
	if err != nil || !set {
		t.Fatalf("first SetIfAbsent: set=%v err=%v", set, err)
	}

	set, err = c.SetIfAbsent(ctx, "k", "1", 10*time.Second)
	if err != nil {
		t.Fatalf("second SetIfAbsent failed: %v", err)
	}
	if set {
		t.Error("second SetIfAbsent should not set")
	}

	// An expired entry counts as absent.
	current = current.Add(11 * time.Second)
	set, err = c.SetIfAbsent(ctx, "k", "1", 10*time.Second)
	if err != nil || !set {
		t.Errorf("SetIfAbsent after expiry: set=%v err=%v", set, err)
	}
}

func TestMemoryDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss after delete, got %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete of absent key failed: %v", err)
	}
}
