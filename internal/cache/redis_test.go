package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	c, err := NewRedisCache("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis cache: %v", err)
	}
	return c, s
}

func TestNewRedisCache(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	c, err := NewRedisCache("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	defer c.Close()

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSetAndGet(t *testing.T) {
	c, s := setupTestRedis(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "status:42", "input_message", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := c.Get(ctx, "status:42")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "input_message" {
		t.Errorf("expected input_message, got %q", value)
	}
}

func TestGetMiss(t *testing.T) {
	c, s := setupTestRedis(t)
	defer c.Close()
	defer s.Close()

	_, err := c.Get(context.Background(), "absent")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

func TestSetWithTTL(t *testing.T) {
	c, s := setupTestRedis(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "confirm:block:7", "1", 10*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	s.FastForward(11 * time.Second)

	_, err := c.Get(ctx, "confirm:block:7")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss after expiry, got %v", err)
	}
}

func TestSetIfAbsent(t *testing.T) {
	c, s := setupTestRedis(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	set, err := c.SetIfAbsent(ctx, "confirm:delete:9", "1", time.Minute)
	if err != nil {
		t.Fatalf("SetIfAbsent failed: %v", err)
	}
	if !set {
		t.Fatal("first SetIfAbsent should set the key")
	}

	set, err = c.SetIfAbsent(ctx, "confirm:delete:9", "1", time.Minute)
	if err != nil {
		t.Fatalf("second SetIfAbsent failed: %v", err)
	}
	if set {
		t.Error("second SetIfAbsent should not set the key")
	}
}

func TestSetIfAbsentAfterExpiry(t *testing.T) {
	c, s := setupTestRedis(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if _, err := c.SetIfAbsent(ctx, "confirm:block:3", "1", 10*time.Second); err != nil {
		t.Fatalf("SetIfAbsent failed: %v", err)
	}

	s.FastForward(11 * time.Second)

	set, err := c.SetIfAbsent(ctx, "confirm:block:3", "1", 10*time.Second)
	if err != nil {
		t.Fatalf("SetIfAbsent after expiry failed: %v", err)
	}
	if !set {
		t.Error("expected the key to be settable again after expiry")
	}
}

func TestDelete(t *testing.T) {
	c, s := setupTestRedis(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "status:1", "input_message", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Delete(ctx, "status:1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "status:1"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss after delete, got %v", err)
	}

	// Deleting an absent key is not an error.
	if err := c.Delete(ctx, "status:1"); err != nil {
		t.Errorf("Delete of absent key failed: %v", err)
	}
}
