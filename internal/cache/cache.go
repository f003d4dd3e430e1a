// Package cache provides the ephemeral key-value store used for per-admin
// console state and confirmation debounce flags.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is the ephemeral store port. Redis is the production adapter;
// Memory backs tests. A ttl of zero means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetIfAbsent atomically sets the key only when it does not already
	// exist and reports whether it was set. The confirmation gate depends
	// on this being a single atomic step per key.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	Delete(ctx context.Context, key string) error
}
