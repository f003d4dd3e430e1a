package bridge

import (
	"context"
	"errors"
	"fmt"

	"topicbridge/internal/cache"
)

// Status is the per-admin console mode. It lives in the ephemeral store
// without expiry and is cleared explicitly by console flows.
type Status string

const (
	StatusNull         Status = ""
	StatusInputMessage Status = "input_message"
)

// StatusStore keeps per-admin console state behind the cache port so tests
// and production share the same access path.
type StatusStore struct {
	cache cache.Cache
}

func NewStatusStore(c cache.Cache) *StatusStore {
	return &StatusStore{cache: c}
}

func statusKey(adminID int64) string {
	return fmt.Sprintf("status:%d", adminID)
}

// Get returns the admin's current status; an absent key is StatusNull.
func (s *StatusStore) Get(ctx context.Context, adminID int64) (Status, error) {
	value, err := s.cache.Get(ctx, statusKey(adminID))
	if errors.Is(err, cache.ErrMiss) {
		return StatusNull, nil
	}
	if err != nil {
		return StatusNull, err
	}
	return Status(value), nil
}

// Set stores the admin's status; StatusNull clears the key.
func (s *StatusStore) Set(ctx context.Context, adminID int64, status Status) error {
	if status == StatusNull {
		return s.cache.Delete(ctx, statusKey(adminID))
	}
	return s.cache.Set(ctx, statusKey(adminID), string(status), 0)
}
