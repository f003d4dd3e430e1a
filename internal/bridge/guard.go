package bridge

import (
	"context"
	"fmt"
	"time"

	"topicbridge/internal/cache"
)

// ActionKind names a destructive admin action guarded by the gate.
type ActionKind string

const (
	ActionBlock      ActionKind = "block"
	ActionUnblock    ActionKind = "unblock"
	ActionDeleteNote ActionKind = "delete-note"
	ActionDeleteConv ActionKind = "delete"
)

// GuardResult is the gate's decision for one click.
type GuardResult int

const (
	// Armed means this was the first click; show a warning, do nothing.
	Armed GuardResult = iota
	// Confirmed means the action was re-clicked within the TTL; perform it.
	Confirmed
)

// Gate is the two-click guard for destructive actions. The first click per
// (action, subject) arms a short-lived flag; a second click while the flag
// lives confirms. An elapsed TTL resets the sequence.
type Gate struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewGate(c cache.Cache, ttl time.Duration) *Gate {
	return &Gate{cache: c, ttl: ttl}
}

func confirmKey(kind ActionKind, subjectID int64) string {
	return fmt.Sprintf("confirm:%s:%d", kind, subjectID)
}

// Guard registers a click. Arming is a single atomic set-if-absent, so two
// near-simultaneous first clicks cannot both observe an absent flag and
// both confirm.
func (g *Gate) Guard(ctx context.Context, kind ActionKind, subjectID int64) (GuardResult, error) {
	key := confirmKey(kind, subjectID)
	set, err := g.cache.SetIfAbsent(ctx, key, "1", g.ttl)
	if err != nil {
		return Armed, fmt.Errorf("arm %s: %w", key, err)
	}
	if set {
		return Armed, nil
	}
	if err := g.cache.Delete(ctx, key); err != nil {
		return Armed, fmt.Errorf("clear %s: %w", key, err)
	}
	return Confirmed, nil
}
