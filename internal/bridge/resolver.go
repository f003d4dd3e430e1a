package bridge

import (
	"context"

	"github.com/rs/zerolog"

	"topicbridge/internal/gateway"
)

// Resolver classifies event senders as admin or regular user.
type Resolver struct {
	probe       gateway.Client
	groupID     int64
	superAdmins map[int64]struct{}
	log         zerolog.Logger
}

// NewResolver builds a resolver that probes support-group membership with
// the bot session.
func NewResolver(probe gateway.Client, groupID int64, superAdmins []int64, log zerolog.Logger) *Resolver {
	allow := make(map[int64]struct{}, len(superAdmins))
	for _, id := range superAdmins {
		allow[id] = struct{}{}
	}
	return &Resolver{probe: probe, groupID: groupID, superAdmins: allow, log: log}
}

// IsAdmin reports whether the sender may use the admin surface. Any probe
// failure means not admin; membership checks are not a fatal path.
func (r *Resolver) IsAdmin(ctx context.Context, senderID int64) bool {
	if _, ok := r.superAdmins[senderID]; ok {
		return true
	}
	member, err := r.probe.IsMember(ctx, r.groupID, senderID)
	if err != nil {
		r.log.Debug().Err(err).Int64("sender_id", senderID).Msg("membership probe failed")
		return false
	}
	return member
}
