package bridge

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"topicbridge/internal/gateway"
	"topicbridge/internal/store"
)

// Propagator replays edits, deletions, and reactions observed on one side
// onto the mirrored counterpart. Every side effect is best-effort and
// idempotent: a mutation for a message that was never mirrored, or whose
// mirror is already gone, is a silent no-op.
type Propagator struct {
	store   store.Store
	roles   gateway.Roles
	groupID int64
	log     zerolog.Logger
}

func NewPropagator(st store.Store, roles gateway.Roles, groupID int64, log zerolog.Logger) *Propagator {
	return &Propagator{store: st, roles: roles, groupID: groupID, log: log}
}

// UserEdit replays a user-side edit onto the group copy, with a visible
// edited marker for staff audit. Edits the sender chose to hide are not
// mirrored.
func (p *Propagator) UserEdit(ctx context.Context, msg *gateway.Message) error {
	pair, err := p.store.PairByUserMessage(ctx, msg.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if msg.EditHidden {
		return nil
	}
	err = p.roles.Bot.Edit(ctx, p.groupID, pair.GroupMessageID, msg.Text+editedMarker)
	if errors.Is(err, gateway.ErrNotModified) {
		return nil
	}
	return err
}

// GroupEdit replays a staff edit onto the user-facing copy, without any
// marker.
func (p *Propagator) GroupEdit(ctx context.Context, msg *gateway.Message) error {
	pair, err := p.store.PairByGroupMessage(ctx, msg.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if msg.EditHidden {
		return nil
	}
	err = p.roles.Operator.Edit(ctx, pair.UserID, pair.UserMessageID, msg.Text)
	if errors.Is(err, gateway.ErrNotModified) {
		return nil
	}
	return err
}

// UserDeleted handles a user-side deletion batch: the group copy is
// overwritten with a deleted marker (best effort), then the pair row is
// removed unconditionally — its job as an existence witness is done.
func (p *Propagator) UserDeleted(ctx context.Context, deletedIDs []int64) error {
	for _, id := range deletedIDs {
		pair, err := p.store.PairByUserMessage(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		p.tombstone(ctx, p.roles.Relay, p.roles.Bot, p.groupID, pair.GroupMessageID)
		if err := p.store.DeletePair(ctx, pair.ID); err != nil {
			p.log.Warn().Err(err).Int64("pair_id", pair.ID).Msg("delete pair")
		}
	}
	return nil
}

// GroupDeleted handles a group-side deletion batch against the user-facing
// copies.
func (p *Propagator) GroupDeleted(ctx context.Context, deletedIDs []int64) error {
	for _, id := range deletedIDs {
		pair, err := p.store.PairByGroupMessage(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		p.tombstone(ctx, p.roles.Operator, p.roles.Operator, pair.UserID, pair.UserMessageID)
		if err := p.store.DeletePair(ctx, pair.ID); err != nil {
			p.log.Warn().Err(err).Int64("pair_id", pair.ID).Msg("delete pair")
		}
	}
	return nil
}

// tombstone overwrites a surviving mirror copy with its own content plus a
// deleted marker. Fetch or edit failures are swallowed: the copy may
// already be gone, which is the outcome we wanted anyway.
func (p *Propagator) tombstone(ctx context.Context, reader, editor gateway.Client, chatID, messageID int64) {
	current, err := reader.GetMessage(ctx, chatID, messageID)
	if err != nil {
		p.log.Debug().Err(err).Int64("message_id", messageID).Msg("tombstone fetch")
		return
	}
	if err := editor.Edit(ctx, chatID, messageID, current.Text+deletedMarker); err != nil && !errors.Is(err, gateway.ErrNotModified) {
		p.log.Debug().Err(err).Int64("message_id", messageID).Msg("tombstone edit")
	}
}

// UserReaction replays the full current user-side reaction set onto the
// group copy. Last writer wins; no local reaction history is kept.
func (p *Propagator) UserReaction(ctx context.Context, msg *gateway.Message) error {
	pair, err := p.store.PairByUserMessage(ctx, msg.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := p.roles.Bot.React(ctx, p.groupID, pair.GroupMessageID, msg.Reactions); err != nil {
		p.log.Debug().Err(err).Int64("message_id", msg.ID).Msg("reaction replay")
	}
	return nil
}

// GroupReaction replays a staff reaction set onto the user-facing copy.
func (p *Propagator) GroupReaction(ctx context.Context, msg *gateway.Message) error {
	pair, err := p.store.PairByGroupMessage(ctx, msg.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := p.roles.Operator.React(ctx, pair.UserID, pair.UserMessageID, msg.Reactions); err != nil {
		p.log.Debug().Err(err).Int64("message_id", msg.ID).Msg("reaction replay")
	}
	return nil
}
