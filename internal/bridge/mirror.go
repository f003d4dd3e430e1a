package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"topicbridge/internal/gateway"
	"topicbridge/internal/store"
)

// Mirror copies messages between a user's private chat and their support
// thread, preserving reply linkage through the pair table. It is the sole
// writer of mirrored-message pairs.
type Mirror struct {
	store         store.Store
	roles         gateway.Roles
	groupID       int64
	downloadLimit int64
	log           zerolog.Logger
}

func NewMirror(st store.Store, roles gateway.Roles, groupID, downloadLimit int64, log zerolog.Logger) *Mirror {
	return &Mirror{store: st, roles: roles, groupID: groupID, downloadLimit: downloadLimit, log: log}
}

// UserToGroup mirrors a user's private message into their support thread.
// The copy is sent as the bot-of-record; the reply target is the mapped
// counterpart of the replied-to message, or the thread root.
func (m *Mirror) UserToGroup(ctx context.Context, user *store.User, msg *gateway.Message) (store.Pair, error) {
	replyTo := user.TopicID
	if msg.ReplyToID != 0 {
		pair, err := m.store.PairByUserMessage(ctx, msg.ReplyToID)
		switch {
		case err == nil:
			replyTo = pair.GroupMessageID
		case !errors.Is(err, store.ErrNotFound):
			return store.Pair{}, fmt.Errorf("reply lookup: %w", err)
		}
	}

	opts := gateway.SendOptions{ReplyTo: replyTo}
	m.attach(ctx, &opts, msg, m.roles.Bot)

	sentID, err := m.roles.Bot.Send(ctx, m.groupID, msg.Text, opts)
	if err != nil {
		return store.Pair{}, fmt.Errorf("mirror into group: %w", err)
	}

	pair, err := m.store.CreatePair(ctx, store.Pair{
		UserID:         user.UserID,
		UserMessageID:  msg.ID,
		GroupMessageID: sentID,
	})
	if err != nil {
		return store.Pair{}, fmt.Errorf("persist pair: %w", err)
	}
	return pair, nil
}

// GroupToUser mirrors a staff message from the support thread to the user's
// private chat. The copy is sent as the operator account so the bot
// identity is never exposed to the end user; replies to the thread root
// arrive without an explicit reply target.
func (m *Mirror) GroupToUser(ctx context.Context, user *store.User, msg *gateway.Message) (store.Pair, error) {
	var replyTo int64
	if msg.ReplyToID != 0 && msg.ReplyToID != user.TopicID {
		pair, err := m.store.PairByGroupMessage(ctx, msg.ReplyToID)
		switch {
		case err == nil:
			replyTo = pair.UserMessageID
		case !errors.Is(err, store.ErrNotFound):
			return store.Pair{}, fmt.Errorf("reply lookup: %w", err)
		}
	}

	opts := gateway.SendOptions{ReplyTo: replyTo}
	m.attach(ctx, &opts, msg, m.roles.Operator)

	sentID, err := m.roles.Operator.Send(ctx, user.UserID, msg.Text, opts)
	if err != nil {
		return store.Pair{}, fmt.Errorf("mirror to user: %w", err)
	}

	pair, err := m.store.CreatePair(ctx, store.Pair{
		UserID:         user.UserID,
		UserMessageID:  sentID,
		GroupMessageID: msg.ID,
	})
	if err != nil {
		return store.Pair{}, fmt.Errorf("persist pair: %w", err)
	}
	return pair, nil
}

// attach re-downloads a photo or document within the byte budget and adds
// it to the outbound send. The fetch always crosses roles: it uses the
// session opposite the sending one, which is the leg that observed the
// source message, so the file reference belongs to the right account.
// Oversized or failed attachments degrade to a text-only mirror.
func (m *Mirror) attach(ctx context.Context, opts *gateway.SendOptions, msg *gateway.Message, sender gateway.Client) {
	att := msg.Attachment
	if att == nil {
		return
	}
	if att.Kind != "photo" && att.Kind != "document" {
		return
	}
	if att.Size > m.downloadLimit {
		return
	}
	data, err := m.roles.Opposite(sender).Download(ctx, *att)
	if err != nil {
		m.log.Warn().Err(err).Str("ref", att.Ref).Msg("attachment download failed, mirroring text only")
		return
	}
	opts.File = &gateway.Upload{Name: att.Ref, Data: data}
}
