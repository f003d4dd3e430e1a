package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"topicbridge/internal/gateway"
	"topicbridge/internal/store"
)

// ErrThreadClosed reports that the user's support thread is closed; the
// current event is dropped until staff reopen it.
var ErrThreadClosed = errors.New("bridge: thread closed")

// Directory maps users to support-group threads, creating them on demand.
// It is the sole writer of User.TopicID.
type Directory struct {
	store         store.Store
	roles         gateway.Roles
	groupID       int64
	downloadLimit int64
	log           zerolog.Logger
}

func NewDirectory(st store.Store, roles gateway.Roles, groupID, downloadLimit int64, log zerolog.Logger) *Directory {
	return &Directory{store: st, roles: roles, groupID: groupID, downloadLimit: downloadLimit, log: log}
}

// ResolveOrCreate returns the user's thread id, creating a thread when the
// user has none or the stored one was deleted. A definitive not-found from
// the platform is the only recreation trigger; a closed thread returns
// ErrThreadClosed.
func (d *Directory) ResolveOrCreate(ctx context.Context, user *store.User) (int64, error) {
	if user.TopicID != 0 {
		thread, err := d.roles.Relay.QueryThread(ctx, d.groupID, user.TopicID)
		switch {
		case errors.Is(err, gateway.ErrNotFound):
			// fall through to create
		case err != nil:
			return 0, fmt.Errorf("query thread %d: %w", user.TopicID, err)
		case thread.Closed:
			return 0, ErrThreadClosed
		default:
			return user.TopicID, nil
		}
	}

	profile, err := d.roles.Operator.Profile(ctx, user.UserID)
	if err != nil {
		return 0, fmt.Errorf("fetch profile %d: %w", user.UserID, err)
	}

	threadID, err := d.roles.Relay.CreateThread(ctx, d.groupID, topicTitle(profile))
	if err != nil {
		return 0, fmt.Errorf("create thread: %w", err)
	}
	if err := d.store.SetUserTopic(ctx, user.UserID, threadID); err != nil {
		return 0, fmt.Errorf("store topic id: %w", err)
	}
	user.TopicID = threadID

	if err := d.postCard(ctx, profile, threadID); err != nil {
		return 0, err
	}
	return threadID, nil
}

// postCard posts and pins the introductory profile card into a fresh
// thread, as a photo card when the profile photo fits the download budget.
func (d *Directory) postCard(ctx context.Context, profile gateway.Profile, threadID int64) error {
	opts := gateway.SendOptions{
		ReplyTo: threadID,
		Buttons: conversationButtons(profile.ID),
	}

	photo, err := d.roles.Operator.ProfilePhoto(ctx, profile.ID)
	if err != nil {
		d.log.Warn().Err(err).Int64("user_id", profile.ID).Msg("profile photo lookup failed")
	}
	if photo != nil && photo.Size <= d.downloadLimit {
		data, err := d.roles.Operator.Download(ctx, *photo)
		if err != nil {
			d.log.Warn().Err(err).Int64("user_id", profile.ID).Msg("profile photo download failed")
		} else {
			opts.File = &gateway.Upload{Name: photo.Ref, Data: data}
		}
	}

	cardID, err := d.roles.Bot.Send(ctx, d.groupID, profileCard(profile, ""), opts)
	if err != nil {
		return fmt.Errorf("post profile card: %w", err)
	}
	if err := d.roles.Bot.Pin(ctx, d.groupID, cardID); err != nil {
		d.log.Warn().Err(err).Int64("thread_id", threadID).Msg("pin profile card failed")
	}
	return nil
}
