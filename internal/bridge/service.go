// Package bridge wires the conversation engine: event routing, thread
// directory, message mirroring, propagation of edits, deletions, and
// reactions, and the admin console.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"topicbridge/internal/cache"
	"topicbridge/internal/gateway"
	"topicbridge/internal/search"
	"topicbridge/internal/store"
)

// Options carries the deployment knobs the service needs beyond its
// collaborators.
type Options struct {
	GroupID       int64
	SuperAdminIDs []int64
	DownloadLimit int64
	ConfirmTTL    time.Duration
}

// Service is the assembled bridge: one router over all three legs.
type Service struct {
	store   store.Store
	roles   gateway.Roles
	groupID int64

	resolver   *Resolver
	statuses   *StatusStore
	console    *Console
	directory  *Directory
	mirror     *Mirror
	propagator *Propagator
	router     *Router

	log zerolog.Logger
}

func NewService(st store.Store, c cache.Cache, srch *search.Service, roles gateway.Roles, opts Options, log zerolog.Logger) *Service {
	statuses := NewStatusStore(c)
	gate := NewGate(c, opts.ConfirmTTL)
	s := &Service{
		store:      st,
		roles:      roles,
		groupID:    opts.GroupID,
		resolver:   NewResolver(roles.Bot, opts.GroupID, opts.SuperAdminIDs, log),
		statuses:   statuses,
		console:    NewConsole(st, statuses, gate, srch, roles, opts.GroupID, log),
		directory:  NewDirectory(st, roles, opts.GroupID, opts.DownloadLimit, log),
		mirror:     NewMirror(st, roles, opts.GroupID, opts.DownloadLimit, log),
		propagator: NewPropagator(st, roles, opts.GroupID, log),
		log:        log.With().Str("component", "bridge").Logger(),
	}
	s.router = NewRouter(log)
	s.router.Prepare = s.prepare
	s.router.Add(s.routes()...)
	return s
}

// prepare resolves the admin flag and console status before routing. Both
// only matter on the bot leg; the operator leg carries end-user traffic.
func (s *Service) prepare(ctx context.Context, ec *EventContext) error {
	if ec.Event.Leg != gateway.LegBot {
		return nil
	}
	ec.IsAdmin = s.resolver.IsAdmin(ctx, ec.Event.SenderID)
	if ec.IsAdmin && ec.Event.Chat == gateway.ChatPrivate {
		status, err := s.statuses.Get(ctx, ec.Event.SenderID)
		if err != nil {
			return fmt.Errorf("console status: %w", err)
		}
		ec.Status = status
	}
	return nil
}

func (s *Service) routes() []Route {
	newMsg := []gateway.EventKind{gateway.KindNewMessage}
	allKinds := []gateway.EventKind{
		gateway.KindNewMessage,
		gateway.KindEditedMessage,
		gateway.KindDeletedMessages,
		gateway.KindReactionChange,
		gateway.KindInlineQuery,
		gateway.KindCallback,
	}

	botPrivate := all(fromLeg(gateway.LegBot), inChat(gateway.ChatPrivate))
	botGroup := all(fromLeg(gateway.LegBot), inChat(gateway.ChatGroup))
	opPrivate := all(fromLeg(gateway.LegOperator), inChat(gateway.ChatPrivate))

	textIs := func(texts ...string) Predicate {
		return func(ec *EventContext) bool {
			if ec.Event.Msg == nil {
				return false
			}
			for _, t := range texts {
				if ec.Event.Msg.Text == t {
					return true
				}
			}
			return false
		}
	}

	return []Route{
		// Anyone who is not staff gets silence from the bot's private chat.
		{
			Name:  "private-access-gate",
			Kinds: allKinds,
			When: all(botPrivate, func(ec *EventContext) bool {
				return !ec.IsAdmin
			}),
			Handle: func(ctx context.Context, ec *EventContext) (Verdict, error) {
				return Drop, nil
			},
		},
		{
			Name:   "console-start",
			Kinds:  newMsg,
			When:   all(botPrivate, incoming, textIs(cmdStart, cmdCancel)),
			Handle: s.console.Start,
		},
		{
			Name:   "console-list-notes",
			Kinds:  newMsg,
			When:   all(botPrivate, incoming, textIs(cmdListNotes)),
			Handle: s.console.ListNotes,
		},
		{
			Name:   "console-add-note",
			Kinds:  newMsg,
			When:   all(botPrivate, incoming, textIs(cmdAddNote)),
			Handle: s.console.BeginAddNote,
		},
		// Inline picks arrive as /note-<id> messages sent via the bot, in
		// the admin's private chat or inside a support topic. The group
		// variant rewrites the message and falls through to group-mirror.
		{
			Name:  "note-command",
			Kinds: newMsg,
			When: all(fromLeg(gateway.LegBot), isAdmin, func(ec *EventContext) bool {
				return ec.Event.Msg != nil && ec.Event.Msg.ViaBot &&
					strings.HasPrefix(ec.Event.Msg.Text, "/note-")
			}),
			Handle: s.console.NoteCommand,
		},
		{
			Name:  "console-capture-note",
			Kinds: newMsg,
			When: all(botPrivate, incoming, func(ec *EventContext) bool {
				return ec.Status == StatusInputMessage
			}),
			Handle: s.console.CaptureNote,
		},
		{
			Name:   "group-mirror",
			Kinds:  newMsg,
			When:   all(botGroup, incoming),
			Handle: s.handleGroupMessage,
		},
		{
			Name:   "note-search",
			Kinds:  []gateway.EventKind{gateway.KindInlineQuery},
			When:   all(fromLeg(gateway.LegBot), isAdmin),
			Handle: s.console.SearchNotes,
		},
		{
			Name:   "card-callback",
			Kinds:  []gateway.EventKind{gateway.KindCallback},
			When:   all(fromLeg(gateway.LegBot), isAdmin),
			Handle: s.console.HandleCallback,
		},
		{
			Name:  "group-edit",
			Kinds: []gateway.EventKind{gateway.KindEditedMessage},
			When:  all(botGroup, incoming),
			Handle: func(ctx context.Context, ec *EventContext) (Verdict, error) {
				return Handled, s.propagator.GroupEdit(ctx, ec.Event.Msg)
			},
		},
		{
			Name:  "group-delete",
			Kinds: []gateway.EventKind{gateway.KindDeletedMessages},
			When:  all(fromLeg(gateway.LegBot), inChat(gateway.ChatGroup)),
			Handle: func(ctx context.Context, ec *EventContext) (Verdict, error) {
				return Handled, s.propagator.GroupDeleted(ctx, ec.Event.DeletedIDs)
			},
		},
		{
			Name:  "group-reaction",
			Kinds: []gateway.EventKind{gateway.KindReactionChange},
			When:  all(botGroup, incoming),
			Handle: func(ctx context.Context, ec *EventContext) (Verdict, error) {
				return Handled, s.propagator.GroupReaction(ctx, ec.Event.Msg)
			},
		},
		{
			Name:   "user-mirror",
			Kinds:  newMsg,
			When:   all(opPrivate, incoming),
			Handle: s.handleUserMessage,
		},
		{
			Name:  "user-edit",
			Kinds: []gateway.EventKind{gateway.KindEditedMessage},
			When:  all(opPrivate, incoming),
			Handle: func(ctx context.Context, ec *EventContext) (Verdict, error) {
				return Handled, s.propagator.UserEdit(ctx, ec.Event.Msg)
			},
		},
		{
			Name:  "user-delete",
			Kinds: []gateway.EventKind{gateway.KindDeletedMessages},
			When:  fromLeg(gateway.LegOperator),
			Handle: func(ctx context.Context, ec *EventContext) (Verdict, error) {
				return Handled, s.propagator.UserDeleted(ctx, ec.Event.DeletedIDs)
			},
		},
		{
			Name:  "user-reaction",
			Kinds: []gateway.EventKind{gateway.KindReactionChange},
			When:  all(opPrivate, incoming),
			Handle: func(ctx context.Context, ec *EventContext) (Verdict, error) {
				return Handled, s.propagator.UserReaction(ctx, ec.Event.Msg)
			},
		},
	}
}

// handleUserMessage registers the sender, resolves their support topic, and
// mirrors the message into it.
func (s *Service) handleUserMessage(ctx context.Context, ec *EventContext) (Verdict, error) {
	msg := ec.Event.Msg
	user, created, err := s.store.EnsureUser(ctx, ec.Event.SenderID)
	if err != nil {
		return Handled, fmt.Errorf("ensure user %d: %w", ec.Event.SenderID, err)
	}
	if created {
		s.log.Info().Int64("user_id", user.UserID).Msg("new conversation")
	}
	ec.User = &user
	if _, err := s.directory.ResolveOrCreate(ctx, &user); err != nil {
		if errors.Is(err, ErrThreadClosed) {
			// A closed topic means staff muted this user on purpose.
			return Drop, nil
		}
		return Handled, fmt.Errorf("resolve topic for %d: %w", user.UserID, err)
	}
	if _, err := s.mirror.UserToGroup(ctx, &user, msg); err != nil {
		return Handled, fmt.Errorf("mirror to group: %w", err)
	}
	return Handled, nil
}

// handleGroupMessage mirrors a staff reply inside a support topic to the
// owning user's private chat.
func (s *Service) handleGroupMessage(ctx context.Context, ec *EventContext) (Verdict, error) {
	msg := ec.Event.Msg
	if msg.TopicID == 0 {
		// General chatter outside any support topic.
		return Drop, nil
	}
	user, err := s.store.GetUserByTopic(ctx, msg.TopicID)
	if errors.Is(err, store.ErrNotFound) {
		_, err := s.roles.Bot.Send(ctx, s.groupID, textInvalidTopic, gateway.SendOptions{ReplyTo: msg.TopicID})
		return Handled, err
	}
	if err != nil {
		return Handled, fmt.Errorf("resolve topic %d: %w", msg.TopicID, err)
	}
	ec.User = &user
	if _, err := s.mirror.GroupToUser(ctx, &user, msg); err != nil {
		return Handled, fmt.Errorf("mirror to user: %w", err)
	}
	return Handled, nil
}

// Dispatch runs a single event through the route chain.
func (s *Service) Dispatch(ctx context.Context, ev gateway.Event) {
	s.router.Dispatch(ctx, ev)
}

// Run consumes the event stream until the context is canceled or the
// stream closes. Events are dispatched sequentially so that mirrored sends
// land in the order the platform delivered them.
func (s *Service) Run(ctx context.Context, source gateway.Source) error {
	s.log.Info().Int64("group_id", s.groupID).Msg("bridge running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-source.Events():
			if !ok {
				return nil
			}
			s.router.Dispatch(ctx, ev)
		}
	}
}
