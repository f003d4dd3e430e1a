package bridge

import (
	"context"

	"github.com/rs/zerolog"

	"topicbridge/internal/gateway"
	"topicbridge/internal/store"
)

// Verdict is a handler's decision about the rest of the chain.
type Verdict int

const (
	// Continue lets later routes see the event.
	Continue Verdict = iota
	// Handled stops the chain; the event was consumed.
	Handled
	// Drop stops the chain silently; the event is intentionally ignored.
	Drop
)

// EventContext is the normalized view of one inbound event that predicates
// and handlers operate on.
type EventContext struct {
	Event   gateway.Event
	IsAdmin bool
	Status  Status

	// User is set once a handler has resolved the owning conversation.
	User *store.User
}

// Predicate is a pure filter over an event context.
type Predicate func(*EventContext) bool

// HandlerFunc processes an event and reports how the chain proceeds.
type HandlerFunc func(ctx context.Context, ec *EventContext) (Verdict, error)

// Route is one (predicate, handler) entry evaluated in registration order.
type Route struct {
	Name   string
	Kinds  []gateway.EventKind
	When   Predicate
	Handle HandlerFunc
}

// Router dispatches events through an ordered route list.
type Router struct {
	routes []Route

	// Prepare enriches the context before any route runs (admin flag,
	// console status).
	Prepare func(ctx context.Context, ec *EventContext) error

	log zerolog.Logger
}

func NewRouter(log zerolog.Logger) *Router {
	return &Router{log: log}
}

func (r *Router) Add(routes ...Route) {
	r.routes = append(r.routes, routes...)
}

// Dispatch runs the event through the route chain. Handler errors stop the
// chain; they are logged for operators and never surface to end users.
func (r *Router) Dispatch(ctx context.Context, ev gateway.Event) {
	ec := &EventContext{Event: ev}
	if r.Prepare != nil {
		if err := r.Prepare(ctx, ec); err != nil {
			r.log.Error().Err(err).Int("kind", int(ev.Kind)).Msg("prepare event")
			return
		}
	}

	for _, route := range r.routes {
		if !kindMatches(route.Kinds, ev.Kind) {
			continue
		}
		if route.When != nil && !route.When(ec) {
			continue
		}
		verdict, err := route.Handle(ctx, ec)
		if err != nil {
			r.log.Error().Err(err).Str("route", route.Name).Msg("handle event")
			return
		}
		if verdict != Continue {
			return
		}
	}
}

func kindMatches(kinds []gateway.EventKind, kind gateway.EventKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Common predicates.

func fromLeg(leg gateway.Leg) Predicate {
	return func(ec *EventContext) bool { return ec.Event.Leg == leg }
}

func inChat(kind gateway.ChatKind) Predicate {
	return func(ec *EventContext) bool { return ec.Event.Chat == kind }
}

func isAdmin(ec *EventContext) bool { return ec.IsAdmin }

func incoming(ec *EventContext) bool {
	return ec.Event.Msg != nil && !ec.Event.Msg.Outgoing
}

func all(preds ...Predicate) Predicate {
	return func(ec *EventContext) bool {
		for _, p := range preds {
			if !p(ec) {
				return false
			}
		}
		return true
	}
}
