package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups whose subject does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when an insert would violate a uniqueness
// invariant (a message mirrored twice).
var ErrConflict = errors.New("store: conflict")

// Store is the relational persistence port. Postgres is the production
// adapter; Memory backs tests.
type Store interface {
	// EnsureUser returns the user with the given platform identity,
	// creating it on first contact. The bool reports whether a row was
	// created by this call.
	EnsureUser(ctx context.Context, userID int64) (User, bool, error)
	GetUser(ctx context.Context, userID int64) (User, error)
	GetUserByTopic(ctx context.Context, topicID int64) (User, error)
	SetUserTopic(ctx context.Context, userID, topicID int64) error

	CreateNote(ctx context.Context, message string) (Note, error)
	GetNote(ctx context.Context, id int64) (Note, error)
	DeleteNote(ctx context.Context, id int64) error
	TouchNote(ctx context.Context, id int64) error
	SearchNotes(ctx context.Context, query string, limit, offset int) ([]Note, error)
	ListNotes(ctx context.Context) ([]Note, error)

	CreatePair(ctx context.Context, pair Pair) (Pair, error)
	PairByUserMessage(ctx context.Context, userMessageID int64) (Pair, error)
	PairByGroupMessage(ctx context.Context, groupMessageID int64) (Pair, error)
	DeletePair(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
}
