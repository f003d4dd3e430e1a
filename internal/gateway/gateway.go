// Package gateway defines the messaging-platform port consumed by the
// bridge. The platform client library itself is an external collaborator;
// this package holds the event model, the client contract, and an in-memory
// adapter used by tests and the loopback mode.
package gateway

import (
	"context"
	"errors"
)

// Leg identifies which platform session observed an event.
type Leg int

const (
	LegBot Leg = iota
	LegOperator
	LegRelay
)

// ChatKind distinguishes private chats from the support group.
type ChatKind int

const (
	ChatPrivate ChatKind = iota
	ChatGroup
)

// EventKind enumerates the inbound event stream.
type EventKind int

const (
	KindNewMessage EventKind = iota
	KindEditedMessage
	KindDeletedMessages
	KindReactionChange
	KindInlineQuery
	KindCallback
)

var (
	// ErrNotFound reports a message, thread, or entity the platform no
	// longer knows about.
	ErrNotFound = errors.New("gateway: not found")

	// ErrNotModified reports an edit rejected because the content is
	// already current. Callers treat it as success.
	ErrNotModified = errors.New("gateway: not modified")
)

// Attachment is a platform file reference carried by a message.
type Attachment struct {
	Kind string // "photo" or "document"
	Size int64
	Ref  string
}

// Upload is file content re-sent with a mirrored message.
type Upload struct {
	Name string
	Data []byte
}

// Button is an inline control carrying structured callback data.
type Button struct {
	Label string
	Data  string
}

// Message is the normalized message shape shared by both legs.
type Message struct {
	ID         int64
	ChatID     int64
	SenderID   int64
	Text       string
	ReplyToID  int64 // replied-to message id, 0 when none
	TopicID    int64 // forum thread root on the group side, 0 when none
	Attachment *Attachment
	EditHidden bool // sender suppressed the visible edit marker
	Reactions  []string
	ViaBot     bool // produced through an inline-query selection
	Outgoing   bool // sent by the observing session itself
}

// InlineQuery is an admin's inline note search.
type InlineQuery struct {
	ID       string
	SenderID int64
	Query    string
	Offset   string
}

// InlineResult is one article answered to an inline query.
type InlineResult struct {
	Title       string
	Description string
	Text        string
}

// Callback is an inline-button click.
type Callback struct {
	ID        string
	SenderID  int64
	ChatID    int64
	MessageID int64
	Data      string
}

// Thread is a support-group forum topic.
type Thread struct {
	ID     int64
	Title  string
	Closed bool
}

// Profile is a user's display profile.
type Profile struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	Fake      bool
	Scam      bool
}

// Event is one inbound platform event.
type Event struct {
	Kind       EventKind
	Leg        Leg
	Chat       ChatKind
	ChatID     int64
	SenderID   int64
	Msg        *Message
	DeletedIDs []int64
	Inline     *InlineQuery
	Callback   *Callback
}

// SendOptions carries the optional parts of a send.
type SendOptions struct {
	ReplyTo int64
	File    *Upload
	Buttons [][]Button

	// Keyboard is a plain reply keyboard (admin console menu).
	Keyboard [][]string

	// InlineShortcut labels a button that opens the inline note search in
	// the same chat.
	InlineShortcut string
}

// Client is the set of platform actions the bridge performs. Every call may
// block on the network; all take a context.
type Client interface {
	Send(ctx context.Context, chatID int64, text string, opts SendOptions) (int64, error)
	Edit(ctx context.Context, chatID, messageID int64, text string) error
	EditCard(ctx context.Context, chatID, messageID int64, text string, buttons [][]Button) error
	Delete(ctx context.Context, chatID int64, messageIDs ...int64) error
	GetMessage(ctx context.Context, chatID, messageID int64) (Message, error)
	React(ctx context.Context, chatID, messageID int64, reactions []string) error
	Pin(ctx context.Context, chatID, messageID int64) error

	CreateThread(ctx context.Context, groupID int64, title string) (int64, error)
	QueryThread(ctx context.Context, groupID, threadID int64) (Thread, error)
	PurgeThread(ctx context.Context, groupID, threadID int64) error

	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
	Profile(ctx context.Context, userID int64) (Profile, error)
	ProfilePhoto(ctx context.Context, userID int64) (*Attachment, error)
	Download(ctx context.Context, att Attachment) ([]byte, error)

	Block(ctx context.Context, userID int64) error
	Unblock(ctx context.Context, userID int64) error
	WipeHistory(ctx context.Context, peerID int64) error

	AnswerInline(ctx context.Context, queryID string, results []InlineResult, nextOffset string) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// Source delivers the inbound event stream for all legs.
type Source interface {
	Events() <-chan Event
	Close() error
}
