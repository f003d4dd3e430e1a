package bridge

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"topicbridge/internal/gateway"
	"topicbridge/internal/search"
	"topicbridge/internal/store"
)

// notePageSize is how many notes one inline result page carries.
const notePageSize = 10

// noteTitleLimit caps the inline result title; the full text rides in the
// description.
const noteTitleLimit = 50

var noteCommandRe = regexp.MustCompile(`^/note-(\d+)`)

// Console implements the admin-only surface of the bot's private chat: the
// reply-keyboard menu, note capture, inline note search, note injection via
// /note-<id>, and the guarded destructive callbacks on conversation cards.
type Console struct {
	store    store.Store
	statuses *StatusStore
	gate     *Gate
	search   *search.Service
	roles    gateway.Roles
	groupID  int64
	log      zerolog.Logger
}

func NewConsole(st store.Store, statuses *StatusStore, gate *Gate, srch *search.Service, roles gateway.Roles, groupID int64, log zerolog.Logger) *Console {
	return &Console{
		store:    st,
		statuses: statuses,
		gate:     gate,
		search:   srch,
		roles:    roles,
		groupID:  groupID,
		log:      log.With().Str("component", "console").Logger(),
	}
}

// Start resets the admin to the idle console and shows the menu. It serves
// both /start and the cancel button.
func (c *Console) Start(ctx context.Context, ec *EventContext) (Verdict, error) {
	if err := c.statuses.Set(ctx, ec.Event.SenderID, StatusNull); err != nil {
		return Handled, fmt.Errorf("reset status: %w", err)
	}
	_, err := c.roles.Bot.Send(ctx, ec.Event.ChatID, textWelcome, gateway.SendOptions{Keyboard: adminMenu()})
	return Handled, err
}

// ListNotes offers the inline-search shortcut button.
func (c *Console) ListNotes(ctx context.Context, ec *EventContext) (Verdict, error) {
	_, err := c.roles.Bot.Send(ctx, ec.Event.ChatID, textListNotesPrompt, gateway.SendOptions{
		InlineShortcut: labelListNotes,
	})
	return Handled, err
}

// BeginAddNote switches the admin into note-capture mode.
func (c *Console) BeginAddNote(ctx context.Context, ec *EventContext) (Verdict, error) {
	if err := c.statuses.Set(ctx, ec.Event.SenderID, StatusInputMessage); err != nil {
		return Handled, fmt.Errorf("set status: %w", err)
	}
	_, err := c.roles.Bot.Send(ctx, ec.Event.ChatID, textAddNotePrompt, gateway.SendOptions{Keyboard: cancelMenu()})
	return Handled, err
}

// CaptureNote stores the message as a new note while the admin is in
// capture mode, then drops back to the idle console.
func (c *Console) CaptureNote(ctx context.Context, ec *EventContext) (Verdict, error) {
	msg := ec.Event.Msg
	if msg.Text == "" {
		_, err := c.roles.Bot.Send(ctx, ec.Event.ChatID, textNoteMustBeText, gateway.SendOptions{})
		return Handled, err
	}
	note, err := c.store.CreateNote(ctx, msg.Text)
	if err != nil {
		return Handled, fmt.Errorf("create note: %w", err)
	}
	c.search.IndexNote(note)
	if _, err := c.roles.Bot.Send(ctx, ec.Event.ChatID, fmt.Sprintf(textNoteAdded, note.Message), gateway.SendOptions{
		ReplyTo: msg.ID,
		Buttons: deleteNoteButton(note.ID),
	}); err != nil {
		return Handled, err
	}
	return c.Start(ctx, ec)
}

// NoteCommand handles /note-<id> messages produced by picking an inline
// search result. In the admin's private chat it previews the note with a
// delete button. Inside a support topic it swaps the command for the note
// body and lets the mirror route deliver it to the user.
func (c *Console) NoteCommand(ctx context.Context, ec *EventContext) (Verdict, error) {
	msg := ec.Event.Msg
	match := noteCommandRe.FindStringSubmatch(msg.Text)
	if match == nil {
		return Continue, nil
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return Continue, nil
	}
	note, err := c.store.GetNote(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		// A stale inline pick. Swallow it rather than relay the raw command.
		return Drop, nil
	}
	if err != nil {
		return Handled, fmt.Errorf("get note %d: %w", id, err)
	}
	if ec.Event.Chat == gateway.ChatPrivate {
		_, err := c.roles.Bot.Send(ctx, ec.Event.ChatID, note.Message, gateway.SendOptions{
			ReplyTo: msg.ID,
			Buttons: deleteNoteButton(note.ID),
		})
		return Handled, err
	}
	if err := c.store.TouchNote(ctx, id); err != nil {
		c.log.Warn().Err(err).Int64("note_id", id).Msg("touch note")
	} else {
		note.LastUsedDate = time.Now()
		c.search.IndexNote(note)
	}
	// Rewrite the event in place; the group mirror route runs next and
	// delivers the note body instead of the command.
	ec.Event.Msg.Text = note.Message
	return Continue, nil
}

// SearchNotes answers the inline query with one page of notes, most
// recently used first.
func (c *Console) SearchNotes(ctx context.Context, ec *EventContext) (Verdict, error) {
	q := ec.Event.Inline
	offset := 0
	if q.Offset != "" {
		if n, err := strconv.Atoi(q.Offset); err == nil {
			offset = n
		}
	}
	notes, err := c.search.Search(ctx, q.Query, notePageSize, offset)
	if err != nil {
		return Handled, fmt.Errorf("search notes: %w", err)
	}
	results := make([]gateway.InlineResult, 0, len(notes))
	for _, note := range notes {
		results = append(results, gateway.InlineResult{
			Title:       truncate(note.Message, noteTitleLimit),
			Description: note.Message,
			Text:        fmt.Sprintf("/note-%d", note.ID),
		})
	}
	next := ""
	if len(results) > 0 {
		next = strconv.Itoa(offset + notePageSize)
	}
	return Handled, c.roles.Bot.AnswerInline(ctx, q.ID, results, next)
}

// HandleCallback routes an inline-button click to the matching guarded
// action.
func (c *Console) HandleCallback(ctx context.Context, ec *EventContext) (Verdict, error) {
	cb := ec.Event.Callback
	kind, idText, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return Continue, nil
	}
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		return Continue, nil
	}
	switch ActionKind(kind) {
	case ActionBlock:
		return c.setBlocked(ctx, cb, id, true)
	case ActionUnblock:
		return c.setBlocked(ctx, cb, id, false)
	case ActionDeleteNote:
		return c.deleteNote(ctx, cb, id)
	case ActionDeleteConv:
		return c.deleteConversation(ctx, cb, id)
	}
	return Continue, nil
}

func (c *Console) setBlocked(ctx context.Context, cb *gateway.Callback, userID int64, block bool) (Verdict, error) {
	if _, err := c.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Handled, c.roles.Bot.AnswerCallback(ctx, cb.ID, textUserNotFound, true)
		}
		return Handled, fmt.Errorf("get user %d: %w", userID, err)
	}
	kind := ActionBlock
	if !block {
		kind = ActionUnblock
	}
	res, err := c.gate.Guard(ctx, kind, userID)
	if err != nil {
		return Handled, err
	}
	if res == Armed {
		return Handled, c.roles.Bot.AnswerCallback(ctx, cb.ID, textConfirmAgain, true)
	}
	if block {
		err = c.roles.Operator.Block(ctx, userID)
	} else {
		err = c.roles.Operator.Unblock(ctx, userID)
	}
	if err != nil {
		return Handled, fmt.Errorf("%s user %d: %w", kind, userID, err)
	}
	profile, err := c.roles.Operator.Profile(ctx, userID)
	if err != nil {
		return Handled, fmt.Errorf("profile %d: %w", userID, err)
	}
	headline := textUserBlocked
	buttons := blockedButtons(userID)
	if !block {
		headline = textUserUnblocked
		buttons = conversationButtons(userID)
	}
	if err := c.roles.Bot.EditCard(ctx, cb.ChatID, cb.MessageID, profileCard(profile, headline), buttons); err != nil {
		return Handled, fmt.Errorf("edit card: %w", err)
	}
	return Handled, c.roles.Bot.AnswerCallback(ctx, cb.ID, headline, false)
}

func (c *Console) deleteNote(ctx context.Context, cb *gateway.Callback, noteID int64) (Verdict, error) {
	note, err := c.store.GetNote(ctx, noteID)
	if errors.Is(err, store.ErrNotFound) {
		return Handled, c.roles.Bot.AnswerCallback(ctx, cb.ID, textNoteNotFound, true)
	}
	if err != nil {
		return Handled, fmt.Errorf("get note %d: %w", noteID, err)
	}
	res, err := c.gate.Guard(ctx, ActionDeleteNote, noteID)
	if err != nil {
		return Handled, err
	}
	if res == Armed {
		return Handled, c.roles.Bot.AnswerCallback(ctx, cb.ID, textConfirmAgain, true)
	}
	if err := c.store.DeleteNote(ctx, noteID); err != nil {
		return Handled, fmt.Errorf("delete note %d: %w", noteID, err)
	}
	c.search.RemoveNote(noteID)
	if err := c.roles.Bot.EditCard(ctx, cb.ChatID, cb.MessageID, fmt.Sprintf(textNoteDeleted, note.Message), nil); err != nil {
		return Handled, fmt.Errorf("edit card: %w", err)
	}
	return Handled, c.roles.Bot.AnswerCallback(ctx, cb.ID, textNoteDeleted, false)
}

// deleteConversation wipes both sides of a conversation. Cleanup is best
// effort: a failed step is logged and the remaining steps still run.
func (c *Console) deleteConversation(ctx context.Context, cb *gateway.Callback, userID int64) (Verdict, error) {
	user, err := c.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return Handled, c.roles.Bot.AnswerCallback(ctx, cb.ID, textUserNotFound, true)
	}
	if err != nil {
		return Handled, fmt.Errorf("get user %d: %w", userID, err)
	}
	res, err := c.gate.Guard(ctx, ActionDeleteConv, userID)
	if err != nil {
		return Handled, err
	}
	if res == Armed {
		return Handled, c.roles.Bot.AnswerCallback(ctx, cb.ID, textConfirmAgain, true)
	}
	if err := c.roles.Operator.WipeHistory(ctx, userID); err != nil {
		c.log.Warn().Err(err).Int64("user_id", userID).Msg("wipe private history")
	}
	if user.TopicID != 0 {
		if err := c.roles.Relay.PurgeThread(ctx, c.groupID, user.TopicID); err != nil {
			c.log.Warn().Err(err).Int64("topic_id", user.TopicID).Msg("purge topic")
		}
	}
	text := textConversationGone
	if profile, err := c.roles.Operator.Profile(ctx, userID); err == nil {
		text = profileCard(profile, textConversationGone)
	} else {
		c.log.Debug().Err(err).Int64("user_id", userID).Msg("profile for deletion notice")
	}
	if _, err := c.roles.Bot.Send(ctx, c.groupID, text, gateway.SendOptions{}); err != nil {
		c.log.Warn().Err(err).Msg("send deletion notice")
	}
	return Handled, c.roles.Bot.AnswerCallback(ctx, cb.ID, textConversationGone, false)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
