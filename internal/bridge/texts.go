package bridge

import (
	"fmt"
	"strings"

	"topicbridge/internal/gateway"
)

// Console commands and the reply-keyboard menu.
const (
	cmdStart     = "/start"
	cmdCancel    = "• Cancel"
	cmdListNotes = "• List notes"
	cmdAddNote   = "• Add note"
)

const (
	editedMarker  = "\n(edited)"
	deletedMarker = "\n(deleted)"
)

const (
	textWelcome          = "Welcome back."
	textListNotesPrompt  = "Tap the button below and pick a note."
	textAddNotePrompt    = "Send the note text."
	textNoteMustBeText   = "A note must be plain text."
	textNoteAdded        = "Note saved\n\n%s"
	textNoteDeleted      = "Note deleted\n\n%s"
	textNoteNotFound     = "Note not found"
	textUserNotFound     = "User not found"
	textInvalidTopic     = "This topic is not linked to a conversation; please close it."
	textConfirmAgain     = "Tap again to confirm."
	textUserBlocked      = "User blocked"
	textUserUnblocked    = "User unblocked"
	textConversationGone = "Conversation deleted"
)

const (
	labelBlock      = "Block"
	labelUnblock    = "Unblock"
	labelDelete     = "Delete conversation"
	labelDeleteNote = "Delete"
	labelListNotes  = "List notes"
)

func adminMenu() [][]string {
	return [][]string{{cmdListNotes, cmdAddNote}}
}

func cancelMenu() [][]string {
	return [][]string{{cmdCancel}}
}

// profileCard renders the pinned conversation card: display name, id,
// username, and platform trust warnings.
func profileCard(p gateway.Profile, headline string) string {
	var b strings.Builder
	if headline != "" {
		b.WriteString(headline)
		b.WriteString("\n\n")
	}
	name := p.FirstName
	if p.LastName != "" {
		name += " " + p.LastName
	}
	fmt.Fprintf(&b, "• Name: %s\n", name)
	fmt.Fprintf(&b, "• ID: %d\n", p.ID)
	if p.Username != "" {
		fmt.Fprintf(&b, "• Username: @%s", p.Username)
	} else {
		b.WriteString("• Username: none")
	}
	if p.Fake {
		b.WriteString("\n\n⚠️ This account is flagged as a possible impersonation.")
	}
	if p.Scam {
		b.WriteString("\n\n⚠️ This account is flagged as a possible scam.")
	}
	return b.String()
}

// topicTitle composes the support-thread title for a user.
func topicTitle(p gateway.Profile) string {
	title := p.FirstName
	if p.LastName != "" {
		title += " " + p.LastName
	}
	if p.Username != "" {
		title += "(@" + p.Username + ")"
	}
	return title
}

func conversationButtons(userID int64) [][]gateway.Button {
	return [][]gateway.Button{{
		{Label: labelBlock, Data: fmt.Sprintf("block:%d", userID)},
		{Label: labelDelete, Data: fmt.Sprintf("delete:%d", userID)},
	}}
}

func blockedButtons(userID int64) [][]gateway.Button {
	return [][]gateway.Button{{
		{Label: labelUnblock, Data: fmt.Sprintf("unblock:%d", userID)},
		{Label: labelDelete, Data: fmt.Sprintf("delete:%d", userID)},
	}}
}

func deleteNoteButton(noteID int64) [][]gateway.Button {
	return [][]gateway.Button{{
		{Label: labelDeleteNote, Data: fmt.Sprintf("delete-note:%d", noteID)},
	}}
}
