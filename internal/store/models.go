package store

import "time"

// User is one end-user conversation. TopicID is 0 until a support-group
// thread has been created for the user.
type User struct {
	ID               int64
	UserID           int64
	TopicID          int64
	RegistrationDate time.Time
}

// Note is an admin-curated canned reply.
type Note struct {
	ID           int64
	Message      string
	LastUsedDate time.Time
}

// Pair maps a user-side message id to its support-group mirror. A pair row
// exists exactly while both copies are considered live; deleting the source
// message on either side removes the row.
type Pair struct {
	ID             int64
	UserID         int64
	UserMessageID  int64
	GroupMessageID int64
}
