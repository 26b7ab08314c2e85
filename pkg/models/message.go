package models

import "time"

// MessageRole identifies the speaker of a SessionMessage.
type MessageRole string

// Session message roles.
const (
	RoleTutor   MessageRole = "tutor"
	RoleStudent MessageRole = "student"
	RoleSystem  MessageRole = "system"
)

// SessionMessage is one turn of the tutor/student conversation, in the
// order it was produced. Turns exchanged with a rabbithole agent are
// never recorded here: the stream only gains a RoleSystem marker row
// when an excursion opens or closes.
type SessionMessage struct {
	ID           string
	SessionID    string
	Role         MessageRole
	Content      string
	Timestamp    time.Time
	TokenCount   int
	MessageIndex int
}
