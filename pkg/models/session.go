package models

import "time"

// SessionStatus is the lifecycle state of a study Session.
type SessionStatus string

// Session lifecycle states.
const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusAbandoned  SessionStatus = "abandoned"
	SessionStatusPaused     SessionStatus = "paused"
)

// Session is one run of the tutor conversation over a set of due recall
// points drawn from a single RecallSet.
type Session struct {
	ID                   string
	RecallSetID          string
	Status               SessionStatus
	TargetRecallPointIDs []string
	CheckedRecallPointID string
	Messages             []SessionMessage
	StartedAt            time.Time
	EndedAt              *time.Time
	LastActivityAt       time.Time
}

// IsTerminal reports whether the session has finished and will not
// resume.
func (s *Session) IsTerminal() bool {
	switch s.Status {
	case SessionStatusCompleted, SessionStatusAbandoned:
		return true
	default:
		return false
	}
}

// Remaining returns the target recall point IDs not yet checked off.
// The order is preserved so resumption picks up the same sequence.
func (s *Session) Remaining(checked map[string]bool) []string {
	remaining := make([]string, 0, len(s.TargetRecallPointIDs))
	for _, id := range s.TargetRecallPointIDs {
		if !checked[id] {
			remaining = append(remaining, id)
		}
	}
	return remaining
}

// AppendMessage appends a message and advances LastActivityAt.
func (s *Session) AppendMessage(msg SessionMessage) {
	msg.MessageIndex = len(s.Messages)
	s.Messages = append(s.Messages, msg)
	s.LastActivityAt = msg.Timestamp
}
