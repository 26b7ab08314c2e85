package models

import "time"

// RabbitholeEventType distinguishes entering a side conversation from
// returning to the main recall flow.
type RabbitholeEventType string

// Rabbithole event types.
const (
	RabbitholeEntered  RabbitholeEventType = "entered"
	RabbitholeReturned RabbitholeEventType = "returned"
)

// RabbitholeMessage is one turn of a rabbithole excursion's isolated
// conversation. It never appears as a SessionMessage row; it lives only
// inside the owning RabbitholeEvent.
type RabbitholeMessage struct {
	Role    string
	Content string
}

// RabbitholeEvent records a single excursion into, or return from, an
// off-topic student question handled by the rabbithole agent. The event
// is either currently open (ReturnMessageIndex is nil) or closed, in
// which case TriggerMessageIndex < *ReturnMessageIndex. Nested
// excursions (a rabbithole opened while one is already active) share the
// same session but increment Depth.
//
// The turns exchanged with the rabbithole agent are never merged into
// the session's own SessionMessage stream; they live only in
// ConversationHistory, isolated from the parent recall conversation.
type RabbitholeEvent struct {
	ID                  string
	SessionID           string
	Type                RabbitholeEventType
	Topic               string
	Depth               int
	TriggerMessageIndex int
	ReturnMessageIndex  *int
	ConversationHistory []RabbitholeMessage
	StartedAt           time.Time
	EndedAt             *time.Time
}

// Duration returns how long the excursion lasted, or zero if still open.
func (e *RabbitholeEvent) Duration(now time.Time) time.Duration {
	if e.EndedAt != nil {
		return e.EndedAt.Sub(e.StartedAt)
	}
	return now.Sub(e.StartedAt)
}
