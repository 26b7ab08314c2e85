// Package models defines the core data entities shared by the recall
// engine: recall sets and points, sessions and their messages, recall
// outcomes, rabbithole events, and derived session metrics.
package models

import "time"

// RecallSetStatus is the lifecycle state of a RecallSet.
type RecallSetStatus string

// Recall set lifecycle states.
const (
	RecallSetStatusActive   RecallSetStatus = "active"
	RecallSetStatusPaused   RecallSetStatus = "paused"
	RecallSetStatusArchived RecallSetStatus = "archived"
)

// RecallSet is a named collection of recall points studied together.
// The engine only reads active sets; creation and editing are handled
// by an external collaborator.
type RecallSet struct {
	ID                     string
	Name                   string
	Description            string
	Status                 RecallSetStatus
	DiscussionSystemPrompt string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// IsActive reports whether the set can be studied right now.
func (s *RecallSet) IsActive() bool {
	return s.Status == RecallSetStatusActive
}
