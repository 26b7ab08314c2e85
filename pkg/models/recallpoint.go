package models

import (
	"fmt"
	"time"
)

// FSRSLearningState is the coarse learning phase of a recall point,
// distinct from the session-local "checked/unchecked" bookkeeping.
type FSRSLearningState string

// FSRS learning states.
const (
	FSRSStateNew        FSRSLearningState = "new"
	FSRSStateLearning   FSRSLearningState = "learning"
	FSRSStateReview     FSRSLearningState = "review"
	FSRSStateRelearning FSRSLearningState = "relearning"
)

// FSRSState is the per-point memory model maintained by the FSRS
// scheduler (pkg/fsrs). It is opaque to every other component: nothing
// outside pkg/fsrs mutates it directly.
type FSRSState struct {
	Difficulty float64 // in [1, 10]
	Stability  float64 // days, >= 0
	Due        time.Time
	LastReview *time.Time
	Reps       int
	Lapses     int
	State      FSRSLearningState
}

// RecallHistoryEntry is one append-only record of a recall attempt.
type RecallHistoryEntry struct {
	Timestamp time.Time
	Success   bool
	LatencyMs int64
}

// RecallPoint is an atomic fact scheduled for spaced repetition.
type RecallPoint struct {
	ID            string
	RecallSetID   string
	Content       string
	Context       string
	FSRSState     FSRSState
	RecallHistory []RecallHistoryEntry
}

// MinContentLength is the minimum length required of Content and Context.
const MinContentLength = 10

// Validate checks the RecallPoint invariants.
func (p *RecallPoint) Validate() error {
	if len(p.Content) < MinContentLength {
		return fmt.Errorf("recall point %s: content must be at least %d characters", p.ID, MinContentLength)
	}
	if len(p.Context) < MinContentLength {
		return fmt.Errorf("recall point %s: context must be at least %d characters", p.ID, MinContentLength)
	}
	if p.FSRSState.State == FSRSStateNew {
		if p.FSRSState.Reps != 0 {
			return fmt.Errorf("recall point %s: new point must have reps=0", p.ID)
		}
		if p.FSRSState.LastReview != nil {
			return fmt.Errorf("recall point %s: new point must have no last review", p.ID)
		}
	}
	return nil
}

// IsDue reports whether the point is due for review at the given time.
func (p *RecallPoint) IsDue(now time.Time) bool {
	return !p.FSRSState.Due.After(now)
}

// AppendHistory records a recall attempt outcome.
func (p *RecallPoint) AppendHistory(at time.Time, success bool, latencyMs int64) {
	p.RecallHistory = append(p.RecallHistory, RecallHistoryEntry{
		Timestamp: at,
		Success:   success,
		LatencyMs: latencyMs,
	})
}
