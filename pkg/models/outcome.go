package models

import "time"

// RecallOutcome is the record of one recall point being checked during a
// session: the evaluator's verdict plus the FSRS rating it implied.
//
// MessageIndexStart and MessageIndexEnd are absolute SessionMessage
// indices (not positions within the evaluator's recent-message window)
// bounding the turns that produced this verdict: MessageIndexStart <=
// MessageIndexEnd, and both must reference messages that exist in the
// same session.
type RecallOutcome struct {
	ID                string
	SessionID         string
	RecallPointID     string
	Success           bool
	Rating            Rating
	Confidence        float64
	Reasoning         string
	MessageIndexStart int
	MessageIndexEnd   int
	TimeSpentMs       int64
	EvaluatedAt       time.Time
}
