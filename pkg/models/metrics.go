package models

import "time"

// SessionMetrics is the derived, read-only summary of a session used for
// end-of-session reporting. It is computed from a Session's outcomes
// and messages, never persisted independently.
type SessionMetrics struct {
	SessionID        string
	PointsChecked    int
	PointsAgain      int
	PointsHard       int
	PointsGood       int
	PointsEasy       int
	RabbitholeCount  int
	RabbitholeTime   time.Duration
	TotalDuration    time.Duration
	AverageLatencyMs float64
	ActiveTimeMs     int64
	TargetCount      int
	MessageCount     int
	RecallRate       float64
	Engagement       float64
}

// Engagement computes the spec's weighted-sum engagement score in
// [0, 100]: normalized active time (40%), recall rate (40%), and
// message-count saturation (20%), each clamped to [0, 1] before
// weighting.
func Engagement(activeTimeMs, durationMs int64, recallRate float64, messageCount, targetCount int) float64 {
	activeFrac := 0.0
	if durationMs > 0 {
		activeFrac = clamp01(float64(activeTimeMs) / float64(durationMs))
	}
	recallFrac := clamp01(recallRate)
	messageFrac := 1.0
	if targetCount > 0 {
		messageFrac = clamp01(float64(messageCount) / (float64(targetCount) * 2))
	}
	return clamp01(0.4*activeFrac+0.4*recallFrac+0.2*messageFrac) * 100
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// SummarizeMetrics computes a SessionMetrics from a session's recorded
// outcomes and rabbithole events. activeTimeMs and targetCount feed the
// engagement score; the caller tracks active time by summing
// inter-message gaps below the stall threshold.
func SummarizeMetrics(session *Session, outcomes []RecallOutcome, rabbitholes []RabbitholeEvent, now time.Time, activeTimeMs int64, targetCount int) SessionMetrics {
	m := SessionMetrics{SessionID: session.ID, ActiveTimeMs: activeTimeMs, TargetCount: targetCount}
	var latencySum int64
	for _, o := range outcomes {
		m.PointsChecked++
		latencySum += o.TimeSpentMs
		switch o.Rating {
		case RatingAgain:
			m.PointsAgain++
		case RatingHard:
			m.PointsHard++
		case RatingGood:
			m.PointsGood++
		case RatingEasy:
			m.PointsEasy++
		}
	}
	if m.PointsChecked > 0 {
		m.AverageLatencyMs = float64(latencySum) / float64(m.PointsChecked)
	}
	for i := range rabbitholes {
		m.RabbitholeCount++
		m.RabbitholeTime += rabbitholes[i].Duration(now)
	}
	end := now
	if session.EndedAt != nil {
		end = *session.EndedAt
	}
	m.TotalDuration = end.Sub(session.StartedAt)
	m.MessageCount = len(session.Messages)
	if targetCount > 0 {
		m.RecallRate = float64(m.PointsChecked) / float64(targetCount)
	}
	m.Engagement = Engagement(activeTimeMs, m.TotalDuration.Milliseconds(), m.RecallRate, m.MessageCount, targetCount)
	return m
}
