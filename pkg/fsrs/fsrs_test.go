package fsrs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/engine/pkg/models"
)

func TestCreateInitialState(t *testing.T) {
	s := New(DefaultWeights, 0.9)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	state := s.CreateInitialState(now)

	assert.Equal(t, models.FSRSStateNew, state.State)
	assert.Equal(t, 0, state.Reps)
	assert.Equal(t, 0, state.Lapses)
	assert.Nil(t, state.LastReview)
	assert.Equal(t, now, state.Due)
	assert.GreaterOrEqual(t, state.Difficulty, 1.0)
	assert.LessOrEqual(t, state.Difficulty, 10.0)
}

func TestUpdate_Totality(t *testing.T) {
	s := New(DefaultWeights, 0.9)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ratings := []models.Rating{models.RatingAgain, models.RatingHard, models.RatingGood, models.RatingEasy}
	states := []models.FSRSState{
		s.CreateInitialState(now),
		{Difficulty: 5, Stability: 3, Due: now, LastReview: ptrTime(now.AddDate(0, 0, -3)), Reps: 4, Lapses: 1, State: models.FSRSStateReview},
		{Difficulty: 9.5, Stability: 0.5, Due: now, LastReview: ptrTime(now.AddDate(0, 0, -1)), Reps: 2, Lapses: 2, State: models.FSRSStateRelearning},
	}

	for _, prior := range states {
		for _, rating := range ratings {
			reviewedAt := now.Add(2 * time.Hour)
			next := s.Update(prior, rating, reviewedAt)

			assert.GreaterOrEqual(t, next.Difficulty, 1.0)
			assert.LessOrEqual(t, next.Difficulty, 10.0)
			assert.GreaterOrEqual(t, next.Stability, minStability)
			require.NotNil(t, next.LastReview)
			assert.Equal(t, reviewedAt, *next.LastReview)

			if rating == models.RatingAgain {
				assert.False(t, next.Due.Before(reviewedAt))
			} else {
				assert.True(t, next.Due.After(reviewedAt))
			}
		}
	}
}

func TestUpdate_GoodReviewGrowsStability(t *testing.T) {
	s := New(DefaultWeights, 0.9)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	prior := models.FSRSState{
		Difficulty: 5,
		Stability:  3,
		Due:        now,
		LastReview: ptrTime(now.AddDate(0, 0, -3)),
		Reps:       4,
		Lapses:     0,
		State:      models.FSRSStateReview,
	}

	next := s.Update(prior, models.RatingGood, now)

	assert.Greater(t, next.Stability, prior.Stability)
	assert.Equal(t, models.FSRSStateReview, next.State)
	assert.Equal(t, prior.Reps+1, next.Reps)
	assert.Equal(t, prior.Lapses, next.Lapses)
}

func TestUpdate_AgainResetsStabilityAndIncrementsLapses(t *testing.T) {
	s := New(DefaultWeights, 0.9)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	prior := models.FSRSState{
		Difficulty: 4,
		Stability:  20,
		Due:        now,
		LastReview: ptrTime(now.AddDate(0, 0, -10)),
		Reps:       10,
		Lapses:     0,
		State:      models.FSRSStateReview,
	}

	next := s.Update(prior, models.RatingAgain, now)

	assert.Less(t, next.Stability, prior.Stability)
	assert.Equal(t, models.FSRSStateRelearning, next.State)
	assert.Equal(t, prior.Lapses+1, next.Lapses)
	assert.Equal(t, 1.0, next.Due.Sub(now).Hours()/24)
}

func TestIntervalDays_ClampedToBounds(t *testing.T) {
	tests := []struct {
		name      string
		stability float64
		retention float64
	}{
		{"tiny stability", 0.001, 0.9},
		{"huge stability", 1_000_000, 0.9},
		{"invalid retention falls back to default", 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(DefaultWeights, tt.retention)
			interval := s.intervalDays(tt.stability)
			assert.GreaterOrEqual(t, interval, minIntervalDays)
			assert.LessOrEqual(t, interval, maxIntervalDays)
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
