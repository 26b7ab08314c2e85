// Package fsrs implements the Free Spaced Repetition Scheduler: a pure
// function over (prior memory state, rating, elapsed time) that produces
// the next memory state and due date. It has no side effects and no
// dependencies beyond the standard library — there is nothing in this
// engine's domain to ground a numeric scheduler like this on; the
// formulas below are the published FSRS-5 algorithm.
package fsrs

import (
	"math"
	"time"

	"github.com/recallhq/engine/pkg/models"
)

// NumWeights is the length of the FSRS weight vector (w0..w18).
const NumWeights = 19

// Weights is the 19-parameter FSRS weight vector.
type Weights [NumWeights]float64

// DefaultWeights are the commonly published FSRS-5 default parameters.
var DefaultWeights = Weights{
	0.4072, 1.1829, 3.1262, 15.4722, 7.2102, 0.5316, 1.0651, 0.0234,
	1.616, 0.1544, 1.0824, 1.9813, 0.0953, 0.2975, 2.2042, 0.2407,
	2.9466, 0.5034, 0.6567,
}

const (
	minDifficulty = 1.0
	maxDifficulty = 10.0
	minStability  = 0.01

	minIntervalDays = 1.0
	maxIntervalDays = 36500.0

	// retentionFactor parameterizes the forgetting curve
	// R(t, S) = (1 + t/(9*S))^-1, the classic FSRS power-law form.
	retentionFactor = 9.0
)

// Scheduler applies FSRS transitions using a fixed weight vector and
// desired retention target.
type Scheduler struct {
	Weights          Weights
	DesiredRetention float64
}

// New builds a Scheduler. desiredRetention must be in (0, 1); it is not
// validated here since pkg/config owns input validation.
func New(weights Weights, desiredRetention float64) *Scheduler {
	return &Scheduler{Weights: weights, DesiredRetention: desiredRetention}
}

// CreateInitialState returns the FSRSState for a never-reviewed point:
// state=new, reps=0, lapses=0, due=now.
func (s *Scheduler) CreateInitialState(now time.Time) models.FSRSState {
	return models.FSRSState{
		Difficulty: s.initialDifficulty(models.RatingGood),
		Stability:  s.initialStability(models.RatingGood),
		Due:        now,
		LastReview: nil,
		Reps:       0,
		Lapses:     0,
		State:      models.FSRSStateNew,
	}
}

// Update applies one FSRS transition: given the prior state, a rating,
// and the review timestamp, it returns the next state. Update is total —
// defined for every (state, rating) pair — and has no side effects.
func (s *Scheduler) Update(prior models.FSRSState, rating models.Rating, reviewedAt time.Time) models.FSRSState {
	next := prior

	elapsedDays := 0.0
	if prior.LastReview != nil {
		elapsedDays = reviewedAt.Sub(*prior.LastReview).Hours() / 24
		if elapsedDays < 0 {
			elapsedDays = 0
		}
	}

	switch prior.State {
	case models.FSRSStateNew:
		next.Difficulty = s.initialDifficulty(rating)
		next.Stability = s.initialStability(rating)
	default:
		retrievability := s.retrievability(prior.Stability, elapsedDays)
		next.Difficulty = s.nextDifficulty(prior.Difficulty, rating)
		if rating == models.RatingAgain {
			next.Stability = s.nextStabilityOnLapse(prior.Difficulty, prior.Stability, retrievability)
		} else if elapsedDays < 1 {
			next.Stability = s.shortTermStability(prior.Stability, rating)
		} else {
			next.Stability = s.nextStabilityOnSuccess(prior.Difficulty, prior.Stability, retrievability, rating)
		}
	}

	next.Stability = clamp(next.Stability, minStability, math.MaxFloat64)
	next.Difficulty = clamp(next.Difficulty, minDifficulty, maxDifficulty)

	next.Reps = prior.Reps + 1
	if rating == models.RatingAgain {
		next.Lapses = prior.Lapses + 1
		next.State = models.FSRSStateRelearning
	} else if prior.State == models.FSRSStateNew {
		next.State = models.FSRSStateLearning
	} else {
		next.State = models.FSRSStateReview
	}

	interval := s.intervalDays(next.Stability)
	if rating == models.RatingAgain {
		interval = math.Min(interval, minIntervalDays)
	}
	next.Due = reviewedAt.Add(time.Duration(interval * 24 * float64(time.Hour)))
	reviewedCopy := reviewedAt
	next.LastReview = &reviewedCopy

	return next
}

func (s *Scheduler) initialDifficulty(rating models.Rating) float64 {
	g := ratingValue(rating)
	w := s.Weights
	d := w[4] - math.Exp(w[5]*(g-1)) + 1
	return clamp(d, minDifficulty, maxDifficulty)
}

func (s *Scheduler) initialStability(rating models.Rating) float64 {
	w := s.Weights
	switch rating {
	case models.RatingAgain:
		return math.Max(w[0], minStability)
	case models.RatingHard:
		return math.Max(w[1], minStability)
	case models.RatingGood:
		return math.Max(w[2], minStability)
	default:
		return math.Max(w[3], minStability)
	}
}

func (s *Scheduler) nextDifficulty(prior float64, rating models.Rating) float64 {
	w := s.Weights
	g := ratingValue(rating)
	delta := -w[6] * (g - 3)
	dp := prior + delta*(10-prior)/9
	d0Good := s.initialDifficulty(models.RatingGood)
	reverted := w[7]*d0Good + (1-w[7])*dp
	return clamp(reverted, minDifficulty, maxDifficulty)
}

func (s *Scheduler) nextStabilityOnSuccess(difficulty, stability, retrievability float64, rating models.Rating) float64 {
	w := s.Weights
	hardPenalty := 1.0
	if rating == models.RatingHard {
		hardPenalty = w[15]
	}
	easyBonus := 1.0
	if rating == models.RatingEasy {
		easyBonus = w[16]
	}
	growth := math.Exp(w[8]) *
		(11 - difficulty) *
		math.Pow(stability, -w[9]) *
		(math.Exp((1-retrievability)*w[10]) - 1) *
		hardPenalty * easyBonus
	return stability * (1 + growth)
}

func (s *Scheduler) nextStabilityOnLapse(difficulty, stability, retrievability float64) float64 {
	w := s.Weights
	post := w[11] *
		math.Pow(difficulty, -w[12]) *
		(math.Pow(stability+1, w[13]) - 1) *
		math.Exp((1-retrievability)*w[14])
	return math.Min(post, stability)
}

func (s *Scheduler) shortTermStability(stability float64, rating models.Rating) float64 {
	w := s.Weights
	g := ratingValue(rating)
	return stability * math.Exp(w[17]*(g-3+w[18]))
}

func (s *Scheduler) retrievability(stability, elapsedDays float64) float64 {
	if stability <= 0 {
		return 0
	}
	return math.Pow(1+elapsedDays/(retentionFactor*stability), -1)
}

// intervalDays computes the next due interval in days for the configured
// desired retention, clamped to [1, 36500].
func (s *Scheduler) intervalDays(stability float64) float64 {
	r := s.DesiredRetention
	if r <= 0 || r >= 1 {
		r = 0.9
	}
	interval := retentionFactor * stability * (1/r - 1)
	return clamp(interval, minIntervalDays, maxIntervalDays)
}

func ratingValue(rating models.Rating) float64 {
	switch rating {
	case models.RatingAgain:
		return 1
	case models.RatingHard:
		return 2
	case models.RatingGood:
		return 3
	case models.RatingEasy:
		return 4
	default:
		return 3
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
