// Package repository defines the engine's narrow per-entity storage
// interfaces. Persistence itself is deliberately out of scope for the
// core: these interfaces are the seam a real deployment plugs a
// database into.
package repository

import (
	"context"
	"errors"

	"github.com/recallhq/engine/pkg/models"
)

// ErrNotFound is returned by any Find call that has no match.
var ErrNotFound = errors.New("repository: not found")

// AggregateStats summarizes a recall set's study history for reporting.
type AggregateStats struct {
	TotalPoints     int
	DuePoints       int
	SessionsStarted int
	SessionsDone    int
}

// RecallSetRepository stores RecallSet entities.
type RecallSetRepository interface {
	FindByID(ctx context.Context, id string) (*models.RecallSet, error)
	FindByName(ctx context.Context, name string) (*models.RecallSet, error)
	Create(ctx context.Context, set *models.RecallSet) error
	Update(ctx context.Context, set *models.RecallSet) error
	Delete(ctx context.Context, id string) error
}

// RecallPointRepository stores RecallPoint entities.
type RecallPointRepository interface {
	FindByID(ctx context.Context, id string) (*models.RecallPoint, error)
	FindByRecallSetID(ctx context.Context, recallSetID string) ([]*models.RecallPoint, error)
	Create(ctx context.Context, point *models.RecallPoint) error
	Update(ctx context.Context, point *models.RecallPoint) error
	Delete(ctx context.Context, id string) error
	GetAggregateStats(ctx context.Context, recallSetID string) (AggregateStats, error)
}

// SessionRepository stores Session entities.
type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	// FindInProgressByRecallSetID returns the set's resumable session, if
	// any: one in InProgress or Paused status. A session a client left
	// with leave_session must still be found and resumed on the next
	// hello, not superseded by a fresh one.
	FindInProgressByRecallSetID(ctx context.Context, recallSetID string) (*models.Session, error)
	FindStalePaused(ctx context.Context, olderThan int64) ([]*models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
}

// MessageRepository stores SessionMessage entities.
type MessageRepository interface {
	FindByID(ctx context.Context, id string) (*models.SessionMessage, error)
	FindBySessionID(ctx context.Context, sessionID string) ([]*models.SessionMessage, error)
	Create(ctx context.Context, msg *models.SessionMessage) error
}

// OutcomeRepository stores RecallOutcome entities.
type OutcomeRepository interface {
	FindBySessionID(ctx context.Context, sessionID string) ([]*models.RecallOutcome, error)
	Create(ctx context.Context, outcome *models.RecallOutcome) error
}

// RabbitholeRepository stores RabbitholeEvent entities.
type RabbitholeRepository interface {
	FindBySessionID(ctx context.Context, sessionID string) ([]*models.RabbitholeEvent, error)
	Create(ctx context.Context, event *models.RabbitholeEvent) error
	Update(ctx context.Context, event *models.RabbitholeEvent) error
}

// Repositories bundles every entity repository the engine depends on,
// so components take one constructor argument instead of six.
type Repositories struct {
	RecallSets   RecallSetRepository
	RecallPoints RecallPointRepository
	Sessions     SessionRepository
	Messages     MessageRepository
	Outcomes     OutcomeRepository
	Rabbitholes  RabbitholeRepository
}
