package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/recallhq/engine/pkg/models"
)

// MemoryRepositories is an in-memory implementation of Repositories,
// used by the default single-process deployment and throughout the
// test suite. Each entity map is guarded by its own RWMutex.
type MemoryRepositories struct {
	RecallSets   *MemoryRecallSetRepository
	RecallPoints *MemoryRecallPointRepository
	Sessions     *MemorySessionRepository
	Messages     *MemoryMessageRepository
	Outcomes     *MemoryOutcomeRepository
	Rabbitholes  *MemoryRabbitholeRepository
}

// NewMemoryRepositories builds an empty in-memory store.
func NewMemoryRepositories() *MemoryRepositories {
	return &MemoryRepositories{
		RecallSets:   NewMemoryRecallSetRepository(),
		RecallPoints: NewMemoryRecallPointRepository(),
		Sessions:     NewMemorySessionRepository(),
		Messages:     NewMemoryMessageRepository(),
		Outcomes:     NewMemoryOutcomeRepository(),
		Rabbitholes:  NewMemoryRabbitholeRepository(),
	}
}

// AsRepositories returns the bundle as the Repositories interface type.
func (m *MemoryRepositories) AsRepositories() Repositories {
	return Repositories{
		RecallSets:   m.RecallSets,
		RecallPoints: m.RecallPoints,
		Sessions:     m.Sessions,
		Messages:     m.Messages,
		Outcomes:     m.Outcomes,
		Rabbitholes:  m.Rabbitholes,
	}
}

// MemoryRecallSetRepository is an in-memory RecallSetRepository.
type MemoryRecallSetRepository struct {
	mu   sync.RWMutex
	sets map[string]*models.RecallSet
}

// NewMemoryRecallSetRepository creates an empty store.
func NewMemoryRecallSetRepository() *MemoryRecallSetRepository {
	return &MemoryRecallSetRepository{sets: make(map[string]*models.RecallSet)}
}

func (r *MemoryRecallSetRepository) FindByID(_ context.Context, id string) (*models.RecallSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.sets[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *set
	return &clone, nil
}

func (r *MemoryRecallSetRepository) FindByName(_ context.Context, name string) (*models.RecallSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, set := range r.sets {
		if strings.EqualFold(set.Name, name) {
			clone := *set
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRecallSetRepository) Create(_ context.Context, set *models.RecallSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *set
	r.sets[set.ID] = &clone
	return nil
}

func (r *MemoryRecallSetRepository) Update(_ context.Context, set *models.RecallSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sets[set.ID]; !ok {
		return ErrNotFound
	}
	clone := *set
	r.sets[set.ID] = &clone
	return nil
}

func (r *MemoryRecallSetRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sets[id]; !ok {
		return ErrNotFound
	}
	delete(r.sets, id)
	return nil
}

// MemoryRecallPointRepository is an in-memory RecallPointRepository.
type MemoryRecallPointRepository struct {
	mu     sync.RWMutex
	points map[string]*models.RecallPoint
}

// NewMemoryRecallPointRepository creates an empty store.
func NewMemoryRecallPointRepository() *MemoryRecallPointRepository {
	return &MemoryRecallPointRepository{points: make(map[string]*models.RecallPoint)}
}

func (r *MemoryRecallPointRepository) FindByID(_ context.Context, id string) (*models.RecallPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	point, ok := r.points[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *point
	return &clone, nil
}

func (r *MemoryRecallPointRepository) FindByRecallSetID(_ context.Context, recallSetID string) ([]*models.RecallPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.RecallPoint
	for _, point := range r.points {
		if point.RecallSetID == recallSetID {
			clone := *point
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *MemoryRecallPointRepository) Create(_ context.Context, point *models.RecallPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *point
	r.points[point.ID] = &clone
	return nil
}

func (r *MemoryRecallPointRepository) Update(_ context.Context, point *models.RecallPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.points[point.ID]; !ok {
		return ErrNotFound
	}
	clone := *point
	r.points[point.ID] = &clone
	return nil
}

func (r *MemoryRecallPointRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.points[id]; !ok {
		return ErrNotFound
	}
	delete(r.points, id)
	return nil
}

func (r *MemoryRecallPointRepository) GetAggregateStats(_ context.Context, recallSetID string) (AggregateStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stats AggregateStats
	now := time.Now()
	for _, point := range r.points {
		if point.RecallSetID != recallSetID {
			continue
		}
		stats.TotalPoints++
		if point.IsDue(now) {
			stats.DuePoints++
		}
	}
	return stats, nil
}

// MemorySessionRepository is an in-memory SessionRepository.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewMemorySessionRepository creates an empty store.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*models.Session)}
}

func (r *MemorySessionRepository) FindByID(_ context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := cloneSession(session)
	return clone, nil
}

func (r *MemorySessionRepository) FindInProgressByRecallSetID(_ context.Context, recallSetID string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, session := range r.sessions {
		if session.RecallSetID == recallSetID &&
			(session.Status == models.SessionStatusInProgress || session.Status == models.SessionStatusPaused) {
			return cloneSession(session), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemorySessionRepository) FindStalePaused(_ context.Context, olderThanUnixSeconds int64) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Session
	for _, session := range r.sessions {
		if session.Status == models.SessionStatusPaused && session.LastActivityAt.Unix() < olderThanUnixSeconds {
			out = append(out, cloneSession(session))
		}
	}
	return out, nil
}

func (r *MemorySessionRepository) Create(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *MemorySessionRepository) Update(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		return ErrNotFound
	}
	r.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *MemorySessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func cloneSession(s *models.Session) *models.Session {
	clone := *s
	clone.TargetRecallPointIDs = append([]string(nil), s.TargetRecallPointIDs...)
	clone.Messages = append([]models.SessionMessage(nil), s.Messages...)
	if s.EndedAt != nil {
		ended := *s.EndedAt
		clone.EndedAt = &ended
	}
	return &clone
}

// MemoryMessageRepository is an in-memory MessageRepository.
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	messages map[string]*models.SessionMessage
}

// NewMemoryMessageRepository creates an empty store.
func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{messages: make(map[string]*models.SessionMessage)}
}

func (r *MemoryMessageRepository) FindByID(_ context.Context, id string) (*models.SessionMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msg, ok := r.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *msg
	return &clone, nil
}

func (r *MemoryMessageRepository) FindBySessionID(_ context.Context, sessionID string) ([]*models.SessionMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.SessionMessage
	for _, msg := range r.messages {
		if msg.SessionID == sessionID {
			clone := *msg
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *MemoryMessageRepository) Create(_ context.Context, msg *models.SessionMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *msg
	r.messages[msg.ID] = &clone
	return nil
}

// MemoryOutcomeRepository is an in-memory OutcomeRepository.
type MemoryOutcomeRepository struct {
	mu       sync.RWMutex
	outcomes map[string]*models.RecallOutcome
}

// NewMemoryOutcomeRepository creates an empty store.
func NewMemoryOutcomeRepository() *MemoryOutcomeRepository {
	return &MemoryOutcomeRepository{outcomes: make(map[string]*models.RecallOutcome)}
}

func (r *MemoryOutcomeRepository) FindBySessionID(_ context.Context, sessionID string) ([]*models.RecallOutcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.RecallOutcome
	for _, o := range r.outcomes {
		if o.SessionID == sessionID {
			clone := *o
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *MemoryOutcomeRepository) Create(_ context.Context, outcome *models.RecallOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *outcome
	r.outcomes[outcome.ID] = &clone
	return nil
}

// MemoryRabbitholeRepository is an in-memory RabbitholeRepository.
type MemoryRabbitholeRepository struct {
	mu     sync.RWMutex
	events map[string]*models.RabbitholeEvent
}

// NewMemoryRabbitholeRepository creates an empty store.
func NewMemoryRabbitholeRepository() *MemoryRabbitholeRepository {
	return &MemoryRabbitholeRepository{events: make(map[string]*models.RabbitholeEvent)}
}

func (r *MemoryRabbitholeRepository) FindBySessionID(_ context.Context, sessionID string) ([]*models.RabbitholeEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.RabbitholeEvent
	for _, e := range r.events {
		if e.SessionID == sessionID {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *MemoryRabbitholeRepository) Create(_ context.Context, event *models.RabbitholeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *event
	r.events[event.ID] = &clone
	return nil
}

func (r *MemoryRabbitholeRepository) Update(_ context.Context, event *models.RabbitholeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[event.ID]; !ok {
		return ErrNotFound
	}
	clone := *event
	r.events[event.ID] = &clone
	return nil
}
