package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/engine/pkg/models"
)

func TestMemoryRecallSetRepository_CreateFindUpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRecallSetRepository()

	set := &models.RecallSet{ID: "rs_1", Name: "Spanish Verbs"}
	require.NoError(t, repo.Create(ctx, set))

	found, err := repo.FindByID(ctx, "rs_1")
	require.NoError(t, err)
	assert.Equal(t, "Spanish Verbs", found.Name)

	byName, err := repo.FindByName(ctx, "spanish verbs")
	require.NoError(t, err)
	assert.Equal(t, "rs_1", byName.ID)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	found.Name = "Spanish Verbs (Updated)"
	require.NoError(t, repo.Update(ctx, found))
	reloaded, err := repo.FindByID(ctx, "rs_1")
	require.NoError(t, err)
	assert.Equal(t, "Spanish Verbs (Updated)", reloaded.Name)

	require.NoError(t, repo.Delete(ctx, "rs_1"))
	_, err = repo.FindByID(ctx, "rs_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRecallSetRepository_UpdateMissingFails(t *testing.T) {
	repo := NewMemoryRecallSetRepository()
	err := repo.Update(context.Background(), &models.RecallSet{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRecallPointRepository_FindByRecallSetIDAndStats(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRecallPointRepository()
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	due := &models.RecallPoint{ID: "rp_1", RecallSetID: "rs_1", FSRSState: models.FSRSState{Due: now.Add(-time.Hour)}}
	notDue := &models.RecallPoint{ID: "rp_2", RecallSetID: "rs_1", FSRSState: models.FSRSState{Due: now.Add(time.Hour)}}
	other := &models.RecallPoint{ID: "rp_3", RecallSetID: "rs_2", FSRSState: models.FSRSState{Due: now.Add(-time.Hour)}}

	require.NoError(t, repo.Create(ctx, due))
	require.NoError(t, repo.Create(ctx, notDue))
	require.NoError(t, repo.Create(ctx, other))

	points, err := repo.FindByRecallSetID(ctx, "rs_1")
	require.NoError(t, err)
	assert.Len(t, points, 2)

	stats, err := repo.GetAggregateStats(ctx, "rs_1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalPoints)
	assert.Equal(t, 1, stats.DuePoints)
}

func TestMemoryRecallPointRepository_DeleteMissingFails(t *testing.T) {
	repo := NewMemoryRecallPointRepository()
	assert.ErrorIs(t, repo.Delete(context.Background(), "missing"), ErrNotFound)
}

func TestMemorySessionRepository_FindInProgressByRecallSetID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	inProgress := &models.Session{ID: "sess_1", RecallSetID: "rs_1", Status: models.SessionStatusInProgress}
	completed := &models.Session{ID: "sess_2", RecallSetID: "rs_1", Status: models.SessionStatusCompleted}
	require.NoError(t, repo.Create(ctx, inProgress))
	require.NoError(t, repo.Create(ctx, completed))

	found, err := repo.FindInProgressByRecallSetID(ctx, "rs_1")
	require.NoError(t, err)
	assert.Equal(t, "sess_1", found.ID)

	_, err = repo.FindInProgressByRecallSetID(ctx, "rs_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySessionRepository_FindInProgressByRecallSetID_MatchesPaused(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	paused := &models.Session{ID: "sess_1", RecallSetID: "rs_1", Status: models.SessionStatusPaused}
	require.NoError(t, repo.Create(ctx, paused))

	found, err := repo.FindInProgressByRecallSetID(ctx, "rs_1")
	require.NoError(t, err)
	assert.Equal(t, "sess_1", found.ID)
}

func TestMemorySessionRepository_FindStalePaused(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	stale := &models.Session{ID: "sess_stale", Status: models.SessionStatusPaused, LastActivityAt: now.Add(-2 * time.Hour)}
	fresh := &models.Session{ID: "sess_fresh", Status: models.SessionStatusPaused, LastActivityAt: now.Add(-time.Minute)}
	active := &models.Session{ID: "sess_active", Status: models.SessionStatusInProgress, LastActivityAt: now.Add(-3 * time.Hour)}
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, repo.Create(ctx, fresh))
	require.NoError(t, repo.Create(ctx, active))

	found, err := repo.FindStalePaused(ctx, now.Add(-time.Hour).Unix())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "sess_stale", found[0].ID)
}

func TestMemorySessionRepository_CloneIsolatesMutation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	original := &models.Session{ID: "sess_1", TargetRecallPointIDs: []string{"rp_1", "rp_2"}}
	require.NoError(t, repo.Create(ctx, original))

	original.TargetRecallPointIDs[0] = "mutated"

	stored, err := repo.FindByID(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, "rp_1", stored.TargetRecallPointIDs[0])
}

func TestMemoryMessageRepository_FindBySessionID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMessageRepository()

	require.NoError(t, repo.Create(ctx, &models.SessionMessage{ID: "msg_1", SessionID: "sess_1"}))
	require.NoError(t, repo.Create(ctx, &models.SessionMessage{ID: "msg_2", SessionID: "sess_1"}))
	require.NoError(t, repo.Create(ctx, &models.SessionMessage{ID: "msg_3", SessionID: "sess_2"}))

	msgs, err := repo.FindBySessionID(ctx, "sess_1")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestMemoryOutcomeRepository_FindBySessionID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryOutcomeRepository()

	require.NoError(t, repo.Create(ctx, &models.RecallOutcome{ID: "out_1", SessionID: "sess_1"}))
	outcomes, err := repo.FindBySessionID(ctx, "sess_1")
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)
}

func TestMemoryRabbitholeRepository_CreateUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRabbitholeRepository()

	event := &models.RabbitholeEvent{ID: "rh_1", SessionID: "sess_1", Type: models.RabbitholeEntered}
	require.NoError(t, repo.Create(ctx, event))

	event.Type = models.RabbitholeReturned
	require.NoError(t, repo.Update(ctx, event))

	events, err := repo.FindBySessionID(ctx, "sess_1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.RabbitholeReturned, events[0].Type)

	err = repo.Update(ctx, &models.RabbitholeEvent{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewMemoryRepositories_SatisfiesRepositoriesBundle(t *testing.T) {
	repos := NewMemoryRepositories().AsRepositories()
	assert.NotNil(t, repos.RecallSets)
	assert.NotNil(t, repos.RecallPoints)
	assert.NotNil(t, repos.Sessions)
	assert.NotNil(t, repos.Messages)
	assert.NotNil(t, repos.Outcomes)
	assert.NotNil(t, repos.Rabbitholes)
}
