package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/recallhq/engine/pkg/clock"
	"github.com/recallhq/engine/pkg/models"
	"github.com/recallhq/engine/pkg/repository"
	"github.com/robfig/cron/v3"
)

const defaultSweeperPauseTTL = 24 * time.Hour

// Sweeper periodically expires Paused sessions that have sat idle past
// their TTL, marking them Abandoned so they stop counting against the
// "at most one resumable session per set" invariant forever. Driven by
// a cron schedule per config.SweeperConfig rather than a bare ticker,
// so the interval is configurable without a redeploy.
type Sweeper struct {
	repos  repository.Repositories
	clock  clock.Clock
	ttl    time.Duration
	logger *slog.Logger

	cronEngine *cron.Cron
}

// NewSweeper builds a Sweeper bound to the session repository. ttl
// defaults to 24h if zero.
func NewSweeper(repos repository.Repositories, clk clock.Clock, ttl time.Duration, logger *slog.Logger) *Sweeper {
	if ttl <= 0 {
		ttl = defaultSweeperPauseTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		repos:      repos,
		clock:      clk,
		ttl:        ttl,
		logger:     logger,
		cronEngine: cron.New(),
	}
}

// Start registers the sweep on the given cron schedule and begins
// running it. schedule is a standard 5-field cron expression.
func (s *Sweeper) Start(schedule string) error {
	_, err := s.cronEngine.AddFunc(schedule, s.sweepOnce)
	if err != nil {
		return err
	}
	s.cronEngine.Start()
	return nil
}

// Stop halts the cron engine and waits for any in-flight sweep to
// finish.
func (s *Sweeper) Stop() {
	<-s.cronEngine.Stop().Done()
}

func (s *Sweeper) sweepOnce() {
	ctx := context.Background()
	threshold := s.clock.Now().Add(-s.ttl).Unix()

	stale, err := s.repos.Sessions.FindStalePaused(ctx, threshold)
	if err != nil {
		s.logger.Error("sweeper: failed to query stale paused sessions", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	now := s.clock.Now()
	abandoned := 0
	for _, sess := range stale {
		sess.Status = models.SessionStatusAbandoned
		sess.EndedAt = &now
		if err := s.repos.Sessions.Update(ctx, sess); err != nil {
			s.logger.Error("sweeper: failed to abandon stale session", "session_id", sess.ID, "error", err)
			continue
		}
		abandoned++
	}
	s.logger.Info("sweeper: expired stale paused sessions", "found", len(stale), "abandoned", abandoned)
}
