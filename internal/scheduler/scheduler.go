package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const jobTimeout = 30 * time.Second

// LeaderboardRebuilder refreshes the cached leaderboard from the database.
type LeaderboardRebuilder interface {
	RebuildLeaderboard(ctx context.Context) error
}

// Scheduler runs periodic maintenance jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// New creates a scheduler using the given location for cron expressions.
func New(location *time.Location, logger zerolog.Logger) *Scheduler {
	if location == nil {
		location = time.Local
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(location), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// ScheduleLeaderboardRebuild registers the leaderboard refresh under spec.
func (s *Scheduler) ScheduleLeaderboardRebuild(spec string, rebuilder LeaderboardRebuilder) error {
	if _, err := s.cron.AddFunc(spec, s.leaderboardJob(rebuilder)); err != nil {
		return fmt.Errorf("schedule leaderboard rebuild %q: %w", spec, err)
	}
	s.logger.Info().Str("schedule", spec).Msg("leaderboard rebuild scheduled")
	return nil
}

func (s *Scheduler) leaderboardJob(rebuilder LeaderboardRebuilder) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		started := time.Now()
		if err := rebuilder.RebuildLeaderboard(ctx); err != nil {
			s.logger.Error().Err(err).Msg("leaderboard rebuild failed")
			return
		}
		s.logger.Debug().Dur("took", time.Since(started)).Msg("leaderboard rebuilt")
	}
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduler stopped before running jobs finished")
	}
}
