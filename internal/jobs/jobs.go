// Package jobs runs the periodic maintenance tasks of the webhook server.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Job tags, usable with RunNow.
const (
	TagSessionCleanup = "session-cleanup"
	TagStreakReset    = "streak-reset"
)

// Defaults for the maintenance windows.
const (
	SessionMaxAge     = 24 * time.Hour
	StreakInactivity  = 48 * time.Hour
	StreakResetAtTime = "00:05"
)

// SessionCleaner removes idle sessions.
type SessionCleaner interface {
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
}

// StreakResetter zeroes streaks of inactive users.
type StreakResetter interface {
	ResetStaleStreaks(ctx context.Context, inactiveFor time.Duration) (int, error)
}

// Scheduler wraps a UTC gocron scheduler.
type Scheduler struct {
	cron     *gocron.Scheduler
	sessions SessionCleaner
	users    StreakResetter
	logger   *zap.Logger
}

// New creates a Scheduler and registers the maintenance jobs. Nothing runs
// until Start.
func New(sessions SessionCleaner, users StreakResetter, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:     gocron.NewScheduler(time.UTC),
		sessions: sessions,
		users:    users,
		logger:   logger,
	}
	s.cron.SingletonModeAll()
	// Jobs first fire on their schedule, not at Start.
	s.cron.WaitForScheduleAll()

	if _, err := s.cron.Every(1).Hour().Tag(TagSessionCleanup).Do(s.cleanupSessions); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", TagSessionCleanup, err)
	}
	if _, err := s.cron.Every(1).Day().At(StreakResetAtTime).Tag(TagStreakReset).Do(s.resetStreaks); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", TagStreakReset, err)
	}
	return s, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.logger.Info("scheduled jobs started", zap.Int("jobs", s.cron.Len()))
}

// Stop halts the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunNow runs the jobs with the given tag immediately. The scheduler must
// be started.
func (s *Scheduler) RunNow(tag string) error {
	return s.cron.RunByTag(tag)
}

// Len is the number of registered jobs.
func (s *Scheduler) Len() int {
	return s.cron.Len()
}

func (s *Scheduler) cleanupSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.sessions.Cleanup(ctx, SessionMaxAge)
	if err != nil {
		s.logger.Error("session cleanup failed", zap.Error(err))
		return
	}
	s.logger.Debug("session cleanup done", zap.Int("removed", n))
}

func (s *Scheduler) resetStreaks() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.users.ResetStaleStreaks(ctx, StreakInactivity)
	if err != nil {
		s.logger.Error("streak reset failed", zap.Error(err))
		return
	}
	s.logger.Info("stale streaks reset", zap.Int("users", n))
}
