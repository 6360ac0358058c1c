package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/emberalert/risk-service/internal/cache"
	"github.com/emberalert/risk-service/internal/models"
)

// Sweeper removes expired cache entries. Implemented by the in-memory store;
// memcached expires entries itself, so no sweeper is configured for it.
type Sweeper interface {
	Sweep() int
}

// Scheduler runs the periodic maintenance jobs: cache sweeping and
// re-warming of tracked locations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *zap.Logger

	sweeper       Sweeper
	sweepInterval time.Duration

	warmer       *cache.Warmer
	warmQueries  []models.RiskQuery
	warmInterval time.Duration
}

// New creates a Scheduler with no jobs configured.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    logger,
	}
}

// WithSweep enables the periodic expired-entry sweep.
func (s *Scheduler) WithSweep(sweeper Sweeper, interval time.Duration) *Scheduler {
	s.sweeper = sweeper
	s.sweepInterval = interval
	return s
}

// WithWarming enables periodic re-warming of tracked locations.
func (s *Scheduler) WithWarming(warmer *cache.Warmer, queries []models.RiskQuery, interval time.Duration) *Scheduler {
	s.warmer = warmer
	s.warmQueries = queries
	s.warmInterval = interval
	return s
}

// Start schedules the configured jobs and starts the scheduler in the
// background. Safe to call with no jobs configured.
func (s *Scheduler) Start() error {
	if s.sweeper != nil && s.sweepInterval > 0 {
		if _, err := s.scheduler.Every(int(s.sweepInterval.Seconds())).Seconds().Do(func() {
			removed := s.sweeper.Sweep()
			if removed > 0 {
				s.logger.Debug("cache sweep removed expired entries", zap.Int("removed", removed))
			}
		}); err != nil {
			return err
		}
	}

	if s.warmer != nil && len(s.warmQueries) > 0 && s.warmInterval > 0 {
		if _, err := s.scheduler.Every(int(s.warmInterval.Seconds())).Seconds().Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.warmer.Warm(ctx, s.warmQueries); err != nil {
				s.logger.Warn("scheduled warming failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
