// Package scheduler fires the recurring dispatch ticks.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler invokes the run function on a fixed interval until the context
// is cancelled. Overlapping protection lives in the runner's per-campaign
// locks, not here.
type Scheduler struct {
	interval time.Duration
	run      func(ctx context.Context) error
	logger   *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger, run func(ctx context.Context) error) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	return &Scheduler{interval: interval, run: run, logger: logger}
}

// Start blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			if err := s.run(ctx); err != nil {
				s.logger.Warn("scheduled tick failed", zap.Error(err))
			}
		}
	}
}
