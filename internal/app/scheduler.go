package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OrphanSweeper removes sessions nobody is joined to.
type OrphanSweeper interface {
	SweepOrphans(ctx context.Context) (int64, error)
}

// Scheduler runs background maintenance.
type Scheduler struct {
	sweeper  OrphanSweeper
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler; an interval of zero disables the sweep.
func NewScheduler(sweeper OrphanSweeper, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background tasks.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Orphan session sweep disabled")
		return
	}

	s.logger.Info("Starting background scheduler", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.runOrphanSweepTask(ctx)
}

// Stop stops the background tasks and waits for them to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Scheduler) runOrphanSweepTask(ctx context.Context) {
	defer s.wg.Done()

	// first run right at startup
	s.sweepOrphans(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOrphans(ctx)
		case <-s.stopChan:
			s.logger.Info("Orphan sweep task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Orphan sweep task cancelled")
			return
		}
	}
}

func (s *Scheduler) sweepOrphans(ctx context.Context) {
	n, err := s.sweeper.SweepOrphans(ctx)
	if err != nil {
		s.logger.Error("Failed to sweep orphan sessions", zap.Error(err))
		return
	}

	s.logger.Debug("Orphan sweep completed", zap.Int64("removed", n))
}
