package hebbian

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sweeper drives the periodic decay sweep. Runs are non-overlapping: when a
// sweep is still in progress at the next tick, that tick is skipped so no
// edge decays twice in one window.
type Sweeper struct {
	adapter  *Adapter
	interval time.Duration
	running  atomic.Bool
	logger   *zap.Logger
}

// NewSweeper creates a sweeper ticking at the adapter's configured interval.
func NewSweeper(adapter *Adapter, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		adapter:  adapter,
		interval: adapter.cfg.SweepInterval,
		logger:   logger,
	}
}

// Run blocks, sweeping every interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("decay sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("decay sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep unless one is already in flight.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("decay sweep still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	n, err := s.adapter.DecayAll(ctx, 0, 0)
	if err != nil {
		s.logger.Warn("decay sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("decay sweep tick", zap.Int("decayed", n))
}
