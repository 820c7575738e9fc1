package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiredBlockDeleter removes temporary block entries that expired before cutoff.
type ExpiredBlockDeleter interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BlockSweeper periodically prunes long-expired block entries.
// Expiry is already enforced on read, so the sweep only keeps the table small.
type BlockSweeper struct {
	logger    *zap.Logger
	repo      ExpiredBlockDeleter
	retention time.Duration
	interval  time.Duration
	now       Clock
	stopChan  chan struct{}
}

// NewBlockSweeper creates a sweeper that keeps expired entries for retention before deleting them.
func NewBlockSweeper(logger *zap.Logger, repo ExpiredBlockDeleter, interval, retention time.Duration) *BlockSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockSweeper{
		logger:    logger,
		repo:      repo,
		retention: retention,
		interval:  interval,
		now:       systemClock,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (s *BlockSweeper) Start() {
	go s.run()
}

// Stop stops the periodic sweep.
func (s *BlockSweeper) Stop() {
	close(s.stopChan)
}

func (s *BlockSweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce(context.Background())
		case <-s.stopChan:
			s.logger.Info("block sweeper stopped")
			return
		}
	}
}

func (s *BlockSweeper) sweepOnce(ctx context.Context) int64 {
	cutoff := s.now().Add(-s.retention)

	affected, err := s.repo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to delete expired block entries", zap.Error(err))
		return 0
	}

	if affected > 0 {
		s.logger.Info("deleted expired block entries",
			zap.Int64("count", affected),
			zap.Time("expired_before", cutoff),
		)
	}
	return affected
}
