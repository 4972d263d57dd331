package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically removes expired sessions from the store.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper running at the given interval.
func NewSweeper(store Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.store.DeleteExpired(ctx)
			if err != nil {
				s.logger.Error("session sweep failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if deleted > 0 {
				s.logger.Info("expired sessions removed",
					slog.Int("count", deleted),
				)
			}
		}
	}
}
