package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/patronhq/patron/internal/auth/store"
)

// HousekeepingService prunes durable rows that aged out. Session-store keys
// expire on their own via TTL, so only the relational side needs sweeping:
// revoked credentials are kept for a retention window for audit, then
// deleted.
type HousekeepingService struct {
	Store store.Store
	Log   *slog.Logger

	// Interval between sweeps.
	Interval time.Duration

	// Retention is how long revoked credentials are kept before deletion.
	Retention time.Duration
}

// Run sweeps on a ticker until the context is cancelled. Call in a goroutine.
func (s *HousekeepingService) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *HousekeepingService) sweep(ctx context.Context) {
	retention := s.Retention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	cutoff := time.Now().Add(-retention)

	n, err := s.Store.Credentials().DeleteRevokedCredentialsBefore(ctx, cutoff)
	if err != nil {
		s.Log.Error("housekeeping: prune revoked credentials", slog.Any("error", err))
		return
	}
	if n > 0 {
		s.Log.Info("housekeeping: pruned revoked credentials", slog.Int64("count", n))
	}
}
