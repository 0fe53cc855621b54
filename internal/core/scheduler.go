package core

// scheduler.go runs periodic history maintenance:
//  1. purge stored runs older than the retention window
//  2. forget browser sessions that have been idle too long
//
// Failures are logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// HistoryConfig holds configuration for the history scheduler.
type HistoryConfig struct {
	RetentionDays int           // Days to keep finished runs (default: 30)
	CheckInterval time.Duration // How often to run (default: 6h)
	SessionIdle   time.Duration // Idle time before a session is dropped (default: 24h)
}

func (c HistoryConfig) withDefaults() HistoryConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 6 * time.Hour
	}
	if c.SessionIdle <= 0 {
		c.SessionIdle = 24 * time.Hour
	}
	return c
}

// StartHistoryScheduler runs maintenance immediately and then every
// CheckInterval until ctx is cancelled. It blocks; run it in a goroutine.
func (s *Service) StartHistoryScheduler(ctx context.Context, cfg HistoryConfig) {
	cfg = cfg.withDefaults()
	slog.Info("history scheduler started",
		"retention_days", cfg.RetentionDays,
		"check_interval", cfg.CheckInterval.String(),
	)

	s.runHistoryJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history scheduler stopped")
			return
		case <-ticker.C:
			s.runHistoryJob(ctx, cfg)
		}
	}
}

// runHistoryJob performs one purge + prune cycle.
func (s *Service) runHistoryJob(ctx context.Context, cfg HistoryConfig) {
	start := time.Now()

	if s.store != nil {
		cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)
		purged, err := s.store.PurgeBefore(ctx, cutoff)
		if err != nil {
			slog.Error("history purge failed", "error", err)
		} else {
			slog.Info("purged old runs", "runs_purged", purged, "cutoff", cutoff.Format(time.DateOnly))
		}
	}

	pruned := s.pruneSessions(cfg.SessionIdle)
	slog.Debug("history job completed",
		"sessions_pruned", pruned,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
