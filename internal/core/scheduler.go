package core

// scheduler.go provides background job scheduling for maintenance tasks.
//
// The archive job runs periodically to:
//  1. Move old entries from audit_log to audit_log_archive (hot -> cold)
//  2. Purge very old entries from the archive based on retention policy
//
// The scheduler is long-running and stops with its context. It logs
// progress and errors but never fails the application.

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/gedimport/internal/config"
	db "github.com/JonMunkholm/gedimport/internal/database"
)

// maxArchiveBatches bounds one archive run so a large backlog cannot hold
// the job forever; the rest is picked up by the next run.
const maxArchiveBatches = 100

// withArchiveDefaults fills zero values.
func withArchiveDefaults(cfg config.ArchiveConfig) config.ArchiveConfig {
	if cfg.HotRetentionDays <= 0 {
		cfg.HotRetentionDays = 90
	}
	if cfg.ArchiveRetentionYears <= 0 {
		cfg.ArchiveRetentionYears = 7
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5000
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 24 * time.Hour
	}
	return cfg
}

// StartArchiveScheduler periodically archives old audit log entries and
// purges very old archives. It runs immediately, then every CheckInterval,
// until ctx is cancelled.
func (s *Service) StartArchiveScheduler(ctx context.Context, cfg config.ArchiveConfig) {
	cfg = withArchiveDefaults(cfg)
	slog.Info("archive scheduler started",
		"hot_retention_days", cfg.HotRetentionDays,
		"archive_retention_years", cfg.ArchiveRetentionYears,
		"batch_size", cfg.BatchSize,
	)

	// Run immediately on startup
	s.RunArchiveJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("archive scheduler stopped")
			return
		case <-ticker.C:
			s.RunArchiveJob(ctx, cfg)
		}
	}
}

// RunArchiveJob performs one archive + purge cycle.
func (s *Service) RunArchiveJob(ctx context.Context, cfg config.ArchiveConfig) {
	cfg = withArchiveDefaults(cfg)
	slog.Debug("archive job started")
	start := time.Now()

	archiveStart := time.Now()
	archived, err := s.archiveOldAuditLogs(ctx, cfg.HotRetentionDays, cfg.BatchSize)
	if err != nil {
		slog.Error("archive failed", "error", err, "entries_archived", archived)
	} else {
		slog.Info("archived audit log entries",
			"entries_archived", archived,
			"duration_ms", time.Since(archiveStart).Milliseconds(),
		)
	}

	purgeStart := time.Now()
	purged, err := s.store.PurgeOldArchives(ctx, int32(cfg.ArchiveRetentionYears))
	if err != nil {
		slog.Error("purge failed", "error", err)
	} else {
		slog.Info("purged old archive entries",
			"entries_purged", purged,
			"duration_ms", time.Since(purgeStart).Milliseconds(),
		)
	}

	slog.Info("archive job completed", "duration_ms", time.Since(start).Milliseconds())
}

// archiveOldAuditLogs moves entries older than daysToKeep to the archive,
// batch by batch until a batch comes back short.
func (s *Service) archiveOldAuditLogs(ctx context.Context, daysToKeep, batchSize int) (int64, error) {
	var total int64
	for i := 0; i < maxArchiveBatches; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.store.ArchiveOldAuditLogs(ctx, db.ArchiveOldAuditLogsParams{
			DaysToKeep: int32(daysToKeep),
			BatchSize:  int32(batchSize),
		})
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(batchSize) {
			break
		}
	}
	return total, nil
}
