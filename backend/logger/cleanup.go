package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/PhilHem/logstore/backend/database"
	"github.com/PhilHem/logstore/backend/logstore"
)

// CleanupConfig controls the retention loop.
type CleanupConfig struct {
	Interval     time.Duration
	MaxAge       time.Duration // 0 disables age-based cleanup
	DatabasePath string
	MaxDBSize    int64 // 0 disables size-based trimming
}

// trimFraction is how much of the oldest data one trim pass removes.
const trimFraction = 0.1

// maxTrimPasses bounds trimming per run; SQLite does not shrink the file
// without VACUUM, so the size may never drop below the limit.
const maxTrimPasses = 5

// CleanupOldLogs runs Cleanup every cfg.Interval until ctx is cancelled.
func CleanupOldLogs(ctx context.Context, store *logstore.Store, cfg CleanupConfig) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			Cleanup(ctx, store, cfg)
		}
	}
}

// Cleanup removes entries older than cfg.MaxAge, then trims the oldest
// entries while the database file is larger than cfg.MaxDBSize.
func Cleanup(ctx context.Context, store *logstore.Store, cfg CleanupConfig) {
	if cfg.MaxAge > 0 {
		n, err := store.DeleteOlderThan(ctx, time.Now().Add(-cfg.MaxAge))
		if err != nil {
			slog.ErrorContext(ctx, "log retention failed", "source", "cleanup", "error", err)
			return
		}
		if n > 0 {
			slog.InfoContext(ctx, "old logs removed", "source", "cleanup", "deleted", n)
		}
	}

	if cfg.MaxDBSize <= 0 || cfg.DatabasePath == "" {
		return
	}
	for i := 0; i < maxTrimPasses; i++ {
		size, err := database.Size(cfg.DatabasePath)
		if err != nil || size <= cfg.MaxDBSize {
			return
		}
		n, err := store.TrimOldest(ctx, trimFraction)
		if err != nil {
			slog.ErrorContext(ctx, "log trim failed", "source", "cleanup", "error", err)
			return
		}
		slog.WarnContext(ctx, "database over size limit, oldest logs trimmed", "source", "cleanup",
			"size", size, "max_size", cfg.MaxDBSize, "deleted", n)
		if n == 0 {
			return
		}
	}
}
