package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"avito-assist/internal/core/ports"
)

// Watchdog defaults
const (
	DefaultWatchdogInterval = 10 * time.Minute
	DefaultDiskThreshold    = 70.0
	DefaultRetention        = 7 * 24 * time.Hour
	purgeBatchSize          = 1000
)

// DiskUsageFunc reports used disk space in percent
type DiskUsageFunc func() (float64, error)

// WatchdogConfig tunes the audit log purge
type WatchdogConfig struct {
	Interval      time.Duration
	DiskThreshold float64
	Retention     time.Duration
}

// Watchdog purges old webhook audit rows once disk usage crosses a threshold
type Watchdog struct {
	repo      ports.WebhookRepository
	diskUsage DiskUsageFunc
	cfg       WatchdogConfig
	now       func() time.Time
}

// NewWatchdog creates a watchdog with the defaults filled in
func NewWatchdog(repo ports.WebhookRepository, diskUsage DiskUsageFunc, cfg WatchdogConfig) *Watchdog {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultWatchdogInterval
	}
	if cfg.DiskThreshold <= 0 {
		cfg.DiskThreshold = DefaultDiskThreshold
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	return &Watchdog{
		repo:      repo,
		diskUsage: diskUsage,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run checks resources every interval until ctx is cancelled
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	slog.Info("[WATCHDOG] Service started", "interval", w.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("[WATCHDOG] Service stopped")
			return
		case <-ticker.C:
			if _, err := w.Check(ctx); err != nil {
				slog.Error("[WATCHDOG] Check failed", "error", err)
			}
		}
	}
}

// Check runs one resource check and returns the number of purged rows
func (w *Watchdog) Check(ctx context.Context) (int64, error) {
	usage, err := w.diskUsage()
	if err != nil {
		return 0, fmt.Errorf("read disk usage: %w", err)
	}

	if usage < w.cfg.DiskThreshold {
		slog.Debug("[WATCHDOG] Disk usage OK, no purge needed", "usage_percent", usage)
		return 0, nil
	}

	slog.Warn("[WATCHDOG] Disk usage above threshold, purging old webhook logs",
		"usage_percent", usage,
		"threshold", w.cfg.DiskThreshold,
	)

	cutoff := w.now().Add(-w.cfg.Retention)
	var total int64
	for {
		n, err := w.repo.PurgeOlderThan(ctx, cutoff, purgeBatchSize)
		if err != nil {
			return total, fmt.Errorf("purge webhook logs: %w", err)
		}
		total += n
		if n < purgeBatchSize || ctx.Err() != nil {
			break
		}
	}

	slog.Info("[WATCHDOG] Purged old webhook_logs records", "rows", total)
	return total, nil
}
