// Package report rolls probe history up into per-target daily reports and
// prunes stored data past the retention window.
package report

import (
	"context"
	"time"

	"github.com/netpulse/netpulse/internal/logging"
	"github.com/netpulse/netpulse/internal/metrics"
	"github.com/netpulse/netpulse/internal/storage"
	"github.com/netpulse/netpulse/pkg/models"
)

// Aggregator periodically recomputes daily reports and enforces retention.
// Upserts are idempotent: re-running a day replaces the previous row.
type Aggregator struct {
	store         storage.EventStore
	interval      time.Duration
	pruneInterval time.Duration
	retentionDays int
	metrics       *metrics.Metrics
	logger        *logging.Logger

	now func() time.Time
}

// Options configures an Aggregator.
type Options struct {
	Store         storage.EventStore
	Interval      time.Duration
	PruneInterval time.Duration
	RetentionDays int
	Metrics       *metrics.Metrics
	Logger        *logging.Logger
}

// New creates an aggregator.
func New(opts Options) *Aggregator {
	interval := opts.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	pruneInterval := opts.PruneInterval
	if pruneInterval <= 0 {
		pruneInterval = time.Hour
	}
	return &Aggregator{
		store:         opts.Store,
		interval:      interval,
		pruneInterval: pruneInterval,
		retentionDays: opts.RetentionDays,
		metrics:       opts.Metrics,
		logger:        opts.Logger.WithComponent(logging.ComponentReport),
		now:           time.Now,
	}
}

// Run aggregates and prunes on their intervals until the context is
// cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	reportTicker := time.NewTicker(a.interval)
	defer reportTicker.Stop()
	pruneTicker := time.NewTicker(a.pruneInterval)
	defer pruneTicker.Stop()

	a.logger.WithFields(map[string]interface{}{
		"interval":       a.interval,
		"prune_interval": a.pruneInterval,
		"retention_days": a.retentionDays,
	}).Info("Report aggregator started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Report aggregator stopped")
			return
		case <-reportTicker.C:
			a.RunOnce(ctx)
		case <-pruneTicker.C:
			a.Prune(ctx)
		}
	}
}

// RunOnce recomputes reports for yesterday and today. Yesterday's pass
// finalizes the completed day; today's keeps a rolling partial report.
func (a *Aggregator) RunOnce(ctx context.Context) {
	now := a.now()
	a.AggregateDay(ctx, now.AddDate(0, 0, -1))
	a.AggregateDay(ctx, now)
}

// Final runs the last aggregation pass during shutdown so the current day's
// partial report is persisted.
func (a *Aggregator) Final(ctx context.Context) {
	a.AggregateDay(ctx, a.now())
}

// AggregateDay recomputes and upserts the report for every known target on
// the given day. Returns the number of reports written.
func (a *Aggregator) AggregateDay(ctx context.Context, day time.Time) int {
	date := day.UTC().Format(models.DateLayout)

	targets, err := a.store.TargetNames(ctx)
	if err != nil {
		a.logger.WithError(err).Error("Failed to list targets for aggregation")
		if a.metrics != nil {
			a.metrics.RecordStoreError("target_names")
		}
		return 0
	}

	written := 0
	for _, target := range targets {
		report, err := a.store.QueryDaySummary(ctx, target, date)
		if err != nil {
			a.logger.WithError(err).WithFields(map[string]interface{}{
				"target": target,
				"date":   date,
			}).Error("Failed to compute day summary")
			if a.metrics != nil {
				a.metrics.RecordStoreError("query_day_summary")
			}
			continue
		}
		if report == nil {
			continue
		}

		if err := a.store.UpsertDailyReport(ctx, report); err != nil {
			a.logger.WithError(err).WithFields(map[string]interface{}{
				"target": target,
				"date":   date,
			}).Error("Failed to write daily report")
			if a.metrics != nil {
				a.metrics.RecordStoreError("upsert_daily_report")
			}
			continue
		}

		written++
		if a.metrics != nil {
			a.metrics.RecordReportWritten()
		}
		a.logger.WithEvent(logging.EventReportWritten).WithFields(map[string]interface{}{
			"target":         target,
			"date":           date,
			"total_checks":   report.TotalChecks,
			"uptime_percent": report.UptimePercent,
		}).Debug("Daily report written")
	}

	return written
}

// Prune deletes stored data older than the retention window and returns the
// number of removed records.
func (a *Aggregator) Prune(ctx context.Context) int {
	if a.retentionDays <= 0 {
		return 0
	}

	cutoff := a.now().AddDate(0, 0, -a.retentionDays)
	deleted, err := a.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		a.logger.WithError(err).Error("Failed to prune stored data")
		if a.metrics != nil {
			a.metrics.RecordStoreError("delete_older_than")
		}
		return 0
	}

	if deleted > 0 {
		a.logger.WithFields(map[string]interface{}{
			"deleted": deleted,
			"cutoff":  cutoff,
		}).Info("Pruned stored data past retention")
	}
	return deleted
}
