// Package storage provides persistence backends for probe results,
// incidents, and daily reports.
package storage

import (
	"context"
	"time"

	"github.com/netpulse/netpulse/pkg/models"
)

// EventStore is the interface for monitoring event persistence backends
type EventStore interface {
	// InsertProbeResult persists one probe result
	InsertProbeResult(ctx context.Context, result *models.ProbeResult) error

	// InsertIncident persists a newly opened incident and returns its ID
	InsertIncident(ctx context.Context, incident *models.Incident) (int64, error)

	// UpdateIncident persists updated fields of an existing incident
	UpdateIncident(ctx context.Context, incident *models.Incident) error

	// UpsertDailyReport writes a daily report, replacing any existing row
	// for the same target and date
	UpsertDailyReport(ctx context.Context, report *models.DailyReport) error

	// QueryDaySummary computes the report for one target and date from the
	// stored probe results and incidents. Returns nil when the target has
	// no results for that date.
	QueryDaySummary(ctx context.Context, target, date string) (*models.DailyReport, error)

	// GetDailyReports returns stored reports for a target, newest first
	GetDailyReports(ctx context.Context, target string, limit int) ([]*models.DailyReport, error)

	// GetIncidents returns incidents for a target, newest first
	GetIncidents(ctx context.Context, target string, limit int) ([]*models.Incident, error)

	// DeleteOlderThan removes probe results, resolved incidents, and daily
	// reports older than the cutoff and returns the number of records
	// removed
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// TargetNames returns the names of all targets with stored results
	TargetNames(ctx context.Context) ([]string, error)

	// HealthCheck verifies the backend is reachable
	HealthCheck(ctx context.Context) error

	// Close closes the storage backend
	Close() error
}
