package storage

import (
	"context"
	"time"

	"github.com/netpulse/netpulse/pkg/models"
)

// NoOpStore discards all writes. Used when persistence is disabled; the
// in-memory window still serves the dashboard.
type NoOpStore struct{}

// NewNoOpStore creates a no-op event store
func NewNoOpStore() *NoOpStore {
	return &NoOpStore{}
}

func (n *NoOpStore) InsertProbeResult(ctx context.Context, result *models.ProbeResult) error {
	return nil
}

func (n *NoOpStore) InsertIncident(ctx context.Context, incident *models.Incident) (int64, error) {
	return 0, nil
}

func (n *NoOpStore) UpdateIncident(ctx context.Context, incident *models.Incident) error {
	return nil
}

func (n *NoOpStore) UpsertDailyReport(ctx context.Context, report *models.DailyReport) error {
	return nil
}

func (n *NoOpStore) QueryDaySummary(ctx context.Context, target, date string) (*models.DailyReport, error) {
	return nil, nil
}

func (n *NoOpStore) GetDailyReports(ctx context.Context, target string, limit int) ([]*models.DailyReport, error) {
	return nil, nil
}

func (n *NoOpStore) GetIncidents(ctx context.Context, target string, limit int) ([]*models.Incident, error) {
	return nil, nil
}

func (n *NoOpStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func (n *NoOpStore) TargetNames(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (n *NoOpStore) HealthCheck(ctx context.Context) error {
	return nil
}

func (n *NoOpStore) Close() error {
	return nil
}
