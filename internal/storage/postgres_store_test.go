//go:build integration
// +build integration

package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/netpulse/netpulse/internal/logging"
	"github.com/netpulse/netpulse/pkg/models"
)

func getTestPostgresConnection() string {
	connString := os.Getenv("POSTGRES_TEST_URL")
	if connString == "" {
		return "host=localhost port=5432 user=netpulse password=netpulse dbname=netpulse_test sslmode=disable"
	}
	return connString
}

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	logger, _ := logging.InitLogger(logging.Config{Level: "error", Format: "json", Output: "stdout"})

	store, err := NewPostgresStore(getTestPostgresConnection(), logger)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	return store
}

func TestPostgresStoreIncidentLifecycle(t *testing.T) {
	store := newTestPostgresStore(t)
	defer store.Close()
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Second)
	incident := &models.Incident{
		Target:    "pg-test-target",
		Type:      models.ClassHighLatency,
		StartTime: start,
	}

	id, err := store.InsertIncident(ctx, incident)
	if err != nil {
		t.Fatalf("failed to insert incident: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected non-zero incident id")
	}
	incident.ID = id

	end := start.Add(5 * time.Minute)
	incident.EndTime = &end
	incident.DurationMinutes = 5
	incident.MaxLatencyMS = 240
	incident.Resolved = true
	if err := store.UpdateIncident(ctx, incident); err != nil {
		t.Fatalf("failed to update incident: %v", err)
	}

	incidents, err := store.GetIncidents(ctx, "pg-test-target", 10)
	if err != nil {
		t.Fatalf("failed to get incidents: %v", err)
	}
	if len(incidents) == 0 {
		t.Fatal("expected at least one incident")
	}
	got := incidents[0]
	if got.ID != id || !got.Resolved || got.MaxLatencyMS != 240 {
		t.Errorf("unexpected incident: %+v", got)
	}

	_, _ = store.pool.Exec(ctx, "DELETE FROM incidents WHERE target = $1", "pg-test-target")
}

func TestPostgresStoreDaySummary(t *testing.T) {
	store := newTestPostgresStore(t)
	defer store.Close()
	ctx := context.Background()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	latencies := []*float64{ptr(100), ptr(200), nil, ptr(60)}
	for i, lat := range latencies {
		class := models.ClassOK
		if lat == nil {
			class = models.ClassPacketLoss
		}
		result := &models.ProbeResult{
			Target:    "pg-test-summary",
			Timestamp: day.Add(time.Duration(i) * time.Minute),
			LatencyMS: lat,
			Class:     class,
		}
		if err := store.InsertProbeResult(ctx, result); err != nil {
			t.Fatalf("failed to store result %d: %v", i, err)
		}
	}

	report, err := store.QueryDaySummary(ctx, "pg-test-summary", "2026-03-10")
	if err != nil {
		t.Fatalf("failed to query day summary: %v", err)
	}
	if report == nil {
		t.Fatal("expected a report")
	}
	if report.TotalChecks != 4 || report.SuccessfulChecks != 3 {
		t.Errorf("unexpected counts: %+v", report)
	}
	if report.AvgLatencyMS != 120 || report.MaxLatencyMS != 200 || report.MinLatencyMS != 60 {
		t.Errorf("unexpected latency stats: %+v", report)
	}
	if report.UptimePercent != 75 {
		t.Errorf("expected 75%% uptime, got %v", report.UptimePercent)
	}

	if err := store.UpsertDailyReport(ctx, report); err != nil {
		t.Fatalf("failed to upsert report: %v", err)
	}
	// Upsert again with changed numbers replaces the row
	report.TotalChecks = 5
	if err := store.UpsertDailyReport(ctx, report); err != nil {
		t.Fatalf("failed to re-upsert report: %v", err)
	}

	reports, err := store.GetDailyReports(ctx, "pg-test-summary", 10)
	if err != nil {
		t.Fatalf("failed to get reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report after upsert, got %d", len(reports))
	}
	if reports[0].TotalChecks != 5 {
		t.Errorf("expected upsert to replace row, got %+v", reports[0])
	}

	_, _ = store.pool.Exec(ctx, "DELETE FROM probe_results WHERE target = $1", "pg-test-summary")
	_, _ = store.pool.Exec(ctx, "DELETE FROM daily_reports WHERE target = $1", "pg-test-summary")
}

func TestPostgresStoreDeleteOlderThanPrunesReports(t *testing.T) {
	store := newTestPostgresStore(t)
	defer store.Close()
	ctx := context.Background()

	freshDate := time.Now().UTC().Format(models.DateLayout)
	for _, date := range []string{"2020-01-01", freshDate} {
		report := &models.DailyReport{Target: "pg-test-retention", Date: date, TotalChecks: 1}
		if err := store.UpsertDailyReport(ctx, report); err != nil {
			t.Fatalf("failed to upsert report: %v", err)
		}
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	if _, err := store.DeleteOlderThan(ctx, cutoff); err != nil {
		t.Fatalf("DeleteOlderThan returned error: %v", err)
	}

	reports, err := store.GetDailyReports(ctx, "pg-test-retention", 10)
	if err != nil {
		t.Fatalf("failed to get reports: %v", err)
	}
	if len(reports) != 1 || reports[0].Date != freshDate {
		t.Errorf("expected only the fresh report to survive, got %+v", reports)
	}

	_, _ = store.pool.Exec(ctx, "DELETE FROM daily_reports WHERE target = $1", "pg-test-retention")
}

func TestPostgresStoreHealthCheck(t *testing.T) {
	store := newTestPostgresStore(t)
	defer store.Close()

	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("health check failed: %v", err)
	}
}
