package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/netpulse/netpulse/internal/logging"
	"github.com/netpulse/netpulse/pkg/models"
)

// PostgresStore implements EventStore using PostgreSQL
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *logging.Logger
}

// NewPostgresStore creates a PostgreSQL-backed event store
func NewPostgresStore(connString string, logger *logging.Logger) (*PostgresStore, error) {
	ctx := context.Background()

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ps := &PostgresStore{
		pool:   pool,
		logger: logger,
	}

	// Initialize schema
	if err := ps.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.WithComponent(logging.ComponentStorage).Info("PostgreSQL storage initialized")
	return ps, nil
}

func (ps *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS probe_results (
		id BIGSERIAL PRIMARY KEY,
		target VARCHAR(255) NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		latency_ms DOUBLE PRECISION,
		class VARCHAR(20) NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_probe_results_target_timestamp ON probe_results(target, timestamp DESC);

	CREATE TABLE IF NOT EXISTS incidents (
		id BIGSERIAL PRIMARY KEY,
		target VARCHAR(255) NOT NULL,
		type VARCHAR(20) NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ,
		duration_minutes DOUBLE PRECISION,
		max_latency_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
		packet_loss_count INTEGER NOT NULL DEFAULT 0,
		resolved BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_target_start ON incidents(target, start_time DESC);

	CREATE TABLE IF NOT EXISTS daily_reports (
		id BIGSERIAL PRIMARY KEY,
		target VARCHAR(255) NOT NULL,
		report_date DATE NOT NULL,
		total_checks INTEGER NOT NULL,
		successful_checks INTEGER NOT NULL,
		packet_loss_count INTEGER NOT NULL,
		avg_latency_ms DOUBLE PRECISION NOT NULL,
		max_latency_ms DOUBLE PRECISION NOT NULL,
		min_latency_ms DOUBLE PRECISION NOT NULL,
		uptime_percent DOUBLE PRECISION NOT NULL,
		incidents_count INTEGER NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE(target, report_date)
	);
	`

	_, err := ps.pool.Exec(ctx, schema)
	return err
}

// InsertProbeResult stores a probe result
func (ps *PostgresStore) InsertProbeResult(ctx context.Context, result *models.ProbeResult) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	query := `
		INSERT INTO probe_results (target, timestamp, latency_ms, class)
		VALUES ($1, $2, $3, $4)
	`
	_, err := ps.pool.Exec(ctx, query, result.Target, result.Timestamp, result.LatencyMS, string(result.Class))
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// InsertIncident stores a newly opened incident and returns its ID
func (ps *PostgresStore) InsertIncident(ctx context.Context, incident *models.Incident) (int64, error) {
	if incident == nil {
		return 0, fmt.Errorf("incident cannot be nil")
	}

	query := `
		INSERT INTO incidents (target, type, start_time, end_time, duration_minutes, max_latency_ms, packet_loss_count, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := ps.pool.QueryRow(ctx, query,
		incident.Target, string(incident.Type), incident.StartTime, incident.EndTime,
		incident.DurationMinutes, incident.MaxLatencyMS, incident.PacketLossCount, incident.Resolved,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to store incident: %w", err)
	}
	return id, nil
}

// UpdateIncident rewrites an incident's row
func (ps *PostgresStore) UpdateIncident(ctx context.Context, incident *models.Incident) error {
	if incident == nil {
		return fmt.Errorf("incident cannot be nil")
	}
	if incident.ID == 0 {
		return fmt.Errorf("incident has no id")
	}

	query := `
		UPDATE incidents
		SET end_time = $2, duration_minutes = $3, max_latency_ms = $4, packet_loss_count = $5, resolved = $6
		WHERE id = $1
	`
	_, err := ps.pool.Exec(ctx, query,
		incident.ID, incident.EndTime, incident.DurationMinutes,
		incident.MaxLatencyMS, incident.PacketLossCount, incident.Resolved,
	)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}
	return nil
}

// UpsertDailyReport writes a report, replacing any existing row for the same
// target and date
func (ps *PostgresStore) UpsertDailyReport(ctx context.Context, report *models.DailyReport) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	query := `
		INSERT INTO daily_reports (target, report_date, total_checks, successful_checks, packet_loss_count,
			avg_latency_ms, max_latency_ms, min_latency_ms, uptime_percent, incidents_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (target, report_date) DO UPDATE SET
			total_checks = EXCLUDED.total_checks,
			successful_checks = EXCLUDED.successful_checks,
			packet_loss_count = EXCLUDED.packet_loss_count,
			avg_latency_ms = EXCLUDED.avg_latency_ms,
			max_latency_ms = EXCLUDED.max_latency_ms,
			min_latency_ms = EXCLUDED.min_latency_ms,
			uptime_percent = EXCLUDED.uptime_percent,
			incidents_count = EXCLUDED.incidents_count
	`
	_, err := ps.pool.Exec(ctx, query,
		report.Target, report.Date, report.TotalChecks, report.SuccessfulChecks, report.PacketLossCount,
		report.AvgLatencyMS, report.MaxLatencyMS, report.MinLatencyMS, report.UptimePercent, report.IncidentsCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert report: %w", err)
	}
	return nil
}

// QueryDaySummary computes a daily report with SQL aggregates
func (ps *PostgresStore) QueryDaySummary(ctx context.Context, target, date string) (*models.DailyReport, error) {
	day, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	dayEnd := day.Add(24 * time.Hour)

	query := `
		SELECT
			COUNT(*),
			COUNT(latency_ms),
			COALESCE(AVG(latency_ms), 0),
			COALESCE(MAX(latency_ms), 0),
			COALESCE(MIN(latency_ms), 0)
		FROM probe_results
		WHERE target = $1 AND timestamp >= $2 AND timestamp < $3
	`

	report := &models.DailyReport{Target: target, Date: date}
	err = ps.pool.QueryRow(ctx, query, target, day, dayEnd).Scan(
		&report.TotalChecks, &report.SuccessfulChecks,
		&report.AvgLatencyMS, &report.MaxLatencyMS, &report.MinLatencyMS,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query day summary: %w", err)
	}
	if report.TotalChecks == 0 {
		return nil, nil
	}

	report.PacketLossCount = report.TotalChecks - report.SuccessfulChecks
	report.UptimePercent = float64(report.SuccessfulChecks) / float64(report.TotalChecks) * 100.0

	incidentQuery := `
		SELECT COUNT(*) FROM incidents
		WHERE target = $1 AND start_time >= $2 AND start_time < $3
	`
	if err := ps.pool.QueryRow(ctx, incidentQuery, target, day, dayEnd).Scan(&report.IncidentsCount); err != nil {
		return nil, fmt.Errorf("failed to count incidents: %w", err)
	}

	return report, nil
}

// GetDailyReports returns stored reports for a target, newest first
func (ps *PostgresStore) GetDailyReports(ctx context.Context, target string, limit int) ([]*models.DailyReport, error) {
	if limit <= 0 {
		limit = 30
	}

	query := `
		SELECT target, to_char(report_date, 'YYYY-MM-DD'), total_checks, successful_checks, packet_loss_count,
			avg_latency_ms, max_latency_ms, min_latency_ms, uptime_percent, incidents_count
		FROM daily_reports
		WHERE target = $1
		ORDER BY report_date DESC
		LIMIT $2
	`
	rows, err := ps.pool.Query(ctx, query, target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.DailyReport
	for rows.Next() {
		var report models.DailyReport
		if err := rows.Scan(
			&report.Target, &report.Date, &report.TotalChecks, &report.SuccessfulChecks, &report.PacketLossCount,
			&report.AvgLatencyMS, &report.MaxLatencyMS, &report.MinLatencyMS, &report.UptimePercent, &report.IncidentsCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, &report)
	}
	return reports, rows.Err()
}

// GetIncidents returns incidents for a target, newest first
func (ps *PostgresStore) GetIncidents(ctx context.Context, target string, limit int) ([]*models.Incident, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, target, type, start_time, end_time, COALESCE(duration_minutes, 0), max_latency_ms, packet_loss_count, resolved
		FROM incidents
		WHERE target = $1
		ORDER BY start_time DESC
		LIMIT $2
	`
	rows, err := ps.pool.Query(ctx, query, target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*models.Incident
	for rows.Next() {
		var incident models.Incident
		var incidentType string
		if err := rows.Scan(
			&incident.ID, &incident.Target, &incidentType, &incident.StartTime, &incident.EndTime,
			&incident.DurationMinutes, &incident.MaxLatencyMS, &incident.PacketLossCount, &incident.Resolved,
		); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incident.Type = models.HealthClass(incidentType)
		incidents = append(incidents, &incident)
	}
	return incidents, rows.Err()
}

// DeleteOlderThan removes probe results, resolved incidents, and daily
// reports older than the cutoff
func (ps *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tagResults, err := ps.pool.Exec(ctx, `DELETE FROM probe_results WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune results: %w", err)
	}
	deleted := int(tagResults.RowsAffected())

	tagIncidents, err := ps.pool.Exec(ctx,
		`DELETE FROM incidents WHERE resolved AND end_time IS NOT NULL AND end_time < $1`, cutoff)
	if err != nil {
		return deleted, fmt.Errorf("failed to prune incidents: %w", err)
	}
	deleted += int(tagIncidents.RowsAffected())

	tagReports, err := ps.pool.Exec(ctx,
		`DELETE FROM daily_reports WHERE report_date < $1`, cutoff.UTC().Format(models.DateLayout))
	if err != nil {
		return deleted, fmt.Errorf("failed to prune reports: %w", err)
	}
	deleted += int(tagReports.RowsAffected())

	return deleted, nil
}

// TargetNames returns all target names with stored probe results
func (ps *PostgresStore) TargetNames(ctx context.Context) ([]string, error) {
	rows, err := ps.pool.Query(ctx, `SELECT DISTINCT target FROM probe_results ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("failed to get target names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan target name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// HealthCheck verifies the database is reachable
func (ps *PostgresStore) HealthCheck(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool
func (ps *PostgresStore) Close() error {
	ps.logger.WithComponent(logging.ComponentStorage).Info("Closing PostgreSQL pool")
	ps.pool.Close()
	return nil
}
