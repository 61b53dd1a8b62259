package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/netpulse/netpulse/internal/logging"
	"github.com/netpulse/netpulse/pkg/models"
)

// BadgerStore persists monitoring events in BadgerDB
type BadgerStore struct {
	db            *badger.DB
	seq           *badger.Sequence
	logger        *logging.Logger
	retentionDays int
	stopGC        chan struct{}
}

const (
	probeKeyPrefix        = "probe"
	incidentKeyPrefix     = "incident"
	incidentTimeKeyPrefix = "inctime"
	reportKeyPrefix       = "report"
	timestampKeyWidth     = 20
	idKeyWidth            = 20
)

func formatTimestampKey(ts int64) string {
	return fmt.Sprintf("%0*d", timestampKeyWidth, ts)
}

func formatIDKey(id int64) string {
	return fmt.Sprintf("%0*d", idKeyWidth, id)
}

// NewBadgerStore creates a new BadgerDB-backed event store
func NewBadgerStore(path string, retentionDays int, logger *logging.Logger) (*BadgerStore, error) {
	if retentionDays <= 0 {
		retentionDays = 30 // default to 30 days
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = &badgerLogger{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	seq, err := db.GetSequence([]byte("seq:incident"), 100)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create incident sequence: %w", err)
	}

	store := &BadgerStore{
		db:            db,
		seq:           seq,
		logger:        logger,
		retentionDays: retentionDays,
		stopGC:        make(chan struct{}),
	}

	// Start garbage collection
	go store.runGC()

	logger.WithComponent(logging.ComponentStorage).
		WithFields(map[string]interface{}{
			"path":          path,
			"retentionDays": retentionDays,
		}).
		Info("BadgerDB storage initialized")

	return store, nil
}

// InsertProbeResult stores a probe result with TTL
func (bs *BadgerStore) InsertProbeResult(ctx context.Context, result *models.ProbeResult) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	// Key: probe:{target}:{unix_nano_timestamp}
	key := fmt.Sprintf("%s:%s:%s", probeKeyPrefix, result.Target, formatTimestampKey(result.Timestamp.UnixNano()))

	value, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	ttl := time.Duration(bs.retentionDays) * 24 * time.Hour

	err = bs.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}

	return nil
}

// InsertIncident stores a newly opened incident and returns its ID
func (bs *BadgerStore) InsertIncident(ctx context.Context, incident *models.Incident) (int64, error) {
	if incident == nil {
		return 0, fmt.Errorf("incident cannot be nil")
	}

	next, err := bs.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate incident id: %w", err)
	}
	id := int64(next) + 1 // sequences start at 0

	stored := *incident
	stored.ID = id

	value, err := json.Marshal(&stored)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal incident: %w", err)
	}

	key := fmt.Sprintf("%s:%s", incidentKeyPrefix, formatIDKey(id))
	// Time index so incidents can be listed per target in start order
	indexKey := fmt.Sprintf("%s:%s:%s", incidentTimeKeyPrefix, incident.Target, formatTimestampKey(incident.StartTime.UnixNano()))

	err = bs.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), value); err != nil {
			return err
		}
		return txn.Set([]byte(indexKey), []byte(formatIDKey(id)))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store incident: %w", err)
	}

	return id, nil
}

// UpdateIncident rewrites an incident's stored record
func (bs *BadgerStore) UpdateIncident(ctx context.Context, incident *models.Incident) error {
	if incident == nil {
		return fmt.Errorf("incident cannot be nil")
	}
	if incident.ID == 0 {
		return fmt.Errorf("incident has no id")
	}

	value, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to marshal incident: %w", err)
	}

	key := fmt.Sprintf("%s:%s", incidentKeyPrefix, formatIDKey(incident.ID))
	err = bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}

	return nil
}

// UpsertDailyReport writes a report keyed by target and date, replacing any
// existing row
func (bs *BadgerStore) UpsertDailyReport(ctx context.Context, report *models.DailyReport) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	key := fmt.Sprintf("%s:%s:%s", reportKeyPrefix, report.Target, report.Date)

	value, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	ttl := time.Duration(bs.retentionDays) * 24 * time.Hour

	err = bs.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}

	return nil
}

// QueryDaySummary computes a daily report from stored probe results and
// incidents. Returns nil when the target has no results for the date.
func (bs *BadgerStore) QueryDaySummary(ctx context.Context, target, date string) (*models.DailyReport, error) {
	day, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	dayStart := day
	dayEnd := day.Add(24 * time.Hour)

	results, err := bs.probeResultsInRange(target, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	report := &models.DailyReport{
		Target: target,
		Date:   date,
	}

	var latencySum float64
	var latencyCount int
	for _, r := range results {
		report.TotalChecks++
		if r.LatencyMS == nil {
			report.PacketLossCount++
			continue
		}
		report.SuccessfulChecks++
		latencySum += *r.LatencyMS
		latencyCount++
		if report.MaxLatencyMS == 0 || *r.LatencyMS > report.MaxLatencyMS {
			report.MaxLatencyMS = *r.LatencyMS
		}
		if report.MinLatencyMS == 0 || *r.LatencyMS < report.MinLatencyMS {
			report.MinLatencyMS = *r.LatencyMS
		}
	}

	if latencyCount > 0 {
		report.AvgLatencyMS = latencySum / float64(latencyCount)
	}
	report.UptimePercent = float64(report.SuccessfulChecks) / float64(report.TotalChecks) * 100.0

	incidents, err := bs.incidentsInRange(target, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	report.IncidentsCount = len(incidents)

	return report, nil
}

// GetDailyReports returns stored reports for a target, newest first
func (bs *BadgerStore) GetDailyReports(ctx context.Context, target string, limit int) ([]*models.DailyReport, error) {
	prefix := []byte(fmt.Sprintf("%s:%s:", reportKeyPrefix, target))

	var reports []*models.DailyReport
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var report models.DailyReport
				if err := json.Unmarshal(val, &report); err != nil {
					return err
				}
				reports = append(reports, &report)
				return nil
			})
			if err != nil {
				bs.logger.WithComponent(logging.ComponentStorage).
					WithError(err).
					Warn("Failed to unmarshal report")
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}

	// Keys iterate in date order; newest first for the API
	sort.Slice(reports, func(i, j int) bool { return reports[i].Date > reports[j].Date })
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

// GetIncidents returns incidents for a target, newest first
func (bs *BadgerStore) GetIncidents(ctx context.Context, target string, limit int) ([]*models.Incident, error) {
	prefix := []byte(fmt.Sprintf("%s:%s:", incidentTimeKeyPrefix, target))

	var ids []string
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}

	// Index iterates oldest first
	var incidents []*models.Incident
	err = bs.db.View(func(txn *badger.Txn) error {
		for i := len(ids) - 1; i >= 0; i-- {
			if limit > 0 && len(incidents) >= limit {
				break
			}
			item, err := txn.Get([]byte(fmt.Sprintf("%s:%s", incidentKeyPrefix, ids[i])))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				var incident models.Incident
				if err := json.Unmarshal(val, &incident); err != nil {
					return err
				}
				incidents = append(incidents, &incident)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get incidents: %w", err)
	}

	return incidents, nil
}

// DeleteOlderThan removes probe results, resolved incidents, and daily
// reports older than the cutoff
func (bs *BadgerStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0

	// Probe results: the timestamp is embedded in the key
	probePrefix := []byte(probeKeyPrefix + ":")
	var staleKeys [][]byte
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(probePrefix); it.ValidForPrefix(probePrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			rest := key[len(probePrefix):]
			colonIdx := bytes.LastIndexByte(rest, ':')
			if colonIdx < 0 {
				continue
			}
			var ts int64
			if _, err := fmt.Sscanf(string(rest[colonIdx+1:]), "%d", &ts); err != nil {
				continue
			}
			if time.Unix(0, ts).Before(cutoff) {
				staleKeys = append(staleKeys, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan stale results: %w", err)
	}

	// Resolved incidents that ended before the cutoff
	incidentPrefix := []byte(incidentKeyPrefix + ":")
	err = bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = incidentPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(incidentPrefix); it.ValidForPrefix(incidentPrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			err := it.Item().Value(func(val []byte) error {
				var incident models.Incident
				if err := json.Unmarshal(val, &incident); err != nil {
					return nil
				}
				if incident.Resolved && incident.EndTime != nil && incident.EndTime.Before(cutoff) {
					staleKeys = append(staleKeys, key)
					indexKey := fmt.Sprintf("%s:%s:%s", incidentTimeKeyPrefix, incident.Target, formatTimestampKey(incident.StartTime.UnixNano()))
					staleKeys = append(staleKeys, []byte(indexKey))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan stale incidents: %w", err)
	}

	// Daily reports: the date is the last key segment; ISO dates compare
	// lexicographically
	cutoffDate := cutoff.UTC().Format(models.DateLayout)
	reportPrefix := []byte(reportKeyPrefix + ":")
	err = bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(reportPrefix); it.ValidForPrefix(reportPrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			colonIdx := bytes.LastIndexByte(key, ':')
			if colonIdx < 0 {
				continue
			}
			if string(key[colonIdx+1:]) < cutoffDate {
				staleKeys = append(staleKeys, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan stale reports: %w", err)
	}

	wb := bs.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range staleKeys {
		if err := wb.Delete(key); err != nil {
			return deleted, fmt.Errorf("failed to delete stale key: %w", err)
		}
		deleted++
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush deletions: %w", err)
	}

	return deleted, nil
}

// TargetNames returns all target names with stored probe results
func (bs *BadgerStore) TargetNames(ctx context.Context) ([]string, error) {
	targets := make(map[string]bool)

	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // We only need keys
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(probeKeyPrefix + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			rest := key[len(prefix):]
			colonIdx := bytes.LastIndexByte(rest, ':')
			if colonIdx <= 0 {
				continue
			}
			name := string(rest[:colonIdx])
			if name != "" {
				targets[name] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get target names: %w", err)
	}

	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// HealthCheck verifies the database is usable
func (bs *BadgerStore) HealthCheck(ctx context.Context) error {
	if bs.db.IsClosed() {
		return fmt.Errorf("badger db is closed")
	}
	return nil
}

// Close gracefully closes the database
func (bs *BadgerStore) Close() error {
	bs.logger.WithComponent(logging.ComponentStorage).Info("Closing BadgerDB")
	close(bs.stopGC)
	if err := bs.seq.Release(); err != nil {
		bs.logger.WithComponent(logging.ComponentStorage).
			WithError(err).
			Warn("Failed to release incident sequence")
	}
	return bs.db.Close()
}

func (bs *BadgerStore) probeResultsInRange(target string, start, end time.Time) ([]*models.ProbeResult, error) {
	prefix := []byte(fmt.Sprintf("%s:%s:", probeKeyPrefix, target))
	startKey := []byte(fmt.Sprintf("%s:%s:%s", probeKeyPrefix, target, formatTimestampKey(start.UnixNano())))
	endKey := []byte(fmt.Sprintf("%s:%s:%s", probeKeyPrefix, target, formatTimestampKey(end.UnixNano())))

	var results []*models.ProbeResult
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(startKey); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if bytes.Compare(item.Key(), endKey) >= 0 {
				break
			}

			err := item.Value(func(val []byte) error {
				var result models.ProbeResult
				if err := json.Unmarshal(val, &result); err != nil {
					return err
				}
				results = append(results, &result)
				return nil
			})
			if err != nil {
				bs.logger.WithComponent(logging.ComponentStorage).
					WithError(err).
					Warn("Failed to unmarshal result")
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}

	return results, nil
}

func (bs *BadgerStore) incidentsInRange(target string, start, end time.Time) ([]string, error) {
	prefix := []byte(fmt.Sprintf("%s:%s:", incidentTimeKeyPrefix, target))
	startKey := []byte(fmt.Sprintf("%s:%s:%s", incidentTimeKeyPrefix, target, formatTimestampKey(start.UnixNano())))
	endKey := []byte(fmt.Sprintf("%s:%s:%s", incidentTimeKeyPrefix, target, formatTimestampKey(end.UnixNano())))

	var ids []string
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(startKey); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if bytes.Compare(item.Key(), endKey) >= 0 {
				break
			}
			err := item.Value(func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan incidents: %w", err)
	}

	return ids, nil
}

// runGC runs garbage collection periodically
func (bs *BadgerStore) runGC() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-bs.stopGC:
			return
		case <-ticker.C:
			err := bs.db.RunValueLogGC(0.5)
			if err != nil && err != badger.ErrNoRewrite {
				bs.logger.WithComponent(logging.ComponentStorage).
					WithError(err).
					Debug("Garbage collection completed with notice")
			}
		}
	}
}

// badgerLogger adapts our logger to BadgerDB's logger interface
type badgerLogger struct {
	logger *logging.Logger
}

func (bl *badgerLogger) Errorf(format string, args ...interface{}) {
	bl.logger.WithComponent("badger").Errorf(format, args...)
}

func (bl *badgerLogger) Warningf(format string, args ...interface{}) {
	bl.logger.WithComponent("badger").Warnf(format, args...)
}

func (bl *badgerLogger) Infof(format string, args ...interface{}) {
	bl.logger.WithComponent("badger").Infof(format, args...)
}

func (bl *badgerLogger) Debugf(format string, args ...interface{}) {
	bl.logger.WithComponent("badger").Debugf(format, args...)
}
