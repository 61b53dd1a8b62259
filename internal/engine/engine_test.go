package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/netpulse/netpulse/internal/config"
	"github.com/netpulse/netpulse/internal/logging"
	"github.com/netpulse/netpulse/pkg/models"
)

type fakeProber struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeProber) Probe(ctx context.Context, address string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 25.0, nil
}

type fakeStore struct {
	mu        sync.Mutex
	healthErr error
	results   int
	reports   map[string]*models.DailyReport
	targets   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{reports: make(map[string]*models.DailyReport)}
}

func (f *fakeStore) InsertProbeResult(ctx context.Context, result *models.ProbeResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results++
	return nil
}

func (f *fakeStore) InsertIncident(ctx context.Context, incident *models.Incident) (int64, error) {
	return 1, nil
}

func (f *fakeStore) UpdateIncident(ctx context.Context, incident *models.Incident) error {
	return nil
}

func (f *fakeStore) UpsertDailyReport(ctx context.Context, report *models.DailyReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[report.Target+"/"+report.Date] = report
	return nil
}

func (f *fakeStore) QueryDaySummary(ctx context.Context, target, date string) (*models.DailyReport, error) {
	return &models.DailyReport{Target: target, Date: date, TotalChecks: 1}, nil
}

func (f *fakeStore) GetDailyReports(ctx context.Context, target string, limit int) ([]*models.DailyReport, error) {
	return nil, nil
}

func (f *fakeStore) GetIncidents(ctx context.Context, target string, limit int) ([]*models.Incident, error) {
	return nil, nil
}

func (f *fakeStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func (f *fakeStore) TargetNames(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.targets, nil
}

func (f *fakeStore) HealthCheck(ctx context.Context) error { return f.healthErr }

func (f *fakeStore) Close() error { return nil }

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.InitLogger(logging.Config{Level: "error", Output: "stderr"})
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	return logger
}

func testConfig() *config.Config {
	disabled := false
	return &config.Config{
		Monitoring: config.MonitoringConfig{
			LatencyThresholdMS: 150,
			DefaultInterval:    time.Second,
			PingTimeout:        time.Second,
			WindowSize:         100,
			Targets: []models.Target{
				{Name: "gateway", Address: "192.168.1.1", Interval: models.Duration(time.Second)},
				{Name: "dns", Address: "8.8.8.8", Interval: models.Duration(time.Second)},
				{Name: "off", Address: "10.0.0.1", Enabled: &disabled},
			},
		},
		Storage:   config.StorageConfig{RetentionDays: 30, PruneInterval: time.Hour},
		Broadcast: config.BroadcastConfig{Interval: 50 * time.Millisecond, TailSize: 50},
		Reports:   config.ReportsConfig{Interval: time.Hour},
	}
}

func newTestEngine(t *testing.T, store *fakeStore) *Engine {
	return New(Options{
		Config:      testConfig(),
		Store:       store,
		Logger:      testLogger(t),
		Prober:      &fakeProber{},
		StopTimeout: 2 * time.Second,
	})
}

func TestEngineSkipsDisabledTargets(t *testing.T) {
	e := newTestEngine(t, newFakeStore())

	names := e.TargetNames()
	if len(names) != 2 {
		t.Fatalf("expected 2 enabled targets, got %d: %v", len(names), names)
	}
	if _, ok := e.Snapshot("off", 10); ok {
		t.Fatalf("expected disabled target to have no monitor")
	}
}

func TestEngineStartFailsOnUnhealthyStore(t *testing.T) {
	store := newFakeStore()
	store.healthErr = errors.New("disk gone")
	e := newTestEngine(t, store)

	if err := e.Start(context.Background()); err == nil {
		t.Fatalf("expected start to fail on unhealthy store")
	}
}

func TestEngineLifecycle(t *testing.T) {
	store := newFakeStore()
	store.targets = []string{"gateway", "dns"}
	e := newTestEngine(t, store)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	if err := e.Start(context.Background()); err == nil {
		t.Fatalf("expected second Start to fail")
	}

	// Let the monitors run a few probes
	time.Sleep(100 * time.Millisecond)

	snaps := e.Snapshots(10)
	if len(snaps) != 2 {
		t.Fatalf("expected snapshots for 2 targets, got %d", len(snaps))
	}
	for name, snap := range snaps {
		if snap.TotalChecks == 0 {
			t.Errorf("expected %s to have recorded probes", name)
		}
		if snap.Status != models.StatusUp {
			t.Errorf("expected %s to be up, got %s", name, snap.Status)
		}
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	// Final aggregation pass writes today's reports
	store.mu.Lock()
	reportCount := len(store.reports)
	store.mu.Unlock()
	if reportCount != 2 {
		t.Fatalf("expected final aggregation to write 2 reports, got %d", reportCount)
	}

	// Stop again is a no-op
	if err := e.Stop(); err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
}

func TestEngineBroadcasterDeliversSnapshots(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(t, store)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer e.Stop()

	sub := e.Broadcaster().Subscribe()
	defer sub.Close()

	select {
	case frame := <-sub.Frames():
		if len(frame.Targets) != 2 {
			t.Fatalf("expected frame with 2 targets, got %d", len(frame.Targets))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a broadcast frame")
	}
}
