package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/netpulse/netpulse/internal/logging"
	"github.com/netpulse/netpulse/pkg/models"
)

type stubProber struct {
	mu      sync.Mutex
	replies []stubReply
	calls   int
}

type stubReply struct {
	latencyMS float64
	err       error
}

func (s *stubProber) Probe(ctx context.Context, address string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.replies) {
		return 0, errors.New("no scripted reply")
	}
	reply := s.replies[s.calls]
	s.calls++
	return reply.latencyMS, reply.err
}

type memStore struct {
	mu        sync.Mutex
	results   []*models.ProbeResult
	incidents map[int64]*models.Incident
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{incidents: make(map[int64]*models.Incident)}
}

func (s *memStore) InsertProbeResult(ctx context.Context, result *models.ProbeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *result
	s.results = append(s.results, &copied)
	return nil
}

func (s *memStore) InsertIncident(ctx context.Context, incident *models.Incident) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	copied := *incident
	copied.ID = s.nextID
	s.incidents[s.nextID] = &copied
	return s.nextID, nil
}

func (s *memStore) UpdateIncident(ctx context.Context, incident *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *incident
	s.incidents[incident.ID] = &copied
	return nil
}

func (s *memStore) UpsertDailyReport(ctx context.Context, report *models.DailyReport) error {
	return nil
}

func (s *memStore) QueryDaySummary(ctx context.Context, target, date string) (*models.DailyReport, error) {
	return nil, nil
}

func (s *memStore) GetDailyReports(ctx context.Context, target string, limit int) ([]*models.DailyReport, error) {
	return nil, nil
}

func (s *memStore) GetIncidents(ctx context.Context, target string, limit int) ([]*models.Incident, error) {
	return nil, nil
}

func (s *memStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func (s *memStore) TargetNames(ctx context.Context) ([]string, error) { return nil, nil }

func (s *memStore) HealthCheck(ctx context.Context) error { return nil }

func (s *memStore) Close() error { return nil }

type recordedAlert struct {
	target   string
	category string
	subject  string
}

type stubAlerts struct {
	mu     sync.Mutex
	alerts []recordedAlert
}

func (s *stubAlerts) Notify(ctx context.Context, target, category, subject, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, recordedAlert{target: target, category: category, subject: subject})
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.InitLogger(logging.Config{Level: "error", Output: "stderr"})
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	return logger
}

// alerts is the interface type so passing nil leaves the monitor without an
// alerter, as the engine does when alerting is disabled.
func newTestMonitor(t *testing.T, prober *stubProber, store *memStore, alerts AlertSender) *TargetMonitor {
	t.Helper()
	m := New(Options{
		Target:       models.Target{Name: "gateway", Address: "192.168.1.1"},
		ThresholdMS:  150,
		ProbeTimeout: time.Second,
		WindowSize:   100,
		Prober:       prober,
		Store:        store,
		Alerts:       alerts,
		Logger:       testLogger(t),
	})

	base := time.Unix(1_700_000_000, 0)
	step := 0
	m.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * 2 * time.Second)
	}
	return m
}

// Drives the full lifecycle: healthy, latency spike opens an incident, a
// timeout sustains it, recovery closes it.
func TestMonitorIncidentLifecycle(t *testing.T) {
	prober := &stubProber{replies: []stubReply{
		{latencyMS: 120},
		{latencyMS: 200},
		{err: errors.New("timeout")},
		{latencyMS: 90},
	}}
	store := newMemStore()
	alerts := &stubAlerts{}
	m := newTestMonitor(t, prober, store, alerts)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		m.RunOnce(ctx)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if len(store.results) != 4 {
		t.Fatalf("expected 4 persisted probe results, got %d", len(store.results))
	}
	wantClasses := []models.HealthClass{
		models.ClassOK, models.ClassHighLatency, models.ClassPacketLoss, models.ClassOK,
	}
	for i, want := range wantClasses {
		if store.results[i].Class != want {
			t.Errorf("result %d: expected class %s, got %s", i, want, store.results[i].Class)
		}
	}

	if len(store.incidents) != 1 {
		t.Fatalf("expected exactly one incident, got %d", len(store.incidents))
	}
	incident := store.incidents[1]
	if incident.Type != models.ClassHighLatency {
		t.Errorf("expected incident type high_latency, got %s", incident.Type)
	}
	if !incident.Resolved {
		t.Errorf("expected incident to be resolved")
	}
	if incident.PacketLossCount != 1 {
		t.Errorf("expected 1 lost packet during incident, got %d", incident.PacketLossCount)
	}
	if incident.MaxLatencyMS != 200 {
		t.Errorf("expected max latency 200, got %v", incident.MaxLatencyMS)
	}

	alerts.mu.Lock()
	defer alerts.mu.Unlock()
	if len(alerts.alerts) != 2 {
		t.Fatalf("expected 2 alerts (open + recovery), got %d: %+v", len(alerts.alerts), alerts.alerts)
	}
	if alerts.alerts[0].category != CategoryHighLatency || alerts.alerts[0].subject != "HIGH LATENCY: gateway" {
		t.Errorf("unexpected opening alert: %+v", alerts.alerts[0])
	}
	if alerts.alerts[1].category != CategoryRecovery || alerts.alerts[1].subject != "RECOVERED: gateway" {
		t.Errorf("unexpected recovery alert: %+v", alerts.alerts[1])
	}
}

func TestMonitorPacketLossAlertSubject(t *testing.T) {
	prober := &stubProber{replies: []stubReply{{err: errors.New("no reply")}}}
	alerts := &stubAlerts{}
	m := newTestMonitor(t, prober, newMemStore(), alerts)

	m.RunOnce(context.Background())

	alerts.mu.Lock()
	defer alerts.mu.Unlock()
	if len(alerts.alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts.alerts))
	}
	if alerts.alerts[0].subject != "PACKET LOSS: gateway" {
		t.Errorf("unexpected alert subject: %s", alerts.alerts[0].subject)
	}
}

// With alerting disabled the incident lifecycle must still run: open on
// failure, persist, and close on recovery, without dispatching anything.
func TestMonitorWithoutAlerter(t *testing.T) {
	prober := &stubProber{replies: []stubReply{
		{err: errors.New("timeout")},
		{latencyMS: 80},
	}}
	store := newMemStore()
	m := newTestMonitor(t, prober, store, nil)

	ctx := context.Background()
	m.RunOnce(ctx)
	m.RunOnce(ctx)

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.incidents) != 1 {
		t.Fatalf("expected 1 incident, got %d", len(store.incidents))
	}
	if !store.incidents[1].Resolved {
		t.Errorf("expected incident to be resolved")
	}
}

func TestMonitorSnapshot(t *testing.T) {
	prober := &stubProber{replies: []stubReply{
		{latencyMS: 100},
		{latencyMS: 200},
		{err: errors.New("timeout")},
	}}
	m := newTestMonitor(t, prober, newMemStore(), nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		m.RunOnce(ctx)
	}

	snap := m.Snapshot(2)
	if snap.Name != "gateway" || snap.Address != "192.168.1.1" {
		t.Errorf("unexpected identity in snapshot: %+v", snap)
	}
	if snap.TotalChecks != 3 {
		t.Errorf("expected 3 total checks, got %d", snap.TotalChecks)
	}
	if snap.ConsecutiveFailures != 2 {
		t.Errorf("expected streak of 2, got %d", snap.ConsecutiveFailures)
	}
	if snap.Status != models.StatusDegraded {
		t.Errorf("expected degraded status, got %s", snap.Status)
	}
	if len(snap.Recent) != 2 {
		t.Fatalf("expected 2 recent results, got %d", len(snap.Recent))
	}
	if snap.Recent[1].Class != models.ClassPacketLoss {
		t.Errorf("expected newest result to be packet loss, got %s", snap.Recent[1].Class)
	}
	if snap.AvgLatencyMS != 150.0 {
		t.Errorf("expected avg latency 150, got %v", snap.AvgLatencyMS)
	}
	if snap.LastCheck == nil {
		t.Errorf("expected last check to be set")
	}
}

func TestMonitorRunStopsOnContextCancel(t *testing.T) {
	prober := &stubProber{replies: make([]stubReply, 100)}
	for i := range prober.replies {
		prober.replies[i] = stubReply{latencyMS: 50}
	}
	m := newTestMonitor(t, prober, newMemStore(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
}
