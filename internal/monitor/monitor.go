package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/netpulse/netpulse/internal/logging"
	"github.com/netpulse/netpulse/internal/metrics"
	"github.com/netpulse/netpulse/internal/probe"
	"github.com/netpulse/netpulse/internal/storage"
	"github.com/netpulse/netpulse/pkg/models"
)

// Alert categories used for dispatch grouping.
const (
	CategoryPacketLoss  = "packet_loss"
	CategoryHighLatency = "high_latency"
	CategoryRecovery    = "recovery"
)

// AlertSender dispatches a notification about a target state change. The
// implementation applies its own cooldown and grouping policy.
type AlertSender interface {
	Notify(ctx context.Context, target, category, subject, body string)
}

// Options configures a TargetMonitor.
type Options struct {
	Target       models.Target
	ThresholdMS  float64
	ProbeTimeout time.Duration
	WindowSize   int
	Prober       probe.Prober
	Store        storage.EventStore
	Alerts       AlertSender
	Metrics      *metrics.Metrics
	Logger       *logging.Logger
}

// TargetMonitor probes one target on a fixed interval, classifies the
// results, and drives the incident state machine with its side effects:
// persistence, metrics, and alerts.
type TargetMonitor struct {
	target       models.Target
	thresholdMS  float64
	probeTimeout time.Duration
	prober       probe.Prober
	store        storage.EventStore
	alerts       AlertSender
	metrics      *metrics.Metrics
	logger       *logging.Logger

	mu          sync.RWMutex
	window      *Window
	tracker     *Tracker
	totalChecks int64
	lastCheck   *time.Time

	now func() time.Time
}

// New creates a monitor for a single target.
func New(opts Options) *TargetMonitor {
	return &TargetMonitor{
		target:       opts.Target,
		thresholdMS:  opts.ThresholdMS,
		probeTimeout: opts.ProbeTimeout,
		prober:       opts.Prober,
		store:        opts.Store,
		alerts:       opts.Alerts,
		metrics:      opts.Metrics,
		logger:       opts.Logger.WithComponent(logging.ComponentMonitor).WithTarget(opts.Target.Name, opts.Target.Address),
		window:       NewWindow(opts.WindowSize),
		tracker:      NewTracker(opts.Target.Name),
		now:          time.Now,
	}
}

// Name returns the target name.
func (m *TargetMonitor) Name() string {
	return m.target.Name
}

// Run probes the target until the context is cancelled.
func (m *TargetMonitor) Run(ctx context.Context) {
	interval := m.target.Interval.ToDuration()
	if interval <= 0 {
		interval = 2 * time.Second
	}

	m.logger.WithFields(map[string]interface{}{
		"interval": interval,
	}).Info("Target monitor started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("Target monitor stopped")
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single probe iteration.
func (m *TargetMonitor) RunOnce(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	latencyMS, err := m.prober.Probe(probeCtx, m.target.Address)
	cancel()

	now := m.now()

	var latency *float64
	if err == nil {
		v := latencyMS
		latency = &v
	} else if ctx.Err() != nil {
		// Shutting down; don't record a spurious loss
		return
	}

	class := Classify(latency, m.thresholdMS)
	result := &models.ProbeResult{
		Target:    m.target.Name,
		Timestamp: now,
		LatencyMS: latency,
		Class:     class,
	}

	if err := m.store.InsertProbeResult(ctx, result); err != nil {
		m.logger.WithError(err).Error("Failed to persist probe result")
		if m.metrics != nil {
			m.metrics.RecordStoreError("insert_probe_result")
		}
	}

	m.mu.Lock()
	m.window.Add(*result)
	m.totalChecks++
	m.lastCheck = &now
	transition, incident := m.tracker.Apply(result, now)
	failures := m.tracker.ConsecutiveFailures()
	status := m.tracker.Status()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordProbe(m.target.Name, class, latencyMS)
		m.metrics.SetTargetStatus(m.target.Name, status)
		m.metrics.SetConsecutiveFailures(m.target.Name, failures)
	}

	m.logger.ProbeCompleted(m.target.Name, m.target.Address, string(class), latencyMS, failures)

	switch transition {
	case TransitionOpened:
		m.handleOpened(ctx, incident, result)
	case TransitionSustained:
		m.handleSustained(ctx, incident)
	case TransitionClosed:
		m.handleClosed(ctx, incident)
	}
}

func (m *TargetMonitor) handleOpened(ctx context.Context, incident *models.Incident, result *models.ProbeResult) {
	id, err := m.store.InsertIncident(ctx, incident)
	if err != nil {
		m.logger.WithError(err).Error("Failed to persist incident")
		if m.metrics != nil {
			m.metrics.RecordStoreError("insert_incident")
		}
	} else {
		incident.ID = id
	}

	if m.metrics != nil {
		m.metrics.RecordIncidentOpened(m.target.Name, incident.Type)
	}
	m.logger.IncidentEvent(logging.EventIncidentOpened, m.target.Name, string(incident.Type), incident.ID)

	if m.alerts == nil {
		return
	}

	switch incident.Type {
	case models.ClassPacketLoss:
		m.alerts.Notify(ctx, m.target.Name, CategoryPacketLoss,
			fmt.Sprintf("PACKET LOSS: %s", m.target.Name),
			fmt.Sprintf("Target %s (%s) is not responding to probes.", m.target.Name, m.target.Address))
	case models.ClassHighLatency:
		latency := 0.0
		if result.LatencyMS != nil {
			latency = *result.LatencyMS
		}
		m.alerts.Notify(ctx, m.target.Name, CategoryHighLatency,
			fmt.Sprintf("HIGH LATENCY: %s", m.target.Name),
			fmt.Sprintf("Target %s (%s) latency %.1fms exceeds threshold %.1fms.",
				m.target.Name, m.target.Address, latency, m.thresholdMS))
	}
}

func (m *TargetMonitor) handleSustained(ctx context.Context, incident *models.Incident) {
	if err := m.store.UpdateIncident(ctx, incident); err != nil {
		m.logger.WithError(err).Error("Failed to update incident")
		if m.metrics != nil {
			m.metrics.RecordStoreError("update_incident")
		}
	}
}

func (m *TargetMonitor) handleClosed(ctx context.Context, incident *models.Incident) {
	if err := m.store.UpdateIncident(ctx, incident); err != nil {
		m.logger.WithError(err).Error("Failed to update incident")
		if m.metrics != nil {
			m.metrics.RecordStoreError("update_incident")
		}
	}

	if m.metrics != nil {
		m.metrics.RecordIncidentClosed()
	}
	m.logger.IncidentEvent(logging.EventIncidentClosed, m.target.Name, string(incident.Type), incident.ID)

	if m.alerts != nil {
		m.alerts.Notify(ctx, m.target.Name, CategoryRecovery,
			fmt.Sprintf("RECOVERED: %s", m.target.Name),
			fmt.Sprintf("Target %s (%s) recovered after %.1f minutes.",
				m.target.Name, m.target.Address, incident.DurationMinutes))
	}
}

// Snapshot returns a point-in-time copy of the target's runtime state with
// up to tail recent results.
func (m *TargetMonitor) Snapshot(tail int) models.TargetSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var lastCheck *time.Time
	if m.lastCheck != nil {
		t := *m.lastCheck
		lastCheck = &t
	}

	return models.TargetSnapshot{
		Name:                m.target.Name,
		Address:             m.target.Address,
		Status:              m.tracker.Status(),
		ConsecutiveFailures: m.tracker.ConsecutiveFailures(),
		TotalChecks:         m.totalChecks,
		AvgLatencyMS:        m.window.AvgLatency(),
		PacketLossRatePct:   m.window.PacketLossRate(),
		LastCheck:           lastCheck,
		Recent:              m.window.Tail(tail),
	}
}
