// Package metrics defines and registers the Prometheus instrumentation for
// probes, incidents, alerts, broadcast, and storage.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/netpulse/netpulse/pkg/models"
)

// Metrics holds all Prometheus metrics for NetPulse
type Metrics struct {
	// Counters
	ProbesTotal    *prometheus.CounterVec
	IncidentsTotal *prometheus.CounterVec
	AlertsTotal    *prometheus.CounterVec
	StoreErrors    *prometheus.CounterVec
	ReportsWritten prometheus.Counter

	// Gauges
	TargetStatus        *prometheus.GaugeVec
	ConsecutiveFailures *prometheus.GaugeVec
	IncidentsOpen       prometheus.Gauge
	Subscribers         prometheus.Gauge

	// Histograms
	ProbeLatency *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		// Counters
		ProbesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netpulse_probes_total",
				Help: "Total number of probes performed, by classification",
			},
			[]string{"target", "class"},
		),

		IncidentsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netpulse_incidents_total",
				Help: "Total number of incidents opened",
			},
			[]string{"target", "type"},
		),

		AlertsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netpulse_alerts_total",
				Help: "Total number of alert dispatch attempts by outcome",
			},
			[]string{"target", "category", "outcome"},
		),

		StoreErrors: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "netpulse_store_errors_total",
				Help: "Total number of storage operation failures",
			},
			[]string{"op"},
		),

		ReportsWritten: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "netpulse_reports_generated_total",
				Help: "Total number of daily report upserts",
			},
		),

		// Gauges
		TargetStatus: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netpulse_target_status",
				Help: "Current target status (0=up, 1=degraded, 2=down)",
			},
			[]string{"target"},
		),

		ConsecutiveFailures: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netpulse_consecutive_failures",
				Help: "Current consecutive failing probe count per target",
			},
			[]string{"target"},
		),

		IncidentsOpen: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "netpulse_incidents_open",
				Help: "Number of currently open incidents",
			},
		),

		Subscribers: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "netpulse_broadcast_subscribers",
				Help: "Number of connected dashboard subscribers",
			},
		),

		// Histograms
		ProbeLatency: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netpulse_probe_latency_seconds",
				Help:    "Probe round-trip time in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"target"},
		),
	}

	return m
}

// RecordProbe records one probe result
func (m *Metrics) RecordProbe(target string, class models.HealthClass, latencyMS float64) {
	m.ProbesTotal.With(prometheus.Labels{
		"target": target,
		"class":  string(class),
	}).Inc()

	if class != models.ClassPacketLoss {
		m.ProbeLatency.With(prometheus.Labels{
			"target": target,
		}).Observe(latencyMS / 1000.0)
	}
}

// SetTargetStatus sets the status gauge for a target
func (m *Metrics) SetTargetStatus(target string, status models.TargetStatus) {
	value := 0.0
	switch status {
	case models.StatusDegraded:
		value = 1.0
	case models.StatusDown:
		value = 2.0
	}
	m.TargetStatus.With(prometheus.Labels{"target": target}).Set(value)
}

// SetConsecutiveFailures sets the failure streak gauge for a target
func (m *Metrics) SetConsecutiveFailures(target string, count int) {
	m.ConsecutiveFailures.With(prometheus.Labels{"target": target}).Set(float64(count))
}

// RecordIncidentOpened records a new incident
func (m *Metrics) RecordIncidentOpened(target string, incidentType models.HealthClass) {
	m.IncidentsTotal.With(prometheus.Labels{
		"target": target,
		"type":   string(incidentType),
	}).Inc()
	m.IncidentsOpen.Inc()
}

// RecordIncidentClosed records an incident resolution
func (m *Metrics) RecordIncidentClosed() {
	m.IncidentsOpen.Dec()
}

// RecordAlert records an alert dispatch attempt
func (m *Metrics) RecordAlert(target, category, outcome string) {
	m.AlertsTotal.With(prometheus.Labels{
		"target":   target,
		"category": category,
		"outcome":  outcome,
	}).Inc()
}

// RecordStoreError records a storage operation failure
func (m *Metrics) RecordStoreError(op string) {
	m.StoreErrors.With(prometheus.Labels{"op": op}).Inc()
}

// RecordReportWritten records a daily report upsert
func (m *Metrics) RecordReportWritten() {
	m.ReportsWritten.Inc()
}

// SetSubscribers sets the connected subscriber count
func (m *Metrics) SetSubscribers(count int) {
	m.Subscribers.Set(float64(count))
}
