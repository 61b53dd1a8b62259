// Package models defines the core data structures for targets, probe results,
// incidents, and reports shared across the application.
package models

import (
	"time"
)

// HealthClass is the classification of a single probe result.
type HealthClass string

const (
	ClassOK          HealthClass = "ok"
	ClassHighLatency HealthClass = "high_latency"
	ClassPacketLoss  HealthClass = "packet_loss"
)

// Failing reports whether the classification counts toward an incident streak.
func (c HealthClass) Failing() bool {
	return c == ClassHighLatency || c == ClassPacketLoss
}

// TargetStatus represents the current health state of a target.
type TargetStatus string

const (
	StatusUp       TargetStatus = "up"
	StatusDegraded TargetStatus = "degraded"
	StatusDown     TargetStatus = "down"
)

// Target represents a single monitoring target. Targets are loaded from
// configuration at startup and never mutated afterwards.
type Target struct {
	Name     string   `yaml:"name" json:"name" mapstructure:"name"`
	Address  string   `yaml:"address" json:"address" mapstructure:"address"`
	Enabled  *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty" mapstructure:"enabled"`
	Interval Duration `yaml:"interval,omitempty" json:"interval,omitempty" mapstructure:"interval"`
}

// IsEnabled returns whether the target should be monitored. Defaults to true.
func (t *Target) IsEnabled() bool {
	if t.Enabled == nil {
		return true
	}
	return *t.Enabled
}

// ProbeResult is the outcome of one probe of one target. LatencyMS is nil
// when the probe timed out or errored (packet loss).
type ProbeResult struct {
	Target    string      `json:"target"`
	Timestamp time.Time   `json:"timestamp"`
	LatencyMS *float64    `json:"latency_ms,omitempty"`
	Class     HealthClass `json:"class"`
}

// Incident is a contiguous period during which a target is classified as
// failing. Type is fixed to the classification of the probe that opened the
// incident and never changes for the life of the streak.
type Incident struct {
	ID              int64       `json:"id"`
	Target          string      `json:"target"`
	Type            HealthClass `json:"type"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         *time.Time  `json:"end_time,omitempty"`
	DurationMinutes float64     `json:"duration_minutes,omitempty"`
	MaxLatencyMS    float64     `json:"max_latency_ms"`
	PacketLossCount int         `json:"packet_loss_count"`
	Resolved        bool        `json:"resolved"`
}

// TargetSnapshot is a point-in-time read-only copy of a target's runtime
// state. It is the wire format for broadcast payloads and the REST API.
type TargetSnapshot struct {
	Name                string        `json:"name"`
	Address             string        `json:"address"`
	Status              TargetStatus  `json:"status"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	TotalChecks         int64         `json:"total_checks"`
	AvgLatencyMS        float64       `json:"avg_latency_ms"`
	PacketLossRatePct   float64       `json:"packet_loss_rate_pct"`
	LastCheck           *time.Time    `json:"last_check,omitempty"`
	Recent              []ProbeResult `json:"recent_data"`
}

// DashboardPayload is one broadcast frame covering all targets.
type DashboardPayload struct {
	Timestamp time.Time                 `json:"timestamp"`
	Targets   map[string]TargetSnapshot `json:"targets"`
}

// DateLayout is the canonical date format for daily report keys.
const DateLayout = "2006-01-02"

// DailyReport is the per-target daily rollup. One row per (target, date);
// recomputed idempotently by the aggregator.
type DailyReport struct {
	Target           string  `json:"target"`
	Date             string  `json:"date"`
	TotalChecks      int     `json:"total_checks"`
	SuccessfulChecks int     `json:"successful_checks"`
	PacketLossCount  int     `json:"packet_loss_count"`
	AvgLatencyMS     float64 `json:"avg_latency_ms"`
	MaxLatencyMS     float64 `json:"max_latency_ms"`
	MinLatencyMS     float64 `json:"min_latency_ms"`
	UptimePercent    float64 `json:"uptime_percent"`
	IncidentsCount   int     `json:"incidents_count"`
}
