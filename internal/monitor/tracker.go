package monitor

import (
	"time"

	"github.com/netpulse/netpulse/pkg/models"
)

// Transition describes what the incident state machine did in response to a
// probe result.
type Transition int

const (
	// TransitionNone means the target was healthy and stayed healthy.
	TransitionNone Transition = iota
	// TransitionOpened means a failing probe started a new incident.
	TransitionOpened
	// TransitionSustained means a failing probe extended an open incident.
	TransitionSustained
	// TransitionClosed means an OK probe resolved the open incident.
	TransitionClosed
)

// Tracker is the incident state machine for a single target. A target has at
// most one open incident; the incident's type is fixed by the classification
// of the probe that opened it. Tracker is not safe for concurrent use.
type Tracker struct {
	target              string
	consecutiveFailures int
	open                *models.Incident
}

// NewTracker creates a tracker for the named target.
func NewTracker(target string) *Tracker {
	return &Tracker{target: target}
}

// Apply feeds one probe result into the state machine and returns the
// resulting transition. For TransitionOpened the returned incident is the
// newly opened one; for TransitionSustained and TransitionClosed it is the
// updated incident. The caller persists it.
func (t *Tracker) Apply(result *models.ProbeResult, now time.Time) (Transition, *models.Incident) {
	if !result.Class.Failing() {
		if t.open == nil {
			t.consecutiveFailures = 0
			return TransitionNone, nil
		}

		incident := t.open
		end := now
		incident.EndTime = &end
		incident.DurationMinutes = end.Sub(incident.StartTime).Minutes()
		incident.Resolved = true

		t.open = nil
		t.consecutiveFailures = 0
		return TransitionClosed, incident
	}

	t.consecutiveFailures++

	if t.open == nil {
		t.open = &models.Incident{
			Target:    t.target,
			Type:      result.Class,
			StartTime: now,
		}
		t.recordSample(result)
		return TransitionOpened, t.open
	}

	t.recordSample(result)
	return TransitionSustained, t.open
}

func (t *Tracker) recordSample(result *models.ProbeResult) {
	if result.LatencyMS != nil && *result.LatencyMS > t.open.MaxLatencyMS {
		t.open.MaxLatencyMS = *result.LatencyMS
	}
	if result.Class == models.ClassPacketLoss {
		t.open.PacketLossCount++
	}
}

// ConsecutiveFailures returns the length of the current failing streak.
func (t *Tracker) ConsecutiveFailures() int {
	return t.consecutiveFailures
}

// OpenIncident returns the currently open incident, or nil.
func (t *Tracker) OpenIncident() *models.Incident {
	return t.open
}

// Status derives the target status from the state machine: up with no open
// incident, down while a packet loss incident is open, degraded while a high
// latency incident is open.
func (t *Tracker) Status() models.TargetStatus {
	if t.open == nil {
		return models.StatusUp
	}
	if t.open.Type == models.ClassPacketLoss {
		return models.StatusDown
	}
	return models.StatusDegraded
}
