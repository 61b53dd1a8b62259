// Package monitor runs the per-target probe loop: it classifies probe
// results, maintains the sliding window of recent results, and drives the
// incident state machine.
package monitor

import (
	"github.com/netpulse/netpulse/pkg/models"
)

// Classify maps a probe outcome to a health class. A nil latency means the
// probe received no reply and counts as packet loss. Latency exactly at the
// threshold is still OK.
func Classify(latencyMS *float64, thresholdMS float64) models.HealthClass {
	if latencyMS == nil {
		return models.ClassPacketLoss
	}
	if *latencyMS > thresholdMS {
		return models.ClassHighLatency
	}
	return models.ClassOK
}
