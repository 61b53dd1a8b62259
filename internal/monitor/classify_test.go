package monitor

import (
	"testing"

	"github.com/netpulse/netpulse/pkg/models"
)

func TestClassify(t *testing.T) {
	threshold := 150.0
	ptr := func(v float64) *float64 { return &v }

	cases := []struct {
		name     string
		latency  *float64
		expected models.HealthClass
	}{
		{"no reply", nil, models.ClassPacketLoss},
		{"fast", ptr(42.0), models.ClassOK},
		{"exactly at threshold", ptr(150.0), models.ClassOK},
		{"just over threshold", ptr(150.1), models.ClassHighLatency},
		{"slow", ptr(480.0), models.ClassHighLatency},
		{"zero latency", ptr(0.0), models.ClassOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.latency, threshold); got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}
