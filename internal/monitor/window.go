package monitor

import (
	"github.com/netpulse/netpulse/pkg/models"
)

// Window holds the most recent probe results for a single target in a
// circular buffer. It is not safe for concurrent use; TargetMonitor guards
// access with its own mutex.
type Window struct {
	results []models.ProbeResult
	index   int // Current write index (circular buffer)
	count   int // Total results stored (up to capacity)
}

// NewWindow creates a window with the given capacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 100 // Default size
	}
	return &Window{
		results: make([]models.ProbeResult, capacity),
	}
}

// Add stores a result, evicting the oldest when the window is full.
func (w *Window) Add(result models.ProbeResult) {
	w.results[w.index] = result
	w.index = (w.index + 1) % len(w.results)
	if w.count < len(w.results) {
		w.count++
	}
}

// Len returns the number of stored results.
func (w *Window) Len() int {
	return w.count
}

// Tail returns up to n of the most recent results in chronological order
// (oldest first).
func (w *Window) Tail(n int) []models.ProbeResult {
	count := w.count
	if n > 0 && n < count {
		count = n
	}
	if count == 0 {
		return []models.ProbeResult{}
	}

	capacity := len(w.results)
	results := make([]models.ProbeResult, 0, count)
	for i := count; i > 0; i-- {
		idx := (w.index - i + capacity) % capacity
		results = append(results, w.results[idx])
	}
	return results
}

// AvgLatency returns the mean latency in milliseconds across results that
// received a reply. Returns 0 when no result in the window has a latency.
func (w *Window) AvgLatency() float64 {
	var sum float64
	var n int
	w.each(func(r models.ProbeResult) {
		if r.LatencyMS != nil {
			sum += *r.LatencyMS
			n++
		}
	})
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// PacketLossRate returns the percentage of results in the window classified
// as packet loss.
func (w *Window) PacketLossRate() float64 {
	if w.count == 0 {
		return 0
	}
	var lost int
	w.each(func(r models.ProbeResult) {
		if r.Class == models.ClassPacketLoss {
			lost++
		}
	})
	return float64(lost) / float64(w.count) * 100.0
}

func (w *Window) each(fn func(models.ProbeResult)) {
	capacity := len(w.results)
	for i := w.count; i > 0; i-- {
		idx := (w.index - i + capacity) % capacity
		fn(w.results[idx])
	}
}
