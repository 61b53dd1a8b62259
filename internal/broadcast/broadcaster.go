// Package broadcast periodically pushes dashboard snapshots to connected
// subscribers. Each subscriber holds a single-frame queue: when a subscriber
// is slow, stale frames are replaced by the newest one instead of queueing.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/netpulse/netpulse/internal/logging"
	"github.com/netpulse/netpulse/internal/metrics"
	"github.com/netpulse/netpulse/pkg/models"
)

// SnapshotFunc produces the current dashboard payload with up to tail recent
// results per target.
type SnapshotFunc func(tail int) map[string]models.TargetSnapshot

// Subscriber receives dashboard frames. Frames() yields at most one pending
// frame; a slow consumer sees only the latest state, never a backlog.
type Subscriber struct {
	frames chan models.DashboardPayload
	done   chan struct{}
	once   sync.Once
}

// Frames returns the subscriber's frame channel.
func (s *Subscriber) Frames() <-chan models.DashboardPayload {
	return s.frames
}

// Close detaches the subscriber. Safe to call more than once.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

func (s *Subscriber) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// push delivers a frame with last-value-wins semantics: if the previous
// frame was not consumed yet, it is discarded in favour of the new one.
func (s *Subscriber) push(payload models.DashboardPayload) {
	for {
		select {
		case s.frames <- payload:
			return
		default:
		}
		select {
		case <-s.frames:
		default:
		}
	}
}

// Broadcaster fans dashboard snapshots out to subscribers on a fixed
// interval.
type Broadcaster struct {
	snapshot SnapshotFunc
	interval time.Duration
	tailSize int
	metrics  *metrics.Metrics
	logger   *logging.Logger

	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}

	now func() time.Time
}

// New creates a broadcaster that polls snapshot every interval.
func New(snapshot SnapshotFunc, interval time.Duration, tailSize int, m *metrics.Metrics, logger *logging.Logger) *Broadcaster {
	if interval <= 0 {
		interval = time.Second
	}
	return &Broadcaster{
		snapshot:    snapshot,
		interval:    interval,
		tailSize:    tailSize,
		metrics:     m,
		logger:      logger.WithComponent(logging.ComponentBroadcast),
		subscribers: make(map[*Subscriber]struct{}),
		now:         time.Now,
	}
}

// Subscribe registers a new subscriber and immediately delivers the current
// snapshot so clients render without waiting for the next tick.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{
		frames: make(chan models.DashboardPayload, 1),
		done:   make(chan struct{}),
	}

	sub.push(b.buildPayload())

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	count := len(b.subscribers)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SetSubscribers(count)
	}
	b.logger.WithFields(map[string]interface{}{
		"subscribers": count,
	}).Debug("Subscriber connected")

	return sub
}

// Run broadcasts until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.WithFields(map[string]interface{}{
		"interval": b.interval,
	}).Info("Broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Debug("Broadcaster stopped")
			return
		case <-ticker.C:
			b.Broadcast()
		}
	}
}

// Broadcast takes one snapshot and delivers it to all live subscribers,
// pruning any that have closed.
func (b *Broadcaster) Broadcast() {
	payload := b.buildPayload()

	b.mu.Lock()
	for sub := range b.subscribers {
		if sub.closed() {
			delete(b.subscribers, sub)
			continue
		}
		sub.push(payload)
	}
	count := len(b.subscribers)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SetSubscribers(count)
	}
}

// SubscriberCount returns the number of attached subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *Broadcaster) buildPayload() models.DashboardPayload {
	return models.DashboardPayload{
		Timestamp: b.now(),
		Targets:   b.snapshot(b.tailSize),
	}
}
