package alert

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/netpulse/netpulse/internal/logging"
	"github.com/netpulse/netpulse/internal/metrics"
)

// Grouping policies for cooldown keys.
const (
	// GroupingCategory keys the cooldown on the alert category.
	GroupingCategory = "category"
	// GroupingSubject keys the cooldown on the subject prefix before the
	// first colon, e.g. "PACKET LOSS: gateway" groups as "PACKET LOSS".
	GroupingSubject = "subject"
)

// Dispatch outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Dispatcher delivers alerts through a Notifier, suppressing repeats within
// the cooldown period. Alerts are grouped per target by category or by
// legacy subject prefix; each group cools down independently.
type Dispatcher struct {
	notifier Notifier
	cooldown time.Duration
	grouping string
	metrics  *metrics.Metrics
	logger   *logging.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time

	now func() time.Time
}

// NewDispatcher creates a dispatcher with the given cooldown and grouping
// policy.
func NewDispatcher(notifier Notifier, cooldown time.Duration, grouping string, m *metrics.Metrics, logger *logging.Logger) *Dispatcher {
	if grouping != GroupingSubject {
		grouping = GroupingCategory
	}
	return &Dispatcher{
		notifier: notifier,
		cooldown: cooldown,
		grouping: grouping,
		metrics:  m,
		logger:   logger.WithComponent(logging.ComponentAlert),
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Notify attempts to deliver one alert. A failed delivery does not start the
// cooldown, so the next occurrence retries.
func (d *Dispatcher) Notify(ctx context.Context, target, category, subject, body string) {
	outcome := d.dispatch(ctx, target, category, subject, body)

	if d.metrics != nil {
		d.metrics.RecordAlert(target, category, outcome)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, target, category, subject, body string) string {
	key := d.groupKey(target, category, subject)
	now := d.now()

	// Check and reserve atomically so concurrent calls on the same key
	// cannot both pass the cooldown check
	d.mu.Lock()
	last, seen := d.lastSent[key]
	if seen && now.Sub(last) < d.cooldown {
		d.mu.Unlock()
		d.logger.WithEvent(logging.EventAlertSkipped).WithFields(map[string]interface{}{
			"target":  target,
			"group":   key,
			"subject": subject,
		}).Debug("Alert suppressed by cooldown")
		return OutcomeSkipped
	}
	d.lastSent[key] = now
	d.mu.Unlock()

	if err := d.notifier.Send(ctx, subject, body); err != nil {
		// Release the reservation so the next occurrence retries
		d.mu.Lock()
		if d.lastSent[key].Equal(now) {
			delete(d.lastSent, key)
		}
		d.mu.Unlock()

		d.logger.WithError(err).WithFields(map[string]interface{}{
			"target":  target,
			"subject": subject,
		}).Error("Failed to send alert")
		return OutcomeFailed
	}

	d.logger.WithEvent(logging.EventAlertSent).WithFields(map[string]interface{}{
		"target":  target,
		"group":   key,
		"subject": subject,
	}).Info("Alert sent")
	return OutcomeSent
}

func (d *Dispatcher) groupKey(target, category, subject string) string {
	if d.grouping == GroupingSubject {
		prefix, _, _ := strings.Cut(subject, ":")
		return target + "/" + prefix
	}
	return target + "/" + category
}
