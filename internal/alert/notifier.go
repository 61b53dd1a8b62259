// Package alert dispatches notifications about target state changes through
// configurable notifiers, with per-group cooldown suppression.
package alert

import "context"

// Notifier delivers a single notification.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// Multi fans a notification out to several notifiers. Nil entries are
// skipped; the first error is returned after all sends are attempted.
type Multi []Notifier

// Send implements Notifier.
func (m Multi) Send(ctx context.Context, subject, body string) error {
	var firstErr error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, subject, body); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
