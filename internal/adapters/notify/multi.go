package notify

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/example/triage/internal/ports/secondary"
)

// MultiNotifier delivers each notification to every wrapped notifier concurrently.
// A failing notifier does not prevent delivery to the others.
type MultiNotifier struct {
	notifiers []secondary.Notifier
}

// NewMultiNotifier creates a MultiNotifier. Nil entries are skipped.
func NewMultiNotifier(notifiers ...secondary.Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Len returns the number of wrapped notifiers.
func (m *MultiNotifier) Len() int { return len(m.notifiers) }

// Notify fans msg out and returns the joined errors of every failed delivery.
func (m *MultiNotifier) Notify(ctx context.Context, msg secondary.Notification) error {
	errs := make([]error, len(m.notifiers))

	var g errgroup.Group
	for i, n := range m.notifiers {
		i, n := i, n
		g.Go(func() error {
			errs[i] = n.Notify(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Ensure MultiNotifier implements the interface
var _ secondary.Notifier = (*MultiNotifier)(nil)
