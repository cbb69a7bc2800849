// Package notify is the outbound "strong reminder" surface: forced
// liquidations, repeated order failures, and configuration errors produce a
// message a human is expected to read promptly.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier delivers a strong reminder. Delivery is best effort; callers log
// the returned error and carry on.
type Notifier interface {
	Strong(ctx context.Context, msg string) error
}

// LogNotifier writes reminders to the process log at error level. It is the
// fallback when no mail transport is configured.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Strong(ctx context.Context, msg string) error {
	n.Log.Error().Str("channel", "strong-reminder").Msg(msg)
	return nil
}

// Multi fans a reminder out to several notifiers, returning the first error
// after attempting all of them.
type Multi []Notifier

func (m Multi) Strong(ctx context.Context, msg string) error {
	var first error
	for _, n := range m {
		if err := n.Strong(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
