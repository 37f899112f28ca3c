package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fablehouse/hourglass/internal/models"
)

// MultiDispatcher routes each channel tag of a notification to its configured
// sender. Sentinel tags (warning, timeout) are never dispatched; they only
// appear in the stored channel set.
type MultiDispatcher struct {
	senders map[string]Sender
}

// Compile-time check that MultiDispatcher implements Dispatcher.
var _ Dispatcher = (*MultiDispatcher)(nil)

// NewMultiDispatcher builds a dispatcher over the given senders. A nil sender
// is ignored so callers can pass conditionally constructed channels directly.
func NewMultiDispatcher(senders ...Sender) *MultiDispatcher {
	m := make(map[string]Sender, len(senders))
	for _, s := range senders {
		if s == nil {
			continue
		}
		m[s.Channel()] = s
	}
	return &MultiDispatcher{senders: m}
}

// Dispatch delivers the notification on every deliverable channel in its
// channel list. A per-channel failure is logged and does not stop the other
// channels; the joined error is returned for the caller to log.
func (d *MultiDispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, ch := range n.Channels {
		switch ch {
		case models.ChannelWarning, models.ChannelTimeout:
			continue
		}
		sender, ok := d.senders[ch]
		if !ok {
			slog.Warn("MultiDispatcher.Dispatch: skipping unconfigured channel", "channel", ch, "turnID", n.TurnID)
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingSender, ch))
			continue
		}
		if err := sender.Send(ctx, n); err != nil {
			slog.Error("MultiDispatcher.Dispatch: send failed", "channel", ch, "turnID", n.TurnID, "kind", n.Kind, "error", err)
			errs = append(errs, fmt.Errorf("channel %s: %w", ch, err))
			continue
		}
		slog.Debug("MultiDispatcher.Dispatch: sent", "channel", ch, "turnID", n.TurnID, "kind", n.Kind)
	}
	return errors.Join(errs...)
}
