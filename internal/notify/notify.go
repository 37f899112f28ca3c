// Package notify provides multi-channel notification dispatch for Hourglass.
//
// The scheduler hands a Notification and a channel list to the Dispatcher;
// each channel is delivered by a pluggable Sender. A channel with missing
// configuration or a failed send is skipped so the remaining channels still
// proceed.
package notify

import (
	"context"
	"errors"

	"github.com/fablehouse/hourglass/internal/models"
)

// ErrMissingSender is reported when a notification names a channel no sender
// is configured for.
var ErrMissingSender = errors.New("no sender configured for channel")

// Sender delivers a notification over a single channel.
type Sender interface {
	// Channel returns the channel tag this sender serves.
	Channel() string

	// Send delivers the notification to its recipient over this channel.
	Send(ctx context.Context, n models.Notification) error
}

// Dispatcher fans a notification out to its channel list.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification) error
}
