package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/fablehouse/hourglass/internal/models"
	"github.com/fablehouse/hourglass/internal/util"
)

// WebFeed is the narrow store surface the web channel writes to.
type WebFeed interface {
	AddWebNotification(n models.WebNotification) error
}

// WebSender delivers in-app notifications by appending to the recipient's web
// feed.
type WebSender struct {
	feed WebFeed
}

// Compile-time check that WebSender implements Sender.
var _ Sender = (*WebSender)(nil)

// NewWebSender creates a web channel sender over the given feed.
func NewWebSender(feed WebFeed) *WebSender {
	return &WebSender{feed: feed}
}

func (s *WebSender) Channel() string { return models.ChannelWeb }

func (s *WebSender) Send(ctx context.Context, n models.Notification) error {
	if n.RecipientHandle == "" {
		return fmt.Errorf("web notification requires a recipient handle")
	}
	return s.feed.AddWebNotification(models.WebNotification{
		ID:              util.GenerateNotificationID(),
		TurnID:          n.TurnID,
		BranchID:        n.BranchID,
		RecipientHandle: n.RecipientHandle,
		Kind:            n.Kind,
		Subject:         n.Subject(),
		Body:            n.Body(),
		DeepLink:        n.DeepLink,
		CreatedAt:       time.Now(),
	})
}
