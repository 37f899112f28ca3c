package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fablehouse/hourglass/internal/models"
)

// DefaultWebhookTimeout bounds a single Discord webhook POST.
const DefaultWebhookTimeout = 10 * time.Second

// DiscordSender delivers notifications by posting to a Discord webhook. The
// turn's own webhook wins; a configured default is used when the row has none.
type DiscordSender struct {
	client         *http.Client
	defaultWebhook string
}

// Compile-time check that DiscordSender implements Sender.
var _ Sender = (*DiscordSender)(nil)

// NewDiscordSender creates a Discord webhook sender. defaultWebhook may be
// empty, in which case only turns carrying their own webhook are deliverable.
func NewDiscordSender(defaultWebhook string) *DiscordSender {
	return &DiscordSender{
		client:         &http.Client{Timeout: DefaultWebhookTimeout},
		defaultWebhook: defaultWebhook,
	}
}

// NewDiscordSenderWithClient injects an HTTP client (used by tests).
func NewDiscordSenderWithClient(client *http.Client, defaultWebhook string) *DiscordSender {
	return &DiscordSender{client: client, defaultWebhook: defaultWebhook}
}

func (s *DiscordSender) Channel() string { return models.ChannelDiscord }

func (s *DiscordSender) Send(ctx context.Context, n models.Notification) error {
	webhook := n.RecipientDiscordWebhook
	if webhook == "" {
		webhook = s.defaultWebhook
	}
	if webhook == "" {
		return models.ErrMissingWebhook
	}

	payload, err := json.Marshal(map[string]string{"content": n.Body()})
	if err != nil {
		return fmt.Errorf("encode discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook post failed for turn %s: %w", n.TurnID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook returned status %d: %s", resp.StatusCode, string(body))
	}
	slog.Debug("DiscordSender.Send: webhook delivered", "turnID", n.TurnID)
	return nil
}
