package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/fablehouse/hourglass/internal/models"
)

type stubSender struct {
	channel string
	sent    []models.Notification
	err     error
}

func (s *stubSender) Channel() string { return s.channel }

func (s *stubSender) Send(ctx context.Context, n models.Notification) error {
	s.sent = append(s.sent, n)
	return s.err
}

func TestMultiDispatcherFansOut(t *testing.T) {
	web := &stubSender{channel: models.ChannelWeb}
	email := &stubSender{channel: models.ChannelEmail}
	d := NewMultiDispatcher(web, email)

	err := d.Dispatch(context.Background(), models.Notification{
		Kind:     models.NotificationTurn,
		TurnID:   "t1",
		Channels: []string{models.ChannelWeb, models.ChannelEmail},
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(web.sent) != 1 || len(email.sent) != 1 {
		t.Errorf("expected one send per channel, got web=%d email=%d", len(web.sent), len(email.sent))
	}
}

func TestMultiDispatcherSkipsSentinelTags(t *testing.T) {
	web := &stubSender{channel: models.ChannelWeb}
	d := NewMultiDispatcher(web)

	err := d.Dispatch(context.Background(), models.Notification{
		Kind:     models.NotificationWarning,
		TurnID:   "t1",
		Channels: []string{models.ChannelWeb, models.ChannelWarning, models.ChannelTimeout},
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(web.sent) != 1 {
		t.Errorf("expected 1 web send, got %d", len(web.sent))
	}
}

func TestMultiDispatcherOneFailureDoesNotStopOthers(t *testing.T) {
	web := &stubSender{channel: models.ChannelWeb, err: errors.New("feed down")}
	email := &stubSender{channel: models.ChannelEmail}
	d := NewMultiDispatcher(web, email)

	err := d.Dispatch(context.Background(), models.Notification{
		TurnID:   "t1",
		Channels: []string{models.ChannelWeb, models.ChannelEmail},
	})
	if err == nil {
		t.Fatal("expected joined error for failed channel")
	}
	if len(email.sent) != 1 {
		t.Errorf("email channel must still be attempted, got %d sends", len(email.sent))
	}
}

func TestMultiDispatcherUnconfiguredChannelSkipped(t *testing.T) {
	web := &stubSender{channel: models.ChannelWeb}
	d := NewMultiDispatcher(web, nil)

	err := d.Dispatch(context.Background(), models.Notification{
		TurnID:   "t1",
		Channels: []string{models.ChannelWeb, models.ChannelSMS},
	})
	if !errors.Is(err, ErrMissingSender) {
		t.Fatalf("expected ErrMissingSender, got %v", err)
	}
	if len(web.sent) != 1 {
		t.Errorf("configured channel must still proceed, got %d sends", len(web.sent))
	}
}
