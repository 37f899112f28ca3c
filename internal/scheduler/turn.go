package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/fablehouse/hourglass/internal/events"
	"github.com/fablehouse/hourglass/internal/genai"
	"github.com/fablehouse/hourglass/internal/models"
)

// processTurn advances one open turn through its lifecycle. The turn is
// mutated in place to reflect writes that succeeded, so later steps in the
// same tick observe them.
func (s *Scheduler) processTurn(ctx context.Context, t *models.Turn) error {
	if t.Completed() {
		return nil
	}

	if err := s.ensureExpiry(t); err != nil {
		return err
	}
	if err := s.sendInitialNotification(ctx, t); err != nil {
		return err
	}

	if t.ExpiresAt == nil {
		return nil
	}
	now := s.now()
	remaining := t.ExpiresAt.Sub(now)

	if remaining > 0 && remaining <= s.cfg.WarningThreshold && !t.HasNotifiedChannel(models.ChannelWarning) {
		if err := s.sendWarning(ctx, t, remaining); err != nil {
			return err
		}
	}

	if now.After(*t.ExpiresAt) {
		return s.resolveTimeout(ctx, t, now)
	}
	return nil
}

// ensureExpiry computes and persists expires_at exactly once for turns that
// carry a response window. The guarded update loses to any concurrent writer;
// on a lost race the row is re-read so this tick continues with the winner's
// value.
func (s *Scheduler) ensureExpiry(t *models.Turn) error {
	if t.ExpiresAt != nil || t.ResponseWindowMinutes == nil {
		return nil
	}

	expiresAt := t.CreatedAt.Add(time.Duration(*t.ResponseWindowMinutes) * time.Minute)
	applied, err := s.store.SetTurnExpiry(t.ID, expiresAt)
	if err != nil {
		return err
	}
	if applied {
		t.ExpiresAt = &expiresAt
		slog.Debug("Scheduler.ensureExpiry: expiry assigned", "turnID", t.ID, "expiresAt", expiresAt)
		return nil
	}

	fresh, err := s.store.GetTurn(t.ID)
	if err != nil {
		return err
	}
	if fresh != nil {
		*t = *fresh
	}
	return nil
}

// computeChannels derives the deliverable channel set from the recipient's
// configured contact methods. Web is always included.
func (s *Scheduler) computeChannels(t *models.Turn) []string {
	channels := []string{models.ChannelWeb}
	if t.RecipientDiscordWebhook != "" || s.cfg.DefaultDiscordWebhook != "" {
		channels = append(channels, models.ChannelDiscord)
	}
	if t.RecipientEmail != "" {
		channels = append(channels, models.ChannelEmail)
	}
	if t.RecipientPhone != "" {
		channels = append(channels, models.ChannelSMS)
	}
	return channels
}

// buildNotification assembles the payload shared by all three message kinds.
func (s *Scheduler) buildNotification(kind models.NotificationKind, t *models.Turn, channels []string) models.Notification {
	return models.Notification{
		Kind:                    kind,
		BranchID:                t.BranchID,
		TurnID:                  t.ID,
		StoryTitle:              t.StoryTitle,
		Prompt:                  t.Prompt(),
		Channels:                channels,
		RecipientHandle:         t.RecipientHandle,
		RecipientEmail:          t.RecipientEmail,
		RecipientPhone:          t.RecipientPhone,
		RecipientDiscordWebhook: t.RecipientDiscordWebhook,
		DeepLink:                t.DeepLink(s.cfg.BaseURL),
	}
}

// sendInitialNotification dispatches the "turn assigned" message once, for
// turns that have a recipient and no recorded channels yet, then persists the
// channel set.
func (s *Scheduler) sendInitialNotification(ctx context.Context, t *models.Turn) error {
	if len(t.NotifiedChannels) != 0 || t.RecipientHandle == "" {
		return nil
	}

	channels := s.computeChannels(t)
	n := s.buildNotification(models.NotificationTurn, t, channels)
	if t.ExpiresAt != nil {
		due := *t.ExpiresAt
		n.DueAt = &due
		n.RemainingMs = clampMs(due.Sub(s.now()))
	}

	if err := s.dispatcher.Dispatch(ctx, n); err != nil {
		slog.Error("Scheduler.sendInitialNotification: dispatch incomplete", "turnID", t.ID, "error", err)
	}

	applied, err := s.store.SetNotifiedChannels(t.ID, channels)
	if err != nil {
		return err
	}
	if !applied {
		slog.Debug("Scheduler.sendInitialNotification: channel set already recorded", "turnID", t.ID)
		return nil
	}
	t.NotifiedChannels = channels

	windowMinutes := 0
	if t.ResponseWindowMinutes != nil {
		windowMinutes = *t.ResponseWindowMinutes
	}
	s.recorder.Record(ctx, events.Event{
		Name:      events.EventTurnPrompted,
		SessionID: events.SessionID(t.ID),
		Properties: map[string]any{
			"branch_id":               t.BranchID,
			"turn_id":                 t.ID,
			"channels":                channels,
			"response_window_minutes": windowMinutes,
		},
	})
	return nil
}

// sendWarning dispatches the one-time reminder and appends the warning
// sentinel to the channel set.
func (s *Scheduler) sendWarning(ctx context.Context, t *models.Turn, remaining time.Duration) error {
	n := s.buildNotification(models.NotificationWarning, t, s.computeChannels(t))
	due := *t.ExpiresAt
	n.DueAt = &due
	n.RemainingMs = clampMs(remaining)

	if err := s.dispatcher.Dispatch(ctx, n); err != nil {
		slog.Error("Scheduler.sendWarning: dispatch incomplete", "turnID", t.ID, "error", err)
	}

	applied, err := s.store.AppendNotifiedChannel(t.ID, models.ChannelWarning)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	t.NotifiedChannels = append(t.NotifiedChannels, models.ChannelWarning)

	s.recorder.Record(ctx, events.Event{
		Name:      events.EventTurnWarned,
		SessionID: events.SessionID(t.ID),
		Properties: map[string]any{
			"branch_id":    t.BranchID,
			"turn_id":      t.ID,
			"remaining_ms": n.RemainingMs,
		},
	})
	return nil
}

// resolveTimeout applies the turn's timeout strategy once the expiry has
// strictly passed.
func (s *Scheduler) resolveTimeout(ctx context.Context, t *models.Turn, now time.Time) error {
	elapsed := clampMs(now.Sub(*t.ExpiresAt))

	switch t.TimeoutStrategy {
	case models.TimeoutStrategyHostOverride:
		// Resolution is left to a human; completed_at is never touched here.
		if t.HasNotifiedChannel(models.ChannelTimeout) {
			return nil
		}
		n := s.buildNotification(models.NotificationTimeout, t, s.computeChannels(t))
		n.ElapsedMs = elapsed
		if err := s.dispatcher.Dispatch(ctx, n); err != nil {
			slog.Error("Scheduler.resolveTimeout: dispatch incomplete", "turnID", t.ID, "error", err)
		}
		applied, err := s.store.AppendNotifiedChannel(t.ID, models.ChannelTimeout)
		if err != nil {
			return err
		}
		if applied {
			t.NotifiedChannels = append(t.NotifiedChannels, models.ChannelTimeout)
		}
		return nil

	default:
		// ai_autofill: generate filler, then perform the guarded completion.
		fill, err := s.generator.GenerateFill(ctx, genai.FillRequest{
			BranchID: t.BranchID,
			TurnID:   t.ID,
			Prompt:   t.Prompt(),
			Model:    s.cfg.AIModel,
		})
		if err != nil {
			// Left untouched; retried on the next tick.
			slog.Error("Scheduler.resolveTimeout: autofill generation failed", "turnID", t.ID, "error", err)
			return nil
		}

		applied, err := s.store.CompleteTurnWithAutofill(t.ID, now, models.CompletedByAI, fill.Content)
		if err != nil {
			return err
		}
		if !applied {
			// Another writer resolved the row first; no duplicate notification.
			slog.Debug("Scheduler.resolveTimeout: turn already resolved", "turnID", t.ID)
			return nil
		}
		done := now
		t.CompletedAt = &done
		t.CompletedBy = models.CompletedByAI
		t.AutoFilled = true
		t.AutoFillText = fill.Content

		s.recorder.Record(ctx, events.Event{
			Name:      events.EventTurnAutofilled,
			SessionID: events.SessionID(t.ID),
			Properties: map[string]any{
				"branch_id":  t.BranchID,
				"turn_id":    t.ID,
				"elapsed_ms": elapsed,
				"model":      fill.Model,
			},
		})

		n := s.buildNotification(models.NotificationTimeout, t, s.computeChannels(t))
		n.ElapsedMs = elapsed
		n.AIFill = fill.Content
		if err := s.dispatcher.Dispatch(ctx, n); err != nil {
			slog.Error("Scheduler.resolveTimeout: dispatch incomplete", "turnID", t.ID, "error", err)
		}
		return nil
	}
}

// clampMs converts a duration to whole milliseconds, clamped to zero.
func clampMs(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
