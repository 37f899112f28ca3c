package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/fablehouse/hourglass/internal/models"
)

// Compile-time check that PostgresStore implements TurnRepo.
var _ TurnRepo = (*PostgresStore)(nil)

func (s *PostgresStore) ListOpenTurns(limit int) ([]models.Turn, error) {
	rows, err := s.db.Query(
		`SELECT `+turnColumns+` FROM turns
		 WHERE completed_at IS NULL
		 ORDER BY created_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list open turns failed: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan turn failed: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list open turns iteration failed: %w", err)
	}
	return turns, nil
}

func (s *PostgresStore) SetTurnExpiry(id string, expiresAt time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE turns SET expires_at = $1, updated_at = $2
		 WHERE id = $3 AND expires_at IS NULL AND completed_at IS NULL`,
		expiresAt, time.Now(), id,
	)
	if err != nil {
		return false, fmt.Errorf("set turn expiry failed: %w", err)
	}
	n, _ := result.RowsAffected()
	slog.Debug("PostgresStore.SetTurnExpiry", "id", id, "expiresAt", expiresAt, "applied", n > 0)
	return n > 0, nil
}

func (s *PostgresStore) SetNotifiedChannels(id string, channels []string) (bool, error) {
	encoded, err := encodeChannels(channels)
	if err != nil {
		return false, err
	}
	result, err := s.db.Exec(
		`UPDATE turns SET notified_channels = $1, updated_at = $2
		 WHERE id = $3 AND (notified_channels = '' OR notified_channels = '[]') AND completed_at IS NULL`,
		encoded, time.Now(), id,
	)
	if err != nil {
		return false, fmt.Errorf("set notified channels failed: %w", err)
	}
	n, _ := result.RowsAffected()
	slog.Debug("PostgresStore.SetNotifiedChannels", "id", id, "channels", channels, "applied", n > 0)
	return n > 0, nil
}

func (s *PostgresStore) AppendNotifiedChannel(id string, tag string) (bool, error) {
	// Read-modify-write: the update is conditioned on the exact serialized set
	// read here, so a concurrent append rolls this attempt back to a no-op.
	var current string
	err := s.db.QueryRow(
		`SELECT notified_channels FROM turns WHERE id = $1 AND completed_at IS NULL`, id,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("append notified channel lookup failed: %w", err)
	}

	channels, err := decodeChannels(current)
	if err != nil {
		return false, err
	}
	for _, c := range channels {
		if c == tag {
			return false, nil
		}
	}
	encoded, err := encodeChannels(append(channels, tag))
	if err != nil {
		return false, err
	}

	result, err := s.db.Exec(
		`UPDATE turns SET notified_channels = $1, updated_at = $2
		 WHERE id = $3 AND notified_channels = $4 AND completed_at IS NULL`,
		encoded, time.Now(), id, current,
	)
	if err != nil {
		return false, fmt.Errorf("append notified channel failed: %w", err)
	}
	n, _ := result.RowsAffected()
	slog.Debug("PostgresStore.AppendNotifiedChannel", "id", id, "tag", tag, "applied", n > 0)
	return n > 0, nil
}

func (s *PostgresStore) CompleteTurnWithAutofill(id string, completedAt time.Time, completedBy, fillText string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE turns SET completed_at = $1, completed_by = $2, auto_filled = TRUE, auto_fill_text = $3, updated_at = $4
		 WHERE id = $5 AND completed_at IS NULL`,
		completedAt, completedBy, fillText, time.Now(), id,
	)
	if err != nil {
		return false, fmt.Errorf("complete turn failed: %w", err)
	}
	n, _ := result.RowsAffected()
	slog.Debug("PostgresStore.CompleteTurnWithAutofill", "id", id, "completedBy", completedBy, "applied", n > 0)
	return n > 0, nil
}

func (s *PostgresStore) GetTurn(id string) (*models.Turn, error) {
	row := s.db.QueryRow(`SELECT `+turnColumns+` FROM turns WHERE id = $1`, id)
	t, err := scanTurn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get turn failed: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) InsertTurn(t models.Turn) error {
	encoded, err := encodeChannels(t.NotifiedChannels)
	if err != nil {
		return err
	}
	now := time.Now()
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err = s.db.Exec(
		`INSERT INTO turns (id, branch_id, story_title, prompt_text, response_window_minutes,
		   timeout_strategy, recipient_handle, recipient_email, recipient_phone, recipient_discord_webhook,
		   notified_channels, expires_at, completed_at, completed_by, auto_filled, auto_fill_text, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		t.ID, t.BranchID, t.StoryTitle, t.PromptText, nilIfNilInt(t.ResponseWindowMinutes),
		t.TimeoutStrategy, t.RecipientHandle, t.RecipientEmail, t.RecipientPhone, t.RecipientDiscordWebhook,
		encoded, t.ExpiresAt, t.CompletedAt, t.CompletedBy, t.AutoFilled, t.AutoFillText, createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("insert turn failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddWebNotification(n models.WebNotification) error {
	_, err := s.db.Exec(
		`INSERT INTO web_notifications (id, turn_id, branch_id, recipient_handle, kind, subject, body, deep_link, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.TurnID, n.BranchID, n.RecipientHandle, n.Kind, n.Subject, n.Body, n.DeepLink, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert web notification failed: %w", err)
	}
	slog.Debug("PostgresStore.AddWebNotification", "turnID", n.TurnID, "recipient", n.RecipientHandle)
	return nil
}
