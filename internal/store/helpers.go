package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fablehouse/hourglass/internal/models"
)

// turnColumns is the select list shared by both SQL backends. Order must match
// the scan helpers below.
const turnColumns = `id, branch_id, story_title, prompt_text, response_window_minutes,
 timeout_strategy, recipient_handle, recipient_email, recipient_phone, recipient_discord_webhook,
 notified_channels, expires_at, completed_at, completed_by, auto_filled, auto_fill_text, created_at`

// encodeChannels serializes a channel tag list for the notified_channels column.
func encodeChannels(channels []string) (string, error) {
	if len(channels) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(channels)
	if err != nil {
		return "", fmt.Errorf("encode notified channels: %w", err)
	}
	return string(b), nil
}

// decodeChannels parses the notified_channels column. An empty column is an
// empty set.
func decodeChannels(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var channels []string
	if err := json.Unmarshal([]byte(raw), &channels); err != nil {
		return nil, fmt.Errorf("decode notified channels: %w", err)
	}
	return channels, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTurn scans a Turn from a row using the turnColumns order.
func scanTurn(row rowScanner) (models.Turn, error) {
	var t models.Turn
	var windowMinutes sql.NullInt64
	var expiresAt, completedAt sql.NullTime
	var channelsRaw string
	err := row.Scan(
		&t.ID, &t.BranchID, &t.StoryTitle, &t.PromptText, &windowMinutes,
		&t.TimeoutStrategy, &t.RecipientHandle, &t.RecipientEmail, &t.RecipientPhone, &t.RecipientDiscordWebhook,
		&channelsRaw, &expiresAt, &completedAt, &t.CompletedBy, &t.AutoFilled, &t.AutoFillText, &t.CreatedAt,
	)
	if err != nil {
		return t, err
	}
	if windowMinutes.Valid {
		w := int(windowMinutes.Int64)
		t.ResponseWindowMinutes = &w
	}
	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	t.NotifiedChannels, err = decodeChannels(channelsRaw)
	if err != nil {
		return t, err
	}
	return t, nil
}

// nilIfNilInt returns nil if p is nil, otherwise the pointed-to value.
func nilIfNilInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
