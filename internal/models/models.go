// Package models defines the core data structures for Hourglass.
//
// It includes the turn record consumed from the turn store, the notification
// payloads handed to channel senders, and the analytics events emitted while a
// turn moves through its lifecycle. These types are shared across modules.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimeoutStrategy controls what the scheduler does when a turn expires
// unanswered.
type TimeoutStrategy string

const (
	// TimeoutStrategyAIAutofill resolves the turn with AI-generated filler.
	TimeoutStrategyAIAutofill TimeoutStrategy = "ai_autofill"
	// TimeoutStrategyHostOverride defers resolution to a human host.
	TimeoutStrategyHostOverride TimeoutStrategy = "host_override"
)

// Notification channel tags recorded on a turn. Warning and Timeout are
// sentinel tags marking reminder stages rather than transports.
const (
	ChannelWeb     = "web"
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelDiscord = "discord"

	ChannelWarning = "warning"
	ChannelTimeout = "timeout"
)

// CompletedByAI is the actor tag written when the autofill path resolves a turn.
const CompletedByAI = "ai"

// DefaultPromptText is shown when a turn carries no prompt of its own.
const DefaultPromptText = "It's your turn to continue the story."

// Error variables for better error handling and testability
var (
	ErrEmptyTurnID           = errors.New("turn id cannot be empty")
	ErrInvalidStrategy       = errors.New("invalid timeout strategy")
	ErrMissingRecipientEmail = errors.New("turn has no recipient email address")
	ErrMissingRecipientPhone = errors.New("turn has no recipient phone number")
	ErrMissingWebhook        = errors.New("turn has no discord webhook and no default is configured")
)

// IsValidTimeoutStrategy checks if the given strategy is supported.
func IsValidTimeoutStrategy(s TimeoutStrategy) bool {
	switch s {
	case TimeoutStrategyAIAutofill, TimeoutStrategyHostOverride:
		return true
	default:
		return false
	}
}

// Turn is the unit of work: a single prompt handed to one recipient with an
// optional time budget to respond. Hourglass only reads and writes the fields
// below; the row is created and answered elsewhere.
type Turn struct {
	ID         string `json:"id"`
	BranchID   string `json:"branch_id"`
	StoryTitle string `json:"story_title"`
	PromptText string `json:"prompt_text"`

	// ResponseWindowMinutes is nil for turns that never expire automatically.
	ResponseWindowMinutes *int `json:"response_window_minutes"`

	// ExpiresAt is computed exactly once from CreatedAt + ResponseWindowMinutes
	// the first time the scheduler sees the row; once set it is never rewritten.
	ExpiresAt *time.Time `json:"expires_at"`

	// NotifiedChannels is an append-only set of channel tags plus the warning
	// and timeout sentinels. A tag is added at most once.
	NotifiedChannels []string `json:"notified_channels"`

	CompletedAt *time.Time `json:"completed_at"`
	CompletedBy string     `json:"completed_by"`

	TimeoutStrategy TimeoutStrategy `json:"timeout_strategy"`

	AutoFilled   bool   `json:"auto_filled"`
	AutoFillText string `json:"auto_fill_text"`

	// Recipient contact fields; any subset may be empty. Presence determines
	// which channels are attempted.
	RecipientHandle         string `json:"recipient_handle"`
	RecipientEmail          string `json:"recipient_email"`
	RecipientPhone          string `json:"recipient_phone"`
	RecipientDiscordWebhook string `json:"recipient_discord_webhook"`

	CreatedAt time.Time `json:"created_at"`
}

// Completed reports whether the turn has reached its terminal state.
func (t *Turn) Completed() bool {
	return t.CompletedAt != nil
}

// HasNotifiedChannel reports whether the given tag is already recorded.
func (t *Turn) HasNotifiedChannel(tag string) bool {
	for _, c := range t.NotifiedChannels {
		if c == tag {
			return true
		}
	}
	return false
}

// Prompt returns the turn's prompt text, falling back to the default when the
// row carries none.
func (t *Turn) Prompt() string {
	if strings.TrimSpace(t.PromptText) == "" {
		return DefaultPromptText
	}
	return t.PromptText
}

// DeepLink builds the in-app link to the turn under the given base URL.
func (t *Turn) DeepLink(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	return fmt.Sprintf("%s/branches/%s/turns/%s", base, t.BranchID, t.ID)
}
