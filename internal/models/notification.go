package models

import (
	"fmt"
	"time"
)

// NotificationKind distinguishes the three message shapes Hourglass sends.
type NotificationKind string

const (
	// NotificationTurn announces a newly assigned turn.
	NotificationTurn NotificationKind = "turn"
	// NotificationWarning reminds the recipient shortly before expiry.
	NotificationWarning NotificationKind = "warning"
	// NotificationTimeout reports an expired turn, optionally with AI filler.
	NotificationTimeout NotificationKind = "timeout"
)

// Notification is the payload handed to the dispatcher. All three kinds share
// the turn context; DueAt/RemainingMs apply to turn and warning messages,
// ElapsedMs and AIFill to timeout messages.
type Notification struct {
	Kind NotificationKind `json:"kind"`

	BranchID   string `json:"branch_id"`
	TurnID     string `json:"turn_id"`
	StoryTitle string `json:"story_title"`
	Prompt     string `json:"prompt"`

	// Channels lists the channel tags this notification should be delivered on.
	Channels []string `json:"channels"`

	RecipientHandle         string `json:"recipient_handle"`
	RecipientEmail          string `json:"recipient_email,omitempty"`
	RecipientPhone          string `json:"recipient_phone,omitempty"`
	RecipientDiscordWebhook string `json:"recipient_discord_webhook,omitempty"`

	DueAt       *time.Time `json:"due_at,omitempty"`
	RemainingMs int64      `json:"remaining_ms,omitempty"`
	ElapsedMs   int64      `json:"elapsed_ms,omitempty"`
	AIFill      string     `json:"ai_fill,omitempty"`

	DeepLink string `json:"deep_link"`
}

// Subject renders a short subject line for channels that need one (email, web).
func (n *Notification) Subject() string {
	switch n.Kind {
	case NotificationWarning:
		return fmt.Sprintf("Time is running out on your turn in %q", n.StoryTitle)
	case NotificationTimeout:
		return fmt.Sprintf("Your turn in %q has timed out", n.StoryTitle)
	default:
		return fmt.Sprintf("It's your turn in %q", n.StoryTitle)
	}
}

// Body renders the plain-text message delivered on every channel.
func (n *Notification) Body() string {
	switch n.Kind {
	case NotificationWarning:
		return fmt.Sprintf("Only %s left to respond to your turn in %q: %s\n%s",
			formatDuration(n.RemainingMs), n.StoryTitle, n.Prompt, n.DeepLink)
	case NotificationTimeout:
		if n.AIFill != "" {
			return fmt.Sprintf("Your turn in %q timed out %s ago, so the story carried on without you:\n\n%s\n\n%s",
				n.StoryTitle, formatDuration(n.ElapsedMs), n.AIFill, n.DeepLink)
		}
		return fmt.Sprintf("Your turn in %q timed out %s ago and is waiting on the host to resolve it.\n%s",
			n.StoryTitle, formatDuration(n.ElapsedMs), n.DeepLink)
	default:
		if n.DueAt != nil {
			return fmt.Sprintf("It's your turn in %q: %s\nYou have %s to respond (due %s).\n%s",
				n.StoryTitle, n.Prompt, formatDuration(n.RemainingMs), n.DueAt.Format(time.RFC1123), n.DeepLink)
		}
		return fmt.Sprintf("It's your turn in %q: %s\n%s", n.StoryTitle, n.Prompt, n.DeepLink)
	}
}

// formatDuration renders a millisecond count as a coarse human duration.
func formatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	d := time.Duration(ms) * time.Millisecond
	if d >= time.Hour {
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

// WebNotification is a row in the in-app notification feed written by the web
// channel sender.
type WebNotification struct {
	ID              string           `json:"id"`
	TurnID          string           `json:"turn_id"`
	BranchID        string           `json:"branch_id"`
	RecipientHandle string           `json:"recipient_handle"`
	Kind            NotificationKind `json:"kind"`
	Subject         string           `json:"subject"`
	Body            string           `json:"body"`
	DeepLink        string           `json:"deep_link"`
	CreatedAt       time.Time        `json:"created_at"`
}
