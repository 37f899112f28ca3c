// Package store provides the TurnRepo interface for turn persistence.
package store

import (
	"time"

	"github.com/fablehouse/hourglass/internal/models"
)

// TurnRepo defines the scheduler's contract with the turn table. Every write
// is a guarded single-row update; the bool result reports whether the guard
// matched. A false result means another writer got there first and must be
// treated as a no-op, never as an error.
type TurnRepo interface {
	// ListOpenTurns returns up to limit turns with no completion timestamp,
	// oldest first.
	ListOpenTurns(limit int) ([]models.Turn, error)

	// SetTurnExpiry records the expiration timestamp, guarded on the expiry
	// still being unset and the turn still being open. Once set, the value is
	// never rewritten.
	SetTurnExpiry(id string, expiresAt time.Time) (bool, error)

	// SetNotifiedChannels records the initial channel set, guarded on the set
	// still being empty and the turn still being open.
	SetNotifiedChannels(id string, channels []string) (bool, error)

	// AppendNotifiedChannel appends a single tag to the channel set, guarded on
	// the tag being absent and the turn still being open.
	AppendNotifiedChannel(id string, tag string) (bool, error)

	// CompleteTurnWithAutofill resolves the turn with generated filler content,
	// guarded on completed_at IS NULL (first writer wins).
	CompleteTurnWithAutofill(id string, completedAt time.Time, completedBy, fillText string) (bool, error)

	// GetTurn retrieves a single turn by ID, or nil if it does not exist.
	GetTurn(id string) (*models.Turn, error)

	// InsertTurn inserts a new turn row. Turns are created by the parent
	// application; this exists for seeding and tests.
	InsertTurn(t models.Turn) error

	// AddWebNotification appends a row to the in-app notification feed.
	AddWebNotification(n models.WebNotification) error
}
