// Package events provides best-effort analytics emission for turn lifecycle
// events.
//
// Recording is fire-and-forget: a recorder failure is logged and ignored, and
// must never affect turn state.
package events

import (
	"context"

	"github.com/google/uuid"
)

// Event names emitted by the scheduler.
const (
	EventTurnPrompted   = "turn_prompted"
	EventTurnWarned     = "turn_warned"
	EventTurnAutofilled = "turn_autofilled"
)

// Event is a named analytics event with a flat property map and a correlation
// id derived from the turn id.
type Event struct {
	Name       string         `json:"event"`
	SessionID  string         `json:"session_id"`
	Properties map[string]any `json:"properties"`
}

// Recorder is the analytics emission contract. Implementations must be
// best-effort: Record never returns an error and never blocks correctness.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// turnNamespace is the fixed UUID namespace for deriving session ids from turn
// ids. Stable across processes so events for one turn always correlate.
var turnNamespace = uuid.MustParse("9d8f2c4e-1b6a-4f3d-8e2a-7c5b9a0d4e61")

// SessionID derives a stable correlation id from a turn id.
func SessionID(turnID string) string {
	return uuid.NewSHA1(turnNamespace, []byte(turnID)).String()
}

// NoopRecorder discards every event. Used when no analytics endpoint is
// configured.
type NoopRecorder struct{}

// Compile-time check that NoopRecorder implements Recorder.
var _ Recorder = (*NoopRecorder)(nil)

func (NoopRecorder) Record(ctx context.Context, e Event) {}
