// Package scheduler implements the Hourglass turn timeout and notification
// scheduler.
//
// Once per tick it fetches a bounded batch of unresolved turns and advances
// each one through its lifecycle: expiration-time assignment, initial
// notification, warning reminder, and timeout resolution. Every transition is
// independently idempotent through guarded single-row updates, so running the
// scheduler repeatedly against the same unresolved row never duplicates work.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fablehouse/hourglass/internal/events"
	"github.com/fablehouse/hourglass/internal/genai"
	"github.com/fablehouse/hourglass/internal/notify"
	"github.com/fablehouse/hourglass/internal/store"
)

// Default tuning constants.
const (
	// DefaultBatchSize bounds the number of open turns processed per tick.
	DefaultBatchSize = 50
	// DefaultWarningThreshold is the remaining-time cutoff for the warning reminder.
	DefaultWarningThreshold = 60 * time.Second
	// DefaultTickInterval is the pause between ticks in RunForever.
	DefaultTickInterval = 30 * time.Second
)

// Config holds the scheduler's tuning knobs.
type Config struct {
	// BatchSize bounds the per-tick batch; zero means DefaultBatchSize.
	BatchSize int
	// WarningThreshold is the remaining-time cutoff below which the one-time
	// warning fires; zero means DefaultWarningThreshold.
	WarningThreshold time.Duration
	// BaseURL is used to build deep links into the turn UI.
	BaseURL string
	// DefaultDiscordWebhook is used for turns that carry no webhook of their own.
	DefaultDiscordWebhook string
	// AIModel overrides the generator's default model when non-empty.
	AIModel string
}

// Scheduler drives open turns toward resolution. Multiple independently
// configured schedulers may coexist in one process; the in-flight guard is an
// instance field, not global state.
type Scheduler struct {
	store      store.TurnRepo
	dispatcher notify.Dispatcher
	generator  genai.Generator
	recorder   events.Recorder
	cfg        Config

	inFlight atomic.Bool

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Scheduler over the given collaborators.
func New(repo store.TurnRepo, dispatcher notify.Dispatcher, generator genai.Generator, recorder events.Recorder, cfg Config) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = DefaultWarningThreshold
	}
	if recorder == nil {
		recorder = events.NoopRecorder{}
	}
	return &Scheduler{
		store:      repo,
		dispatcher: dispatcher,
		generator:  generator,
		recorder:   recorder,
		cfg:        cfg,
		now:        time.Now,
	}
}

// RunForever ticks on the given interval until the context is cancelled. A
// tick is skipped entirely when the previous one is still executing; there is
// no queuing and no overlap.
func (s *Scheduler) RunForever(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	slog.Info("Scheduler.RunForever: starting", "interval", interval, "batchSize", s.cfg.BatchSize)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler.RunForever: stopping")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// RunOnce executes exactly one tick and returns. Intended for cron-style
// invocation and tests.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.processBatch(ctx)
}

// Tick runs one guarded tick. It returns false when a previous tick was still
// in flight and this one was skipped.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		slog.Warn("Scheduler.Tick: previous tick still running, skipping")
		return false
	}
	defer s.inFlight.Store(false)

	if err := s.processBatch(ctx); err != nil {
		slog.Error("Scheduler.Tick: batch failed", "error", err)
	}
	return true
}

// processBatch fetches the oldest open turns and advances each one. A store
// failure on the fetch aborts the tick; a failure on a single row is logged
// and does not stop the rest of the batch.
func (s *Scheduler) processBatch(ctx context.Context) error {
	turns, err := s.store.ListOpenTurns(s.cfg.BatchSize)
	if err != nil {
		return err
	}
	slog.Debug("Scheduler.processBatch: fetched open turns", "count", len(turns))

	for i := range turns {
		if err := s.processTurn(ctx, &turns[i]); err != nil {
			slog.Error("Scheduler.processBatch: turn failed", "turnID", turns[i].ID, "error", err)
		}
	}
	return nil
}
