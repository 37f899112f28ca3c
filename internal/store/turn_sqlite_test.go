package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fablehouse/hourglass/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "sqlite_turn_test_")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	dbPath := filepath.Join(tempDir, "test.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSQLiteTurn(t *testing.T, s *SQLiteStore, turn models.Turn) {
	t.Helper()
	if turn.TimeoutStrategy == "" {
		turn.TimeoutStrategy = models.TimeoutStrategyAIAutofill
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	if err := s.InsertTurn(turn); err != nil {
		t.Fatalf("InsertTurn failed: %v", err)
	}
}

func TestSQLiteStore_InsertAndGet(t *testing.T) {
	s := newTestSQLiteStore(t)

	window := 15
	seedSQLiteTurn(t, s, models.Turn{
		ID: "t1", BranchID: "b1", StoryTitle: "Night Train", PromptText: "What happens next?",
		ResponseWindowMinutes: &window,
		RecipientHandle:       "ada", RecipientEmail: "ada@example.com",
	})

	turn, err := s.GetTurn("t1")
	if err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
	if turn == nil {
		t.Fatal("GetTurn returned nil")
	}
	if turn.BranchID != "b1" || turn.StoryTitle != "Night Train" {
		t.Errorf("unexpected turn context: %+v", turn)
	}
	if turn.ResponseWindowMinutes == nil || *turn.ResponseWindowMinutes != 15 {
		t.Errorf("response window not round-tripped: %v", turn.ResponseWindowMinutes)
	}
	if turn.ExpiresAt != nil || turn.CompletedAt != nil {
		t.Error("fresh turn must have no expiry or completion")
	}
	if len(turn.NotifiedChannels) != 0 {
		t.Errorf("fresh turn must have empty channel set, got %v", turn.NotifiedChannels)
	}
}

func TestSQLiteStore_GetTurnMissing(t *testing.T) {
	s := newTestSQLiteStore(t)
	turn, err := s.GetTurn("missing")
	if err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
	if turn != nil {
		t.Errorf("expected nil for missing turn, got %+v", turn)
	}
}

func TestSQLiteStore_ListOpenTurnsOrderAndLimit(t *testing.T) {
	s := newTestSQLiteStore(t)
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"t_c", "t_a", "t_b"} {
		seedSQLiteTurn(t, s, models.Turn{
			ID: id, BranchID: "b1",
			CreatedAt: base.Add(time.Duration(2-i) * time.Minute),
		})
	}
	done := time.Now()
	seedSQLiteTurn(t, s, models.Turn{
		ID: "t_done", BranchID: "b1",
		CreatedAt: base.Add(-time.Minute), CompletedAt: &done,
	})

	turns, err := s.ListOpenTurns(2)
	if err != nil {
		t.Fatalf("ListOpenTurns failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	// t_b is oldest of the open rows, then t_a; the completed row never appears.
	if turns[0].ID != "t_b" || turns[1].ID != "t_a" {
		t.Errorf("expected oldest-first [t_b t_a], got [%s %s]", turns[0].ID, turns[1].ID)
	}
}

func TestSQLiteStore_SetTurnExpiryOnce(t *testing.T) {
	s := newTestSQLiteStore(t)
	seedSQLiteTurn(t, s, models.Turn{ID: "t1", BranchID: "b1"})

	first := time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second)
	applied, err := s.SetTurnExpiry("t1", first)
	if err != nil {
		t.Fatalf("SetTurnExpiry failed: %v", err)
	}
	if !applied {
		t.Fatal("first expiry write must apply")
	}

	// A second write must lose the guard and leave the value untouched.
	applied, err = s.SetTurnExpiry("t1", first.Add(time.Hour))
	if err != nil {
		t.Fatalf("SetTurnExpiry failed: %v", err)
	}
	if applied {
		t.Fatal("second expiry write must be a no-op")
	}

	turn, err := s.GetTurn("t1")
	if err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
	if turn.ExpiresAt == nil || !turn.ExpiresAt.Equal(first) {
		t.Errorf("expected expiry %v, got %v", first, turn.ExpiresAt)
	}
}

func TestSQLiteStore_SetNotifiedChannelsOnce(t *testing.T) {
	s := newTestSQLiteStore(t)
	seedSQLiteTurn(t, s, models.Turn{ID: "t1", BranchID: "b1"})

	applied, err := s.SetNotifiedChannels("t1", []string{models.ChannelWeb, models.ChannelEmail})
	if err != nil {
		t.Fatalf("SetNotifiedChannels failed: %v", err)
	}
	if !applied {
		t.Fatal("first channel-set write must apply")
	}

	applied, err = s.SetNotifiedChannels("t1", []string{models.ChannelWeb})
	if err != nil {
		t.Fatalf("SetNotifiedChannels failed: %v", err)
	}
	if applied {
		t.Fatal("second channel-set write must be a no-op")
	}

	turn, _ := s.GetTurn("t1")
	if len(turn.NotifiedChannels) != 2 {
		t.Errorf("expected 2 channels, got %v", turn.NotifiedChannels)
	}
}

func TestSQLiteStore_AppendNotifiedChannelIdempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	seedSQLiteTurn(t, s, models.Turn{ID: "t1", BranchID: "b1", NotifiedChannels: []string{models.ChannelWeb}})

	applied, err := s.AppendNotifiedChannel("t1", models.ChannelWarning)
	if err != nil {
		t.Fatalf("AppendNotifiedChannel failed: %v", err)
	}
	if !applied {
		t.Fatal("first append must apply")
	}

	applied, err = s.AppendNotifiedChannel("t1", models.ChannelWarning)
	if err != nil {
		t.Fatalf("AppendNotifiedChannel failed: %v", err)
	}
	if applied {
		t.Fatal("repeat append must be a no-op")
	}

	turn, _ := s.GetTurn("t1")
	if len(turn.NotifiedChannels) != 2 || turn.NotifiedChannels[1] != models.ChannelWarning {
		t.Errorf("expected [web warning], got %v", turn.NotifiedChannels)
	}
}

func TestSQLiteStore_CompleteTurnFirstWriterWins(t *testing.T) {
	s := newTestSQLiteStore(t)
	seedSQLiteTurn(t, s, models.Turn{ID: "t1", BranchID: "b1"})

	now := time.Now().UTC().Truncate(time.Second)
	applied, err := s.CompleteTurnWithAutofill("t1", now, models.CompletedByAI, "filler text")
	if err != nil {
		t.Fatalf("CompleteTurnWithAutofill failed: %v", err)
	}
	if !applied {
		t.Fatal("first completion must apply")
	}

	applied, err = s.CompleteTurnWithAutofill("t1", now.Add(time.Minute), models.CompletedByAI, "other filler")
	if err != nil {
		t.Fatalf("CompleteTurnWithAutofill failed: %v", err)
	}
	if applied {
		t.Fatal("second completion must be a no-op")
	}

	turn, _ := s.GetTurn("t1")
	if turn.CompletedAt == nil || !turn.CompletedAt.Equal(now) {
		t.Errorf("expected completion at %v, got %v", now, turn.CompletedAt)
	}
	if turn.CompletedBy != models.CompletedByAI || !turn.AutoFilled || turn.AutoFillText != "filler text" {
		t.Errorf("autofill fields wrong: %+v", turn)
	}
}

func TestSQLiteStore_GuardedWritesSkipCompletedTurns(t *testing.T) {
	s := newTestSQLiteStore(t)
	done := time.Now()
	seedSQLiteTurn(t, s, models.Turn{ID: "t1", BranchID: "b1", CompletedAt: &done})

	if applied, _ := s.SetTurnExpiry("t1", time.Now().Add(time.Hour)); applied {
		t.Error("expiry write must not apply to a completed turn")
	}
	if applied, _ := s.SetNotifiedChannels("t1", []string{models.ChannelWeb}); applied {
		t.Error("channel-set write must not apply to a completed turn")
	}
	if applied, _ := s.AppendNotifiedChannel("t1", models.ChannelWarning); applied {
		t.Error("append must not apply to a completed turn")
	}
}

func TestSQLiteStore_AddWebNotification(t *testing.T) {
	s := newTestSQLiteStore(t)
	err := s.AddWebNotification(models.WebNotification{
		ID: "wn_1", TurnID: "t1", BranchID: "b1", RecipientHandle: "ada",
		Kind: models.NotificationTurn, Subject: "It's your turn", Body: "go", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("AddWebNotification failed: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM web_notifications WHERE recipient_handle = ?`, "ada").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 feed row, got %d", count)
	}
}
