package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fablehouse/hourglass/internal/models"
)

// Compile-time check that InMemoryStore implements TurnRepo.
var _ TurnRepo = (*InMemoryStore)(nil)

// InMemoryStore is a mutex-guarded in-memory turn store. It mirrors the SQL
// backends' guard semantics exactly and exists for tests and local runs
// without a database.
type InMemoryStore struct {
	mu      sync.Mutex
	turns   map[string]*models.Turn
	webFeed []models.WebNotification
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{turns: make(map[string]*models.Turn)}
}

func (s *InMemoryStore) ListOpenTurns(limit int) ([]models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var open []models.Turn
	for _, t := range s.turns {
		if t.CompletedAt == nil {
			open = append(open, cloneTurn(t))
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].CreatedAt.Before(open[j].CreatedAt) })
	if limit > 0 && len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

func (s *InMemoryStore) SetTurnExpiry(id string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.turns[id]
	if !ok || t.CompletedAt != nil || t.ExpiresAt != nil {
		return false, nil
	}
	exp := expiresAt
	t.ExpiresAt = &exp
	return true, nil
}

func (s *InMemoryStore) SetNotifiedChannels(id string, channels []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.turns[id]
	if !ok || t.CompletedAt != nil || len(t.NotifiedChannels) != 0 {
		return false, nil
	}
	t.NotifiedChannels = append([]string(nil), channels...)
	return true, nil
}

func (s *InMemoryStore) AppendNotifiedChannel(id string, tag string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.turns[id]
	if !ok || t.CompletedAt != nil {
		return false, nil
	}
	for _, c := range t.NotifiedChannels {
		if c == tag {
			return false, nil
		}
	}
	t.NotifiedChannels = append(t.NotifiedChannels, tag)
	return true, nil
}

func (s *InMemoryStore) CompleteTurnWithAutofill(id string, completedAt time.Time, completedBy, fillText string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.turns[id]
	if !ok || t.CompletedAt != nil {
		return false, nil
	}
	done := completedAt
	t.CompletedAt = &done
	t.CompletedBy = completedBy
	t.AutoFilled = true
	t.AutoFillText = fillText
	return true, nil
}

func (s *InMemoryStore) GetTurn(id string) (*models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.turns[id]
	if !ok {
		return nil, nil
	}
	clone := cloneTurn(t)
	return &clone, nil
}

func (s *InMemoryStore) InsertTurn(t models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		return models.ErrEmptyTurnID
	}
	if _, exists := s.turns[t.ID]; exists {
		return fmt.Errorf("turn %s already exists", t.ID)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	clone := cloneTurn(&t)
	s.turns[t.ID] = &clone
	return nil
}

func (s *InMemoryStore) AddWebNotification(n models.WebNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webFeed = append(s.webFeed, n)
	return nil
}

// WebNotifications returns a copy of the in-app feed, for tests.
func (s *InMemoryStore) WebNotifications() []models.WebNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WebNotification(nil), s.webFeed...)
}

func cloneTurn(t *models.Turn) models.Turn {
	clone := *t
	clone.NotifiedChannels = append([]string(nil), t.NotifiedChannels...)
	if t.ResponseWindowMinutes != nil {
		w := *t.ResponseWindowMinutes
		clone.ResponseWindowMinutes = &w
	}
	if t.ExpiresAt != nil {
		e := *t.ExpiresAt
		clone.ExpiresAt = &e
	}
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		clone.CompletedAt = &c
	}
	return clone
}
