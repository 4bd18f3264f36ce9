package contextstore

import (
	"sync"
	"time"

	"github.com/ecom-support/chatbot/internal/entity"
	"github.com/ecom-support/chatbot/internal/intent"
	"github.com/ecom-support/chatbot/internal/metrics"
)

// UserContext is the state carried over from a user's most recent turn.
type UserContext struct {
	UserID    string          `json:"user_id"`
	Intent    intent.Intent   `json:"intent"`
	Entities  []entity.Entity `json:"entities"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store keeps one UserContext per user in memory. A later Update fully
// replaces the earlier record.
type Store struct {
	mu      sync.RWMutex
	records map[string]UserContext
	now     func() time.Time
}

func New() *Store {
	return &Store{
		records: make(map[string]UserContext),
		now:     time.Now,
	}
}

// Update replaces the user's record. The timestamp and the gauge are taken
// under the write lock so they follow write order.
func (s *Store) Update(userID string, in intent.Intent, entities []entity.Entity) {
	if userID == "" {
		return
	}

	rec := UserContext{
		UserID:   userID,
		Intent:   in,
		Entities: cloneEntities(entities),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.UpdatedAt = s.now()
	s.records[userID] = rec
	metrics.ContextRecords.Set(float64(len(s.records)))
}

func (s *Store) Get(userID string) (UserContext, bool) {
	s.mu.RLock()
	rec, ok := s.records[userID]
	s.mu.RUnlock()
	if !ok {
		return UserContext{}, false
	}
	rec.Entities = cloneEntities(rec.Entities)
	return rec, true
}

// Clear drops a single user's record and reports whether one existed.
func (s *Store) Clear(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.records[userID]
	delete(s.records, userID)
	metrics.ContextRecords.Set(float64(len(s.records)))
	return ok
}

func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]UserContext)
	metrics.ContextRecords.Set(0)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneEntities(in []entity.Entity) []entity.Entity {
	if in == nil {
		return nil
	}
	out := make([]entity.Entity, len(in))
	copy(out, in)
	return out
}
