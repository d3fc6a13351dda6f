package store

import (
	"context"
	"sync"

	"github.com/Priya8975/event-recorder/internal/domain"
)

// MemoryStore is an append-only event list held in process memory. It is
// lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	events []domain.Event
}

func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// Append assigns the event the next position and returns a copy of the store
// taken under the same lock, so ids are unique and gap free under concurrent
// callers.
func (s *MemoryStore) Append(_ context.Context, event domain.Event) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = len(s.events)
	s.events = append(s.events, event)

	return s.snapshot(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(), nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

// snapshot copies the slice header contents; events are never mutated after
// insertion so sharing their timestamp maps is safe.
func (s *MemoryStore) snapshot() []domain.Event {
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}
