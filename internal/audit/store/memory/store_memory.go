package memory

import (
	"context"
	"fmt"
	"sync"

	"vigil/internal/audit"
	"vigil/internal/audit/store"
	"vigil/pkg/platform/sentinel"
)

// InMemoryStore is the reference backend used in tests and single-process
// deployments. Events are kept in append order.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
	byID   map[string]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]int)}
}

func (s *InMemoryStore) Store(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[event.ID] = len(s.events)
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) Retrieve(_ context.Context, eventID string) (*audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, sentinel.ErrNotFound)
	}
	event := s.events[idx]
	return &event, nil
}

func (s *InMemoryStore) List(_ context.Context, filter store.Filter) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, e := range s.events {
		if filter.Matches(e) {
			out = append(out, e)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				break
			}
		}
	}
	return out, nil
}

// Clear resets the store. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.byID = make(map[string]int)
}
