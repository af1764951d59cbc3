package audit

import (
	"context"
	"sync"

	id "lifeshield/pkg/domain"
)

// InMemoryStore retains events per session. Default sink for single-node
// deployments and the assertion point for engine tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.SessionID][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.SessionID][]Event)}
}

func (s *InMemoryStore) Publish(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.SessionID] = append(s.events[event.SessionID], event)
}

func (s *InMemoryStore) Close() {}

// ListBySession returns the transition trail for one session, in order.
func (s *InMemoryStore) ListBySession(_ context.Context, sessionID id.SessionID) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events[sessionID]...)
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.SessionID][]Event)
}
