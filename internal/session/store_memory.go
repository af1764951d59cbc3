package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "lifeshield/pkg/domain"
	"lifeshield/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded session store for single-instance deployments
// and tests. Expired sessions move to an archive map rather than being
// dropped, mirroring how the durable stores retain them for audit.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
	archived map[id.SessionID]*Session
}

func NewInMemory() *InMemory {
	return &InMemory{
		sessions: make(map[id.SessionID]*Session),
		archived: make(map[id.SessionID]*Session),
	}
}

func (s *InMemory) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrConflict)
	}
	if _, exists := s.archived[sess.ID]; exists {
		return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrConflict)
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *InMemory) Get(_ context.Context, sessionID id.SessionID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, archived := s.archived[sessionID]; archived {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrExpired)
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if sess.Expired(time.Now().UTC()) {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrExpired)
	}
	return sess.Clone(), nil
}

func (s *InMemory) Update(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[sess.ID]
	if !ok {
		if _, archived := s.archived[sess.ID]; archived {
			return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrExpired)
		}
		return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrNotFound)
	}
	if current.Version != sess.Version {
		return fmt.Errorf("session %s version %d, got %d: %w",
			sess.ID, current.Version, sess.Version, sentinel.ErrConflict)
	}

	next := sess.Clone()
	next.Version++
	s.sessions[sess.ID] = next
	sess.Version = next.Version
	return nil
}

func (s *InMemory) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archived := 0
	for sessionID, sess := range s.sessions {
		if sess.Expired(now) {
			s.archived[sessionID] = sess
			delete(s.sessions, sessionID)
			archived++
		}
	}
	return archived, nil
}

// ArchivedCount reports retained expired sessions. Test hook.
func (s *InMemory) ArchivedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.archived)
}
