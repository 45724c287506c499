package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/finance-assistant/internal/session"
)

// Store keeps sessions in a map guarded by a RWMutex.
// Sessions are lost on restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewStore creates an empty in-memory session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*session.Session),
	}
}

// GetOrCreate implements session.Store.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		sess.Touch()
		return sess, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another request may have created it between the two locks.
	if sess, ok := s.sessions[id]; ok {
		sess.Touch()
		return sess, nil
	}

	sess = session.New(id)
	s.sessions[id] = sess
	return sess, nil
}

// Get implements session.Store.
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	return sess, nil
}

// Delete implements session.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions not seen since now-idleFor and returns how many
// were removed.
func (s *Store) Sweep(idleFor time.Duration, now time.Time) int {
	cutoff := now.Add(-idleFor)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.LastSeen().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Ensure Store implements session.Store interface.
var _ session.Store = (*Store)(nil)
