package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dvloznov/finance-assistant/internal/conversation"
)

// ErrSessionNotFound is returned when a session ID is unknown to the store.
var ErrSessionNotFound = errors.New("session not found")

// Session owns the conversation history of one browser (or CLI) session.
// All access to the history goes through the session's mutex, so requests
// from the same session are serialised rather than racing on the log.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	history conversation.History

	// Unix nanoseconds. Kept outside mu so the store can read them while a
	// model call holds the history lock.
	updatedAt  atomic.Int64
	accessedAt atomic.Int64
}

// New creates an empty session.
func New(id string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:        id,
		CreatedAt: now,
	}
	s.updatedAt.Store(now.UnixNano())
	s.accessedAt.Store(now.UnixNano())
	return s
}

// Do runs fn with exclusive access to the session history.
// The lock is held for the whole call, including any I/O fn performs.
func (s *Session) Do(fn func(h *conversation.History) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(&s.history); err != nil {
		return err
	}
	s.updatedAt.Store(time.Now().UnixNano())
	return nil
}

// Turns returns a snapshot of the stored history.
func (s *Session) Turns() []conversation.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Turns()
}

// ClearHistory empties the history. It always succeeds.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
	s.updatedAt.Store(time.Now().UnixNano())
}

// UpdatedAt reports the last time the history was modified.
func (s *Session) UpdatedAt() time.Time {
	return time.Unix(0, s.updatedAt.Load()).UTC()
}

// Store resolves session IDs to sessions.
type Store interface {
	// GetOrCreate returns the session for id, creating an empty one if needed.
	GetOrCreate(ctx context.Context, id string) (*Session, error)

	// Get returns an existing session or ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete forgets a session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id string) error
}

// Touch records that the session was used by a request.
// It never waits on the history lock.
func (s *Session) Touch() {
	s.accessedAt.Store(time.Now().UnixNano())
}

// LastSeen is the later of the last access and the last history change.
// It never waits on the history lock.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, max(s.updatedAt.Load(), s.accessedAt.Load())).UTC()
}
