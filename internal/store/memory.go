// internal/store/memory.go
//
// In-memory implementation of session.Store.
// Lightweight persistence for ephemeral sessions, primarily in
// development/testing, or when durability is not required.
//
// Characteristics:
//   - Sessions keyed by ID in a map guarded by an RWMutex.
//   - Every load and save works on deep copies, so callers never alias
//     stored state and a failed submission cannot corrupt it.
//   - SaveAtomically enforces the optimistic precondition (phase still
//     in_progress, attempt count unchanged) under the write lock, which
//     serializes concurrent submissions against one session.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sync"

	"github.com/yusuftomilola/dewordle/internal/session"
)

// Memory is a map-based session.Store implementation.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*session.Session)}
}

// Create stores a copy of the new session.
func (m *Memory) Create(ctx context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = clone(s)
	return nil
}

// LoadForCaller returns a copy of the session when the caller owns it.
// Missing sessions and cross-ownership hits are both ErrNotFound.
func (m *Memory) LoadForCaller(ctx context.Context, id string, caller session.Caller) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok || !caller.Owns(s) {
		return nil, session.ErrNotFound
	}
	return clone(s), nil
}

// SaveAtomically replaces the stored session if it is still in_progress
// with exactly expectedPriorAttempts attempts; otherwise ErrConflict.
func (m *Memory) SaveAtomically(ctx context.Context, s *session.Session, expectedPriorAttempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return session.ErrNotFound
	}
	if cur.Phase != session.PhaseInProgress || cur.Attempts.Len() != expectedPriorAttempts {
		return session.ErrConflict
	}
	m.sessions[s.ID] = clone(s)
	return nil
}

// clone deep-copies a session, ledger included.
func clone(s *session.Session) *session.Session {
	out := *s
	out.Attempts = s.Attempts.Clone()
	return &out
}
