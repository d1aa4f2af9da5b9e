// internal/app/store/sessions/memorystore.go
package sessions

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local store for development and tests. Expired
// entries are dropped lazily on Get and in bulk by DeleteExpired.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]Session{}, now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, sess Session) error {
	if err := validate(sess); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Handle] = sess
	return nil
}

func (s *MemoryStore) Get(_ context.Context, handle string) (Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[handle]
	s.mu.RUnlock()
	if !ok {
		return Session{}, ErrNotFound
	}
	if sess.Expired(s.now()) {
		s.mu.Lock()
		delete(s.sessions, handle)
		s.mu.Unlock()
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, handle)
	return nil
}

// DeleteExpired removes every expired session and returns how many went.
func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for h, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, h)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
