// internal/app/store/oauthstate/memory.go
package oauthstate

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore is the in-process counterpart of Store, used with the memory
// session backend and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: map[string]State{}}
}

func (m *MemoryStore) Save(_ context.Context, st State) error {
	if st.State == "" {
		return errors.New("state cannot be empty")
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.states[st.State]; dup {
		return errors.New("state already exists")
	}
	m.states[st.State] = st
	return nil
}

func (m *MemoryStore) Consume(_ context.Context, state string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[state]
	if !ok {
		return State{}, ErrNotFound
	}
	delete(m.states, state)
	if !time.Now().Before(st.ExpiresAt) {
		return State{}, ErrNotFound
	}
	return st, nil
}
