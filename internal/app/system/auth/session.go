// internal/app/system/auth/session.go
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/jobhub/internal/app/store/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultSessionTTL matches the seven-day cookie lifetime clients expect.
const DefaultSessionTTL = 7 * 24 * time.Hour

// handleBytes is the entropy of a session handle (256 bits).
const handleBytes = 32

// SessionStore persists sessions. sessions.MongoStore, RedisStore and
// MemoryStore implement it.
type SessionStore interface {
	Save(ctx context.Context, sess sessions.Session) error
	Get(ctx context.Context, handle string) (sessions.Session, error)
	Delete(ctx context.Context, handle string) error
}

// SessionManager creates, resolves and destroys server-side sessions.
type SessionManager struct {
	store SessionStore
	ttl   time.Duration
	now   func() time.Time
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithSessionClock replaces time.Now.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) { m.now = now }
}

// NewSessionManager returns a manager whose sessions live for ttl.
// A non-positive ttl selects DefaultSessionTTL.
func NewSessionManager(store SessionStore, ttl time.Duration, opts ...SessionOption) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	m := &SessionManager{store: store, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// TTL returns the lifetime given to new sessions.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Now returns the manager's current time.
func (m *SessionManager) Now() time.Time { return m.now() }

// Create starts a session for userID.
func (m *SessionManager) Create(ctx context.Context, userID primitive.ObjectID) (sessions.Session, error) {
	if userID.IsZero() {
		return sessions.Session{}, errors.New("create session: empty user id")
	}
	handle, err := newHandle()
	if err != nil {
		return sessions.Session{}, err
	}
	now := m.now().UTC()
	sess := sessions.Session{
		Handle:    handle,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return sessions.Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// Resolve looks up a handle. Unknown, empty and expired handles report
// ok=false with a nil error; err is set only when the backend fails.
func (m *SessionManager) Resolve(ctx context.Context, handle string) (sessions.Session, bool, error) {
	if handle == "" {
		return sessions.Session{}, false, nil
	}
	sess, err := m.store.Get(ctx, handle)
	if errors.Is(err, sessions.ErrNotFound) {
		return sessions.Session{}, false, nil
	}
	if err != nil {
		return sessions.Session{}, false, fmt.Errorf("get session: %w", err)
	}
	if sess.Expired(m.now()) {
		_ = m.store.Delete(ctx, handle)
		return sessions.Session{}, false, nil
	}
	return sess, true, nil
}

// Destroy ends a session. Destroying an unknown or empty handle is a no-op.
func (m *SessionManager) Destroy(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	if err := m.store.Delete(ctx, handle); err != nil && !errors.Is(err, sessions.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func newHandle() (string, error) {
	b := make([]byte, handleBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session handle: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
