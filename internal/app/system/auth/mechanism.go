// internal/app/system/auth/mechanism.go
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dalemusser/jobhub/internal/app/store/sessions"
	"github.com/dalemusser/jobhub/internal/app/system/apierr"
	"github.com/dalemusser/jobhub/internal/app/system/token"
	"github.com/dalemusser/jobhub/internal/domain/models"
	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Modes accepted by the auth_mode setting.
const (
	ModeCookie = "cookie"
	ModeBearer = "bearer"
)

// Caller is the authenticated principal handed to protected handlers.
type Caller struct {
	UserID        primitive.ObjectID
	SessionHandle string
}

// Mechanism carries the session credential between client and server.
// Exactly one is active per deployment.
type Mechanism interface {
	// ResolveCaller returns ok=false for absent or invalid credentials and a
	// non-nil error only for backend failures.
	ResolveCaller(r *http.Request) (Caller, bool, error)
	// Deliver hands the credential for sess to the client. Bearer mechanisms
	// return the token for the response body; cookie mechanisms return "".
	Deliver(w http.ResponseWriter, r *http.Request, sess sessions.Session, u models.User) (string, error)
	// Handle extracts the session handle without checking it is live.
	Handle(r *http.Request) string
	// Clear removes the client-side credential where that is possible.
	Clear(w http.ResponseWriter, r *http.Request)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Cookie                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

const handleKey = "session_handle"

// CookieConfig describes the signed session cookie.
type CookieConfig struct {
	Key    string // HMAC key, 32+ chars
	Name   string
	Domain string
	Secure bool
}

// CookieMechanism stores the session handle in a signed cookie.
type CookieMechanism struct {
	store    *gsessions.CookieStore
	name     string
	sessions *SessionManager
	log      *zap.Logger
}

// NewCookieMechanism builds the cookie store. Secure cookies use
// SameSite=None so the frontend can call the API cross-site; insecure (dev)
// cookies use Lax.
func NewCookieMechanism(cfg CookieConfig, sm *SessionManager, logger *zap.Logger) (*CookieMechanism, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("session cookie name is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Key) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(cfg.Key)))
	}

	store := gsessions.NewCookieStore([]byte(cfg.Key))
	opts := &gsessions.Options{
		Domain:   cfg.Domain,
		Path:     "/",
		MaxAge:   int(sm.TTL().Seconds()),
		Secure:   cfg.Secure,
		HttpOnly: true,
	}
	if cfg.Secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	return &CookieMechanism{store: store, name: cfg.Name, sessions: sm, log: logger}, nil
}

func (m *CookieMechanism) cookie(r *http.Request) *gsessions.Session {
	sess, err := m.store.Get(r, m.name)
	if err != nil {
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			// Rotated key or tampered value; treat as signed out.
			m.log.Debug("discarding undecodable session cookie", zap.Error(err))
		} else {
			m.log.Warn("session cookie read failed", zap.Error(err))
		}
	}
	return sess
}

func (m *CookieMechanism) Handle(r *http.Request) string {
	sess := m.cookie(r)
	if sess == nil {
		return ""
	}
	h, _ := sess.Values[handleKey].(string)
	return h
}

func (m *CookieMechanism) ResolveCaller(r *http.Request) (Caller, bool, error) {
	handle := m.Handle(r)
	if handle == "" {
		return Caller{}, false, nil
	}
	sess, ok, err := m.sessions.Resolve(r.Context(), handle)
	if err != nil || !ok {
		return Caller{}, false, err
	}
	return Caller{UserID: sess.UserID, SessionHandle: sess.Handle}, true, nil
}

func (m *CookieMechanism) Deliver(w http.ResponseWriter, r *http.Request, sess sessions.Session, _ models.User) (string, error) {
	c := m.cookie(r)
	if c == nil {
		c = gsessions.NewSession(m.store, m.name)
		opts := *m.store.Options
		c.Options = &opts
	}
	c.Values[handleKey] = sess.Handle
	if err := c.Save(r, w); err != nil {
		return "", fmt.Errorf("save session cookie: %w", err)
	}
	return "", nil
}

func (m *CookieMechanism) Clear(w http.ResponseWriter, r *http.Request) {
	c := m.cookie(r)
	if c == nil {
		return
	}
	delete(c.Values, handleKey)
	c.Options.MaxAge = -1
	if err := c.Save(r, w); err != nil {
		m.log.Warn("clear session cookie failed", zap.Error(err))
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Bearer                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// BearerMechanism carries a signed token whose jti is the session handle,
// so destroying the session revokes the token.
type BearerMechanism struct {
	codec    *token.Codec
	sessions *SessionManager
}

// NewBearerMechanism returns a bearer mechanism using codec.
func NewBearerMechanism(codec *token.Codec, sm *SessionManager) *BearerMechanism {
	return &BearerMechanism{codec: codec, sessions: sm}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func (m *BearerMechanism) verify(r *http.Request) (token.Assertion, bool) {
	raw := bearerToken(r)
	if raw == "" {
		return token.Assertion{}, false
	}
	a, err := m.codec.Verify(raw)
	if err != nil {
		return token.Assertion{}, false
	}
	return a, true
}

func (m *BearerMechanism) Handle(r *http.Request) string {
	a, ok := m.verify(r)
	if !ok {
		return ""
	}
	return a.Claims.SessionID
}

func (m *BearerMechanism) ResolveCaller(r *http.Request) (Caller, bool, error) {
	a, ok := m.verify(r)
	if !ok || a.Claims.SessionID == "" {
		return Caller{}, false, nil
	}
	sess, ok, err := m.sessions.Resolve(r.Context(), a.Claims.SessionID)
	if err != nil || !ok {
		return Caller{}, false, err
	}
	if sess.UserID.Hex() != a.Claims.Subject {
		return Caller{}, false, nil
	}
	return Caller{UserID: sess.UserID, SessionHandle: sess.Handle}, true, nil
}

func (m *BearerMechanism) Deliver(_ http.ResponseWriter, _ *http.Request, sess sessions.Session, u models.User) (string, error) {
	ttl := sess.ExpiresAt.Sub(m.sessions.Now())
	if ttl <= 0 {
		return "", apierr.ErrInvalidToken
	}
	claims := token.Claims{
		Subject:        u.ID.Hex(),
		Email:          u.Email,
		SessionID:      sess.Handle,
		OrganizationID: u.ProviderOrgID,
	}
	if u.ProviderSubjectID != nil {
		claims.ProviderSubjectID = *u.ProviderSubjectID
	}
	if u.OrganizationID != nil {
		claims.OrganizationID = u.OrganizationID.Hex()
	}
	return m.codec.Issue(claims, ttl)
}

// Clear is a no-op; clients discard the token, and the session behind it is
// destroyed server-side.
func (m *BearerMechanism) Clear(http.ResponseWriter, *http.Request) {}
