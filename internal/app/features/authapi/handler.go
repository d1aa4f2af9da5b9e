// internal/app/features/authapi/handler.go
package authapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/jobhub/internal/app/store/sessions"
	userstore "github.com/dalemusser/jobhub/internal/app/store/users"
	"github.com/dalemusser/jobhub/internal/app/system/apierr"
	"github.com/dalemusser/jobhub/internal/app/system/auth"
	"github.com/dalemusser/jobhub/internal/app/system/ratelimit"
	"github.com/dalemusser/jobhub/internal/app/system/sso"
	"github.com/dalemusser/jobhub/internal/app/system/timeouts"
	"github.com/dalemusser/jobhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Flow is the SSO sign-in. *sso.Flow implements it.
type Flow interface {
	Begin(ctx context.Context, in sso.BeginInput) (sso.BeginResult, error)
	Complete(ctx context.Context, in sso.CompleteInput) (sso.CompleteResult, error)
}

// PasswordAuth verifies local credentials.
type PasswordAuth interface {
	ReconcileLocal(ctx context.Context, email, password string) (models.User, error)
}

// SessionLifecycle starts and ends sessions.
type SessionLifecycle interface {
	Create(ctx context.Context, userID primitive.ObjectID) (sessions.Session, error)
	Destroy(ctx context.Context, handle string) error
}

// UserFetcher loads the signed-in user.
type UserFetcher interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
}

// LoginRecorder keeps a history of successful sign-ins.
type LoginRecorder interface {
	Record(ctx context.Context, r *http.Request, u models.User, method string) error
}

// Handler serves /auth/*.
type Handler struct {
	Flow     Flow
	Local    PasswordAuth
	Sessions SessionLifecycle
	Users    UserFetcher
	Mech     auth.Mechanism
	Gate     *auth.Gate
	Limiter  *ratelimit.LoginLimiter
	Logins   LoginRecorder
	Log      *zap.Logger
}

// Deps are the Handler's collaborators.
type Deps struct {
	Flow     Flow
	Local    PasswordAuth
	Sessions SessionLifecycle
	Users    UserFetcher
	Mech     auth.Mechanism
	Gate     *auth.Gate
	Limiter  *ratelimit.LoginLimiter
	Logins   LoginRecorder // optional
}

// NewHandler constructs the auth Handler.
func NewHandler(d Deps, logger *zap.Logger) *Handler {
	return &Handler{
		Flow:     d.Flow,
		Local:    d.Local,
		Sessions: d.Sessions,
		Users:    d.Users,
		Mech:     d.Mech,
		Gate:     d.Gate,
		Limiter:  d.Limiter,
		Logins:   d.Logins,
		Log:      logger,
	}
}

// signInResponse is returned by the callback and password login.
type signInResponse struct {
	Success bool        `json:"success"`
	User    models.User `json:"user"`
	Token   string      `json:"token,omitempty"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/login                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeLogin answers {"authorization_url": ...} or {"redirect_url": ...}.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	q := r.URL.Query()
	res, err := h.Flow.Begin(ctx, sso.BeginInput{
		UserType: q.Get("type"),
		Email:    q.Get("email"),
	})
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]string{res.Kind: res.URL})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /auth/login                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

type passwordLogin struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandlePasswordLogin signs in a locally registered user.
func (h *Handler) HandlePasswordLogin(w http.ResponseWriter, r *http.Request) {
	var in passwordLogin
	if err := apierr.DecodeJSON(w, r, &in); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	if err := h.Limiter.Check(r, in.Email); err != nil {
		h.Log.Warn("password login rate limited", zap.String("ip", ratelimit.ClientIP(r)))
		apierr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Local.ReconcileLocal(ctx, in.Email, in.Password)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	h.Limiter.ResetEmail(in.Email)
	h.startSession(ctx, w, r, u, models.LoginMethodPassword)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/callback                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeCallback completes the SSO round-trip.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Exchange(), h.Log, "sso callback")
	defer cancel()

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		msg := q.Get("error_description")
		if msg == "" {
			msg = e
		}
		apierr.Write(w, h.Log, apierr.New(apierr.ErrExchangeFailed, msg))
		return
	}

	res, err := h.Flow.Complete(ctx, sso.CompleteInput{
		Code:  q.Get("code"),
		State: q.Get("state"),
	})
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	h.deliver(ctx, w, r, res.User, res.Session, models.LoginMethodSSO)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /auth/logout                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleLogout ends the caller's session if there is one. It always
// succeeds so clients can call it unconditionally.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if handle := h.Mech.Handle(r); handle != "" {
		if err := h.Sessions.Destroy(ctx, handle); err != nil {
			h.Log.Warn("logout: destroy session failed", zap.Error(err))
		}
	}
	h.Mech.Clear(w, r)
	apierr.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/user, GET /auth/session                                          |
*─────────────────────────────────────────────────────────────────────────────*/

// serveUser returns the signed-in user. A session whose user no longer
// exists is treated as signed out.
func (h *Handler) serveUser(w http.ResponseWriter, r *http.Request, c auth.Caller) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, c.UserID)
	if errors.Is(err, userstore.ErrNotFound) {
		apierr.Write(w, h.Log, apierr.ErrUnauthorized)
		return
	}
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, u)
}

// ServeSession reports the current user or {"user": null}; it never 401s.
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, ok, err := h.Mech.ResolveCaller(r)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	if ok {
		u, err := h.Users.GetByID(ctx, c.UserID)
		if err == nil {
			apierr.WriteJSON(w, http.StatusOK, map[string]any{"user": u})
			return
		}
		if !errors.Is(err, userstore.ErrNotFound) {
			apierr.Write(w, h.Log, err)
			return
		}
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"user": nil})
}

/*─────────────────────────────────────────────────────────────────────────────*
| helpers                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) startSession(ctx context.Context, w http.ResponseWriter, r *http.Request, u models.User, method string) {
	sess, err := h.Sessions.Create(ctx, u.ID)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	h.deliver(ctx, w, r, u, sess, method)
}

func (h *Handler) deliver(ctx context.Context, w http.ResponseWriter, r *http.Request, u models.User, sess sessions.Session, method string) {
	tok, err := h.Mech.Deliver(w, r, sess, u)
	if err != nil {
		// The client never learns the handle; drop the session.
		_ = h.Sessions.Destroy(ctx, sess.Handle)
		apierr.Write(w, h.Log, err)
		return
	}
	if h.Logins != nil {
		if err := h.Logins.Record(ctx, r, u, method); err != nil {
			h.Log.Warn("login record failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
		}
	}
	h.Log.Info("signed in", zap.String("user_id", u.ID.Hex()), zap.String("method", method))
	apierr.WriteJSON(w, http.StatusOK, signInResponse{Success: true, User: u, Token: tok})
}
