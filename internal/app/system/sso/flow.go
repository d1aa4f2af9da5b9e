// internal/app/system/sso/flow.go
package sso

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	organizationstore "github.com/dalemusser/jobhub/internal/app/store/organizations"
	"github.com/dalemusser/jobhub/internal/app/store/oauthstate"
	"github.com/dalemusser/jobhub/internal/app/store/sessions"
	"github.com/dalemusser/jobhub/internal/app/system/apierr"
	"github.com/dalemusser/jobhub/internal/app/system/identity"
	"github.com/dalemusser/jobhub/internal/app/system/normalize"
	"github.com/dalemusser/jobhub/internal/app/system/timeouts"
	"github.com/dalemusser/jobhub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// User types accepted by Begin.
const (
	UserTypeJobSeeker = "job_seeker"
	UserTypeEmployer  = "employer"
)

// Kinds of URL returned by Begin. A redirect_url sends the user to the
// provider's discovery/sign-up page rather than a specific connection.
const (
	KindAuthorizationURL = "authorization_url"
	KindRedirectURL      = "redirect_url"
)

// DefaultStateTTL bounds the time between Begin and Complete.
const DefaultStateTTL = 10 * time.Minute

const stateBytes = 32

// OrgDirectory finds the organization that owns an email domain.
type OrgDirectory interface {
	GetByDomain(ctx context.Context, domain string) (models.Organization, error)
}

// StateStore holds pending sign-ins. Consume must be single-use.
type StateStore interface {
	Save(ctx context.Context, st oauthstate.State) error
	Consume(ctx context.Context, state string) (oauthstate.State, error)
}

// Reconciler maps a provider identity onto a local user.
type Reconciler interface {
	ReconcileExternal(ctx context.Context, ext identity.ExternalIdentity) (models.User, error)
}

// SessionCreator starts sessions.
type SessionCreator interface {
	Create(ctx context.Context, userID primitive.ObjectID) (sessions.Session, error)
}

// BeginInput is the login request.
type BeginInput struct {
	UserType string
	Email    string
}

// BeginResult is where to send the browser.
type BeginResult struct {
	URL   string
	Kind  string
	State string
}

// CompleteInput is the provider callback.
type CompleteInput struct {
	Code  string
	State string
}

// CompleteResult is the signed-in user and their new session.
type CompleteResult struct {
	User    models.User
	Session sessions.Session
}

// Flow coordinates Begin and Complete.
type Flow struct {
	Provider   Provider
	Orgs       OrgDirectory
	States     StateStore
	Identities Reconciler
	Sessions   SessionCreator
	StateTTL   time.Duration
	Log        *zap.Logger

	now   func() time.Time
	group singleflight.Group
}

// FlowDeps are the collaborators of a Flow.
type FlowDeps struct {
	Provider   Provider
	Orgs       OrgDirectory
	States     StateStore
	Identities Reconciler
	Sessions   SessionCreator
	StateTTL   time.Duration
	Log        *zap.Logger
}

// NewFlow returns a Flow. A zero StateTTL selects DefaultStateTTL.
func NewFlow(d FlowDeps) *Flow {
	if d.StateTTL <= 0 {
		d.StateTTL = DefaultStateTTL
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Flow{
		Provider:   d.Provider,
		Orgs:       d.Orgs,
		States:     d.States,
		Identities: d.Identities,
		Sessions:   d.Sessions,
		StateTTL:   d.StateTTL,
		Log:        d.Log,
		now:        time.Now,
	}
}

// Begin validates the login request, records a state, and returns the URL
// the client should visit.
func (f *Flow) Begin(ctx context.Context, in BeginInput) (BeginResult, error) {
	switch in.UserType {
	case "":
		return BeginResult{}, apierr.New(apierr.ErrMissingParameter, "User type is required")
	case UserTypeJobSeeker, UserTypeEmployer:
	default:
		return BeginResult{}, apierr.New(apierr.ErrInvalidParameter, "Invalid user type")
	}

	req := AuthorizationRequest{}
	kind := KindAuthorizationURL

	if in.UserType == UserTypeEmployer {
		email := normalize.Email(in.Email)
		if email == "" {
			return BeginResult{}, apierr.New(apierr.ErrMissingParameter, "Employer email is required")
		}
		domain := normalize.Domain(email)
		if domain == "" {
			return BeginResult{}, apierr.New(apierr.ErrInvalidParameter, "Invalid employer email")
		}

		org, err := f.Orgs.GetByDomain(ctx, domain)
		switch {
		case err == nil && org.ConnectionID != "":
			req.ConnectionID = org.ConnectionID
		case err == nil && org.ProviderOrgID != "":
			req.OrganizationID = org.ProviderOrgID
		case err == nil || errors.Is(err, organizationstore.ErrNotFound):
			// Unknown company, or one whose SSO is still being set up.
			req.LoginHint = email
			req.SignUp = true
			kind = KindRedirectURL
		default:
			return BeginResult{}, fmt.Errorf("lookup organization by domain: %w", err)
		}
	}

	state, err := randomState()
	if err != nil {
		return BeginResult{}, err
	}
	now := f.now().UTC()
	st := oauthstate.State{
		State:     state,
		UserType:  in.UserType,
		Nonce:     uuid.NewString(),
		ExpiresAt: now.Add(f.StateTTL),
		CreatedAt: now,
	}
	if err := f.States.Save(ctx, st); err != nil {
		return BeginResult{}, fmt.Errorf("save oauth state: %w", err)
	}

	req.State = st.State
	req.Nonce = st.Nonce
	return BeginResult{URL: f.Provider.AuthorizationURL(req), Kind: kind, State: st.State}, nil
}

// Complete consumes the state, exchanges the code, reconciles the user and
// starts a session. Concurrent calls with the same code share one result.
func (f *Flow) Complete(ctx context.Context, in CompleteInput) (CompleteResult, error) {
	if in.Code == "" {
		return CompleteResult{}, apierr.New(apierr.ErrMissingParameter, "Authorization code is required")
	}
	if in.State == "" {
		return CompleteResult{}, apierr.New(apierr.ErrMissingParameter, "State is required")
	}

	// The shared call outlives any one caller disconnecting.
	v, err, shared := f.group.Do(in.Code, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Exchange())
		defer cancel()
		return f.complete(sctx, in)
	})
	if shared {
		f.Log.Debug("sso callback shared with concurrent request")
	}
	if err != nil {
		return CompleteResult{}, err
	}
	return v.(CompleteResult), nil
}

func (f *Flow) complete(ctx context.Context, in CompleteInput) (CompleteResult, error) {
	st, err := f.States.Consume(ctx, in.State)
	if errors.Is(err, oauthstate.ErrNotFound) {
		return CompleteResult{}, apierr.New(apierr.ErrExchangeFailed, "Invalid or expired state")
	}
	if err != nil {
		return CompleteResult{}, fmt.Errorf("consume oauth state: %w", err)
	}

	id, err := f.Provider.Exchange(ctx, in.Code, st.Nonce)
	if err != nil {
		f.Log.Info("sso code exchange failed", zap.Error(err))
		return CompleteResult{}, err
	}

	u, err := f.Identities.ReconcileExternal(ctx, identity.ExternalIdentity{
		Email:             id.Email,
		ProviderSubjectID: id.Subject,
		OrgHint:           id.OrganizationID,
		OrgName:           id.OrganizationName,
		FirstName:         id.FirstName,
		LastName:          id.LastName,
	})
	if err != nil {
		return CompleteResult{}, err
	}

	sess, err := f.Sessions.Create(ctx, u.ID)
	if err != nil {
		return CompleteResult{}, err
	}
	f.Log.Info("sso sign-in",
		zap.String("user_id", u.ID.Hex()),
		zap.String("user_type", u.UserType),
		zap.String("requested_type", st.UserType))
	return CompleteResult{User: u, Session: sess}, nil
}

func randomState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
