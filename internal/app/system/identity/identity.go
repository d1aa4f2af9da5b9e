// Package identity maps sign-ins onto local user records.
//
// Every path (SSO callback, password login, registration) creates or
// updates at most one user. Uniqueness of email and provider subject is
// enforced by the store's unique indexes; the reconciler reacts to
// duplicate-key results instead of checking before writing, so concurrent
// first sign-ins of the same identity converge on one record.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	organizationstore "github.com/dalemusser/jobhub/internal/app/store/organizations"
	userstore "github.com/dalemusser/jobhub/internal/app/store/users"
	"github.com/dalemusser/jobhub/internal/app/system/apierr"
	"github.com/dalemusser/jobhub/internal/app/system/normalize"
	"github.com/dalemusser/jobhub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is used for new password hashes.
const DefaultBcryptCost = 12

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// maxAttempts bounds the retry loop when concurrent writers collide.
const maxAttempts = 3

// UserStore is the persistence the reconciler needs. *userstore.Store
// implements it.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (models.User, error)
	UpdateBySubject(ctx context.Context, subject string, p userstore.FederatedProfile) (models.User, error)
	AttachByEmail(ctx context.Context, subject string, p userstore.FederatedProfile) (models.User, error)
	Insert(ctx context.Context, u models.User) (models.User, error)
}

// OrgLookup resolves a provider organization to a local one.
type OrgLookup interface {
	GetByProviderOrgID(ctx context.Context, providerOrgID string) (models.Organization, error)
}

// ExternalIdentity is what the SSO provider asserts about a user.
type ExternalIdentity struct {
	Email             string
	ProviderSubjectID string
	OrgHint           string // provider organization id, empty for individuals
	OrgName           string
	FirstName         string
	LastName          string
}

// LocalRegistration is a password sign-up request.
type LocalRegistration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Reconciler creates and updates users from sign-in events.
type Reconciler struct {
	users UserStore
	orgs  OrgLookup
	log   *zap.Logger
	cost  int

	dummyOnce sync.Once
	dummyHash []byte
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithBcryptCost overrides DefaultBcryptCost.
func WithBcryptCost(cost int) Option {
	return func(r *Reconciler) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			r.cost = cost
		}
	}
}

// New returns a Reconciler. orgs may be nil, in which case organization
// members are linked to the provider organization only.
func New(users UserStore, orgs OrgLookup, logger *zap.Logger, opts ...Option) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{users: users, orgs: orgs, log: logger, cost: DefaultBcryptCost}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ReconcileExternal returns the user for a federated identity, updating it
// when the subject is known, attaching the subject to a local user with the
// same email, or creating a new user.
func (r *Reconciler) ReconcileExternal(ctx context.Context, ext ExternalIdentity) (models.User, error) {
	if ext.ProviderSubjectID == "" {
		return models.User{}, apierr.New(apierr.ErrMissingParameter, "Provider subject is required")
	}
	email := normalize.Email(ext.Email)
	if email == "" {
		return models.User{}, apierr.New(apierr.ErrMissingParameter, "Email is required")
	}

	profile, err := r.profileFor(ctx, ext, email)
	if err != nil {
		return models.User{}, err
	}
	subject := ext.ProviderSubjectID

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		u, err := r.users.UpdateBySubject(ctx, subject, profile)
		switch {
		case err == nil:
			return u, nil
		case errors.Is(err, userstore.ErrDuplicate):
			// The provider now reports an email another account owns.
			return models.User{}, apierr.New(apierr.ErrIdentityConflict, "Email is already linked to another account")
		case !errors.Is(err, userstore.ErrNotFound):
			return models.User{}, fmt.Errorf("update by subject: %w", err)
		}

		u, err = r.users.AttachByEmail(ctx, subject, profile)
		switch {
		case err == nil:
			r.log.Info("linked federated identity to existing account",
				zap.String("user_id", u.ID.Hex()),
				zap.String("provider_subject_id", subject))
			return u, nil
		case errors.Is(err, userstore.ErrDuplicate):
			continue
		case !errors.Is(err, userstore.ErrNotFound):
			return models.User{}, fmt.Errorf("attach by email: %w", err)
		}

		existing, err := r.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if existing.ProviderSubjectID == nil || *existing.ProviderSubjectID == subject {
				// A local user or this identity appeared since the attach; retry.
				continue
			}
			r.log.Warn("federated sign-in for email owned by another identity",
				zap.String("user_id", existing.ID.Hex()),
				zap.String("provider_subject_id", subject))
			return models.User{}, apierr.New(apierr.ErrIdentityConflict, "Email is already linked to another account")
		case !errors.Is(err, userstore.ErrNotFound):
			return models.User{}, fmt.Errorf("lookup by email: %w", err)
		}

		u, err = r.users.Insert(ctx, newFederatedUser(subject, profile))
		switch {
		case err == nil:
			r.log.Info("created federated user",
				zap.String("user_id", u.ID.Hex()),
				zap.String("user_type", u.UserType))
			return u, nil
		case errors.Is(err, userstore.ErrDuplicate):
			r.log.Debug("concurrent first sign-in, retrying", zap.Int("attempt", attempt))
			continue
		default:
			return models.User{}, fmt.Errorf("insert user: %w", err)
		}
	}
	return models.User{}, fmt.Errorf("reconcile %s: gave up after %d attempts", subject, maxAttempts)
}

// ReconcileLocal authenticates a password user.
func (r *Reconciler) ReconcileLocal(ctx context.Context, email, password string) (models.User, error) {
	email = normalize.Email(email)
	if email == "" || password == "" {
		return models.User{}, apierr.New(apierr.ErrMissingParameter, "Email and password are required")
	}

	u, err := r.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, userstore.ErrNotFound) {
		return models.User{}, fmt.Errorf("lookup by email: %w", err)
	}
	if err != nil || u.PasswordHash == nil {
		// Unknown and federated emails still pay for one comparison.
		_ = bcrypt.CompareHashAndPassword(r.dummy(), []byte(password))
		return models.User{}, apierr.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)); err != nil {
		return models.User{}, apierr.ErrInvalidCredentials
	}
	return u, nil
}

// RegisterLocal creates a password user. The email must not belong to any
// existing user, local or federated.
func (r *Reconciler) RegisterLocal(ctx context.Context, reg LocalRegistration) (models.User, error) {
	email := normalize.Email(reg.Email)
	if email == "" || reg.Password == "" {
		return models.User{}, apierr.New(apierr.ErrMissingParameter, "Email and password are required")
	}
	if len(reg.Password) > maxPasswordBytes {
		return models.User{}, apierr.New(apierr.ErrInvalidParameter, "Password must be at most 72 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), r.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	h := string(hash)

	u, err := r.users.Insert(ctx, models.User{
		Email:        email,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		UserType:     models.UserTypeIndividual,
		PasswordHash: &h,
		JobSeeker:    models.NewJobSeekerProfile(),
	})
	if errors.Is(err, userstore.ErrDuplicate) {
		return models.User{}, apierr.New(apierr.ErrDuplicateEmail, "User already exists")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	r.log.Info("registered local user", zap.String("user_id", u.ID.Hex()))
	return u, nil
}

func (r *Reconciler) profileFor(ctx context.Context, ext ExternalIdentity, email string) (userstore.FederatedProfile, error) {
	p := userstore.FederatedProfile{
		Email:     email,
		FirstName: ext.FirstName,
		LastName:  ext.LastName,
		UserType:  models.UserTypeIndividual,
	}
	if ext.OrgHint == "" {
		return p, nil
	}

	p.UserType = models.UserTypeOrganizationMember
	p.ProviderOrgID = ext.OrgHint
	p.OrganizationName = ext.OrgName
	if r.orgs == nil {
		return p, nil
	}
	org, err := r.orgs.GetByProviderOrgID(ctx, ext.OrgHint)
	switch {
	case err == nil:
		p.OrganizationID = &org.ID
		if p.OrganizationName == "" {
			p.OrganizationName = org.Name
		}
	case !errors.Is(err, organizationstore.ErrNotFound):
		return p, fmt.Errorf("lookup organization: %w", err)
	}
	return p, nil
}

func newFederatedUser(subject string, p userstore.FederatedProfile) models.User {
	u := models.User{
		Email:             p.Email,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		UserType:          p.UserType,
		ProviderSubjectID: &subject,
		ProviderOrgID:     p.ProviderOrgID,
		OrganizationID:    p.OrganizationID,
		OrganizationName:  p.OrganizationName,
	}
	if u.IsOrganizationMember() {
		u.Company = models.NewCompanyData(p.Email)
	} else {
		u.JobSeeker = models.NewJobSeekerProfile()
	}
	return u
}

func (r *Reconciler) dummy() []byte {
	r.dummyOnce.Do(func() {
		r.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("jobhub-timing-equalizer"), r.cost)
	})
	return r.dummyHash
}
