package identity_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	userstore "github.com/dalemusser/jobhub/internal/app/store/users"
	"github.com/dalemusser/jobhub/internal/app/system/apierr"
	"github.com/dalemusser/jobhub/internal/app/system/identity"
	"github.com/dalemusser/jobhub/internal/domain/models"
	"github.com/dalemusser/jobhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newReconciler(users identity.UserStore, orgs identity.OrgLookup) *identity.Reconciler {
	return identity.New(users, orgs, zap.NewNop(), identity.WithBcryptCost(bcrypt.MinCost))
}

func TestReconcileExternal_Idempotent(t *testing.T) {
	users := testutil.NewMemoryUsers()
	r := newReconciler(users, nil)
	ctx := context.Background()
	ext := identity.ExternalIdentity{Email: "seeker@example.com", ProviderSubjectID: "user_1", FirstName: "Sam"}

	first, err := r.ReconcileExternal(ctx, ext)
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	second, err := r.ReconcileExternal(ctx, ext)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected same user, got %s and %s", first.ID.Hex(), second.ID.Hex())
	}
	if users.Len() != 1 {
		t.Errorf("expected 1 user, have %d", users.Len())
	}
	if users.Calls["Insert"] != 1 {
		t.Errorf("expected exactly one insert, got %d", users.Calls["Insert"])
	}
	if first.UserType != models.UserTypeIndividual || first.JobSeeker == nil {
		t.Errorf("expected individual with job seeker profile, got %+v", first)
	}
	if first.JobSeeker.JobSearchPreference.AlertFrequency != "daily" {
		t.Errorf("alert frequency = %q", first.JobSeeker.JobSearchPreference.AlertFrequency)
	}
}

func TestReconcileExternal_UpdatesProfileOnRepeat(t *testing.T) {
	users := testutil.NewMemoryUsers()
	r := newReconciler(users, nil)
	ctx := context.Background()

	if _, err := r.ReconcileExternal(ctx, identity.ExternalIdentity{Email: "a@example.com", ProviderSubjectID: "user_1", FirstName: "Old"}); err != nil {
		t.Fatal(err)
	}
	u, err := r.ReconcileExternal(ctx, identity.ExternalIdentity{Email: "a@example.com", ProviderSubjectID: "user_1", FirstName: "New"})
	if err != nil {
		t.Fatal(err)
	}
	if u.FirstName != "New" {
		t.Errorf("FirstName = %q, want New", u.FirstName)
	}
}

func TestReconcileExternal_AttachesToLocalUser(t *testing.T) {
	users := testutil.NewMemoryUsers()
	r := newReconciler(users, nil)
	ctx := context.Background()

	local, err := r.RegisterLocal(ctx, identity.LocalRegistration{Email: "Pat@Example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("RegisterLocal: %v", err)
	}

	fed, err := r.ReconcileExternal(ctx, identity.ExternalIdentity{Email: "pat@example.com", ProviderSubjectID: "user_pat"})
	if err != nil {
		t.Fatalf("ReconcileExternal: %v", err)
	}

	if fed.ID != local.ID {
		t.Errorf("expected attach to existing user %s, got %s", local.ID.Hex(), fed.ID.Hex())
	}
	if !fed.Federated() || *fed.ProviderSubjectID != "user_pat" {
		t.Errorf("subject not attached: %+v", fed.ProviderSubjectID)
	}
	if fed.PasswordHash != nil {
		t.Error("password hash should be cleared when federation is attached")
	}
	if users.Len() != 1 {
		t.Errorf("expected 1 user, have %d", users.Len())
	}

	// the old password no longer works
	if _, err := r.ReconcileLocal(ctx, "pat@example.com", "correct horse"); !errors.Is(err, apierr.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials after federation, got %v", err)
	}
}

func TestReconcileExternal_EmailOwnedByOtherSubject(t *testing.T) {
	users := testutil.NewMemoryUsers()
	r := newReconciler(users, nil)
	ctx := context.Background()

	if _, err := r.ReconcileExternal(ctx, identity.ExternalIdentity{Email: "x@example.com", ProviderSubjectID: "user_a"}); err != nil {
		t.Fatal(err)
	}
	_, err := r.ReconcileExternal(ctx, identity.ExternalIdentity{Email: "x@example.com", ProviderSubjectID: "user_b"})
	if !errors.Is(err, apierr.ErrIdentityConflict) {
		t.Fatalf("expected ErrIdentityConflict, got %v", err)
	}
	if users.Len() != 1 {
		t.Errorf("expected 1 user, have %d", users.Len())
	}
}

func TestReconcileExternal_OrganizationMember(t *testing.T) {
	orgID := primitive.NewObjectID()
	orgs := testutil.NewMemoryOrgs(models.Organization{ID: orgID, Name: "Acme", ProviderOrgID: "org_acme"})
	users := testutil.NewMemoryUsers()
	r := newReconciler(users, orgs)

	u, err := r.ReconcileExternal(context.Background(), identity.ExternalIdentity{
		Email:             "hr@acme.com",
		ProviderSubjectID: "user_hr",
		OrgHint:           "org_acme",
	})
	if err != nil {
		t.Fatal(err)
	}
	if u.UserType != models.UserTypeOrganizationMember {
		t.Errorf("UserType = %q", u.UserType)
	}
	if u.OrganizationID == nil || *u.OrganizationID != orgID {
		t.Errorf("OrganizationID = %v, want %s", u.OrganizationID, orgID.Hex())
	}
	if u.OrganizationName != "Acme" {
		t.Errorf("OrganizationName = %q", u.OrganizationName)
	}
	if u.Company == nil || u.JobSeeker != nil {
		t.Errorf("expected company profile only, got company=%v seeker=%v", u.Company, u.JobSeeker)
	}
}

func TestReconcileExternal_KeepsLocalMembership(t *testing.T) {
	users := testutil.NewMemoryUsers()
	r := newReconciler(users, testutil.NewMemoryOrgs())
	ctx := context.Background()
	ext := identity.ExternalIdentity{Email: "boss@newco.com", ProviderSubjectID: "user_9"}

	u, err := r.ReconcileExternal(ctx, ext)
	if err != nil {
		t.Fatal(err)
	}
	orgID := primitive.NewObjectID()
	if _, err := users.SetMembership(ctx, u.ID, userstore.Membership{
		OrganizationID:   orgID,
		OrganizationName: "NewCo",
		Role:             models.OrgRoleAdmin,
	}); err != nil {
		t.Fatal(err)
	}

	again, err := r.ReconcileExternal(ctx, ext)
	if err != nil {
		t.Fatal(err)
	}
	if again.UserType != models.UserTypeOrganizationMember {
		t.Errorf("UserType = %q, want organization_member", again.UserType)
	}
	if again.OrganizationID == nil || *again.OrganizationID != orgID || again.OrgRole != models.OrgRoleAdmin {
		t.Errorf("membership lost: org=%v role=%q", again.OrganizationID, again.OrgRole)
	}
	if again.OrganizationName != "NewCo" {
		t.Errorf("OrganizationName = %q", again.OrganizationName)
	}
}

func TestReconcileExternal_DemotesProviderOnlyMember(t *testing.T) {
	r := newReconciler(testutil.NewMemoryUsers(), testutil.NewMemoryOrgs())
	ctx := context.Background()

	if _, err := r.ReconcileExternal(ctx, identity.ExternalIdentity{
		Email:             "contractor@example.com",
		ProviderSubjectID: "user_c",
		OrgHint:           "org_gone",
		OrgName:           "GoneCo",
	}); err != nil {
		t.Fatal(err)
	}
	u, err := r.ReconcileExternal(ctx, identity.ExternalIdentity{
		Email:             "contractor@example.com",
		ProviderSubjectID: "user_c",
	})
	if err != nil {
		t.Fatal(err)
	}
	if u.UserType != models.UserTypeIndividual || u.ProviderOrgID != "" || u.OrganizationName != "" || u.OrganizationID != nil {
		t.Errorf("expected a plain individual, got %+v", u)
	}
}

func TestReconcileExternal_UnknownProviderOrg(t *testing.T) {
	r := newReconciler(testutil.NewMemoryUsers(), testutil.NewMemoryOrgs())

	u, err := r.ReconcileExternal(context.Background(), identity.ExternalIdentity{
		Email:             "hr@newco.com",
		ProviderSubjectID: "user_new",
		OrgHint:           "org_new",
		OrgName:           "NewCo",
	})
	if err != nil {
		t.Fatal(err)
	}
	if u.UserType != models.UserTypeOrganizationMember || u.ProviderOrgID != "org_new" || u.OrganizationID != nil {
		t.Errorf("unexpected org linkage: %+v", u)
	}
	if u.OrganizationName != "NewCo" {
		t.Errorf("OrganizationName = %q", u.OrganizationName)
	}
}

func TestReconcileExternal_Concurrent(t *testing.T) {
	users := testutil.NewMemoryUsers()
	r := newReconciler(users, nil)
	ext := identity.ExternalIdentity{Email: "race@example.com", ProviderSubjectID: "user_race"}

	const n = 16
	ids := make([]primitive.ObjectID, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := r.ReconcileExternal(context.Background(), ext)
			ids[i], errs[i] = u.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("goroutine %d got user %s, want %s", i, ids[i].Hex(), ids[0].Hex())
		}
	}
	if users.Len() != 1 {
		t.Errorf("expected 1 user, have %d", users.Len())
	}
}

// lateLocalUsers registers a local user with the same email right after the
// first attach attempt misses.
type lateLocalUsers struct {
	*testutil.MemoryUsers
	once sync.Once
}

func (l *lateLocalUsers) AttachByEmail(ctx context.Context, subject string, p userstore.FederatedProfile) (models.User, error) {
	late := false
	l.once.Do(func() { late = true })
	if !late {
		return l.MemoryUsers.AttachByEmail(ctx, subject, p)
	}
	hash := "$2a$04$placeholderplaceholderplaceholderplaceholderplace"
	if _, err := l.MemoryUsers.Insert(ctx, models.User{
		Email:        p.Email,
		UserType:     models.UserTypeIndividual,
		PasswordHash: &hash,
	}); err != nil {
		return models.User{}, err
	}
	return models.User{}, userstore.ErrNotFound
}

func TestReconcileExternal_LocalUserAppearsDuringAttach(t *testing.T) {
	users := &lateLocalUsers{MemoryUsers: testutil.NewMemoryUsers()}
	r := newReconciler(users, nil)

	u, err := r.ReconcileExternal(context.Background(), identity.ExternalIdentity{
		Email:             "late@example.com",
		ProviderSubjectID: "user_late",
	})
	if err != nil {
		t.Fatalf("ReconcileExternal: %v", err)
	}
	if u.ProviderSubjectID == nil || *u.ProviderSubjectID != "user_late" || u.PasswordHash != nil {
		t.Errorf("expected the local user to be attached, got %+v", u)
	}
	if users.Len() != 1 {
		t.Errorf("expected 1 user, have %d", users.Len())
	}
}

func TestReconcileExternal_MissingFields(t *testing.T) {
	r := newReconciler(testutil.NewMemoryUsers(), nil)
	tests := []identity.ExternalIdentity{
		{Email: "a@example.com"},
		{ProviderSubjectID: "user_1"},
		{Email: "   ", ProviderSubjectID: "user_1"},
	}
	for _, ext := range tests {
		if _, err := r.ReconcileExternal(context.Background(), ext); !errors.Is(err, apierr.ErrMissingParameter) {
			t.Errorf("ReconcileExternal(%+v): expected ErrMissingParameter, got %v", ext, err)
		}
	}
}

func TestRegisterLocal_DuplicateKeepsHash(t *testing.T) {
	users := testutil.NewMemoryUsers()
	r := newReconciler(users, nil)
	ctx := context.Background()

	first, err := r.RegisterLocal(ctx, identity.LocalRegistration{Email: "dup@example.com", Password: "original-pass"})
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	originalHash := *first.PasswordHash

	_, err = r.RegisterLocal(ctx, identity.LocalRegistration{Email: "DUP@example.com", Password: "attacker-pass"})
	if !errors.Is(err, apierr.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if got := apierr.Message(err); got != "User already exists" {
		t.Errorf("message = %q", got)
	}

	stored, err := users.GetByEmail(ctx, "dup@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if *stored.PasswordHash != originalHash {
		t.Error("password hash changed after rejected registration")
	}
	if _, err := r.ReconcileLocal(ctx, "dup@example.com", "original-pass"); err != nil {
		t.Errorf("original password should still work: %v", err)
	}
}

func TestRegisterLocal_RejectsFederatedEmail(t *testing.T) {
	users := testutil.NewMemoryUsers()
	r := newReconciler(users, nil)
	ctx := context.Background()

	if _, err := r.ReconcileExternal(ctx, identity.ExternalIdentity{Email: "fed@example.com", ProviderSubjectID: "user_f"}); err != nil {
		t.Fatal(err)
	}
	_, err := r.RegisterLocal(ctx, identity.LocalRegistration{Email: "fed@example.com", Password: "pw"})
	if !errors.Is(err, apierr.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestRegisterLocal_Validation(t *testing.T) {
	r := newReconciler(testutil.NewMemoryUsers(), nil)
	ctx := context.Background()

	if _, err := r.RegisterLocal(ctx, identity.LocalRegistration{Email: "a@example.com"}); !errors.Is(err, apierr.ErrMissingParameter) {
		t.Errorf("missing password: got %v", err)
	}
	if _, err := r.RegisterLocal(ctx, identity.LocalRegistration{Password: "pw"}); !errors.Is(err, apierr.ErrMissingParameter) {
		t.Errorf("missing email: got %v", err)
	}
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := r.RegisterLocal(ctx, identity.LocalRegistration{Email: "a@example.com", Password: string(long)}); !errors.Is(err, apierr.ErrInvalidParameter) {
		t.Errorf("long password: got %v", err)
	}
}

func TestReconcileLocal(t *testing.T) {
	users := testutil.NewMemoryUsers()
	r := newReconciler(users, nil)
	ctx := context.Background()

	reg, err := r.RegisterLocal(ctx, identity.LocalRegistration{Email: "lo@example.com", Password: "s3cret"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReconcileExternal(ctx, identity.ExternalIdentity{Email: "fed@example.com", ProviderSubjectID: "user_f"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"correct", "LO@example.com", "s3cret", nil},
		{"wrong password", "lo@example.com", "nope", apierr.ErrInvalidCredentials},
		{"unknown email", "ghost@example.com", "s3cret", apierr.ErrInvalidCredentials},
		{"federated user", "fed@example.com", "anything", apierr.ErrInvalidCredentials},
		{"missing password", "lo@example.com", "", apierr.ErrMissingParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := r.ReconcileLocal(ctx, tt.email, tt.password)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if u.ID != reg.ID {
					t.Errorf("got user %s, want %s", u.ID.Hex(), reg.ID.Hex())
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
