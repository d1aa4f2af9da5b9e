package sso_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/jobhub/internal/app/store/oauthstate"
	"github.com/dalemusser/jobhub/internal/app/store/sessions"
	"github.com/dalemusser/jobhub/internal/app/system/apierr"
	"github.com/dalemusser/jobhub/internal/app/system/auth"
	"github.com/dalemusser/jobhub/internal/app/system/identity"
	"github.com/dalemusser/jobhub/internal/app/system/sso"
	"github.com/dalemusser/jobhub/internal/domain/models"
	"github.com/dalemusser/jobhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// fakeProvider records authorization requests and answers exchanges from a
// code → identity table.
type fakeProvider struct {
	mu      sync.Mutex
	lastReq sso.AuthorizationRequest
	ids     map[string]sso.Identity
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (p *fakeProvider) AuthorizationURL(req sso.AuthorizationRequest) string {
	p.mu.Lock()
	p.lastReq = req
	p.mu.Unlock()
	return "https://idp.example.test/authorize?state=" + req.State
}

func (p *fakeProvider) Exchange(ctx context.Context, code, _ string) (sso.Identity, error) {
	p.calls.Add(1)
	if p.release != nil {
		<-p.release
	}
	if err := ctx.Err(); err != nil {
		return sso.Identity{}, err
	}
	if p.err != nil {
		return sso.Identity{}, p.err
	}
	id, ok := p.ids[code]
	if !ok {
		return sso.Identity{}, apierr.New(apierr.ErrExchangeFailed, "invalid_grant")
	}
	return id, nil
}

func (p *fakeProvider) last() sso.AuthorizationRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastReq
}

type flowFixture struct {
	flow     *sso.Flow
	provider *fakeProvider
	users    *testutil.MemoryUsers
	states   *oauthstate.MemoryStore
	sessions *auth.SessionManager
}

func newFlowFixture(t *testing.T, orgs ...models.Organization) *flowFixture {
	t.Helper()
	users := testutil.NewMemoryUsers()
	orgStore := testutil.NewMemoryOrgs(orgs...)
	states := oauthstate.NewMemoryStore()
	sm := auth.NewSessionManager(sessions.NewMemoryStore(), time.Hour)
	prov := &fakeProvider{ids: map[string]sso.Identity{
		"c1": {Subject: "user_c1", Email: "seeker@example.com", FirstName: "Sam"},
	}}
	flow := sso.NewFlow(sso.FlowDeps{
		Provider:   prov,
		Orgs:       orgStore,
		States:     states,
		Identities: identity.New(users, orgStore, zap.NewNop(), identity.WithBcryptCost(bcrypt.MinCost)),
		Sessions:   sm,
		Log:        zap.NewNop(),
	})
	return &flowFixture{flow: flow, provider: prov, users: users, states: states, sessions: sm}
}

func TestBegin_Validation(t *testing.T) {
	fx := newFlowFixture(t)
	tests := []struct {
		name string
		in   sso.BeginInput
		kind error
		msg  string
	}{
		{"missing type", sso.BeginInput{}, apierr.ErrMissingParameter, "User type is required"},
		{"invalid type", sso.BeginInput{UserType: "recruiter"}, apierr.ErrInvalidParameter, "Invalid user type"},
		{"employer without email", sso.BeginInput{UserType: sso.UserTypeEmployer}, apierr.ErrMissingParameter, "Employer email is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.flow.Begin(context.Background(), tt.in)
			require.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.msg, apierr.Message(err))
		})
	}
}

func TestBegin_JobSeeker(t *testing.T) {
	fx := newFlowFixture(t)

	res, err := fx.flow.Begin(context.Background(), sso.BeginInput{UserType: sso.UserTypeJobSeeker})
	require.NoError(t, err)
	assert.Equal(t, sso.KindAuthorizationURL, res.Kind)
	assert.Len(t, res.State, 43)
	assert.Contains(t, res.URL, res.State)

	req := fx.provider.last()
	assert.Empty(t, req.ConnectionID)
	assert.Empty(t, req.OrganizationID)
	assert.False(t, req.SignUp)
	assert.NotEmpty(t, req.Nonce)

	st, err := fx.states.Consume(context.Background(), res.State)
	require.NoError(t, err)
	assert.Equal(t, sso.UserTypeJobSeeker, st.UserType)
	assert.Equal(t, req.Nonce, st.Nonce)
	assert.WithinDuration(t, time.Now().Add(sso.DefaultStateTTL), st.ExpiresAt, 5*time.Second)
}

func TestBegin_EmployerRouting(t *testing.T) {
	fx := newFlowFixture(t,
		models.Organization{Name: "Acme", Domain: "acme.com", ConnectionID: "conn_acme", ProviderOrgID: "org_acme"},
		models.Organization{Name: "Initech", Domain: "initech.com", ProviderOrgID: "org_initech"},
		models.Organization{Name: "Pending", Domain: "pending.io"},
	)
	ctx := context.Background()

	t.Run("direct connection", func(t *testing.T) {
		res, err := fx.flow.Begin(ctx, sso.BeginInput{UserType: sso.UserTypeEmployer, Email: "HR@Acme.com"})
		require.NoError(t, err)
		assert.Equal(t, sso.KindAuthorizationURL, res.Kind)
		assert.Equal(t, "conn_acme", fx.provider.last().ConnectionID)
	})

	t.Run("organization without connection", func(t *testing.T) {
		res, err := fx.flow.Begin(ctx, sso.BeginInput{UserType: sso.UserTypeEmployer, Email: "boss@initech.com"})
		require.NoError(t, err)
		assert.Equal(t, sso.KindAuthorizationURL, res.Kind)
		req := fx.provider.last()
		assert.Empty(t, req.ConnectionID)
		assert.Equal(t, "org_initech", req.OrganizationID)
	})

	for _, email := range []string{"founder@newco.com", "admin@pending.io"} {
		t.Run("discovery "+email, func(t *testing.T) {
			res, err := fx.flow.Begin(ctx, sso.BeginInput{UserType: sso.UserTypeEmployer, Email: email})
			require.NoError(t, err)
			assert.Equal(t, sso.KindRedirectURL, res.Kind)
			req := fx.provider.last()
			assert.True(t, req.SignUp)
			assert.Equal(t, email, req.LoginHint)
			assert.Empty(t, req.ConnectionID)
			assert.Empty(t, req.OrganizationID)
		})
	}
}

func TestBeginComplete_EndToEnd(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	begin, err := fx.flow.Begin(ctx, sso.BeginInput{UserType: sso.UserTypeJobSeeker})
	require.NoError(t, err)

	res, err := fx.flow.Complete(ctx, sso.CompleteInput{Code: "c1", State: begin.State})
	require.NoError(t, err)
	assert.Equal(t, "seeker@example.com", res.User.Email)
	assert.Equal(t, models.UserTypeIndividual, res.User.UserType)
	assert.Equal(t, res.User.ID, res.Session.UserID)
	assert.Equal(t, 1, fx.users.Len())

	sess, ok, err := fx.sessions.Resolve(ctx, res.Session.Handle)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.User.ID, sess.UserID)

	// The state is single-use.
	_, err = fx.flow.Complete(ctx, sso.CompleteInput{Code: "c1", State: begin.State})
	assert.ErrorIs(t, err, apierr.ErrExchangeFailed)

	// A second sign-in reuses the same user.
	begin2, err := fx.flow.Begin(ctx, sso.BeginInput{UserType: sso.UserTypeJobSeeker})
	require.NoError(t, err)
	res2, err := fx.flow.Complete(ctx, sso.CompleteInput{Code: "c1", State: begin2.State})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, res2.User.ID)
	assert.NotEqual(t, res.Session.Handle, res2.Session.Handle)
	assert.Equal(t, 1, fx.users.Len())
}

func TestComplete_Errors(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	_, err := fx.flow.Complete(ctx, sso.CompleteInput{State: "s"})
	assert.ErrorIs(t, err, apierr.ErrMissingParameter)

	_, err = fx.flow.Complete(ctx, sso.CompleteInput{Code: "c1"})
	assert.ErrorIs(t, err, apierr.ErrMissingParameter)

	_, err = fx.flow.Complete(ctx, sso.CompleteInput{Code: "c1", State: "never-issued"})
	assert.ErrorIs(t, err, apierr.ErrExchangeFailed)
	assert.Zero(t, fx.provider.calls.Load(), "provider must not be called for an unknown state")

	begin, err := fx.flow.Begin(ctx, sso.BeginInput{UserType: sso.UserTypeJobSeeker})
	require.NoError(t, err)
	_, err = fx.flow.Complete(ctx, sso.CompleteInput{Code: "bogus", State: begin.State})
	assert.ErrorIs(t, err, apierr.ErrExchangeFailed)
	assert.Equal(t, 0, fx.users.Len())
}

func TestComplete_ProviderUnavailable(t *testing.T) {
	fx := newFlowFixture(t)
	fx.provider.err = apierr.New(apierr.ErrProviderUnavailable, "Identity provider unavailable")
	ctx := context.Background()

	begin, err := fx.flow.Begin(ctx, sso.BeginInput{UserType: sso.UserTypeJobSeeker})
	require.NoError(t, err)
	_, err = fx.flow.Complete(ctx, sso.CompleteInput{Code: "c1", State: begin.State})
	assert.Equal(t, 502, apierr.Status(err))
}

func TestComplete_OrganizationMember(t *testing.T) {
	fx := newFlowFixture(t, models.Organization{Name: "Acme", Domain: "acme.com", ProviderOrgID: "org_acme"})
	fx.provider.ids["c2"] = sso.Identity{Subject: "user_hr", Email: "hr@acme.com", OrganizationID: "org_acme"}
	ctx := context.Background()

	begin, err := fx.flow.Begin(ctx, sso.BeginInput{UserType: sso.UserTypeEmployer, Email: "hr@acme.com"})
	require.NoError(t, err)
	res, err := fx.flow.Complete(ctx, sso.CompleteInput{Code: "c2", State: begin.State})
	require.NoError(t, err)
	assert.Equal(t, models.UserTypeOrganizationMember, res.User.UserType)
	assert.Equal(t, "Acme", res.User.OrganizationName)
	require.NotNil(t, res.User.OrganizationID)
}

func TestComplete_ProviderOrganizationName(t *testing.T) {
	fx := newFlowFixture(t)
	fx.provider.ids["c3"] = sso.Identity{
		Subject:          "user_new",
		Email:            "hr@newco.com",
		OrganizationID:   "org_new",
		OrganizationName: "NewCo",
	}
	ctx := context.Background()

	begin, err := fx.flow.Begin(ctx, sso.BeginInput{UserType: sso.UserTypeEmployer, Email: "hr@newco.com"})
	require.NoError(t, err)
	res, err := fx.flow.Complete(ctx, sso.CompleteInput{Code: "c3", State: begin.State})
	require.NoError(t, err)
	assert.Equal(t, models.UserTypeOrganizationMember, res.User.UserType)
	assert.Equal(t, "org_new", res.User.ProviderOrgID)
	assert.Equal(t, "NewCo", res.User.OrganizationName)
	assert.Nil(t, res.User.OrganizationID)
}

func TestComplete_FirstCallerGoesAway(t *testing.T) {
	fx := newFlowFixture(t)
	fx.provider.release = make(chan struct{})

	begin, err := fx.flow.Begin(context.Background(), sso.BeginInput{UserType: sso.UserTypeJobSeeker})
	require.NoError(t, err)
	in := sso.CompleteInput{Code: "c1", State: begin.State}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = fx.flow.Complete(firstCtx, in)
	}()
	time.Sleep(50 * time.Millisecond)

	var second sso.CompleteResult
	var secondErr error
	go func() {
		defer wg.Done()
		second, secondErr = fx.flow.Complete(context.Background(), in)
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	close(fx.provider.release)
	wg.Wait()

	require.NoError(t, secondErr)
	assert.Equal(t, "seeker@example.com", second.User.Email)
	assert.Equal(t, int32(1), fx.provider.calls.Load())
}

func TestComplete_ConcurrentSameCode(t *testing.T) {
	fx := newFlowFixture(t)
	fx.provider.release = make(chan struct{})
	ctx := context.Background()

	begin, err := fx.flow.Begin(ctx, sso.BeginInput{UserType: sso.UserTypeJobSeeker})
	require.NoError(t, err)

	const n = 8
	results := make([]sso.CompleteResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = fx.flow.Complete(ctx, sso.CompleteInput{Code: "c1", State: begin.State})
		}(i)
	}

	// Let every goroutine join the in-flight exchange before it returns.
	time.Sleep(100 * time.Millisecond)
	close(fx.provider.release)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], "goroutine %d", i)
		assert.Equal(t, results[0].Session.Handle, results[i].Session.Handle)
		assert.Equal(t, results[0].User.ID, results[i].User.ID)
	}
	assert.Equal(t, int32(1), fx.provider.calls.Load())
	assert.Equal(t, 1, fx.users.Len())
}
