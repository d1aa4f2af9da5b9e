package testutil

import (
	"context"
	"sync"
	"time"

	organizationstore "github.com/dalemusser/jobhub/internal/app/store/organizations"
	userstore "github.com/dalemusser/jobhub/internal/app/store/users"
	"github.com/dalemusser/jobhub/internal/app/system/normalize"
	"github.com/dalemusser/jobhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryUsers is an in-memory users store that enforces the same unique
// constraints as the Mongo indexes (email_ci, provider_subject_id). Each
// method is atomic, mirroring single-document operations.
type MemoryUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User

	// Calls counts invocations by method name.
	Calls map[string]int
}

// NewMemoryUsers returns an empty MemoryUsers.
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: map[primitive.ObjectID]models.User{}, Calls: map[string]int{}}
}

// Len returns the number of stored users.
func (m *MemoryUsers) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// All returns a snapshot of every stored user.
func (m *MemoryUsers) All() []models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out
}

func (m *MemoryUsers) GetByID(_ context.Context, id primitive.ObjectID) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["GetByID"]++
	u, ok := m.users[id]
	if !ok {
		return models.User{}, userstore.ErrNotFound
	}
	return u, nil
}

func (m *MemoryUsers) GetByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["GetByEmail"]++
	if u, ok := m.byEmail(normalize.Email(email)); ok {
		return u, nil
	}
	return models.User{}, userstore.ErrNotFound
}

func (m *MemoryUsers) UpdateBySubject(_ context.Context, subject string, p userstore.FederatedProfile) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["UpdateBySubject"]++
	for id, u := range m.users {
		if u.ProviderSubjectID != nil && *u.ProviderSubjectID == subject {
			if other, ok := m.byEmail(normalize.Email(p.Email)); ok && other.ID != id {
				return models.User{}, userstore.ErrDuplicate
			}
			u = applyProfile(u, p)
			m.users[id] = u
			return u, nil
		}
	}
	return models.User{}, userstore.ErrNotFound
}

func (m *MemoryUsers) AttachByEmail(_ context.Context, subject string, p userstore.FederatedProfile) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["AttachByEmail"]++
	u, ok := m.byEmail(normalize.Email(p.Email))
	if !ok || u.ProviderSubjectID != nil {
		return models.User{}, userstore.ErrNotFound
	}
	if m.hasSubject(subject) {
		return models.User{}, userstore.ErrDuplicate
	}
	u = applyProfile(u, p)
	s := subject
	u.ProviderSubjectID = &s
	u.PasswordHash = nil
	m.users[u.ID] = u
	return u, nil
}

func (m *MemoryUsers) Insert(_ context.Context, u models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["Insert"]++
	u.Email = normalize.Email(u.Email)
	u.EmailCI = u.Email
	if _, ok := m.byEmail(u.EmailCI); ok {
		return models.User{}, userstore.ErrDuplicate
	}
	if u.ProviderSubjectID != nil && m.hasSubject(*u.ProviderSubjectID) {
		return models.User{}, userstore.ErrDuplicate
	}
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.CreatedAt = now
	u.UpdatedAt = now
	m.users[u.ID] = u
	return u, nil
}

func (m *MemoryUsers) SetMembership(_ context.Context, userID primitive.ObjectID, ms userstore.Membership) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["SetMembership"]++
	u, ok := m.users[userID]
	if !ok {
		return models.User{}, userstore.ErrNotFound
	}
	id := ms.OrganizationID
	u.UserType = models.UserTypeOrganizationMember
	u.OrganizationID = &id
	u.OrganizationName = ms.OrganizationName
	u.OrgRole = ms.Role
	if u.Company == nil {
		u.Company = ms.Company
	}
	m.users[userID] = u
	return u, nil
}

func (m *MemoryUsers) byEmail(emailCI string) (models.User, bool) {
	for _, u := range m.users {
		if u.EmailCI == emailCI {
			return u, true
		}
	}
	return models.User{}, false
}

func (m *MemoryUsers) hasSubject(subject string) bool {
	for _, u := range m.users {
		if u.ProviderSubjectID != nil && *u.ProviderSubjectID == subject {
			return true
		}
	}
	return false
}

func applyProfile(u models.User, p userstore.FederatedProfile) models.User {
	u.Email = normalize.Email(p.Email)
	u.EmailCI = u.Email
	u.FirstName = p.FirstName
	u.LastName = p.LastName
	switch {
	case p.UserType == models.UserTypeOrganizationMember:
		u.UserType = p.UserType
		u.ProviderOrgID = p.ProviderOrgID
		if p.OrganizationName != "" {
			u.OrganizationName = p.OrganizationName
		}
		if p.OrganizationID != nil {
			u.OrganizationID = p.OrganizationID
		}
	case u.OrganizationID != nil:
		// Local organization membership outlives provider sign-ins.
		u.ProviderOrgID = ""
	default:
		u.UserType = p.UserType
		u.ProviderOrgID = ""
		u.OrganizationName = ""
		u.OrgRole = ""
	}
	u.UpdatedAt = time.Now().UTC()
	return u
}

// MemoryOrgs is an in-memory organizations store keyed like the Mongo one.
type MemoryOrgs struct {
	mu   sync.Mutex
	orgs map[primitive.ObjectID]models.Organization
}

// NewMemoryOrgs returns a MemoryOrgs holding orgs.
func NewMemoryOrgs(orgs ...models.Organization) *MemoryOrgs {
	m := &MemoryOrgs{orgs: map[primitive.ObjectID]models.Organization{}}
	for _, o := range orgs {
		if o.ID.IsZero() {
			o.ID = primitive.NewObjectID()
		}
		m.orgs[o.ID] = o
	}
	return m
}

func (m *MemoryOrgs) Create(_ context.Context, org models.Organization) (models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org.Name = normalize.Name(org.Name)
	org.Domain = normalize.Email(org.Domain)
	for _, o := range m.orgs {
		if normalize.Email(o.Name) == normalize.Email(org.Name) || (org.Domain != "" && o.Domain == org.Domain) {
			return models.Organization{}, organizationstore.ErrDuplicateOrganization
		}
	}
	now := time.Now().UTC()
	org.ID = primitive.NewObjectID()
	org.CreatedAt = now
	org.UpdatedAt = now
	m.orgs[org.ID] = org
	return org, nil
}

func (m *MemoryOrgs) GetByID(_ context.Context, id primitive.ObjectID) (models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orgs[id]; ok {
		return o, nil
	}
	return models.Organization{}, organizationstore.ErrNotFound
}

func (m *MemoryOrgs) GetByDomain(_ context.Context, domain string) (models.Organization, error) {
	return m.find(func(o models.Organization) bool { return domain != "" && o.Domain == normalize.Email(domain) })
}

func (m *MemoryOrgs) GetByProviderOrgID(_ context.Context, providerOrgID string) (models.Organization, error) {
	return m.find(func(o models.Organization) bool { return providerOrgID != "" && o.ProviderOrgID == providerOrgID })
}

func (m *MemoryOrgs) SetConnection(_ context.Context, id primitive.ObjectID, connectionID, providerOrgID string) (models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[id]
	if !ok {
		return models.Organization{}, organizationstore.ErrNotFound
	}
	o.ConnectionID = connectionID
	if providerOrgID != "" {
		o.ProviderOrgID = providerOrgID
	}
	m.orgs[id] = o
	return o, nil
}

func (m *MemoryOrgs) find(match func(models.Organization) bool) (models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orgs {
		if match(o) {
			return o, nil
		}
	}
	return models.Organization{}, organizationstore.ErrNotFound
}
