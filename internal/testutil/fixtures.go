package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/jobhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateOrganization inserts an organization routed by domain. connectionID
// may be empty to model an organization whose SSO setup is unfinished.
func (f *Fixtures) CreateOrganization(ctx context.Context, name, domain, connectionID string) models.Organization {
	f.t.Helper()

	now := time.Now().UTC()
	org := models.Organization{
		ID:           primitive.NewObjectID(),
		Name:         name,
		NameCI:       text.Fold(name),
		Domain:       domain,
		ConnectionID: connectionID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("organizations").InsertOne(ctx, org); err != nil {
		f.t.Fatalf("CreateOrganization(%q): %v", name, err)
	}
	return org
}

// CreateLocalUser inserts a password-based individual user.
func (f *Fixtures) CreateLocalUser(ctx context.Context, email, password string) models.User {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}
	h := string(hash)
	return f.insertUser(ctx, models.User{
		Email:        email,
		EmailCI:      email,
		FirstName:    "Local",
		LastName:     "User",
		UserType:     models.UserTypeIndividual,
		PasswordHash: &h,
		JobSeeker:    models.NewJobSeekerProfile(),
	})
}

// CreateFederatedUser inserts a user linked to a provider subject.
func (f *Fixtures) CreateFederatedUser(ctx context.Context, email, subject string) models.User {
	f.t.Helper()

	return f.insertUser(ctx, models.User{
		Email:             email,
		EmailCI:           email,
		FirstName:         "Federated",
		LastName:          "User",
		UserType:          models.UserTypeIndividual,
		ProviderSubjectID: &subject,
		JobSeeker:         models.NewJobSeekerProfile(),
	})
}

func (f *Fixtures) insertUser(ctx context.Context, u models.User) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("insert user %q: %v", u.Email, err)
	}
	return u
}
