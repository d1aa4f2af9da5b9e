// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/jobhub/internal/app/system/normalize"
	"github.com/dalemusser/jobhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when a write collides with the unique email
	// or provider subject index.
	ErrDuplicate = errors.New("a user with this email or identity already exists")
)

// FederatedProfile is the provider-sourced portion of a user that is
// refreshed on every SSO sign-in.
type FederatedProfile struct {
	Email            string
	FirstName        string
	LastName         string
	UserType         string
	ProviderOrgID    string
	OrganizationID   *primitive.ObjectID
	OrganizationName string
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOne(ctx, bson.M{"email_ci": normalize.Email(email)})
}

// GetBySubject looks up a federated user by provider subject id.
func (s *Store) GetBySubject(ctx context.Context, subject string) (models.User, error) {
	return s.findOne(ctx, bson.M{"provider_subject_id": subject})
}

// UpdateBySubject refreshes the federated profile of the user owning
// subject and returns the updated record.
func (s *Store) UpdateBySubject(ctx context.Context, subject string, p FederatedProfile) (models.User, error) {
	return s.updateProfile(ctx, bson.M{"provider_subject_id": subject}, p, nil)
}

// AttachByEmail links subject to the local (not yet federated) user whose
// email matches p.Email. The password hash is removed in the same update so
// a user is never both local and federated.
func (s *Store) AttachByEmail(ctx context.Context, subject string, p FederatedProfile) (models.User, error) {
	return s.updateProfile(ctx,
		bson.M{"email_ci": normalize.Email(p.Email), "provider_subject_id": nil},
		p, &subject,
	)
}

// updateProfile applies p to the user matching filter. A profile without a
// provider organization demotes the user to individual only when no local
// organization membership exists; members of a locally created organization
// keep their membership.
func (s *Store) updateProfile(ctx context.Context, filter bson.M, p FederatedProfile, attach *string) (models.User, error) {
	if p.UserType == models.UserTypeOrganizationMember {
		return s.findOneAndUpdate(ctx, filter, profileUpdate(p, attach, false))
	}

	u, err := s.findOneAndUpdate(ctx, withFilter(filter, "organization_id", nil), profileUpdate(p, attach, false))
	if !errors.Is(err, ErrNotFound) {
		return u, err
	}
	// organization_id is never cleared, so a miss above means it is set.
	return s.findOneAndUpdate(ctx,
		withFilter(filter, "organization_id", bson.M{"$ne": nil}),
		profileUpdate(p, attach, true),
	)
}

func withFilter(filter bson.M, key string, v any) bson.M {
	out := bson.M{key: v}
	for k, fv := range filter {
		out[k] = fv
	}
	return out
}

// Insert stores a new user. ID, EmailCI and timestamps are filled in.
func (s *Store) Insert(ctx context.Context, u models.User) (models.User, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.Email = normalize.Email(u.Email)
	u.EmailCI = u.Email
	u.FirstName = normalize.Name(u.FirstName)
	u.LastName = normalize.Name(u.LastName)
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, err
	}
	return u, nil
}

// Membership links a user to a locally provisioned organization.
type Membership struct {
	OrganizationID   primitive.ObjectID
	OrganizationName string
	Role             string
	Company          *models.CompanyData // set only when the user has none
}

// SetMembership makes the user an organization member of m.OrganizationID.
func (s *Store) SetMembership(ctx context.Context, userID primitive.ObjectID, m Membership) (models.User, error) {
	set := bson.M{
		"user_type":         models.UserTypeOrganizationMember,
		"organization_id":   m.OrganizationID,
		"organization_name": m.OrganizationName,
		"org_role":          m.Role,
		"updated_at":        time.Now().UTC(),
	}
	u, err := s.findOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil || m.Company == nil || u.Company != nil {
		return u, err
	}
	withCompany, err := s.findOneAndUpdate(ctx,
		bson.M{"_id": userID, "company_data": nil},
		bson.M{"$set": bson.M{"company_data": m.Company}},
	)
	if errors.Is(err, ErrNotFound) {
		return u, nil
	}
	return withCompany, err
}

// profileUpdate builds the update for p. keepMembership leaves the user's
// local organization membership untouched.
func profileUpdate(p FederatedProfile, attach *string, keepMembership bool) bson.M {
	email := normalize.Email(p.Email)
	set := bson.M{
		"email":      email,
		"email_ci":   email,
		"first_name": normalize.Name(p.FirstName),
		"last_name":  normalize.Name(p.LastName),
		"updated_at": time.Now().UTC(),
	}
	unset := bson.M{}
	switch {
	case keepMembership:
		unset["provider_org_id"] = ""
	case p.UserType == models.UserTypeOrganizationMember:
		set["user_type"] = p.UserType
		set["provider_org_id"] = p.ProviderOrgID
		if p.OrganizationName != "" {
			set["organization_name"] = p.OrganizationName
		}
		if p.OrganizationID != nil {
			set["organization_id"] = *p.OrganizationID
		}
	default:
		set["user_type"] = p.UserType
		unset["provider_org_id"] = ""
		unset["organization_name"] = ""
		unset["org_role"] = ""
	}
	if attach != nil {
		set["provider_subject_id"] = *attach
		unset["password_hash"] = ""
	}

	upd := bson.M{"$set": set}
	if len(unset) > 0 {
		upd["$unset"] = unset
	}
	return upd
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter, update bson.M) (models.User, error) {
	var u models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u); err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return models.User{}, ErrNotFound
		case wafflemongo.IsDup(err):
			return models.User{}, ErrDuplicate
		}
		return models.User{}, err
	}
	return u, nil
}
