// internal/app/store/organizations/organizationstore.go
package organizationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/jobhub/internal/app/system/normalize"
	"github.com/dalemusser/jobhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrDuplicateOrganization = errors.New("an organization with this name or domain already exists")
	ErrNotFound              = errors.New("organization not found")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("organizations")}
}

func (s *Store) Create(ctx context.Context, org models.Organization) (models.Organization, error) {
	now := time.Now().UTC()
	org.ID = primitive.NewObjectID()
	org.Name = normalize.Name(org.Name)
	org.NameCI = text.Fold(org.Name)
	org.Domain = normalize.Email(org.Domain)
	org.CreatedAt = now
	org.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, org)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Organization{}, ErrDuplicateOrganization
		}
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByDomain finds the organization that owns an email domain.
func (s *Store) GetByDomain(ctx context.Context, domain string) (models.Organization, error) {
	if domain == "" {
		return models.Organization{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"domain": normalize.Email(domain)})
}

// GetByProviderOrgID finds the local organization linked to a provider org.
func (s *Store) GetByProviderOrgID(ctx context.Context, providerOrgID string) (models.Organization, error) {
	if providerOrgID == "" {
		return models.Organization{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"provider_org_id": providerOrgID})
}

// SetConnection records the provider connection (and optionally the
// provider organization) once SSO setup for the organization is complete.
func (s *Store) SetConnection(ctx context.Context, id primitive.ObjectID, connectionID, providerOrgID string) (models.Organization, error) {
	set := bson.M{
		"connection_id": connectionID,
		"updated_at":    time.Now().UTC(),
	}
	if providerOrgID != "" {
		set["provider_org_id"] = providerOrgID
	}

	var org models.Organization
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&org)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Organization{}, ErrNotFound
	}
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, filter).Decode(&org)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Organization{}, ErrNotFound
	}
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}
