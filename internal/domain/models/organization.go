// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization is an employer. Domain is the lowercase email domain used to
// route employer sign-ins; ConnectionID is filled in once an admin finishes
// SSO setup with the provider.
type Organization struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	Name          string             `bson:"name" json:"name"`
	NameCI        string             `bson:"name_ci" json:"-"` // ← always stored
	Domain        string             `bson:"domain,omitempty" json:"domain,omitempty"`
	ConnectionID  string             `bson:"connection_id,omitempty" json:"connection_id,omitempty"`
	ProviderOrgID string             `bson:"provider_org_id,omitempty" json:"provider_org_id,omitempty"`
	CreatedBy     primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}
