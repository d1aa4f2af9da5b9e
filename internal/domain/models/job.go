// internal/domain/models/job.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Job statuses.
const (
	JobStatusDraft   = "draft"
	JobStatusActive  = "active"
	JobStatusExpired = "expired"
)

// JobListingPeriod is how long a posting stays active before it expires.
const JobListingPeriod = 30 * 24 * time.Hour

// Job is a posting owned by the organization member who created it.
type Job struct {
	ID               primitive.ObjectID  `bson:"_id" json:"id"`
	Title            string              `bson:"title" json:"title"`
	Description      string              `bson:"description" json:"description"` // sanitized HTML
	Company          JobCompany          `bson:"company" json:"company"`
	Type             string              `bson:"type" json:"type"` // full-time | part-time | contract | internship
	Location         string              `bson:"location" json:"location"`
	RemotePreference string              `bson:"remote_preference,omitempty" json:"remote_preference,omitempty"`
	ExperienceLevel  string              `bson:"experience_level,omitempty" json:"experience_level,omitempty"`
	Salary           *Salary             `bson:"salary,omitempty" json:"salary,omitempty"`
	Status           string              `bson:"status" json:"status"`
	OwnerID          primitive.ObjectID  `bson:"owner_id" json:"owner_id"`
	OrganizationID   *primitive.ObjectID `bson:"organization_id,omitempty" json:"organization_id,omitempty"`
	PostedAt         time.Time           `bson:"posted_at" json:"posted_at"`
	ExpiresAt        time.Time           `bson:"expires_at" json:"expires_at"`
	ExtensionsUsed   int                 `bson:"extensions_used" json:"extensions_used"`
	IsHidden         bool                `bson:"is_hidden" json:"is_hidden"`
}

// JobCompany is the denormalized company shown on a posting.
type JobCompany struct {
	Name string `bson:"name" json:"name"`
	Logo string `bson:"logo,omitempty" json:"logo,omitempty"`
}

// Salary is an optional advertised range.
type Salary struct {
	Min      int    `bson:"min" json:"min"`
	Max      int    `bson:"max" json:"max"`
	Currency string `bson:"currency" json:"currency"`
}
