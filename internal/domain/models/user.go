// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User types. A user carrying a provider organization is an organization
// member (employer); everyone else is an individual (job seeker).
const (
	UserTypeIndividual         = "individual"
	UserTypeOrganizationMember = "organization_member"
)

// OrgRoleAdmin marks the user who created (and manages) an organization.
const OrgRoleAdmin = "admin"

// User is the single local account record. Exactly one of
// ProviderSubjectID and PasswordHash is set: federated users sign in through
// the SSO provider, local users with a password.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string             `bson:"email" json:"email"`
	EmailCI   string             `bson:"email_ci" json:"-"` // lowercase, unique
	FirstName string             `bson:"first_name" json:"first_name"`
	LastName  string             `bson:"last_name" json:"last_name"`
	UserType  string             `bson:"user_type" json:"user_type"` // individual | organization_member

	ProviderSubjectID *string `bson:"provider_subject_id,omitempty" json:"provider_subject_id,omitempty"`
	PasswordHash      *string `bson:"password_hash,omitempty" json:"-"`

	ProviderOrgID    string              `bson:"provider_org_id,omitempty" json:"provider_org_id,omitempty"`
	OrganizationID   *primitive.ObjectID `bson:"organization_id,omitempty" json:"organization_id,omitempty"`
	OrganizationName string              `bson:"organization_name,omitempty" json:"organization_name,omitempty"`
	OrgRole          string              `bson:"org_role,omitempty" json:"org_role,omitempty"`

	ProfileCompleted bool `bson:"profile_completed" json:"profile_completed"`

	JobSeeker *JobSeekerProfile `bson:"job_seeker,omitempty" json:"job_seeker,omitempty"`
	Company   *CompanyData      `bson:"company_data,omitempty" json:"company_data,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Federated reports whether the user signs in through the SSO provider.
func (u User) Federated() bool {
	return u.ProviderSubjectID != nil && *u.ProviderSubjectID != ""
}

// IsOrganizationMember reports whether the user acts on behalf of an employer.
func (u User) IsOrganizationMember() bool {
	return u.UserType == UserTypeOrganizationMember
}

// JobSeekerProfile is the empty-by-default profile created for individuals.
type JobSeekerProfile struct {
	Resume              string               `bson:"resume" json:"resume"`
	Skills              []string             `bson:"skills" json:"skills"`
	PreferredJobTypes   []string             `bson:"preferred_job_types" json:"preferred_job_types"`
	PreferredLocations  []string             `bson:"preferred_locations" json:"preferred_locations"`
	ExperienceLevel     string               `bson:"experience_level" json:"experience_level"`
	DesiredSalaryRange  string               `bson:"desired_salary_range" json:"desired_salary_range"`
	JobSearchPreference JobSearchPreferences `bson:"job_search_preferences" json:"job_search_preferences"`
}

// JobSearchPreferences controls job alerts for a job seeker.
type JobSearchPreferences struct {
	AlertFrequency   string   `bson:"alert_frequency" json:"alert_frequency"` // daily | weekly | never
	JobTypes         []string `bson:"job_types" json:"job_types"`
	Locations        []string `bson:"locations" json:"locations"`
	RemotePreference string   `bson:"remote_preference" json:"remote_preference"`
}

// CompanyData is the employer-side profile created for organization members.
type CompanyData struct {
	Logo           string   `bson:"logo" json:"logo"`
	IndustryType   string   `bson:"industry_type" json:"industry_type"`
	CompanySize    string   `bson:"company_size" json:"company_size"`
	Description    string   `bson:"description" json:"description"`
	Website        string   `bson:"website" json:"website"`
	Locations      []string `bson:"locations" json:"locations"`
	PrimaryContact string   `bson:"primary_contact" json:"primary_contact"`
}

// NewJobSeekerProfile returns the profile a new individual starts with.
func NewJobSeekerProfile() *JobSeekerProfile {
	return &JobSeekerProfile{
		Skills:             []string{},
		PreferredJobTypes:  []string{},
		PreferredLocations: []string{},
		JobSearchPreference: JobSearchPreferences{
			AlertFrequency: "daily",
			JobTypes:       []string{},
			Locations:      []string{},
		},
	}
}

// NewCompanyData returns the profile a new organization member starts with.
func NewCompanyData(primaryContact string) *CompanyData {
	return &CompanyData{
		Locations:      []string{},
		PrimaryContact: primaryContact,
	}
}
