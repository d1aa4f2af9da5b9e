// internal/app/features/companies/handler.go
package companies

import (
	"context"
	"errors"
	"net/http"
	"strings"

	organizationstore "github.com/dalemusser/jobhub/internal/app/store/organizations"
	userstore "github.com/dalemusser/jobhub/internal/app/store/users"
	"github.com/dalemusser/jobhub/internal/app/system/apierr"
	"github.com/dalemusser/jobhub/internal/app/system/auth"
	"github.com/dalemusser/jobhub/internal/app/system/normalize"
	"github.com/dalemusser/jobhub/internal/app/system/timeouts"
	"github.com/dalemusser/jobhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// OrgStore is the organizations persistence used here.
type OrgStore interface {
	Create(ctx context.Context, org models.Organization) (models.Organization, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error)
	SetConnection(ctx context.Context, id primitive.ObjectID, connectionID, providerOrgID string) (models.Organization, error)
}

// MemberStore reads users and records their organization membership.
type MemberStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	SetMembership(ctx context.Context, userID primitive.ObjectID, m userstore.Membership) (models.User, error)
}

// Handler serves company creation and SSO connection setup.
type Handler struct {
	Orgs  OrgStore
	Users MemberStore
	Gate  *auth.Gate
	Log   *zap.Logger
}

// NewHandler constructs the companies Handler.
func NewHandler(orgs OrgStore, users MemberStore, gate *auth.Gate, logger *zap.Logger) *Handler {
	return &Handler{Orgs: orgs, Users: users, Gate: gate, Log: logger}
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /create-company                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

type createRequest struct {
	CompanyName string `json:"companyName"`
	Domain      string `json:"domain"`
}

// handleCreate creates an organization and makes the caller its admin.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request, c auth.Caller) {
	var in createRequest
	if err := apierr.DecodeJSON(w, r, &in); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	name := normalize.Name(in.CompanyName)
	if name == "" {
		apierr.Write(w, h.Log, apierr.New(apierr.ErrMissingParameter, "Company name is required"))
		return
	}
	domain := strings.TrimPrefix(normalize.Email(in.Domain), "@")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByID(ctx, c.UserID)
	if errors.Is(err, userstore.ErrNotFound) {
		apierr.Write(w, h.Log, apierr.ErrUnauthorized)
		return
	}
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	if u.OrganizationID != nil {
		apierr.Write(w, h.Log, apierr.New(apierr.ErrConflict, "User already belongs to a company"))
		return
	}

	org, err := h.Orgs.Create(ctx, models.Organization{
		Name:          name,
		Domain:        domain,
		ProviderOrgID: u.ProviderOrgID,
		CreatedBy:     u.ID,
	})
	if errors.Is(err, organizationstore.ErrDuplicateOrganization) {
		apierr.Write(w, h.Log, apierr.New(apierr.ErrConflict, "Company already exists"))
		return
	}
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	if _, err := h.Users.SetMembership(ctx, u.ID, userstore.Membership{
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		Role:             models.OrgRoleAdmin,
		Company:          models.NewCompanyData(u.Email),
	}); err != nil {
		h.Log.Error("company created but membership failed",
			zap.String("org_id", org.ID.Hex()),
			zap.String("user_id", u.ID.Hex()),
			zap.Error(err))
		apierr.Write(w, h.Log, err)
		return
	}

	h.Log.Info("company created",
		zap.String("org_id", org.ID.Hex()),
		zap.String("name", org.Name),
		zap.String("created_by", u.ID.Hex()))
	apierr.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":      "Company created successfully",
		"organization": org,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| PUT /companies/{id}/connection                                             |
*─────────────────────────────────────────────────────────────────────────────*/

type connectionRequest struct {
	ConnectionID  string `json:"connection_id"`
	ProviderOrgID string `json:"provider_org_id"`
}

// handleSetConnection records the SSO connection an admin configured at the
// provider, enabling direct employer sign-in for the company's domain.
func (h *Handler) handleSetConnection(w http.ResponseWriter, r *http.Request, c auth.Caller) {
	orgID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		apierr.Write(w, h.Log, apierr.New(apierr.ErrInvalidParameter, "Invalid company id"))
		return
	}
	var in connectionRequest
	if err := apierr.DecodeJSON(w, r, &in); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	in.ConnectionID = strings.TrimSpace(in.ConnectionID)
	if in.ConnectionID == "" {
		apierr.Write(w, h.Log, apierr.New(apierr.ErrMissingParameter, "connection_id is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, c.UserID)
	if errors.Is(err, userstore.ErrNotFound) {
		apierr.Write(w, h.Log, apierr.ErrUnauthorized)
		return
	}
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	if u.OrganizationID == nil || *u.OrganizationID != orgID || u.OrgRole != models.OrgRoleAdmin {
		apierr.Write(w, h.Log, apierr.New(apierr.ErrForbidden, "Only company admins can configure sign-in"))
		return
	}

	org, err := h.Orgs.SetConnection(ctx, orgID, in.ConnectionID, strings.TrimSpace(in.ProviderOrgID))
	if errors.Is(err, organizationstore.ErrNotFound) {
		apierr.Write(w, h.Log, apierr.New(apierr.ErrNotFound, "Company not found"))
		return
	}
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	h.Log.Info("company sso connection set",
		zap.String("org_id", org.ID.Hex()),
		zap.String("connection_id", org.ConnectionID))
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"organization": org})
}
