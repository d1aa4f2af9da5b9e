// internal/app/features/jobs/handler.go
package jobs

import (
	"context"
	"errors"
	"net/http"
	"strings"

	userstore "github.com/dalemusser/jobhub/internal/app/store/users"
	"github.com/dalemusser/jobhub/internal/app/system/apierr"
	"github.com/dalemusser/jobhub/internal/app/system/auth"
	"github.com/dalemusser/jobhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/jobhub/internal/app/system/timeouts"
	"github.com/dalemusser/jobhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Store is the jobs persistence. *jobstore.Store implements it.
type Store interface {
	Create(ctx context.Context, j models.Job) (models.Job, error)
	ListVisible(ctx context.Context) ([]models.Job, error)
	DeleteOwned(ctx context.Context, id, ownerID primitive.ObjectID) (bool, error)
}

// UserFetcher loads the caller's account.
type UserFetcher interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
}

type Handler struct {
	Jobs  Store
	Users UserFetcher
	Gate  *auth.Gate
	Log   *zap.Logger
}

func NewHandler(jobs Store, users UserFetcher, gate *auth.Gate, logger *zap.Logger) *Handler {
	return &Handler{Jobs: jobs, Users: users, Gate: gate, Log: logger}
}

var jobTypes = map[string]bool{
	"full-time":  true,
	"part-time":  true,
	"contract":   true,
	"internship": true,
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /jobs                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) serveList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	jobs, err := h.Jobs.ListVisible(ctx)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /jobs                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

type createRequest struct {
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Type             string         `json:"type"`
	Location         string         `json:"location"`
	RemotePreference string         `json:"remote_preference"`
	ExperienceLevel  string         `json:"experience_level"`
	Salary           *models.Salary `json:"salary"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request, c auth.Caller) {
	var in createRequest
	if err := apierr.DecodeJSON(w, r, &in); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	job := models.Job{
		Title:            htmlsanitize.Plain(in.Title),
		Description:      htmlsanitize.Sanitize(strings.TrimSpace(in.Description)),
		Type:             strings.ToLower(htmlsanitize.Plain(in.Type)),
		Location:         htmlsanitize.Plain(in.Location),
		RemotePreference: htmlsanitize.Plain(in.RemotePreference),
		ExperienceLevel:  htmlsanitize.Plain(in.ExperienceLevel),
		Salary:           in.Salary,
		OwnerID:          c.UserID,
	}
	switch {
	case job.Title == "":
		apierr.Write(w, h.Log, apierr.New(apierr.ErrMissingParameter, "Title is required"))
		return
	case job.Description == "":
		apierr.Write(w, h.Log, apierr.New(apierr.ErrMissingParameter, "Description is required"))
		return
	case job.Type != "" && !jobTypes[job.Type]:
		apierr.Write(w, h.Log, apierr.New(apierr.ErrInvalidParameter, "Invalid job type"))
		return
	case job.Salary != nil && (job.Salary.Min < 0 || job.Salary.Max < job.Salary.Min):
		apierr.Write(w, h.Log, apierr.New(apierr.ErrInvalidParameter, "Invalid salary range"))
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
	if !u.IsOrganizationMember() {
		apierr.Write(w, h.Log, apierr.New(apierr.ErrForbidden, "Only employers can post jobs"))
		return
	}
	job.OrganizationID = u.OrganizationID
	job.Company = models.JobCompany{Name: u.OrganizationName}
	if u.Company != nil {
		job.Company.Logo = u.Company.Logo
	}

	job, err = h.Jobs.Create(ctx, job)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	h.Log.Info("job posted", zap.String("job_id", job.ID.Hex()), zap.String("owner_id", c.UserID.Hex()))
	apierr.WriteJSON(w, http.StatusCreated, map[string]any{"job": job})
}

/*─────────────────────────────────────────────────────────────────────────────*
| DELETE /jobs/{id}                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

// handleDelete removes a posting the caller owns. The id may come from the
// path or from ?id= for older clients.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, c auth.Caller) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		raw = r.URL.Query().Get("id")
	}
	if raw == "" {
		apierr.Write(w, h.Log, apierr.New(apierr.ErrMissingParameter, "No job ID provided"))
		return
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		apierr.Write(w, h.Log, apierr.New(apierr.ErrInvalidParameter, "Invalid job ID"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	deleted, err := h.Jobs.DeleteOwned(ctx, id, c.UserID)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	if deleted {
		h.Log.Info("job deleted", zap.String("job_id", id.Hex()), zap.String("owner_id", c.UserID.Hex()))
	}
	apierr.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}
