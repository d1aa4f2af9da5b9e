// internal/app/features/register/handler.go
package register

import (
	"context"
	"net/http"

	"github.com/dalemusser/jobhub/internal/app/system/apierr"
	"github.com/dalemusser/jobhub/internal/app/system/identity"
	"github.com/dalemusser/jobhub/internal/app/system/ratelimit"
	"github.com/dalemusser/jobhub/internal/app/system/timeouts"
	"github.com/dalemusser/jobhub/internal/domain/models"
	"go.uber.org/zap"
)

// Registrar creates local accounts. *identity.Reconciler implements it.
type Registrar interface {
	RegisterLocal(ctx context.Context, reg identity.LocalRegistration) (models.User, error)
}

// Handler serves POST /register.
type Handler struct {
	Accounts Registrar
	Limiter  *ratelimit.LoginLimiter
	Log      *zap.Logger
}

// NewHandler constructs the registration Handler. limiter may be nil.
func NewHandler(accounts Registrar, limiter *ratelimit.LoginLimiter, logger *zap.Logger) *Handler {
	return &Handler{Accounts: accounts, Limiter: limiter, Log: logger}
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// HandleRegister creates a password account. It does not sign the user in.
//
//	201 {"message":"User registered successfully"}
//	409 {"error":"User already exists"}
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := apierr.DecodeJSON(w, r, &in); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	if err := h.Limiter.Check(r, in.Email); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Accounts.RegisterLocal(ctx, identity.LocalRegistration{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	apierr.WriteJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}
