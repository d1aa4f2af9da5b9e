// internal/app/features/register/routes.go
package register

import "github.com/go-chi/chi/v5"

// Routes mounts under /register.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleRegister)
	return r
}
