// internal/app/features/companies/routes.go
package companies

import "github.com/go-chi/chi/v5"

// CreateRoutes mounts under /create-company.
func CreateRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Gate.Protect(h.handleCreate))
	return r
}

// Routes mounts under /companies.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Put("/{id}/connection", h.Gate.Protect(h.handleSetConnection))
	return r
}
