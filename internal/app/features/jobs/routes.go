// internal/app/features/jobs/routes.go
package jobs

import "github.com/go-chi/chi/v5"

// Routes mounts under /jobs.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.serveList)
	r.Post("/", h.Gate.Protect(h.handleCreate))
	r.Delete("/", h.Gate.Protect(h.handleDelete))
	r.Delete("/{id}", h.Gate.Protect(h.handleDelete))
	return r
}
