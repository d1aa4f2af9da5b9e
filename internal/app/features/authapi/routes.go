// internal/app/features/authapi/routes.go
package authapi

import "github.com/go-chi/chi/v5"

// Routes mounts under /auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/login", h.ServeLogin)
	r.Post("/login", h.HandlePasswordLogin)
	r.Get("/callback", h.ServeCallback)
	r.Post("/logout", h.HandleLogout)
	r.Get("/user", h.Gate.Protect(h.serveUser))
	r.Get("/session", h.ServeSession)
	return r
}
