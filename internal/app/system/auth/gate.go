// internal/app/system/auth/gate.go
package auth

import (
	"net/http"

	"github.com/dalemusser/jobhub/internal/app/system/apierr"
	"go.uber.org/zap"
)

// ProtectedFunc is a handler that only runs for an authenticated caller.
type ProtectedFunc func(w http.ResponseWriter, r *http.Request, c Caller)

// Gate admits requests carrying a live session.
type Gate struct {
	Mech Mechanism
	Log  *zap.Logger
}

// NewGate returns a Gate over mech.
func NewGate(mech Mechanism, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{Mech: mech, Log: logger}
}

// Protect wraps body so it runs only when the request resolves to a caller.
// Otherwise the response is 401 {"error":"Unauthorized"} and body never runs.
func (g *Gate) Protect(body ProtectedFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok, err := g.Mech.ResolveCaller(r)
		if err != nil {
			apierr.Write(w, g.Log.With(zap.String("path", r.URL.Path)), err)
			return
		}
		if !ok {
			apierr.Write(w, g.Log, apierr.ErrUnauthorized)
			return
		}
		body(w, r, c)
	}
}
