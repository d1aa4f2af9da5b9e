// Package apierr defines the error kinds the API surfaces to clients and
// renders them as JSON bodies of the form {"error": "<message>"}.
//
// Components return one of the sentinel kinds (optionally wrapped with a
// user-facing message via New); handlers hand any error to Write, which
// picks the status code from the kind. Errors that match no kind are
// logged and answered with a generic 500.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Error kinds.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrUnauthorized        = errors.New("Unauthorized")
	ErrInvalidCredentials  = errors.New("Invalid email or password")
	ErrDuplicateEmail      = errors.New("User already exists")
	ErrMissingParameter    = errors.New("missing parameter")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrExchangeFailed      = errors.New("authorization code exchange failed")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrIdentityConflict    = errors.New("email is linked to a different identity")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrRateLimited         = errors.New("too many requests")
)

var statusByKind = []struct {
	kind   error
	status int
}{
	{ErrInvalidToken, http.StatusUnauthorized},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrInvalidCredentials, http.StatusUnauthorized},
	{ErrDuplicateEmail, http.StatusConflict},
	{ErrIdentityConflict, http.StatusConflict},
	{ErrConflict, http.StatusConflict},
	{ErrMissingParameter, http.StatusBadRequest},
	{ErrInvalidParameter, http.StatusBadRequest},
	{ErrExchangeFailed, http.StatusBadRequest},
	{ErrProviderUnavailable, http.StatusBadGateway},
	{ErrForbidden, http.StatusForbidden},
	{ErrNotFound, http.StatusNotFound},
	{ErrRateLimited, http.StatusTooManyRequests},
}

// Error pairs a kind with the message shown to the client.
type Error struct {
	Kind error
	Msg  string
	Err  error // underlying cause, logged but never shown
}

// New returns an error of the given kind carrying msg as its client message.
func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap is New with an underlying cause attached for logging.
func Wrap(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Is matches the error's kind so errors.Is(err, ErrX) works.
func (e *Error) Is(target error) bool { return e.Kind == target }

// Unwrap exposes the cause.
func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status for err, or 500 when err matches no kind.
func Status(err error) int {
	for _, sk := range statusByKind {
		if errors.Is(err, sk.kind) {
			return sk.status
		}
	}
	return http.StatusInternalServerError
}

// Message returns the client-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	for _, sk := range statusByKind {
		if errors.Is(err, sk.kind) {
			return sk.kind.Error()
		}
	}
	return "internal server error"
}

// Write renders err as {"error": msg} with the matching status code.
func Write(w http.ResponseWriter, log *zap.Logger, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		log.Error("unhandled error", zap.Error(err))
	} else if status >= 500 {
		log.Warn("upstream failure", zap.Int("status", status), zap.Error(err))
	}
	WriteJSON(w, status, map[string]string{"error": Message(err)})
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// DecodeJSON reads a JSON request body into dst. Malformed or oversized
// bodies yield ErrInvalidParameter.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return Wrap(ErrInvalidParameter, "Invalid JSON body", err)
	}
	return nil
}
