// Package sessions holds the server-side session record and its storage
// backends. All backends share the same contract: Get returns ErrNotFound
// for unknown or expired handles and Delete of an unknown handle is a no-op.
package sessions

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Session binds an opaque handle to a user until ExpiresAt.
type Session struct {
	Handle    string             `bson:"_id" json:"handle"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func validate(sess Session) error {
	if sess.Handle == "" {
		return errors.New("session handle cannot be empty")
	}
	if sess.UserID.IsZero() {
		return errors.New("session user id cannot be empty")
	}
	return nil
}
