// internal/app/store/oauthstate/store.go
package oauthstate

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when a state is unknown, expired, or already used.
var ErrNotFound = errors.New("oauth state not found")

// State is a pending SSO sign-in, stored for CSRF protection and to carry
// the nonce and requested user type through the provider round-trip.
type State struct {
	State     string    `bson:"state"`
	UserType  string    `bson:"user_type,omitempty"`
	Nonce     string    `bson:"nonce,omitempty"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// Store manages OAuth2 state tokens in MongoDB.
type Store struct {
	c *mongo.Collection
}

// New creates a new OAuth state Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("oauth_states")}
}

// Save stores st. CreatedAt is filled in when empty.
func (s *Store) Save(ctx context.Context, st State) error {
	if st.State == "" {
		return errors.New("state cannot be empty")
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, st)
	return err
}

// Consume returns the unexpired state and deletes it, so each state can be
// used at most once.
func (s *Store) Consume(ctx context.Context, state string) (State, error) {
	if state == "" {
		return State{}, ErrNotFound
	}
	var st State
	err := s.c.FindOneAndDelete(ctx, bson.M{
		"state":      state,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&st)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, err
	}
	return st, nil
}
