// internal/app/store/sessions/mongostore.go
package sessions

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStore keeps sessions in the "sessions" collection. The TTL index on
// expires_at (see indexes.EnsureAll) removes them after expiry; Get also
// checks expiry because TTL reaping runs only about once a minute.
type MongoStore struct {
	c *mongo.Collection
}

// NewMongoStore creates a sessions store on db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{c: db.Collection("sessions")}
}

func (s *MongoStore) Save(ctx context.Context, sess Session) error {
	if err := validate(sess); err != nil {
		return err
	}
	_, err := s.c.InsertOne(ctx, sess)
	return err
}

func (s *MongoStore) Get(ctx context.Context, handle string) (Session, error) {
	if handle == "" {
		return Session{}, ErrNotFound
	}
	var sess Session
	err := s.c.FindOne(ctx, bson.M{"_id": handle, "expires_at": bson.M{"$gt": time.Now().UTC()}}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *MongoStore) Delete(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": handle})
	return err
}

// DeleteExpired removes sessions past expires_at without waiting for the
// TTL monitor.
func (s *MongoStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
