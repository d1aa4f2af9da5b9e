// internal/app/store/jobs/jobstore.go
package jobstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/jobhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("job not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("jobs")}
}

// Create inserts a posting. ID, status, and the listing window are set here.
func (s *Store) Create(ctx context.Context, j models.Job) (models.Job, error) {
	now := time.Now().UTC()
	j.ID = primitive.NewObjectID()
	if j.Status == "" {
		j.Status = models.JobStatusActive
	}
	j.PostedAt = now
	j.ExpiresAt = now.Add(models.JobListingPeriod)
	if _, err := s.c.InsertOne(ctx, j); err != nil {
		return models.Job{}, err
	}
	return j, nil
}

// GetByID loads a job by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Job, error) {
	var j models.Job
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&j)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Job{}, ErrNotFound
	}
	return j, err
}

// ListVisible returns every posting that is not hidden, newest first.
func (s *Store) ListVisible(ctx context.Context) ([]models.Job, error) {
	opts := options.Find().SetSort(bson.D{{Key: "posted_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"is_hidden": bson.M{"$ne": true}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	jobs := []models.Job{}
	if err := cur.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// DeleteOwned removes the job only when ownerID owns it. It reports
// whether a document was deleted.
func (s *Store) DeleteOwned(ctx context.Context, id, ownerID primitive.ObjectID) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
