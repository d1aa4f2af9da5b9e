// internal/app/store/logins/loginstore.go
package loginstore

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/jobhub/internal/app/system/ratelimit"
	"github.com/dalemusser/jobhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("login_records")}
}

// Create inserts a LoginRecord. If CreatedAt is zero, it's set to time.Now().UTC().
func (s *Store) Create(ctx context.Context, rec models.LoginRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, rec)
	return err
}

// Record builds a LoginRecord for u from the HTTP request and inserts it.
// The client IP honors X-Forwarded-For and X-Real-IP.
func (s *Store) Record(ctx context.Context, r *http.Request, u models.User, method string) error {
	return s.Create(ctx, models.LoginRecord{
		UserID:        u.ID,
		Method:        method,
		ProviderOrgID: u.ProviderOrgID,
		IP:            ratelimit.ClientIP(r),
		UserAgent:     r.UserAgent(),
	})
}
