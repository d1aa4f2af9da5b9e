// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/jobhub/internal/app/system/auth"
	"github.com/dalemusser/jobhub/internal/app/system/workers"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Redis is set only when session_backend=redis.
	Redis redis.UniversalClient

	// Sessions is the backend selected by session_backend. It is built here
	// so the sweeper and the HTTP handlers share one instance.
	Sessions auth.SessionStore

	// Sweeper is nil for backends that expire entries themselves (Redis).
	// It is started in Startup and stopped in Shutdown.
	Sweeper *workers.SessionSweeper
}
