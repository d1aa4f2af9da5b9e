// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/jobhub/internal/app/store/sessions"
	"github.com/dalemusser/jobhub/internal/app/system/auth"
	"github.com/dalemusser/jobhub/internal/app/system/indexes"
	"github.com/dalemusser/jobhub/internal/app/system/timeouts"
	"github.com/dalemusser/jobhub/internal/app/system/validators"
	"github.com/dalemusser/jobhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ConnectDB opens the Mongo client and, for the redis session backend, the
// Redis client. Both are pinged so a bad address fails startup.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().ApplyURI(appCfg.MongoURI)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	if appCfg.MongoMinPoolSize > 0 {
		opts.SetMinPoolSize(appCfg.MongoMinPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Error("MongoDB connect failed", zap.Error(err))
		return DBDeps{}, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		logger.Error("MongoDB ping failed", zap.Error(err))
		return DBDeps{}, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}

	if appCfg.SessionBackend == BackendRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     appCfg.RedisAddr,
			Password: appCfg.RedisPassword,
			DB:       appCfg.RedisDB,
		})
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			_ = client.Disconnect(context.Background())
			logger.Error("Redis ping failed", zap.String("addr", appCfg.RedisAddr), zap.Error(err))
			return DBDeps{}, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("connected to Redis", zap.String("addr", appCfg.RedisAddr))
		deps.Redis = rdb
	}

	deps.Sessions, deps.Sweeper = sessionBackend(appCfg, deps, logger)
	return deps, nil
}

// sessionBackend returns the session store for appCfg.SessionBackend and, for
// backends without native expiry, a sweeper over it.
func sessionBackend(appCfg AppConfig, deps DBDeps, logger *zap.Logger) (auth.SessionStore, *workers.SessionSweeper) {
	switch appCfg.SessionBackend {
	case BackendRedis:
		return sessions.NewRedisStore(deps.Redis), nil
	case BackendMemory:
		s := sessions.NewMemoryStore()
		return s, workers.NewSessionSweeper(s, logger, appCfg.SessionSweepInterval)
	default:
		s := sessions.NewMongoStore(deps.MongoDatabase)
		return s, workers.NewSessionSweeper(s, logger, appCfg.SessionSweepInterval)
	}
}

// EnsureSchema creates collections with their validators, then the indexes
// the stores rely on for uniqueness and expiry.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("collection validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("index setup failed", zap.Error(err))
		return err
	}
	return nil
}
