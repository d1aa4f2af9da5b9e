// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
//
// jobhub starts the expired-session sweeper here for backends that need one.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Sweeper != nil {
		deps.Sweeper.Start()
	}
	logger.Info("authentication configured",
		zap.String("auth_mode", appCfg.AuthMode),
		zap.String("session_backend", appCfg.SessionBackend),
		zap.Duration("session_ttl", appCfg.SessionTTL),
		zap.Bool("id_token_verification", appCfg.SSOIssuer != ""))
	return nil
}
