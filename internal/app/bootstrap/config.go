// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/jobhub/internal/app/system/auth"
	"github.com/dalemusser/jobhub/internal/app/system/identity"
	"github.com/dalemusser/jobhub/internal/app/system/sso"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const devSessionKey = "dev-only-change-me-please-0123456789ABCDEF"

// Session backends.
const (
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// appConfigKeys defines the configuration keys for jobhub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: JOBHUB_MONGO_URI, JOBHUB_AUTH_MODE, etc.
//   - Command-line flags: --mongo_uri, --auth_mode, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "jobhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Sessions
	{Name: "session_backend", Default: BackendMongo, Desc: "Session store: 'mongo', 'redis', or 'memory'"},
	{Name: "session_ttl", Default: "168h", Desc: "Session lifetime from sign-in (e.g., 24h, 168h)"},
	{Name: "session_sweep_interval", Default: "10m", Desc: "How often expired sessions are deleted"},
	{Name: "session_key", Default: devSessionKey, Desc: "Session cookie signing key (must be strong in production)"},
	{Name: "session_name", Default: "jobhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	// Credential delivery
	{Name: "auth_mode", Default: auth.ModeCookie, Desc: "How sessions reach clients: 'cookie' or 'bearer'"},
	{Name: "token_secret", Default: "", Desc: "HMAC secret for bearer tokens (required when auth_mode=bearer)"},

	// Redis
	{Name: "redis_addr", Default: "localhost:6379", Desc: "Redis address (session_backend=redis)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	// SSO provider
	{Name: "sso_client_id", Default: "", Desc: "SSO OAuth client ID"},
	{Name: "sso_client_secret", Default: "", Desc: "SSO OAuth client secret"},
	{Name: "sso_redirect_url", Default: "http://localhost:8080/auth/callback", Desc: "Callback URL registered with the provider"},
	{Name: "sso_authorize_url", Default: sso.DefaultAuthorizeURL, Desc: "Provider authorization endpoint"},
	{Name: "sso_token_url", Default: sso.DefaultTokenURL, Desc: "Provider token endpoint"},
	{Name: "sso_issuer", Default: "", Desc: "OIDC issuer; enables id_token verification when set"},
	{Name: "sso_default_provider", Default: "authkit", Desc: "provider= value when no connection is selected"},
	{Name: "sso_state_ttl", Default: "10m", Desc: "Lifetime of a pending sign-in state"},

	{Name: "bcrypt_cost", Default: identity.DefaultBcryptCost, Desc: "bcrypt cost for local passwords"},

	// CORS
	{Name: "cors_allowed_origins", Default: "http://localhost:3000", Desc: "Comma-separated browser origins allowed to call the API"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, JOBHUB_* for app), and flags,
// merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "JOBHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionBackend:       strings.ToLower(strings.TrimSpace(appValues.String("session_backend"))),
		SessionTTL:           appValues.Duration("session_ttl", auth.DefaultSessionTTL),
		SessionSweepInterval: appValues.Duration("session_sweep_interval", 10*time.Minute),
		SessionKey:           appValues.String("session_key"),
		SessionName:          appValues.String("session_name"),
		SessionDomain:        appValues.String("session_domain"),

		AuthMode:    strings.ToLower(strings.TrimSpace(appValues.String("auth_mode"))),
		TokenSecret: appValues.String("token_secret"),

		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),

		SSOClientID:        appValues.String("sso_client_id"),
		SSOClientSecret:    appValues.String("sso_client_secret"),
		SSORedirectURL:     appValues.String("sso_redirect_url"),
		SSOAuthorizeURL:    appValues.String("sso_authorize_url"),
		SSOTokenURL:        appValues.String("sso_token_url"),
		SSOIssuer:          appValues.String("sso_issuer"),
		SSODefaultProvider: appValues.String("sso_default_provider"),
		SSOStateTTL:        appValues.Duration("sso_state_ttl", sso.DefaultStateTTL),

		BcryptCost: appValues.Int("bcrypt_cost"),

		CORSAllowedOrigins: splitOrigins(appValues.String("cors_allowed_origins")),
	}

	return coreCfg, appCfg, nil
}

// splitOrigins parses a comma-separated origin list, dropping blanks and
// trailing slashes.
func splitOrigins(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// ValidateConfig performs app-specific config validation.
//
// It rejects unknown modes and backends, and secrets that are missing for
// the selected mode. In prod the development session key is refused.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database is required")
	}

	switch appCfg.SessionBackend {
	case BackendMongo, BackendMemory:
	case BackendRedis:
		if appCfg.RedisAddr == "" {
			return fmt.Errorf("session_backend=redis requires redis_addr")
		}
	default:
		return fmt.Errorf("unknown session_backend %q (want mongo, redis, or memory)", appCfg.SessionBackend)
	}
	if appCfg.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}

	prod := coreCfg != nil && coreCfg.Env == "prod"
	switch appCfg.AuthMode {
	case auth.ModeCookie:
		if appCfg.SessionKey == "" {
			return fmt.Errorf("auth_mode=cookie requires session_key")
		}
		if prod && appCfg.SessionKey == devSessionKey {
			return fmt.Errorf("session_key must be changed from the development default in prod")
		}
		if prod && appCfg.SessionBackend == BackendMemory {
			logger.Warn("memory session backend in prod; sessions are lost on restart")
		}
	case auth.ModeBearer:
		if appCfg.TokenSecret == "" {
			return fmt.Errorf("auth_mode=bearer requires token_secret")
		}
		if prod && len(appCfg.TokenSecret) < 32 {
			return fmt.Errorf("token_secret must be at least 32 bytes in prod")
		}
	default:
		return fmt.Errorf("unknown auth_mode %q (want cookie or bearer)", appCfg.AuthMode)
	}

	if appCfg.SSOClientID == "" || appCfg.SSOClientSecret == "" || appCfg.SSORedirectURL == "" {
		return fmt.Errorf("sso_client_id, sso_client_secret, and sso_redirect_url are required")
	}
	if appCfg.BcryptCost < bcrypt.MinCost || appCfg.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	return nil
}
