// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// Values come from environment variables (JOBHUB_*), configuration files,
// or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig keeps
// the framework-level settings: ports, TLS, log level, and request limits.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session storage and lifetime
	SessionBackend       string        // "mongo", "redis", or "memory"
	SessionTTL           time.Duration // lifetime of a session from sign-in
	SessionSweepInterval time.Duration // how often expired sessions are removed

	// Cookie mechanism (auth_mode=cookie)
	SessionKey    string // signs and encrypts the session cookie
	SessionName   string // cookie name (default: jobhub-session)
	SessionDomain string // blank means current host

	// Bearer mechanism (auth_mode=bearer)
	AuthMode    string // "cookie" or "bearer"
	TokenSecret string // HMAC key for issued tokens

	// Redis (session_backend=redis)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// SSO provider
	SSOClientID        string
	SSOClientSecret    string
	SSORedirectURL     string
	SSOAuthorizeURL    string
	SSOTokenURL        string
	SSOIssuer          string // enables id_token verification when set
	SSODefaultProvider string
	SSOStateTTL        time.Duration

	// Passwords
	BcryptCost int

	// Browser origins allowed to call the API with credentials.
	CORSAllowedOrigins []string
}
