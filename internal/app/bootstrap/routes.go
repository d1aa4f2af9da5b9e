// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"net/http"

	authapifeature "github.com/dalemusser/jobhub/internal/app/features/authapi"
	companiesfeature "github.com/dalemusser/jobhub/internal/app/features/companies"
	healthfeature "github.com/dalemusser/jobhub/internal/app/features/health"
	jobsfeature "github.com/dalemusser/jobhub/internal/app/features/jobs"
	registerfeature "github.com/dalemusser/jobhub/internal/app/features/register"
	jobstore "github.com/dalemusser/jobhub/internal/app/store/jobs"
	loginstore "github.com/dalemusser/jobhub/internal/app/store/logins"
	"github.com/dalemusser/jobhub/internal/app/store/oauthstate"
	organizationstore "github.com/dalemusser/jobhub/internal/app/store/organizations"
	userstore "github.com/dalemusser/jobhub/internal/app/store/users"
	"github.com/dalemusser/jobhub/internal/app/system/auth"
	"github.com/dalemusser/jobhub/internal/app/system/identity"
	"github.com/dalemusser/jobhub/internal/app/system/ratelimit"
	"github.com/dalemusser/jobhub/internal/app/system/sso"
	"github.com/dalemusser/jobhub/internal/app/system/timeouts"
	"github.com/dalemusser/jobhub/internal/app/system/token"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. It builds the SSO provider (running OIDC
// discovery when an issuer is configured) and then the API router.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Exchange())
	defer cancel()

	provider, err := sso.NewOAuthProvider(ctx, sso.ProviderConfig{
		ClientID:        appCfg.SSOClientID,
		ClientSecret:    appCfg.SSOClientSecret,
		RedirectURL:     appCfg.SSORedirectURL,
		AuthorizeURL:    appCfg.SSOAuthorizeURL,
		TokenURL:        appCfg.SSOTokenURL,
		Issuer:          appCfg.SSOIssuer,
		DefaultProvider: appCfg.SSODefaultProvider,
	})
	if err != nil {
		logger.Error("sso provider init failed", zap.Error(err))
		return nil, err
	}

	secure := coreCfg != nil && coreCfg.Env == "prod"
	return newRouter(appCfg, secure, deps, provider, logger)
}

// newRouter wires stores, the authentication core, and feature routers.
func newRouter(appCfg AppConfig, secure bool, deps DBDeps, provider sso.Provider, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase
	users := userstore.New(db)
	orgs := organizationstore.New(db)
	jobs := jobstore.New(db)
	states := oauthstate.New(db)

	sessionMgr := auth.NewSessionManager(deps.Sessions, appCfg.SessionTTL)
	mech, err := newMechanism(appCfg, secure, sessionMgr, logger)
	if err != nil {
		logger.Error("auth mechanism init failed", zap.String("auth_mode", appCfg.AuthMode), zap.Error(err))
		return nil, err
	}
	gate := auth.NewGate(mech, logger)

	reconciler := identity.New(users, orgs, logger, identity.WithBcryptCost(appCfg.BcryptCost))
	flow := sso.NewFlow(sso.FlowDeps{
		Provider:   provider,
		Orgs:       orgs,
		States:     states,
		Identities: reconciler,
		Sessions:   sessionMgr,
		StateTTL:   appCfg.SSOStateTTL,
		Log:        logger,
	})
	limiter := ratelimit.NewLoginLimiter()

	r := chi.NewRouter()

	if len(appCfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   appCfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Redis, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	authHandler := authapifeature.NewHandler(authapifeature.Deps{
		Flow:     flow,
		Local:    reconciler,
		Sessions: sessionMgr,
		Users:    users,
		Mech:     mech,
		Gate:     gate,
		Limiter:  limiter,
		Logins:   loginstore.New(db),
	}, logger)
	r.Mount("/auth", authapifeature.Routes(authHandler))

	registerHandler := registerfeature.NewHandler(reconciler, limiter, logger)
	r.Mount("/register", registerfeature.Routes(registerHandler))

	// Companies
	companiesHandler := companiesfeature.NewHandler(orgs, users, gate, logger)
	r.Mount("/create-company", companiesfeature.CreateRoutes(companiesHandler))
	r.Mount("/companies", companiesfeature.Routes(companiesHandler))

	// Job postings
	jobsHandler := jobsfeature.NewHandler(jobs, users, gate, logger)
	r.Mount("/jobs", jobsfeature.Routes(jobsHandler))

	return r, nil
}

// newMechanism selects how session credentials travel to clients.
func newMechanism(appCfg AppConfig, secure bool, sm *auth.SessionManager, logger *zap.Logger) (auth.Mechanism, error) {
	if appCfg.AuthMode == auth.ModeBearer {
		codec, err := token.NewCodec([]byte(appCfg.TokenSecret))
		if err != nil {
			return nil, err
		}
		return auth.NewBearerMechanism(codec, sm), nil
	}
	return auth.NewCookieMechanism(auth.CookieConfig{
		Key:    appCfg.SessionKey,
		Name:   appCfg.SessionName,
		Domain: appCfg.SessionDomain,
		Secure: secure,
	}, sm, logger)
}
