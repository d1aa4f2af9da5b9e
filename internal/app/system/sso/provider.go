// Package sso runs the authorization-code sign-in against the external
// identity provider: building authorization URLs, exchanging codes, and
// turning the provider's profile into a local user and session.
package sso

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/dalemusser/jobhub/internal/app/system/apierr"
	"golang.org/x/oauth2"
)

// WorkOS endpoints used when none are configured.
const (
	DefaultAuthorizeURL = "https://api.workos.com/sso/authorize"
	DefaultTokenURL     = "https://api.workos.com/sso/token"
)

// Identity is the verified profile returned by a code exchange.
type Identity struct {
	Subject          string
	Email            string
	FirstName        string
	LastName         string
	OrganizationID   string
	OrganizationName string
	ConnectionID     string
}

// AuthorizationRequest selects how the provider should authenticate the user.
// ConnectionID wins over OrganizationID; with neither, the provider's default
// (discovery) flow is used.
type AuthorizationRequest struct {
	State          string
	Nonce          string
	ConnectionID   string
	OrganizationID string
	LoginHint      string
	SignUp         bool
}

// Provider is the external identity provider.
type Provider interface {
	AuthorizationURL(req AuthorizationRequest) string
	// Exchange trades a one-time code for the user's identity. nonce is the
	// value sent with the authorization request; it is checked when the
	// provider returns an id_token.
	Exchange(ctx context.Context, code, nonce string) (Identity, error)
}

// ProviderConfig holds the OAuth client settings.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthorizeURL string
	TokenURL     string
	// Issuer enables id_token verification through OIDC discovery.
	Issuer string
	// DefaultProvider is sent as provider=... when no connection or
	// organization is selected (WorkOS "authkit").
	DefaultProvider string
	HTTPClient      *http.Client
	// Verifier overrides discovery; used in tests and for static key sets.
	Verifier *gooidc.IDTokenVerifier
}

// OAuthProvider implements Provider over golang.org/x/oauth2.
type OAuthProvider struct {
	config          *oauth2.Config
	defaultProvider string
	httpClient      *http.Client
	verifier        *gooidc.IDTokenVerifier
}

// NewOAuthProvider validates cfg and, when an issuer is set, performs OIDC
// discovery to obtain the id_token verifier.
func NewOAuthProvider(ctx context.Context, cfg ProviderConfig) (*OAuthProvider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = DefaultAuthorizeURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &OAuthProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		defaultProvider: cfg.DefaultProvider,
		httpClient:      httpClient,
		verifier:        cfg.Verifier,
	}

	if p.verifier == nil && cfg.Issuer != "" {
		dctx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		op, err := gooidc.NewProvider(dctx, strings.TrimSuffix(cfg.Issuer, "/"))
		if err != nil {
			return nil, fmt.Errorf("oidc new provider: %w", err)
		}
		p.verifier = op.Verifier(&gooidc.Config{ClientID: cfg.ClientID})
	}
	if p.verifier != nil {
		p.config.Scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}
	return p, nil
}

func (p *OAuthProvider) AuthorizationURL(req AuthorizationRequest) string {
	var opts []oauth2.AuthCodeOption
	switch {
	case req.ConnectionID != "":
		opts = append(opts, oauth2.SetAuthURLParam("connection", req.ConnectionID))
	case req.OrganizationID != "":
		opts = append(opts, oauth2.SetAuthURLParam("organization", req.OrganizationID))
	case p.defaultProvider != "":
		opts = append(opts, oauth2.SetAuthURLParam("provider", p.defaultProvider))
	}
	if req.Nonce != "" {
		opts = append(opts, oauth2.SetAuthURLParam("nonce", req.Nonce))
	}
	if req.LoginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", req.LoginHint))
	}
	if req.SignUp {
		opts = append(opts, oauth2.SetAuthURLParam("screen_hint", "sign-up"))
	}
	return p.config.AuthCodeURL(req.State, opts...)
}

func (p *OAuthProvider) Exchange(ctx context.Context, code, nonce string) (Identity, error) {
	if code == "" {
		return Identity{}, apierr.New(apierr.ErrMissingParameter, "Authorization code is required")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return Identity{}, classifyExchangeError(err)
	}

	var id Identity
	if p.verifier != nil {
		id, err = p.identityFromIDToken(ctx, tok, nonce)
	} else {
		id, err = identityFromProfile(tok)
	}
	if err != nil {
		return Identity{}, err
	}
	if id.Subject == "" || id.Email == "" {
		return Identity{}, apierr.New(apierr.ErrExchangeFailed, "Identity provider returned an incomplete profile")
	}
	return id, nil
}

// profileJSON is the WorkOS profile object embedded in the token response.
type profileJSON struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
	ConnectionID     string `json:"connection_id"`
}

func identityFromProfile(tok *oauth2.Token) (Identity, error) {
	raw := tok.Extra("profile")
	if raw == nil {
		return Identity{}, apierr.New(apierr.ErrExchangeFailed, "Identity provider returned no profile")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return Identity{}, apierr.Wrap(apierr.ErrExchangeFailed, "Identity provider returned an invalid profile", err)
	}
	var pj profileJSON
	if err := json.Unmarshal(b, &pj); err != nil {
		return Identity{}, apierr.Wrap(apierr.ErrExchangeFailed, "Identity provider returned an invalid profile", err)
	}
	return Identity{
		Subject:        pj.ID,
		Email:          pj.Email,
		FirstName:      pj.FirstName,
		LastName:       pj.LastName,
		OrganizationID:   pj.OrganizationID,
		OrganizationName: pj.OrganizationName,
		ConnectionID:     pj.ConnectionID,
	}, nil
}

type idTokenClaims struct {
	Sub              string `json:"sub"`
	Email            string `json:"email"`
	GivenName        string `json:"given_name"`
	FamilyName       string `json:"family_name"`
	Nonce            string `json:"nonce"`
	OrgID            string `json:"org_id"`
	OrganizationID   string `json:"organization_id"`
	OrgName          string `json:"org_name"`
	OrganizationName string `json:"organization_name"`
}

func (p *OAuthProvider) identityFromIDToken(ctx context.Context, tok *oauth2.Token, nonce string) (Identity, error) {
	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return Identity{}, apierr.New(apierr.ErrExchangeFailed, "Identity provider returned no id_token")
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return Identity{}, apierr.Wrap(apierr.ErrExchangeFailed, "Invalid id_token", err)
	}
	var c idTokenClaims
	if err := idTok.Claims(&c); err != nil {
		return Identity{}, apierr.Wrap(apierr.ErrExchangeFailed, "Invalid id_token", err)
	}
	if nonce != "" && c.Nonce != nonce {
		return Identity{}, apierr.New(apierr.ErrExchangeFailed, "Invalid nonce")
	}
	org := c.OrganizationID
	if org == "" {
		org = c.OrgID
	}
	orgName := c.OrganizationName
	if orgName == "" {
		orgName = c.OrgName
	}
	return Identity{
		Subject:          c.Sub,
		Email:            c.Email,
		FirstName:        c.GivenName,
		LastName:         c.FamilyName,
		OrganizationID:   org,
		OrganizationName: orgName,
	}, nil
}

// classifyExchangeError splits a rejected code (4xx) from a provider that
// could not be reached or failed (5xx, transport).
func classifyExchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil && re.Response.StatusCode >= http.StatusInternalServerError {
			return apierr.Wrap(apierr.ErrProviderUnavailable, "Identity provider unavailable", err)
		}
		msg := "Authentication failed"
		switch {
		case re.ErrorDescription != "":
			msg = re.ErrorDescription
		case re.ErrorCode != "":
			msg = re.ErrorCode
		}
		return apierr.Wrap(apierr.ErrExchangeFailed, msg, err)
	}
	var ue *url.Error
	if errors.As(err, &ue) || errors.Is(err, context.DeadlineExceeded) {
		return apierr.Wrap(apierr.ErrProviderUnavailable, "Identity provider unavailable", err)
	}
	return apierr.Wrap(apierr.ErrExchangeFailed, "Authentication failed", err)
}
