// Package token issues and verifies the signed bearer tokens handed to API
// clients. Tokens are HS256 JWTs; every verification failure (bad
// signature, wrong algorithm or issuer, malformed input, expiry) is reported
// as apierr.ErrInvalidToken so callers cannot tell them apart.
package token

import (
	"errors"
	"time"

	"github.com/dalemusser/jobhub/internal/app/system/apierr"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultIssuer is stamped into every token this service signs.
const DefaultIssuer = "jobhub"

// Claims is the identity payload carried by a token.
type Claims struct {
	Subject           string // local user id (hex ObjectID)
	Email             string
	ProviderSubjectID string
	OrganizationID    string
	SessionID         string // session handle the token is bound to
}

// Assertion is a verified token: the claims plus its validity window.
type Assertion struct {
	Claims
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Email             string `json:"email,omitempty"`
	ProviderSubjectID string `json:"psid,omitempty"`
	OrganizationID    string `json:"org,omitempty"`
}

// Codec signs and verifies tokens with a shared secret.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithIssuer overrides DefaultIssuer.
func WithIssuer(iss string) Option {
	return func(c *Codec) { c.issuer = iss }
}

// WithClock replaces time.Now; used by tests to move past expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec returns a Codec for secret. The secret must not be empty.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	c := &Codec{secret: secret, issuer: DefaultIssuer, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Issue signs claims valid for ttl from now.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}
	if claims.Subject == "" {
		return "", errors.New("token subject is required")
	}
	now := c.now().Truncate(time.Second)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   claims.Subject,
			ID:        claims.SessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:             claims.Email,
		ProviderSubjectID: claims.ProviderSubjectID,
		OrganizationID:    claims.OrganizationID,
	})
	return t.SignedString(c.secret)
}

// Verify checks signature, issuer, and expiry and returns the claims.
func (c *Codec) Verify(raw string) (Assertion, error) {
	if raw == "" {
		return Assertion{}, apierr.ErrInvalidToken
	}
	var jc jwtClaims
	tok, err := jwt.ParseWithClaims(raw, &jc, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !tok.Valid || jc.Subject == "" {
		return Assertion{}, apierr.ErrInvalidToken
	}

	a := Assertion{
		Claims: Claims{
			Subject:           jc.Subject,
			Email:             jc.Email,
			ProviderSubjectID: jc.ProviderSubjectID,
			OrganizationID:    jc.OrganizationID,
			SessionID:         jc.ID,
		},
		ExpiresAt: jc.ExpiresAt.Time,
	}
	if jc.IssuedAt != nil {
		a.IssuedAt = jc.IssuedAt.Time
	}
	return a, nil
}
