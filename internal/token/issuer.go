package token

// Package token mints and reads the signed token pair that carries a browser
// session. Sessions are stateless: everything needed to reconstruct one lives
// in the access token's claims, and everything needed to renew one lives in
// the refresh token's claims. No session table exists anywhere.

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainauth "github.com/campusworks/caseboard-ui-api/internal/domain/auth"
	apperrors "github.com/campusworks/caseboard-ui-api/internal/errors"
)

const (
	useAccess  = "access"
	useRefresh = "refresh"

	// minSecretLen guards against weak HMAC keys slipping in from config.
	minSecretLen = 32
)

// Config controls token minting.
type Config struct {
	// SigningSecret is the HMAC-SHA256 key for both token halves.
	SigningSecret []byte
	Issuer        string
	Audience      string
	// AccessTTL bounds the blast radius of a stolen access token.
	AccessTTL time.Duration
	// RefreshTTL bounds how long a browser session can renew without
	// re-authenticating at the identity provider.
	RefreshTTL time.Duration
	// Leeway absorbs clock skew between issuing and reading hosts.
	Leeway time.Duration

	// Now overrides the clock for tests.
	Now func() time.Time
}

// Claims is the JWT claim set shared by both token halves. The Use marker
// keeps a refresh token from ever passing as an access token or vice versa.
type Claims struct {
	DisplayName string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
	Use         string `json:"use"`
	jwt.RegisteredClaims
}

// Issuer mints TokenPairs and reconstructs Sessions from access tokens.
// It is safe for concurrent use.
type Issuer struct {
	cfg Config
	now func() time.Time
}

// NewIssuer validates the config and returns an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.SigningSecret) < minSecretLen {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", minSecretLen)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 {
		return nil, errors.New("leeway must not be negative")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{cfg: cfg, now: now}, nil
}

// Issue mints a fresh TokenPair for an identity claim. Each call produces
// distinct tokens (new jti on both halves), so issuing twice for the same
// claim never reuses a credential.
func (i *Issuer) Issue(claim domainauth.IdentityClaim, role domainauth.Role) (domainauth.TokenPair, error) {
	if claim.NameID == "" {
		return domainauth.TokenPair{}, errors.New("identity claim has no subject")
	}
	return i.mint(Claims{
		DisplayName: claim.DisplayName,
		Email:       claim.Email,
		Role:        string(role),
	}, claim.NameID)
}

// Refresh exchanges a valid refresh token for a wholly new TokenPair.
// Rotation policy: every refresh mints a new refresh token and the old one
// is never reissued. An invalid, expired, or wrong-use
// token is a terminal refresh_expired failure; callers must clear the session
// and route back through login, never retry.
func (i *Issuer) Refresh(refreshToken string) (domainauth.TokenPair, error) {
	if refreshToken == "" {
		return domainauth.TokenPair{}, apperrors.RefreshExpired(errors.New("no refresh token presented"))
	}
	claims, err := i.parse(refreshToken, useRefresh)
	if err != nil {
		return domainauth.TokenPair{}, apperrors.RefreshExpired(err)
	}
	// The refresh token carries the enrollment claims so renewal never has to
	// consult the identity provider.
	return i.mint(Claims{
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		Role:        claims.Role,
	}, claims.Subject)
}

// ReadSession reconstructs a Session from an access token without I/O.
// An expired or invalid token yields no session, never a degraded one.
func (i *Issuer) ReadSession(accessToken string) (domainauth.Session, error) {
	claims, err := i.parse(accessToken, useAccess)
	if err != nil {
		return domainauth.Session{}, apperrors.Unauthenticated("no valid session")
	}
	return domainauth.Session{
		Subject:     claims.Subject,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		Role:        domainauth.Role(claims.Role),
		AccessToken: accessToken,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

func (i *Issuer) mint(base Claims, subject string) (domainauth.TokenPair, error) {
	now := i.now()
	accessExp := now.Add(i.cfg.AccessTTL)
	refreshExp := now.Add(i.cfg.RefreshTTL)

	access := base
	access.Use = useAccess
	access.RegisteredClaims = i.registered(subject, now, accessExp)

	refresh := base
	refresh.Use = useRefresh
	refresh.RegisteredClaims = i.registered(subject, now, refreshExp)

	accessToken, err := i.sign(access)
	if err != nil {
		return domainauth.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := i.sign(refresh)
	if err != nil {
		return domainauth.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return domainauth.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *Issuer) registered(subject string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    i.cfg.Issuer,
		Audience:  jwt.ClaimStrings{i.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
}

func (i *Issuer) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.SigningSecret)
}

func (i *Issuer) parse(tokenString, wantUse string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) { return i.cfg.SigningSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(i.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(i.cfg.Leeway),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.Use != wantUse {
		return nil, fmt.Errorf("token use is %q, want %q", claims.Use, wantUse)
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &claims, nil
}
