package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campusworks/caseboard-ui-api/internal/domain/assertion"
	domainauth "github.com/campusworks/caseboard-ui-api/internal/domain/auth"
	apperrors "github.com/campusworks/caseboard-ui-api/internal/errors"
	"github.com/campusworks/caseboard-ui-api/internal/ports"
)

// metricsSink is the minimal metrics surface the auth service emits to.
type metricsSink interface {
	Count(name string, value int64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// sessionIssuer mints and reads the signed token pair. Implemented by
// internal/token.Issuer.
type sessionIssuer interface {
	Issue(claim domainauth.IdentityClaim, role domainauth.Role) (domainauth.TokenPair, error)
	Refresh(refreshToken string) (domainauth.TokenPair, error)
	ReadSession(accessToken string) (domainauth.Session, error)
}

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.AssertionProvider
	Codec    *assertion.Codec
	Roles    ports.RoleMapper
	Issuer   sessionIssuer
	Auditor  ports.LoginAuditor
	Metrics  metricsSink
	Logger   *slog.Logger
}

// AuthService orchestrates the login round trip: provider choreography,
// assertion decoding, role mapping, and token issuance. It holds no session
// state of its own.
type AuthService struct {
	provider ports.AssertionProvider
	codec    *assertion.Codec
	roles    ports.RoleMapper
	issuer   sessionIssuer
	auditor  ports.LoginAuditor
	metrics  metricsSink
	logger   *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Provider == nil {
		return nil, errors.New("assertion provider is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("assertion codec is required")
	}
	if opts.Roles == nil {
		return nil, errors.New("role mapper is required")
	}
	if opts.Issuer == nil {
		return nil, errors.New("session issuer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		provider: opts.Provider,
		codec:    opts.Codec,
		roles:    opts.Roles,
		issuer:   opts.Issuer,
		auditor:  opts.Auditor,
		metrics:  opts.Metrics,
		logger:   logger,
	}, nil
}

// BeginLoginResult contains the provider redirect for a new login flow.
type BeginLoginResult struct {
	LoginURL  string
	RequestID string
}

// BeginLogin initiates a login flow and returns the provider login URL.
// RelayState carries the post-login destination through the round trip.
func (s *AuthService) BeginLogin(ctx context.Context, relayState string) (*BeginLoginResult, error) {
	res, err := s.provider.Begin(ctx, ports.BeginInput{RelayState: relayState})
	if err != nil {
		return nil, fmt.Errorf("begin login flow: %w", err)
	}
	return &BeginLoginResult{LoginURL: res.LoginURL, RequestID: res.RequestID}, nil
}

// RelayAssertion validates the identity provider's response and returns the
// normalized assertion body the relay form carries forward. Validation detail
// stays in server logs; callers surface a generic failure.
func (s *AuthService) RelayAssertion(ctx context.Context, in ports.ConsumeInput) (string, error) {
	start := time.Now()
	doc, err := s.provider.Consume(ctx, in)
	s.timing("auth.relay", time.Since(start))
	if err != nil {
		s.logger.Warn("provider response rejected", "error", err)
		s.count("auth.login", "rejected")
		s.audit(ctx, ports.AuditEntry{Event: ports.AuditLogin, Outcome: "rejected", Detail: err.Error()})
		return "", apperrors.AssertionDecode(err)
	}
	body, err := assertion.Encode(doc)
	if err != nil {
		return "", fmt.Errorf("encode assertion body: %w", err)
	}
	return body, nil
}

// LoginResult is a completed login: the minted pair plus the session view of
// its access half.
type LoginResult struct {
	Session domainauth.Session
	Tokens  domainauth.TokenPair
}

// ConsumeAssertion decodes the relayed assertion body, maps the subject's
// groups to a role, and mints the token pair. Any decode failure is a
// rejection; the caller must not set cookies or reveal which check failed.
func (s *AuthService) ConsumeAssertion(ctx context.Context, rawBody string) (*LoginResult, error) {
	claim, err := s.codec.Decode(rawBody)
	if err != nil {
		s.logger.Warn("assertion body rejected", "error", err)
		s.count("auth.login", "rejected")
		s.audit(ctx, ports.AuditEntry{Event: ports.AuditLogin, Outcome: "rejected", Detail: string(apperrors.GetCode(err))})
		return nil, err
	}

	role := s.roles.Map(claim.Groups)

	pair, err := s.issuer.Issue(claim, role)
	if err != nil {
		return nil, fmt.Errorf("issue token pair: %w", err)
	}

	sess, err := s.issuer.ReadSession(pair.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("read freshly issued session: %w", err)
	}

	s.count("auth.login", "success")
	s.audit(ctx, ports.AuditEntry{Subject: claim.NameID, Event: ports.AuditLogin, Outcome: "success"})
	s.logger.Info("login completed", "subject", claim.NameID, "role", string(role))

	return &LoginResult{Session: sess, Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a rotated pair. An absent token is a
// terminal refresh_expired failure without touching the issuer; callers clear
// the session and route back through login.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error) {
	if refreshToken == "" {
		s.count("auth.refresh", "rejected")
		return domainauth.TokenPair{}, apperrors.RefreshExpired(errors.New("no refresh token presented"))
	}

	pair, err := s.issuer.Refresh(refreshToken)
	if err != nil {
		s.count("auth.refresh", "rejected")
		s.audit(ctx, ports.AuditEntry{Event: ports.AuditRefresh, Outcome: "rejected", Detail: string(apperrors.GetCode(err))})
		return domainauth.TokenPair{}, err
	}

	sess, readErr := s.issuer.ReadSession(pair.AccessToken)
	subject := ""
	if readErr == nil {
		subject = sess.Subject
	}

	s.count("auth.refresh", "success")
	s.audit(ctx, ports.AuditEntry{Subject: subject, Event: ports.AuditRefresh, Outcome: "success"})
	return pair, nil
}

// ReadSession reconstructs the session carried by an access token.
func (s *AuthService) ReadSession(accessToken string) (domainauth.Session, error) {
	return s.issuer.ReadSession(accessToken)
}

// Logout records the end of a session. Sessions are stateless so there is
// nothing to revoke; the endpoint clears cookies and this stays idempotent.
func (s *AuthService) Logout(ctx context.Context, accessToken string) {
	subject := ""
	if sess, err := s.issuer.ReadSession(accessToken); err == nil {
		subject = sess.Subject
	}
	s.count("auth.logout", "success")
	s.audit(ctx, ports.AuditEntry{Subject: subject, Event: ports.AuditLogout, Outcome: "success"})
}

func (s *AuthService) count(name, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Count(name, 1, map[string]string{"outcome": outcome})
}

func (s *AuthService) timing(name string, d time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.Timing(name, d, nil)
}

// audit is best effort. A failing audit sink is logged and never fails the
// authentication flow.
func (s *AuthService) audit(ctx context.Context, entry ports.AuditEntry) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", "event", string(entry.Event), "error", err)
	}
}
