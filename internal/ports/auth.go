package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/campusworks/caseboard-ui-api/internal/domain/auth"
)

// BeginInput carries inputs for initiating a login flow.
type BeginInput struct {
	// RelayState is the opaque post-login destination carried through the
	// identity-provider round trip.
	RelayState string
}

// BeginResult is the provider's answer to a login initiation.
type BeginResult struct {
	// LoginURL is the provider-constructed URL the browser is redirected to.
	LoginURL string
	// RequestID identifies the outstanding authentication request; the
	// consumer uses it for strict response correlation.
	RequestID string
}

// ConsumeInput groups the identity provider's response fields.
type ConsumeInput struct {
	// Response is the provider's base64-encoded response document.
	Response string
	// RequestID is the correlation ID issued by Begin, empty for
	// provider-initiated flows when those are allowed.
	RequestID string
	// RelayState echoes the opaque state from Begin.
	RelayState string
}

// AssertionProvider brokers the login round trip against an identity provider.
// Consume performs all cryptographic validation and returns the normalized
// assertion document (JSON) that the relay forwards; it never returns a
// partially validated document.
type AssertionProvider interface {
	Begin(ctx context.Context, in BeginInput) (BeginResult, error)
	Consume(ctx context.Context, in ConsumeInput) (document map[string]any, err error)
}

// TicketStore issues and redeems one-time anti-forgery tickets bound to a
// login transaction. Consume must be atomic: a ticket redeems exactly once,
// and an expired or unknown ticket fails authentication rather than bypassing
// it.
type TicketStore interface {
	Issue(ctx context.Context, token string) error
	// Consume reports whether the token was present and unspent.
	Consume(ctx context.Context, token string) (bool, error)
}

// RoleMapper maps provider groups to an application role. Implementations
// must return RoleNone when no configured group matches; never a privileged
// default.
type RoleMapper interface {
	Map(groups []string) domainauth.Role
}

// AuditEvent names an auditable point in the token lifecycle.
type AuditEvent string

const (
	AuditLogin   AuditEvent = "login"
	AuditRefresh AuditEvent = "refresh"
	AuditLogout  AuditEvent = "logout"
)

// AuditEntry is one append-only audit record.
type AuditEntry struct {
	Subject string
	Event   AuditEvent
	// Outcome is "success" or "rejected".
	Outcome string
	// Detail carries server-side failure detail; never shown to browsers.
	Detail string
}

// LoginAuditor records token-lifecycle events. Recording is best effort:
// callers log failures but never fail the authentication flow on them.
type LoginAuditor interface {
	Record(ctx context.Context, entry AuditEntry) error
}
