package auth

// Package auth contains domain-level types for identity federation and sessions.
// It is pure and free of framework/adapter concerns.

import "time"

// Role represents an application's authorization role.
// Keep string form for easy embedding in token claims and cookies.
// The zero value means "identified but unprivileged"; role defaulting
// must never grant privilege.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
	// RoleNone is the unset role for users the identity provider vouches for
	// but grants no application privilege.
	RoleNone Role = ""
)

// IdentityClaim is the normalized identity extracted from a validated
// identity-provider assertion. Adapters map provider-specific attribute
// vocabularies into this shape. It is never persisted; it lives only
// between assertion consumption and session issuance.
type IdentityClaim struct {
	// NameID is the opaque subject identifier asserted by the provider. Required.
	NameID string
	// Email is optional; providers are not required to release it.
	Email       string
	DisplayName string
	// Groups are raw provider group names, mapped to a Role by a RoleMapper.
	Groups []string
}

// TokenPair holds the two credentials issued for one login.
// AccessToken is short-lived and carries its own expiry claim;
// RefreshToken is long-lived and travels only via an HTTP-only cookie.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
	// RefreshExpiresAt bounds the refresh cookie's Max-Age.
	RefreshExpiresAt time.Time
}

// Session is the application's view of "who is logged in", reconstructed on
// every request from the current valid access token. A Session value is never
// mutated in place; refresh produces a replacement value.
type Session struct {
	Subject     string    `json:"subject"`
	DisplayName string    `json:"display_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Role        Role      `json:"role,omitempty"`
	AccessToken string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// HasRole reports whether the session carries any privileged role.
func (s Session) HasRole() bool { return s.Role == RoleAdmin || s.Role == RoleStaff }

// IsAdmin reports whether the session role is admin.
func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }
