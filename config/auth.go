package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeSAML federates logins to the institutional identity provider.
	AuthModeSAML AuthMode = "saml"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "saml", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: saml, mock)", v)
	}
}

// SAMLConfig contains the service-provider side SAML settings.
type SAMLConfig struct {
	// EntityID is the SP entity ID presented to the identity provider.
	EntityID string `env:"ENTITY_ID" envDefault:"http://localhost:8080"`
	// AcsURL is where the IdP posts its response.
	AcsURL string `env:"ACS_URL" envDefault:"http://localhost:8080/auth/relay"`
	// CertFile/KeyFile hold the SP signing keypair.
	CertFile string `env:"CERT_FILE"`
	KeyFile  string `env:"KEY_FILE"`
	// IdP metadata, by URL or local file. Exactly one is required in saml mode.
	IDPMetadataURL  string `env:"IDP_METADATA_URL"`
	IDPMetadataFile string `env:"IDP_METADATA_FILE"`
	// AllowIDPInitiated permits unsolicited responses from the IdP.
	AllowIDPInitiated bool `env:"ALLOW_IDP_INITIATED" envDefault:"false"`

	// Assertion attribute names surfaced into the normalized document.
	AttrEmail       string `env:"ATTR_EMAIL"        envDefault:"mail"`
	AttrDisplayName string `env:"ATTR_DISPLAY_NAME" envDefault:"displayName"`
	AttrGroups      string `env:"ATTR_GROUPS"       envDefault:"memberOf"`
}

// TokenConfig controls the signed session token pair.
type TokenConfig struct {
	// SigningSecret is the HMAC key for both token halves. At least 32 bytes.
	SigningSecret string `env:"SIGNING_SECRET"`
	Issuer        string `env:"ISSUER"   envDefault:"caseboard"`
	Audience      string `env:"AUDIENCE" envDefault:"caseboard-ui"`
	// AccessTTL bounds the life of an access token.
	AccessTTL time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	// RefreshTTL bounds how long a session renews without re-authenticating.
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"12h"`
	// Leeway absorbs clock skew between hosts.
	Leeway time.Duration `env:"LEEWAY" envDefault:"30s"`
	// TicketTTL bounds the login transaction between relay and consumption.
	TicketTTL time.Duration `env:"TICKET_TTL" envDefault:"10m"`
}

// Sanitize clamps token TTLs to sane relationships.
func (t *TokenConfig) Sanitize() {
	if t.AccessTTL <= 0 {
		t.AccessTTL = 15 * time.Minute
	}
	if t.RefreshTTL <= 0 {
		t.RefreshTTL = 12 * time.Hour
	}
	if t.RefreshTTL < t.AccessTTL {
		t.RefreshTTL = t.AccessTTL
	}
	if t.Leeway < 0 {
		t.Leeway = 0
	}
	if t.TicketTTL <= 0 {
		t.TicketTTL = 10 * time.Minute
	}
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	NameID      string   `env:"NAME_ID"      envDefault:"dev-user"`
	Email       string   `env:"EMAIL"        envDefault:"dev@example.com"`
	DisplayName string   `env:"DISPLAY_NAME" envDefault:"Dev User"`
	Groups      []string `env:"GROUPS"       envDefault:"admins"         envSeparator:";"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which assertion provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"saml"`

	// SAML configuration (used when Mode=saml).
	SAML SAMLConfig `envPrefix:"SAML_"`

	// Token configuration for the signed session pair.
	Token TokenConfig `envPrefix:"TOKEN_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// AdminGroup is the directory group granting the admin role.
	AdminGroup string `env:"ADMIN_GROUP,required"`

	// StaffGroup is the directory group granting the staff role.
	StaffGroup string `env:"STAFF_GROUP,required"`
}

// Sanitize applies guardrails to auth configuration.
func (a *AuthConfig) Sanitize() {
	a.Token.Sanitize()
}

// Validate checks cross-field requirements that env tags cannot express.
func (a *AuthConfig) Validate() error {
	if len(a.Token.SigningSecret) < 32 {
		return fmt.Errorf("TOKEN_SIGNING_SECRET must be at least 32 bytes, got %d", len(a.Token.SigningSecret))
	}
	if a.Mode != AuthModeSAML {
		return nil
	}
	if a.SAML.CertFile == "" || a.SAML.KeyFile == "" {
		return fmt.Errorf("SAML_CERT_FILE and SAML_KEY_FILE are required in saml mode")
	}
	if a.SAML.IDPMetadataURL == "" && a.SAML.IDPMetadataFile == "" {
		return fmt.Errorf("one of SAML_IDP_METADATA_URL or SAML_IDP_METADATA_FILE is required in saml mode")
	}
	return nil
}
