package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/campusworks/caseboard-ui-api/config"
	"github.com/campusworks/caseboard-ui-api/internal/adapters/authroles"
	"github.com/campusworks/caseboard-ui-api/internal/adapters/devauth"
	redisadapter "github.com/campusworks/caseboard-ui-api/internal/adapters/redis"
	"github.com/campusworks/caseboard-ui-api/internal/adapters/saml"
	"github.com/campusworks/caseboard-ui-api/internal/domain/assertion"
	"github.com/campusworks/caseboard-ui-api/internal/observability/statsd"
	"github.com/campusworks/caseboard-ui-api/internal/ports"
	"github.com/campusworks/caseboard-ui-api/internal/service"
	"github.com/campusworks/caseboard-ui-api/internal/token"
)

// AuthConfig contains dependencies for building the auth service.
type AuthConfig struct {
	Auth        config.AuthConfig
	RedisClient redis.UniversalClient
	Auditor     ports.LoginAuditor
	Metrics     statsd.Sink
	Logger      *slog.Logger
}

// BuildAuthService wires the assertion provider for the configured mode
// together with the token issuer and role mapper.
func BuildAuthService(cfg AuthConfig) (*service.AuthService, error) {
	provider, err := buildAssertionProvider(cfg.Auth)
	if err != nil {
		return nil, err
	}

	codec, err := assertion.NewCodec(assertion.Mapping{})
	if err != nil {
		return nil, fmt.Errorf("build assertion codec: %w", err)
	}

	issuer, err := token.NewIssuer(token.Config{
		SigningSecret: []byte(cfg.Auth.Token.SigningSecret),
		Issuer:        cfg.Auth.Token.Issuer,
		Audience:      cfg.Auth.Token.Audience,
		AccessTTL:     cfg.Auth.Token.AccessTTL,
		RefreshTTL:    cfg.Auth.Token.RefreshTTL,
		Leeway:        cfg.Auth.Token.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("build token issuer: %w", err)
	}

	svc, err := service.NewAuthService(service.AuthServiceOptions{
		Provider: provider,
		Codec:    codec,
		Roles: authroles.StaticMapper{
			AdminGroup: cfg.Auth.AdminGroup,
			StaffGroup: cfg.Auth.StaffGroup,
		},
		Issuer:  issuer,
		Auditor: cfg.Auditor,
		Metrics: cfg.Metrics,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build auth service: %w", err)
	}
	return svc, nil
}

// BuildTicketStore creates the Redis-backed one-time login ticket store.
func BuildTicketStore(client redis.UniversalClient, cfg config.AuthConfig) *redisadapter.TicketStore {
	return redisadapter.NewTicketStore(client, cfg.Token.TicketTTL)
}

//nolint:ireturn // provider selection happens at runtime based on auth mode.
func buildAssertionProvider(cfg config.AuthConfig) (ports.AssertionProvider, error) {
	switch cfg.Mode {
	case config.AuthModeMock:
		prov, err := devauth.NewProvider(devauth.Config{
			NameID:      cfg.DevAuth.NameID,
			Email:       cfg.DevAuth.Email,
			DisplayName: cfg.DevAuth.DisplayName,
			Groups:      cfg.DevAuth.Groups,
		})
		if err != nil {
			return nil, fmt.Errorf("build dev auth provider: %w", err)
		}
		return prov, nil

	case config.AuthModeSAML:
		prov, err := saml.NewProvider(saml.ProviderConfig{
			EntityID:          cfg.SAML.EntityID,
			AcsURL:            cfg.SAML.AcsURL,
			CertFile:          cfg.SAML.CertFile,
			KeyFile:           cfg.SAML.KeyFile,
			IDPMetadataURL:    cfg.SAML.IDPMetadataURL,
			IDPMetadataFile:   cfg.SAML.IDPMetadataFile,
			AllowIDPInitiated: cfg.SAML.AllowIDPInitiated,
			AttrEmail:         cfg.SAML.AttrEmail,
			AttrDisplayName:   cfg.SAML.AttrDisplayName,
			AttrGroups:        cfg.SAML.AttrGroups,
		})
		if err != nil {
			return nil, fmt.Errorf("build SAML provider: %w", err)
		}
		return prov, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
	}
}
