package devauth

// Package devauth provides a simple, config-driven AssertionProvider for
// local development. It short-circuits the identity-provider round trip: Begin
// points the browser at our own relay endpoint and Consume returns the
// configured identity document without any network traffic.

import (
	"context"
	"errors"
	"net/url"

	"github.com/campusworks/caseboard-ui-api/internal/ports"
)

// Config controls the dev identity. All fields are required except Groups.
type Config struct {
	NameID      string
	Email       string
	DisplayName string
	Groups      []string
}

// Provider implements ports.AssertionProvider for local development.
type Provider struct {
	document map[string]any
}

var _ ports.AssertionProvider = (*Provider)(nil)

// NewProvider constructs a dev assertion provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.NameID == "" {
		return nil, errors.New("dev auth: NameID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	doc := map[string]any{
		"nameId": cfg.NameID,
		"email":  cfg.Email,
	}
	if cfg.DisplayName != "" {
		doc["displayName"] = cfg.DisplayName
	}
	if len(cfg.Groups) > 0 {
		groups := make([]any, len(cfg.Groups))
		for i, g := range cfg.Groups {
			groups[i] = g
		}
		doc["groups"] = groups
	}
	return &Provider{document: doc}, nil
}

// Begin returns a local relay URL so the standard flow keeps working without
// an identity provider. The relay treats the "dev" response marker as an
// instruction to call Consume directly.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (ports.BeginResult, error) {
	q := url.Values{}
	q.Set("SAMLResponse", "dev")
	if in.RelayState != "" {
		q.Set("RelayState", in.RelayState)
	}
	return ports.BeginResult{LoginURL: "/auth/relay?" + q.Encode()}, nil
}

// Consume ignores the response payload and returns the configured document.
func (p *Provider) Consume(_ context.Context, _ ports.ConsumeInput) (map[string]any, error) {
	doc := make(map[string]any, len(p.document))
	for k, v := range p.document {
		doc[k] = v
	}
	return doc, nil
}
