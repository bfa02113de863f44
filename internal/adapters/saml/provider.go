package saml

// Package saml implements the AssertionProvider port against a SAML 2.0
// identity provider using crewjam/saml. Signature, certificate, and condition
// validation are all delegated to the library; this adapter only does
// protocol choreography and attribute normalization.

import (
	"context"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	crewsaml "github.com/crewjam/saml"
	"github.com/crewjam/saml/samlsp"

	"github.com/campusworks/caseboard-ui-api/internal/ports"
)

// ProviderConfig holds the service-provider side settings.
type ProviderConfig struct {
	// EntityID is the SP entity ID, also the base for ACS/metadata URLs.
	EntityID string
	// AcsURL is where the IdP posts its response (our relay endpoint).
	AcsURL string
	// CertFile/KeyFile hold the SP keypair used to sign authn requests.
	CertFile string
	KeyFile  string
	// IDPMetadataURL or IDPMetadataFile supplies the IdP descriptor.
	IDPMetadataURL  string
	IDPMetadataFile string
	// AllowIDPInitiated permits responses with no outstanding request ID.
	AllowIDPInitiated bool
	// AttrEmail/AttrDisplayName/AttrGroups name the assertion attributes to
	// surface in the normalized document.
	AttrEmail       string
	AttrDisplayName string
	AttrGroups      string

	HTTPClient *http.Client // optional, defaults to a 30s-timeout client
}

// Provider implements ports.AssertionProvider.
type Provider struct {
	sp                *crewsaml.ServiceProvider
	allowIDPInitiated bool
	attrEmail         string
	attrDisplayName   string
	attrGroups        string
}

var _ ports.AssertionProvider = (*Provider)(nil)

// NewProvider loads the SP keypair and IdP metadata and builds the provider.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.EntityID == "" {
		return nil, errors.New("entity ID is required")
	}
	if cfg.AcsURL == "" {
		return nil, errors.New("ACS URL is required")
	}
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("SP certificate and key are required")
	}

	keyPair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load SP keypair: %w", err)
	}
	spCert := keyPair.Leaf
	if spCert == nil {
		// tls.LoadX509KeyPair doesn't always set Leaf; parse the raw cert.
		spCert, err = x509.ParseCertificate(keyPair.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("parse SP certificate: %w", err)
		}
	}
	signer, ok := keyPair.PrivateKey.(crypto.Signer)
	if !ok {
		return nil, errors.New("SP private key does not implement crypto.Signer")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	idpMetadata, err := loadIDPMetadata(cfg, httpClient)
	if err != nil {
		return nil, err
	}

	acsURL, err := url.Parse(cfg.AcsURL)
	if err != nil {
		return nil, fmt.Errorf("parse ACS URL: %w", err)
	}
	metadataURL, err := url.Parse(strings.TrimSuffix(cfg.EntityID, "/") + "/saml/metadata")
	if err != nil {
		return nil, fmt.Errorf("parse metadata URL: %w", err)
	}

	sp := &crewsaml.ServiceProvider{
		EntityID:          cfg.EntityID,
		Key:               signer,
		Certificate:       spCert,
		AcsURL:            *acsURL,
		MetadataURL:       *metadataURL,
		IDPMetadata:       idpMetadata,
		AllowIDPInitiated: cfg.AllowIDPInitiated,
	}

	return &Provider{
		sp:                sp,
		allowIDPInitiated: cfg.AllowIDPInitiated,
		attrEmail:         withDefault(cfg.AttrEmail, "mail"),
		attrDisplayName:   withDefault(cfg.AttrDisplayName, "displayName"),
		attrGroups:        withDefault(cfg.AttrGroups, "memberOf"),
	}, nil
}

// Begin constructs the provider login URL for a redirect binding.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (ports.BeginResult, error) {
	authReq, err := p.sp.MakeAuthenticationRequest(
		p.sp.GetSSOBindingLocation(crewsaml.HTTPRedirectBinding),
		crewsaml.HTTPRedirectBinding,
		crewsaml.HTTPPostBinding,
	)
	if err != nil {
		return ports.BeginResult{}, fmt.Errorf("make authentication request: %w", err)
	}

	loginURL, err := authReq.Redirect(in.RelayState, p.sp)
	if err != nil {
		return ports.BeginResult{}, fmt.Errorf("build redirect URL: %w", err)
	}

	return ports.BeginResult{
		LoginURL:  loginURL.String(),
		RequestID: authReq.ID,
	}, nil
}

// Consume validates the IdP's response and flattens it into the normalized
// assertion document. Validation failures return an error whose detail is for
// server logs only; callers show a generic failure.
func (p *Provider) Consume(_ context.Context, in ports.ConsumeInput) (map[string]any, error) {
	if in.Response == "" {
		return nil, errors.New("missing SAMLResponse")
	}
	responseXML, err := base64.StdEncoding.DecodeString(in.Response)
	if err != nil {
		return nil, fmt.Errorf("decode SAMLResponse: %w", err)
	}

	possibleRequestIDs := []string{}
	if in.RequestID != "" {
		possibleRequestIDs = []string{in.RequestID}
	} else if !p.allowIDPInitiated {
		return nil, errors.New("no outstanding request ID and IdP-initiated flows are disabled")
	}

	assertion, err := p.sp.ParseXMLResponse(responseXML, possibleRequestIDs, p.sp.AcsURL)
	if err != nil {
		var ire *crewsaml.InvalidResponseError
		if errors.As(err, &ire) {
			return nil, fmt.Errorf("validate response: %w (detail: %v)", err, ire.PrivateErr)
		}
		return nil, fmt.Errorf("validate response: %w", err)
	}

	return p.buildDocument(assertion), nil
}

// buildDocument normalizes the validated assertion into the JSON document
// shape the relay carries and the codec's default mapping expects.
func (p *Provider) buildDocument(assertion *crewsaml.Assertion) map[string]any {
	doc := map[string]any{}

	if assertion.Subject != nil && assertion.Subject.NameID != nil {
		doc["nameId"] = assertion.Subject.NameID.Value
	}

	attrs := map[string][]string{}
	for _, stmt := range assertion.AttributeStatements {
		for _, attr := range stmt.Attributes {
			name := attr.FriendlyName
			if name == "" {
				name = attr.Name
			}
			for _, v := range attr.Values {
				if v.Value != "" {
					attrs[name] = append(attrs[name], v.Value)
				}
			}
		}
	}

	if vals := attrs[p.attrEmail]; len(vals) > 0 {
		doc["email"] = vals[0]
	}
	if vals := attrs[p.attrDisplayName]; len(vals) > 0 {
		doc["displayName"] = vals[0]
	}
	if vals := attrs[p.attrGroups]; len(vals) > 0 {
		doc["groups"] = vals
	}

	return doc
}

func loadIDPMetadata(cfg ProviderConfig, httpClient *http.Client) (*crewsaml.EntityDescriptor, error) {
	switch {
	case cfg.IDPMetadataURL != "":
		metaURL, err := url.Parse(cfg.IDPMetadataURL)
		if err != nil {
			return nil, fmt.Errorf("parse IdP metadata URL: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		md, err := samlsp.FetchMetadata(ctx, httpClient, *metaURL)
		if err != nil {
			return nil, fmt.Errorf("fetch IdP metadata: %w", err)
		}
		return md, nil
	case cfg.IDPMetadataFile != "":
		data, err := os.ReadFile(cfg.IDPMetadataFile)
		if err != nil {
			return nil, fmt.Errorf("read IdP metadata file: %w", err)
		}
		md, err := samlsp.ParseMetadata(data)
		if err != nil {
			return nil, fmt.Errorf("parse IdP metadata: %w", err)
		}
		return md, nil
	default:
		return nil, errors.New("either IdP metadata URL or file is required")
	}
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
