package assertion

// Package assertion decodes relayed identity-provider assertion bodies into
// normalized identity claims. The codec is pure: no I/O, no clock, no crypto;
// signature validation happens at the SAML library boundary before a body ever
// reaches it.

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/campusworks/caseboard-ui-api/internal/domain/auth"
	apperrors "github.com/campusworks/caseboard-ui-api/internal/errors"
)

// Mapping holds the JMESPath expressions used to pull claim fields out of the
// decoded assertion document. Identity providers disagree on attribute
// vocabularies; differing shapes are a config change, not a code change.
type Mapping struct {
	NameID      string
	Email       string
	DisplayName string
	Groups      string
}

// DefaultMapping matches the document shape produced by the SAML adapter.
func DefaultMapping() Mapping {
	return Mapping{
		NameID:      "nameId",
		Email:       "email",
		DisplayName: "displayName",
		Groups:      "groups",
	}
}

// Codec converts between the relayed wire form (URL-encoded JSON) and
// IdentityClaim values.
type Codec struct {
	mapping Mapping
}

// NewCodec builds a Codec, compiling the mapping expressions up front so a
// bad expression fails at construction rather than per login.
func NewCodec(m Mapping) (*Codec, error) {
	def := DefaultMapping()
	if m.NameID == "" {
		m.NameID = def.NameID
	}
	if m.Email == "" {
		m.Email = def.Email
	}
	if m.DisplayName == "" {
		m.DisplayName = def.DisplayName
	}
	if m.Groups == "" {
		m.Groups = def.Groups
	}
	for _, expr := range []string{m.NameID, m.Email, m.DisplayName, m.Groups} {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("compile attribute mapping %q: %w", expr, err)
		}
	}
	return &Codec{mapping: m}, nil
}

// Decode parses a raw relayed assertion body into an IdentityClaim.
// The body is the URL-encoded JSON document carried in the relay form field.
// Decode fails closed: any unescape or parse failure, and any document missing
// a subject identifier, yields an assertion-decode error and never a partial
// claim.
func (c *Codec) Decode(rawBody string) (domainauth.IdentityClaim, error) {
	if rawBody == "" {
		return domainauth.IdentityClaim{}, apperrors.AssertionDecode(errors.New("empty assertion body"))
	}

	unescaped, err := url.QueryUnescape(rawBody)
	if err != nil {
		return domainauth.IdentityClaim{}, apperrors.AssertionDecode(fmt.Errorf("unescape body: %w", err))
	}

	var doc any
	if err := json.Unmarshal([]byte(unescaped), &doc); err != nil {
		return domainauth.IdentityClaim{}, apperrors.AssertionDecode(fmt.Errorf("parse body: %w", err))
	}

	nameID, err := c.searchString(c.mapping.NameID, doc)
	if err != nil {
		return domainauth.IdentityClaim{}, apperrors.AssertionDecode(err)
	}
	if nameID == "" {
		return domainauth.IdentityClaim{}, apperrors.AssertionDecode(errors.New("assertion has no subject identifier"))
	}

	claim := domainauth.IdentityClaim{NameID: nameID}

	// Optional fields: absence is fine, evaluation failure is not.
	if claim.Email, err = c.searchString(c.mapping.Email, doc); err != nil {
		return domainauth.IdentityClaim{}, apperrors.AssertionDecode(err)
	}
	if claim.DisplayName, err = c.searchString(c.mapping.DisplayName, doc); err != nil {
		return domainauth.IdentityClaim{}, apperrors.AssertionDecode(err)
	}
	if claim.Groups, err = c.searchStrings(c.mapping.Groups, doc); err != nil {
		return domainauth.IdentityClaim{}, apperrors.AssertionDecode(err)
	}

	return claim, nil
}

// Encode serializes an assertion document to the relayed wire form.
// The relay uses this to build the hidden form field carried through the
// auto-submitting bridge.
func Encode(document map[string]any) (string, error) {
	data, err := json.Marshal(document)
	if err != nil {
		return "", fmt.Errorf("marshal assertion document: %w", err)
	}
	return url.QueryEscape(string(data)), nil
}

func (c *Codec) searchString(expr string, doc any) (string, error) {
	v, err := jmespath.Search(expr, doc)
	if err != nil {
		return "", fmt.Errorf("evaluate %q: %w", expr, err)
	}
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	default:
		return "", fmt.Errorf("attribute %q is not a string", expr)
	}
}

func (c *Codec) searchStrings(expr string, doc any) ([]string, error) {
	v, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	switch vals := v.(type) {
	case nil:
		return nil, nil
	case string:
		// Single-valued attribute releases come through as a bare string.
		return []string{vals}, nil
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("attribute %q contains a non-string element", expr)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("attribute %q is not a string list", expr)
	}
}
