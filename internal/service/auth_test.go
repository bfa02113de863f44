package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/caseboard-ui-api/internal/domain/assertion"
	domainauth "github.com/campusworks/caseboard-ui-api/internal/domain/auth"
	apperrors "github.com/campusworks/caseboard-ui-api/internal/errors"
	mocks "github.com/campusworks/caseboard-ui-api/internal/mocks/auth"
	"github.com/campusworks/caseboard-ui-api/internal/ports"
	"github.com/campusworks/caseboard-ui-api/internal/token"
)

type countingSink struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (c *countingSink) Count(name string, value int64, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int64{}
	}
	c.counts[name+":"+tags["outcome"]] += value
}

func (c *countingSink) Timing(string, time.Duration, map[string]string) {}

func (c *countingSink) get(key string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

type authFixture struct {
	svc      *AuthService
	provider *mocks.MockAssertionProvider
	auditor  *mocks.RecordingAuditor
	sink     *countingSink
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	codec, err := assertion.NewCodec(assertion.Mapping{})
	require.NoError(t, err)

	issuer, err := token.NewIssuer(token.Config{
		SigningSecret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "caseboard",
		Audience:      "caseboard-ui",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    12 * time.Hour,
	})
	require.NoError(t, err)

	provider := mocks.NewMockAssertionProvider()
	auditor := &mocks.RecordingAuditor{}
	sink := &countingSink{}

	svc, err := NewAuthService(AuthServiceOptions{
		Provider: provider,
		Codec:    codec,
		Roles:    mocks.StaticRoleMapper{AdminGroup: "admins", StaffGroup: "staff"},
		Issuer:   issuer,
		Auditor:  auditor,
		Metrics:  sink,
	})
	require.NoError(t, err)

	return &authFixture{svc: svc, provider: provider, auditor: auditor, sink: sink}
}

func encodedBody(t *testing.T, doc map[string]any) string {
	t.Helper()
	body, err := assertion.Encode(doc)
	require.NoError(t, err)
	return body
}

func TestAuthService_BeginLogin(t *testing.T) {
	f := newAuthFixture(t)

	res, err := f.svc.BeginLogin(context.Background(), "/cases/42")
	require.NoError(t, err)
	assert.Equal(t, "https://mock-idp/sso", res.LoginURL)
	assert.NotEmpty(t, res.RequestID)
}

func TestAuthService_BeginLogin_ProviderError(t *testing.T) {
	f := newAuthFixture(t)
	f.provider.BeginFunc = func(context.Context, ports.BeginInput) (ports.BeginResult, error) {
		return ports.BeginResult{}, errors.New("metadata unavailable")
	}

	_, err := f.svc.BeginLogin(context.Background(), "/")
	require.Error(t, err)
}

func TestAuthService_RelayAssertion(t *testing.T) {
	f := newAuthFixture(t)

	body, err := f.svc.RelayAssertion(context.Background(), ports.ConsumeInput{Response: "resp", RequestID: "id-1"})
	require.NoError(t, err)

	codec, err := assertion.NewCodec(assertion.Mapping{})
	require.NoError(t, err)
	claim, err := codec.Decode(body)
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", claim.NameID)
}

func TestAuthService_RelayAssertion_RejectedIsGeneric(t *testing.T) {
	f := newAuthFixture(t)
	f.provider.ConsumeFunc = func(context.Context, ports.ConsumeInput) (map[string]any, error) {
		return nil, errors.New("signature did not verify against idp cert serial 4711")
	}

	_, err := f.svc.RelayAssertion(context.Background(), ports.ConsumeInput{Response: "resp"})
	require.Error(t, err)
	assert.True(t, apperrors.IsAssertionDecode(err))
	assert.Equal(t, int64(1), f.sink.get("auth.login:rejected"))

	entries := f.auditor.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "rejected", entries[0].Outcome)
}

func TestAuthService_ConsumeAssertion_Success(t *testing.T) {
	f := newAuthFixture(t)

	body := encodedBody(t, map[string]any{
		"nameId":      "jdoe",
		"email":       "jdoe@unc.edu",
		"displayName": "Jane Doe",
		"groups":      []string{"staff"},
	})

	res, err := f.svc.ConsumeAssertion(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", res.Session.Subject)
	assert.Equal(t, domainauth.RoleStaff, res.Session.Role)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.Equal(t, int64(1), f.sink.get("auth.login:success"))

	entries := f.auditor.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, ports.AuditLogin, entries[0].Event)
	assert.Equal(t, "jdoe", entries[0].Subject)
}

func TestAuthService_ConsumeAssertion_UnknownGroupsGetNoRole(t *testing.T) {
	f := newAuthFixture(t)

	body := encodedBody(t, map[string]any{
		"nameId": "jdoe",
		"groups": []string{"chess-club"},
	})

	res, err := f.svc.ConsumeAssertion(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleNone, res.Session.Role)
	assert.False(t, res.Session.HasRole())
}

func TestAuthService_ConsumeAssertion_DecodeFailureIsRejected(t *testing.T) {
	f := newAuthFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "%3Csamlp%3AResponse%2F%3E"},
		{"missing subject", encodedBody(t, map[string]any{"email": "jdoe@unc.edu"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ConsumeAssertion(context.Background(), tt.body)
			require.Error(t, err)
			assert.True(t, apperrors.IsAssertionDecode(err))
		})
	}
	assert.Equal(t, int64(3), f.sink.get("auth.login:rejected"))
}

func TestAuthService_ConsumeAssertion_AuditFailureDoesNotFailLogin(t *testing.T) {
	f := newAuthFixture(t)
	f.auditor.RecordErr = errors.New("audit store down")

	body := encodedBody(t, map[string]any{"nameId": "jdoe", "groups": []string{"staff"}})
	_, err := f.svc.ConsumeAssertion(context.Background(), body)
	require.NoError(t, err)
}

func TestAuthService_Refresh_RotatesPair(t *testing.T) {
	f := newAuthFixture(t)

	body := encodedBody(t, map[string]any{"nameId": "jdoe", "groups": []string{"admins"}})
	login, err := f.svc.ConsumeAssertion(context.Background(), body)
	require.NoError(t, err)

	renewed, err := f.svc.Refresh(context.Background(), login.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.Tokens.AccessToken, renewed.AccessToken)
	assert.NotEqual(t, login.Tokens.RefreshToken, renewed.RefreshToken)
	assert.Equal(t, int64(1), f.sink.get("auth.refresh:success"))
}

func TestAuthService_Refresh_AbsentTokenShortCircuits(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Refresh(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsRefreshExpired(err))
	assert.Equal(t, int64(1), f.sink.get("auth.refresh:rejected"))
}

func TestAuthService_Refresh_GarbageTokenIsTerminal(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Refresh(context.Background(), "not-a-jwt")
	require.Error(t, err)
	assert.True(t, apperrors.IsRefreshExpired(err))
}

func TestAuthService_Logout_Idempotent(t *testing.T) {
	f := newAuthFixture(t)

	body := encodedBody(t, map[string]any{"nameId": "jdoe", "groups": []string{"staff"}})
	login, err := f.svc.ConsumeAssertion(context.Background(), body)
	require.NoError(t, err)

	f.svc.Logout(context.Background(), login.Tokens.AccessToken)
	f.svc.Logout(context.Background(), login.Tokens.AccessToken)
	f.svc.Logout(context.Background(), "")

	assert.Equal(t, int64(3), f.sink.get("auth.logout:success"))
}
