package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/campusworks/caseboard-ui-api/internal/domain/auth"
	apperrors "github.com/campusworks/caseboard-ui-api/internal/errors"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestIssuer(t *testing.T, now func() time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer(Config{
		SigningSecret: testSecret,
		Issuer:        "caseboard",
		Audience:      "caseboard-ui",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    12 * time.Hour,
		Now:           now,
	})
	require.NoError(t, err)
	return iss
}

func testClaim() domainauth.IdentityClaim {
	return domainauth.IdentityClaim{
		NameID:      "jdoe",
		Email:       "jdoe@unc.edu",
		DisplayName: "Jane Doe",
	}
}

func TestNewIssuer_Validation(t *testing.T) {
	_, err := NewIssuer(Config{SigningSecret: []byte("short"), AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.Error(t, err)

	_, err = NewIssuer(Config{SigningSecret: testSecret, AccessTTL: 0, RefreshTTL: time.Hour})
	require.Error(t, err)

	_, err = NewIssuer(Config{SigningSecret: testSecret, AccessTTL: time.Hour, RefreshTTL: time.Minute})
	require.Error(t, err, "refresh TTL shorter than access TTL must be rejected")
}

func TestIssuer_IssueTwiceYieldsDistinctTokens(t *testing.T) {
	iss := newTestIssuer(t, nil)

	first, err := iss.Issue(testClaim(), domainauth.RoleStaff)
	require.NoError(t, err)
	second, err := iss.Issue(testClaim(), domainauth.RoleStaff)
	require.NoError(t, err)

	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
}

func TestIssuer_RoundTripPreservesIdentity(t *testing.T) {
	iss := newTestIssuer(t, nil)

	pair, err := iss.Issue(testClaim(), domainauth.RoleStaff)
	require.NoError(t, err)

	sess, err := iss.ReadSession(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", sess.Subject)
	assert.Equal(t, "jdoe@unc.edu", sess.Email)
	assert.Equal(t, "Jane Doe", sess.DisplayName)
	assert.Equal(t, domainauth.RoleStaff, sess.Role)
	assert.Equal(t, pair.AccessToken, sess.AccessToken)
}

func TestIssuer_NoRoleSupplied(t *testing.T) {
	iss := newTestIssuer(t, nil)

	pair, err := iss.Issue(testClaim(), domainauth.RoleNone)
	require.NoError(t, err)

	sess, err := iss.ReadSession(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleNone, sess.Role)
	assert.False(t, sess.HasRole(), "missing provider role must not default to privilege")
}

func TestIssuer_ExpiredAccessTokenYieldsNoSession(t *testing.T) {
	now := time.Now()
	clock := now
	iss := newTestIssuer(t, func() time.Time { return clock })

	pair, err := iss.Issue(testClaim(), domainauth.RoleStaff)
	require.NoError(t, err)

	clock = now.Add(16 * time.Minute)
	_, err = iss.ReadSession(pair.AccessToken)
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthenticated(err))
}

func TestIssuer_RefreshRotatesBothTokens(t *testing.T) {
	iss := newTestIssuer(t, nil)

	pair, err := iss.Issue(testClaim(), domainauth.RoleAdmin)
	require.NoError(t, err)

	renewed, err := iss.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, renewed.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, renewed.RefreshToken)

	// Claims survive the rotation without consulting the provider again.
	sess, err := iss.ReadSession(renewed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", sess.Subject)
	assert.Equal(t, domainauth.RoleAdmin, sess.Role)
}

func TestIssuer_RefreshWithAccessTokenRejected(t *testing.T) {
	iss := newTestIssuer(t, nil)

	pair, err := iss.Issue(testClaim(), domainauth.RoleStaff)
	require.NoError(t, err)

	_, err = iss.Refresh(pair.AccessToken)
	require.Error(t, err)
	assert.True(t, apperrors.IsRefreshExpired(err), "use-marker confusion must be terminal")
}

func TestIssuer_RefreshAbsentToken(t *testing.T) {
	iss := newTestIssuer(t, nil)
	_, err := iss.Refresh("")
	require.Error(t, err)
	assert.True(t, apperrors.IsRefreshExpired(err))
}

func TestIssuer_RefreshExpiredToken(t *testing.T) {
	now := time.Now()
	clock := now
	iss := newTestIssuer(t, func() time.Time { return clock })

	pair, err := iss.Issue(testClaim(), domainauth.RoleStaff)
	require.NoError(t, err)

	clock = now.Add(13 * time.Hour)
	_, err = iss.Refresh(pair.RefreshToken)
	require.Error(t, err)
	assert.True(t, apperrors.IsRefreshExpired(err))
}

func TestIssuer_TamperedTokenRejected(t *testing.T) {
	iss := newTestIssuer(t, nil)

	pair, err := iss.Issue(testClaim(), domainauth.RoleStaff)
	require.NoError(t, err)

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	_, err = iss.ReadSession(tampered)
	require.Error(t, err)

	otherIssuer, err := NewIssuer(Config{
		SigningSecret: []byte("ffffffffffffffffffffffffffffffff"),
		Issuer:        "caseboard",
		Audience:      "caseboard-ui",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    12 * time.Hour,
	})
	require.NoError(t, err)
	_, err = otherIssuer.ReadSession(pair.AccessToken)
	require.Error(t, err, "token signed with a different secret must not read")
}

func TestIssuer_AccessExpiryCarriedAsClaim(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	iss := newTestIssuer(t, func() time.Time { return now })

	pair, err := iss.Issue(testClaim(), domainauth.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), pair.AccessExpiresAt)

	sess, err := iss.ReadSession(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, pair.AccessExpiresAt.Unix(), sess.ExpiresAt.Unix())
}
