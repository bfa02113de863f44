package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/campusworks/caseboard-ui-api/internal/domain/auth"
	"github.com/campusworks/caseboard-ui-api/internal/ports"
)

func TestMockAssertionProvider_Defaults(t *testing.T) {
	provider := NewMockAssertionProvider()
	ctx := context.Background()

	res, err := provider.Begin(ctx, ports.BeginInput{RelayState: "/cases"})
	require.NoError(t, err)
	assert.Equal(t, "https://mock-idp/sso", res.LoginURL)
	assert.NotEmpty(t, res.RequestID)

	doc, err := provider.Consume(ctx, ports.ConsumeInput{Response: "dev", RequestID: res.RequestID})
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", doc["nameId"])
	assert.Equal(t, 1, provider.ConsumeCalls())
}

func TestMockAssertionProvider_ConsumeReturnsCopy(t *testing.T) {
	provider := NewMockAssertionProvider()
	ctx := context.Background()

	doc, err := provider.Consume(ctx, ports.ConsumeInput{Response: "dev"})
	require.NoError(t, err)
	doc["nameId"] = "tampered"

	doc2, err := provider.Consume(ctx, ports.ConsumeInput{Response: "dev"})
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", doc2["nameId"])
}

func TestMemoryTicketStore_OneTime(t *testing.T) {
	store := NewMemoryTicketStore()
	ctx := context.Background()

	require.NoError(t, store.Issue(ctx, "t1"))

	ok, err := store.Consume(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Consume(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Consume(ctx, "never")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStaticRoleMapper(t *testing.T) {
	m := StaticRoleMapper{AdminGroup: "admins", StaffGroup: "staff"}

	assert.Equal(t, domainauth.RoleAdmin, m.Map([]string{"staff", "admins"}))
	assert.Equal(t, domainauth.RoleStaff, m.Map([]string{"staff"}))
	assert.Equal(t, domainauth.RoleNone, m.Map([]string{"other"}))
	assert.Equal(t, domainauth.RoleNone, m.Map(nil))
}

func TestRecordingAuditor(t *testing.T) {
	a := &RecordingAuditor{}
	ctx := context.Background()

	require.NoError(t, a.Record(ctx, ports.AuditEntry{Subject: "jdoe", Event: ports.AuditLogin, Outcome: "success"}))
	require.NoError(t, a.Record(ctx, ports.AuditEntry{Subject: "jdoe", Event: ports.AuditLogout, Outcome: "success"}))

	entries := a.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, ports.AuditLogin, entries[0].Event)
	assert.Equal(t, ports.AuditLogout, entries[1].Event)
}
