package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/campusworks/caseboard-ui-api/internal/domain/auth"
)

func protectedEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := GetSessionFromContext(r.Context())
		require.NotNil(t, sess, "middleware must put the session in context")
		WriteJSON(w, http.StatusOK, map[string]string{"subject": sess.Subject})
	})
}

func TestRequireAuth_NoToken(t *testing.T) {
	f := NewAuthTestFixture(t)
	handler := RequireAuth(f.Svc)(protectedEcho(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication_required")
}

func TestRequireAuth_BearerToken(t *testing.T) {
	f := NewAuthTestFixture(t)
	_, access := login(t, f)
	handler := RequireAuth(f.Svc)(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mock-user-1")
}

func TestRequireAuth_AccessCookieFallback(t *testing.T) {
	f := NewAuthTestFixture(t)
	_, access := login(t, f)
	handler := RequireAuth(f.Svc)(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.AddCookie(access)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole_StaffCannotReachAdmin(t *testing.T) {
	f := NewAuthTestFixture(t)
	// Default mock document carries groups ["users"], which map to no role.
	f.Provider.Document["groups"] = []string{"caseboard-staff"}
	_, access := login(t, f)

	handler := RequireRole(f.Svc, domainauth.RoleAdmin)(protectedEcho(t))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient_permissions")
}

func TestRequireRole_AdminPasses(t *testing.T) {
	f := NewAuthTestFixture(t)
	f.Provider.Document["groups"] = []string{"caseboard-admins"}
	_, access := login(t, f)

	handler := RequireRole(f.Svc, domainauth.RoleStaff)(protectedEcho(t))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole_NoRoleIsDenied(t *testing.T) {
	f := NewAuthTestFixture(t)
	_, access := login(t, f)

	handler := RequireRole(f.Svc, domainauth.RoleStaff)(protectedEcho(t))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOptionalAuth(t *testing.T) {
	f := NewAuthTestFixture(t)
	var sawSession bool
	handler := OptionalAuth(f.Svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSession = GetSessionFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, sawSession)

	_, access := login(t, f)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, sawSession)
}

func TestRecover_PanicBecomes500(t *testing.T) {
	f := NewAuthTestFixture(t)
	_ = f
	handler := Recover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHasRequiredRole(t *testing.T) {
	tests := []struct {
		user, required domainauth.Role
		want           bool
	}{
		{domainauth.RoleAdmin, domainauth.RoleAdmin, true},
		{domainauth.RoleAdmin, domainauth.RoleStaff, true},
		{domainauth.RoleStaff, domainauth.RoleAdmin, false},
		{domainauth.RoleStaff, domainauth.RoleStaff, true},
		{domainauth.RoleNone, domainauth.RoleStaff, false},
		{domainauth.Role("bogus"), domainauth.RoleStaff, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hasRequiredRole(tt.user, tt.required), "%s vs %s", tt.user, tt.required)
	}
}
