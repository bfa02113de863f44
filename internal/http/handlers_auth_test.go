package httpx

import (
	"context"
	"errors"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/caseboard-ui-api/internal/ports"
)

var hiddenInputRe = regexp.MustCompile(`name="(csrfToken|samlBody)" value="([^"]*)"`)

// relayForm extracts the hidden form fields from the relay page.
func relayForm(t *testing.T, body string) (csrfToken, samlBody string) {
	t.Helper()
	for _, m := range hiddenInputRe.FindAllStringSubmatch(body, -1) {
		switch m[1] {
		case "csrfToken":
			csrfToken = m[2]
		case "samlBody":
			samlBody = html.UnescapeString(m[2])
		}
	}
	return csrfToken, samlBody
}

// doRelay runs login + relay and returns the form fields plus the csrf cookie.
func doRelay(t *testing.T, f *AuthTestFixture) (csrfToken, samlBody string, csrfCookie *http.Cookie) {
	t.Helper()

	form := url.Values{"SAMLResponse": {"ZmFrZQ=="}, "RelayState": {"/cases"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/relay", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := f.Do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	csrfToken, samlBody = relayForm(t, rec.Body.String())
	require.NotEmpty(t, csrfToken)
	require.NotEmpty(t, samlBody)
	csrfCookie = CookieByName(rec, "csrf_token")
	require.NotNil(t, csrfCookie)
	require.Equal(t, csrfToken, csrfCookie.Value, "form token and cookie must be the same ticket")
	return csrfToken, samlBody, csrfCookie
}

// postSession submits the consumption form with the given token values.
func postSession(f *AuthTestFixture, csrfToken, samlBody string, cookie *http.Cookie) *httptest.ResponseRecorder {
	form := url.Values{"csrfToken": {csrfToken}, "samlBody": {samlBody}}
	req := httptest.NewRequest(http.MethodPost, "/auth/session", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return f.Do(req)
}

func TestLogin_RedirectsToProvider(t *testing.T) {
	f := NewAuthTestFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/login?redirect_uri=/cases/42", nil)
	rec := f.Do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://mock-idp/sso", rec.Header().Get("Location"))

	c := CookieByName(rec, "login_request_id")
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.NotEmpty(t, c.Value)
}

func TestLogin_ProviderDown(t *testing.T) {
	f := NewAuthTestFixture(t)
	f.Provider.BeginFunc = func(context.Context, ports.BeginInput) (ports.BeginResult, error) {
		return ports.BeginResult{}, errors.New("metadata fetch failed")
	}

	rec := f.Do(httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "metadata", "provider detail must not leak")
}

func TestRelay_RendersSelfSubmittingForm(t *testing.T) {
	f := NewAuthTestFixture(t)

	csrfToken, samlBody, _ := doRelay(t, f)
	assert.NotEmpty(t, csrfToken)
	assert.Contains(t, samlBody, "nameId")
}

func TestRelay_ProviderRejectionShowsFailurePage(t *testing.T) {
	f := NewAuthTestFixture(t)
	f.Provider.ConsumeFunc = func(context.Context, ports.ConsumeInput) (map[string]any, error) {
		return nil, errors.New("bad signature")
	}

	form := url.Values{"SAMLResponse": {"ZmFrZQ=="}}
	req := httptest.NewRequest(http.MethodPost, "/auth/relay", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := f.Do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "csrfToken", "rejected response must carry no form")
	assert.NotContains(t, rec.Body.String(), "bad signature")
}

func TestRelay_TicketFailureMeansNoForm(t *testing.T) {
	f := NewAuthTestFixture(t)
	f.Tickets.IssueErr = errors.New("redis down")

	form := url.Values{"SAMLResponse": {"ZmFrZQ=="}}
	req := httptest.NewRequest(http.MethodPost, "/auth/relay", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := f.Do(req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "csrfToken")
	assert.Nil(t, CookieByName(rec, "csrf_token"))
}

func TestConsumeSession_Success(t *testing.T) {
	f := NewAuthTestFixture(t)
	csrfToken, samlBody, cookie := doRelay(t, f)

	rec := postSession(f, csrfToken, samlBody, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"authenticated":true`)

	refresh := CookieByName(rec, "refresh-token")
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, "/auth", refresh.Path)
	assert.NotEmpty(t, refresh.Value)

	access := CookieByName(rec, "access-token")
	require.NotNil(t, access)
	assert.False(t, access.HttpOnly)
	assert.Equal(t, "/", access.Path)
}

func TestConsumeSession_CSRFMismatch(t *testing.T) {
	f := NewAuthTestFixture(t)
	_, samlBody, cookie := doRelay(t, f)

	rec := postSession(f, "forged-token", samlBody, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication_failed")
	assert.Nil(t, CookieByName(rec, "refresh-token"))
}

func TestConsumeSession_MissingCookie(t *testing.T) {
	f := NewAuthTestFixture(t)
	csrfToken, samlBody, _ := doRelay(t, f)

	rec := postSession(f, csrfToken, samlBody, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, CookieByName(rec, "refresh-token"))
}

func TestConsumeSession_TicketRedeemsOnce(t *testing.T) {
	f := NewAuthTestFixture(t)
	csrfToken, samlBody, cookie := doRelay(t, f)

	first := postSession(f, csrfToken, samlBody, cookie)
	require.Equal(t, http.StatusOK, first.Code)

	replay := postSession(f, csrfToken, samlBody, cookie)
	assert.Equal(t, http.StatusUnauthorized, replay.Code)
	assert.Contains(t, replay.Body.String(), "authentication_failed")
}

func TestConsumeSession_BodyWithoutSubjectRejected(t *testing.T) {
	f := NewAuthTestFixture(t)
	f.Provider.Document = map[string]any{"email": "jdoe@unc.edu"}
	csrfToken, samlBody, cookie := doRelay(t, f)

	rec := postSession(f, csrfToken, samlBody, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, CookieByName(rec, "refresh-token"))
	assert.Nil(t, CookieByName(rec, "access-token"))
}

// login drives the whole flow and returns the token cookies.
func login(t *testing.T, f *AuthTestFixture) (refresh, access *http.Cookie) {
	t.Helper()
	csrfToken, samlBody, cookie := doRelay(t, f)
	rec := postSession(f, csrfToken, samlBody, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refresh = CookieByName(rec, "refresh-token")
	access = CookieByName(rec, "access-token")
	require.NotNil(t, refresh)
	require.NotNil(t, access)
	return refresh, access
}

func TestRefresh_RotatesCookies(t *testing.T) {
	f := NewAuthTestFixture(t)
	refresh, access := login(t, f)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(refresh)
	rec := f.Do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	newRefresh := CookieByName(rec, "refresh-token")
	newAccess := CookieByName(rec, "access-token")
	require.NotNil(t, newRefresh)
	require.NotNil(t, newAccess)
	assert.NotEqual(t, refresh.Value, newRefresh.Value)
	assert.NotEqual(t, access.Value, newAccess.Value)
}

func TestRefresh_NoCookieIsTerminal(t *testing.T) {
	f := NewAuthTestFixture(t)

	rec := f.Do(httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "refresh_expired")

	// Both cookies are cleared so the client routes back through login.
	cleared := CookieByName(rec, "refresh-token")
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestRefresh_AccessTokenInRefreshCookieRejected(t *testing.T) {
	f := NewAuthTestFixture(t)
	_, access := login(t, f)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh-token", Value: access.Value})
	rec := f.Do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_ClearsCookiesAndIsIdempotent(t *testing.T) {
	f := NewAuthTestFixture(t)
	_, access := login(t, f)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(access)
	rec := f.Do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	cleared := CookieByName(rec, "refresh-token")
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	// Again, without any cookies at all.
	rec = f.Do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatus_Authenticated(t *testing.T) {
	f := NewAuthTestFixture(t)
	_, access := login(t, f)

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value)
	rec := f.Do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":true`)
	assert.Contains(t, rec.Body.String(), "mock-user-1")
}

func TestStatus_Anonymous(t *testing.T) {
	f := NewAuthTestFixture(t)

	rec := f.Do(httptest.NewRequest(http.MethodGet, "/auth/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":false`)
}

func TestStatus_TamperedToken(t *testing.T) {
	f := NewAuthTestFixture(t)
	_, access := login(t, f)

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value+"xx")
	rec := f.Do(req)
	assert.Contains(t, rec.Body.String(), `"authenticated":false`)
}

func TestIntrospect_EchoesPresentedTokens(t *testing.T) {
	f := NewAuthTestFixture(t)
	refresh, access := login(t, f)

	req := httptest.NewRequest(http.MethodGet, "/auth/introspect", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value)
	req.AddCookie(refresh)
	rec := f.Do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), access.Value)
	assert.Contains(t, rec.Body.String(), refresh.Value)
}

func TestHealthz(t *testing.T) {
	f := NewAuthTestFixture(t)
	rec := f.Do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
