package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/campusworks/caseboard-ui-api/internal/domain/auth"
	apperrors "github.com/campusworks/caseboard-ui-api/internal/errors"
	"github.com/campusworks/caseboard-ui-api/internal/ports"
	"github.com/campusworks/caseboard-ui-api/internal/service"
)

const (
	// refreshCookieName holds the refresh token. HttpOnly and path-scoped to
	// the auth endpoints so scripts and unrelated routes never see it.
	refreshCookieName = "refresh-token"
	// accessCookieName holds the access token for script diagnostics. It is
	// deliberately readable and never authoritative on its own; every check
	// re-verifies the signature.
	accessCookieName = "access-token"
	// loginRequestCookieName correlates the provider's response with the
	// request that initiated it.
	loginRequestCookieName = "login_request_id"

	loginTxnMaxAge = 600 // seconds, bounds the whole login round trip
)

// AuthServiceInterface defines the auth service operations handlers depend on.
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, relayState string) (*service.BeginLoginResult, error)
	RelayAssertion(ctx context.Context, in ports.ConsumeInput) (string, error)
	ConsumeAssertion(ctx context.Context, rawBody string) (*service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error)
	ReadSession(accessToken string) (domainauth.Session, error)
	Logout(ctx context.Context, accessToken string)
}

// AuthHandlers provides HTTP handlers for the login round trip and the token
// lifecycle endpoints.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	Tickets      ports.TicketStore
	CookieDomain string
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login initiates a login flow and redirects to the identity provider.
// GET /auth/login?redirect_uri=<optional_relative_path>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	result, err := h.Svc.BeginLogin(r.Context(), redirectURI)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin login failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusBadGateway,
			ErrCode: "login_failed",
			Err:     errors.New("unable to start login"),
		})
		return
	}

	// The request ID travels in a cookie so the relay can correlate the
	// provider's response with this exact request.
	http.SetCookie(w, &http.Cookie{
		Name:     loginRequestCookieName,
		Value:    result.RequestID,
		Path:     "/auth",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   loginTxnMaxAge,
	})

	http.Redirect(w, r, result.LoginURL, http.StatusFound)
}

// Relay consumes the identity provider's POSTed response, validates it, and
// answers with a self-submitting form that carries the one-time ticket and the
// normalized assertion body to the session endpoint.
// POST /auth/relay.
func (h *AuthHandlers) Relay(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLoginFailure(w, http.StatusBadRequest)
		return
	}

	requestID := ""
	if c, err := r.Cookie(loginRequestCookieName); err == nil {
		requestID = c.Value
	}
	h.clearCookie(w, r, loginRequestCookieName, "/auth")

	samlBody, err := h.Svc.RelayAssertion(r.Context(), ports.ConsumeInput{
		Response:   r.FormValue("SAMLResponse"),
		RequestID:  requestID,
		RelayState: r.FormValue("RelayState"),
	})
	if err != nil {
		h.renderLoginFailure(w, http.StatusUnauthorized)
		return
	}

	// The ticket gate: no ticket, no form. A broken ticket store must fail
	// the login here rather than hand the browser a form that cannot succeed.
	ticket, cookies, err := h.issueTicket(r)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "ticket issuance failed", "error", err)
		h.renderLoginFailure(w, http.StatusServiceUnavailable)
		return
	}
	for _, c := range cookies {
		http.SetCookie(w, c)
	}

	renderRelayForm(w, relayFormData{
		Action:      "/auth/session",
		CSRFToken:   ticket,
		SAMLBody:    samlBody,
		RedirectURI: safeRedirectPath(r.FormValue("RelayState")),
	})
}

// issueTicket mints a one-time ticket, persists it, and returns the cookies
// that must accompany the relay response.
func (h *AuthHandlers) issueTicket(r *http.Request) (string, []*http.Cookie, error) {
	token, err := generateTicketToken(ticketTokenLength)
	if err != nil {
		return "", nil, err
	}
	if err := h.Tickets.Issue(r.Context(), token); err != nil {
		return "", nil, err
	}
	cookie := &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/auth",
		Domain:   h.CookieDomain,
		HttpOnly: false,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   loginTxnMaxAge,
	}
	return token, []*http.Cookie{cookie}, nil
}

// ConsumeSession is the assertion consumer. The anti-forgery checks run before
// any decoding: double-submit match first, then one-time redemption, then the
// body. Every failure collapses to the same generic rejection.
// POST /auth/session.
func (h *AuthHandlers) ConsumeSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.rejectLogin(w, r, "malformed form")
		return
	}

	formToken := r.PostFormValue("csrfToken")
	cookieToken := ""
	if c, err := r.Cookie(csrfCookieName); err == nil {
		cookieToken = c.Value
	}
	if !ticketsMatch(formToken, cookieToken) {
		h.rejectLogin(w, r, "csrf token mismatch")
		return
	}

	spent, err := h.Tickets.Consume(r.Context(), formToken)
	if err != nil {
		h.rejectLogin(w, r, "ticket store error: "+err.Error())
		return
	}
	if !spent {
		h.rejectLogin(w, r, "ticket unknown or already redeemed")
		return
	}

	result, err := h.Svc.ConsumeAssertion(r.Context(), r.PostFormValue("samlBody"))
	if err != nil {
		h.rejectLogin(w, r, "assertion rejected")
		return
	}

	h.clearCookie(w, r, csrfCookieName, "/auth")
	h.setTokenCookies(w, r, result.Tokens)
	WriteJSON(w, http.StatusOK, sessionPayload(result.Session))
}

// rejectLogin writes the single generic login failure. The reason goes to the
// server log only; responses never reveal which check failed.
func (h *AuthHandlers) rejectLogin(w http.ResponseWriter, r *http.Request, reason string) {
	h.logger().WarnContext(r.Context(), "login rejected", "reason", reason)
	WriteError(w, ErrorParams{
		Code:    http.StatusUnauthorized,
		ErrCode: "authentication_failed",
		Err:     errors.New("authentication failed"),
	})
}

// Refresh exchanges the refresh cookie for a rotated token pair.
// POST /auth/refresh.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := ""
	if c, err := r.Cookie(refreshCookieName); err == nil {
		refreshToken = c.Value
	}

	pair, err := h.Svc.Refresh(r.Context(), refreshToken)
	if err != nil {
		// Terminal for this session. Clear both cookies so the client routes
		// back through login instead of retrying a dead refresh token.
		h.clearTokenCookies(w, r)
		if apperrors.IsUpstreamUnavailable(err) {
			WriteError(w, ErrorParams{
				Code:    http.StatusServiceUnavailable,
				ErrCode: "try_again",
				Err:     errors.New("authentication service unavailable"),
			})
			return
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "refresh_expired",
			Err:     errors.New("session expired"),
		})
		return
	}

	h.setTokenCookies(w, r, pair)
	sess, err := h.Svc.ReadSession(pair.AccessToken)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "refresh_failed", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, sessionPayload(sess))
}

// Logout clears the token cookies. Idempotent: logging out twice, or with no
// session at all, succeeds the same way.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	accessToken := ""
	if c, err := r.Cookie(accessCookieName); err == nil {
		accessToken = c.Value
	}
	h.Svc.Logout(r.Context(), accessToken)
	h.clearTokenCookies(w, r)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

// Status reports the current session reconstructed from the access token.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	token := bearerOrCookieToken(r)
	if token == "" {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	sess, err := h.Svc.ReadSession(token)
	if err != nil {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	WriteJSON(w, http.StatusOK, sessionPayload(sess))
}

// Introspect echoes the tokens the client presented. Diagnostic only; it
// verifies nothing and grants nothing.
// GET /auth/introspect.
func (h *AuthHandlers) Introspect(w http.ResponseWriter, r *http.Request) {
	accessToken := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		accessToken = strings.TrimPrefix(auth, "Bearer ")
	}
	refreshToken := ""
	if c, err := r.Cookie(refreshCookieName); err == nil {
		refreshToken = c.Value
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

func sessionPayload(s domainauth.Session) map[string]any {
	return map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":           s.Subject,
			"display_name": s.DisplayName,
			"email":        s.Email,
			"role":         s.Role,
		},
		"expires_at": s.ExpiresAt,
	}
}

// setTokenCookies writes both halves of the pair. The refresh cookie is the
// credential and stays HttpOnly on the auth path; the access cookie exists for
// script diagnostics and short-lived attachment.
func (h *AuthHandlers) setTokenCookies(w http.ResponseWriter, r *http.Request, pair domainauth.TokenPair) {
	isSecure := isSecureRequest(r)
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/auth",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(time.Until(pair.RefreshExpiresAt).Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: false,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(pair.AccessExpiresAt).Seconds()),
	})
}

func (h *AuthHandlers) clearTokenCookies(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, r, refreshCookieName, "/auth")
	h.clearCookie(w, r, accessCookieName, "/")
}

// clearCookie expires a cookie, mirroring the attributes used when setting it
// so browsers actually drop it.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// bearerOrCookieToken extracts the access token, preferring the Authorization
// header over the diagnostic cookie.
func bearerOrCookieToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if c, err := r.Cookie(accessCookieName); err == nil {
		return c.Value
	}
	return ""
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || isForwardedHTTPS(r)
}

// isForwardedHTTPS checks if the request was forwarded over HTTPS.
// Handles comma-separated values in X-Forwarded-Proto header.
func isForwardedHTTPS(r *http.Request) bool {
	xfProto := r.Header.Get("X-Forwarded-Proto")
	if xfProto == "" {
		return false
	}
	for _, proto := range strings.Split(xfProto, ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}

// safeRedirectPath ensures the provided redirect is a same-origin relative
// path starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
