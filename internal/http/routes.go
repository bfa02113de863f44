package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/campusworks/caseboard-ui-api/internal/domain/auth"
	"github.com/campusworks/caseboard-ui-api/internal/ports"
	"github.com/campusworks/caseboard-ui-api/internal/service"
)

// RouterServices holds everything the HTTP router wires together.
type RouterServices struct {
	Auth    *service.AuthService
	Tickets ports.TicketStore
	// Audit is optional; the audit routes are absent when nil.
	Audit        AuditRepository
	CookieDomain string
	Logger       *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Svc:          services.Auth,
		Tickets:      services.Tickets,
		CookieDomain: services.CookieDomain,
		Logger:       logger,
	}
	registerAuthRoutes(mux, authHandlers)

	if services.Audit != nil {
		requireAdmin := RequireRole(services.Auth, domainauth.RoleAdmin)
		mux.Handle("GET /api/audit", requireAdmin(http.HandlerFunc((&AuditHandlers{Repo: services.Audit}).List)))
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("POST /auth/relay", h.Relay)
	// Dev-mode providers send the browser here with query parameters instead
	// of an IdP form post.
	mux.HandleFunc("GET /auth/relay", h.Relay)
	mux.HandleFunc("POST /auth/session", h.ConsumeSession)
	mux.HandleFunc("POST /auth/refresh", h.Refresh)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET /auth/introspect", h.Introspect)
}
