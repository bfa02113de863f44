package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/campusworks/caseboard-ui-api/internal/data"
)

// AuditRepository lists recorded token-lifecycle events.
type AuditRepository interface {
	Recent(ctx context.Context, limit int) ([]data.LoginAudit, error)
	RecentForSubject(ctx context.Context, subject string, limit int) ([]data.LoginAudit, error)
}

// AuditHandlers serves the admin-only audit trail.
type AuditHandlers struct {
	Repo AuditRepository
}

// List returns recent audit rows, newest first.
// GET /api/audit?limit=<n>&subject=<optional>.
func (h *AuditHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	var (
		rows []data.LoginAudit
		err  error
	)
	if subject := r.URL.Query().Get("subject"); subject != "" {
		rows, err = h.Repo.RecentForSubject(r.Context(), subject, limit)
	} else {
		rows, err = h.Repo.Recent(r.Context(), limit)
	}
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"entries": rows, "count": len(rows)})
}
