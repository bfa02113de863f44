package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campusworks/caseboard-ui-api/internal/data/pgxutil"
	apperrors "github.com/campusworks/caseboard-ui-api/internal/errors"
	"github.com/campusworks/caseboard-ui-api/internal/ports"
)

// LoginAudit is one append-only audit row. Rows are never updated or deleted
// by the application.
type LoginAudit struct {
	ID        int64     `db:"id"`
	Subject   string    `db:"subject"`
	Event     string    `db:"event"`
	Outcome   string    `db:"outcome"`
	Detail    string    `db:"detail"`
	CreatedAt time.Time `db:"created_at"`
}

// LoginAuditRepo persists token-lifecycle audit events.
type LoginAuditRepo struct {
	DB *sql.DB
}

var _ ports.LoginAuditor = (*LoginAuditRepo)(nil)

// NewLoginAuditRepo creates a new LoginAuditRepo.
func NewLoginAuditRepo(db *sql.DB) *LoginAuditRepo {
	return &LoginAuditRepo{DB: db}
}

// Record appends one audit row. Callers treat failures as best effort.
func (r *LoginAuditRepo) Record(ctx context.Context, entry ports.AuditEntry) error {
	if entry.Event == "" {
		return errors.New("audit event is required")
	}
	if entry.Outcome == "" {
		return errors.New("audit outcome is required")
	}

	const query = `
		INSERT INTO login_audit (subject, event, outcome, detail)
		VALUES ($1, $2, $3, $4)`

	_, err := r.DB.ExecContext(ctx, query,
		entry.Subject, string(entry.Event), entry.Outcome, entry.Detail)
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// Recent returns the newest audit rows, newest first.
func (r *LoginAuditRepo) Recent(ctx context.Context, limit int) ([]LoginAudit, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	const query = `
		SELECT id, subject, event, outcome, detail, created_at
		FROM login_audit
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	var rows []LoginAudit
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		pgxRows, err := conn.Query(ctx, query, limit)
		if err != nil {
			return err
		}
		defer pgxRows.Close()
		rows, err = pgx.CollectRows(pgxRows, pgx.RowToStructByName[LoginAudit])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return rows, nil
}

// RecentForSubject returns the newest audit rows for one subject.
func (r *LoginAuditRepo) RecentForSubject(ctx context.Context, subject string, limit int) ([]LoginAudit, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	const query = `
		SELECT id, subject, event, outcome, detail, created_at
		FROM login_audit
		WHERE subject = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	var rows []LoginAudit
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		pgxRows, err := conn.Query(ctx, query, subject, limit)
		if err != nil {
			return err
		}
		defer pgxRows.Close()
		rows, err = pgx.CollectRows(pgxRows, pgx.RowToStructByName[LoginAudit])
		return err
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return rows, nil
}
