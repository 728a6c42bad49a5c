package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// auditRecorderPG appends audit entries to the audit_access table.
type auditRecorderPG struct {
	db      execer
	timeout time.Duration
}

// NewAuditRecorderPG records entries through db, normally a *pgxpool.Pool.
func NewAuditRecorderPG(db execer) AuditRecorder {
	return &auditRecorderPG{db: db, timeout: 2 * time.Second}
}

func (r *auditRecorderPG) RecordAccess(entry AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	roles := entry.UserRoles
	if roles == nil {
		roles = []string{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_access (recorded_at, request_id, user_id, user_roles, action, route,
			patient_id, practitioner_id, appointment_id, status_code, remote_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.Timestamp, entry.RequestID, entry.UserID, roles, entry.Action, entry.Route,
		entry.PatientID, entry.PractitionerID, entry.AppointmentID, entry.StatusCode, entry.RemoteIP,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
