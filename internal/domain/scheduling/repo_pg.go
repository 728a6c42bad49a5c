package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odonto/odonto/internal/platform/apperr"
	"github.com/odonto/odonto/internal/platform/db"
)

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

func (r *scheduleRepoPG) Get(ctx context.Context, practitionerID uuid.UUID) (*ScheduleConfig, error) {
	const op = "get schedule config"
	cfg := &ScheduleConfig{PractitionerID: practitionerID}
	var days []byte
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT days, slot_minutes, updated_at FROM schedule_config WHERE practitioner_id = $1`,
		practitionerID,
	).Scan(&days, &cfg.SlotMinutes, &cfg.UpdatedAt)
	if err != nil {
		return nil, db.Classify(op, err)
	}
	if err := json.Unmarshal(days, &cfg.Days); err != nil {
		return nil, apperr.Invariant(op, "stored days for practitioner %s are unreadable: %v", practitionerID, err)
	}
	return cfg, nil
}

func (r *scheduleRepoPG) Upsert(ctx context.Context, cfg *ScheduleConfig) error {
	days, err := json.Marshal(cfg.Days)
	if err != nil {
		return fmt.Errorf("encode schedule days: %w", err)
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO schedule_config (practitioner_id, days, slot_minutes, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (practitioner_id) DO UPDATE
			SET days = EXCLUDED.days, slot_minutes = EXCLUDED.slot_minutes, updated_at = NOW()
		RETURNING updated_at`,
		cfg.PractitionerID, days, cfg.SlotMinutes,
	).Scan(&cfg.UpdatedAt)
	return db.Classify("upsert schedule config", err)
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, patient_id, practitioner_id, start_at, duration_minutes, reason, notes,
	status, cancellation_reason, version, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(&a.ID, &a.PatientID, &a.PractitionerID, &a.Start, &a.DurationMinutes,
		&a.Reason, &a.Notes, &status, &a.CancellationReason, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	a.Status = Status(status)
	return &a, err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
	if err != nil {
		return nil, db.Classify("get appointment", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	const op = "list appointments"
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE practitioner_id = $1 AND start_at < $3 AND end_at > $2
		ORDER BY start_at, created_at`,
		practitionerID, from, to)
	if err != nil {
		return nil, db.Classify(op, err)
	}
	defer rows.Close()

	var items []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, db.Classify(op, err)
		}
		items = append(items, *a)
	}
	return items, db.Classify(op, rows.Err())
}

// overlapOrClassify turns a hit on the appointment exclusion constraint into
// an Overlap rejection.
func overlapOrClassify(op string, err error) error {
	if db.IsExclusionViolation(err) {
		return &Rejection{Reason: Overlap}
	}
	return db.Classify(op, err)
}

func (r *appointmentRepoPG) Insert(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.Version = 1
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, practitioner_id, start_at, end_at, duration_minutes,
			reason, notes, status, cancellation_reason, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.PractitionerID, a.Start, a.End(), a.DurationMinutes,
		a.Reason, a.Notes, string(a.Status), a.CancellationReason, a.Version,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return overlapOrClassify("insert appointment", err)
	}
	return nil
}

func (r *appointmentRepoPG) UpdateTiming(ctx context.Context, a *Appointment) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointment SET start_at = $3, end_at = $4, duration_minutes = $5,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`,
		a.ID, a.Version, a.Start, a.End(), a.DurationMinutes,
	).Scan(&a.Version, &a.UpdatedAt)
	return r.versioned("update appointment timing", err)
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, a *Appointment) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointment SET status = $3, cancellation_reason = $4,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`,
		a.ID, a.Version, string(a.Status), a.CancellationReason,
	).Scan(&a.Version, &a.UpdatedAt)
	return r.versioned("update appointment status", err)
}

// versioned reports a missing row after a version-guarded update as a
// conflict: either the appointment is gone or someone else changed it first.
func (r *appointmentRepoPG) versioned(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Conflict(op, "appointment was modified concurrently")
	}
	if err != nil {
		return overlapOrClassify(op, err)
	}
	return nil
}

func (r *appointmentRepoPG) WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if err := db.AdvisoryXactLock(ctx, "appointment:"+practitionerID.String()); err != nil {
			return err
		}
		return fn(ctx)
	})
}
