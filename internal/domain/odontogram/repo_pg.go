package odontogram

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odonto/odonto/internal/platform/civil"
	"github.com/odonto/odonto/internal/platform/db"
)

type eventRepoPG struct{ pool *pgxpool.Pool }

func NewEventRepoPG(pool *pgxpool.Pool) EventRepository { return &eventRepoPG{pool: pool} }

const eventCols = `id, patient_id, tooth_id, occurred_on, condition, note, recorded_by, seq, created_at`

func scanEvent(row pgx.Row) (ClinicalEvent, error) {
	var e ClinicalEvent
	var tooth int
	var on time.Time
	var cond string
	err := row.Scan(&e.ID, &e.PatientID, &tooth, &on, &cond, &e.Note, &e.RecordedBy, &e.Seq, &e.CreatedAt)
	e.ToothID = ToothID(tooth)
	e.OccurredOn = civil.DateOf(on)
	// Stored conditions are not re-validated; the projection surfaces them.
	e.Condition = Condition(cond)
	return e, err
}

func (r *eventRepoPG) list(ctx context.Context, op, query string, args ...interface{}) ([]ClinicalEvent, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(op, err)
	}
	defer rows.Close()

	var items []ClinicalEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, db.Classify(op, err)
		}
		items = append(items, e)
	}
	return items, db.Classify(op, rows.Err())
}

func (r *eventRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]ClinicalEvent, error) {
	return r.list(ctx, "list clinical events",
		`SELECT `+eventCols+` FROM clinical_event WHERE patient_id = $1 ORDER BY occurred_on, seq`,
		patientID)
}

func (r *eventRepoPG) ListByTooth(ctx context.Context, patientID uuid.UUID, tooth ToothID) ([]ClinicalEvent, error) {
	return r.list(ctx, "list tooth events",
		`SELECT `+eventCols+` FROM clinical_event WHERE patient_id = $1 AND tooth_id = $2 ORDER BY occurred_on, seq`,
		patientID, int(tooth))
}

func (r *eventRepoPG) Append(ctx context.Context, e *ClinicalEvent) error {
	e.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO clinical_event (id, patient_id, tooth_id, occurred_on, condition, note, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq, created_at`,
		e.ID, e.PatientID, int(e.ToothID), e.OccurredOn.In(time.UTC), string(e.Condition), e.Note, e.RecordedBy,
	).Scan(&e.Seq, &e.CreatedAt)
	return db.Classify("append clinical event", err)
}
