package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ScheduleRepository interface {
	// Get returns an apperr NotFound error when the practitioner has no
	// configuration.
	Get(ctx context.Context, practitionerID uuid.UUID) (*ScheduleConfig, error)
	Upsert(ctx context.Context, cfg *ScheduleConfig) error
}

type AppointmentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListByPractitioner returns the appointments, in any status, that
	// intersect [from, to), ordered by start.
	ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error)
	// Insert assigns ID, Version and timestamps. A collision caught by the
	// store is reported as a *Rejection with reason Overlap.
	Insert(ctx context.Context, a *Appointment) error
	// UpdateTiming and UpdateStatus succeed only if a.Version still matches
	// the stored row; they bump Version on success.
	UpdateTiming(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, a *Appointment) error
	// WithPractitionerLock runs fn while holding the practitioner's booking
	// lock. Reads and writes made by fn through the derived context see a
	// consistent calendar.
	WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error
}
