package odontogram

import (
	"context"

	"github.com/google/uuid"
)

// EventRepository is append-only: there is no update or delete.
type EventRepository interface {
	// ListByPatient returns events ordered by occurred_on then insertion.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]ClinicalEvent, error)
	ListByTooth(ctx context.Context, patientID uuid.UUID, tooth ToothID) ([]ClinicalEvent, error)
	Append(ctx context.Context, e *ClinicalEvent) error
}
