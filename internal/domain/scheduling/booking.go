package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// RejectionReason names the business rule a booking broke.
type RejectionReason string

const (
	PastDateTime        RejectionReason = "PastDateTime"
	OutsideWorkingHours RejectionReason = "OutsideWorkingHours"
	Overlap             RejectionReason = "Overlap"
)

// Rejection is returned when a well-formed booking breaks a scheduling rule.
type Rejection struct {
	Reason RejectionReason `json:"reason"`
	// ConflictsWith is set for Overlap when the colliding appointment is known.
	ConflictsWith *uuid.UUID `json:"conflicts_with,omitempty"`
}

func (r *Rejection) Error() string {
	return "booking rejected: " + string(r.Reason)
}

// ValidateBooking checks a proposed appointment against the clock, the
// practitioner's working windows and the existing bookings, in that order.
// The first failed rule is reported. The proposal itself, matched by ID, is
// ignored among existing so that a reschedule does not collide with its own
// old timing.
func ValidateBooking(proposed Appointment, existing []Appointment, cfg *ScheduleConfig, now time.Time, cal Calendar) error {
	if !proposed.Start.After(now) {
		return &Rejection{Reason: PastDateTime}
	}

	if !withinWorkingHours(cfg, proposed.Start, cal) {
		return &Rejection{Reason: OutsideWorkingHours}
	}

	if c := conflicting(existing, proposed.PractitionerID, proposed.ID, proposed.Start, proposed.End()); c != nil {
		id := c.ID
		return &Rejection{Reason: Overlap, ConflictsWith: &id}
	}
	return nil
}

func withinWorkingHours(cfg *ScheduleConfig, start time.Time, cal Calendar) bool {
	date := cal.DateOf(start)
	tod := cal.TimeOfDayOf(start)
	for _, w := range cfg.Day(date.Weekday()).Windows() {
		if w.Contains(tod) {
			return true
		}
	}
	return false
}

// conflicting returns the first occupying appointment of practitionerID,
// other than self, that intersects [start, end).
func conflicting(existing []Appointment, practitionerID, self uuid.UUID, start, end time.Time) *Appointment {
	for i := range existing {
		a := &existing[i]
		if a.PractitionerID != practitionerID || !a.Status.Occupies() {
			continue
		}
		if self != uuid.Nil && a.ID == self {
			continue
		}
		if a.Overlaps(start, end) {
			return a
		}
	}
	return nil
}
