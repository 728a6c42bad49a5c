package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/odonto/odonto/internal/platform/apperr"
	"github.com/odonto/odonto/internal/platform/civil"
	"github.com/odonto/odonto/internal/platform/telemetry"
)

// Booking operations as reported to metrics.
const (
	opCreate     = "create"
	opReschedule = "reschedule"
)

// MaxListRange bounds the window of a single appointment listing.
const MaxListRange = 93 * 24 * time.Hour

type Service struct {
	schedules          ScheduleRepository
	appointments       AppointmentRepository
	cal                Calendar
	clock              civil.Clock
	defaultSlotMinutes int
	logger             zerolog.Logger
	metrics            *telemetry.Metrics
}

type ServiceConfig struct {
	Calendar           Calendar
	Clock              civil.Clock
	DefaultSlotMinutes int
	Logger             zerolog.Logger
	Metrics            *telemetry.Metrics
}

func NewService(sched ScheduleRepository, appt AppointmentRepository, cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = civil.SystemClock()
	}
	return &Service{
		schedules:          sched,
		appointments:       appt,
		cal:                cfg.Calendar,
		clock:              clock,
		defaultSlotMinutes: cfg.DefaultSlotMinutes,
		logger:             cfg.Logger.With().Str("component", "scheduling").Logger(),
		metrics:            cfg.Metrics,
	}
}

func (s *Service) Calendar() Calendar { return s.cal }

// -- Schedule configuration --

func (s *Service) GetScheduleConfig(ctx context.Context, practitionerID uuid.UUID) (*ScheduleConfig, error) {
	if practitionerID == uuid.Nil {
		return nil, apperr.Validation("get schedule", "practitioner_id is required")
	}
	cfg, err := s.schedules.Get(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	if err := s.checkStoredConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UpsertScheduleConfig validates and stores a practitioner's weekly pattern.
// A zero SlotMinutes takes the installation default.
func (s *Service) UpsertScheduleConfig(ctx context.Context, cfg *ScheduleConfig) error {
	const op = "upsert schedule"
	if cfg.PractitionerID == uuid.Nil {
		return apperr.Validation(op, "practitioner_id is required")
	}
	if cfg.SlotMinutes == 0 {
		cfg.SlotMinutes = s.defaultSlotMinutes
	}
	if err := cfg.Validate(); err != nil {
		return apperr.Validation(op, "%v", err)
	}
	if err := s.schedules.Upsert(ctx, cfg); err != nil {
		return err
	}
	s.logger.Info().
		Str("practitioner_id", cfg.PractitionerID.String()).
		Int("slot_minutes", cfg.SlotMinutes).
		Msg("schedule config updated")
	return nil
}

// loadConfig returns the practitioner's configuration, or an empty one with
// no working days when none has been stored.
func (s *Service) loadConfig(ctx context.Context, practitionerID uuid.UUID) (*ScheduleConfig, error) {
	cfg, err := s.schedules.Get(ctx, practitionerID)
	if apperr.Is(err, apperr.KindNotFound) {
		return &ScheduleConfig{PractitionerID: practitionerID, SlotMinutes: s.defaultSlotMinutes}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load schedule config: %w", err)
	}
	if err := s.checkStoredConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Service) checkStoredConfig(cfg *ScheduleConfig) error {
	if err := cfg.Validate(); err != nil {
		s.logger.Error().Err(err).
			Str("practitioner_id", cfg.PractitionerID.String()).
			Msg("stored schedule config is invalid")
		return apperr.Invariant("load schedule config", "stored schedule for practitioner %s is invalid: %v", cfg.PractitionerID, err)
	}
	return nil
}

// -- Slots --

// GetBookableSlots lists the free slot instants of a practitioner on date,
// as seen at the current time.
func (s *Service) GetBookableSlots(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]time.Time, error) {
	if practitionerID == uuid.Nil {
		return nil, apperr.Validation("bookable slots", "practitioner_id is required")
	}
	if date.IsZero() {
		return nil, apperr.Validation("bookable slots", "date is required")
	}
	began := time.Now()

	cfg, err := s.loadConfig(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	from, to := s.cal.DayBounds(date)
	existing, err := s.appointments.ListByPractitioner(ctx, practitionerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	if err := s.checkStoredAppointments(existing); err != nil {
		return nil, err
	}

	slots := MaterializeSlotsForDate(cfg, date, existing, s.clock.Now(), s.cal)
	s.metrics.SlotsQueried(time.Since(began), len(slots))
	return slots, nil
}

// -- Appointments --

func (s *Service) checkStoredAppointments(items []Appointment) error {
	for i := range items {
		if items[i].DurationMinutes <= 0 {
			s.logger.Error().
				Str("appointment_id", items[i].ID.String()).
				Int("duration_minutes", items[i].DurationMinutes).
				Msg("stored appointment has a non-positive duration")
			return apperr.Invariant("load appointments", "appointment %s has duration %d", items[i].ID, items[i].DurationMinutes)
		}
	}
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkStoredAppointments([]Appointment{*a}); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAppointments returns a practitioner's appointments intersecting
// [from, to), cancelled ones included.
func (s *Service) ListAppointments(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	const op = "list appointments"
	if practitionerID == uuid.Nil {
		return nil, apperr.Validation(op, "practitioner_id is required")
	}
	if !from.Before(to) {
		return nil, apperr.Validation(op, "from must be before to")
	}
	if to.Sub(from) > MaxListRange {
		return nil, apperr.Validation(op, "range must not exceed %d days", int(MaxListRange/(24*time.Hour)))
	}
	items, err := s.appointments.ListByPractitioner(ctx, practitionerID, from, to)
	if err != nil {
		return nil, err
	}
	if err := s.checkStoredAppointments(items); err != nil {
		return nil, err
	}
	return items, nil
}

// BookingRequest is a proposed appointment before validation.
type BookingRequest struct {
	PatientID       uuid.UUID
	PractitionerID  uuid.UUID
	Start           time.Time
	DurationMinutes int
	Reason          string
	Notes           string
}

func validateTiming(op string, start time.Time, duration int) error {
	if start.IsZero() {
		return apperr.Validation(op, "start is required")
	}
	if duration <= 0 || duration > MaxDurationMinutes {
		return apperr.Validation(op, "duration_minutes must be between 1 and %d", MaxDurationMinutes)
	}
	return nil
}

func (r *BookingRequest) validate() error {
	const op = "submit booking"
	if r.PatientID == uuid.Nil {
		return apperr.Validation(op, "patient_id is required")
	}
	if r.PractitionerID == uuid.Nil {
		return apperr.Validation(op, "practitioner_id is required")
	}
	if err := validateTiming(op, r.Start, r.DurationMinutes); err != nil {
		return err
	}
	r.Reason = strings.TrimSpace(r.Reason)
	r.Notes = strings.TrimSpace(r.Notes)
	if utf8.RuneCountInString(r.Reason) > MaxTextLength || utf8.RuneCountInString(r.Notes) > MaxTextLength {
		return apperr.Validation(op, "reason and notes are limited to %d characters", MaxTextLength)
	}
	return nil
}

// SubmitBooking creates a scheduled appointment. The read of existing
// bookings, the rule check and the insert happen under the practitioner's
// booking lock, so two concurrent requests for the same time cannot both be
// accepted. A broken rule is returned as *Rejection.
func (s *Service) SubmitBooking(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	a := &Appointment{
		PatientID:       req.PatientID,
		PractitionerID:  req.PractitionerID,
		Start:           req.Start,
		DurationMinutes: req.DurationMinutes,
		Reason:          req.Reason,
		Notes:           req.Notes,
		Status:          StatusScheduled,
	}

	err := s.appointments.WithPractitionerLock(ctx, a.PractitionerID, func(ctx context.Context) error {
		if err := s.check(ctx, a); err != nil {
			return err
		}
		return s.appointments.Insert(ctx, a)
	})
	if err := s.observe(opCreate, a, err); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("practitioner_id", a.PractitionerID.String()).
		Str("patient_id", a.PatientID.String()).
		Time("start", a.Start).
		Int("duration_minutes", a.DurationMinutes).
		Msg("appointment booked")
	return a, nil
}

// check runs ValidateBooking against the practitioner's current calendar.
// It must be called under the practitioner lock.
func (s *Service) check(ctx context.Context, a *Appointment) error {
	cfg, err := s.loadConfig(ctx, a.PractitionerID)
	if err != nil {
		return err
	}
	existing, err := s.appointments.ListByPractitioner(ctx, a.PractitionerID, a.Start, a.End())
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}
	if err := s.checkStoredAppointments(existing); err != nil {
		return err
	}
	return ValidateBooking(*a, existing, cfg, s.clock.Now(), s.cal)
}

// observe records the outcome of a booking operation and passes err through.
func (s *Service) observe(op string, a *Appointment, err error) error {
	var rej *Rejection
	switch {
	case err == nil:
		s.metrics.BookingAccepted(op)
	case errors.As(err, &rej):
		s.metrics.BookingRejected(op, string(rej.Reason))
		s.logger.Debug().
			Str("operation", op).
			Str("practitioner_id", a.PractitionerID.String()).
			Time("start", a.Start).
			Str("reason", string(rej.Reason)).
			Msg("booking rejected")
	case apperr.Is(err, apperr.KindValidation), apperr.Is(err, apperr.KindNotFound), apperr.Is(err, apperr.KindConflict):
		s.metrics.BookingRejected(op, string(apperr.KindOf(err)))
	default:
		s.metrics.BookingFailed(op)
	}
	return err
}

// Reschedule moves an appointment to a new start and duration. The new
// timing is checked like a new booking, ignoring the appointment's own
// current slot.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, start time.Time, durationMinutes int) (*Appointment, error) {
	const op = "reschedule appointment"
	if err := validateTiming(op, start, durationMinutes); err != nil {
		return nil, err
	}
	current, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var a *Appointment
	err = s.appointments.WithPractitionerLock(ctx, current.PractitionerID, func(ctx context.Context) error {
		// Re-read under the lock; the row may have changed since.
		latest, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		a = latest
		if a.Status.Terminal() {
			return ErrTerminalStatus
		}
		a.Start = start
		a.DurationMinutes = durationMinutes
		if err := s.check(ctx, a); err != nil {
			return err
		}
		return s.appointments.UpdateTiming(ctx, a)
	})
	if a == nil {
		a = current
	}
	if err := s.observe(opReschedule, a, err); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Time("start", a.Start).
		Int("duration_minutes", a.DurationMinutes).
		Msg("appointment rescheduled")
	return a, nil
}

// Cancel marks an appointment cancelled, freeing its time. Cancelling an
// appointment that is already in a terminal status returns ErrTerminalStatus.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > MaxTextLength {
		return nil, apperr.Validation("cancel appointment", "reason is limited to %d characters", MaxTextLength)
	}
	return s.transition(ctx, id, StatusCancelled, reason)
}

// Transition moves an appointment along its lifecycle.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	if !validStatuses[to] {
		return nil, apperr.Validation("appointment transition", "invalid status %q", to)
	}
	return s.transition(ctx, id, to, "")
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, reason string) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := a.Status
	if err := checkTransition(from, to); err != nil {
		return nil, err
	}
	a.Status = to
	if to == StatusCancelled && reason != "" {
		a.CancellationReason = &reason
	}
	if err := s.appointments.UpdateStatus(ctx, a); err != nil {
		return nil, err
	}

	s.metrics.StatusChanged(string(to))
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("appointment status changed")
	return a, nil
}
