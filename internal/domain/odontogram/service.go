package odontogram

import (
	"context"
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

type Service struct {
	events  EventRepository
	clock   civil.Clock
	loc     *time.Location
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

// NewService builds the chart service. loc decides what "today" means when
// rejecting events dated in the future.
func NewService(events EventRepository, clock civil.Clock, loc *time.Location, logger zerolog.Logger, metrics *telemetry.Metrics) *Service {
	return &Service{
		events:  events,
		clock:   clock,
		loc:     loc,
		logger:  logger.With().Str("component", "odontogram").Logger(),
		metrics: metrics,
	}
}

// GetCurrentChart projects every tooth's latest condition.
func (s *Service) GetCurrentChart(ctx context.Context, patientID uuid.UUID) (Chart, error) {
	return s.chart(ctx, patientID, nil)
}

// GetChartAsOf reconstructs the chart as it stood at the end of asOf.
func (s *Service) GetChartAsOf(ctx context.Context, patientID uuid.UUID, asOf civil.Date) (Chart, error) {
	if asOf.IsZero() {
		return nil, apperr.Validation("chart as of", "as_of date is required")
	}
	return s.chart(ctx, patientID, &asOf)
}

func (s *Service) chart(ctx context.Context, patientID uuid.UUID, asOf *civil.Date) (Chart, error) {
	if patientID == uuid.Nil {
		return nil, apperr.Validation("chart", "patient_id is required")
	}
	events, err := s.events.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load chart: %w", err)
	}
	for _, e := range events {
		if !e.ToothID.Valid() {
			s.logger.Error().
				Str("patient_id", patientID.String()).
				Str("event_id", e.ID.String()).
				Int("tooth", int(e.ToothID)).
				Msg("stored clinical event references an unknown tooth")
			return nil, apperr.Invariant("load chart", "stored event %s references unknown tooth %d", e.ID, int(e.ToothID))
		}
	}

	chart := ProjectChart(GroupByUnit(events), asOf)
	for _, st := range chart.Unrecognized() {
		s.metrics.UnknownConditionSeen()
		s.logger.Warn().
			Str("patient_id", patientID.String()).
			Int("tooth", int(st.Tooth)).
			Str("condition", string(st.Condition)).
			Msg("unrecognized condition in clinical record")
	}
	return chart, nil
}

// ToothHistory returns one tooth's events in chart order.
func (s *Service) ToothHistory(ctx context.Context, patientID uuid.UUID, tooth ToothID) ([]ClinicalEvent, error) {
	if patientID == uuid.Nil {
		return nil, apperr.Validation("tooth history", "patient_id is required")
	}
	if !tooth.Valid() {
		return nil, apperr.Validation("tooth history", "invalid tooth %d", int(tooth))
	}
	events, err := s.events.ListByTooth(ctx, patientID, tooth)
	if err != nil {
		return nil, fmt.Errorf("load tooth history: %w", err)
	}
	return NewEventLog(events...).Events(), nil
}

// RecordEventInput is a clinician's observation before validation.
type RecordEventInput struct {
	PatientID  uuid.UUID
	ToothID    ToothID
	OccurredOn civil.Date
	Condition  string
	Note       string
	RecordedBy string
}

// RecordEvent validates and appends a clinical event. Nothing is written if
// validation fails.
func (s *Service) RecordEvent(ctx context.Context, in RecordEventInput) (*ClinicalEvent, error) {
	const op = "record clinical event"

	if in.PatientID == uuid.Nil {
		return nil, apperr.Validation(op, "patient_id is required")
	}
	if !in.ToothID.Valid() {
		return nil, apperr.Validation(op, "invalid tooth %d", int(in.ToothID))
	}
	cond, err := ParseCondition(in.Condition)
	if err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}
	if in.OccurredOn.IsZero() {
		return nil, apperr.Validation(op, "occurred_on is required")
	}
	if today := civil.Today(s.clock, s.loc); in.OccurredOn.After(today) {
		return nil, apperr.Validation(op, "occurred_on %s is in the future", in.OccurredOn)
	}
	note := strings.TrimSpace(in.Note)
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return nil, apperr.Validation(op, "note exceeds %d characters", MaxNoteLength)
	}
	if in.RecordedBy == "" {
		return nil, apperr.Validation(op, "recorded_by is required")
	}

	e := &ClinicalEvent{
		PatientID:  in.PatientID,
		ToothID:    in.ToothID,
		OccurredOn: in.OccurredOn,
		Condition:  cond,
		Note:       note,
		RecordedBy: in.RecordedBy,
	}
	if err := s.events.Append(ctx, e); err != nil {
		return nil, err
	}

	s.metrics.ClinicalEventRecorded(string(cond))
	s.logger.Info().
		Str("patient_id", e.PatientID.String()).
		Str("event_id", e.ID.String()).
		Int("tooth", int(e.ToothID)).
		Str("condition", string(e.Condition)).
		Str("occurred_on", e.OccurredOn.String()).
		Str("recorded_by", e.RecordedBy).
		Msg("clinical event recorded")
	return e, nil
}
