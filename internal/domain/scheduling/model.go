package scheduling

import (
	"fmt"
	"time"

	gcivil "cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// TimeOfDay is a wall-clock time in minutes since midnight, read in the
// clinic's reference zone. EndOfDay is only meaningful as a window end.
type TimeOfDay int

const EndOfDay TimeOfDay = 24 * 60

// ParseTimeOfDay accepts "HH:MM" in 24-hour form, plus "24:00" for the end of
// the day.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' || !digits(s[:2]) || !digits(s[3:]) {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	if s == "24:00" {
		return EndOfDay, nil
	}
	ct, err := gcivil.ParseTime(s + ":00")
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: out of range", s)
	}
	return TimeOfDayOfCivil(ct), nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// TimeOfDayOfCivil truncates a civil time to the minute.
func TimeOfDayOfCivil(ct gcivil.Time) TimeOfDay {
	return TimeOfDay(ct.Hour*60 + ct.Minute)
}

// Civil returns t as a civil time. EndOfDay maps to hour 24, which
// time.Date normalises to the next midnight.
func (t TimeOfDay) Civil() gcivil.Time {
	return gcivil.Time{Hour: t.Hour(), Minute: t.Minute()}
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	if t == EndOfDay {
		return "24:00"
	}
	// civil.Time prints HH:MM:SS.
	return t.Civil().String()[:5]
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Window is a half-open working interval [Start, End).
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (w Window) Contains(t TimeOfDay) bool { return t >= w.Start && t < w.End }

// DaySchedule holds up to two working windows for one weekday. The afternoon
// window can only follow the morning window.
type DaySchedule struct {
	Working        bool       `json:"working"`
	MorningStart   *TimeOfDay `json:"morning_start,omitempty"`
	MorningEnd     *TimeOfDay `json:"morning_end,omitempty"`
	AfternoonStart *TimeOfDay `json:"afternoon_start,omitempty"`
	AfternoonEnd   *TimeOfDay `json:"afternoon_end,omitempty"`
}

func (d DaySchedule) Validate() error {
	for name, t := range map[string]*TimeOfDay{"morning_start": d.MorningStart, "afternoon_start": d.AfternoonStart} {
		if t != nil && *t >= EndOfDay {
			return fmt.Errorf("%s cannot be %s", name, t)
		}
	}
	if d.MorningEnd != nil {
		if d.MorningStart == nil {
			return fmt.Errorf("morning_end requires morning_start")
		}
		if *d.MorningEnd <= *d.MorningStart {
			return fmt.Errorf("morning_end %s must be after morning_start %s", d.MorningEnd, d.MorningStart)
		}
	} else if d.MorningStart != nil {
		return fmt.Errorf("morning_start requires morning_end")
	}

	if d.AfternoonStart != nil {
		if d.MorningEnd == nil {
			return fmt.Errorf("afternoon_start requires morning_end")
		}
		if *d.AfternoonStart < *d.MorningEnd {
			return fmt.Errorf("afternoon_start %s must not be before morning_end %s", d.AfternoonStart, d.MorningEnd)
		}
		if d.AfternoonEnd == nil {
			return fmt.Errorf("afternoon_start requires afternoon_end")
		}
	}
	if d.AfternoonEnd != nil {
		if d.AfternoonStart == nil {
			return fmt.Errorf("afternoon_end requires afternoon_start")
		}
		if *d.AfternoonEnd <= *d.AfternoonStart {
			return fmt.Errorf("afternoon_end %s must be after afternoon_start %s", d.AfternoonEnd, d.AfternoonStart)
		}
	}

	if d.Working && d.MorningStart == nil {
		return fmt.Errorf("a working day needs at least a morning window")
	}
	return nil
}

// Windows returns the complete windows of a working day, morning first. A
// non-working day has none.
func (d DaySchedule) Windows() []Window {
	if !d.Working {
		return nil
	}
	var out []Window
	if d.MorningStart != nil && d.MorningEnd != nil {
		out = append(out, Window{Start: *d.MorningStart, End: *d.MorningEnd})
	}
	if d.AfternoonStart != nil && d.AfternoonEnd != nil {
		out = append(out, Window{Start: *d.AfternoonStart, End: *d.AfternoonEnd})
	}
	return out
}

const (
	MinSlotMinutes = 5
	MaxSlotMinutes = 240
)

// ScheduleConfig is one practitioner's weekly working pattern. Days is
// indexed by time.Weekday, so Days[0] is Sunday.
type ScheduleConfig struct {
	PractitionerID uuid.UUID      `json:"practitioner_id"`
	Days           [7]DaySchedule `json:"days"`
	SlotMinutes    int            `json:"slot_minutes"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (c *ScheduleConfig) Validate() error {
	if c.SlotMinutes < MinSlotMinutes || c.SlotMinutes > MaxSlotMinutes {
		return fmt.Errorf("slot_minutes must be between %d and %d, got %d", MinSlotMinutes, MaxSlotMinutes, c.SlotMinutes)
	}
	for wd, d := range c.Days {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%s: %w", time.Weekday(wd), err)
		}
	}
	return nil
}

// Day returns the schedule for a weekday.
func (c *ScheduleConfig) Day(wd time.Weekday) DaySchedule {
	if c == nil || wd < time.Sunday || wd > time.Saturday {
		return DaySchedule{}
	}
	return c.Days[wd]
}

// Status is an appointment's lifecycle state.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

var validStatuses = map[Status]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusInProgress: true,
	StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", fmt.Errorf("invalid appointment status %q", s)
	}
	return st, nil
}

// Terminal statuses accept no further changes.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Occupies reports whether an appointment in this status blocks its time.
func (s Status) Occupies() bool { return s != StatusCancelled }

const (
	MaxDurationMinutes = 8 * 60
	MaxTextLength      = 1000
)

type Appointment struct {
	ID                 uuid.UUID `json:"id"`
	PatientID          uuid.UUID `json:"patient_id"`
	PractitionerID     uuid.UUID `json:"practitioner_id"`
	Start              time.Time `json:"start"`
	DurationMinutes    int       `json:"duration_minutes"`
	Reason             string    `json:"reason,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	Status             Status    `json:"status"`
	CancellationReason *string   `json:"cancellation_reason,omitempty"`
	Version            int       `json:"version"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (a *Appointment) End() time.Time {
	return a.Start.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Overlaps reports whether [start, end) intersects the appointment.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return start.Before(a.End()) && a.Start.Before(end)
}
