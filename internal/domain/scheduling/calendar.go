package scheduling

import (
	"time"

	gcivil "cloud.google.com/go/civil"

	"github.com/odonto/odonto/internal/platform/civil"
)

// Calendar anchors dates and times of day in the clinic's reference zone.
// Every comparison between a configured window and a booked instant goes
// through the same Calendar.
type Calendar struct {
	Location *time.Location
}

func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Location: loc}
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// At returns the instant at which date reads t on the clinic's wall clock.
// A wall time skipped by a daylight-saving jump is moved forward by the
// length of the jump; see Exists.
func (c Calendar) At(date civil.Date, t TimeOfDay) time.Time {
	return gcivil.DateTime{Date: date.Civil(), Time: t.Civil()}.In(c.loc())
}

// Exists reports whether date reads t on the clinic's wall clock at all.
func (c Calendar) Exists(date civil.Date, t TimeOfDay) bool {
	at := c.At(date, t)
	return c.DateOf(at) == date && c.TimeOfDayOf(at) == t
}

// DateOf returns the clinic-local date of an instant.
func (c Calendar) DateOf(t time.Time) civil.Date {
	return civil.DateOf(t.In(c.loc()))
}

// TimeOfDayOf returns the clinic-local wall-clock minute of an instant.
// Seconds are truncated.
func (c Calendar) TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDayOfCivil(gcivil.TimeOf(t.In(c.loc())))
}

// DayBounds returns [start of date, start of the following date).
func (c Calendar) DayBounds(date civil.Date) (time.Time, time.Time) {
	return c.At(date, 0), c.At(date.AddDays(1), 0)
}
