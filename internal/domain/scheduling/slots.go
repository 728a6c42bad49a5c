package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/odonto/odonto/internal/platform/civil"
)

// GenerateDaySlots lists the slot start times of a weekday, morning window
// first. A slot is kept only when it ends inside its window, so a trailing
// partial slot is dropped. Days that are not working, or that have no window,
// yield nothing.
func GenerateDaySlots(cfg *ScheduleConfig, weekday time.Weekday, granularity int) []TimeOfDay {
	if granularity <= 0 {
		return nil
	}
	var out []TimeOfDay
	for _, w := range cfg.Day(weekday).Windows() {
		for t := w.Start; t+TimeOfDay(granularity) <= w.End; t += TimeOfDay(granularity) {
			out = append(out, t)
		}
	}
	return out
}

// MaterializeSlotsForDate turns the day's slots into instants and keeps only
// those that are strictly after now and do not intersect an occupying
// appointment of the practitioner. Slots whose wall time does not exist on
// date, because the clock jumps forward, are dropped.
func MaterializeSlotsForDate(cfg *ScheduleConfig, date civil.Date, existing []Appointment, now time.Time, cal Calendar) []time.Time {
	if cfg == nil {
		return nil
	}
	granularity := cfg.SlotMinutes
	length := time.Duration(granularity) * time.Minute

	var out []time.Time
	for _, t := range GenerateDaySlots(cfg, date.Weekday(), granularity) {
		if !cal.Exists(date, t) {
			continue
		}
		start := cal.At(date, t)
		if !start.After(now) {
			continue
		}
		if conflicting(existing, cfg.PractitionerID, uuid.Nil, start, start.Add(length)) != nil {
			continue
		}
		out = append(out, start)
	}
	return out
}
