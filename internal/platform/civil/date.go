// Package civil holds calendar values that carry no time zone.
package civil

import (
	"fmt"
	"time"

	gcivil "cloud.google.com/go/civil"
)

// Date is a calendar day without a time of day or location. It shares its
// layout with cloud.google.com/go/civil.Date, which does the calendar work.
type Date gcivil.Date

// ParseDate parses a date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	d, err := gcivil.ParseDate(s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date(d), nil
}

// DateOf returns the date on which t falls in t's own location.
func DateOf(t time.Time) Date {
	return Date(gcivil.DateOf(t))
}

// Civil returns the library value.
func (d Date) Civil() gcivil.Date { return gcivil.Date(d) }

func (d Date) String() string { return d.Civil().String() }

func (d Date) IsZero() bool { return d.Civil().IsZero() }

func (d Date) IsValid() bool { return d.Civil().IsValid() }

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return d.Civil().In(loc)
}

func (d Date) Weekday() time.Weekday {
	return d.In(time.UTC).Weekday()
}

func (d Date) AddDays(n int) Date {
	return Date(d.Civil().AddDays(n))
}

// DaysSince returns the signed number of days from o to d.
func (d Date) DaysSince(o Date) int {
	return d.Civil().DaysSince(o.Civil())
}

func (d Date) Compare(o Date) int {
	switch {
	case d.Before(o):
		return -1
	case d.After(o):
		return 1
	}
	return 0
}

func (d Date) Before(o Date) bool { return d.Civil().Before(o.Civil()) }
func (d Date) After(o Date) bool  { return d.Civil().After(o.Civil()) }

func (d Date) MarshalText() ([]byte, error) {
	return d.Civil().MarshalText()
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
