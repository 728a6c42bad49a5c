package civil

import "time"

// Clock supplies the current instant. Services take one so that tests can pin
// "now".
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
func SystemClock() Clock { return systemClock{} }

// FixedClock always reports the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// Today returns the current date as seen in loc.
func Today(c Clock, loc *time.Location) Date {
	return DateOf(c.Now().In(loc))
}
