package civil

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-09")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != (Date{Year: 2024, Month: time.March, Day: 9}) {
		t.Errorf("unexpected date %+v", d)
	}
	if d.String() != "2024-03-09" {
		t.Errorf("expected round trip, got %s", d.String())
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "2024-13-01", "09/03/2024", "2024-02-30"} {
		if _, err := ParseDate(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestDate_Compare(t *testing.T) {
	a := Date{2024, time.January, 31}
	b := Date{2024, time.February, 1}
	if !a.Before(b) || b.Before(a) {
		t.Error("expected Jan 31 before Feb 1")
	}
	if !b.After(a) {
		t.Error("expected Feb 1 after Jan 31")
	}
	if a.Compare(a) != 0 {
		t.Error("expected equal dates to compare as 0")
	}
	if b.DaysSince(a) != 1 || a.DaysSince(b) != -1 {
		t.Errorf("unexpected DaysSince %d", b.DaysSince(a))
	}
}

func TestDate_WeekdayAndAddDays(t *testing.T) {
	d := Date{2024, time.January, 15}
	if d.Weekday() != time.Monday {
		t.Errorf("expected Monday, got %s", d.Weekday())
	}
	if got := d.AddDays(-15); got != (Date{2023, time.December, 31}) {
		t.Errorf("unexpected date %s", got)
	}
}

func TestDate_JSON(t *testing.T) {
	var v struct {
		On Date `json:"on"`
	}
	if err := json.Unmarshal([]byte(`{"on":"2023-06-01"}`), &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.On != (Date{2023, time.June, 1}) {
		t.Errorf("unexpected date %s", v.On)
	}
	out, _ := json.Marshal(v)
	if string(out) != `{"on":"2023-06-01"}` {
		t.Errorf("unexpected json %s", out)
	}
}

func TestDate_InAndValidity(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	got := Date{2024, time.March, 31}.In(loc)
	if !got.Equal(time.Date(2024, 3, 30, 22, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected midnight %s", got)
	}
	if !(Date{2024, time.February, 29}).IsValid() {
		t.Error("expected leap day to be valid")
	}
	if (Date{2023, time.February, 29}).IsValid() {
		t.Error("expected 2023-02-29 to be invalid")
	}
	if !(Date{}).IsZero() {
		t.Error("expected zero date")
	}
}

func TestToday_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	clock := FixedClock{T: time.Date(2024, 1, 16, 2, 0, 0, 0, time.UTC)}
	if got := Today(clock, loc); got != (Date{2024, time.January, 15}) {
		t.Errorf("expected 2024-01-15 in UTC-5, got %s", got)
	}
}
