package schedule

import (
	"time"

	"ytc/internal/broadcast"
)

// NextOccurrence returns the first date on or after start that falls on
// weekday (0 = Sunday). A start already on weekday is returned unchanged.
func NextOccurrence(start time.Time, weekday int) (time.Time, error) {
	if weekday < 0 || weekday > 6 {
		return time.Time{}, broadcast.Validationf("day of week %d out of range 0-6", weekday)
	}
	delta := (7 + weekday - int(start.Weekday())) % 7
	if delta == 0 {
		return start, nil
	}
	return start.AddDate(0, 0, delta), nil
}

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ValidateStartsOn rejects an explicit start date that is strictly before
// today. Only calendar dates are compared; both are taken in loc.
func ValidateStartsOn(startsOn, today time.Time, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	s := Midnight(startsOn.In(loc))
	n := Midnight(today.In(loc))
	if s.Before(n) {
		return broadcast.Validationf("start date %s is before today (%s)", s.Format(DateLayout), n.Format(DateLayout))
	}
	return nil
}

// DateLayout is the accepted form of explicit start dates.
const DateLayout = "2006-01-02"

// ParseDate parses YYYY-MM-DD as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, broadcast.Validationf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}
