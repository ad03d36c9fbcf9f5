package schedule

import (
	"strings"
	"time"

	"ytc/internal/broadcast"
)

// Clock is a time of day.
type Clock struct {
	Hour, Minute, Second int
}

var clockLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3:04:05 PM", "3:04:05PM"}

// ParseClock accepts 24-hour ("19:30", "19:30:00") and 12-hour ("7:30 PM",
// "7:30pm") forms.
func ParseClock(s string) (Clock, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return Clock{}, broadcast.Validationf("invalid start time %q", s)
}

// On returns the instant at c on the calendar day of d, in d's location.
func (c Clock) On(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, c.Hour, c.Minute, c.Second, 0, d.Location())
}
