package schedule

import (
	"time"

	"ytc/internal/broadcast"
)

// TestModePrefix marks titles of dry-run broadcasts.
const TestModePrefix = "Test Mode: "

// TitleDateLayout formats the occurrence date inside titles.
const TitleDateLayout = "1/2/2006"

type GenerateOptions struct {
	// TestMode caps generation at a single occurrence and marks its title.
	TestMode bool
}

// Spec is one concrete occurrence ready to be provisioned.
type Spec struct {
	TemplateID string
	Index      int
	Title      string
	Start      time.Time
	End        time.Time
}

// Generate expands t into count weekly occurrences beginning on first, which
// must already fall on t's weekday (see NextOccurrence). Successive starts are
// exactly seven calendar days apart at the same wall-clock time.
func Generate(t broadcast.Template, first time.Time, count int, opts GenerateOptions) ([]Spec, error) {
	if opts.TestMode {
		count = 1
	}
	if count < 1 {
		return nil, broadcast.Validationf("occurrence count must be >= 1, got %d", count)
	}
	if int(first.Weekday()) != t.DayOfWeek {
		return nil, broadcast.Validationf("template %s: first date %s is a %s, want weekday %d",
			t.ID, first.Format(DateLayout), first.Weekday(), t.DayOfWeek)
	}
	clock, err := ParseClock(t.StartTime)
	if err != nil {
		return nil, broadcast.Validationf("template %s: %v", t.ID, err)
	}
	if t.DurationMinutes <= 0 {
		return nil, broadcast.Validationf("template %s: duration must be > 0", t.ID)
	}

	out := make([]Spec, 0, count)
	for k := 0; k < count; k++ {
		start := clock.On(first.AddDate(0, 0, 7*k))
		title := t.Name + " - " + start.Format(TitleDateLayout)
		if opts.TestMode {
			title = TestModePrefix + title
		}
		out = append(out, Spec{
			TemplateID: t.ID,
			Index:      k,
			Title:      title,
			Start:      start,
			End:        start.Add(t.Duration()),
		})
	}
	return out, nil
}

// Plan resolves the first date for t from startsOn and generates its
// occurrences.
func Plan(t broadcast.Template, startsOn time.Time, count int, opts GenerateOptions) ([]Spec, error) {
	first, err := NextOccurrence(Midnight(startsOn), t.DayOfWeek)
	if err != nil {
		return nil, err
	}
	return Generate(t, first, count, opts)
}
