package autopilot

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"ytc/internal/broadcast"
)

type TriggerKind int

const (
	TriggerCron TriggerKind = iota
	TriggerInterval
)

// Trigger is a parsed autopilot schedule.
//
// Accepted forms:
//   - cron: "0 6 * * 1", "@daily", "@every 12h"
//   - duration interval: "12h", "90m"
//   - HH:MM interval: "24:00" (every 24 hours)
//
// The prefixes "cron:" and "every:" force one interpretation.
type Trigger struct {
	Kind   TriggerKind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// cronParser accepts 5 or 6 field expressions and descriptors.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func ParseTrigger(raw string) (Trigger, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Trigger{}, broadcast.Validationf("autopilot schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return cronTrigger(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		d, src, err := parseInterval(strings.TrimSpace(s[len("every:"):]))
		if err != nil {
			return Trigger{}, err
		}
		return Trigger{Kind: TriggerInterval, Every: d, Source: src}, nil
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return cronTrigger(s)
	}

	d, src, err := parseInterval(s)
	if err != nil {
		return Trigger{}, broadcast.Validationf("invalid schedule %q (use cron like '0 6 * * 1', HH:MM like '24:00', or a duration like '12h')", raw)
	}
	return Trigger{Kind: TriggerInterval, Every: d, Source: src}, nil
}

func cronTrigger(expr string) (Trigger, error) {
	if expr == "" {
		return Trigger{}, broadcast.Validationf("cron expression required")
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return Trigger{}, broadcast.Validationf("invalid cron %q: %v", expr, err)
	}
	return Trigger{Kind: TriggerCron, Cron: expr, Source: "cron"}, nil
}

func parseInterval(v string) (time.Duration, string, error) {
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, "", broadcast.Validationf("invalid minutes in %q", v)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return 0, "", broadcast.Validationf("interval must be > 0")
		}
		return d, "hhmm", nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, "", broadcast.Validationf("invalid interval %q", v)
	}
	if d <= 0 {
		return 0, "", broadcast.Validationf("interval must be > 0")
	}
	return d, "duration", nil
}

// Schedule returns the cron schedule that fires this trigger.
func (t Trigger) Schedule() (cron.Schedule, error) {
	if t.Kind == TriggerInterval {
		return cron.Every(t.Every), nil
	}
	return cronParser.Parse(t.Cron)
}

func (t Trigger) String() string {
	if t.Kind == TriggerInterval {
		return "every " + t.Every.String()
	}
	return t.Cron
}
