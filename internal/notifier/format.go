package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"ytc/internal/broadcast"
	"ytc/internal/eventbus"
	"ytc/internal/provision"
)

const startLayout = "Mon 2 Jan 2006 15:04 MST"

// Format renders an event as an HTML message. ok is false for events the
// notifier does not announce.
func Format(e eventbus.Event, loc *time.Location) (string, bool) {
	if loc == nil {
		loc = time.Local
	}
	switch d := e.Data.(type) {
	case broadcast.Occurrence:
		var b strings.Builder
		fmt.Fprintf(&b, "<b>Scheduled</b> %s\n", d.Link())
		fmt.Fprintf(&b, "Starts: %s\n", d.Start.In(loc).Format(startLayout))
		fmt.Fprintf(&b, "Privacy: %s", html.EscapeString(string(d.Privacy)))
		if d.AutoStart {
			b.WriteString("\nAuto start: on")
		}
		return b.String(), true
	case provision.Failure:
		msg := "unknown error"
		if d.Err != nil {
			msg = d.Err.Error()
		}
		return fmt.Sprintf("<b>Scheduling failed</b> %s\n%s", html.EscapeString(d.Title), html.EscapeString(msg)), true
	default:
		return "", false
	}
}
