package broadcast

import (
	"strings"
	"time"
)

// Template is a named weekly broadcast definition. It is loaded once per
// invocation and never mutated afterwards.
//
// JSON keys follow the broadcasts file format:
//
//	{ "id": "sun-am", "name": "Sunday Service", "dayOfWeek": 0,
//	  "broadcastStart": "10:00 AM", "broadcastDurationInMinutes": 90,
//	  "stream": "Main Camera", "autoStart": true, "autoStop": true,
//	  "privacy": "public", "chatEnabled": false, "thumbnail": "img/sunday.png",
//	  "active": true }
type Template struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	DayOfWeek       int     `json:"dayOfWeek"`
	StartTime       string  `json:"broadcastStart"`
	DurationMinutes int     `json:"broadcastDurationInMinutes"`
	Stream          string  `json:"stream"`
	AutoStart       bool    `json:"autoStart"`
	AutoStop        bool    `json:"autoStop"`
	Privacy         Privacy `json:"privacy"`
	ChatEnabled     bool    `json:"chatEnabled"`
	Thumbnail       string  `json:"thumbnail"`
	Active          bool    `json:"active"`
}

// Duration returns the broadcast length.
func (t Template) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

// Validate checks the invariants that do not depend on the clock format.
func (t Template) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return Validationf("template %q: id is required", t.Name)
	}
	if t.DayOfWeek < 0 || t.DayOfWeek > 6 {
		return Validationf("template %s: dayOfWeek %d out of range 0-6", t.ID, t.DayOfWeek)
	}
	if t.DurationMinutes <= 0 {
		return Validationf("template %s: broadcastDurationInMinutes must be > 0", t.ID)
	}
	if _, err := ParsePrivacy(string(t.Privacy)); err != nil {
		return Validationf("template %s: %v", t.ID, err)
	}
	if strings.TrimSpace(t.Stream) == "" {
		return Validationf("template %s: stream is required", t.ID)
	}
	return nil
}

// TemplateSet is the parsed broadcasts file.
type TemplateSet struct {
	Account   string     `json:"account,omitempty"`
	Templates []Template `json:"broadcasts"`

	// Dir is the directory of the file the set was loaded from; thumbnails
	// resolve relative to it. Not part of the file format.
	Dir string `json:"-"`
}

// Get returns the template with the given id.
func (s TemplateSet) Get(id string) (Template, bool) {
	for _, t := range s.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Select returns active templates in file order, restricted to ids when
// ids is non-empty. Unknown ids are ignored.
func (s TemplateSet) Select(ids []string) []Template {
	want := map[string]struct{}{}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			want[id] = struct{}{}
		}
	}
	out := make([]Template, 0, len(s.Templates))
	for _, t := range s.Templates {
		if !t.Active {
			continue
		}
		if len(want) > 0 {
			if _, ok := want[t.ID]; !ok {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// SplitIDs splits a comma separated id list, dropping blanks.
func SplitIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
