package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParsePrivacy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want Privacy
		ok   bool
	}{
		{raw: "public", want: PrivacyPublic, ok: true},
		{raw: "PRIVATE", want: PrivacyPrivate, ok: true},
		{raw: " Unlisted ", want: PrivacyUnlisted, ok: true},
		{raw: "secret"},
		{raw: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePrivacy(tt.raw)
			if !tt.ok {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParsePrivacy(%q) err = %v, want validation", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePrivacy(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParsePrivacy(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTemplateSetJSON(t *testing.T) {
	t.Parallel()
	raw := `{"account":"church","broadcasts":[
		{"id":"sun","name":"Sunday","dayOfWeek":0,"broadcastStart":"10:00 AM","broadcastDurationInMinutes":90,
		 "stream":"Main","autoStart":true,"autoStop":true,"privacy":"PUBLIC","chatEnabled":false,"thumbnail":"a.png","active":true},
		{"id":"wed","name":"Wednesday","dayOfWeek":3,"broadcastStart":"19:00","broadcastDurationInMinutes":60,
		 "stream":"Main","privacy":"unlisted","active":false}]}`
	var set TemplateSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if set.Account != "church" || len(set.Templates) != 2 {
		t.Fatalf("unexpected set: %+v", set)
	}
	if set.Templates[0].Privacy != PrivacyPublic {
		t.Fatalf("privacy not normalized: %q", set.Templates[0].Privacy)
	}
	for _, tpl := range set.Templates {
		if err := tpl.Validate(); err != nil {
			t.Fatalf("Validate(%s): %v", tpl.ID, err)
		}
	}
	if got := set.Select(nil); len(got) != 1 || got[0].ID != "sun" {
		t.Fatalf("Select(nil) = %+v", got)
	}
}

func TestTemplateValidate(t *testing.T) {
	t.Parallel()
	base := Template{ID: "x", Name: "X", DayOfWeek: 2, StartTime: "10:00", DurationMinutes: 30, Stream: "s", Privacy: PrivacyPrivate}
	tests := []struct {
		name string
		mut  func(*Template)
	}{
		{name: "missing id", mut: func(t *Template) { t.ID = "" }},
		{name: "weekday low", mut: func(t *Template) { t.DayOfWeek = -1 }},
		{name: "weekday high", mut: func(t *Template) { t.DayOfWeek = 7 }},
		{name: "zero duration", mut: func(t *Template) { t.DurationMinutes = 0 }},
		{name: "bad privacy", mut: func(t *Template) { t.Privacy = "friends" }},
		{name: "missing stream", mut: func(t *Template) { t.Stream = " " }},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base template invalid: %v", err)
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tpl := base
			tt.mut(&tpl)
			if err := tpl.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("Validate() = %v, want validation error", err)
			}
		})
	}
}

func TestTemplateSetSelect(t *testing.T) {
	t.Parallel()
	set := TemplateSet{Templates: []Template{
		{ID: "a", Active: true},
		{ID: "b", Active: false},
		{ID: "c", Active: true},
	}}
	got := set.Select([]string{"c", "b", "missing"})
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("Select = %+v, want only c", got)
	}
	got = set.Select(SplitIDs(" a, ,c "))
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("Select keeps file order, got %+v", got)
	}
}

func TestParseFilters(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want []Filter
	}{
		{raw: "", want: []Filter{FilterAll}},
		{raw: "all", want: []Filter{FilterAll}},
		{raw: "active,upcoming,active", want: []Filter{FilterUpcoming, FilterActive}},
		{raw: "completed,ALL", want: []Filter{FilterAll}},
		{raw: " Completed ", want: []Filter{FilterCompleted}},
	}
	for _, tt := range tests {
		got, err := ParseFilters(tt.raw)
		if err != nil {
			t.Fatalf("ParseFilters(%q) error: %v", tt.raw, err)
		}
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Fatalf("ParseFilters(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	if _, err := ParseFilters("upcoming,live"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPatchApplyIsSparse(t *testing.T) {
	t.Parallel()
	start := time.Date(2024, 3, 3, 15, 0, 0, 0, time.UTC)
	before := Remote{ID: "r1", Title: "t", ScheduledStart: &start, Privacy: "unlisted", AutoStart: false, AutoStop: true, ChatEnabled: true}

	after := Patch{AutoStart: Some(true)}.Apply(before)
	if !after.AutoStart {
		t.Fatal("AutoStart not applied")
	}
	after.AutoStart = before.AutoStart
	if after != before {
		t.Fatalf("absent fields changed: before %+v after %+v", before, after)
	}

	p := Patch{Privacy: Some(PrivacyPublic), ChatEnabled: Some(false)}
	got := p.Apply(before)
	if got.Privacy != "public" || got.ChatEnabled {
		t.Fatalf("unexpected apply result: %+v", got)
	}
	if fields := p.Fields(); len(fields) != 2 || fields[0] != "privacy" || fields[1] != "chat_enabled" {
		t.Fatalf("Fields() = %v", fields)
	}
	if !(Patch{}).Empty() || p.Empty() {
		t.Fatal("Empty() mismatch")
	}
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()
	base := errors.New("quota exceeded")
	err := WrapRemote("bind", base)
	if !errors.Is(err, ErrRemote) || !errors.Is(err, base) {
		t.Fatalf("WrapRemote() should match kind and cause: %v", err)
	}
	nf := NotFoundf("thumbnail %s", "x.png")
	if again := WrapRemote("upload", nf); !errors.Is(again, ErrNotFound) || errors.Is(again, ErrRemote) {
		t.Fatalf("WrapRemote() must keep an existing kind: %v", again)
	}
	if KindOf(fmt.Errorf("wrap: %w", Parsef("bad row"))) != ErrParse {
		t.Fatal("KindOf did not see through wrapping")
	}
	if KindOf(base) != nil {
		t.Fatal("KindOf(plain) should be nil")
	}
}

func TestOccurrenceLinks(t *testing.T) {
	t.Parallel()
	o := Occurrence{RemoteID: "abc123", Title: "Service & Prayer"}
	if o.URL() != "https://youtu.be/abc123" {
		t.Fatalf("URL() = %s", o.URL())
	}
	if o.Link() != "<a href='https://youtu.be/abc123'>Service &amp; Prayer</a>" {
		t.Fatalf("Link() = %s", o.Link())
	}
	l := Remote{ID: "zz"}.ToListed()
	if l.Title != "Unknown" || l.Privacy != "unknown" {
		t.Fatalf("defaults not applied: %+v", l)
	}
}
