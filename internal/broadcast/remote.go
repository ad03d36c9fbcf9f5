package broadcast

import "time"

// Draft is the payload submitted when creating a broadcast.
type Draft struct {
	Title       string
	Start       time.Time
	End         time.Time
	Privacy     Privacy
	ChatEnabled bool
	AutoStart   bool
	AutoStop    bool
}

// Stream is a registered ingestion endpoint.
type Stream struct {
	ID    string
	Title string
}

// Remote is the service-side state of a broadcast.
type Remote struct {
	ID             string
	Title          string
	ScheduledStart *time.Time
	Privacy        string
	LifeCycle      string
	AutoStart      bool
	AutoStop       bool
	ChatEnabled    bool
}

// Listed is a broadcast as presented by list output.
type Listed struct {
	ID             string
	Title          string
	Privacy        string
	ScheduledStart *time.Time
}

func (l Listed) URL() string       { return WatchURL(l.ID) }
func (l Listed) EmbedCode() string { return EmbedCode(l.ID) }

const (
	unknownTitle   = "Unknown"
	unknownPrivacy = "unknown"
)

// ToListed applies the defaults used for records missing a title or privacy.
func (r Remote) ToListed() Listed {
	l := Listed{ID: r.ID, Title: r.Title, Privacy: r.Privacy, ScheduledStart: r.ScheduledStart}
	if l.Title == "" {
		l.Title = unknownTitle
	}
	if l.Privacy == "" {
		l.Privacy = unknownPrivacy
	}
	return l
}
