package broadcast

import (
	"fmt"
	"html"
	"time"
)

// Occurrence is one successfully provisioned broadcast: created, bound to its
// stream and given a thumbnail. Records are never mutated after creation.
type Occurrence struct {
	TemplateID  string
	RemoteID    string
	Title       string
	Start       time.Time
	End         time.Time
	AutoStart   bool
	AutoStop    bool
	Privacy     Privacy
	ChatEnabled bool
}

// URL is the public watch link.
func (o Occurrence) URL() string { return WatchURL(o.RemoteID) }

// Link is an HTML anchor for the watch link.
func (o Occurrence) Link() string {
	return fmt.Sprintf("<a href='%s'>%s</a>", o.URL(), html.EscapeString(o.Title))
}

// WatchURL returns the short watch URL for a broadcast id.
func WatchURL(id string) string { return "https://youtu.be/" + id }

// EmbedCode returns an iframe snippet for a broadcast id.
func EmbedCode(id string) string {
	return fmt.Sprintf(`<iframe width="425" height="344" src="https://www.youtube.com/embed/%s?autoplay=1&livemonitor=1" frameborder="0" allow="accelerometer; autoplay; clipboard-write; encrypted-media; gyroscope; picture-in-picture" allowfullscreen></iframe>`, id)
}
