// Package youtubetest provides an in-memory youtube.Service for tests.
package youtubetest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"ytc/internal/broadcast"
	"ytc/internal/youtube"
)

var _ youtube.Service = (*Fake)(nil)

// Call is one recorded invocation.
type Call struct {
	Op          string
	BroadcastID string
	Arg         string
}

// String renders op(id,arg), dropping whichever part is empty.
func (c Call) String() string {
	if c.Arg == "" || c.BroadcastID == "" {
		return c.Op + "(" + c.BroadcastID + c.Arg + ")"
	}
	return c.Op + "(" + c.BroadcastID + "," + c.Arg + ")"
}

// Fake records every call. Failures are injected per operation name through
// FailOn; the hook sees the broadcast id (or title for creates) and returns
// the error to report.
type Fake struct {
	mu sync.Mutex

	Streams    []broadcast.Stream
	Broadcasts map[string]broadcast.Remote
	// ByFilter overrides ListBroadcasts results for a status filter. The
	// override keeps its order and is cut to max like the default path.
	ByFilter map[broadcast.Filter][]broadcast.Remote
	FailOn   map[string]func(key string) error

	Calls      []Call
	Drafts     []broadcast.Draft
	Thumbnails map[string][]byte
	nextID     int
}

func New() *Fake {
	return &Fake{
		Broadcasts: map[string]broadcast.Remote{},
		ByFilter:   map[broadcast.Filter][]broadcast.Remote{},
		FailOn:     map[string]func(string) error{},
		Thumbnails: map[string][]byte{},
	}
}

// Ops returns the recorded calls rendered as strings.
func (f *Fake) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		out[i] = c.String()
	}
	return out
}

func (f *Fake) record(c Call, key string) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, c)
	hook := f.FailOn[c.Op]
	f.mu.Unlock()
	if hook != nil {
		return hook(key)
	}
	return nil
}

func (f *Fake) CreateBroadcast(ctx context.Context, d broadcast.Draft) (string, error) {
	if err := f.record(Call{Op: "create", Arg: d.Title}, d.Title); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("b%03d", f.nextID)
	start := d.Start
	f.Drafts = append(f.Drafts, d)
	f.Broadcasts[id] = broadcast.Remote{
		ID: id, Title: d.Title, ScheduledStart: &start, Privacy: string(d.Privacy),
		LifeCycle: "created", AutoStart: d.AutoStart, AutoStop: d.AutoStop, ChatEnabled: d.ChatEnabled,
	}
	// The create call is recorded before its id exists.
	f.Calls[len(f.Calls)-1].BroadcastID = id
	return id, nil
}

func (f *Fake) ListStreams(ctx context.Context) ([]broadcast.Stream, error) {
	if err := f.record(Call{Op: "list_streams"}, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broadcast.Stream(nil), f.Streams...), nil
}

func (f *Fake) BindStream(ctx context.Context, broadcastID, streamID string) error {
	return f.record(Call{Op: "bind", BroadcastID: broadcastID, Arg: streamID}, broadcastID)
}

func (f *Fake) UploadThumbnail(ctx context.Context, broadcastID string, r io.Reader, contentType string) error {
	if err := f.record(Call{Op: "thumbnail", BroadcastID: broadcastID, Arg: contentType}, broadcastID); err != nil {
		return err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.Thumbnails[broadcastID] = b
	f.mu.Unlock()
	return nil
}

func (f *Fake) ListBroadcasts(ctx context.Context, filter broadcast.Filter, max int) ([]broadcast.Remote, error) {
	if err := f.record(Call{Op: "list", Arg: filter.String()}, filter.String()); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if items, ok := f.ByFilter[filter]; ok {
		if max > 0 && len(items) > max {
			items = items[:max]
		}
		return append([]broadcast.Remote(nil), items...), nil
	}
	var out []broadcast.Remote
	for _, b := range f.Broadcasts {
		if filter == broadcast.FilterAll || matches(filter, b.LifeCycle) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func matches(f broadcast.Filter, lifeCycle string) bool {
	switch f {
	case broadcast.FilterUpcoming:
		return lifeCycle == "created" || lifeCycle == "ready"
	case broadcast.FilterActive:
		return lifeCycle == "live" || lifeCycle == "testing"
	case broadcast.FilterCompleted:
		return lifeCycle == "complete"
	}
	return true
}

func (f *Fake) GetBroadcast(ctx context.Context, id string) (broadcast.Remote, error) {
	if err := f.record(Call{Op: "get", BroadcastID: id}, id); err != nil {
		return broadcast.Remote{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.Broadcasts[id]
	if !ok {
		return broadcast.Remote{}, broadcast.NotFoundf("broadcast %s not found", id)
	}
	return b, nil
}

func (f *Fake) UpdateBroadcast(ctx context.Context, id string, p broadcast.Patch) (broadcast.Remote, error) {
	if err := f.record(Call{Op: "update", BroadcastID: id, Arg: strings.Join(p.Fields(), "+")}, id); err != nil {
		return broadcast.Remote{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.Broadcasts[id]
	if !ok {
		return broadcast.Remote{}, broadcast.NotFoundf("broadcast %s not found", id)
	}
	b = p.Apply(b)
	f.Broadcasts[id] = b
	return b, nil
}

func (f *Fake) TransitionBroadcast(ctx context.Context, id, status string) error {
	if err := f.record(Call{Op: "transition", BroadcastID: id, Arg: status}, id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.Broadcasts[id]
	if !ok {
		return broadcast.NotFoundf("broadcast %s not found", id)
	}
	b.LifeCycle = status
	f.Broadcasts[id] = b
	return nil
}
