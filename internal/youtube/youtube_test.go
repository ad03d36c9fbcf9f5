package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"ytc/internal/broadcast"
	"ytc/pkg/logx"
)

func TestContentType(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"a.png":        "image/png",
		"dir/B.JPG":    "image/jpeg",
		"c.jpeg":       "image/jpeg",
		"d.gif":        "application/octet-stream",
		"no-extension": "application/octet-stream",
	}
	for in, want := range tests {
		if got := ContentType(in); got != want {
			t.Fatalf("ContentType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDraftToLive(t *testing.T) {
	t.Parallel()
	start := time.Date(2024, 3, 3, 10, 30, 0, 0, time.FixedZone("EST", -5*3600))
	lb := draftToLive(broadcast.Draft{
		Title: "Sunday", Start: start, End: start.Add(time.Hour),
		Privacy: broadcast.PrivacyUnlisted, ChatEnabled: true, AutoStart: true,
	})
	if lb.Snippet.ScheduledStartTime != "2024-03-03T15:30:00Z" {
		t.Fatalf("start not UTC: %s", lb.Snippet.ScheduledStartTime)
	}
	if lb.Status.SelfDeclaredMadeForKids {
		t.Fatal("chat enabled must clear made-for-kids")
	}
	cd := lb.ContentDetails
	if !cd.EnableAutoStart || cd.EnableAutoStop || cd.EnableDvr || !cd.EnableEmbed || !cd.RecordFromStart {
		t.Fatalf("unexpected content details: %+v", cd)
	}
}

func TestApplyPatchSparse(t *testing.T) {
	t.Parallel()
	lb := &yt.LiveBroadcast{
		Id:             "x",
		Snippet:        &yt.LiveBroadcastSnippet{Title: "t", ScheduledStartTime: "2024-03-03T15:30:00Z"},
		Status:         &yt.LiveBroadcastStatus{PrivacyStatus: "unlisted", SelfDeclaredMadeForKids: true},
		ContentDetails: &yt.LiveBroadcastContentDetails{EnableAutoStart: false, EnableAutoStop: true, EnableEmbed: true},
	}
	beforeRemote := toRemote(lb)

	applyPatch(lb, broadcast.Patch{AutoStart: broadcast.Some(true)})
	after := toRemote(lb)
	if !after.AutoStart {
		t.Fatal("auto start not applied")
	}
	after.AutoStart = beforeRemote.AutoStart
	if after.Privacy != beforeRemote.Privacy || after.AutoStop != beforeRemote.AutoStop || after.ChatEnabled != beforeRemote.ChatEnabled {
		t.Fatalf("absent fields changed: %+v -> %+v", beforeRemote, after)
	}

	applyPatch(lb, broadcast.Patch{AutoStop: broadcast.Some(false), ChatEnabled: broadcast.Some(true)})
	raw, err := json.Marshal(lb)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"enableAutoStop":false`) {
		t.Fatalf("false auto stop not force-sent: %s", raw)
	}
	if !strings.Contains(string(raw), `"selfDeclaredMadeForKids":false`) {
		t.Fatalf("made-for-kids not force-sent: %s", raw)
	}
}

func TestToRemoteMissingFields(t *testing.T) {
	t.Parallel()
	r := toRemote(&yt.LiveBroadcast{Id: "a"})
	if r.ScheduledStart != nil || r.Title != "" {
		t.Fatalf("unexpected remote: %+v", r)
	}
	l := r.ToListed()
	if l.Title != "Unknown" || l.Privacy != "unknown" {
		t.Fatalf("defaults: %+v", l)
	}
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	svc, err := yt.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewClient(svc, Options{}, logx.Nop())
}

func TestClientGetBroadcastNotFound(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	_, err := c.GetBroadcast(context.Background(), "missing")
	if !errors.Is(err, broadcast.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestClientUpdateBroadcastUnknownIDWritesNothing(t *testing.T) {
	t.Parallel()
	var writes atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writes.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	_, err := c.UpdateBroadcast(context.Background(), "missing", broadcast.Patch{AutoStop: broadcast.Some(true)})
	if !errors.Is(err, broadcast.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if writes.Load() != 0 {
		t.Fatalf("%d writes for an unknown broadcast", writes.Load())
	}
}

func TestClientMapsHTTPErrors(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quotaExceeded"}}`))
	}))
	err := c.BindStream(context.Background(), "b1", "s1")
	if !errors.Is(err, broadcast.ErrRemote) {
		t.Fatalf("err = %v, want remote", err)
	}
}

func TestClientListStreamsPages(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"items":[{"id":"s1","snippet":{"title":"Main"}}],"nextPageToken":"p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"s2","snippet":{"title":"Backup"}}]}`))
	}))
	streams, err := c.ListStreams(context.Background())
	if err != nil {
		t.Fatalf("ListStreams: %v", err)
	}
	if len(streams) != 2 || streams[1].Title != "Backup" || hits.Load() != 2 {
		t.Fatalf("streams = %+v after %d requests", streams, hits.Load())
	}
}

func TestClientListBroadcastsPages(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		filter    broadcast.Filter
		max       int
		wantIDs   []string
		wantPages int32
	}{
		{name: "uncapped reads every page", filter: broadcast.FilterAll, max: 0, wantIDs: []string{"b1", "b2", "b3"}, wantPages: 2},
		{name: "cap within first page", filter: broadcast.FilterUpcoming, max: 1, wantIDs: []string{"b1"}, wantPages: 1},
		{name: "cap past first page", filter: broadcast.FilterUpcoming, max: 3, wantIDs: []string{"b1", "b2", "b3"}, wantPages: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var hits atomic.Int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				q := r.URL.Query()
				if tt.filter == broadcast.FilterAll {
					if q.Get("mine") != "true" || q.Get("broadcastStatus") != "" {
						t.Errorf("all filter sent %s", r.URL.RawQuery)
					}
				} else if q.Get("broadcastStatus") != tt.filter.String() || q.Get("mine") != "" {
					t.Errorf("%s filter sent %s", tt.filter, r.URL.RawQuery)
				}
				w.Header().Set("Content-Type", "application/json")
				if q.Get("pageToken") == "" {
					_, _ = w.Write([]byte(`{"items":[
						{"id":"b1","snippet":{"title":"Old","scheduledStartTime":"2024-03-03T10:00:00Z"},"status":{"privacyStatus":"public","lifeCycleStatus":"ready"}},
						{"id":"b2","snippet":{"title":"Mid"},"status":{"privacyStatus":"unlisted"}}
					],"nextPageToken":"p2"}`))
					return
				}
				_, _ = w.Write([]byte(`{"items":[
					{"id":"b3","snippet":{"title":"New","scheduledStartTime":"2024-03-17T10:00:00Z"},"status":{"privacyStatus":"private"}}
				]}`))
			}))
			got, err := c.ListBroadcasts(context.Background(), tt.filter, tt.max)
			if err != nil {
				t.Fatalf("ListBroadcasts: %v", err)
			}
			ids := make([]string, len(got))
			for i, r := range got {
				ids[i] = r.ID
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Fatalf("ids = %v, want %v", ids, tt.wantIDs)
			}
			if hits.Load() != tt.wantPages {
				t.Fatalf("%d requests, want %d", hits.Load(), tt.wantPages)
			}
			if got[0].ScheduledStart == nil || got[0].Privacy != "public" || got[0].LifeCycle != "ready" {
				t.Fatalf("first item not mapped: %+v", got[0])
			}
		})
	}
}

func TestSessionBuildsOnce(t *testing.T) {
	t.Parallel()
	var builds atomic.Int32
	s := NewSession(func(context.Context) (Service, error) {
		builds.Add(1)
		return nil, errors.New("boom")
	})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Service(context.Background()); err == nil {
				t.Error("expected build error")
			}
		}()
	}
	wg.Wait()
	if builds.Load() != 1 {
		t.Fatalf("build ran %d times", builds.Load())
	}
}

func TestAuthenticatorClear(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := NewAuthenticator(AuthConfig{User: "me@example.com", TokenDir: dir}, logx.Nop())
	if filepath.Dir(a.TokenPath()) != dir {
		t.Fatalf("token path %s outside %s", a.TokenPath(), dir)
	}
	if err := a.Clear(); err != nil {
		t.Fatalf("Clear on missing token: %v", err)
	}
	if err := os.WriteFile(a.TokenPath(), []byte(`{}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := a.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(a.TokenPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("token still present: %v", err)
	}
}

func TestAuthenticatorMissingSecrets(t *testing.T) {
	t.Parallel()
	a := NewAuthenticator(AuthConfig{ClientSecretsFile: filepath.Join(t.TempDir(), "nope.json")}, logx.Nop())
	if _, err := a.TokenSource(context.Background()); !errors.Is(err, broadcast.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}
