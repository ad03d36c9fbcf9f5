package youtube

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	yt "google.golang.org/api/youtube/v3"

	"ytc/internal/broadcast"
	"ytc/pkg/logx"
)

var (
	broadcastParts = []string{"id", "snippet", "status", "contentDetails"}
	bindParts      = []string{"id", "contentDetails"}
	streamParts    = []string{"id", "snippet"}
)

const pageMax = 50

type Options struct {
	// RatePerSec paces every API call. Zero disables pacing.
	RatePerSec float64
	Burst      int
}

// Client implements Service over the YouTube Data API.
type Client struct {
	svc     *yt.Service
	limiter *rate.Limiter
	log     logx.Logger
}

func NewClient(svc *yt.Service, opts Options, log logx.Logger) *Client {
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSec > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}
	return &Client{svc: svc, limiter: lim, log: log.With(logx.String("comp", "youtube"))}
}

func (c *Client) wait(ctx context.Context, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return broadcast.WrapRemote(op, err)
	}
	c.log.Trace("api call", logx.String("op", op))
	return nil
}

func (c *Client) CreateBroadcast(ctx context.Context, d broadcast.Draft) (string, error) {
	if err := c.wait(ctx, "create broadcast"); err != nil {
		return "", err
	}
	lb, err := c.svc.LiveBroadcasts.Insert(broadcastParts, draftToLive(d)).Context(ctx).Do()
	if err != nil {
		return "", mapErr("create broadcast", err)
	}
	return lb.Id, nil
}

func (c *Client) ListStreams(ctx context.Context) ([]broadcast.Stream, error) {
	var out []broadcast.Stream
	token := ""
	for {
		if err := c.wait(ctx, "list streams"); err != nil {
			return nil, err
		}
		call := c.svc.LiveStreams.List(streamParts).Mine(true).MaxResults(pageMax)
		if token != "" {
			call = call.PageToken(token)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, mapErr("list streams", err)
		}
		for _, s := range resp.Items {
			st := broadcast.Stream{ID: s.Id}
			if s.Snippet != nil {
				st.Title = s.Snippet.Title
			}
			out = append(out, st)
		}
		if token = resp.NextPageToken; token == "" {
			return out, nil
		}
	}
}

func (c *Client) BindStream(ctx context.Context, broadcastID, streamID string) error {
	if err := c.wait(ctx, "bind stream"); err != nil {
		return err
	}
	_, err := c.svc.LiveBroadcasts.Bind(broadcastID, bindParts).StreamId(streamID).Context(ctx).Do()
	return mapErr("bind stream", err)
}

func (c *Client) UploadThumbnail(ctx context.Context, broadcastID string, r io.Reader, contentType string) error {
	if err := c.wait(ctx, "upload thumbnail"); err != nil {
		return err
	}
	_, err := c.svc.Thumbnails.Set(broadcastID).Media(r, googleapi.ContentType(contentType)).Context(ctx).Do()
	return mapErr("upload thumbnail", err)
}

func (c *Client) ListBroadcasts(ctx context.Context, f broadcast.Filter, max int) ([]broadcast.Remote, error) {
	var out []broadcast.Remote
	token := ""
	for max <= 0 || len(out) < max {
		if err := c.wait(ctx, "list broadcasts"); err != nil {
			return nil, err
		}
		call := c.svc.LiveBroadcasts.List(broadcastParts).MaxResults(pageMax)
		// "mine" and "broadcastStatus" are mutually exclusive on this endpoint.
		if f == broadcast.FilterAll {
			call = call.Mine(true)
		} else {
			call = call.BroadcastStatus(f.String())
		}
		if token != "" {
			call = call.PageToken(token)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, mapErr("list broadcasts", err)
		}
		for _, lb := range resp.Items {
			out = append(out, toRemote(lb))
		}
		if token = resp.NextPageToken; token == "" {
			break
		}
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (c *Client) GetBroadcast(ctx context.Context, id string) (broadcast.Remote, error) {
	lb, err := c.fetch(ctx, id)
	if err != nil {
		return broadcast.Remote{}, err
	}
	return toRemote(lb), nil
}

func (c *Client) fetch(ctx context.Context, id string) (*yt.LiveBroadcast, error) {
	if err := c.wait(ctx, "get broadcast"); err != nil {
		return nil, err
	}
	resp, err := c.svc.LiveBroadcasts.List(broadcastParts).Id(id).Context(ctx).Do()
	if err != nil {
		return nil, mapErr("get broadcast", err)
	}
	if len(resp.Items) == 0 {
		return nil, broadcast.NotFoundf("broadcast %s not found", id)
	}
	return resp.Items[0], nil
}

// UpdateBroadcast re-reads the broadcast and writes it back with only the
// present patch fields changed.
func (c *Client) UpdateBroadcast(ctx context.Context, id string, p broadcast.Patch) (broadcast.Remote, error) {
	lb, err := c.fetch(ctx, id)
	if err != nil {
		return broadcast.Remote{}, err
	}
	applyPatch(lb, p)
	if err := c.wait(ctx, "update broadcast"); err != nil {
		return broadcast.Remote{}, err
	}
	updated, err := c.svc.LiveBroadcasts.Update(broadcastParts, lb).Context(ctx).Do()
	if err != nil {
		return broadcast.Remote{}, mapErr("update broadcast", err)
	}
	return toRemote(updated), nil
}

func (c *Client) TransitionBroadcast(ctx context.Context, id, status string) error {
	if err := c.wait(ctx, "transition broadcast"); err != nil {
		return err
	}
	_, err := c.svc.LiveBroadcasts.Transition(status, id, broadcastParts).Context(ctx).Do()
	return mapErr("transition broadcast", err)
}

func draftToLive(d broadcast.Draft) *yt.LiveBroadcast {
	return &yt.LiveBroadcast{
		Snippet: &yt.LiveBroadcastSnippet{
			Title:              d.Title,
			ScheduledStartTime: d.Start.UTC().Format(time.RFC3339),
			ScheduledEndTime:   d.End.UTC().Format(time.RFC3339),
		},
		Status: &yt.LiveBroadcastStatus{
			PrivacyStatus:           string(d.Privacy),
			SelfDeclaredMadeForKids: !d.ChatEnabled,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
		ContentDetails: &yt.LiveBroadcastContentDetails{
			EnableAutoStart: d.AutoStart,
			EnableAutoStop:  d.AutoStop,
			EnableDvr:       false,
			EnableEmbed:     true,
			RecordFromStart: true,
			ForceSendFields: []string{"EnableAutoStart", "EnableAutoStop", "EnableDvr"},
		},
	}
}

// applyPatch mutates lb in place. False booleans must be force-sent or the
// API client drops them as empty values.
func applyPatch(lb *yt.LiveBroadcast, p broadcast.Patch) {
	if lb.ContentDetails == nil {
		lb.ContentDetails = &yt.LiveBroadcastContentDetails{}
	}
	if lb.Status == nil {
		lb.Status = &yt.LiveBroadcastStatus{}
	}
	if v, ok := p.AutoStart.Get(); ok {
		lb.ContentDetails.EnableAutoStart = v
		lb.ContentDetails.ForceSendFields = appendField(lb.ContentDetails.ForceSendFields, "EnableAutoStart")
	}
	if v, ok := p.AutoStop.Get(); ok {
		lb.ContentDetails.EnableAutoStop = v
		lb.ContentDetails.ForceSendFields = appendField(lb.ContentDetails.ForceSendFields, "EnableAutoStop")
	}
	if v, ok := p.Privacy.Get(); ok {
		lb.Status.PrivacyStatus = string(v)
	}
	if v, ok := p.ChatEnabled.Get(); ok {
		lb.Status.SelfDeclaredMadeForKids = !v
		lb.Status.ForceSendFields = appendField(lb.Status.ForceSendFields, "SelfDeclaredMadeForKids")
	}
}

func appendField(fields []string, name string) []string {
	for _, f := range fields {
		if f == name {
			return fields
		}
	}
	return append(fields, name)
}

func toRemote(lb *yt.LiveBroadcast) broadcast.Remote {
	r := broadcast.Remote{ID: lb.Id}
	if s := lb.Snippet; s != nil {
		r.Title = s.Title
		if t, err := time.Parse(time.RFC3339, s.ScheduledStartTime); err == nil && s.ScheduledStartTime != "" {
			r.ScheduledStart = &t
		}
	}
	if st := lb.Status; st != nil {
		r.Privacy = st.PrivacyStatus
		r.LifeCycle = st.LifeCycleStatus
		r.ChatEnabled = !st.SelfDeclaredMadeForKids
	}
	if cd := lb.ContentDetails; cd != nil {
		r.AutoStart = cd.EnableAutoStart
		r.AutoStop = cd.EnableAutoStop
	}
	return r
}

func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return broadcast.NotFoundf("%s: %s", op, gerr.Message)
	}
	return broadcast.WrapRemote(op, err)
}
