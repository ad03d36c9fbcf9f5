// Package provision drives the create, bind and thumbnail sequence for every
// occurrence of the selected templates.
package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ytc/internal/broadcast"
	"ytc/internal/eventbus"
	"ytc/internal/schedule"
	"ytc/internal/youtube"
	"ytc/pkg/logx"
)

// Event types published on the bus.
const (
	EventProvisioned = "occurrence.provisioned"
	EventFailed      = "occurrence.failed"
)

// Failure is the payload of EventFailed.
type Failure struct {
	TemplateID string
	Title      string
	Err        error
}

// Ledger persists provisioned occurrences.
type Ledger interface {
	RecordOccurrence(ctx context.Context, o broadcast.Occurrence) error
}

type Request struct {
	Set   broadcast.TemplateSet
	IDs   []string
	Count int
	// StartsOn, when set, must not be before today. Defaults to today.
	StartsOn *time.Time
	TestMode bool
	// Skip reports occurrences that must not be created, such as ones
	// already recorded in the ledger.
	Skip func(templateID string, start time.Time) bool
}

type Deps struct {
	Session *youtube.Session
	Ledger  Ledger
	Bus     eventbus.Bus
	Log     logx.Logger
	Loc     *time.Location
	Now     func() time.Time
}

type Orchestrator struct {
	session *youtube.Session
	ledger  Ledger
	bus     eventbus.Bus
	log     logx.Logger
	loc     *time.Location
	now     func() time.Time
}

func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		session: d.Session,
		ledger:  d.Ledger,
		bus:     d.Bus,
		log:     d.Log.With(logx.String("comp", "provision")),
		loc:     d.Loc,
		now:     d.Now,
	}
	if o.loc == nil {
		o.loc = time.Local
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// prepared is a template whose stream and thumbnail were resolved up front.
type prepared struct {
	tpl       broadcast.Template
	streamID  string
	thumbnail string
}

// CreateAll provisions every occurrence of the selected templates. Failures
// of one template or occurrence do not stop the others; the returned error
// joins them and the records hold everything that was created.
func (o *Orchestrator) CreateAll(ctx context.Context, req Request) ([]broadcast.Occurrence, error) {
	today := o.now().In(o.loc)
	startsOn := schedule.Midnight(today)
	if req.StartsOn != nil {
		if err := schedule.ValidateStartsOn(*req.StartsOn, today, o.loc); err != nil {
			return nil, err
		}
		startsOn = schedule.Midnight(req.StartsOn.In(o.loc))
	}

	templates := req.Set.Select(req.IDs)
	if len(templates) == 0 {
		return nil, broadcast.NotFoundf("no active templates match %v", req.IDs)
	}
	if req.TestMode {
		templates = templates[:1]
	}
	count := req.Count
	if count < 1 && !req.TestMode {
		return nil, broadcast.Validationf("occurrence count must be >= 1, got %d", count)
	}

	svc, err := o.session.Service(ctx)
	if err != nil {
		return nil, err
	}
	streams, err := svc.ListStreams(ctx)
	if err != nil {
		return nil, err
	}

	var (
		records []broadcast.Occurrence
		errs    []error
	)
	for _, tpl := range templates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		log := o.log.With(logx.String("template", tpl.ID))
		p, err := o.prepare(tpl, req.Set.Dir, streams)
		if err != nil {
			o.fail(log, tpl.ID, "", err)
			errs = append(errs, err)
			continue
		}
		specs, err := schedule.Plan(tpl, startsOn, count, schedule.GenerateOptions{TestMode: req.TestMode})
		if err != nil {
			o.fail(log, tpl.ID, "", err)
			errs = append(errs, err)
			continue
		}
		for _, spec := range specs {
			if req.Skip != nil && req.Skip(tpl.ID, spec.Start) {
				log.Debug("occurrence already provisioned", logx.Time("start", spec.Start))
				continue
			}
			rec, err := o.provisionOne(ctx, svc, p, spec, req.TestMode)
			if err != nil {
				err = fmt.Errorf("template %s %q: %w", tpl.ID, spec.Title, err)
				o.fail(log, tpl.ID, spec.Title, err)
				errs = append(errs, err)
				continue
			}
			records = append(records, rec)
			o.record(ctx, log, rec)
		}
	}
	return records, errors.Join(errs...)
}

func (o *Orchestrator) prepare(tpl broadcast.Template, dir string, streams []broadcast.Stream) (prepared, error) {
	if err := tpl.Validate(); err != nil {
		return prepared{}, err
	}
	streamID, err := ResolveStream(streams, tpl.Stream)
	if err != nil {
		return prepared{}, fmt.Errorf("template %s: %w", tpl.ID, err)
	}
	thumb, err := ResolveThumbnail(dir, tpl.Thumbnail)
	if err != nil {
		return prepared{}, fmt.Errorf("template %s: %w", tpl.ID, err)
	}
	return prepared{tpl: tpl, streamID: streamID, thumbnail: thumb}, nil
}

// provisionOne runs create, bind and thumbnail upload strictly in order. The
// service rejects thumbnails for broadcasts that have no bound stream yet.
func (o *Orchestrator) provisionOne(ctx context.Context, svc youtube.Service, p prepared, spec schedule.Spec, testMode bool) (broadcast.Occurrence, error) {
	tpl := p.tpl
	privacy := tpl.Privacy
	if testMode {
		privacy = broadcast.PrivacyPrivate
	}
	draft := broadcast.Draft{
		Title:       spec.Title,
		Start:       spec.Start,
		End:         spec.End,
		Privacy:     privacy,
		ChatEnabled: tpl.ChatEnabled,
		AutoStart:   tpl.AutoStart,
		AutoStop:    tpl.AutoStop,
	}
	id, err := svc.CreateBroadcast(ctx, draft)
	if err != nil {
		return broadcast.Occurrence{}, broadcast.WrapRemote("create broadcast", err)
	}
	if err := svc.BindStream(ctx, id, p.streamID); err != nil {
		return broadcast.Occurrence{}, broadcast.WrapRemote("bind stream", fmt.Errorf("broadcast %s: %w", id, err))
	}
	if err := o.upload(ctx, svc, id, p.thumbnail); err != nil {
		return broadcast.Occurrence{}, err
	}
	o.log.Info("broadcast created",
		logx.String("template", tpl.ID),
		logx.String("id", id),
		logx.String("title", spec.Title),
		logx.Time("start", spec.Start))
	return broadcast.Occurrence{
		TemplateID:  tpl.ID,
		RemoteID:    id,
		Title:       spec.Title,
		Start:       spec.Start.UTC(),
		End:         spec.End.UTC(),
		AutoStart:   tpl.AutoStart,
		AutoStop:    tpl.AutoStop,
		Privacy:     privacy,
		ChatEnabled: tpl.ChatEnabled,
	}, nil
}

func (o *Orchestrator) upload(ctx context.Context, svc youtube.Service, id, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return broadcast.NotFoundf("thumbnail %s not found", path)
		}
		return fmt.Errorf("open thumbnail: %w", err)
	}
	defer f.Close()
	if err := svc.UploadThumbnail(ctx, id, f, youtube.ContentType(path)); err != nil {
		return broadcast.WrapRemote("upload thumbnail", fmt.Errorf("broadcast %s: %w", id, err))
	}
	return nil
}

func (o *Orchestrator) record(ctx context.Context, log logx.Logger, rec broadcast.Occurrence) {
	if o.ledger != nil {
		if err := o.ledger.RecordOccurrence(ctx, rec); err != nil {
			log.Warn("ledger write failed", logx.String("id", rec.RemoteID), logx.Err(err))
		}
	}
	if o.bus != nil {
		o.bus.Publish(eventbus.Event{Type: EventProvisioned, Data: rec})
	}
}

func (o *Orchestrator) fail(log logx.Logger, templateID, title string, err error) {
	log.Error("provisioning failed", logx.String("title", title), logx.Err(err))
	if o.bus != nil {
		o.bus.Publish(eventbus.Event{Type: EventFailed, Data: Failure{TemplateID: templateID, Title: title, Err: err}})
	}
}

// ResolveStream finds the single stream whose title equals name, ignoring
// case.
func ResolveStream(streams []broadcast.Stream, name string) (string, error) {
	var found []broadcast.Stream
	for _, s := range streams {
		if strings.EqualFold(strings.TrimSpace(s.Title), strings.TrimSpace(name)) {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 1:
		return found[0].ID, nil
	case 0:
		return "", broadcast.Validationf("no stream named %q", name)
	default:
		return "", broadcast.Validationf("%d streams named %q", len(found), name)
	}
}

// ResolveThumbnail resolves path against dir and checks the file exists.
// Either slash style is accepted in the template file.
func ResolveThumbnail(dir, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", broadcast.Validationf("thumbnail is required")
	}
	p := filepath.FromSlash(strings.ReplaceAll(path, `\`, "/"))
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	st, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", broadcast.NotFoundf("thumbnail %s not found", p)
		}
		return "", err
	}
	if st.IsDir() {
		return "", broadcast.NotFoundf("thumbnail %s is a directory", p)
	}
	return p, nil
}
