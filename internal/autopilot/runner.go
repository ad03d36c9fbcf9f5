package autopilot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"ytc/internal/broadcast"
	"ytc/internal/config"
	"ytc/internal/export"
	"ytc/internal/provision"
	rtsup "ytc/internal/runtime/supervisor"
	"ytc/internal/storage"
	"ytc/pkg/logx"
	"ytc/pkg/systemd"
)

type Provisioner interface {
	CreateAll(ctx context.Context, req provision.Request) ([]broadcast.Occurrence, error)
}

// Ledger is the part of storage.Store the runner needs.
type Ledger interface {
	HasOccurrence(ctx context.Context, templateID string, start time.Time) (bool, error)
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

type ExportPlan struct {
	Dir     string
	Buckets []export.Bucket
	Prefix  string
}

type Config struct {
	Trigger    Trigger
	Horizon    int
	IDs        []string
	RunOnStart bool
	// Timeout bounds a single run.
	Timeout  time.Duration
	Export   ExportPlan
	Location *time.Location
}

type Deps struct {
	Templates   *config.Source[broadcast.TemplateSet]
	Provisioner Provisioner
	Ledger      Ledger
	Systemd     *systemd.Notifier
	Log         logx.Logger

	// AppConfig, when set, is watched too. OnConfig receives each accepted
	// reload together with the names of the sections that changed.
	AppConfig *config.Source[*config.Config]
	OnConfig  func(cfg *config.Config, changed []string)
}

// Result describes one autopilot run.
type Result struct {
	RunID   string
	Created []broadcast.Occurrence
	Skipped int
	Files   []string
	Err     error
}

type Runner struct {
	cfg  Config
	deps Deps
	log  logx.Logger

	// runMu serializes runs started by cron and by RunOnStart.
	runMu sync.Mutex
}

func New(cfg Config, d Deps) (*Runner, error) {
	switch {
	case d.Templates == nil:
		return nil, broadcast.Validationf("autopilot: templates file required")
	case d.Provisioner == nil:
		return nil, broadcast.Validationf("autopilot: provisioner required")
	case d.Ledger == nil:
		return nil, broadcast.Validationf("autopilot: a storage driver is required to track created broadcasts")
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Systemd == nil {
		d.Systemd = systemd.New(d.Log)
	}
	return &Runner{cfg: cfg, deps: d, log: d.Log.With(logx.String("comp", "autopilot"))}, nil
}

// RunOnce provisions missing occurrences and exports the new ones.
func (r *Runner) RunOnce(ctx context.Context) Result {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	res := Result{RunID: uuid.NewString()}
	log := r.log.With(logx.String("run_id", res.RunID))
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	set, ok := r.deps.Templates.Get()
	if !ok {
		var err error
		if set, err = r.deps.Templates.Load(); err != nil {
			res.Err = err
			r.audit(ctx, log, res, started)
			return res
		}
	}

	req := provision.Request{
		Set:   set,
		IDs:   r.cfg.IDs,
		Count: r.cfg.Horizon,
		Skip: func(templateID string, start time.Time) bool {
			has, err := r.deps.Ledger.HasOccurrence(ctx, templateID, start)
			if err != nil {
				// Skipping is safer than creating a duplicate.
				log.Warn("ledger lookup failed; skipping", logx.String("template", templateID), logx.Time("start", start), logx.Err(err))
				return true
			}
			if has {
				res.Skipped++
			}
			return has
		},
	}
	res.Created, res.Err = r.deps.Provisioner.CreateAll(ctx, req)

	if len(res.Created) > 0 && r.cfg.Export.Dir != "" {
		files, err := export.Export(res.Created, r.cfg.Export.Dir, r.cfg.Export.Buckets, r.cfg.Export.Prefix, r.cfg.Location)
		res.Files = files
		if err != nil {
			res.Err = errors.Join(res.Err, err)
		}
	}

	r.audit(ctx, log, res, started)
	return res
}

func (r *Runner) audit(ctx context.Context, log logx.Logger, res Result, started time.Time) {
	took := time.Since(started)
	e := storage.AuditEntry{
		At: started, RunID: res.RunID, Command: "autopilot",
		OK: len(res.Created), TookMS: took.Milliseconds(),
	}
	if res.Err != nil {
		e.Fail = 1
		e.Error = res.Err.Error()
	}
	// The run context may be spent; give the audit write its own deadline.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.deps.Ledger.AppendAudit(actx, e); err != nil {
		log.Warn("audit write failed", logx.Err(err))
	}

	fields := []logx.Field{
		logx.Int("created", len(res.Created)),
		logx.Int("skipped", res.Skipped),
		logx.Int("files", len(res.Files)),
		logx.Duration("took", took),
	}
	if res.Err != nil {
		log.Error("autopilot run finished with errors", append(fields, logx.Err(res.Err))...)
		return
	}
	log.Info("autopilot run finished", fields...)
}

// Run blocks until ctx is done, firing RunOnce on every trigger.
func (r *Runner) Run(ctx context.Context) error {
	set, err := r.deps.Templates.Load()
	if err != nil {
		return err
	}
	sched, err := r.cfg.Trigger.Schedule()
	if err != nil {
		return broadcast.Validationf("autopilot schedule: %v", err)
	}
	r.deps.Templates.SetLogger(r.log)

	sup := rtsup.New(ctx, rtsup.WithLogger(r.log))

	cl := cronLogger{log: r.log}
	c := cron.New(cron.WithLocation(r.cfg.Location), cron.WithLogger(cl))
	// Schedule does not apply the cron's own chain, so wrap the job here.
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(func() { r.RunOnce(sup.Context()) }))
	c.Schedule(sched, job)
	c.Start()

	sup.GoRestart("templates.watch", r.deps.Templates.Watch)
	tplUpdates := r.deps.Templates.Subscribe(1)
	sup.Go("templates.reload", func(ctx context.Context) error {
		prev := set
		for {
			select {
			case <-ctx.Done():
				return nil
			case next, ok := <-tplUpdates:
				if !ok {
					return nil
				}
				if ch := config.SummarizeTemplateChange(prev, next); !ch.Empty() {
					r.log.Info("templates reloaded", ch.Fields()...)
				}
				prev = next
			}
		}
	})

	var cfgUpdates chan *config.Config
	if src := r.deps.AppConfig; src != nil {
		src.SetLogger(r.log)
		prev, _ := src.Get()
		cfgUpdates = src.Subscribe(1)
		sup.GoRestart("config.watch", src.Watch)
		sup.Go("config.reload", func(ctx context.Context) error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case next, ok := <-cfgUpdates:
					if !ok {
						return nil
					}
					changed, fields := config.SummarizeConfigChange(prev, next)
					if len(changed) > 0 {
						r.log.Info("config reloaded", append(fields, logx.Strings("changed", changed))...)
						if r.deps.OnConfig != nil {
							r.deps.OnConfig(next, changed)
						}
					}
					prev = next
				}
			}
		})
	}

	sup.Go("systemd.watchdog", r.deps.Systemd.RunWatchdog)

	if r.cfg.RunOnStart {
		sup.Go("autopilot.run_on_start", func(ctx context.Context) error {
			r.RunOnce(ctx)
			return nil
		})
	}

	next := sched.Next(time.Now().In(r.cfg.Location))
	r.deps.Systemd.Ready()
	r.deps.Systemd.Status("next run " + next.Format(time.RFC3339))
	r.log.Info("autopilot started",
		logx.String("trigger", r.cfg.Trigger.String()),
		logx.Int("horizon", r.cfg.Horizon),
		logx.Int("templates", len(set.Templates)),
		logx.Time("next", next))

	<-ctx.Done()
	r.deps.Systemd.Stopping()
	r.log.Info("autopilot stopping")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	select {
	case <-c.Stop().Done():
	case <-stopCtx.Done():
		r.log.Warn("autopilot run still in progress at shutdown")
	}
	r.deps.Templates.Unsubscribe(tplUpdates)
	if cfgUpdates != nil {
		r.deps.AppConfig.Unsubscribe(cfgUpdates)
	}
	if err := sup.Stop(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
