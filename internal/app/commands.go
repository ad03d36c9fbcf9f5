package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"ytc/internal/autopilot"
	"ytc/internal/broadcast"
	"ytc/internal/config"
	"ytc/internal/export"
	"ytc/internal/lifecycle"
	"ytc/internal/listing"
	"ytc/internal/provision"
	"ytc/internal/schedule"
	"ytc/internal/update"
	"ytc/pkg/logx"
	"ytc/pkg/systemd"
)

func runCreate(ctx context.Context, a *App, args []string) error {
	var common commonFlags
	fs := newFlagSet("create", a.env.Stderr)
	common.register(fs)
	file := stringFlag(fs, "f", "file", "", "templates file (json or yaml), required")
	ids := stringFlag(fs, "i", "ids", "", "comma separated template ids; default all active")
	occ := stringFlag(fs, "o", "occurrences", "1", "occurrences to create per template")
	startsOn := stringFlag(fs, "s", "starts-on", "", "first day to consider, YYYY-MM-DD; default today")
	buckets := stringFlag(fs, "e", "output", "", "export buckets: single, monthly, daily, hourly, broadcast")
	prefix := stringFlag(fs, "p", "output-prefix", "", "export file name prefix")
	outDir := stringFlag(fs, "d", "output-dir", ".", "export directory")
	var testMode bool
	fs.BoolVar(&testMode, "t", false, "create one private test broadcast")
	fs.BoolVar(&testMode, "test-mode", false, "create one private test broadcast")
	if err := parse(fs, args); err != nil {
		return err
	}
	a.log.Debug("create flags", logx.Strings("flags", visited(fs)))

	if strings.TrimSpace(*file) == "" {
		return usageErrorf("-f templates file is required")
	}
	count, err := strconv.Atoi(strings.TrimSpace(*occ))
	if err != nil || count < 1 {
		return usageErrorf("-o must be a positive integer, got %q", *occ)
	}
	plan, err := export.ParseBuckets(*buckets)
	if err != nil {
		return usageErrorf("%v", err)
	}
	req := provision.Request{IDs: broadcast.SplitIDs(*ids), Count: count, TestMode: testMode}
	if s := strings.TrimSpace(*startsOn); s != "" {
		day, err := schedule.ParseDate(s, a.loc)
		if err != nil {
			return usageErrorf("%v", err)
		}
		req.StartsOn = &day
	}

	set, err := config.LoadTemplates(*file)
	if err != nil {
		return err
	}
	req.Set = set

	session, err := a.session(common)
	if err != nil {
		return err
	}
	stopNotifier := a.startNotifier(ctx)
	defer stopNotifier()

	started := time.Now()
	orch := provision.New(provision.Deps{
		Session: session,
		Ledger:  a.store,
		Bus:     a.bus,
		Log:     a.log,
		Loc:     a.loc,
		Now:     a.env.Now,
	})
	fmt.Fprintln(a.env.Stdout, "Creating Broadcasts")
	records, createErr := orch.CreateAll(ctx, req)
	for _, r := range records {
		fmt.Fprintf(a.env.Stdout, "%s Created.\n", r.Title)
	}

	// Partial results are still exported.
	files, exportErr := export.Export(records, *outDir, plan, *prefix, a.loc)
	for _, f := range files {
		fmt.Fprintln(a.env.Stdout, "Wrote", f)
	}

	err = errors.Join(createErr, exportErr)
	a.audit(ctx, "create", *file, len(records), started, err)
	return err
}

func runList(ctx context.Context, a *App, args []string) error {
	var common commonFlags
	fs := newFlagSet("list", a.env.Stderr)
	common.register(fs)
	rawFilters := fs.String("filter", "", "comma separated statuses: all, upcoming, active, completed")
	limit := stringFlag(fs, "n", "limit", strconv.Itoa(listing.DefaultLimit), "maximum results per status")
	embed := fs.Bool("embed", false, "print the embed code of each broadcast")
	if err := parse(fs, args); err != nil {
		return err
	}
	a.log.Debug("list flags", logx.Strings("flags", visited(fs)))

	filters, err := broadcast.ParseFilters(*rawFilters)
	if err != nil {
		return usageErrorf("%v", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(*limit))
	if err != nil || n < 1 {
		return usageErrorf("-n must be a positive integer, got %q", *limit)
	}

	session, err := a.session(common)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.env.Stdout, listHeading(filters, n))
	items, err := listing.New(session, a.log).List(ctx, filters, n)
	if err != nil {
		return err
	}
	for _, it := range items {
		fmt.Fprintf(a.env.Stdout, "%s (%s): %s\n", it.Title, it.Privacy, it.URL())
		if *embed {
			fmt.Fprintln(a.env.Stdout, it.EmbedCode())
		}
	}
	return nil
}

// listHeading renders e.g. "Getting upcoming, active Broadcasts (limit: 10)."
func listHeading(filters []broadcast.Filter, limit int) string {
	var b strings.Builder
	b.WriteString("Getting")
	if len(filters) > 0 && filters[0] != broadcast.FilterAll {
		names := make([]string, len(filters))
		for i, f := range filters {
			names[i] = f.String()
		}
		b.WriteString(" " + strings.Join(names, ", "))
	}
	b.WriteString(" Broadcasts")
	if limit != listing.DefaultLimit {
		fmt.Fprintf(&b, " (limit: %d)", limit)
	}
	b.WriteString(".")
	return b.String()
}

func runUpdate(ctx context.Context, a *App, args []string) error {
	var (
		common                    commonFlags
		autoStart, autoStop, chat optBool
	)
	fs := newFlagSet("update", a.env.Stderr)
	common.register(fs)
	id := stringFlag(fs, "y", "id", "", "broadcast id")
	file := stringFlag(fs, "f", "file", "", "CSV file of updates (YouTubeId plus optional columns)")
	privacy := stringFlag(fs, "p", "privacy", "", "public, private or unlisted")
	for _, name := range []string{"a", "auto-start"} {
		fs.Var(&autoStart, name, "start automatically when the stream goes live")
	}
	for _, name := range []string{"o", "auto-stop"} {
		fs.Var(&autoStop, name, "stop automatically when the stream ends")
	}
	for _, name := range []string{"e", "chat-enabled"} {
		fs.Var(&chat, name, "enable live chat")
	}
	if err := parse(fs, args); err != nil {
		return err
	}
	a.log.Debug("update flags", logx.Strings("flags", visited(fs)))

	target := update.Target{ID: strings.TrimSpace(*id), File: strings.TrimSpace(*file)}
	if err := target.Validate(); err != nil {
		return usageErrorf("%v", err)
	}

	p := broadcast.Patch{AutoStart: autoStart.v, AutoStop: autoStop.v, ChatEnabled: chat.v}
	if s := strings.TrimSpace(*privacy); s != "" {
		pv, err := broadcast.ParsePrivacy(s)
		if err != nil {
			return usageErrorf("%v", err)
		}
		p.Privacy = broadcast.Some(pv)
	}
	if target.ID != "" && p.Empty() {
		return usageErrorf("nothing to update: pass -auto-start, -auto-stop, -privacy or -chat-enabled")
	}

	session, err := a.session(common)
	if err != nil {
		return err
	}
	d := update.New(session, a.log)
	started := time.Now()

	if target.File != "" {
		// Only -chat-enabled applies to a batch; the other fields come from the file.
		n, err := d.UpdateFromCSV(ctx, target.File, chat.v)
		fmt.Fprintf(a.env.Stdout, "%d broadcasts updated.\n", n)
		a.audit(ctx, "update", target.File, n, started, err)
		return err
	}

	err = d.Update(ctx, target.ID, p)
	ok := 0
	if err == nil {
		ok = 1
		fmt.Fprintln(a.env.Stdout, "Broadcast updated successfully:", target.ID)
	}
	a.audit(ctx, "update", target.ID, ok, started, err)
	return err
}

func runEnd(ctx context.Context, a *App, args []string) error {
	var common commonFlags
	fs := newFlagSet("end", a.env.Stderr)
	common.register(fs)
	raw := stringFlag(fs, "i", "id", "", "comma separated broadcast ids")
	if err := parse(fs, args); err != nil {
		return err
	}
	ids := broadcast.SplitIDs(*raw)
	if len(ids) == 0 {
		return usageErrorf("-i broadcast id is required")
	}

	session, err := a.session(common)
	if err != nil {
		return err
	}
	started := time.Now()
	n, err := lifecycle.New(session, a.log).End(ctx, ids)
	fmt.Fprintf(a.env.Stdout, "%d of %d broadcasts ended.\n", n, len(ids))
	a.audit(ctx, "end", strings.Join(ids, ","), n, started, err)
	return err
}

func runClearAuth(_ context.Context, a *App, args []string) error {
	var common commonFlags
	fs := newFlagSet("clear-auth", a.env.Stderr)
	common.register(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	auth := a.authenticator(common)
	if err := auth.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(a.env.Stdout, "Removed", auth.TokenPath())
	return nil
}

func runAutopilot(ctx context.Context, a *App, args []string) error {
	var common commonFlags
	fs := newFlagSet("autopilot", a.env.Stderr)
	common.register(fs)
	file := stringFlag(fs, "f", "file", "", "templates file; overrides autopilot.templates")
	if err := parse(fs, args); err != nil {
		return err
	}

	ac := a.cfg.Autopilot
	if ac == nil {
		return usageErrorf("the config has no autopilot section")
	}
	if a.store == nil {
		return usageErrorf("autopilot needs storage.driver to remember created broadcasts")
	}
	tplPath := firstNonEmpty(*file, ac.Templates)
	if tplPath == "" {
		return usageErrorf("autopilot.templates or -f is required")
	}
	trigger, err := autopilot.ParseTrigger(ac.Schedule)
	if err != nil {
		return err
	}
	timeout, err := config.ParseDurationOrDefault("autopilot.timeout", ac.Timeout, 10*time.Minute)
	if err != nil {
		return err
	}
	buckets, err := export.ParseBuckets(strings.Join(ac.Export.Buckets, ","))
	if err != nil {
		return err
	}

	session, err := a.session(common)
	if err != nil {
		return err
	}
	stopNotifier := a.startNotifier(ctx)
	defer stopNotifier()

	deps := autopilot.Deps{
		Templates: config.NewTemplateSource(tplPath),
		Provisioner: provision.New(provision.Deps{
			Session: session,
			Ledger:  a.store,
			Bus:     a.bus,
			Log:     a.log,
			Loc:     a.loc,
			Now:     a.env.Now,
		}),
		Ledger:  a.store,
		Systemd: systemd.New(a.log),
		Log:     a.log,
	}
	if path := a.flags.configPath; path != "" {
		src := config.NewSource(path, config.Load)
		if _, err := src.Load(); err != nil {
			return err
		}
		deps.AppConfig = src
		deps.OnConfig = a.applyConfig
	}

	r, err := autopilot.New(autopilot.Config{
		Trigger:    trigger,
		Horizon:    ac.Horizon,
		IDs:        ac.IDs,
		RunOnStart: ac.RunOnStart,
		Timeout:    timeout,
		Export:     autopilot.ExportPlan{Dir: firstNonEmpty(ac.Export.Dir, "."), Buckets: buckets, Prefix: ac.Export.Prefix},
		Location:   a.loc,
	}, deps)
	if err != nil {
		return err
	}
	return r.Run(ctx)
}

// applyConfig hot-applies the parts of a reloaded config that can change
// without a restart. Others are logged and wait for the next start.
func (a *App) applyConfig(cfg *config.Config, changed []string) {
	if slices.Contains(changed, "logging") && a.logs != nil {
		a.logs.Apply(a.logConfig(cfg.Logging))
	}
	for _, name := range changed {
		if name != "logging" {
			a.log.Warn("config change needs a restart", logx.String("section", name))
		}
	}
}
