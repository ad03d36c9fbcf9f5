// Package app implements the ytc command line: flag parsing, wiring of the
// configured components and exit codes.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ytc/internal/config"
	"ytc/internal/eventbus"
	"ytc/internal/notifier"
	"ytc/internal/storage"
	"ytc/internal/transport"
	"ytc/internal/transport/telegram"
	"ytc/internal/youtube"
	"ytc/pkg/logx"
)

// Version is set at build time with -ldflags "-X ytc/internal/app.Version=...".
var Version = "dev"

const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Env carries the process surroundings. Zero fields get real defaults.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	// Session replaces the authenticated YouTube session.
	Session *youtube.Session
	// Log replaces the configured logger.
	Log logx.Logger
	Now func() time.Time
}

func (e Env) withDefaults() Env {
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	return e
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *App, args []string) error
}

func commandList() []command {
	return []command{
		{"create", "create broadcasts from a templates file", runCreate},
		{"list", "list broadcasts by status", runList},
		{"update", "update one broadcast or a CSV batch", runUpdate},
		{"end", "end broadcasts by id", runEnd},
		{"clear-auth", "remove the cached OAuth token", runClearAuth},
		{"autopilot", "keep upcoming broadcasts provisioned on a schedule", runAutopilot},
		{"version", "print the version", nil},
	}
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: ytc [global flags] <command> [flags]")
	fmt.Fprintln(w, "\ncommands:")
	for _, c := range commandList() {
		fmt.Fprintf(w, "  %-11s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w, "\nglobal flags:")
	fs.PrintDefaults()
}

type globalFlags struct {
	configPath string
	logLevel   string
	clearCred  bool
}

// Run executes one command line and returns the process exit code.
func Run(ctx context.Context, args []string, env Env) int {
	env = env.withDefaults()

	var g globalFlags
	fs := flag.NewFlagSet("ytc", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	fs.StringVar(&g.configPath, "config", os.Getenv("YTC_CONFIG"), "config file (yaml or json)")
	fs.StringVar(&g.logLevel, "log-level", "", "trace, debug, info, warn or error")
	fs.BoolVar(&g.clearCred, "clear-credential", false, "remove the cached OAuth token first")
	fs.Usage = func() { printUsage(env.Stderr, fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return ExitUsage
	}

	name := fs.Arg(0)
	var cmd *command
	for _, c := range commandList() {
		if c.name == name {
			c := c
			cmd = &c
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(env.Stderr, "ytc: unknown command %q\n", name)
		fs.Usage()
		return ExitUsage
	}
	if cmd.run == nil {
		fmt.Fprintln(env.Stdout, "ytc", Version)
		return ExitOK
	}

	cfg, err := config.Load(g.configPath)
	if err != nil {
		fmt.Fprintln(env.Stderr, "ytc:", err)
		return ExitFailure
	}
	a, err := newApp(cfg, g, env)
	if err != nil {
		fmt.Fprintln(env.Stderr, "ytc:", err)
		return ExitFailure
	}
	defer a.close()

	err = cmd.run(ctx, a, fs.Args()[1:])
	return a.exitCode(cmd.name, err)
}

// App holds the per-process components shared by commands.
type App struct {
	cfg   *config.Config
	flags globalFlags
	env   Env

	log   logx.Logger
	logs  *logx.Service
	loc   *time.Location
	store storage.Store
	bus   eventbus.Bus
	runID string
}

func newApp(cfg *config.Config, g globalFlags, env Env) (*App, error) {
	a := &App{cfg: cfg, flags: g, env: env, bus: eventbus.New(), runID: uuid.NewString()}

	if env.Log.IsZero() {
		a.logs, a.log = logx.New(a.logConfig(cfg.Logging))
	} else {
		a.log = env.Log
	}
	a.log = a.log.With(logx.String("run_id", a.runID))

	loc, err := cfg.Location()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("timezone: %w", err)
	}
	a.loc = loc

	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	if enabled {
		st, err := storage.Open(sc, a.log)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.store = st
		a.log.Debug("storage enabled", logx.String("driver", sc.Driver))
	}
	return a, nil
}

func (a *App) logConfig(c config.LoggingConfig) logx.Config {
	if a.flags.logLevel != "" {
		c.Level = a.flags.logLevel
	}
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		JSON:    c.JSON,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
		Out:     a.env.Stderr,
	}
}

func (a *App) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

func (a *App) exitCode(name string, err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, flag.ErrHelp):
		return ExitOK
	case errors.Is(err, errUsage):
		fmt.Fprintf(a.env.Stderr, "ytc %s: %v\n", name, err)
		return ExitUsage
	default:
		fmt.Fprintf(a.env.Stderr, "ytc %s: %v\n", name, err)
		return ExitFailure
	}
}

func (a *App) authenticator(c commonFlags) *youtube.Authenticator {
	user := firstNonEmpty(c.user, a.cfg.YouTube.User)
	tokenDir := a.cfg.YouTube.TokenDir
	if tokenDir == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			tokenDir = filepath.Join(dir, "ytc")
		}
	}
	return youtube.NewAuthenticator(youtube.AuthConfig{
		ClientSecretsFile: firstNonEmpty(c.secrets, a.cfg.YouTube.ClientSecrets),
		User:              user,
		TokenDir:          tokenDir,
		Prompt:            a.env.Stderr,
	}, a.log)
}

// session returns the lazily authenticated YouTube session for c.
func (a *App) session(c commonFlags) (*youtube.Session, error) {
	if a.env.Session != nil {
		return a.env.Session, nil
	}
	auth := a.authenticator(c)
	if a.flags.clearCred {
		if err := auth.Clear(); err != nil {
			return nil, err
		}
	}
	if firstNonEmpty(c.secrets, a.cfg.YouTube.ClientSecrets) == "" {
		return nil, usageErrorf("a client secrets file is required (-c or youtube.client_secrets)")
	}
	timeout, err := config.ParseDurationOrDefault("youtube.timeout", a.cfg.YouTube.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	opts := youtube.Options{RatePerSec: a.cfg.YouTube.RatePerSec, Burst: a.cfg.YouTube.Burst}
	return youtube.NewSession(func(ctx context.Context) (youtube.Service, error) {
		c, err := youtube.Dial(ctx, auth, youtube.DialConfig{Timeout: timeout, Options: opts}, a.log)
		if err != nil {
			return nil, err
		}
		return c, nil
	}), nil
}

// startNotifier starts the Telegram announcer when configured. The returned
// stop function drains pending messages.
func (a *App) startNotifier(ctx context.Context) (stop func()) {
	nc := a.cfg.Notifier
	if nc == nil || !nc.Enabled {
		return func() {}
	}
	sender, err := telegram.New(telegram.Config{Token: nc.Token}, a.log.With(logx.String("comp", "telegram")))
	if err != nil {
		a.log.Warn("notifier disabled", logx.Err(err))
		return func() {}
	}
	svc := notifier.New(notifier.Config{
		Enabled:        true,
		Target:         transport.ChatTarget{ChatID: nc.ChatID, ThreadID: nc.ThreadID},
		RatePerSec:     float64(nc.RatePerSec),
		QueueSize:      nc.QueueSize,
		RetryMax:       2,
		NotifyFailures: true,
		Location:       a.loc,
	}, sender, a.bus, a.log)
	svc.Start(ctx)
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = svc.Stop(sctx)
	}
}

// audit records a command run in the ledger, if one is configured.
func (a *App) audit(ctx context.Context, cmd, target string, ok int, started time.Time, err error) {
	if a.store == nil {
		return
	}
	e := storage.AuditEntry{
		At: started, RunID: a.runID, Command: cmd, Target: target,
		OK: ok, Fail: countErrors(err), TookMS: time.Since(started).Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if aerr := a.store.AppendAudit(actx, e); aerr != nil {
		a.log.Warn("audit write failed", logx.Err(aerr))
	}
}

// countErrors counts the leaves of a joined error.
func countErrors(err error) int {
	if err == nil {
		return 0
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		n := 0
		for _, e := range j.Unwrap() {
			n += countErrors(e)
		}
		return n
	}
	return 1
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		if path == "" {
			path = "./ytc-ledger"
		}
		return storage.Config{Driver: driver, Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	case "redis", "postgres", "postgresql", "pgx":
		if strings.TrimSpace(sc.DSN) == "" {
			return storage.Config{}, false, fmt.Errorf("storage.dsn is required when storage.driver=%s", driver)
		}
		return storage.Config{Driver: driver, DSN: sc.DSN, KeyPrefix: sc.KeyPrefix}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
