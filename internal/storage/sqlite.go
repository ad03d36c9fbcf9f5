package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ytc/internal/broadcast"
	"ytc/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) RecordOccurrence(ctx context.Context, o broadcast.Occurrence) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO occurrences(template_id, start_unix, remote_id, title, start_at, end_at, auto_start, auto_stop, privacy, chat_enabled)
		 VALUES(?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(template_id, start_unix) DO UPDATE SET remote_id=excluded.remote_id, title=excluded.title`,
		o.TemplateID, o.Start.UTC().Unix(), o.RemoteID, o.Title,
		o.Start.UTC().Format(time.RFC3339), o.End.UTC().Format(time.RFC3339),
		o.AutoStart, o.AutoStop, string(o.Privacy), o.ChatEnabled,
	)
	return err
}

func (s *sqliteStore) HasOccurrence(ctx context.Context, templateID string, start time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM occurrences WHERE template_id = ? AND start_unix = ?`,
		templateID, start.UTC().Unix()).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) Occurrences(ctx context.Context, templateID string) ([]broadcast.Occurrence, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	q := `SELECT template_id, remote_id, title, start_at, end_at, auto_start, auto_stop, privacy, chat_enabled
	      FROM occurrences`
	var args []any
	if templateID != "" {
		q += ` WHERE template_id = ?`
		args = append(args, templateID)
	}
	q += ` ORDER BY start_unix, template_id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []broadcast.Occurrence
	for rows.Next() {
		var (
			o          broadcast.Occurrence
			start, end string
			privacy    string
		)
		if err := rows.Scan(&o.TemplateID, &o.RemoteID, &o.Title, &start, &end, &o.AutoStart, &o.AutoStop, &privacy, &o.ChatEnabled); err != nil {
			return nil, err
		}
		o.Start, _ = time.Parse(time.RFC3339, start)
		o.End, _ = time.Parse(time.RFC3339, end)
		o.Privacy = broadcast.Privacy(privacy)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, run_id, command, target, ok, fail, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.RunID, e.Command, nullStr(e.Target),
		e.OK, e.Fail, nullStr(e.Error), e.TookMS,
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
