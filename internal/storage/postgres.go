package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ytc/internal/broadcast"
	"ytc/pkg/logx"
)

// pgConn is implemented by *pgxpool.Pool and by pgxmock pools.
type pgConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS ytc_occurrences (
    template_id  TEXT        NOT NULL,
    start_at     TIMESTAMPTZ NOT NULL,
    remote_id    TEXT        NOT NULL,
    title        TEXT        NOT NULL,
    end_at       TIMESTAMPTZ NOT NULL,
    auto_start   BOOLEAN     NOT NULL,
    auto_stop    BOOLEAN     NOT NULL,
    privacy      TEXT        NOT NULL,
    chat_enabled BOOLEAN     NOT NULL,
    PRIMARY KEY (template_id, start_at)
);
CREATE TABLE IF NOT EXISTS ytc_audit (
    id      BIGSERIAL PRIMARY KEY,
    at      TIMESTAMPTZ NOT NULL,
    run_id  TEXT        NOT NULL,
    command TEXT        NOT NULL,
    target  TEXT,
    ok      INTEGER     NOT NULL,
    fail    INTEGER     NOT NULL,
    err     TEXT,
    took_ms BIGINT      NOT NULL
);`

type postgresStore struct {
	db  pgConn
	log logx.Logger
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	st := &postgresStore{db: pool, log: log}
	if err := st.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return st, nil
}

func (s *postgresStore) migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, pgSchema)
	return err
}

func (s *postgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *postgresStore) RecordOccurrence(ctx context.Context, o broadcast.Occurrence) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO ytc_occurrences (template_id, start_at, remote_id, title, end_at, auto_start, auto_stop, privacy, chat_enabled)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (template_id, start_at) DO UPDATE SET remote_id = EXCLUDED.remote_id, title = EXCLUDED.title`,
		o.TemplateID, o.Start.UTC(), o.RemoteID, o.Title, o.End.UTC(),
		o.AutoStart, o.AutoStop, string(o.Privacy), o.ChatEnabled,
	)
	return err
}

func (s *postgresStore) HasOccurrence(ctx context.Context, templateID string, start time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ytc_occurrences WHERE template_id = $1 AND start_at = $2)`,
		templateID, start.UTC()).Scan(&exists)
	return exists, err
}

func (s *postgresStore) Occurrences(ctx context.Context, templateID string) ([]broadcast.Occurrence, error) {
	rows, err := s.db.Query(ctx,
		`SELECT template_id, remote_id, title, start_at, end_at, auto_start, auto_stop, privacy, chat_enabled
		 FROM ytc_occurrences
		 WHERE $1 = '' OR template_id = $1
		 ORDER BY start_at, template_id`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []broadcast.Occurrence
	for rows.Next() {
		var (
			o       broadcast.Occurrence
			privacy string
		)
		if err := rows.Scan(&o.TemplateID, &o.RemoteID, &o.Title, &o.Start, &o.End, &o.AutoStart, &o.AutoStop, &privacy, &o.ChatEnabled); err != nil {
			return nil, err
		}
		o.Privacy = broadcast.Privacy(privacy)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *postgresStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO ytc_audit (at, run_id, command, target, ok, fail, err, took_ms)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.At, e.RunID, e.Command, nullStr(e.Target), e.OK, e.Fail, nullStr(e.Error), e.TookMS,
	)
	return err
}
