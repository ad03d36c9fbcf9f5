package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"ytc/internal/broadcast"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines files next to Path
//   - "sqlite": SQLite database at Path
//   - "redis": redis:// URL in DSN
//   - "postgres": connection string in DSN
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	DSN         string
	KeyPrefix   string        // redis only; default "ytc:"
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the ledger API.
type Store interface {
	RecordOccurrence(ctx context.Context, o broadcast.Occurrence) error
	// HasOccurrence reports whether templateID already has a broadcast
	// starting at start.
	HasOccurrence(ctx context.Context, templateID string, start time.Time) (bool, error)
	// Occurrences lists recorded occurrences ordered by start. An empty
	// templateID lists all of them.
	Occurrences(ctx context.Context, templateID string) ([]broadcast.Occurrence, error)
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// AuditEntry records one command run.
type AuditEntry struct {
	At      time.Time `json:"at"`
	RunID   string    `json:"run_id"`
	Command string    `json:"command"`
	Target  string    `json:"target,omitempty"`
	OK      int       `json:"ok"`
	Fail    int       `json:"fail"`
	Error   string    `json:"error,omitempty"`
	TookMS  int64     `json:"took_ms"`
}

// occurrenceRecord is the persisted form shared by the file and redis drivers.
type occurrenceRecord struct {
	TemplateID  string    `json:"template_id"`
	RemoteID    string    `json:"remote_id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AutoStart   bool      `json:"auto_start"`
	AutoStop    bool      `json:"auto_stop"`
	Privacy     string    `json:"privacy"`
	ChatEnabled bool      `json:"chat_enabled"`
}

func toRecord(o broadcast.Occurrence) occurrenceRecord {
	return occurrenceRecord{
		TemplateID: o.TemplateID, RemoteID: o.RemoteID, Title: o.Title,
		Start: o.Start.UTC(), End: o.End.UTC(), AutoStart: o.AutoStart, AutoStop: o.AutoStop,
		Privacy: string(o.Privacy), ChatEnabled: o.ChatEnabled,
	}
}

func (r occurrenceRecord) occurrence() broadcast.Occurrence {
	return broadcast.Occurrence{
		TemplateID: r.TemplateID, RemoteID: r.RemoteID, Title: r.Title,
		Start: r.Start, End: r.End, AutoStart: r.AutoStart, AutoStop: r.AutoStop,
		Privacy: broadcast.Privacy(r.Privacy), ChatEnabled: r.ChatEnabled,
	}
}

// slotKey identifies a template's occurrence at a start instant.
func slotKey(templateID string, start time.Time) string {
	return templateID + "@" + strconv.FormatInt(start.UTC().Unix(), 10)
}
