// Package update applies sparse changes to existing broadcasts, one at a
// time or in batches read from CSV.
package update

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ytc/internal/broadcast"
	"ytc/internal/youtube"
	"ytc/pkg/logx"
)

// Target names what to update: a single broadcast id or a CSV file.
type Target struct {
	ID   string
	File string
}

// Validate requires exactly one of ID and File.
func (t Target) Validate() error {
	id, file := strings.TrimSpace(t.ID), strings.TrimSpace(t.File)
	switch {
	case id == "" && file == "":
		return broadcast.Validationf("either a broadcast id or a csv file is required")
	case id != "" && file != "":
		return broadcast.Validationf("a broadcast id and a csv file are mutually exclusive")
	}
	return nil
}

type Driver struct {
	session *youtube.Session
	log     logx.Logger
}

func New(session *youtube.Session, log logx.Logger) *Driver {
	return &Driver{session: session, log: log.With(logx.String("comp", "update"))}
}

// Update applies p to broadcast id. Fields absent from p are left as they
// are on the service.
func (d *Driver) Update(ctx context.Context, id string, p broadcast.Patch) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return broadcast.Validationf("broadcast id is required")
	}
	if p.Empty() {
		return broadcast.Validationf("nothing to update for %s", id)
	}
	svc, err := d.session.Service(ctx)
	if err != nil {
		return err
	}
	if _, err := svc.UpdateBroadcast(ctx, id, p); err != nil {
		return broadcast.WrapRemote("update broadcast", err)
	}
	d.log.Info("broadcast updated", logx.String("id", id), logx.Strings("fields", p.Fields()))
	return nil
}

// UpdateFromCSV applies every row of the file at path. chat, when set,
// applies to every row. The whole file is parsed before any remote call.
// Rows that fail remotely do not stop the others; their errors are joined.
func (d *Driver) UpdateFromCSV(ctx context.Context, path string, chat broadcast.Optional[bool]) (int, error) {
	rows, err := ReadFile(path)
	if err != nil {
		return 0, err
	}
	updated := 0
	var errs []error
	for _, row := range rows {
		p := row.Patch
		p.ChatEnabled = chat
		if p.Empty() {
			d.log.Debug("row has no changes", logx.String("id", row.ID), logx.Int("line", row.Line))
			continue
		}
		if err := d.Update(ctx, row.ID, p); err != nil {
			errs = append(errs, fmt.Errorf("line %d (%s): %w", row.Line, row.ID, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		updated++
	}
	return updated, errors.Join(errs...)
}
