package update

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"ytc/internal/broadcast"
)

// Row is one parsed line of a batch update file.
type Row struct {
	Line  int
	ID    string
	Patch broadcast.Patch
}

const (
	colID        = "youtubeid"
	colAutoStart = "autostart"
	colAutoStop  = "autostop"
	colPrivacy   = "privacy"
)

// ReadFile parses a batch update file.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, broadcast.NotFoundf("csv file %s not found", path)
		}
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses CSV with a header row. Columns are located by name, so an
// export file can be fed back directly. Empty cells leave the field
// unchanged.
func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, broadcast.Parsef("csv: empty file")
	}
	if err != nil {
		return nil, broadcast.Parsef("csv: %v", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		cols[h] = i
	}
	if _, ok := cols[colID]; !ok {
		return nil, broadcast.Parsef("csv: missing YouTubeId column")
	}

	var rows []Row
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, broadcast.Parsef("csv: %v", err)
		}
		cell := func(name string) string {
			if i, ok := cols[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		id := cell(colID)
		if id == "" {
			continue
		}
		row := Row{Line: line, ID: id}
		if row.Patch.AutoStart, err = optionalBool(cell(colAutoStart)); err != nil {
			return nil, broadcast.Parsef("csv line %d: AutoStart: %v", line, err)
		}
		if row.Patch.AutoStop, err = optionalBool(cell(colAutoStop)); err != nil {
			return nil, broadcast.Parsef("csv line %d: AutoStop: %v", line, err)
		}
		if v := cell(colPrivacy); v != "" {
			p, err := broadcast.ParsePrivacy(v)
			if err != nil {
				return nil, broadcast.Parsef("csv line %d: %v", line, err)
			}
			row.Patch.Privacy = broadcast.Some(p)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func optionalBool(s string) (broadcast.Optional[bool], error) {
	if s == "" {
		return broadcast.None[bool](), nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return broadcast.None[bool](), err
	}
	return broadcast.Some(v), nil
}
