package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"ytc/internal/broadcast"
	"ytc/pkg/logx"
)

// fileStore keeps the ledger in append-only JSON Lines files.
//
// Files:
//   - <prefix>.occurrences.jsonl (one record per created broadcast)
//   - <prefix>.audit.jsonl       (one entry per command run)
//
// The occurrence journal is replayed into memory on open.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	auditFile *os.File
	occFile   *os.File
	occ       map[string]occurrenceRecord
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	occPath := prefix + ".occurrences.jsonl"
	occ := map[string]occurrenceRecord{}
	if err := replayOccurrences(occPath, occ); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	of, err := os.OpenFile(occPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = of.Close()
		return nil, err
	}
	log.Debug("file ledger opened", logx.String("path", occPath), logx.Int("occurrences", len(occ)))
	return &fileStore{log: log, auditFile: af, occFile: of, occ: occ}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err1, err2 error
	if s.auditFile != nil {
		err1 = s.auditFile.Close()
		s.auditFile = nil
	}
	if s.occFile != nil {
		err2 = s.occFile.Close()
		s.occFile = nil
	}
	return errors.Join(err1, err2)
}

func (s *fileStore) RecordOccurrence(ctx context.Context, o broadcast.Occurrence) error {
	_ = ctx
	rec := toRecord(o)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.occFile == nil {
		return errors.New("occurrence journal closed")
	}
	if err := json.NewEncoder(s.occFile).Encode(rec); err != nil {
		return err
	}
	s.occ[slotKey(rec.TemplateID, rec.Start)] = rec
	return nil
}

func (s *fileStore) HasOccurrence(ctx context.Context, templateID string, start time.Time) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.occ[slotKey(templateID, start)]
	return ok, nil
}

func (s *fileStore) Occurrences(ctx context.Context, templateID string) ([]broadcast.Occurrence, error) {
	_ = ctx
	s.mu.Lock()
	out := make([]broadcast.Occurrence, 0, len(s.occ))
	for _, r := range s.occ {
		if templateID == "" || r.TemplateID == templateID {
			out = append(out, r.occurrence())
		}
	}
	s.mu.Unlock()
	sortOccurrences(out)
	return out, nil
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return errors.New("audit file closed")
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func replayOccurrences(path string, out map[string]occurrenceRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var r occurrenceRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.TemplateID == "" || r.RemoteID == "" {
			continue
		}
		out[slotKey(r.TemplateID, r.Start)] = r
	}
	return sc.Err()
}

func sortOccurrences(out []broadcast.Occurrence) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].TemplateID < out[j].TemplateID
	})
}
