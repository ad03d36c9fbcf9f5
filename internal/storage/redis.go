package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ytc/internal/broadcast"
	"ytc/pkg/logx"
)

const (
	defaultKeyPrefix = "ytc:"
	auditKeep        = 1000
)

// redisStore keys:
//   - <prefix>templates      set of template ids with occurrences
//   - <prefix>occ:<template> hash of slotKey -> occurrence JSON
//   - <prefix>audit          list of audit JSON, newest last, capped
type redisStore struct {
	rdb    redis.UniversalClient
	prefix string
	log    logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for redis driver")
	}
	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return newRedisStore(rdb, cfg.KeyPrefix, log), nil
}

func newRedisStore(rdb redis.UniversalClient, prefix string, log logx.Logger) *redisStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultKeyPrefix
	}
	return &redisStore{rdb: rdb, prefix: prefix, log: log}
}

func (s *redisStore) occKey(templateID string) string { return s.prefix + "occ:" + templateID }

func (s *redisStore) Close() error { return s.rdb.Close() }

func (s *redisStore) RecordOccurrence(ctx context.Context, o broadcast.Occurrence) error {
	rec := toRecord(o)
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.occKey(rec.TemplateID), slotKey(rec.TemplateID, rec.Start), b)
		p.SAdd(ctx, s.prefix+"templates", rec.TemplateID)
		return nil
	})
	return err
}

func (s *redisStore) HasOccurrence(ctx context.Context, templateID string, start time.Time) (bool, error) {
	return s.rdb.HExists(ctx, s.occKey(templateID), slotKey(templateID, start)).Result()
}

func (s *redisStore) Occurrences(ctx context.Context, templateID string) ([]broadcast.Occurrence, error) {
	ids := []string{templateID}
	if templateID == "" {
		var err error
		ids, err = s.rdb.SMembers(ctx, s.prefix+"templates").Result()
		if err != nil {
			return nil, err
		}
	}
	var out []broadcast.Occurrence
	for _, id := range ids {
		vals, err := s.rdb.HVals(ctx, s.occKey(id)).Result()
		if err != nil {
			return nil, err
		}
		for _, v := range vals {
			var r occurrenceRecord
			if err := json.Unmarshal([]byte(v), &r); err != nil {
				s.log.Warn("skip malformed occurrence", logx.String("template", id), logx.Err(err))
				continue
			}
			out = append(out, r.occurrence())
		}
	}
	sortOccurrences(out)
	return out, nil
}

func (s *redisStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := s.prefix + "audit"
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, b)
		p.LTrim(ctx, key, -auditKeep, -1)
		return nil
	})
	return err
}
