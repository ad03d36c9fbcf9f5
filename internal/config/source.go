package config

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ytc/internal/broadcast"
	"ytc/pkg/logx"
)

// Source keeps the latest parsed value of a file and republishes it to
// subscribers whenever the file changes on disk.
type Source[T any] struct {
	path  string
	parse func(path string) (T, error)

	mu       sync.RWMutex
	cur      T
	loaded   bool
	lastHash uint64

	// subsMu also serializes publish against Unsubscribe so a closed
	// channel is never sent to.
	subsMu sync.Mutex
	subs   []chan T

	log       logx.Logger
	validator func(ctx context.Context, v T) error
	debounce  time.Duration
}

func NewSource[T any](path string, parse func(path string) (T, error)) *Source[T] {
	return &Source[T]{path: path, parse: parse, debounce: 250 * time.Millisecond}
}

// NewTemplateSource watches a broadcasts file.
func NewTemplateSource(path string) *Source[broadcast.TemplateSet] {
	return NewSource(path, LoadTemplates)
}

func (s *Source[T]) Path() string { return s.path }

func (s *Source[T]) SetLogger(log logx.Logger) { s.log = log }

// SetValidator installs a hook run by Watch before a reloaded value is
// committed. A rejected value is logged and dropped.
func (s *Source[T]) SetValidator(fn func(ctx context.Context, v T) error) { s.validator = fn }

// Load parses the file and commits the result.
func (s *Source[T]) Load() (T, error) {
	v, err := s.parse(s.path)
	if err != nil {
		var zero T
		return zero, err
	}
	s.commit(v)
	return v, nil
}

func (s *Source[T]) commit(v T) {
	s.mu.Lock()
	s.cur = v
	s.loaded = true
	s.lastHash = hashValue(v)
	s.mu.Unlock()
}

// Get returns the last committed value.
func (s *Source[T]) Get() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur, s.loaded
}

func (s *Source[T]) Subscribe(buffer int) chan T {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan T, buffer)
	s.subsMu.Lock()
	s.subs = append(s.subs, ch)
	s.subsMu.Unlock()
	return ch
}

func (s *Source[T]) Unsubscribe(ch chan T) {
	if ch == nil {
		return
	}
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for i, c := range s.subs {
		if c == ch {
			last := len(s.subs) - 1
			s.subs[i] = s.subs[last]
			s.subs[last] = nil
			s.subs = s.subs[:last]
			close(ch)
			return
		}
	}
}

// publish delivers v to every subscriber. A full subscriber loses its
// oldest pending value so the newest always gets through.
func (s *Source[T]) publish(v T) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
			s.log.Debug("reload dropped (subscriber slow)", logx.String("path", s.path))
		}
	}
}

// reload parses, validates and publishes the file if its content changed.
func (s *Source[T]) reload(ctx context.Context) {
	v, err := s.parse(s.path)
	if err != nil {
		s.log.Warn("reload parse failed", logx.String("path", s.path), logx.Err(err))
		return
	}
	h := hashValue(v)
	s.mu.RLock()
	unchanged := h != 0 && h == s.lastHash
	s.mu.RUnlock()
	if unchanged {
		s.log.Debug("file unchanged; skipping publish", logx.String("path", s.path))
		return
	}
	if s.validator != nil {
		vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := s.validator(vctx, v)
		cancel()
		if err != nil {
			s.log.Warn("reload rejected", logx.String("path", s.path), logx.Err(err))
			return
		}
	}
	s.commit(v)
	s.publish(v)
	s.log.Info("file reloaded", logx.String("path", s.path))
}

// Watch follows the file's directory until ctx is done. The fsnotify
// watcher is recreated with jittered backoff when it breaks.
func (s *Source[T]) Watch(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	file := filepath.Base(s.path)

	const (
		backoffBase = 250 * time.Millisecond
		backoffMax  = 5 * time.Second
	)
	backoff := backoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	nextWait := func() time.Duration {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff *= 2; backoff > backoffMax {
			backoff = backoffMax
		}
		return wait
	}
	sleep := func(d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	trigger := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(s.debounce, func() { s.reload(ctx) })
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		w, err := fsnotify.NewWatcher()
		if err != nil {
			s.log.Warn("watch init failed", logx.Err(err), logx.String("dir", dir))
			if !sleep(nextWait()) {
				return nil
			}
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			s.log.Warn("watch add failed", logx.Err(err), logx.String("dir", dir))
			if !sleep(nextWait()) {
				return nil
			}
			continue
		}
		backoff = backoffBase
		s.log.Debug("watcher started", logx.String("dir", dir), logx.String("file", file))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
					trigger()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				msg := strings.ToLower(err.Error())
				if strings.Contains(msg, "overflow") {
					s.log.Warn("watch overflow; forcing reload", logx.Err(err))
					trigger()
					continue
				}
				s.log.Warn("watch error", logx.Err(err), logx.String("dir", dir))
				if strings.Contains(msg, "closed") {
					broken = true
				}
			}
		}
		_ = w.Close()
		wait := nextWait()
		s.log.Warn("watcher stopped; restarting", logx.String("dir", dir), logx.Duration("backoff", wait))
		if !sleep(wait) {
			return nil
		}
	}
}

func hashValue(v any) uint64 {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
