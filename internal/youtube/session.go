package youtube

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"ytc/pkg/logx"
)

// Session lazily builds one Service per process. Concurrent callers share
// the first build, including its error.
type Session struct {
	once  sync.Once
	build func(ctx context.Context) (Service, error)
	svc   Service
	err   error
}

func NewSession(build func(ctx context.Context) (Service, error)) *Session {
	return &Session{build: build}
}

// StaticSession wraps an existing Service.
func StaticSession(svc Service) *Session {
	return NewSession(func(context.Context) (Service, error) { return svc, nil })
}

func (s *Session) Service(ctx context.Context) (Service, error) {
	s.once.Do(func() {
		s.svc, s.err = s.build(ctx)
	})
	return s.svc, s.err
}

type DialConfig struct {
	Timeout time.Duration
	Options Options
}

// Dial authenticates and returns a live Client.
func Dial(ctx context.Context, auth *Authenticator, cfg DialConfig, log logx.Logger) (*Client, error) {
	ts, err := auth.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := &http.Client{
		Timeout:   timeout,
		Transport: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
	}
	svc, err := yt.NewService(ctx, option.WithHTTPClient(hc))
	if err != nil {
		return nil, err
	}
	return NewClient(svc, cfg.Options, log), nil
}
