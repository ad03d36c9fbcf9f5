package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	yt "google.golang.org/api/youtube/v3"

	"ytc/internal/broadcast"
	"ytc/pkg/logx"
)

type AuthConfig struct {
	// ClientSecretsFile is the installed-app client JSON downloaded from the
	// Google Cloud console.
	ClientSecretsFile string
	// User keys the cached token so several channels can share a token dir.
	User     string
	TokenDir string
	// Prompt receives the consent URL during first-time authorization.
	Prompt io.Writer
}

// Authenticator produces OAuth2 tokens for the YouTube API and caches them
// on disk per user.
type Authenticator struct {
	cfg AuthConfig
	log logx.Logger
}

func NewAuthenticator(cfg AuthConfig, log logx.Logger) *Authenticator {
	if strings.TrimSpace(cfg.User) == "" {
		cfg.User = "user"
	}
	if cfg.TokenDir == "" {
		cfg.TokenDir = "."
	}
	if cfg.Prompt == nil {
		cfg.Prompt = os.Stderr
	}
	return &Authenticator{cfg: cfg, log: log.With(logx.String("comp", "auth"))}
}

// TokenPath is the cache file for the configured user.
func (a *Authenticator) TokenPath() string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.', r == '@':
			return r
		default:
			return '_'
		}
	}, a.cfg.User)
	return filepath.Join(a.cfg.TokenDir, "token_"+name+".json")
}

// Clear removes the cached token. A missing token is not an error.
func (a *Authenticator) Clear() error {
	err := os.Remove(a.TokenPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear credential: %w", err)
	}
	a.log.Info("credential cleared", logx.String("user", a.cfg.User))
	return nil
}

func (a *Authenticator) oauthConfig() (*oauth2.Config, error) {
	if a.cfg.ClientSecretsFile == "" {
		return nil, broadcast.Validationf("client secrets file is required")
	}
	b, err := os.ReadFile(a.cfg.ClientSecretsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, broadcast.NotFoundf("client secrets %s not found", a.cfg.ClientSecretsFile)
		}
		return nil, err
	}
	conf, err := google.ConfigFromJSON(b, yt.YoutubeScope)
	if err != nil {
		return nil, broadcast.Parsef("client secrets %s: %v", a.cfg.ClientSecretsFile, err)
	}
	return conf, nil
}

// TokenSource returns a refreshing token source, running the interactive
// loopback consent flow when nothing is cached yet.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	conf, err := a.oauthConfig()
	if err != nil {
		return nil, err
	}
	tok, err := a.load()
	if err != nil {
		a.log.Info("no cached credential, starting authorization", logx.String("user", a.cfg.User))
		tok, err = a.authorize(ctx, conf)
		if err != nil {
			return nil, err
		}
		if err := a.save(tok); err != nil {
			return nil, err
		}
	}
	return &persistingSource{
		base: conf.TokenSource(context.WithoutCancel(ctx), tok),
		last: tok,
		save: a.save,
		log:  a.log,
	}, nil
}

func (a *Authenticator) load() (*oauth2.Token, error) {
	b, err := os.ReadFile(a.TokenPath())
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" && !tok.Valid() {
		return nil, errors.New("cached token unusable")
	}
	return &tok, nil
}

func (a *Authenticator) save(tok *oauth2.Token) error {
	if err := os.MkdirAll(a.cfg.TokenDir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	tmp := a.TokenPath() + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, a.TokenPath())
}

func (a *Authenticator) authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("authorize: listen: %w", err)
	}
	defer ln.Close()

	c := *conf
	c.RedirectURL = "http://" + ln.Addr().String()
	state := uuid.NewString()

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				return
			}
			if e := q.Get("error"); e != "" {
				fmt.Fprintln(w, "Authorization failed. You can close this window.")
				select {
				case done <- result{err: fmt.Errorf("authorize: %s", e)}:
				default:
				}
				return
			}
			fmt.Fprintln(w, "Authorization complete. You can close this window.")
			select {
			case done <- result{code: q.Get("code")}:
			default:
			}
		}),
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	url := c.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(a.cfg.Prompt, "Open this URL in a browser to authorize access:\n\n%s\n\n", url)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := c.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("authorize: exchange: %w", err)
		}
		return tok, nil
	}
}

// persistingSource writes refreshed tokens back to the cache.
type persistingSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	last *oauth2.Token
	save func(*oauth2.Token) error
	log  logx.Logger
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken {
		if err := s.save(tok); err != nil {
			s.log.Warn("token cache write failed", logx.Err(err))
		}
		s.last = tok
	}
	return tok, nil
}
