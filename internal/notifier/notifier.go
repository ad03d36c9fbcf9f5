package notifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"ytc/internal/eventbus"
	"ytc/internal/provision"
	rtsup "ytc/internal/runtime/supervisor"
	"ytc/internal/transport"
	"ytc/pkg/logx"
)

type Config struct {
	Enabled    bool
	Target     transport.ChatTarget
	RatePerSec float64
	QueueSize  int
	RetryMax   int
	RetryBase  time.Duration
	// NotifyFailures also announces occurrences that could not be created.
	NotifyFailures bool
	Location       *time.Location
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

type Service struct {
	cfg     Config
	sender  transport.Sender
	bus     eventbus.Bus
	log     logx.Logger
	limiter *rate.Limiter

	mu    sync.Mutex
	sup   *rtsup.Supervisor
	unsub func()

	sent   atomic.Uint64
	failed atomic.Uint64
}

func New(cfg Config, sender transport.Sender, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	burst := max(1, int(cfg.RatePerSec))
	return &Service{
		cfg:     cfg,
		sender:  sender,
		bus:     bus,
		log:     log.With(logx.String("comp", "notifier")),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst),
	}
}

// Start subscribes to the bus and starts the delivery worker. It is a no-op
// when disabled or already started.
func (s *Service) Start(ctx context.Context) {
	if !s.cfg.Enabled || s.sender == nil || s.bus == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return
	}

	types := []string{provision.EventProvisioned}
	if s.cfg.NotifyFailures {
		types = append(types, provision.EventFailed)
	}
	ch, unsub := s.bus.Subscribe(s.cfg.QueueSize, types...)
	s.unsub = unsub
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	s.sup.Go("notifier.worker", func(c context.Context) error {
		for e := range ch {
			s.deliver(c, e)
		}
		return nil
	})
	s.log.Debug("notifier started", logx.Int64("chat_id", s.cfg.Target.ChatID))
}

// Stop stops intake and waits for queued events to be delivered. Events
// still pending when ctx expires are dropped.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup, unsub := s.sup, s.unsub
	s.sup, s.unsub = nil, nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}

	unsub()
	err := sup.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("notifier drain interrupted", logx.Err(err))
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sup.Stop(sctx)
	}
	s.log.Debug("notifier stopped", logx.Uint64("sent", s.sent.Load()), logx.Uint64("failed", s.failed.Load()))
	return err
}

// Sent reports how many messages were delivered.
func (s *Service) Sent() uint64 { return s.sent.Load() }

func (s *Service) deliver(ctx context.Context, e eventbus.Event) {
	text, ok := Format(e, s.cfg.Location)
	if !ok {
		return
	}
	opt := &transport.SendOptions{ParseMode: "HTML", DisablePreview: true}

	backoff := s.cfg.RetryBase
	var err error
	for attempt := 0; attempt <= s.cfg.RetryMax; attempt++ {
		if err = s.limiter.Wait(ctx); err != nil {
			break
		}
		if _, err = s.sender.SendText(ctx, s.cfg.Target, text, opt); err == nil {
			s.sent.Add(1)
			return
		}
		if attempt == s.cfg.RetryMax {
			break
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			err = ctx.Err()
			attempt = s.cfg.RetryMax
		case <-t.C:
		}
		backoff *= 2
	}
	s.failed.Add(1)
	s.log.Warn("notification failed", logx.String("event", e.Type), logx.Err(err))
}
