package autopilot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ytc/internal/broadcast"
	"ytc/internal/config"
	"ytc/internal/eventbus"
	"ytc/internal/export"
	"ytc/internal/provision"
	"ytc/internal/storage"
	"ytc/internal/youtube"
	"ytc/internal/youtube/youtubetest"
	"ytc/pkg/logx"
)

func TestParseTriggerVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		raw    string
		kind   TriggerKind
		source string
		every  time.Duration
	}{
		{name: "cron", raw: "0 6 * * 1", kind: TriggerCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: TriggerCron, source: "cron"},
		{name: "descriptor", raw: "@daily", kind: TriggerCron, source: "cron"},
		{name: "duration", raw: "12h", kind: TriggerInterval, source: "duration", every: 12 * time.Hour},
		{name: "prefixed interval", raw: "every:45m", kind: TriggerInterval, source: "duration", every: 45 * time.Minute},
		{name: "hhmm", raw: "24:00", kind: TriggerInterval, source: "hhmm", every: 24 * time.Hour},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTrigger(tt.raw)
			if err != nil {
				t.Fatalf("ParseTrigger(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind || got.Source != tt.source {
				t.Fatalf("ParseTrigger(%q) = %+v", tt.raw, got)
			}
			if tt.kind == TriggerInterval && got.Every != tt.every {
				t.Fatalf("Every = %v, want %v", got.Every, tt.every)
			}
			if _, err := got.Schedule(); err != nil {
				t.Fatalf("Schedule() error: %v", err)
			}
		})
	}
}

func TestParseTriggerInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "soon", "0:00", "01:75", "cron:", "99 * * * *"} {
		if _, err := ParseTrigger(raw); !errors.Is(err, broadcast.ErrValidation) {
			t.Fatalf("ParseTrigger(%q) err = %v, want validation", raw, err)
		}
	}
}

const templatesJSON = `{
  "account": "church",
  "broadcasts": [
    {"id": "sun", "name": "Sunday Service", "dayOfWeek": 0, "broadcastStart": "10:00 AM",
     "broadcastDurationInMinutes": 90, "stream": "Main", "autoStart": true, "autoStop": true,
     "privacy": "public", "chatEnabled": true, "thumbnail": "sun.png", "active": true}
  ]
}`

// saturday is 2024-03-02 09:00 UTC.
var saturday = time.Date(2024, time.March, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	runner *Runner
	fake   *youtubetest.Fake
	store  storage.Store
	outDir string
}

func newHarness(t *testing.T, horizon int) harness {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broadcasts.json"), []byte(templatesJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sun.png"), []byte("png"), 0o644))

	store, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(dir, "ledger")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fake := youtubetest.New()
	fake.Streams = []broadcast.Stream{{ID: "s1", Title: "Main"}}
	orch := provision.New(provision.Deps{
		Session: youtube.StaticSession(fake),
		Ledger:  store,
		Bus:     eventbus.New(),
		Log:     logx.Nop(),
		Loc:     time.UTC,
		Now:     func() time.Time { return saturday },
	})

	out := filepath.Join(dir, "out")
	r, err := New(Config{
		Trigger:  Trigger{Kind: TriggerInterval, Every: time.Hour},
		Horizon:  horizon,
		Location: time.UTC,
		Export:   ExportPlan{Dir: out, Buckets: []export.Bucket{export.BucketMonth}},
	}, Deps{
		Templates:   config.NewTemplateSource(filepath.Join(dir, "broadcasts.json")),
		Provisioner: orch,
		Ledger:      store,
		Log:         logx.Nop(),
	})
	require.NoError(t, err)
	return harness{runner: r, fake: fake, store: store, outDir: out}
}

func TestRunOnceFillsHorizonThenSkips(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 2)
	ctx := context.Background()

	first := h.runner.RunOnce(ctx)
	require.NoError(t, first.Err)
	require.Len(t, first.Created, 2)
	assert.Equal(t, "Sunday Service - 3/3/2024", first.Created[0].Title)
	assert.Equal(t, "Sunday Service - 3/10/2024", first.Created[1].Title)
	assert.Equal(t, []string{filepath.Join(h.outDir, "202403_broadcasts_info.csv")}, first.Files)
	assert.NotEmpty(t, first.RunID)

	second := h.runner.RunOnce(ctx)
	require.NoError(t, second.Err)
	assert.Empty(t, second.Created)
	assert.Equal(t, 2, second.Skipped)
	assert.Empty(t, second.Files)
	assert.NotEqual(t, first.RunID, second.RunID)

	recorded, err := h.store.Occurrences(ctx, "sun")
	require.NoError(t, err)
	assert.Len(t, recorded, 2)
	assert.Len(t, h.fake.Drafts, 2)
}

func TestRunOnceReportsRemoteFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)
	h.fake.FailOn = map[string]func(string) error{
		"create": func(string) error { return errors.New("quota exceeded") },
	}
	res := h.runner.RunOnce(context.Background())
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, broadcast.ErrRemote)
	assert.Empty(t, res.Created)
	assert.Empty(t, res.Files)
}

// MockLedger for tests
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) HasOccurrence(ctx context.Context, templateID string, start time.Time) (bool, error) {
	args := m.Called(ctx, templateID, start)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) AppendAudit(ctx context.Context, e storage.AuditEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// MockProvisioner for tests
type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) CreateAll(ctx context.Context, req provision.Request) ([]broadcast.Occurrence, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]broadcast.Occurrence), args.Error(1)
}

func TestRunOnceSkipsWhenLedgerFails(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "broadcasts.json")
	require.NoError(t, os.WriteFile(path, []byte(templatesJSON), 0o644))

	ledger := new(MockLedger)
	ledger.On("HasOccurrence", mock.Anything, "sun", mock.Anything).Return(false, errors.New("redis down"))
	ledger.On("AppendAudit", mock.Anything, mock.MatchedBy(func(e storage.AuditEntry) bool {
		return e.Command == "autopilot" && e.OK == 0 && e.Fail == 0
	})).Return(nil).Once()

	prov := new(MockProvisioner)
	prov.On("CreateAll", mock.Anything, mock.MatchedBy(func(req provision.Request) bool {
		// A failed lookup must count as already provisioned.
		return req.Count == 3 && req.Skip("sun", saturday)
	})).Return([]broadcast.Occurrence{}, nil).Once()

	r, err := New(Config{Horizon: 3}, Deps{
		Templates:   config.NewTemplateSource(path),
		Provisioner: prov,
		Ledger:      ledger,
		Log:         logx.Nop(),
	})
	require.NoError(t, err)

	res := r.RunOnce(context.Background())
	require.NoError(t, res.Err)
	prov.AssertExpectations(t)
	ledger.AssertExpectations(t)
}

func TestNewRequiresLedger(t *testing.T) {
	t.Parallel()
	_, err := New(Config{}, Deps{
		Templates:   config.NewTemplateSource("broadcasts.json"),
		Provisioner: new(MockProvisioner),
	})
	assert.ErrorIs(t, err, broadcast.ErrValidation)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.runner.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
