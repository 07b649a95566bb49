package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/dedup"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/session"
	"github.com/aleister1102/driftwatch/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  []string
	// onFetch runs before every fetch, outside the lock.
	onFetch func(ctx context.Context, m *models.ContentMonitor)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeFetcher) Serve(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[url] = body
	delete(f.errs, url)
}

func (f *fakeFetcher) Fail(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[url] = err
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeFetcher) FetchSnapshot(ctx context.Context, m *models.ContentMonitor) ([]byte, error) {
	if f.onFetch != nil {
		f.onFetch(ctx, m)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, m.SourceURL)
	if err, ok := f.errs[m.SourceURL]; ok {
		return nil, err
	}
	body, ok := f.bodies[m.SourceURL]
	if !ok {
		return nil, common.NewFetchError(common.FetchHTTPStatus, m.SourceURL, "status 404", nil)
	}
	return []byte(body), nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []int64
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, alert *models.ContentAlert) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return "", n.err
	}
	n.alerts = append(n.alerts, alert.ID)
	return fmt.Sprintf("delivery-%d", alert.ID), nil
}

func (n *recordingNotifier) Sent() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.alerts...)
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	store    *store.Store
	clock    *testClock
	fetcher  *fakeFetcher
	notifier *recordingNotifier
	router   *Router
	operator *Operator
}

type harnessSettings struct {
	sweep      config.SweepConfig
	sqlitePath string
}

type harnessOption func(*harnessSettings)

func withThreshold(v float64) harnessOption {
	return func(s *harnessSettings) { s.sweep.AlertThreshold = v }
}

func withWorkers(n int) harnessOption {
	return func(s *harnessSettings) { s.sweep.MaxConcurrentChecks = n }
}

// withSQLiteFile backs the harness with a database file instead of memory.
func withSQLiteFile(path string) harnessOption {
	return func(s *harnessSettings) { s.sqlitePath = path }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	ctx := context.Background()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	settings := harnessSettings{sweep: config.NewDefaultSweepConfig(), sqlitePath: ":memory:"}
	settings.sweep.MaxConcurrentChecks = 3
	for _, opt := range opts {
		opt(&settings)
	}
	cfg := settings.sweep

	st, err := store.Open(ctx, config.StorageConfig{Driver: "sqlite", SQLitePath: settings.sqlitePath}, zerolog.Nop(), store.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sessions := session.NewCorrelator(0)
	require.NoError(t, sessions.Seed(ctx, st))

	h := &harness{
		t:        t,
		ctx:      ctx,
		store:    st,
		clock:    clock,
		fetcher:  newFakeFetcher(),
		notifier: &recordingNotifier{},
	}
	deps := Deps{
		Store:    st,
		Fetcher:  h.fetcher,
		Notifier: h.notifier,
		Sessions: sessions,
		Gate:     dedup.NewGate(zerolog.Nop()),
		Now:      clock.Now,
	}
	h.router, err = NewRouter(cfg, deps, zerolog.Nop())
	require.NoError(t, err)
	h.operator, err = NewOperator(cfg, deps, zerolog.Nop())
	require.NoError(t, err)
	return h
}

// addMonitor registers an active monitor. A nil snapshot means no baseline.
func (h *harness) addMonitor(name string, status models.MonitorStatus, snapshot []byte) *models.ContentMonitor {
	h.t.Helper()
	m := &models.ContentMonitor{
		OrgCode:         "ACME",
		ContentType:     "listing",
		Name:            name,
		SourceURL:       "https://acme.example/" + name,
		Snapshot:        snapshot,
		Status:          status,
		Active:          true,
		AlertingEnabled: true,
	}
	require.NoError(h.t, h.store.Monitors().Add(h.ctx, m))
	return m
}

func (h *harness) sweep() models.SweepReport {
	h.t.Helper()
	h.clock.Advance(time.Hour)
	report, err := h.router.RunSweep(h.ctx)
	require.NoError(h.t, err)
	return report
}

func (h *harness) monitor(id int64) *models.ContentMonitor {
	h.t.Helper()
	m, err := h.store.Monitors().GetByID(h.ctx, id)
	require.NoError(h.t, err)
	return m
}

func (h *harness) reviews(monitorID int64) []*models.ContentReview {
	h.t.Helper()
	out, err := h.store.Reviews().List(h.ctx, store.Query{Where: []store.Predicate{store.Eq("monitor_id", monitorID)}})
	require.NoError(h.t, err)
	return out
}

func (h *harness) alerts(monitorID int64) []*models.ContentAlert {
	h.t.Helper()
	out, err := h.store.Alerts().List(h.ctx, store.Query{Where: []store.Predicate{store.Eq("monitor_id", monitorID)}})
	require.NoError(h.t, err)
	return out
}

func (h *harness) failures(monitorID int64) []*models.ContentFailure {
	h.t.Helper()
	out, err := h.store.Failures().List(h.ctx, store.Query{Where: []store.Predicate{store.Eq("monitor_id", monitorID)}})
	require.NoError(h.t, err)
	return out
}

func (h *harness) changes(monitorID int64) []*models.ContentChange {
	h.t.Helper()
	out, err := h.store.Changes().List(h.ctx, store.Query{Where: []store.Predicate{store.Eq("monitor_id", monitorID)}})
	require.NoError(h.t, err)
	return out
}

// Listing snapshots. S1 changes one of five lines, a severity of 0.2.
const (
	listingS0 = "title: flat in town\nprice: 1200\nrooms: 3\nfloor: 2\nbalcony: yes\n"
	listingS1 = "title: flat in town\nprice: 1100\nrooms: 3\nfloor: 2\nbalcony: yes\n"
	listingS2 = "title: flat in town\nprice: 900\nrooms: 3\nfloor: 2\nbalcony: yes\n"
	// whitespace-only edit of S0
	listingS0Spaced = "title:  flat in town\nprice: 1200\nrooms: 3\nfloor: 2\nbalcony: yes\n\n"
)
