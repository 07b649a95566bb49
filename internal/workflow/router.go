// Package workflow runs monitoring sweeps and routes every detected drift or
// failure into the review, alert and failure workflows.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/dedup"
	"github.com/aleister1102/driftwatch/internal/differ"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/monitor"
	"github.com/aleister1102/driftwatch/internal/session"
	"github.com/aleister1102/driftwatch/internal/store"
	"github.com/rs/zerolog"
)

const (
	pingTimeout   = 5 * time.Second
	notifyTimeout = 30 * time.Second
)

// Deps are the collaborators of a Router. Store, Fetcher and Sessions are
// required.
type Deps struct {
	Store    *store.Store
	Fetcher  Fetcher
	Notifier Notifier
	Sessions *session.Correlator
	// Gate is shared with the Operator so admissions from both are serialised.
	Gate    *dedup.Gate
	Metrics Metrics
	Now     func() time.Time
}

// Router executes sweeps over every active monitor.
type Router struct {
	store        *store.Store
	fetcher      Fetcher
	notifier     Notifier
	sessions     *session.Correlator
	gate         *dedup.Gate
	monitorLocks *dedup.KeyedMutex
	differ       *differ.ContentDiffer
	metrics      Metrics
	now          func() time.Time

	policy  monitor.Policy
	workers int
	actor   string
	logger  zerolog.Logger
}

// NewRouter creates a new Router
func NewRouter(cfg config.SweepConfig, deps Deps, logger zerolog.Logger) (*Router, error) {
	if deps.Store == nil || deps.Fetcher == nil || deps.Sessions == nil {
		return nil, common.NewError("workflow router requires a store, a fetcher and a session correlator")
	}

	logger = logger.With().Str("component", "WorkflowRouter").Logger()

	r := &Router{
		store:        deps.Store,
		fetcher:      deps.Fetcher,
		notifier:     deps.Notifier,
		sessions:     deps.Sessions,
		gate:         deps.Gate,
		monitorLocks: dedup.NewKeyedMutex(logger),
		metrics:      deps.Metrics,
		now:          deps.Now,
		policy:       monitor.Policy{AlertThreshold: cfg.AlertThreshold},
		workers:      cfg.MaxConcurrentChecks,
		actor:        cfg.Actor,
		logger:       logger,
	}

	diffCfg := differ.DefaultDiffConfig()
	diffCfg.IgnoreWhitespace = cfg.IgnoreWhitespace
	r.differ = differ.NewContentDiffer(diffCfg)

	if r.notifier == nil {
		r.notifier = nopNotifier{}
	}
	if r.gate == nil {
		r.gate = dedup.NewGate(logger)
	}
	if r.metrics == nil {
		r.metrics = nopMetrics{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.workers <= 0 {
		r.workers = config.DefaultSweepMaxConcurrentChecks
	}
	if r.actor == "" {
		r.actor = config.DefaultSweepActor
	}
	return r, nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, *models.ContentAlert) (string, error) { return "", nil }

// sweep is the shared state of one RunSweep call.
type sweep struct {
	session models.SessionID
	logger  zerolog.Logger
	abort   context.CancelFunc
	aborted atomic.Bool

	mu     sync.Mutex
	report models.SweepReport
}

func (s *sweep) add(o models.MonitorOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Add(o)
}

// RunSweep executes every active monitor once under a new session id.
// Monitors never executed go first, then the least recently executed.
// A failing monitor never stops the sweep; an unreachable store does, and the
// report is then marked Aborted. Work committed before that stands.
func (r *Router) RunSweep(ctx context.Context) (report models.SweepReport, err error) {
	sessionID := r.sessions.Next()
	s := &sweep{
		session: sessionID,
		logger:  r.logger.With().Int64("session_id", int64(sessionID)).Logger(),
	}
	s.report.Session = sessionID
	s.report.StartedAt = r.now().UTC()

	defer func() {
		s.report.FinishedAt = r.now().UTC()
		report.FinishedAt = s.report.FinishedAt
		r.metrics.ObserveSweep(s.report)
	}()

	monitors, err := r.store.Monitors().List(ctx, store.Query{
		Where:   []store.Predicate{store.Eq("active", 1)},
		OrderBy: []string{"last_executed_at ASC NULLS FIRST", "id ASC"},
		SkipRow: func(rowErr *store.RowError) {
			s.logger.Error().Err(rowErr.Err).Int64("monitor_id", rowErr.ID).Str("column", rowErr.Column).
				Msg("Skipping monitor with an undecodable row")
		},
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list active monitors")
		if pingErr := r.ping(ctx); pingErr != nil {
			s.report.Aborted = true
			return s.report, fmt.Errorf("%w: %v", common.ErrOrchestrationFatal, err)
		}
		return s.report, common.WrapError(err, "list active monitors")
	}

	s.logger.Info().Int("monitors", len(monitors)).Int("workers", r.workers).Msg("Sweep started")

	sweepCtx, abort := context.WithCancel(ctx)
	defer abort()
	s.abort = abort

	jobs := make(chan *models.ContentMonitor, r.workers)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go r.worker(sweepCtx, i, jobs, s, &wg)
	}

dispatch:
	for _, m := range monitors {
		select {
		case jobs <- m:
		case <-sweepCtx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	s.report.Aborted = s.aborted.Load()
	logEvent := s.logger.Info()
	if s.report.Aborted {
		logEvent = s.logger.Error()
	}
	logEvent.
		Int("processed", s.report.MonitorsProcessed).
		Int("changes", s.report.ChangesFound).
		Int("reviews", s.report.ReviewsOpened).
		Int("alerts", s.report.AlertsRaised).
		Int("failures", s.report.FailuresRecorded).
		Int("suppressed", s.report.Suppressed).
		Int("persistence_errors", s.report.PersistenceErrors).
		Bool("aborted", s.report.Aborted).
		Msg("Sweep finished")

	switch {
	case s.report.Aborted:
		return s.report, fmt.Errorf("%w: store unreachable during session %d", common.ErrOrchestrationFatal, sessionID)
	case ctx.Err() != nil:
		return s.report, ctx.Err()
	}
	return s.report, nil
}

// worker processes monitors from jobs until the channel closes. Jobs received
// after cancellation are left for the next sweep.
func (r *Router) worker(ctx context.Context, id int, jobs <-chan *models.ContentMonitor, s *sweep, wg *sync.WaitGroup) {
	defer wg.Done()

	for m := range jobs {
		if ctx.Err() != nil {
			continue
		}
		started := time.Now()
		outcome, processed := r.processMonitor(ctx, m, s)
		if !processed {
			continue
		}
		s.add(outcome)
		r.metrics.ObserveMonitor(outcome, time.Since(started))
		s.logger.Debug().Int("worker_id", id).Int64("monitor_id", m.ID).Str("status", string(outcome.Status)).Msg("Monitor processed")
	}
}

// processMonitor fetches, decides and persists one monitor. It returns false
// when the monitor was not processed and stays due for the next sweep.
func (r *Router) processMonitor(ctx context.Context, m *models.ContentMonitor, s *sweep) (models.MonitorOutcome, bool) {
	unlock := r.monitorLocks.Lock(monitorLockKey(m.ID))
	defer unlock()

	log := s.logger.With().Int64("monitor_id", m.ID).Str("org_code", m.OrgCode).Logger()

	ex := execution{monitorID: m.ID, orgCode: m.OrgCode}
	snapshot, err := r.fetcher.FetchSnapshot(ctx, m)
	if err != nil {
		if ctx.Err() != nil {
			log.Debug().Err(err).Msg("Fetch interrupted by cancellation")
			return models.MonitorOutcome{}, false
		}
		ex.fetchErr = common.AsFetchError(err, m.SourceURL)
		log.Warn().Err(err).Str("kind", ex.fetchErr.Kind).Msg("Fetch failed")
	} else {
		ex.snapshot = snapshot
	}

	// The unit finishes even if the sweep is cancelled meanwhile.
	persistCtx := context.WithoutCancel(ctx)
	result, err := r.persist(persistCtx, s.session, ex)
	switch {
	case err == nil:
	case isAlreadyRecorded(err):
		log.Debug().Err(err).Msg("Monitor already recorded by a concurrent writer")
		return models.MonitorOutcome{MonitorID: m.ID, Status: m.Status}, true
	default:
		log.Error().Err(err).Msg("Failed to persist monitor result")
		if pingErr := r.ping(persistCtx); pingErr != nil {
			log.Error().Err(pingErr).Msg("Store unreachable, aborting sweep")
			s.aborted.Store(true)
			s.abort()
		}
		return models.MonitorOutcome{MonitorID: m.ID, Status: m.Status, PersistenceError: true}, true
	}

	if result.skipped {
		log.Debug().Msg("Monitor deactivated before persisting, skipped")
		return models.MonitorOutcome{}, false
	}

	if len(result.alerts) > 0 && result.monitor.AlertingEnabled {
		deliverAlerts(persistCtx, r.store, r.notifier, result.alerts, log)
	}
	return result.outcome, true
}

func (r *Router) ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pingTimeout)
	defer cancel()
	return r.store.Ping(pingCtx)
}

func monitorLockKey(id int64) string {
	return fmt.Sprintf("monitor:%d", id)
}

// CleanupLocks drops per-monitor locks of monitors that are no longer active.
func (r *Router) CleanupLocks(ctx context.Context) (int, error) {
	active, err := r.store.Monitors().List(ctx, store.Query{Where: []store.Predicate{store.Eq("active", 1)}})
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(active))
	for _, m := range active {
		keys = append(keys, monitorLockKey(m.ID))
	}
	return r.monitorLocks.Cleanup(keys), nil
}

// deliverAlerts notifies operators of committed alerts and records the
// delivery ids. Failures are logged only.
func deliverAlerts(ctx context.Context, st *store.Store, n Notifier, alerts []*models.ContentAlert, log zerolog.Logger) {
	for _, alert := range alerts {
		notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
		deliveryID, err := n.Notify(notifyCtx, alert)
		cancel()
		if err != nil {
			log.Warn().Err(err).Int64("alert_id", alert.ID).Msg("Alert notification failed")
			continue
		}
		if deliveryID == "" {
			continue
		}
		if err := st.SetAlertDelivery(ctx, alert.ID, deliveryID); err != nil {
			log.Warn().Err(err).Int64("alert_id", alert.ID).Msg("Failed to record alert delivery id")
			continue
		}
		alert.DeliveryID = deliveryID
	}
}
