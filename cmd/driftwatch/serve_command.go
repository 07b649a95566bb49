package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/metrics"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/scheduler"
	"github.com/aleister1102/driftwatch/internal/workflow"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run sweeps periodically until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := ctx.logger()

			lock, err := scheduler.AcquireLock(ctx.config.SchedulerConfig.LockFile)
			if err != nil {
				return err
			}
			defer lock.Release()

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			sweepMetrics, err := metrics.NewSweepMetrics(registry)
			if err != nil {
				return err
			}

			deps, err := ctx.newDeps(runCtx, sweepMetrics)
			if err != nil {
				return err
			}
			router, err := workflow.NewRouter(ctx.config.SweepConfig, deps, log)
			if err != nil {
				return err
			}

			if ctx.config.MetricsConfig.Enabled {
				srv := newMetricsServer(ctx.config.MetricsConfig, registry)
				go serveMetrics(srv, log)
				defer shutdownMetrics(srv, log)
			}

			sched := scheduler.NewScheduler(ctx.config.SchedulerConfig, &lockPruningSweeper{router: router, logger: log}, deps.Store, log)
			return sched.Start(runCtx)
		},
	}
}

// lockPruningSweeper drops per-monitor locks of deactivated monitors after
// every sweep so a long-running process does not accumulate them.
type lockPruningSweeper struct {
	router *workflow.Router
	logger zerolog.Logger
}

func (s *lockPruningSweeper) RunSweep(ctx context.Context) (models.SweepReport, error) {
	report, err := s.router.RunSweep(ctx)
	if ctx.Err() == nil {
		if removed, cleanupErr := s.router.CleanupLocks(ctx); cleanupErr != nil {
			s.logger.Warn().Err(cleanupErr).Msg("Failed to clean up monitor locks")
		} else if removed > 0 {
			s.logger.Debug().Int("removed", removed).Msg("Cleaned up monitor locks")
		}
	}
	return report, err
}

func newMetricsServer(cfg config.MetricsConfig, registry *prometheus.Registry) *http.Server {
	path := cfg.Path
	if path == "" {
		path = config.DefaultMetricsPath
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		Registry:      registry,
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
	return &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func serveMetrics(srv *http.Server, log zerolog.Logger) {
	log.Info().Str("address", srv.Addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Metrics server stopped")
	}
}

func shutdownMetrics(srv *http.Server, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Metrics server shutdown failed")
	}
}
