package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/scheduler"
	"github.com/aleister1102/driftwatch/internal/workflow"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one sweep over every active monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			lock, err := scheduler.AcquireLock(ctx.config.SchedulerConfig.LockFile)
			if err != nil {
				return err
			}
			defer lock.Release()

			deps, err := ctx.newDeps(runCtx, nil)
			if err != nil {
				return err
			}
			router, err := workflow.NewRouter(ctx.config.SweepConfig, deps, ctx.logger())
			if err != nil {
				return err
			}

			report, err := router.RunSweep(runCtx)
			printSweepReport(cmd.OutOrStdout(), report)
			return err
		},
	}
}

func printSweepReport(w io.Writer, r models.SweepReport) {
	rows := [][]string{
		{"Session", fmt.Sprintf("%d", r.Session)},
		{"Monitors processed", formatInt(r.MonitorsProcessed)},
		{"Changes found", formatInt(r.ChangesFound)},
		{"Reviews opened", formatInt(r.ReviewsOpened)},
		{"Alerts raised", formatInt(r.AlertsRaised)},
		{"Failures recorded", formatInt(r.FailuresRecorded)},
		{"Suppressed", formatInt(r.Suppressed)},
		{"Persistence errors", formatInt(r.PersistenceErrors)},
		{"Aborted", yesNo(r.Aborted)},
		{"Duration", r.Duration().String()},
	}
	fmt.Fprint(w, renderTable([]string{"Sweep", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
}
