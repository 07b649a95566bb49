package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aleister1102/driftwatch/internal/backlog"
	"github.com/aleister1102/driftwatch/internal/models"
)

func newBacklogCommand(ctx *commandContext) *cobra.Command {
	backlogCmd := &cobra.Command{
		Use:   "backlog",
		Short: "Inspect reviews, alerts and failures",
	}

	backlogCmd.AddCommand(newBacklogListCommand(ctx))
	backlogCmd.AddCommand(newBacklogSummaryCommand(ctx))

	return backlogCmd
}

func newBacklogListCommand(ctx *commandContext) *cobra.Command {
	var f backlog.Filter
	var session int64

	cmd := &cobra.Command{
		Use:   "list <reviews|alerts|failures>",
		Short: "List open and recent records of one kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseRecordKind(args[0])
			if err != nil {
				return err
			}
			f.Session = models.SessionID(session)

			return ctx.withBacklog(cmd.Context(), func(engine *backlog.Engine) error {
				items, err := engine.ListOpen(cmd.Context(), kind, f)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No %s in the backlog\n", kind)
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, it := range items {
					rows = append(rows, []string{
						formatID(it.Record.ID),
						formatID(it.Record.MonitorID),
						it.Record.OrgCode,
						it.Record.Attributes[models.AttrEntity],
						it.Record.Reason,
						it.Status,
						fmt.Sprintf("%d", it.Record.SessionID),
						formatTime(&it.Record.CreatedAt),
					})
				}
				headers := []string{"ID", "Monitor", "Org", "Entity", "Reason", "Status", "Session", "Created"}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(headers, rows, []columnAlignment{alignRight, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&f.OrgCode, "org", "", "Only records of this organisation")
	cmd.Flags().Int64Var(&f.MonitorID, "monitor", 0, "Only records of this monitor")
	cmd.Flags().StringSliceVar(&f.Statuses, "status", nil, "Only records with these statuses")
	cmd.Flags().Int64Var(&session, "session", 0, "Only records written by this sweep session")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Maximum number of records")
	return cmd
}

func newBacklogSummaryCommand(ctx *commandContext) *cobra.Command {
	var org string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count open and visible records per kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBacklog(cmd.Context(), func(engine *backlog.Engine) error {
				sum, err := engine.Summarize(cmd.Context(), org)
				if err != nil {
					return err
				}
				rows := [][]string{
					{string(models.KindReview), formatInt(sum.Reviews.Open), formatInt(sum.Reviews.Visible)},
					{string(models.KindAlert), formatInt(sum.Alerts.Open), formatInt(sum.Alerts.Visible)},
					{string(models.KindFailure), formatInt(sum.Failures.Open), formatInt(sum.Failures.Visible)},
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Kind", "Open", "Visible"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Only records of this organisation")
	return cmd
}
