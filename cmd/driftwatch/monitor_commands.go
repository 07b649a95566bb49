package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/store"
)

func newMonitorCommand(ctx *commandContext) *cobra.Command {
	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Manage content monitors",
	}

	monitorCmd.AddCommand(newMonitorAddCommand(ctx))
	monitorCmd.AddCommand(newMonitorListCommand(ctx))
	monitorCmd.AddCommand(newMonitorActiveCommand(ctx, "enable", true))
	monitorCmd.AddCommand(newMonitorActiveCommand(ctx, "disable", false))

	return monitorCmd
}

func newMonitorAddCommand(ctx *commandContext) *cobra.Command {
	var m models.ContentMonitor
	var noAlerting bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a content source to monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			m.Status = models.MonitorStatusNew
			m.Active = true
			m.AlertingEnabled = !noAlerting
			if err := st.Monitors().Add(cmd.Context(), &m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Monitor %d added (%s/%s %s)\n", m.ID, m.OrgCode, m.ContentType, m.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&m.OrgCode, "org", "", "Organisation code")
	cmd.Flags().StringVar(&m.ContentType, "type", "", "Content type, e.g. listing")
	cmd.Flags().StringVar(&m.Name, "name", "", "Monitor name, unique per organisation and type")
	cmd.Flags().StringVar(&m.SourceURL, "url", "", "URL of the content source")
	cmd.Flags().StringVar(&m.Selector, "selector", "", "CSS selector narrowing the snapshot")
	cmd.Flags().StringVar(&m.EntityID, "entity", "", "Entity identifier (defaults to the name)")
	cmd.Flags().BoolVar(&noAlerting, "no-alerting", false, "Never deliver alerts for this monitor")
	for _, name := range []string{"org", "type", "name", "url"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newMonitorListCommand(ctx *commandContext) *cobra.Command {
	var org string
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List monitors",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			q := store.Query{OrderBy: []string{"id ASC"}}
			if org != "" {
				q.Where = append(q.Where, store.Eq("org_code", org))
			}
			if !all {
				q.Where = append(q.Where, store.Eq("active", 1))
			}
			monitors, err := st.Monitors().List(cmd.Context(), q)
			if err != nil {
				return err
			}
			if len(monitors) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No monitors")
				return nil
			}

			rows := make([][]string, 0, len(monitors))
			for _, m := range monitors {
				change := "-"
				if m.ChangeID != nil {
					change = formatID(*m.ChangeID)
				}
				rows = append(rows, []string{
					formatID(m.ID),
					m.OrgCode,
					m.ContentType,
					m.Name,
					string(m.Status),
					yesNo(m.Active),
					change,
					formatTime(m.LastExecutedAt),
				})
			}
			headers := []string{"ID", "Org", "Type", "Name", "Status", "Active", "Change", "Last run"}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(headers, rows, []columnAlignment{alignRight}))
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Only monitors of this organisation")
	cmd.Flags().BoolVar(&all, "all", false, "Include inactive monitors")
	return cmd
}

func newMonitorActiveCommand(ctx *commandContext, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a monitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			m, err := st.Monitors().GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			m.Active = active
			if err := st.Monitors().Update(cmd.Context(), m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Monitor %d %sd\n", m.ID, use)
			return nil
		},
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
