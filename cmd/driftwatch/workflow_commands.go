package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/workflow"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Work on content reviews",
	}

	var actor string
	startCmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Claim a new review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOperator(cmd.Context(), func(op *workflow.Operator) error {
				review, err := op.StartReview(cmd.Context(), id, actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Review %d is %s\n", review.ID, review.Status)
				return nil
			})
		},
	}
	startCmd.Flags().StringVar(&actor, "actor", "", "Who is taking the review")

	var decision workflow.ReviewDecision
	resolveCmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Confirm or reject a review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOperator(cmd.Context(), func(op *workflow.Operator) error {
				out, err := op.ResolveReview(cmd.Context(), id, decision)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Review %d is %s\n", out.Review.ID, out.Review.Status)
				printMonitorState(w, out.Monitor)
				if out.Alert != nil {
					fmt.Fprintf(w, "Alert %d raised\n", out.Alert.ID)
				}
				return nil
			})
		},
	}
	resolveCmd.Flags().BoolVar(&decision.Substantive, "substantive", false, "The change is substantive and warrants an alert")
	resolveCmd.Flags().StringVar(&decision.Notes, "notes", "", "Reviewer notes")
	resolveCmd.Flags().StringVar(&decision.Actor, "actor", "", "Who resolved the review")

	reviewCmd.AddCommand(startCmd, resolveCmd)
	return reviewCmd
}

func newAlertCommand(ctx *commandContext) *cobra.Command {
	alertCmd := &cobra.Command{
		Use:   "alert",
		Short: "Acknowledge and resolve alerts",
	}

	var ackActor string
	ackCmd := &cobra.Command{
		Use:   "ack <id>",
		Short: "Acknowledge a new alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOperator(cmd.Context(), func(op *workflow.Operator) error {
				alert, err := op.AcknowledgeAlert(cmd.Context(), id, ackActor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Alert %d is %s\n", alert.ID, alert.Status)
				return nil
			})
		},
	}
	ackCmd.Flags().StringVar(&ackActor, "actor", "", "Who acknowledged the alert")

	var resolveActor string
	resolveCmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOperator(cmd.Context(), func(op *workflow.Operator) error {
				alert, m, err := op.ResolveAlert(cmd.Context(), id, resolveActor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Alert %d is %s\n", alert.ID, alert.Status)
				printMonitorState(cmd.OutOrStdout(), m)
				return nil
			})
		},
	}
	resolveCmd.Flags().StringVar(&resolveActor, "actor", "", "Who resolved the alert")

	alertCmd.AddCommand(ackCmd, resolveCmd)
	return alertCmd
}

func newFailureCommand(ctx *commandContext) *cobra.Command {
	failureCmd := &cobra.Command{
		Use:   "failure",
		Short: "Review execution failures",
	}

	var substantive bool
	var actor string
	resolveCmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark a failure as reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withOperator(cmd.Context(), func(op *workflow.Operator) error {
				failure, m, err := op.ResolveFailure(cmd.Context(), id, substantive, actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Failure %d is %s\n", failure.ID, failure.Status)
				printMonitorState(cmd.OutOrStdout(), m)
				return nil
			})
		},
	}
	resolveCmd.Flags().BoolVar(&substantive, "substantive", false, "The failure pointed at a real problem")
	resolveCmd.Flags().StringVar(&actor, "actor", "", "Who reviewed the failure")

	failureCmd.AddCommand(resolveCmd)
	return failureCmd
}

func printMonitorState(w io.Writer, m *models.ContentMonitor) {
	if m == nil {
		return
	}
	fmt.Fprintf(w, "Monitor %d is %s\n", m.ID, m.Status)
}
