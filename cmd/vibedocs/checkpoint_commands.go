package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vibedocs/internal/checkpoint"
	"vibedocs/internal/documents"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if err := ctx.client().Health(cmd.Context()); err != nil {
				fmt.Fprintf(out, "Gateway:  %s unreachable (%v)\n", ctx.gatewayURL(), err)
			} else {
				fmt.Fprintf(out, "Gateway:  %s ok\n", ctx.gatewayURL())
			}
			store, err := ctx.checkpointStore()
			if err != nil {
				return err
			}
			cp, err := store.Load(cmd.Context())
			if errors.Is(err, checkpoint.ErrNotFound) {
				fmt.Fprintln(out, "No saved generation.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Run:      %s\n", cp.RunID)
			fmt.Fprintf(out, "Idea:     %s\n", truncate(cp.Idea, 72))
			fmt.Fprintf(out, "Provider: %s/%s\n", cp.Provider, cp.Model)
			fmt.Fprintf(out, "Updated:  %s\n", cp.LastUpdated.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Progress: %d/%d completed, %d failed\n", len(cp.CompletedDocs), documents.Count, len(cp.FailedDocs))
			fmt.Fprintln(out, checkpointTable(cp))
			return nil
		},
	}
}

func newDiscardCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "discard",
		Short: "Delete the saved generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.checkpointStore()
			if err != nil {
				return err
			}
			cp, err := store.Load(cmd.Context())
			if errors.Is(err, checkpoint.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved generation.")
				return nil
			}
			if err != nil {
				return err
			}
			question := fmt.Sprintf("Delete the saved generation with %d completed document(s)? This cannot be undone.", len(cp.CompletedDocs))
			if !yes && !promptConfirm(cmd.InOrStdin(), cmd.OutOrStdout(), question) {
				return fmt.Errorf("discard cancelled; pass --yes to skip the confirmation")
			}
			if err := ctx.driver(store, cmd.ErrOrStderr(), nil).Discard(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Saved generation discarded.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation")
	return cmd
}
