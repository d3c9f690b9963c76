package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFlushCmd(app *app) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Deliver queued outbox items now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pending, err := app.state.Outbox.Pending(cmd.Context())
			if err != nil {
				return fmt.Errorf("load outbox: %w", err)
			}
			if len(pending) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Outbox is empty")
				return err
			}

			var attempted int
			if quiet {
				attempted, err = app.state.Outbox.Flush(cmd.Context())
			} else {
				attempted, err = runFlushProgress(cmd.Context(), cmd.ErrOrStderr(), len(pending), app.config.ServerBaseURL, app.state.Outbox.Flush)
			}
			if err != nil {
				return fmt.Errorf("flush outbox: %w", err)
			}

			remaining, err := app.state.Outbox.Pending(cmd.Context())
			if err != nil {
				return fmt.Errorf("load outbox: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Attempted %d item(s), %d remaining\n", attempted, len(remaining))
			return err
		},
	}

	cmd.Flags().BoolVar(&quiet, "quiet", false, "Do not show progress")

	return cmd
}

func newSweepCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired blobs from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			removed, err := app.state.Outbox.SweepExpired(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep store: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired item(s)\n", removed)
			return err
		},
	}
}
