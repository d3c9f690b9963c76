package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/taskwatch/internal/application"
	"github.com/bnema/taskwatch/internal/domain"
)

func newTaskCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "task",
		Short: "Poll the server for the active task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			popup, err := app.state.GetPopupData(cmd.Context(), application.Empty{})
			if err != nil {
				return fmt.Errorf("poll active task: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(popup)
			}

			out := cmd.OutOrStdout()
			switch {
			case !popup.LogStatus:
				_, err = fmt.Fprintln(out, "Not logged in")
			case popup.TaskID == domain.TaskIndeterminate:
				_, err = fmt.Fprintln(out, "Active task unknown: server unreachable")
			case popup.TaskID.Active():
				_, err = fmt.Fprintf(out, "Active task #%d\n", popup.TaskID)
				if err == nil && len(popup.TaskInfo) > 0 {
					_, err = fmt.Fprintf(out, "%s\n", popup.TaskInfo)
				}
			default:
				_, err = fmt.Fprintln(out, "No active task")
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render popup data as JSON")

	return cmd
}
