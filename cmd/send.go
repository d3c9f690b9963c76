package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newSendCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [envelope]",
		Short: "Dispatch a JSON command envelope (reads stdin when omitted)",
		Example: `  taskwatch send '{"type":"check_logging_status"}'
  echo '{"type":"send_message","payload":{"url":"https://example.com"},"send_flag":true}' | taskwatch send`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var envelope []byte
			if len(args) == 1 {
				envelope = []byte(args[0])
			} else {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read envelope from stdin: %w", err)
				}
				envelope = raw
			}

			if err := app.validator.Validate(envelope); err != nil {
				return err
			}
			result, err := app.state.Commands.DispatchEnvelope(cmd.Context(), envelope)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	return cmd
}
