package cmd

import (
	"github.com/spf13/cobra"
)

// skipWiring marks commands that run without config or store.
const skipWiring = "taskwatch/skip-wiring"

type rootOptions struct {
	configPath string
	logLevel   string
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	app := &app{}

	rootCmd := &cobra.Command{
		Use:           "taskwatch",
		Short:         "taskwatch: background agent for annotation task tracking",
		Long:          "taskwatch keeps an annotator's session alive, polls the active task, queues captured messages for delivery and exposes the command surface the browser shell talks to.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipWiring] != "" {
				return nil
			}
			wired, err := wireApp(cmd.Context(), *opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			*app = *wired
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return app.close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.taskwatch/config.toml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
		newStatusCmd(app),
		newTaskCmd(app),
		newFlushCmd(app),
		newSweepCmd(app),
		newSendCmd(app),
	)

	return rootCmd
}
