package main

import (
	"github.com/spf13/cobra"

	"comicdl/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var foreground bool
	var development bool
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the comicdl daemon (internal)",
		Hidden:       true,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				Foreground:  foreground,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Also log to the console")
	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in log output")
	return cmd
}
