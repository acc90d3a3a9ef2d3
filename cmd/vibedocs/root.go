package main

import (
	"github.com/spf13/cobra"
)

const (
	defaultGateway    = "http://localhost:8081"
	defaultCheckpoint = "~/.vibedocs/checkpoint.json"
	defaultSettings   = "~/.vibedocs/settings.toml"
)

func newRootCommand() *cobra.Command {
	var flags globalFlags
	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "vibedocs",
		Short:         "Generate the VibeDocs planning documents for an app idea",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.gateway, "gateway", "", "Gateway base URL (env VIBEDOCS_GATEWAY)")
	pf.StringVar(&flags.checkpoint, "checkpoint", "", "Checkpoint location: file path, sqlite:<path>, postgres://... or memory: (env VIBEDOCS_CHECKPOINT)")
	pf.StringVar(&flags.settings, "settings", "", "Settings file (env VIBEDOCS_SETTINGS)")
	pf.BoolVar(&flags.websocket, "ws", false, "Stream over the websocket endpoint instead of SSE")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log gateway traffic to stderr")

	rootCmd.AddCommand(newGenerateCommand(ctx))
	rootCmd.AddCommand(newResumeCommand(ctx))
	rootCmd.AddCommand(newRetryCommand(ctx))
	rootCmd.AddCommand(newDiscardCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newValidateCommand(ctx))
	rootCmd.AddCommand(newSettingsCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))

	return rootCmd
}
