package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configPath, logLevel string
	ctx := newCommandContext(&configPath, &logLevel)

	root := &cobra.Command{
		Use:   "wiffecg",
		Short: "Resumable ECG processing pipeline",
		Long: "wiffecg walks a recording through beat detection, key filtering and R-R analysis,\n" +
			"persisting every stage into a zip archive so interrupted runs pick up where they stopped.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Configuration file path")
	flags.StringVar(&logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(
		newRunCommand(ctx),
		newStepCommand(ctx),
		newStatusCommand(ctx),
		newValidateCommand(ctx),
		newImportCSVCommand(ctx),
		newExportPDFCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}
