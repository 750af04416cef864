package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"wiffecg/internal/config"
	"wiffecg/internal/preflight"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or scaffold the wiffecg configuration",
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx), newConfigShowCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			switch _, err := os.Stat(target); {
			case err == nil && !overwrite:
				return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
			case err != nil && !errors.Is(err, fs.ErrNotExist):
				return fmt.Errorf("inspect %s: %w", target, err)
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

// initTarget resolves where config init writes, defaulting to the user config path.
func initTarget(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return config.DefaultConfigPath()
	}
	return config.ExpandPath(strings.TrimSpace(raw))
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and run preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolved, exists, err := config.Load(trimmed(ctx.configFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Config path: %s\n", resolved)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			results := preflight.RunAll(cfg, "")
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if err := preflight.Failed(results); err != nil {
				return err
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := cfg.Encode()
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# png stage: %s, pdf stage: %s\n", yesNo(cfg.Outputs.SavePNG), yesNo(cfg.Outputs.SavePDF))
			_, err = out.Write(data)
			return err
		},
	}
}
