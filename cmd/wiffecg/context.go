package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"wiffecg/internal/config"
	"wiffecg/internal/logging"
	"wiffecg/internal/signal"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

// ensureConfig loads the configuration once per process. --log-level wins
// over the file and the environment.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(trimmed(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if level := trimmed(c.logLevelFlag); level != "" {
			cfg.Logging.Level = level
		}
		if c.configErr = cfg.EnsureDirectories(); c.configErr == nil {
			c.config = cfg
		}
	})
	return c.config, c.configErr
}

func trimmed(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// withRecording opens the recording store at path and hands its single
// recording to fn. The store is validated before fn runs.
func (c *commandContext) withRecording(ctx context.Context, path string, fn func(*signal.Store, *signal.Recording) error) error {
	expanded, err := config.ExpandPath(strings.TrimSpace(path))
	if err != nil {
		return err
	}
	store, err := signal.Open(ctx, expanded)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := signal.Validate(ctx, store); err != nil {
		return err
	}
	rec, err := store.Recording(ctx)
	if err != nil {
		return err
	}
	return fn(store, rec)
}

// archiveFor resolves the archive argument, defaulting to the recording's
// base name inside the archive directory.
func archiveFor(cfg *config.Config, recordingPath string, args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return cfg.ResolveArchive(args[0])
	}
	base := filepath.Base(recordingPath)
	return cfg.ResolveArchive(strings.TrimSuffix(base, filepath.Ext(base)) + ".zip")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
