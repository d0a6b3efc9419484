package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-feed/internal/app"
	"github.com/vovakirdan/wirechat-feed/internal/config"
	"github.com/vovakirdan/wirechat-feed/internal/log"
)

type serveOptions struct {
	configPath string
	overrides  config.Config
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat feed server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "path to config.yaml")
	flags.StringVar(&opts.overrides.Addr, "addr", "", "HTTP listen address")
	flags.StringVar(&opts.overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.overrides.Storage.Driver, "storage", "", "message store driver (sqlite, memory)")
	flags.StringVar(&opts.overrides.Storage.DatabasePath, "db", "", "sqlite database path")
	flags.DurationVar(&opts.overrides.Feed.HealthInterval, "health-interval", 0, "store health check interval")
	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	bootLogger := log.New("info", os.Stderr)

	cfg, path, err := config.Load(bootLogger, opts.configPath)
	if err != nil {
		return err
	}
	cfg.UpdateFrom(opts.overrides)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.New(cfg.LogLevel, os.Stdout)
	logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting wirechat feed")

	application, err := app.New(&cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
