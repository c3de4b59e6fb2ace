// Package cmd implements the coachai command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/coachai/coachai/internal/app"
	"github.com/coachai/coachai/internal/config"
	"github.com/coachai/coachai/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "coachai",
	Short: "CoachAI - lesson retrieval for a tutoring assistant",
	Long: `CoachAI stores short educational lessons and retrieves the ones most
relevant to a learner's question. Retrieval tries a direct pgvector
search, then a remote ranked-match procedure, then an in-memory
fallback, so answers keep coming even when backends are down.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// initLogger builds the process logger. DEBUG in the environment
// switches to debug level. Stdout stays reserved for command output.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}

// setupApp loads configuration and initializes the application.
// The returned cleanup must be called before exit.
func setupApp(ctx context.Context) (*app.App, func(), error) {
	logger := initLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing application: %w", err)
	}

	cleanup := func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown failed", "error", err)
		}
	}
	return a, cleanup, nil
}
