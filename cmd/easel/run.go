package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sammwyy/easel/core"
	"github.com/sammwyy/easel/core/logging"
)

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start a host session",
		Long: `Start a host session: load the built-in and shared-object plugins,
bind them to the canvas and serve signals until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := logging.SetDefault(cfg.Core.LogLevel, cfg.Core.LogFormat); err != nil {
				return fmt.Errorf("failed to set up logging: %w", err)
			}

			session, err := core.NewSession(cfg)
			if err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return session.Run(ctx)
		},
	}
}
