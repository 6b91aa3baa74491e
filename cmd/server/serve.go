package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lobby-crowd/server/internal/app"
	"lobby-crowd/server/internal/config"
	"lobby-crowd/server/internal/telemetry"
)

func ServeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "run the simulation and observer server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := telemetry.WrapLogger(log.Default())
			cfg, err := loadConfig(cmd, logger)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, cfg, logger)
		},
	}
	return c
}

func loadConfig(cmd *cobra.Command, logger telemetry.Logger) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path, logger)
}
