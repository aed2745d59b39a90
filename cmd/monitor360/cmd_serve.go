package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vatojuan/MonitorNetwork/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring daemon",
	Long: `Start the monitor360 daemon: open the database, resume a worker for
every stored sensor, and serve the REST API and WebSocket endpoint.

Sensors whose devices sit behind WireGuard need root (or CAP_NET_ADMIN)
so wg-quick can create interfaces:
  sudo monitor360 serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := daemon.New(cfg, globalLogger)

	globalLogger.Info("starting monitor360", "config", resolvedConfigPath(), "listen", cfg.Server.ListenAddr)

	if err := d.Run(ctx); err != nil {
		if ctx.Err() != nil {
			// Signal received, clean shutdown.
			globalLogger.Info("monitor360 stopped")
			return nil
		}
		return fmt.Errorf("daemon error: %w", err)
	}

	return nil
}
