// Command monitor360 is a multi-tenant network monitor for Mikrotik
// (RouterOS) fleets. The daemon polls each configured sensor over the
// RouterOS API, reaching remote devices through per-profile WireGuard
// tunnels, and streams results to WebSocket dashboards.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

// Global flags shared across subcommands.
var (
	globalConfigPath string
	globalVerbose    bool
	globalLogger     *slog.Logger
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "monitor360",
	Short: "Network monitor for Mikrotik fleets",
	Long: `monitor360 watches a fleet of Mikrotik (RouterOS) devices. Each sensor
polls its device over the RouterOS API on a fixed interval, recording
ping latency or ethernet link state, raising throttled notifications
when thresholds are crossed, and streaming live samples to connected
dashboards. Devices behind WireGuard are reached through tunnels the
daemon brings up on demand.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if globalVerbose {
			level = slog.LevelDebug
		}
		globalLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalConfigPath, "config", "", "path to config file (default: /etc/monitor360/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(genkeyCmd)
	rootCmd.AddCommand(qrCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints the build version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the monitor360 version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
