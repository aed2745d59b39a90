package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/vatojuan/MonitorNetwork/internal/auth"
	"github.com/vatojuan/MonitorNetwork/internal/config"
)

var setupForce bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the monitor360 configuration",
	Long: `Interactive setup: choose the listen address and database location,
generate the auth secret behind tenant API tokens, and write the config
file.

If monitor360 is already configured, setup refuses to overwrite the
config. Use --force to redo setup (the auth secret is regenerated,
which invalidates every issued token).`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVar(&setupForce, "force", false, "redo setup even if already configured")
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfgPath := resolvedConfigPath()

	if _, err := os.Stat(cfgPath); err == nil && !setupForce {
		fmt.Fprintf(os.Stderr, "monitor360 is already configured: %s\n", cfgPath)
		fmt.Fprintf(os.Stderr, "Use --force to redo setup (this regenerates the auth secret\n")
		fmt.Fprintf(os.Stderr, "and invalidates every issued token).\n")
		return nil
	}

	cfg := config.DefaultConfig()

	listenAddr := cfg.Server.ListenAddr
	dbPath := cfg.Database.Path
	telegramBase := cfg.Telegram.APIBase

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Description("Address the REST API and WebSocket endpoint bind to").
				Value(&listenAddr).
				Validate(validateListenAddr),
			huh.NewInput().
				Title("Database path").
				Description("SQLite database file (parent directories are created)").
				Value(&dbPath).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("database path is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Telegram API base").
				Description("Leave as-is unless you proxy the Telegram Bot API").
				Value(&telegramBase),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	cfg.Server.ListenAddr = strings.TrimSpace(listenAddr)
	cfg.Database.Path = strings.TrimSpace(dbPath)
	cfg.Telegram.APIBase = strings.TrimSpace(telegramBase)

	secret, err := auth.GenerateSecret()
	if err != nil {
		return fmt.Errorf("generating auth secret: %w", err)
	}
	cfg.Auth.Secret = secret

	if err := config.SaveConfig(cfgPath, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\nConfig written to %s\n", cfgPath)
	fmt.Fprintf(os.Stderr, "  Auth secret generated\n\n")
	fmt.Fprintf(os.Stderr, "Next steps:\n")
	fmt.Fprintf(os.Stderr, "  monitor360 token <tenant>    mint an API token for a tenant\n")
	fmt.Fprintf(os.Stderr, "  sudo monitor360 serve        start the daemon\n")

	return nil
}

// validateListenAddr accepts ":port" or "host:port" forms.
func validateListenAddr(s string) error {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return fmt.Errorf("expected host:port or :port")
	}
	port := s[i+1:]
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}
