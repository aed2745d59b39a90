package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vatojuan/MonitorNetwork/internal/auth"
)

var tokenLifetime time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <tenant>",
	Short: "Mint an API token for a tenant",
	Long: `Mint a bearer token the given tenant can use against the REST API and
the WebSocket endpoint. The token is printed to stdout.

Tokens are signed with the auth secret from the config file; rotating
the secret (setup --force) invalidates every issued token.

Example:
  monitor360 token acme --lifetime 720h`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenLifetime, "lifetime", auth.DefaultTokenLifetime, "token validity duration")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is not set — run 'monitor360 setup' first")
	}

	tenant := args[0]
	token, err := auth.Mint(cfg.Auth.Secret, tenant, tokenLifetime)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}

	// Token to stdout (pipe-friendly).
	fmt.Println(token)

	fmt.Fprintf(cmd.ErrOrStderr(), "tenant: %s, expires: %s\n",
		tenant, time.Now().Add(tokenLifetime).UTC().Format(time.RFC3339))

	return nil
}
