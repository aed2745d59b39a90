package main

import (
	"fmt"
	"os"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

var qrURL string

var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Display a QR code for the dashboard URL",
	Long: `Displays a QR code containing the monitor360 API base URL so the
mobile dashboard can find the server without typing an address.

The URL is derived from the configured listen address and this host's
name; use --url when the daemon sits behind a reverse proxy.

Requires an existing configuration (run 'monitor360 setup' first).`,
	RunE: runQR,
}

func init() {
	qrCmd.Flags().StringVar(&qrURL, "url", "", "override the advertised URL (e.g. https://monitor.example.com)")
}

func runQR(cmd *cobra.Command, args []string) error {
	target := qrURL
	if target == "" {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w (run 'monitor360 setup' first, or pass --url)", err)
		}
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("determining hostname: %w (pass --url instead)", err)
		}
		target, err = advertisedURL(hostname, cfg.Server.ListenAddr)
		if err != nil {
			return err
		}
	}

	qr, err := qrcode.New(target, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("generating QR code: %w", err)
	}

	fmt.Fprintln(os.Stderr, qr.ToSmallString(false))
	fmt.Fprintf(os.Stderr, "Server: %s\n", target)
	fmt.Fprintln(os.Stderr, "Scan this QR code from the monitor360 dashboard app.")

	return nil
}
