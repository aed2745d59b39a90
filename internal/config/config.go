package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultWireGuardPath is the sanitized PATH exported to wg-quick, wg and
// ip invocations when the config does not override it.
const DefaultWireGuardPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// DefaultTelegramAPIBase is the Telegram Bot API origin used when none is
// configured. Tests point this at a local server.
const DefaultTelegramAPIBase = "https://api.telegram.org"

// Config is the top-level configuration for monitor360.
// It is persisted as a TOML file at DefaultConfigPath().
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Auth      AuthConfig      `toml:"auth"`
	Telegram  TelegramConfig  `toml:"telegram"`
	WireGuard WireGuardConfig `toml:"wireguard"`
	Probe     ProbeConfig     `toml:"probe"`
}

// ServerConfig controls the HTTP/WebSocket listener and the local control
// socket.
type ServerConfig struct {
	// ListenAddr is the address the REST API and WebSocket endpoint bind to.
	ListenAddr string `toml:"listen_addr"`

	// ControlSocket overrides the unix socket path used by `monitor360 status`.
	// Empty means the default resolution order (runtime dir, then /tmp).
	ControlSocket string `toml:"control_socket,omitempty"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	// Path is the SQLite database file. Parent directories are created on
	// first open.
	Path string `toml:"path"`
}

// AuthConfig holds the secret behind tenant API tokens.
type AuthConfig struct {
	// Secret is the HMAC key used to mint and verify tenant bearer tokens.
	// Generated by `monitor360 setup`. The daemon refuses to start without it.
	Secret string `toml:"secret"`
}

// TelegramConfig controls how Telegram notifications are delivered.
type TelegramConfig struct {
	// APIBase is the Telegram Bot API origin (default "https://api.telegram.org").
	APIBase string `toml:"api_base,omitempty"`
}

// WireGuardConfig controls how tunnel processes are spawned.
type WireGuardConfig struct {
	// Path is the PATH environment exported to wg-quick, wg and ip.
	Path string `toml:"path,omitempty"`

	// ConfDir is where generated tunnel config files are written
	// (default: the system temp directory). Files are created mode 0600.
	ConfDir string `toml:"conf_dir,omitempty"`
}

// ProbeConfig holds probe and notifier timeout knobs.
type ProbeConfig struct {
	// ReachTimeoutMS is the TCP connect timeout for reachability prechecks
	// against the RouterOS API port, in milliseconds.
	ReachTimeoutMS int `toml:"reach_timeout_ms"`

	// NotifyTimeoutMS is the HTTP timeout for webhook and Telegram
	// notification deliveries, in milliseconds.
	NotifyTimeoutMS int `toml:"notify_timeout_ms"`
}

// DefaultConfig returns a Config populated with sensible defaults.
// The auth secret is left empty and must be filled in by `monitor360 setup`.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8360",
		},
		Database: DatabaseConfig{
			Path: "/var/lib/monitor360/monitor360.db",
		},
		Telegram: TelegramConfig{
			APIBase: DefaultTelegramAPIBase,
		},
		WireGuard: WireGuardConfig{
			Path:    DefaultWireGuardPath,
			ConfDir: os.TempDir(),
		},
		Probe: ProbeConfig{
			ReachTimeoutMS:  1500,
			NotifyTimeoutMS: 10000,
		},
	}
}

// DefaultConfigPath returns the default path for the monitor360 config file.
// The system-wide /etc location wins when it exists; otherwise the per-user
// XDG location is used so the daemon can run unprivileged in development.
func DefaultConfigPath() (string, error) {
	const system = "/etc/monitor360/config.toml"
	if _, err := os.Stat(system); err == nil {
		return system, nil
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("determining home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "monitor360", "config.toml"), nil
}

// LoadConfig reads and decodes a TOML config file from the given path.
// If the file does not exist, it returns an error wrapping fs.ErrNotExist.
// After loading, defaults are applied for any unset optional fields.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// SaveConfig encodes the config as TOML and writes it to the given path.
// Parent directories are created if they don't exist. The file is written
// with mode 0600 (owner-only read/write) since it contains secrets.
func SaveConfig(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating config file %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}

// Validate reports the first problem that would prevent the daemon from
// serving. Commands that only read the config (qr, token) skip it.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is not set; run `monitor360 setup` first")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is not set")
	}
	if c.Server.ListenAddr == "" {
		return errors.New("server.listen_addr is not set")
	}
	return nil
}

// ReachTimeout returns the TCP reachability precheck timeout as a duration.
func (c *Config) ReachTimeout() time.Duration {
	return time.Duration(c.Probe.ReachTimeoutMS) * time.Millisecond
}

// NotifyTimeout returns the notification delivery timeout as a duration.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Probe.NotifyTimeoutMS) * time.Millisecond
}

// applyDefaults fills in default values for optional fields that are
// zero-valued after TOML decoding.
func applyDefaults(cfg *Config) {
	if cfg.Telegram.APIBase == "" {
		cfg.Telegram.APIBase = DefaultTelegramAPIBase
	}
	if cfg.WireGuard.Path == "" {
		cfg.WireGuard.Path = DefaultWireGuardPath
	}
	if cfg.WireGuard.ConfDir == "" {
		cfg.WireGuard.ConfDir = os.TempDir()
	}
	if cfg.Probe.ReachTimeoutMS <= 0 {
		cfg.Probe.ReachTimeoutMS = 1500
	}
	if cfg.Probe.NotifyTimeoutMS <= 0 {
		cfg.Probe.NotifyTimeoutMS = 10000
	}
}
