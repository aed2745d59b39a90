package main

import (
	"fmt"
	"net"
	"strings"

	"github.com/vatojuan/MonitorNetwork/internal/config"
)

// resolvedConfigPath returns the config file path, using the global flag
// if set, otherwise the default path resolution.
func resolvedConfigPath() string {
	if globalConfigPath != "" {
		return globalConfigPath
	}
	p, err := config.DefaultConfigPath()
	if err != nil {
		// Fallback — this shouldn't happen in practice.
		return "config.toml"
	}
	return p
}

// loadConfig loads the TOML config from the resolved path.
func loadConfig() (*config.Config, error) {
	cfgPath := resolvedConfigPath()
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", cfgPath, err)
	}
	return cfg, nil
}

// advertisedURL builds the URL dashboards should use to reach the API,
// combining this host's name with the port of the configured listen
// address. A listen host of 0.0.0.0, ::, or empty binds every interface
// and is replaced with the hostname.
func advertisedURL(hostname, listenAddr string) (string, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(listenAddr))
	if err != nil {
		return "", fmt.Errorf("parsing listen address %q: %w", listenAddr, err)
	}
	if port == "" {
		return "", fmt.Errorf("listen address %q has no port", listenAddr)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = hostname
	}
	if strings.Contains(host, ":") {
		// Bare IPv6 literal needs brackets in a URL.
		host = "[" + host + "]"
	}
	return fmt.Sprintf("http://%s:%s", host, port), nil
}
