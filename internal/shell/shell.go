// Package shell executes the external commands the daemon depends on
// (wg-quick, wg, ip). Failures are reported as (ok=false, output), never
// as errors, so callers treat command outcomes uniformly.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// Runner executes commands with the process environment plus per-call
// overrides.
type Runner struct {
	logger *slog.Logger
}

// New creates a Runner.
func New(logger *slog.Logger) *Runner {
	return &Runner{logger: logger.With("component", "shell")}
}

// Run executes argv and returns (ok, output). On success output is stdout;
// on failure it is stderr, falling back to stdout, falling back to the
// error text (covers a missing executable). Context cancellation kills the
// process and reports failure.
func (r *Runner) Run(ctx context.Context, argv []string, env map[string]string) (bool, string) {
	if len(argv) == 0 {
		return false, "empty command"
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = mergeEnv(env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		out := stderr.String()
		if out == "" {
			out = stdout.String()
		}
		if out == "" {
			out = err.Error()
		}
		r.logger.Debug("command failed", "argv", argv, "output", out)
		return false, out
	}
	return true, stdout.String()
}

// mergeEnv appends overrides to the inherited environment; later entries
// win, so overrides take effect.
func mergeEnv(env map[string]string) []string {
	merged := os.Environ()
	for k, v := range env {
		merged = append(merged, fmt.Sprintf("%s=%s", k, v))
	}
	return merged
}

// WG wraps a Runner with the environment every WireGuard tool invocation
// needs: the userspace implementation, endpoint resolution retries and a
// sanitized PATH.
type WG struct {
	runner *Runner
	env    map[string]string
}

// NewWG builds the WireGuard command wrapper. path is the PATH exported to
// wg-quick, wg and ip.
func NewWG(runner *Runner, path string) *WG {
	return &WG{
		runner: runner,
		env: map[string]string{
			"WG_QUICK_USERSPACE_IMPLEMENTATION": "boringtun",
			"WG_ENDPOINT_RESOLUTION_RETRIES":    "2",
			"PATH":                              path,
		},
	}
}

// Cmd runs a command under the WireGuard environment.
func (w *WG) Cmd(ctx context.Context, argv ...string) (bool, string) {
	return w.runner.Run(ctx, argv, w.env)
}
