// Package vpn manages the WireGuard tunnels that give the daemon a route
// to monitored devices. Tunnels are driven through external wg-quick
// processes and shared across sensors by refcount; a tunnel that reaches
// zero references stays up until process shutdown so the next worker can
// reuse it without paying the activation cost again.
package vpn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrActivationFailed reports that wg-quick could not bring a tunnel up.
	ErrActivationFailed = errors.New("vpn activation failed")

	// ErrInterfaceNotUp reports that the interface never reached state UP
	// within the activation window.
	ErrInterfaceNotUp = errors.New("vpn interface did not come up")
)

const (
	upPollAttempts = 30
	upPollInterval = 100 * time.Millisecond
	settleDelay    = 2 * time.Second
)

type tunnelState struct {
	iface    string
	confPath string
	refcount int
	up       bool
}

// TunnelState is one row of the manager's state snapshot, as exposed by
// the debug endpoint and the control socket.
type TunnelState struct {
	ProfileID int64  `json:"profile_id"`
	Iface     string `json:"iface"`
	ConfPath  string `json:"conf_path"`
	Refcount  int    `json:"refcount"`
	Up        bool   `json:"up"`
}

// Manager owns the process-wide tunnel table. Command invocations happen
// outside the table lock; two workers racing to activate the same profile
// resolve through the wg-quick retry path.
type Manager struct {
	logger   *slog.Logger
	wg       Commander
	profiles ProfileSource
	confDir  string

	pollInterval time.Duration
	settle       time.Duration

	mu     sync.Mutex
	states map[int64]*tunnelState
}

// NewManager creates a tunnel manager writing conf files under confDir.
func NewManager(logger *slog.Logger, wg Commander, profiles ProfileSource, confDir string) *Manager {
	return &Manager{
		logger:       logger.With("component", "vpn"),
		wg:           wg,
		profiles:     profiles,
		confDir:      confDir,
		pollInterval: upPollInterval,
		settle:       settleDelay,
		states:       make(map[int64]*tunnelState),
	}
}

func ifaceName(profileID int64) string {
	return fmt.Sprintf("m360-p%d", profileID)
}

// EnsureUp brings the profile's tunnel up if it is not already, increments
// its refcount and returns the interface name.
func (m *Manager) EnsureUp(ctx context.Context, profileID int64) (string, error) {
	iface := ifaceName(profileID)

	m.mu.Lock()
	st, ok := m.states[profileID]
	if !ok {
		st = &tunnelState{iface: iface}
		m.states[profileID] = st
	}
	markedUp := st.up
	m.mu.Unlock()

	if markedUp && m.interfaceUp(ctx, iface) {
		m.mu.Lock()
		st.refcount++
		n := st.refcount
		m.mu.Unlock()
		m.logger.Debug("tunnel already up", "iface", iface, "refcount", n)
		return iface, nil
	}

	profile, err := m.profiles.ProfileByIDAnyOwner(ctx, profileID)
	if err != nil {
		return "", fmt.Errorf("loading vpn profile %d: %w", profileID, err)
	}

	confPath := filepath.Join(m.confDir, iface+".conf")
	if err := writeConf(confPath, profile.ConfigText); err != nil {
		return "", err
	}
	m.mu.Lock()
	st.confPath = confPath
	m.mu.Unlock()

	if ok, out := m.wg.Cmd(ctx, "wg-quick", "up", confPath); !ok {
		// The interface may already exist from an earlier run; only when
		// wg cannot see it either do we wipe and retry.
		if shown, _ := m.wg.Cmd(ctx, "wg", "show", iface); !shown {
			m.wg.Cmd(ctx, "wg-quick", "down", confPath)
			if ok2, out2 := m.wg.Cmd(ctx, "wg-quick", "up", confPath); !ok2 {
				return "", fmt.Errorf("%w: profile %d: %s", ErrActivationFailed, profileID, strings.TrimSpace(out2))
			}
		} else {
			m.logger.Debug("wg-quick up failed but interface exists", "iface", iface, "output", strings.TrimSpace(out))
		}
	}

	if !m.awaitUp(ctx, iface) {
		return "", fmt.Errorf("%w: %s", ErrInterfaceNotUp, iface)
	}

	m.mu.Lock()
	st.up = true
	st.refcount++
	n := st.refcount
	m.mu.Unlock()
	m.logger.Info("tunnel up", "iface", iface, "profile_id", profileID, "refcount", n)
	return iface, nil
}

// Release decrements the profile's refcount, flooring at zero. The tunnel
// itself stays up; TeardownAll reclaims it at shutdown.
func (m *Manager) Release(profileID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[profileID]
	if !ok {
		return
	}
	if st.refcount > 0 {
		st.refcount--
	}
	m.logger.Debug("tunnel released", "iface", st.iface, "refcount", st.refcount)
}

// TeardownAll brings every known tunnel down and deletes its conf file,
// best-effort. Called once at shutdown.
func (m *Manager) TeardownAll(ctx context.Context) {
	m.mu.Lock()
	paths := make(map[int64]string, len(m.states))
	for id, st := range m.states {
		if st.confPath != "" {
			paths[id] = st.confPath
		}
	}
	m.mu.Unlock()

	for id, confPath := range paths {
		if ok, out := m.wg.Cmd(ctx, "wg-quick", "down", confPath); !ok {
			m.logger.Warn("tunnel teardown failed", "profile_id", id, "output", strings.TrimSpace(out))
		}
		if err := os.Remove(confPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("removing conf file", "path", confPath, "error", err)
		}
		m.mu.Lock()
		if st, ok := m.states[id]; ok {
			st.up = false
		}
		m.mu.Unlock()
	}
}

// Snapshot returns the tunnel table ordered by profile ID.
func (m *Manager) Snapshot() []TunnelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TunnelState, 0, len(m.states))
	for id, st := range m.states {
		out = append(out, TunnelState{
			ProfileID: id,
			Iface:     st.iface,
			ConfPath:  st.confPath,
			Refcount:  st.refcount,
			Up:        st.up,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProfileID < out[j].ProfileID })
	return out
}

// interfaceUp asks ip link about the interface and accepts either the
// operational "state UP" or the UP flag in the link flags.
func (m *Manager) interfaceUp(ctx context.Context, iface string) bool {
	ok, out := m.wg.Cmd(ctx, "ip", "link", "show", iface)
	return ok && strings.Contains(out, "UP")
}

func (m *Manager) awaitUp(ctx context.Context, iface string) bool {
	for i := 0; i < upPollAttempts; i++ {
		if m.interfaceUp(ctx, iface) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(m.pollInterval):
		}
	}
	return false
}

// EphemeralTunnel is a short-lived tunnel used while onboarding a device,
// torn down as soon as reachability has been decided.
type EphemeralTunnel struct {
	confPath string
	wg       Commander
	logger   *slog.Logger
}

// EphemeralUp writes a throwaway conf from raw profile text, brings the
// tunnel up and waits for routes to settle. Callers must invoke Down on
// every path once done.
func (m *Manager) EphemeralUp(ctx context.Context, configText string) (*EphemeralTunnel, error) {
	name := "m360-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	confPath := filepath.Join(m.confDir, name+".conf")
	if err := writeConf(confPath, configText); err != nil {
		return nil, err
	}

	if ok, out := m.wg.Cmd(ctx, "wg-quick", "up", confPath); !ok {
		os.Remove(confPath)
		return nil, fmt.Errorf("%w: %s", ErrActivationFailed, strings.TrimSpace(out))
	}

	t := &EphemeralTunnel{confPath: confPath, wg: m.wg, logger: m.logger}
	select {
	case <-ctx.Done():
		t.Down(context.WithoutCancel(ctx))
		return nil, ctx.Err()
	case <-time.After(m.settle):
	}
	m.logger.Debug("ephemeral tunnel up", "conf", confPath)
	return t, nil
}

// Down tears the ephemeral tunnel down and deletes its conf file.
func (t *EphemeralTunnel) Down(ctx context.Context) {
	if ok, out := t.wg.Cmd(ctx, "wg-quick", "down", t.confPath); !ok {
		t.logger.Warn("ephemeral teardown failed", "conf", t.confPath, "output", strings.TrimSpace(out))
	}
	if err := os.Remove(t.confPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.Warn("removing conf file", "path", t.confPath, "error", err)
	}
}

// writeConf writes profile text to path with owner-only permissions,
// commenting out DNS lines (resolvconf is absent on the appliances this
// runs on) and terminating with a newline.
func writeConf(path, text string) error {
	if err := os.WriteFile(path, []byte(normalizeConf(text)), 0o600); err != nil {
		return fmt.Errorf("writing wireguard conf: %w", err)
	}
	return nil
}

func normalizeConf(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "dns=") {
			lines[i] = "# " + line
		}
	}
	out := strings.Join(lines, "\n")
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}
