package mikrotik

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Prober figures out which of a tenant's stored credentials a device
// accepts, used while onboarding new devices.
type Prober struct {
	logger       *slog.Logger
	creds        CredentialSource
	dial         dialFunc
	dialTimeout  time.Duration
	reachTimeout time.Duration
	reach        func(ctx context.Context, ip string, timeout time.Duration) bool
}

// NewProber creates a prober. reachTimeout bounds the TCP precheck.
func NewProber(logger *slog.Logger, creds CredentialSource, reachTimeout time.Duration) *Prober {
	return &Prober{
		logger:       logger.With("component", "prober"),
		creds:        creds,
		dial:         dialRouterOS,
		dialTimeout:  defaultDialTimeout,
		reachTimeout: reachTimeout,
		reach:        Reachable,
	}
}

// Probe tries each of the tenant's credentials against the device's API,
// first filtering with a TCP precheck. The first credential that can run
// /system/identity/print wins. ok=false means unreachable or no
// credential accepted; only gateway failures surface as errors.
func (p *Prober) Probe(ctx context.Context, tenant, ip string) (int64, bool, error) {
	creds, err := p.creds.Credentials(ctx, tenant)
	if err != nil {
		return 0, false, fmt.Errorf("listing credentials: %w", err)
	}
	if len(creds) == 0 {
		return 0, false, nil
	}

	if !p.reach(ctx, ip, p.reachTimeout) {
		p.logger.Debug("api port unreachable", "ip", ip)
		return 0, false, nil
	}

	for _, cred := range creds {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		s, err := p.dial(net.JoinHostPort(ip, apiPort), cred.Username, cred.Password, p.dialTimeout)
		if err != nil {
			p.logger.Debug("credential rejected", "ip", ip, "credential", cred.Name, "error", err)
			continue
		}
		_, err = s.Run("/system/identity/print")
		s.Close()
		if err == nil {
			p.logger.Info("credential accepted", "ip", ip, "credential", cred.Name)
			return cred.ID, true, nil
		}
		p.logger.Debug("identity check failed", "ip", ip, "credential", cred.Name, "error", err)
	}
	return 0, false, nil
}
