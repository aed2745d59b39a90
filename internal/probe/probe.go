// Package probe executes single measurement cycles against RouterOS
// devices. A probe borrows a session from the shared pool, runs the
// API commands for its sensor kind, and reduces the replies to a result
// the caller persists and broadcasts. Probes never sleep and never
// write to the store; pacing and bookkeeping belong to the scheduler.
package probe

import (
	"context"
	"log/slog"

	"github.com/vatojuan/MonitorNetwork/internal/mikrotik"
	"github.com/vatojuan/MonitorNetwork/internal/store"
	"github.com/vatojuan/MonitorNetwork/pkg/event"
)

// SessionPool hands out pooled RouterOS sessions and drops ones that
// misbehave. Satisfied by *mikrotik.Pool.
type SessionPool interface {
	Get(ctx context.Context, ip string, cred store.Credential) (mikrotik.Session, error)
	Invalidate(ip string)
}

// PingResult is the outcome of one ping cycle. LatencyMS is nil when
// the cycle produced no reading (timeout or failure).
type PingResult struct {
	Status    string
	LatencyMS *float64
}

// EthernetResult is the outcome of one ethernet cycle. Bitrates are
// decimal digit strings in bits per second, "0" when unknown.
type EthernetResult struct {
	Status    string
	Speed     string
	RxBitrate string
	TxBitrate string
}

// DegradedPing is what a ping cycle reports when it cannot reach the
// origin device at all.
func DegradedPing() PingResult {
	return PingResult{Status: event.StatusTimeout}
}

// DegradedEthernet is what an ethernet cycle reports when the link
// state cannot be determined.
func DegradedEthernet() EthernetResult {
	return EthernetResult{Status: event.StatusLinkDown, Speed: "N/A", RxBitrate: "0", TxBitrate: "0"}
}

// Probes runs measurement cycles over the shared session pool.
type Probes struct {
	logger *slog.Logger
	pool   SessionPool
}

// New returns a probe runner backed by pool.
func New(logger *slog.Logger, pool SessionPool) *Probes {
	return &Probes{
		logger: logger.With("component", "probe"),
		pool:   pool,
	}
}

// Ping sends a single ICMP ping from the origin device to target and
// grades the round trip against thresholdMS. Failures degrade to a
// timeout result and invalidate the origin's pooled session so the
// next cycle redials.
func (p *Probes) Ping(ctx context.Context, originIP string, cred store.Credential, target string, thresholdMS float64) PingResult {
	sess, err := p.pool.Get(ctx, originIP, cred)
	if err != nil {
		p.logger.Warn("ping cycle failed", "origin", originIP, "target", target, "error", err)
		p.pool.Invalidate(originIP)
		return DegradedPing()
	}

	reply, err := sess.Run("/ping", "=address="+target, "=count=1")
	if err != nil {
		p.logger.Warn("ping command failed", "origin", originIP, "target", target, "error", err)
		p.pool.Invalidate(originIP)
		return DegradedPing()
	}
	if len(reply.Re) == 0 || reply.Re[0].Map["received"] != "1" {
		return PingResult{Status: event.StatusTimeout}
	}

	latency := ParseAvgRTT(reply.Re[0].Map["avg-rtt"])
	status := event.StatusOK
	if latency > thresholdMS {
		status = event.StatusHighLatency
	}
	return PingResult{Status: status, LatencyMS: &latency}
}

// Ethernet reads link state, negotiated speed, and live bitrates for
// one interface of the device. Link state is authoritative: when the
// traffic read fails the link verdict stands and only the bitrates
// fall back to "0".
func (p *Probes) Ethernet(ctx context.Context, deviceIP string, cred store.Credential, ifName string) EthernetResult {
	sess, err := p.pool.Get(ctx, deviceIP, cred)
	if err != nil {
		p.logger.Warn("ethernet cycle failed", "ip", deviceIP, "interface", ifName, "error", err)
		p.pool.Invalidate(deviceIP)
		return DegradedEthernet()
	}

	status, speed, ok := linkState(sess, ifName)
	if !ok {
		p.logger.Warn("link state unavailable", "ip", deviceIP, "interface", ifName)
		p.pool.Invalidate(deviceIP)
		return DegradedEthernet()
	}

	rx, tx := "0", "0"
	reply, err := sess.Run("/interface/monitor-traffic", "=interface="+ifName, "=once=")
	switch {
	case err != nil:
		p.logger.Warn("traffic read failed", "ip", deviceIP, "interface", ifName, "error", err)
		p.pool.Invalidate(deviceIP)
	case len(reply.Re) > 0:
		row := reply.Re[0].Map
		if v := row["rx-bits-per-second"]; v != "" {
			rx = v
		}
		if v := row["tx-bits-per-second"]; v != "" {
			tx = v
		}
	}

	if speed == "" {
		speed = "N/A"
	}
	return EthernetResult{Status: status, Speed: speed, RxBitrate: rx, TxBitrate: tx}
}

// linkState resolves link status and speed, trying the RouterOS 7
// monitor first and falling back to the v6 print when the speed is
// still unknown. ok is false when neither path produced a verdict.
func linkState(sess mikrotik.Session, ifName string) (status, speed string, ok bool) {
	reply, err := sess.Run("/interface/ethernet/monitor", "=numbers="+ifName, "=once=")
	if err != nil || len(reply.Re) == 0 {
		reply, err = sess.Run("/interface/ethernet/monitor", "=interface="+ifName, "=once=")
	}
	if err == nil && len(reply.Re) > 0 {
		row := reply.Re[0].Map
		status = event.StatusLinkDown
		if LinkUp(row["status"]) {
			status = event.StatusLinkUp
		}
		speed = row["rate"]
		if speed == "" {
			speed = row["speed"]
		}
		ok = true
	}

	if speed == "" {
		reply, err = sess.Run("/interface/ethernet/print", "?name="+ifName)
		if err == nil && len(reply.Re) > 0 {
			row := reply.Re[0].Map
			status = event.StatusLinkDown
			if LinkUp(row["running"]) {
				status = event.StatusLinkUp
			}
			if row["speed"] != "" {
				speed = row["speed"]
			}
			ok = true
		}
	}
	return status, speed, ok
}
