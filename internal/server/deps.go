package server

import (
	"context"
	"net/http"

	"github.com/vatojuan/MonitorNetwork/internal/vpn"
)

// Workers is the slice of the scheduler the API drives: sensor create,
// update, restart and delete map onto worker lifecycle calls.
type Workers interface {
	Launch(ctx context.Context, sensorID int64) error
	Stop(sensorID int64)
	Restart(ctx context.Context, sensorID int64) error
}

// Tunnels brings up short-lived onboarding tunnels and exposes the live
// tunnel table for the debug endpoint. *vpn.Manager satisfies it.
type Tunnels interface {
	EphemeralUp(ctx context.Context, configText string) (*vpn.EphemeralTunnel, error)
	Snapshot() []vpn.TunnelState
}

// Prober walks a tenant's stored credentials against a device's API.
type Prober interface {
	Probe(ctx context.Context, tenant, ip string) (credentialID int64, ok bool, err error)
}

// AlertState drops a deleted sensor's cooldown and speed tracking.
type AlertState interface {
	ForgetSensor(sensorID int64)
}

// Streams runs WebSocket subscriber sessions. *fanout.Hub satisfies it.
type Streams interface {
	ServeWS(w http.ResponseWriter, r *http.Request, tenant string)
}
