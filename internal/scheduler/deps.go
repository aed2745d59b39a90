package scheduler

import (
	"context"

	"github.com/vatojuan/MonitorNetwork/internal/alert"
	"github.com/vatojuan/MonitorNetwork/internal/probe"
	"github.com/vatojuan/MonitorNetwork/internal/store"
)

// Storage is the slice of the store the scheduler reads and writes.
// Satisfied by *store.Store.
type Storage interface {
	SensorRuntime(ctx context.Context, id int64) (store.SensorRuntime, error)
	AllSensorIDs(ctx context.Context) ([]int64, error)
	DeviceByID(ctx context.Context, owner, id string) (store.Device, error)
	CredentialByID(ctx context.Context, owner string, id int64) (store.Credential, error)
	InsertPingSample(ctx context.Context, sensorID int64, status string, latencyMS *float64, ts string) error
	InsertEthernetSample(ctx context.Context, sensorID int64, status, speed, rx, tx, ts string) error
}

// Tunnels brings origin connectivity up before a worker's first cycle
// and releases it when the worker exits. Satisfied by *vpn.Manager.
type Tunnels interface {
	EnsureUp(ctx context.Context, profileID int64) (string, error)
	Release(profileID int64)
}

// Prober executes one measurement cycle. Satisfied by *probe.Probes.
type Prober interface {
	Ping(ctx context.Context, originIP string, cred store.Credential, target string, thresholdMS float64) probe.PingResult
	Ethernet(ctx context.Context, deviceIP string, cred store.Credential, ifName string) probe.EthernetResult
}

// Publisher fans a fresh sample out to live subscribers. Satisfied by
// *fanout.Hub.
type Publisher interface {
	Publish(tenant string, payload any)
}

// Evaluator applies alert rules to a fresh sample. Satisfied by
// *alert.Evaluator.
type Evaluator interface {
	Evaluate(ctx context.Context, sensor store.Sensor, sample alert.Sample, device store.Device)
}
