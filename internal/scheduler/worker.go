package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vatojuan/MonitorNetwork/internal/alert"
	"github.com/vatojuan/MonitorNetwork/internal/probe"
	"github.com/vatojuan/MonitorNetwork/internal/store"
	"github.com/vatojuan/MonitorNetwork/pkg/event"
)

func (s *Scheduler) runWorker(ctx context.Context, rt store.SensorRuntime) {
	// A replacement may cancel this handle before the goroutine runs.
	if ctx.Err() != nil {
		return
	}
	logger := s.logger.With("sensor_id", rt.Sensor.ID, "kind", rt.Sensor.Kind)
	cfg := rt.Sensor.ParseConfig()

	switch rt.Sensor.Kind {
	case store.KindPing:
		s.runPing(ctx, logger, rt, cfg)
	case store.KindEthernet:
		s.runEthernet(ctx, logger, rt, cfg)
	}
	logger.Info("worker exited")
}

// runPing measures round trips from the resolved origin to the
// resolved target until canceled. A cycle that fails still persists,
// publishes, and evaluates its degraded sample, then sleeps like any
// other.
func (s *Scheduler) runPing(ctx context.Context, logger *slog.Logger, rt store.SensorRuntime, cfg store.SensorConfig) {
	origin, target, ok := s.resolvePingRoute(ctx, logger, rt, cfg)
	if !ok {
		return
	}
	logger.Info("ping worker started", "origin", origin.IP, "target", target)

	if origin.VpnProfileID != nil {
		if _, err := s.tunnels.EnsureUp(ctx, *origin.VpnProfileID); err != nil {
			logger.Error("activating origin tunnel", "profile_id", *origin.VpnProfileID, "error", err)
			return
		}
		defer s.tunnels.Release(*origin.VpnProfileID)
	}

	interval := cfg.Interval(store.KindPing)
	threshold := cfg.LatencyThreshold()
	for {
		res := s.pingOnce(ctx, logger, origin, target, threshold)
		if ctx.Err() != nil {
			return
		}

		sample := event.NewPingSample(rt.Sensor.ID, res.Status, res.LatencyMS, time.Now())
		if err := s.db.InsertPingSample(ctx, rt.Sensor.ID, res.Status, res.LatencyMS, sample.Timestamp); err != nil {
			logger.Warn("persisting sample", "error", err)
		}
		s.fanout.Publish(rt.Sensor.OwnerID, sample)
		s.alerts.Evaluate(ctx, rt.Sensor, alert.Sample{Status: res.Status, LatencyMS: res.LatencyMS}, rt.Device)

		if !s.sleep(ctx, interval) {
			return
		}
	}
}

// resolvePingRoute picks the origin device and target address for a
// ping sensor. Anything other than maestro_to_device pings from the
// device itself to config.target_ip. Unresolvable routes are config
// errors: log once and let the worker die.
func (s *Scheduler) resolvePingRoute(ctx context.Context, logger *slog.Logger, rt store.SensorRuntime, cfg store.SensorConfig) (store.Device, string, bool) {
	if cfg.PingType == "" || cfg.PingType == store.PingMaestroToDevice {
		if rt.Device.MaestroID == nil {
			logger.Error("maestro_to_device ping on a device without a maestro")
			return store.Device{}, "", false
		}
		maestro, err := s.db.DeviceByID(ctx, rt.Device.OwnerID, *rt.Device.MaestroID)
		if err != nil {
			logger.Error("loading maestro device", "maestro_id", *rt.Device.MaestroID, "error", err)
			return store.Device{}, "", false
		}
		return maestro, rt.Device.IP, true
	}

	if cfg.TargetIP == "" {
		logger.Error("self ping without target_ip in config")
		return store.Device{}, "", false
	}
	return rt.Device, cfg.TargetIP, true
}

// pingOnce loads the origin's credential and runs one ping. Credential
// problems degrade the cycle instead of killing the worker: the sensor
// keeps reporting timeouts until someone fixes the device.
func (s *Scheduler) pingOnce(ctx context.Context, logger *slog.Logger, origin store.Device, target string, thresholdMS float64) probe.PingResult {
	cred, err := s.originCredential(ctx, origin)
	if err != nil {
		logger.Warn("ping cycle failed", "origin", origin.IP, "error", err)
		return probe.DegradedPing()
	}
	return s.probes.Ping(ctx, origin.IP, cred, target, thresholdMS)
}

// runEthernet reads link state and bitrates from the device itself
// until canceled.
func (s *Scheduler) runEthernet(ctx context.Context, logger *slog.Logger, rt store.SensorRuntime, cfg store.SensorConfig) {
	logger.Info("ethernet worker started", "ip", rt.Device.IP, "interface", cfg.InterfaceName)

	if rt.Device.VpnProfileID != nil {
		if _, err := s.tunnels.EnsureUp(ctx, *rt.Device.VpnProfileID); err != nil {
			logger.Error("activating origin tunnel", "profile_id", *rt.Device.VpnProfileID, "error", err)
			return
		}
		defer s.tunnels.Release(*rt.Device.VpnProfileID)
	}

	interval := cfg.Interval(store.KindEthernet)
	for {
		res := s.ethernetOnce(ctx, logger, rt.Device, cfg.InterfaceName)
		if ctx.Err() != nil {
			return
		}

		sample := event.NewEthernetSample(rt.Sensor.ID, res.Status, res.Speed, res.RxBitrate, res.TxBitrate, time.Now())
		if err := s.db.InsertEthernetSample(ctx, rt.Sensor.ID, res.Status, res.Speed, res.RxBitrate, res.TxBitrate, sample.Timestamp); err != nil {
			logger.Warn("persisting sample", "error", err)
		}
		s.fanout.Publish(rt.Sensor.OwnerID, sample)
		s.alerts.Evaluate(ctx, rt.Sensor, alert.Sample{
			Status:    res.Status,
			Speed:     res.Speed,
			RxBitrate: res.RxBitrate,
			TxBitrate: res.TxBitrate,
		}, rt.Device)

		if !s.sleep(ctx, interval) {
			return
		}
	}
}

func (s *Scheduler) ethernetOnce(ctx context.Context, logger *slog.Logger, device store.Device, ifName string) probe.EthernetResult {
	cred, err := s.originCredential(ctx, device)
	if err != nil {
		logger.Warn("ethernet cycle failed", "ip", device.IP, "error", err)
		return probe.DegradedEthernet()
	}
	return s.probes.Ethernet(ctx, device.IP, cred, ifName)
}

// originCredential fetches the device's credential fresh each cycle so
// credential edits take effect on the next dial.
func (s *Scheduler) originCredential(ctx context.Context, device store.Device) (store.Credential, error) {
	if device.CredentialID == nil {
		return store.Credential{}, errNoCredential
	}
	return s.db.CredentialByID(ctx, device.OwnerID, *device.CredentialID)
}

var errNoCredential = errors.New("device has no credential assigned")
