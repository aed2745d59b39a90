// Package alert turns probe samples into notifications. The evaluator
// applies the per-sensor rules with cooldown throttling; the notifier
// delivers the resulting messages to webhook or telegram channels.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/vatojuan/MonitorNetwork/internal/store"
	"github.com/vatojuan/MonitorNetwork/pkg/event"
)

// Message is the payload substituted into notification templates and
// stored verbatim as the alert record's details.
type Message struct {
	SensorName string `json:"sensor_name"`
	ClientName string `json:"client_name"`
	IPAddress  string `json:"ip_address"`
	Reason     string `json:"reason"`
}

// Sample is the slice of a probe result the evaluator inspects. Ping
// samples leave the ethernet fields empty.
type Sample struct {
	Status    string
	LatencyMS *float64
	Speed     string
	RxBitrate string
	TxBitrate string
}

type fireKey struct {
	sensorID  int64
	alertType string
}

// Evaluator applies alert rules to samples. Fire times and last seen
// speeds live in process memory and reset on restart; the fire key is
// (sensor, alert type) so editing a sensor's config cannot bypass a
// running cooldown.
type Evaluator struct {
	logger   *slog.Logger
	notifier Notifier
	history  HistorySink
	now      func() time.Time

	mu        sync.Mutex
	lastFire  map[fireKey]time.Time
	lastSpeed map[int64]string
}

// NewEvaluator returns an evaluator dispatching through notifier and
// recording fired alerts in history.
func NewEvaluator(logger *slog.Logger, notifier Notifier, history HistorySink) *Evaluator {
	return &Evaluator{
		logger:    logger.With("component", "alerts"),
		notifier:  notifier,
		history:   history,
		now:       time.Now,
		lastFire:  make(map[fireKey]time.Time),
		lastSpeed: make(map[int64]string),
	}
}

// Evaluate checks every rule on the sensor against one sample, firing
// notifications for rules that trigger outside their cooldown window.
// A sensor without rules is a no-op: its speed history is not tracked
// until a rule exists to consume it.
func (e *Evaluator) Evaluate(ctx context.Context, sensor store.Sensor, sample Sample, device store.Device) {
	cfg := sensor.ParseConfig()
	if len(cfg.Alerts) == 0 {
		return
	}

	now := e.now()
	for _, rule := range cfg.Alerts {
		key := fireKey{sensorID: sensor.ID, alertType: rule.Type}
		if last, ok := e.lastFireAt(key); ok && now.Sub(last) < rule.Cooldown() {
			continue
		}

		reason := e.reasonFor(rule, sensor.ID, sample)
		if reason == "" {
			continue
		}

		msg := Message{
			SensorName: sensor.Name,
			ClientName: device.ClientName,
			IPAddress:  device.IP,
			Reason:     reason,
		}
		e.notifier.Notify(ctx, sensor.OwnerID, rule.ChannelID, msg)

		details, err := json.Marshal(msg)
		if err == nil {
			err = e.history.InsertAlert(ctx, sensor.ID, rule.ChannelID, string(details), event.FormatTimestamp(now))
		}
		if err != nil {
			e.logger.Warn("recording alert", "sensor_id", sensor.ID, "type", rule.Type, "error", err)
		}
		e.markFired(key, now)
	}

	// "N/A" means the cycle could not read a speed; it is not an
	// observation and must not poison the change detector.
	if speedKnown(sample.Speed) {
		e.recordSpeed(sensor.ID, sample.Speed)
	}
}

// reasonFor returns the human-readable trigger reason, or "" when the
// rule does not trigger on this sample.
func (e *Evaluator) reasonFor(rule store.AlertRule, sensorID int64, sample Sample) string {
	switch rule.Type {
	case store.AlertTimeout:
		if sample.Status == event.StatusTimeout {
			return "Sensor entered timeout state."
		}

	case store.AlertHighLatency:
		if sample.Status != event.StatusOK || sample.LatencyMS == nil {
			return ""
		}
		if *sample.LatencyMS > rule.ThresholdMS {
			return fmt.Sprintf("High latency detected: %.2f ms (threshold: %g ms).", *sample.LatencyMS, rule.ThresholdMS)
		}

	case store.AlertSpeedChange:
		last, ok := e.knownSpeed(sensorID)
		if ok && speedKnown(sample.Speed) && sample.Speed != last {
			return fmt.Sprintf("Port speed changed from %s to %s.", last, sample.Speed)
		}

	case store.AlertTrafficThreshold:
		limit := rule.ThresholdMbps * 1_000_000
		rx := parseBitrate(sample.RxBitrate)
		tx := parseBitrate(sample.TxBitrate)
		dir := rule.Direction
		if dir == "" {
			dir = "any"
		}
		if (dir == "any" || dir == "rx") && rx > limit {
			return fmt.Sprintf("Download traffic exceeded threshold: %.2f Mbps (threshold: %g Mbps).", rx/1_000_000, rule.ThresholdMbps)
		}
		if (dir == "any" || dir == "tx") && tx > limit {
			return fmt.Sprintf("Upload traffic exceeded threshold: %.2f Mbps (threshold: %g Mbps).", tx/1_000_000, rule.ThresholdMbps)
		}
	}
	return ""
}

func speedKnown(speed string) bool {
	return speed != "" && speed != "N/A"
}

func parseBitrate(s string) float64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return float64(v)
}

func (e *Evaluator) lastFireAt(key fireKey) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.lastFire[key]
	return t, ok
}

func (e *Evaluator) markFired(key fireKey, t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastFire[key] = t
}

func (e *Evaluator) knownSpeed(sensorID int64) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.lastSpeed[sensorID]
	return s, ok
}

func (e *Evaluator) recordSpeed(sensorID int64, speed string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSpeed[sensorID] = speed
}

// ForgetSensor drops the in-memory state for a deleted sensor.
func (e *Evaluator) ForgetSensor(sensorID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.lastFire {
		if key.sensorID == sensorID {
			delete(e.lastFire, key)
		}
	}
	delete(e.lastSpeed, sensorID)
}
