package store

import (
	"encoding/json"
	"time"
)

// Sensor kinds. Unknown kinds are stored as-is; the scheduler refuses to
// start a worker for them.
const (
	KindPing     = "ping"
	KindEthernet = "ethernet"
)

// Ping modes.
const (
	PingMaestroToDevice = "maestro_to_device"
	PingSelfToTarget    = "self_to_target"
)

// Credential is a RouterOS login owned by a tenant.
type Credential struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"-"`
	OwnerID  string `json:"-"`
}

// VpnProfile is a stored WireGuard configuration. At most one profile per
// tenant is the default used for manual onboarding.
type VpnProfile struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ConfigText string `json:"config_data"`
	CheckIP    string `json:"check_ip,omitempty"`
	IsDefault  bool   `json:"is_default"`
	OwnerID    string `json:"-"`
}

// ProfileUpdate carries the fields of a partial VPN profile update; nil
// means "leave unchanged".
type ProfileUpdate struct {
	Name       *string `json:"name,omitempty"`
	ConfigText *string `json:"config_data,omitempty"`
	CheckIP    *string `json:"check_ip,omitempty"`
	IsDefault  *bool   `json:"is_default,omitempty"`
}

// Device is a monitored or relaying RouterOS box. IP addresses are unique
// across all tenants.
type Device struct {
	ID           string  `json:"id"`
	ClientName   string  `json:"client_name"`
	IP           string  `json:"ip_address"`
	MAC          string  `json:"mac_address,omitempty"`
	Node         string  `json:"node,omitempty"`
	Status       string  `json:"status"`
	CredentialID *int64  `json:"credential_id"`
	IsMaestro    bool    `json:"is_maestro"`
	MaestroID    *string `json:"maestro_id"`
	VpnProfileID *int64  `json:"vpn_profile_id"`
	OwnerID      string  `json:"-"`
}

// Monitor attaches sensors to a device; a device has at most one.
type Monitor struct {
	ID       int64  `json:"id"`
	DeviceID string `json:"device_id"`
	OwnerID  string `json:"-"`
}

// Sensor is one measurement definition under a monitor. Config is kept as
// raw JSON so client-supplied fields survive round-trips; ParseConfig
// yields the typed view the workers consume.
type Sensor struct {
	ID        int64           `json:"id"`
	MonitorID int64           `json:"monitor_id"`
	Kind      string          `json:"sensor_type"`
	Name      string          `json:"name"`
	Config    json.RawMessage `json:"config"`
	OwnerID   string          `json:"-"`
}

// SensorConfig is the typed view of a sensor's config JSON.
type SensorConfig struct {
	IntervalSec        float64     `json:"interval_sec,omitempty"`
	PingType           string      `json:"ping_type,omitempty"`
	TargetIP           string      `json:"target_ip,omitempty"`
	LatencyThresholdMS float64     `json:"latency_threshold_ms,omitempty"`
	InterfaceName      string      `json:"interface_name,omitempty"`
	Alerts             []AlertRule `json:"alerts,omitempty"`
}

// AlertRule is one alert definition inside a sensor config.
type AlertRule struct {
	Type            string   `json:"type"`
	ChannelID       int64    `json:"channel_id"`
	CooldownMinutes *float64 `json:"cooldown_minutes,omitempty"`
	ThresholdMS     float64  `json:"threshold_ms,omitempty"`
	ThresholdMbps   float64  `json:"threshold_mbps,omitempty"`
	Direction       string   `json:"direction,omitempty"`
}

// Alert rule types.
const (
	AlertTimeout          = "timeout"
	AlertHighLatency      = "high_latency"
	AlertSpeedChange      = "speed_change"
	AlertTrafficThreshold = "traffic_threshold"
)

// ParseConfig decodes the sensor's config JSON. Malformed JSON yields the
// zero config, matching how workers tolerate hand-edited rows.
func (s Sensor) ParseConfig() SensorConfig {
	var cfg SensorConfig
	if len(s.Config) > 0 {
		_ = json.Unmarshal(s.Config, &cfg)
	}
	return cfg
}

// Interval returns the probe interval, defaulting by sensor kind
// (60s ping, 30s ethernet). Sub-second values truncate to whole seconds.
func (c SensorConfig) Interval(kind string) time.Duration {
	secs := int(c.IntervalSec)
	if secs <= 0 {
		if kind == KindEthernet {
			return 30 * time.Second
		}
		return 60 * time.Second
	}
	return time.Duration(secs) * time.Second
}

// LatencyThreshold returns the visual high-latency boundary in ms (default 150).
func (c SensorConfig) LatencyThreshold() float64 {
	if c.LatencyThresholdMS <= 0 {
		return 150
	}
	return c.LatencyThresholdMS
}

// Cooldown returns the alert's throttle window. Only an absent
// cooldown_minutes takes the 5-minute default; an explicit 0 means no
// throttling. Fractional minutes truncate like the interval does.
func (r AlertRule) Cooldown() time.Duration {
	if r.CooldownMinutes == nil {
		return 5 * time.Minute
	}
	return time.Duration(int(*r.CooldownMinutes)) * time.Minute
}

// Channel is a notification destination.
type Channel struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Kind    string          `json:"type"`
	Config  json.RawMessage `json:"config"`
	OwnerID string          `json:"-"`
}

// Channel kinds.
const (
	ChannelWebhook  = "webhook"
	ChannelTelegram = "telegram"
)

// ChannelConfig is the typed view of a channel's config JSON.
type ChannelConfig struct {
	URL      string `json:"url,omitempty"`
	BotToken string `json:"bot_token,omitempty"`
	ChatID   string `json:"chat_id,omitempty"`
}

// ParseConfig decodes the channel's config JSON, tolerating malformed rows.
func (c Channel) ParseConfig() ChannelConfig {
	var cfg ChannelConfig
	if len(c.Config) > 0 {
		_ = json.Unmarshal(c.Config, &cfg)
	}
	return cfg
}

// PingSample is one persisted ping measurement. LatencyMS is nil for
// degraded cycles.
type PingSample struct {
	ID        int64    `json:"id"`
	SensorID  int64    `json:"sensor_id"`
	Timestamp string   `json:"timestamp"`
	Status    string   `json:"status"`
	LatencyMS *float64 `json:"latency_ms"`
}

// EthernetSample is one persisted ethernet measurement.
type EthernetSample struct {
	ID        int64  `json:"id"`
	SensorID  int64  `json:"sensor_id"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	Speed     string `json:"speed"`
	RxBitrate string `json:"rx_bitrate"`
	TxBitrate string `json:"tx_bitrate"`
}

// AlertRecord is one row of delivered-alert history.
type AlertRecord struct {
	ID        int64  `json:"id"`
	SensorID  int64  `json:"sensor_id"`
	ChannelID int64  `json:"channel_id"`
	Timestamp string `json:"timestamp"`
	Details   string `json:"details"`
}

// AlertView is an alert record joined with its sensor and channel names,
// as served by the history endpoint.
type AlertView struct {
	ID          int64  `json:"id"`
	Timestamp   string `json:"timestamp"`
	Details     string `json:"details"`
	SensorName  string `json:"sensor_name"`
	ChannelName string `json:"channel_name"`
}

// MonitorView is a monitor joined with its device and sensors, as served
// by the monitors listing.
type MonitorView struct {
	MonitorID    int64    `json:"monitor_id"`
	DeviceID     string   `json:"device_id"`
	ClientName   string   `json:"client_name"`
	IP           string   `json:"ip_address"`
	CredentialID *int64   `json:"credential_id"`
	MaestroID    *string  `json:"maestro_id"`
	VpnProfileID *int64   `json:"vpn_profile_id"`
	Sensors      []Sensor `json:"sensors"`
}

// SensorDetail is a sensor joined with its device's display fields.
type SensorDetail struct {
	Sensor
	ClientName string `json:"client_name"`
	IP         string `json:"ip_address"`
}

// SensorRuntime bundles everything the scheduler needs to start a worker:
// the sensor and the device it hangs off.
type SensorRuntime struct {
	Sensor Sensor
	Device Device
}
