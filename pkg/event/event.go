// Package event defines the wire format shared by the monitor daemon and
// its WebSocket subscribers.
//
// Two kinds of payload travel over the socket: raw sensor samples, which
// carry a "sensor_type" field and no discriminator (they are re-broadcast
// exactly as persisted), and control messages, which are JSON objects with
// a "type" discriminator field.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the timestamp format used on the wire and in the store.
// Fixed-width UTC with millisecond precision, so string order is time order.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in the wire timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Sample statuses for the two sensor kinds.
const (
	StatusOK          = "ok"
	StatusHighLatency = "high_latency"
	StatusTimeout     = "timeout"
	StatusLinkUp      = "link_up"
	StatusLinkDown    = "link_down"
	StatusError       = "error"
	StatusPending     = "pending"
)

// Sensor kinds as they appear in the "sensor_type" field.
const (
	KindPing     = "ping"
	KindEthernet = "ethernet"
)

// PingSample is the broadcast payload for one ping measurement.
// LatencyMS is null when the cycle failed before producing a reading.
type PingSample struct {
	SensorID   int64    `json:"sensor_id"`
	SensorType string   `json:"sensor_type"`
	Status     string   `json:"status"`
	LatencyMS  *float64 `json:"latency_ms"`
	Timestamp  string   `json:"timestamp"`
}

// NewPingSample builds a ping payload stamped with now.
func NewPingSample(sensorID int64, status string, latencyMS *float64, now time.Time) PingSample {
	return PingSample{
		SensorID:   sensorID,
		SensorType: KindPing,
		Status:     status,
		LatencyMS:  latencyMS,
		Timestamp:  FormatTimestamp(now),
	}
}

// EthernetSample is the broadcast payload for one ethernet interface
// measurement. Bitrates are decimal digit strings in bits per second.
type EthernetSample struct {
	SensorID   int64  `json:"sensor_id"`
	SensorType string `json:"sensor_type"`
	Status     string `json:"status"`
	Speed      string `json:"speed"`
	RxBitrate  string `json:"rx_bitrate"`
	TxBitrate  string `json:"tx_bitrate"`
	Timestamp  string `json:"timestamp"`
}

// NewEthernetSample builds an ethernet payload stamped with now.
func NewEthernetSample(sensorID int64, status, speed, rx, tx string, now time.Time) EthernetSample {
	return EthernetSample{
		SensorID:   sensorID,
		SensorType: KindEthernet,
		Status:     status,
		Speed:      speed,
		RxBitrate:  rx,
		TxBitrate:  tx,
		Timestamp:  FormatTimestamp(now),
	}
}

// PendingPlaceholder is the batch item emitted for a sensor that has no
// stored samples yet.
func PendingPlaceholder(sensorID int64, kind string, now time.Time) any {
	switch kind {
	case KindEthernet:
		return EthernetSample{
			SensorID:   sensorID,
			SensorType: KindEthernet,
			Status:     StatusPending,
			Timestamp:  FormatTimestamp(now),
		}
	default:
		return PingSample{
			SensorID:   sensorID,
			SensorType: KindPing,
			Status:     StatusPending,
			Timestamp:  FormatTimestamp(now),
		}
	}
}

// Message is the interface implemented by all subscriber control messages.
// Each message type corresponds to a JSON object with a "type" discriminator field.
type Message interface {
	// MessageType returns the wire-format type string (e.g. "ready", "pong").
	MessageType() string
}

// WelcomeMessage is the first frame sent to a freshly attached subscriber.
type WelcomeMessage struct {
	Tenant string `json:"tenant"`
}

func (WelcomeMessage) MessageType() string { return "welcome" }

// ReadyMessage tells the subscriber its subscription is in effect and an
// initial batch follows.
type ReadyMessage struct{}

func (ReadyMessage) MessageType() string { return "ready" }

// PongMessage answers a subscriber ping.
type PongMessage struct{}

func (PongMessage) MessageType() string { return "pong" }

// BatchMessage carries the initial snapshot: one item per sensor, each a
// sample payload or a pending placeholder.
type BatchMessage struct {
	Items []any  `json:"items"`
	TS    string `json:"ts"`
}

func (BatchMessage) MessageType() string { return "sensor_batch" }

// ErrorMessage reports a protocol-level problem to the subscriber.
type ErrorMessage struct {
	Message string `json:"message"`
}

func (ErrorMessage) MessageType() string { return "error" }

// PingMessage is a subscriber keepalive; the hub replies with a pong.
type PingMessage struct{}

func (PingMessage) MessageType() string { return "ping" }

// SubscribeSensorsMessage narrows the subscription to an explicit sensor set.
type SubscribeSensorsMessage struct {
	SensorIDs []int64 `json:"sensor_ids"`
}

func (SubscribeSensorsMessage) MessageType() string { return "subscribe_sensors" }

// SubscribeAllMessage widens the subscription to every sensor of the tenant.
type SubscribeAllMessage struct{}

func (SubscribeAllMessage) MessageType() string { return "subscribe_all" }

// SyncRequestMessage asks the hub to resend the current snapshot.
type SyncRequestMessage struct {
	Resource string `json:"resource"`
}

func (SyncRequestMessage) MessageType() string { return "sync_request" }

// ResourceSensorsLatest is the only resource a sync_request may name.
const ResourceSensorsLatest = "sensors_latest"

// messageTypes maps wire-format type strings to factory functions
// that produce zero-value pointers of the corresponding message type.
var messageTypes = map[string]func() Message{
	"welcome":           func() Message { return &WelcomeMessage{} },
	"ready":             func() Message { return &ReadyMessage{} },
	"pong":              func() Message { return &PongMessage{} },
	"sensor_batch":      func() Message { return &BatchMessage{} },
	"error":             func() Message { return &ErrorMessage{} },
	"ping":              func() Message { return &PingMessage{} },
	"subscribe_sensors": func() Message { return &SubscribeSensorsMessage{} },
	"subscribe_all":     func() Message { return &SubscribeAllMessage{} },
	"sync_request":      func() Message { return &SyncRequestMessage{} },
}

// Marshal serializes a Message to JSON, injecting the "type" discriminator field.
func Marshal(msg Message) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshaling message payload: %w", err)
	}

	// Decode into a generic map so the "type" field can be injected.
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("re-decoding message payload: %w", err)
	}

	typeBytes, err := json.Marshal(msg.MessageType())
	if err != nil {
		return nil, fmt.Errorf("marshaling message type: %w", err)
	}
	obj["type"] = typeBytes

	return json.Marshal(obj)
}

// Unmarshal deserializes a JSON control message, using the "type"
// discriminator to decode into the correct concrete Message type.
func Unmarshal(data []byte) (Message, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding message envelope: %w", err)
	}

	factory, ok := messageTypes[env.Type]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %q", env.Type)
	}

	msg := factory()
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decoding %q message: %w", env.Type, err)
	}

	return msg, nil
}
