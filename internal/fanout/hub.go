// Package fanout delivers live sensor samples to WebSocket
// subscribers. Each subscriber belongs to one tenant and narrows what
// it receives by subscription: nothing chosen yet, everything, or an
// explicit sensor set. New subscribers get a welcome, a ready, and a
// catch-up batch with the latest stored sample per sensor before any
// live traffic.
package fanout

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/vatojuan/MonitorNetwork/pkg/event"
)

// Sink is one subscriber's outbound channel. Production wraps a
// websocket connection; tests record frames.
type Sink interface {
	Send(ctx context.Context, data []byte) error
}

// Subscriber is one attached sink plus its subscription state.
type Subscriber struct {
	sink   Sink
	tenant string

	mu  sync.Mutex
	all bool
	ids map[int64]bool
}

func (s *Subscriber) subscribeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = true
	s.ids = nil
}

func (s *Subscriber) subscribeSensors(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = false
	s.ids = make(map[int64]bool, len(ids))
	for _, id := range ids {
		s.ids[id] = true
	}
}

// wants reports whether the subscription covers the sensor. An empty
// subscription (nothing chosen yet) covers nothing here; the publish
// fallback treats it separately.
func (s *Subscriber) wants(sensorID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.all || s.ids[sensorID]
}

// undecided reports whether the subscriber has not chosen a
// subscription yet.
func (s *Subscriber) undecided() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.all && s.ids == nil
}

// sensorFilter returns the explicit sensor set, or nil for all/empty.
func (s *Subscriber) sensorFilter() map[int64]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids
}

// Hub is the subscriber registry and delivery fan-out.
type Hub struct {
	logger  *slog.Logger
	samples SampleSource
	ctx     context.Context
	cancel  context.CancelFunc

	mu   sync.Mutex
	subs map[*Subscriber]bool
}

// NewHub returns a hub building catch-up batches from samples.
func NewHub(logger *slog.Logger, samples SampleSource) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		logger:  logger.With("component", "fanout"),
		samples: samples,
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[*Subscriber]bool),
	}
}

// Close unblocks every subscriber session. Their sockets close as the
// handlers unwind.
func (h *Hub) Close() {
	h.cancel()
}

// Attach registers a sink for a tenant and sends the greeting
// sequence: welcome, ready, initial batch. The subscriber starts with
// no subscription chosen.
func (h *Hub) Attach(ctx context.Context, sink Sink, tenant string) (*Subscriber, error) {
	sub := &Subscriber{sink: sink, tenant: tenant}
	h.mu.Lock()
	h.subs[sub] = true
	n := len(h.subs)
	h.mu.Unlock()
	h.logger.Info("subscriber attached", "tenant", tenant, "subscribers", n)

	if err := h.send(ctx, sub, event.WelcomeMessage{Tenant: tenant}); err != nil {
		h.Detach(sub)
		return nil, err
	}
	if err := h.sendSnapshot(ctx, sub); err != nil {
		h.Detach(sub)
		return nil, err
	}
	return sub, nil
}

// Detach removes the subscriber. Safe to call more than once.
func (h *Hub) Detach(sub *Subscriber) {
	h.mu.Lock()
	known := h.subs[sub]
	delete(h.subs, sub)
	n := len(h.subs)
	h.mu.Unlock()
	if known {
		h.logger.Info("subscriber detached", "tenant", sub.tenant, "subscribers", n)
	}
}

// Subscribers returns the number of attached sinks.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish delivers a sample payload to the tenant's subscribers. When
// nobody in the tenant took it and the payload names a sensor, it
// falls back to any subscriber whose subscription is undecided or
// covers the sensor, regardless of tenant — including the tenant's
// own not-yet-subscribed dashboards; rows predating tenancy have no
// owner and would otherwise never reach a dashboard.
func (h *Hub) Publish(tenant string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("encoding sample payload", "error", err)
		return
	}
	sensorID, hasSensor := payloadSensorID(payload)

	h.mu.Lock()
	targets := make([]*Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	delivered := 0
	for _, sub := range targets {
		if sub.tenant != tenant || !sub.wants(sensorID) {
			continue
		}
		if h.deliver(sub, data) {
			delivered++
		}
	}
	if delivered > 0 || !hasSensor {
		return
	}

	for _, sub := range targets {
		if sub.undecided() || sub.wants(sensorID) {
			h.deliver(sub, data)
		}
	}
}

// deliver writes one frame, detaching the subscriber on failure.
func (h *Hub) deliver(sub *Subscriber, data []byte) bool {
	if err := sub.sink.Send(context.Background(), data); err != nil {
		h.logger.Debug("dropping dead subscriber", "tenant", sub.tenant, "error", err)
		h.Detach(sub)
		return false
	}
	return true
}

// HandleMessage processes one inbound subscriber frame. Subscription
// changes and sync requests answer with a fresh ready + batch.
func (h *Hub) HandleMessage(ctx context.Context, sub *Subscriber, data []byte) error {
	msg, err := event.Unmarshal(data)
	if err != nil {
		return h.send(ctx, sub, event.ErrorMessage{Message: "unrecognized message"})
	}

	switch m := msg.(type) {
	case *event.PingMessage:
		return h.send(ctx, sub, event.PongMessage{})
	case *event.SubscribeSensorsMessage:
		sub.subscribeSensors(m.SensorIDs)
		return h.sendSnapshot(ctx, sub)
	case *event.SubscribeAllMessage:
		sub.subscribeAll()
		return h.sendSnapshot(ctx, sub)
	case *event.SyncRequestMessage:
		if m.Resource != event.ResourceSensorsLatest {
			return h.send(ctx, sub, event.ErrorMessage{Message: "unknown resource"})
		}
		return h.sendSnapshot(ctx, sub)
	default:
		return h.send(ctx, sub, event.ErrorMessage{Message: "unexpected message type"})
	}
}

// sendSnapshot emits ready followed by the catch-up batch.
func (h *Hub) sendSnapshot(ctx context.Context, sub *Subscriber) error {
	if err := h.send(ctx, sub, event.ReadyMessage{}); err != nil {
		return err
	}
	batch, err := h.buildBatch(ctx, sub)
	if err != nil {
		h.logger.Warn("building catch-up batch", "tenant", sub.tenant, "error", err)
		return h.send(ctx, sub, event.ErrorMessage{Message: "snapshot unavailable"})
	}
	return h.send(ctx, sub, batch)
}

func (h *Hub) send(ctx context.Context, sub *Subscriber, msg event.Message) error {
	data, err := event.Marshal(msg)
	if err != nil {
		return err
	}
	return sub.sink.Send(ctx, data)
}

// payloadSensorID extracts the sensor id from a sample payload.
func payloadSensorID(payload any) (int64, bool) {
	switch p := payload.(type) {
	case event.PingSample:
		return p.SensorID, true
	case event.EthernetSample:
		return p.SensorID, true
	default:
		return 0, false
	}
}
