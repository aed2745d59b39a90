package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/vatojuan/MonitorNetwork/internal/store"
	"github.com/vatojuan/MonitorNetwork/pkg/event"
)

// SampleSource is the slice of the store the hub needs to assemble
// snapshot batches. Implemented by *store.Store.
type SampleSource interface {
	Sensors(ctx context.Context, ownerID string) ([]store.Sensor, error)
	LatestPingSample(ctx context.Context, sensorID int64) (store.PingSample, bool, error)
	LatestEthernetSample(ctx context.Context, sensorID int64) (store.EthernetSample, bool, error)
}

// buildBatch assembles the snapshot for one subscriber: every sensor of its
// tenant (narrowed to the subscribed set when one is in effect), each
// represented by its most recent stored sample, or by a pending placeholder
// when nothing has been persisted yet.
func (h *Hub) buildBatch(ctx context.Context, sub *Subscriber) (event.BatchMessage, error) {
	sensors, err := h.samples.Sensors(ctx, sub.tenant)
	if err != nil {
		return event.BatchMessage{}, fmt.Errorf("listing sensors for %s: %w", sub.tenant, err)
	}

	filter := sub.sensorFilter()
	now := time.Now()

	items := make([]any, 0, len(sensors))
	for _, sensor := range sensors {
		if filter != nil && !filter[sensor.ID] {
			continue
		}
		item, err := h.latestItem(ctx, sensor, now)
		if err != nil {
			return event.BatchMessage{}, err
		}
		items = append(items, item)
	}

	return event.BatchMessage{Items: items, TS: event.FormatTimestamp(now)}, nil
}

// latestItem renders one sensor's batch entry from its newest stored sample.
func (h *Hub) latestItem(ctx context.Context, sensor store.Sensor, now time.Time) (any, error) {
	switch sensor.Kind {
	case store.KindEthernet:
		sample, ok, err := h.samples.LatestEthernetSample(ctx, sensor.ID)
		if err != nil {
			return nil, fmt.Errorf("loading latest ethernet sample for sensor %d: %w", sensor.ID, err)
		}
		if !ok {
			return event.PendingPlaceholder(sensor.ID, event.KindEthernet, now), nil
		}
		return event.EthernetSample{
			SensorID:   sample.SensorID,
			SensorType: event.KindEthernet,
			Status:     sample.Status,
			Speed:      sample.Speed,
			RxBitrate:  sample.RxBitrate,
			TxBitrate:  sample.TxBitrate,
			Timestamp:  sample.Timestamp,
		}, nil
	default:
		sample, ok, err := h.samples.LatestPingSample(ctx, sensor.ID)
		if err != nil {
			return nil, fmt.Errorf("loading latest ping sample for sensor %d: %w", sensor.ID, err)
		}
		if !ok {
			return event.PendingPlaceholder(sensor.ID, event.KindPing, now), nil
		}
		return event.PingSample{
			SensorID:   sample.SensorID,
			SensorType: event.KindPing,
			Status:     sample.Status,
			LatencyMS:  sample.LatencyMS,
			Timestamp:  sample.Timestamp,
		}, nil
	}
}
