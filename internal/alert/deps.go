package alert

import (
	"context"

	"github.com/vatojuan/MonitorNetwork/internal/store"
)

// Notifier delivers one alert message to a channel. Implementations
// absorb delivery failures; a failed delivery never blocks the alert
// record.
type Notifier interface {
	Notify(ctx context.Context, ownerID string, channelID int64, msg Message)
}

// HistorySink records fired alerts. Satisfied by *store.Store.
type HistorySink interface {
	InsertAlert(ctx context.Context, sensorID, channelID int64, details, ts string) error
}

// ChannelSource looks up channels without tenant scoping; the notifier
// enforces tenancy itself so refusals can be logged. Satisfied by
// *store.Store.
type ChannelSource interface {
	ChannelByIDAnyOwner(ctx context.Context, id int64) (store.Channel, error)
}
