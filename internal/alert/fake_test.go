package alert

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/vatojuan/MonitorNetwork/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Fake notifier ---

type notifyCall struct {
	ownerID   string
	channelID int64
	msg       Message
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *fakeNotifier) Notify(ctx context.Context, ownerID string, channelID int64, msg Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{ownerID: ownerID, channelID: channelID, msg: msg})
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *fakeNotifier) last() notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[len(n.calls)-1]
}

// --- Fake history sink ---

type historyRow struct {
	sensorID  int64
	channelID int64
	details   string
	ts        string
}

type fakeHistory struct {
	mu   sync.Mutex
	rows []historyRow
	err  error
}

func (h *fakeHistory) InsertAlert(ctx context.Context, sensorID, channelID int64, details, ts string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.rows = append(h.rows, historyRow{sensorID: sensorID, channelID: channelID, details: details, ts: ts})
	return nil
}

func (h *fakeHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rows)
}

func (h *fakeHistory) last() historyRow {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rows[len(h.rows)-1]
}

// --- Fake channel source ---

type fakeChannelSource struct {
	mu       sync.Mutex
	channels map[int64]store.Channel
}

func (s *fakeChannelSource) ChannelByIDAnyOwner(ctx context.Context, id int64) (store.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[id]
	if !ok {
		return store.Channel{}, store.ErrNotFound
	}
	return ch, nil
}
