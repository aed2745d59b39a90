package fanout

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/vatojuan/MonitorNetwork/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Fake sink ---

// fakeSink records delivered frames. When err is set, sends fail once
// the recorded count reaches errFrom.
type fakeSink struct {
	mu      sync.Mutex
	frames  [][]byte
	err     error
	errFrom int
}

func (s *fakeSink) Send(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil && len(s.frames) >= s.errFrom {
		return s.err
	}
	s.frames = append(s.frames, append([]byte(nil), data...))
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// frame decodes the i-th delivered frame as a JSON object.
func (s *fakeSink) frame(t *testing.T, i int) map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.frames) {
		t.Fatalf("frame %d not delivered, have %d", i, len(s.frames))
	}
	var obj map[string]any
	if err := json.Unmarshal(s.frames[i], &obj); err != nil {
		t.Fatalf("decoding frame %d: %v", i, err)
	}
	return obj
}

// types lists the "type" discriminator of each delivered frame; raw
// sample frames carry no discriminator and show up as "".
func (s *fakeSink) types(t *testing.T) []string {
	t.Helper()
	s.mu.Lock()
	n := len(s.frames)
	s.mu.Unlock()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		obj := s.frame(t, i)
		kind, _ := obj["type"].(string)
		out = append(out, kind)
	}
	return out
}

// --- Fake sample source ---

type fakeSamples struct {
	mu      sync.Mutex
	sensors map[string][]store.Sensor
	pings   map[int64]store.PingSample
	eths    map[int64]store.EthernetSample
	listErr error
}

func newFakeSamples() *fakeSamples {
	return &fakeSamples{
		sensors: make(map[string][]store.Sensor),
		pings:   make(map[int64]store.PingSample),
		eths:    make(map[int64]store.EthernetSample),
	}
}

func (f *fakeSamples) addSensor(ownerID string, s store.Sensor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.OwnerID = ownerID
	f.sensors[ownerID] = append(f.sensors[ownerID], s)
}

func (f *fakeSamples) Sensors(_ context.Context, ownerID string) ([]store.Sensor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]store.Sensor(nil), f.sensors[ownerID]...), nil
}

func (f *fakeSamples) LatestPingSample(_ context.Context, sensorID int64) (store.PingSample, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sample, ok := f.pings[sensorID]
	return sample, ok, nil
}

func (f *fakeSamples) LatestEthernetSample(_ context.Context, sensorID int64) (store.EthernetSample, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sample, ok := f.eths[sensorID]
	return sample, ok, nil
}
