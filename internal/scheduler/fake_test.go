package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/vatojuan/MonitorNetwork/internal/alert"
	"github.com/vatojuan/MonitorNetwork/internal/probe"
	"github.com/vatojuan/MonitorNetwork/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor waits for a condition function to return true within the timeout.
func waitFor(t *testing.T, timeout time.Duration, desc string, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", desc)
}

// --- Fake storage ---

type pingRow struct {
	sensorID  int64
	status    string
	latencyMS *float64
}

type ethRow struct {
	sensorID int64
	status   string
	speed    string
	rx, tx   string
}

type fakeStorage struct {
	mu       sync.Mutex
	runtimes map[int64]store.SensorRuntime
	devices  map[string]store.Device
	creds    map[int64]store.Credential
	pingRows []pingRow
	ethRows  []ethRow
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		runtimes: make(map[int64]store.SensorRuntime),
		devices:  make(map[string]store.Device),
		creds:    make(map[int64]store.Credential),
	}
}

func (f *fakeStorage) SensorRuntime(ctx context.Context, id int64) (store.SensorRuntime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.runtimes[id]
	if !ok {
		return store.SensorRuntime{}, store.ErrNotFound
	}
	return rt, nil
}

func (f *fakeStorage) AllSensorIDs(ctx context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.runtimes))
	for id := range f.runtimes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeStorage) DeviceByID(ctx context.Context, owner, id string) (store.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	if !ok || d.OwnerID != owner {
		return store.Device{}, store.ErrNotFound
	}
	return d, nil
}

func (f *fakeStorage) CredentialByID(ctx context.Context, owner string, id int64) (store.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[id]
	if !ok || c.OwnerID != owner {
		return store.Credential{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeStorage) InsertPingSample(ctx context.Context, sensorID int64, status string, latencyMS *float64, ts string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingRows = append(f.pingRows, pingRow{sensorID: sensorID, status: status, latencyMS: latencyMS})
	return nil
}

func (f *fakeStorage) InsertEthernetSample(ctx context.Context, sensorID int64, status, speed, rx, tx, ts string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ethRows = append(f.ethRows, ethRow{sensorID: sensorID, status: status, speed: speed, rx: rx, tx: tx})
	return nil
}

func (f *fakeStorage) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pingRows)
}

func (f *fakeStorage) ethCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ethRows)
}

func (f *fakeStorage) lastPing() pingRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingRows[len(f.pingRows)-1]
}

func (f *fakeStorage) lastEth() ethRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ethRows[len(f.ethRows)-1]
}

// --- Fake tunnels ---

type fakeTunnels struct {
	mu       sync.Mutex
	upErr    error
	ensured  []int64
	released []int64
}

func (f *fakeTunnels) EnsureUp(ctx context.Context, profileID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upErr != nil {
		return "", f.upErr
	}
	f.ensured = append(f.ensured, profileID)
	return "m360-p1", nil
}

func (f *fakeTunnels) Release(profileID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, profileID)
}

func (f *fakeTunnels) ensureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ensured)
}

func (f *fakeTunnels) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.released)
}

// --- Fake prober ---

type pingCall struct {
	originIP  string
	target    string
	threshold float64
	username  string
}

type ethCall struct {
	deviceIP string
	ifName   string
}

type fakeProber struct {
	mu         sync.Mutex
	pingResult probe.PingResult
	ethResult  probe.EthernetResult
	pingCalls  []pingCall
	ethCalls   []ethCall
}

func (f *fakeProber) Ping(ctx context.Context, originIP string, cred store.Credential, target string, thresholdMS float64) probe.PingResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingCalls = append(f.pingCalls, pingCall{originIP: originIP, target: target, threshold: thresholdMS, username: cred.Username})
	return f.pingResult
}

func (f *fakeProber) Ethernet(ctx context.Context, deviceIP string, cred store.Credential, ifName string) probe.EthernetResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ethCalls = append(f.ethCalls, ethCall{deviceIP: deviceIP, ifName: ifName})
	return f.ethResult
}

func (f *fakeProber) pingCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pingCalls)
}

func (f *fakeProber) lastPingCall() pingCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingCalls[len(f.pingCalls)-1]
}

func (f *fakeProber) lastEthCall() ethCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ethCalls[len(f.ethCalls)-1]
}

// --- Fake publisher ---

type published struct {
	tenant  string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Publish(tenant string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{tenant: tenant, payload: payload})
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakePublisher) last() published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

// --- Fake evaluator ---

type evaluated struct {
	sensorID int64
	sample   alert.Sample
	deviceID string
}

type fakeEvaluator struct {
	mu   sync.Mutex
	seen []evaluated
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, sensor store.Sensor, sample alert.Sample, device store.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, evaluated{sensorID: sensor.ID, sample: sample, deviceID: device.ID})
}

func (f *fakeEvaluator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func (f *fakeEvaluator) last() evaluated {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[len(f.seen)-1]
}
