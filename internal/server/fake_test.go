package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Fake Commander ---

type cmdResult struct {
	ok  bool
	out string
}

// fakeCommander scripts responses per command and records every
// invocation, keyed by the first two argv words. Unscripted commands
// succeed with empty output.
type fakeCommander struct {
	mu      sync.Mutex
	results map[string][]cmdResult
	calls   [][]string
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{results: make(map[string][]cmdResult)}
}

func (f *fakeCommander) script(key string, results ...cmdResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[key] = results
}

func (f *fakeCommander) Cmd(_ context.Context, argv ...string) (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, argv)

	queue := f.results[cmdKey(argv)]
	if len(queue) == 0 {
		return true, ""
	}
	res := queue[0]
	if len(queue) > 1 {
		f.results[cmdKey(argv)] = queue[1:]
	}
	return res.ok, res.out
}

func cmdKey(argv []string) string {
	if len(argv) >= 2 {
		return argv[0] + " " + argv[1]
	}
	return strings.Join(argv, " ")
}

func (f *fakeCommander) countCalls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, argv := range f.calls {
		if cmdKey(argv) == key {
			n++
		}
	}
	return n
}

// --- Fake workers ---

type fakeWorkers struct {
	mu        sync.Mutex
	launched  []int64
	stopped   []int64
	restarted []int64
	err       error
}

func (f *fakeWorkers) Launch(_ context.Context, sensorID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.launched = append(f.launched, sensorID)
	return nil
}

func (f *fakeWorkers) Stop(sensorID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, sensorID)
}

func (f *fakeWorkers) Restart(_ context.Context, sensorID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.restarted = append(f.restarted, sensorID)
	return nil
}

func (f *fakeWorkers) launchedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.launched...)
}

func (f *fakeWorkers) stoppedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.stopped...)
}

func (f *fakeWorkers) restartedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.restarted...)
}

// --- Fake prober ---

type fakeProber struct {
	mu     sync.Mutex
	ips    []string
	credID int64
	ok     bool
	err    error
}

// accept scripts the prober to report credID as the working credential.
func (f *fakeProber) accept(credID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credID, f.ok, f.err = credID, true, nil
}

// reject scripts the prober to find no working credential.
func (f *fakeProber) reject() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credID, f.ok, f.err = 0, false, nil
}

func (f *fakeProber) Probe(_ context.Context, _, ip string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ips = append(f.ips, ip)
	return f.credID, f.ok, f.err
}

func (f *fakeProber) probedIPs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ips...)
}

// --- Fake alert state ---

type fakeAlerts struct {
	mu     sync.Mutex
	forgot []int64
}

func (f *fakeAlerts) ForgetSensor(sensorID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgot = append(f.forgot, sensorID)
}

func (f *fakeAlerts) forgotIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.forgot...)
}

// --- Fake streams ---

type fakeStreams struct {
	mu      sync.Mutex
	tenants []string
}

func (f *fakeStreams) ServeWS(w http.ResponseWriter, _ *http.Request, tenant string) {
	f.mu.Lock()
	f.tenants = append(f.tenants, tenant)
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *fakeStreams) served() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tenants...)
}

// --- Fake Telegram API ---

// fakeTelegram plays the Bot API getUpdates endpoint, serving a scripted
// body and recording requested paths.
type fakeTelegram struct {
	mu    sync.Mutex
	body  string
	paths []string
}

func (f *fakeTelegram) respond(body string) {
	f.mu.Lock()
	f.body = body
	f.mu.Unlock()
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	body := f.body
	f.mu.Unlock()
	if body == "" {
		body = `{"ok": true, "result": []}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func (f *fakeTelegram) requestedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

// --- Fake reachability check ---

type fakeReach struct {
	mu sync.Mutex
	ok bool
}

func (f *fakeReach) set(ok bool) {
	f.mu.Lock()
	f.ok = ok
	f.mu.Unlock()
}

func (f *fakeReach) check(context.Context, string, time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ok
}
