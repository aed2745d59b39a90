package vpn

import (
	"context"
	"strings"
	"sync"

	"github.com/vatojuan/MonitorNetwork/internal/store"
)

// --- Fake Commander ---

type cmdResult struct {
	ok  bool
	out string
}

// fakeCommander scripts responses per command and records every
// invocation. Commands are keyed by their first two argv words
// ("wg-quick up", "wg show", "ip link"); each key holds a queue whose
// last entry repeats. Unscripted commands succeed with empty output.
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

// callKeys returns the key of every recorded invocation, in order.
func (f *fakeCommander) callKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, len(f.calls))
	for i, argv := range f.calls {
		keys[i] = cmdKey(argv)
	}
	return keys
}

// lastArgs returns the argv of the most recent invocation matching key.
func (f *fakeCommander) lastArgs(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if cmdKey(f.calls[i]) == key {
			return f.calls[i]
		}
	}
	return nil
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

// --- Fake Profile Source ---

type fakeProfileSource struct {
	mu       sync.Mutex
	profiles map[int64]store.VpnProfile
	calls    int
}

func newFakeProfileSource(profiles ...store.VpnProfile) *fakeProfileSource {
	f := &fakeProfileSource{profiles: make(map[int64]store.VpnProfile)}
	for _, p := range profiles {
		f.profiles[p.ID] = p
	}
	return f
}

func (f *fakeProfileSource) ProfileByIDAnyOwner(_ context.Context, id int64) (store.VpnProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p, ok := f.profiles[id]
	if !ok {
		return store.VpnProfile{}, store.ErrNotFound
	}
	return p, nil
}
