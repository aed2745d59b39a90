package mikrotik

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-routeros/routeros/v3"
	"github.com/go-routeros/routeros/v3/proto"

	"github.com/vatojuan/MonitorNetwork/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// replyWith builds a RouterOS reply carrying one !re sentence per map.
func replyWith(maps ...map[string]string) *routeros.Reply {
	re := make([]*proto.Sentence, len(maps))
	for i, m := range maps {
		re[i] = &proto.Sentence{Word: "!re", Map: m}
	}
	return &routeros.Reply{Re: re}
}

// --- Fake Session ---

// fakeSession answers Run from scripted replies keyed by the command word
// and counts Close calls.
type fakeSession struct {
	mu        sync.Mutex
	responses map[string]*routeros.Reply
	errs      map[string]error
	runs      [][]string
	closed    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		responses: make(map[string]*routeros.Reply),
		errs:      make(map[string]error),
	}
}

func (f *fakeSession) Run(sentence ...string) (*routeros.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, sentence)
	cmd := sentence[0]
	if err, ok := f.errs[cmd]; ok {
		return nil, err
	}
	if r, ok := f.responses[cmd]; ok {
		return r, nil
	}
	return &routeros.Reply{}, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSession) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSession) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.runs))
	for i, run := range f.runs {
		out[i] = run[0]
	}
	return out
}

// --- Fake Dialer ---

// fakeDialer hands out fakeSessions, rejecting configured usernames at
// dial time and optionally failing their identity check afterwards.
type fakeDialer struct {
	mu          sync.Mutex
	rejectLogin map[string]bool
	identityErr map[string]error
	dials       []string
	created     []*fakeSession
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		rejectLogin: make(map[string]bool),
		identityErr: make(map[string]error),
	}
}

func (f *fakeDialer) dial(_, username, _ string, _ time.Duration) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials = append(f.dials, username)
	if f.rejectLogin[username] {
		return nil, fmt.Errorf("invalid user name or password for %s", username)
	}
	s := newFakeSession()
	if err, ok := f.identityErr[username]; ok {
		s.errs["/system/identity/print"] = err
	}
	f.created = append(f.created, s)
	return s, nil
}

func (f *fakeDialer) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dials)
}

func (f *fakeDialer) dialedUsers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dials...)
}

func (f *fakeDialer) sessions() []*fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSession(nil), f.created...)
}

// --- Fake Credential Source ---

type fakeCredentialSource struct {
	creds []store.Credential
	err   error
	calls int
}

func (f *fakeCredentialSource) Credentials(_ context.Context, _ string) ([]store.Credential, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.creds, nil
}
