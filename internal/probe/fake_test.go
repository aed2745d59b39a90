package probe

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-routeros/routeros/v3"
	"github.com/go-routeros/routeros/v3/proto"

	"github.com/vatojuan/MonitorNetwork/internal/mikrotik"
	"github.com/vatojuan/MonitorNetwork/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func replyWith(maps ...map[string]string) *routeros.Reply {
	var reply routeros.Reply
	for _, m := range maps {
		reply.Re = append(reply.Re, &proto.Sentence{Word: "!re", Map: m})
	}
	return &reply
}

// --- Fake session ---

// fakeSession scripts replies per full sentence. Unscripted sentences
// return an empty reply, which reads as "no rows".
type fakeSession struct {
	mu        sync.Mutex
	responses map[string]*routeros.Reply
	errs      map[string]error
	runs      [][]string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		responses: make(map[string]*routeros.Reply),
		errs:      make(map[string]error),
	}
}

func sentenceKey(sentence []string) string {
	return strings.Join(sentence, " ")
}

func (s *fakeSession) reply(sentence []string, reply *routeros.Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[sentenceKey(sentence)] = reply
}

func (s *fakeSession) fail(sentence []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[sentenceKey(sentence)] = err
}

func (s *fakeSession) Run(sentence ...string) (*routeros.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, sentence)
	key := sentenceKey(sentence)
	if err, ok := s.errs[key]; ok {
		return nil, err
	}
	if reply, ok := s.responses[key]; ok {
		return reply, nil
	}
	return &routeros.Reply{}, nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var words []string
	for _, run := range s.runs {
		words = append(words, run[0])
	}
	return words
}

// --- Fake pool ---

type fakePool struct {
	mu          sync.Mutex
	session     mikrotik.Session
	getErr      error
	gets        int
	invalidated []string
}

func (p *fakePool) Get(ctx context.Context, ip string, cred store.Credential) (mikrotik.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gets++
	if p.getErr != nil {
		return nil, p.getErr
	}
	return p.session, nil
}

func (p *fakePool) Invalidate(ip string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidated = append(p.invalidated, ip)
}

func (p *fakePool) invalidations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.invalidated...)
}
