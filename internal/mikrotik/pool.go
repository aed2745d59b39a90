package mikrotik

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/vatojuan/MonitorNetwork/internal/store"
)

// Pool caches one API session per device IP so sensor workers skip the
// login handshake on every cycle. Sessions are never health-checked here;
// callers invalidate on any probe error and the next Get re-dials.
type Pool struct {
	logger      *slog.Logger
	dial        dialFunc
	dialTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]Session
}

// NewPool creates an empty session pool.
func NewPool(logger *slog.Logger) *Pool {
	return &Pool{
		logger:      logger.With("component", "mikrotik"),
		dial:        dialRouterOS,
		dialTimeout: defaultDialTimeout,
		sessions:    make(map[string]Session),
	}
}

// Get returns the pooled session for ip, dialing a fresh one with the
// given credential when none is cached.
func (p *Pool) Get(ctx context.Context, ip string, cred store.Credential) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if s, ok := p.sessions[ip]; ok {
		p.mu.Unlock()
		return s, nil
	}
	p.mu.Unlock()

	s, err := p.dial(net.JoinHostPort(ip, apiPort), cred.Username, cred.Password, p.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dialing routeros api at %s: %w", ip, err)
	}

	p.mu.Lock()
	if existing, ok := p.sessions[ip]; ok {
		// Lost a dial race; keep the session that is already pooled.
		p.mu.Unlock()
		s.Close()
		return existing, nil
	}
	p.sessions[ip] = s
	p.mu.Unlock()

	p.logger.Debug("api session opened", "ip", ip)
	return s, nil
}

// Invalidate closes and forgets the session for ip.
func (p *Pool) Invalidate(ip string) {
	p.mu.Lock()
	s, ok := p.sessions[ip]
	delete(p.sessions, ip)
	p.mu.Unlock()

	if ok {
		s.Close()
		p.logger.Debug("api session invalidated", "ip", ip)
	}
}

// CloseAll drops every pooled session. Called once at shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[string]Session)
	p.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	if n := len(sessions); n > 0 {
		p.logger.Info("closed api sessions", "count", n)
	}
}

// Size returns the number of pooled sessions, for the status endpoint.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}
