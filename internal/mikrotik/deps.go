package mikrotik

import (
	"context"
	"time"

	"github.com/go-routeros/routeros/v3"

	"github.com/vatojuan/MonitorNetwork/internal/store"
)

// Session is one authenticated RouterOS API connection. Probes issue
// sentences through it and read attribute maps off the reply.
type Session interface {
	Run(sentence ...string) (*routeros.Reply, error)
	Close() error
}

// dialFunc opens an authenticated API session. Production code uses
// dialRouterOS; tests substitute a scripted dialer.
type dialFunc func(address, username, password string, timeout time.Duration) (Session, error)

// CredentialSource lists a tenant's stored credentials for probing.
type CredentialSource interface {
	Credentials(ctx context.Context, owner string) ([]store.Credential, error)
}
