// Package mikrotik speaks the RouterOS binary API. It provides a session
// pool keyed by device IP, a TCP reachability precheck and a credential
// prober used during onboarding.
package mikrotik

import (
	"context"
	"net"
	"time"

	"github.com/go-routeros/routeros/v3"
)

const (
	apiPort = "8728"

	// defaultDialTimeout bounds the TCP connect plus API login handshake.
	defaultDialTimeout = 10 * time.Second
)

func dialRouterOS(address, username, password string, timeout time.Duration) (Session, error) {
	c, err := routeros.DialTimeout(address, username, password, timeout)
	if err != nil {
		return nil, err
	}
	return &apiSession{c: c}, nil
}

type apiSession struct {
	c *routeros.Client
}

func (s *apiSession) Run(sentence ...string) (*routeros.Reply, error) {
	return s.c.Run(sentence...)
}

func (s *apiSession) Close() error {
	s.c.Close()
	return nil
}

// Reachable reports whether the device's API port accepts a TCP
// connection within the timeout. Used as a cheap filter before paying
// login cost per credential.
func Reachable(ctx context.Context, ip string, timeout time.Duration) bool {
	return reachable(ctx, net.JoinHostPort(ip, apiPort), timeout)
}

func reachable(ctx context.Context, addr string, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
