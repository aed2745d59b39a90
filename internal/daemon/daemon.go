// Package daemon assembles and runs the whole monitor360 service: the
// SQLite store, the WireGuard tunnel manager, the RouterOS session pool
// and prober, the sensor worker scheduler, the alert pipeline, the
// WebSocket fan-out hub, the REST API and the local control socket.
//
// The daemon owns subsystem lifecycles:
//  1. Open the store and build every subsystem on top of it.
//  2. Resume a worker for every stored sensor.
//  3. Start the control socket and the HTTP listener.
//  4. Block until the context is cancelled or the listener fails.
//  5. Tear everything down in reverse dependency order.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vatojuan/MonitorNetwork/internal/alert"
	"github.com/vatojuan/MonitorNetwork/internal/config"
	"github.com/vatojuan/MonitorNetwork/internal/control"
	"github.com/vatojuan/MonitorNetwork/internal/fanout"
	"github.com/vatojuan/MonitorNetwork/internal/mikrotik"
	"github.com/vatojuan/MonitorNetwork/internal/probe"
	"github.com/vatojuan/MonitorNetwork/internal/scheduler"
	"github.com/vatojuan/MonitorNetwork/internal/server"
	"github.com/vatojuan/MonitorNetwork/internal/shell"
	"github.com/vatojuan/MonitorNetwork/internal/store"
	"github.com/vatojuan/MonitorNetwork/internal/vpn"
)

const shutdownTimeout = 5 * time.Second

// Daemon orchestrates the monitor360 subsystems.
type Daemon struct {
	cfg *config.Config
	log *slog.Logger

	// root is the undecorated logger handed to subsystems; each tags
	// itself with its own component attribute.
	root *slog.Logger

	db      *store.Store
	pool    *mikrotik.Pool
	tunnels *vpn.Manager
	sched   *scheduler.Scheduler
	hub     *fanout.Hub
	control *control.Server
	httpSrv *http.Server

	started time.Time

	mu   sync.Mutex
	addr string
}

// New creates a daemon for the given configuration. Nothing is opened
// or started until Run.
func New(cfg *config.Config, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		cfg:  cfg,
		log:  logger.With("component", "daemon"),
		root: logger,
	}
}

// Run starts every subsystem and blocks until ctx is cancelled or the
// HTTP listener fails. On return all subsystems are stopped and the
// store is closed.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.cfg.Validate(); err != nil {
		return err
	}
	d.started = time.Now()

	db, err := store.Open(d.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	d.db = db

	runner := shell.New(d.root)
	wg := shell.NewWG(runner, d.cfg.WireGuard.Path)
	d.tunnels = vpn.NewManager(d.root, wg, db, d.cfg.WireGuard.ConfDir)

	d.pool = mikrotik.NewPool(d.root)
	prober := mikrotik.NewProber(d.root, db, d.cfg.ReachTimeout())
	probes := probe.New(d.root, d.pool)

	sender := alert.NewSender(d.root, db, d.cfg.Telegram.APIBase, d.cfg.NotifyTimeout())
	evaluator := alert.NewEvaluator(d.root, sender, db)

	d.hub = fanout.NewHub(d.root, db)
	d.sched = scheduler.New(d.root, db, d.tunnels, probes, d.hub, evaluator)

	api := server.New(server.Options{
		Logger:       d.root,
		DB:           db,
		Workers:      d.sched,
		Tunnels:      d.tunnels,
		Prober:       prober,
		Alerts:       evaluator,
		Streams:      d.hub,
		WG:           wg,
		AuthSecret:   d.cfg.Auth.Secret,
		TelegramAPI:  d.cfg.Telegram.APIBase,
		ReachTimeout: d.cfg.ReachTimeout(),
	})

	socketPath := d.cfg.Server.ControlSocket
	if socketPath == "" {
		socketPath = control.ResolveSocketPath()
	}
	d.control = control.NewServer(socketPath, d.status, d.root)

	// Resume workers before opening the API: monitoring continuity
	// does not wait for the first HTTP request.
	if err := d.sched.StartAll(ctx); err != nil {
		d.shutdown()
		return fmt.Errorf("resuming sensor workers: %w", err)
	}

	if err := d.control.Start(); err != nil {
		d.shutdown()
		return fmt.Errorf("starting control server: %w", err)
	}

	ln, err := net.Listen("tcp", d.cfg.Server.ListenAddr)
	if err != nil {
		d.shutdown()
		return fmt.Errorf("listening on %s: %w", d.cfg.Server.ListenAddr, err)
	}
	d.mu.Lock()
	d.addr = ln.Addr().String()
	d.mu.Unlock()

	d.httpSrv = &http.Server{Handler: api.Handler()}

	serveErr := make(chan error, 1)
	go func() {
		if err := d.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	d.log.Info("daemon started",
		"addr", d.Addr(),
		"db", d.cfg.Database.Path,
		"workers", d.sched.Running(),
	)

	select {
	case <-ctx.Done():
		d.shutdown()
		return ctx.Err()
	case err := <-serveErr:
		d.shutdown()
		return fmt.Errorf("http server: %w", err)
	}
}

// Addr returns the bound HTTP listen address, or "" before the
// listener is up. With a ":0" config this is how callers find the port.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// status snapshots every subsystem for the control socket.
func (d *Daemon) status() control.Status {
	return control.Status{
		UptimeSeconds:  time.Since(d.started).Seconds(),
		Workers:        d.sched.Running(),
		WorkerSensors:  d.sched.SensorIDs(),
		Tunnels:        d.tunnels.Snapshot(),
		PooledSessions: d.pool.Size(),
		Subscribers:    d.hub.Subscribers(),
	}
}

// shutdown stops subsystems in reverse dependency order: the listener
// first so no new work arrives, then the workers (they hold tunnel
// refcounts), then the fan-out, tunnels, sessions, control socket and
// finally the store. Fields still nil from a failed startup are
// skipped.
func (d *Daemon) shutdown() {
	d.log.Info("shutting down")

	if d.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := d.httpSrv.Shutdown(ctx); err != nil {
			d.log.Warn("http server shutdown", "error", err)
		}
		cancel()
	}
	if d.sched != nil {
		d.sched.StopAll()
	}
	if d.hub != nil {
		d.hub.Close()
	}
	if d.tunnels != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		d.tunnels.TeardownAll(ctx)
		cancel()
	}
	if d.pool != nil {
		d.pool.CloseAll()
	}
	if d.control != nil {
		if err := d.control.Stop(); err != nil {
			d.log.Warn("stopping control server", "error", err)
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			d.log.Warn("closing database", "error", err)
		}
	}

	d.log.Info("daemon stopped")
}
