// Package scheduler owns one probe worker per sensor. Workers are
// launched from the stored sensor set at boot and individually
// replaced when the API edits a sensor; each worker runs probe cycles
// until canceled and holds its origin tunnel's refcount for its whole
// lifetime.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vatojuan/MonitorNetwork/internal/store"
)

type workerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler is the sensor worker registry.
type Scheduler struct {
	logger  *slog.Logger
	db      Storage
	tunnels Tunnels
	probes  Prober
	fanout  Publisher
	alerts  Evaluator

	// sleep paces worker loops; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) bool

	base       context.Context
	cancelBase context.CancelFunc

	mu      sync.Mutex
	workers map[int64]*workerHandle
}

// New returns a scheduler wired to its collaborators. Workers live on
// the scheduler's own context so API request cancellation cannot kill
// them; StopAll ends everything.
func New(logger *slog.Logger, db Storage, tunnels Tunnels, probes Prober, fanout Publisher, alerts Evaluator) *Scheduler {
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:     logger.With("component", "scheduler"),
		db:         db,
		tunnels:    tunnels,
		probes:     probes,
		fanout:     fanout,
		alerts:     alerts,
		sleep:      sleepCtx,
		base:       base,
		cancelBase: cancel,
		workers:    make(map[int64]*workerHandle),
	}
}

// Launch starts the worker for a sensor, replacing (and waiting out)
// any worker already running for it. ctx covers only the sensor load;
// the worker itself runs on the scheduler's lifetime.
func (s *Scheduler) Launch(ctx context.Context, sensorID int64) error {
	rt, err := s.db.SensorRuntime(ctx, sensorID)
	if err != nil {
		return fmt.Errorf("loading sensor %d: %w", sensorID, err)
	}
	if rt.Sensor.Kind != store.KindPing && rt.Sensor.Kind != store.KindEthernet {
		return fmt.Errorf("sensor %d has unknown kind %q", sensorID, rt.Sensor.Kind)
	}

	wctx, cancel := context.WithCancel(s.base)
	h := &workerHandle{cancel: cancel, done: make(chan struct{})}

	// Swap under one lock so racing Launches cannot both install: each
	// displaces exactly the handle it saw, and every displaced handle
	// is canceled and waited out before its replacement starts.
	s.mu.Lock()
	old := s.workers[sensorID]
	s.workers[sensorID] = h
	s.mu.Unlock()

	if old != nil {
		old.cancel()
		<-old.done
		s.logger.Info("worker stopped", "sensor_id", sensorID)
	}

	go func() {
		defer close(h.done)
		defer s.forget(sensorID, h)
		s.runWorker(wctx, rt)
	}()

	s.logger.Info("worker launched", "sensor_id", sensorID, "kind", rt.Sensor.Kind)
	return nil
}

// Stop cancels the sensor's worker and waits for it to exit. Unknown
// sensors are a no-op.
func (s *Scheduler) Stop(sensorID int64) {
	s.mu.Lock()
	h, ok := s.workers[sensorID]
	if ok {
		delete(s.workers, sensorID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	h.cancel()
	<-h.done
	s.logger.Info("worker stopped", "sensor_id", sensorID)
}

// Restart reloads the sensor and replaces its worker.
func (s *Scheduler) Restart(ctx context.Context, sensorID int64) error {
	return s.Launch(ctx, sensorID)
}

// StartAll launches a worker for every stored sensor. Individual
// launch failures are logged, not fatal: one broken sensor must not
// keep the rest of the fleet down.
func (s *Scheduler) StartAll(ctx context.Context) error {
	ids, err := s.db.AllSensorIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing sensors: %w", err)
	}
	for _, id := range ids {
		if err := s.Launch(ctx, id); err != nil {
			s.logger.Warn("launching sensor worker", "sensor_id", id, "error", err)
		}
	}
	s.logger.Info("sensor workers started", "count", len(ids))
	return nil
}

// StopAll cancels every worker and waits for all of them to exit.
func (s *Scheduler) StopAll() {
	s.cancelBase()
	s.mu.Lock()
	handles := make([]*workerHandle, 0, len(s.workers))
	for _, h := range s.workers {
		handles = append(handles, h)
	}
	s.workers = make(map[int64]*workerHandle)
	s.mu.Unlock()

	for _, h := range handles {
		<-h.done
	}
	s.logger.Info("all workers stopped", "count", len(handles))
}

// Running returns the number of live workers.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// SensorIDs returns the ids of sensors with a live worker, sorted.
func (s *Scheduler) SensorIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.workers))
	for id := range s.workers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// forget drops the registry entry for a worker that exited on its own,
// unless a replacement has already taken the slot.
func (s *Scheduler) forget(sensorID int64, h *workerHandle) {
	s.mu.Lock()
	if s.workers[sensorID] == h {
		delete(s.workers, sensorID)
	}
	s.mu.Unlock()
}

// sleepCtx pauses for d, reporting false when ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
