// Package registry implements the supervision tree: it owns every worker's
// lifecycle (spawn, monitor, restart, stop) behind a small map keyed by
// monotonically assigned WorkerId. Each worker runs its own goroutine; the
// registry itself holds no back-pointers into those goroutines beyond what
// it needs to join them, per the "interior shared state + thin owner"
// pattern.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/procwatch/procwatchd/internal/config"
	"github.com/procwatch/procwatchd/internal/faultbarrier"
	"github.com/procwatch/procwatchd/internal/metrics"
	"github.com/procwatch/procwatchd/internal/restartpolicy"
)

// WorkerId uniquely identifies a worker for the lifetime of the process.
// Values are assigned strictly increasing and are never reused.
type WorkerId uint64

// Status is a worker's place in the supervision state machine:
// Created -> (Stopped | Restarting | Failed); Restarting -> Created.
// Stopped and Failed are terminal.
type Status string

const (
	StatusCreated    Status = "Created"
	StatusRestarting Status = "Restarting"
	StatusStopped    Status = "Stopped"
	StatusFailed     Status = "Failed"
)

// ShutdownFlag is the read view of a worker's own shutdown signal, handed to
// the worker body on every invocation. It only ever transitions false -> true.
type ShutdownFlag struct {
	flag *atomic.Bool
}

// Requested reports whether this worker has been asked to stop.
func (s ShutdownFlag) Requested() bool {
	return s.flag.Load()
}

// Body is the unit of work a worker supervises. It must be safe to invoke
// repeatedly: the supervision loop re-invokes it on every restart, and must
// poll shutdown at its own blocking points.
type Body func(ctx context.Context, shutdown ShutdownFlag) error

// WorkerInfo is a point-in-time snapshot returned by List.
type WorkerInfo struct {
	ID     WorkerId
	Name   string
	Status Status
}

type record struct {
	id             WorkerId
	name           string
	restartEnabled bool
	policy         config.RestartPolicy

	statusMu      sync.RWMutex
	status        Status
	restartCount  uint64
	lastRestartAt time.Time

	shutdownFlag atomic.Bool
	done         chan struct{}
}

func (r *record) setStatus(s Status) {
	r.statusMu.Lock()
	r.status = s
	r.statusMu.Unlock()
}

func (r *record) snapshot() (Status, uint64, time.Time) {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.status, r.restartCount, r.lastRestartAt
}

func (r *record) recordRestart(at time.Time) uint64 {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.restartCount++
	r.lastRestartAt = at
	return r.restartCount
}

// Registry owns the map of live WorkerRecords.
type Registry struct {
	logger  *slog.Logger
	metrics *metrics.Collector

	mu      sync.Mutex
	workers map[WorkerId]*record
	nextID  atomic.Uint64
}

// New constructs an empty registry. logger is used for supervision-loop
// diagnostics; a nil logger falls back to slog.Default(). collector may be
// nil, in which case restart counts are not published as metrics (the
// registry itself never requires one to function).
func New(logger *slog.Logger, collector *metrics.Collector) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		metrics: collector,
		workers: make(map[WorkerId]*record),
	}
}

// CreateWorker allocates a WorkerId, registers the worker in state Created,
// and starts its supervision loop in a new goroutine.
func (r *Registry) CreateWorker(name string, body Body, restartEnabled bool, policy config.RestartPolicy) (WorkerId, error) {
	if body == nil {
		return 0, fmt.Errorf("registry: create_worker %q: body must not be nil", name)
	}

	id := WorkerId(r.nextID.Add(1))
	rec := &record{
		id:             id,
		name:           name,
		restartEnabled: restartEnabled,
		policy:         policy,
		status:         StatusCreated,
		done:           make(chan struct{}),
	}

	r.mu.Lock()
	r.workers[id] = rec
	r.mu.Unlock()

	go r.superviseWorker(rec, body)

	return id, nil
}

// superviseWorker is the supervision loop: invoke the body under the fault
// barrier, and on fault consult the restart policy before looping.
func (r *Registry) superviseWorker(rec *record, body Body) {
	defer close(rec.done)

	for {
		sf := ShutdownFlag{flag: &rec.shutdownFlag}
		err := faultbarrier.Guard(context.Background(), rec.name, r.logger, func(ctx context.Context) error {
			return body(ctx, sf)
		})

		if err == nil {
			rec.setStatus(StatusStopped)
			return
		}

		r.logger.Error("worker fault", "worker", rec.name, "worker_id", rec.id, "error", err)

		if !rec.restartEnabled {
			rec.setStatus(StatusFailed)
			return
		}

		_, count, _ := rec.snapshot()
		decision := restartpolicy.Evaluate(rec.policy, int(count))

		if !decision.ShouldRestart {
			rec.setStatus(StatusFailed)
			return
		}
		if rec.shutdownFlag.Load() {
			rec.setStatus(StatusStopped)
			return
		}

		rec.recordRestart(time.Now())
		rec.setStatus(StatusRestarting)
		if r.metrics != nil {
			r.metrics.ObserveRestart(rec.name, metrics.RestartReasonFault)
		}

		sleepInterruptible(decision.Delay, &rec.shutdownFlag)

		// Re-check after the sleep, not only before it: shutdown may have
		// been requested while this worker was backing off.
		if rec.shutdownFlag.Load() {
			rec.setStatus(StatusStopped)
			return
		}
		rec.setStatus(StatusCreated)
	}
}

// sleepInterruptible sleeps for d in short quanta, returning early as soon
// as flag is observed set, so shutdown latency is bounded by the quantum
// rather than by the full backoff delay.
func sleepInterruptible(d time.Duration, flag *atomic.Bool) {
	const quantum = 500 * time.Millisecond

	deadline := time.Now().Add(d)
	for {
		if flag.Load() {
			return
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if remaining > quantum {
			remaining = quantum
		}
		time.Sleep(remaining)
	}
}

// StopWorker sets the worker's shutdown flag and blocks until its
// supervision loop has exited. Calling it twice, or for an id that is no
// longer registered, is a no-op.
func (r *Registry) StopWorker(id WorkerId) error {
	r.mu.Lock()
	rec, ok := r.workers[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	rec.shutdownFlag.Store(true)
	<-rec.done
	return nil
}

// StopAll snapshots the id set under the registry lock, releases the lock,
// stops every worker concurrently, then clears the map.
func (r *Registry) StopAll() error {
	r.mu.Lock()
	ids := make([]WorkerId, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id WorkerId) {
			defer wg.Done()
			errs[i] = r.StopWorker(id)
		}(i, id)
	}
	wg.Wait()

	r.mu.Lock()
	r.workers = make(map[WorkerId]*record)
	r.mu.Unlock()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// List returns a snapshot of every registered worker's (id, name, status).
func (r *Registry) List() []WorkerInfo {
	r.mu.Lock()
	recs := make([]*record, 0, len(r.workers))
	for _, rec := range r.workers {
		recs = append(recs, rec)
	}
	r.mu.Unlock()

	infos := make([]WorkerInfo, len(recs))
	for i, rec := range recs {
		status, _, _ := rec.snapshot()
		infos[i] = WorkerInfo{ID: rec.id, Name: rec.name, Status: status}
	}
	return infos
}

// RestartInfo reports the restart count and whether the named worker may
// still restart, for operator visibility. found is false if no worker with
// that name is currently registered.
func (r *Registry) RestartInfo(name string) (count uint64, canRestart bool, found bool) {
	r.mu.Lock()
	var rec *record
	for _, candidate := range r.workers {
		if candidate.name == name {
			rec = candidate
			break
		}
	}
	r.mu.Unlock()

	if rec == nil {
		return 0, false, false
	}

	_, restartCount, _ := rec.snapshot()
	can := rec.restartEnabled && (rec.policy.Unbounded || restartCount < uint64(rec.policy.MaxRestarts))
	return restartCount, can, true
}
