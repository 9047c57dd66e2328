package childmonitor

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/procwatch/procwatchd/internal/config"
	"github.com/procwatch/procwatchd/internal/metrics"
	"github.com/procwatch/procwatchd/internal/registry"
	"github.com/procwatch/procwatchd/internal/tracing"
)

// Spawner creates one registry worker per ProcessSpec and rejects attempts
// to register two workers under the same name, independent of whatever
// uniqueness the registry itself enforces (it enforces none: WorkerIds are
// unique, names are not).
type Spawner struct {
	reg     *registry.Registry
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Provider

	mu       sync.Mutex
	names    map[string]registry.WorkerId
	monitors map[registry.WorkerId]*Monitor
}

// NewSpawner returns a Spawner that registers workers in reg. collector and
// tracer are threaded into every Monitor it creates and may both be nil.
func NewSpawner(reg *registry.Registry, logger *slog.Logger, collector *metrics.Collector, tracer *tracing.Provider) *Spawner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Spawner{
		reg:      reg,
		logger:   logger,
		metrics:  collector,
		tracer:   tracer,
		names:    make(map[string]registry.WorkerId),
		monitors: make(map[registry.WorkerId]*Monitor),
	}
}

// Spawn registers a ChildProcessMonitor worker for spec. It fails if a
// worker with spec.Name is already registered through this Spawner.
func (s *Spawner) Spawn(spec config.ProcessSpec) (registry.WorkerId, error) {
	s.mu.Lock()
	if _, exists := s.names[spec.Name]; exists {
		s.mu.Unlock()
		return 0, fmt.Errorf("childmonitor: duplicate worker name %q", spec.Name)
	}
	s.mu.Unlock()

	mon := New(spec, s.logger, s.metrics, s.tracer)
	id, err := s.reg.CreateWorker(spec.Name, mon.Body(), true, spec.RestartPolicy)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.names[spec.Name] = id
	s.monitors[id] = mon
	s.mu.Unlock()

	return id, nil
}

// Monitor returns the ChildProcessMonitor backing the given worker id, if
// any was created through this Spawner.
func (s *Spawner) Monitor(id registry.WorkerId) (*Monitor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mon, ok := s.monitors[id]
	return mon, ok
}
