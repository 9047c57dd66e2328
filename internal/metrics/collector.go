// Package metrics exposes the supervisor's Prometheus instrumentation:
// per-worker up/down state, restart counters split by cause, host exception
// counts, and worker state as a label so an operator can chart transitions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RestartReason labels why a restart happened, mirroring the two
// independent restart counters the supervision model keeps per worker.
type RestartReason string

const (
	RestartReasonChildExit RestartReason = "child_exit"
	RestartReasonFault     RestartReason = "fault"
)

// Collector owns every metric the daemon publishes. A fresh Collector can
// be built against its own prometheus.Registry, so tests don't collide on
// the global default registry.
type Collector struct {
	WorkerUp       *prometheus.GaugeVec
	WorkerRestarts *prometheus.CounterVec
	HostExceptions prometheus.Counter
	WorkerState    *prometheus.GaugeVec
}

// New constructs a Collector and registers its metrics against reg. The
// serve command and the tests each pass their own prometheus.NewRegistry();
// NewDefault registers against prometheus.DefaultRegisterer instead.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		WorkerUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "procwatch_worker_up",
			Help: "Whether a worker's child process is currently running (1) or not (0).",
		}, []string{"worker"}),

		WorkerRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "procwatch_worker_restarts_total",
			Help: "Total restarts performed per worker, split by cause.",
		}, []string{"worker", "reason"}),

		HostExceptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "procwatch_host_exceptions_total",
			Help: "Total host-level structured exceptions observed by the fault barrier.",
		}),

		WorkerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "procwatch_worker_state",
			Help: "Current supervision state per worker (1 for the active state, 0 otherwise).",
		}, []string{"worker", "state"}),
	}
}

// NewDefault builds a Collector registered against prometheus's global
// default registry.
func NewDefault() *Collector {
	return New(prometheus.DefaultRegisterer)
}

// ObserveRestart increments the restart counter for worker under reason.
func (c *Collector) ObserveRestart(worker string, reason RestartReason) {
	c.WorkerRestarts.WithLabelValues(worker, string(reason)).Inc()
}

// SetWorkerUp records whether worker's child process is currently live.
func (c *Collector) SetWorkerUp(worker string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	c.WorkerUp.WithLabelValues(worker).Set(v)
}

// SetWorkerState marks state as the active state for worker, zeroing the
// others this collector has seen for that worker's known state set.
func (c *Collector) SetWorkerState(worker, state string, knownStates []string) {
	for _, s := range knownStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		c.WorkerState.WithLabelValues(worker, s).Set(v)
	}
}

// ObserveHostException increments the process-wide host exception counter.
func (c *Collector) ObserveHostException() {
	c.HostExceptions.Inc()
}
