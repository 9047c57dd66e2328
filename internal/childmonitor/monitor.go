// Package childmonitor implements the worker body that spawns and supervises
// a single OS child process on behalf of one ProcessSpec.
package childmonitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/procwatch/procwatchd/internal/config"
	"github.com/procwatch/procwatchd/internal/metrics"
	"github.com/procwatch/procwatchd/internal/registry"
	"github.com/procwatch/procwatchd/internal/restartpolicy"
	"github.com/procwatch/procwatchd/internal/tracing"
)

// terminationGrace is how long a terminated child is given to exit after
// SIGTERM before SIGKILL is sent to its process group.
const terminationGrace = 5 * time.Second

// pollInterval is how often the poll loop wakes to re-check the shutdown
// flag while a child is running.
const pollInterval = 250 * time.Millisecond

// Monitor is a ChildProcessMonitor: a registry worker body specialized to
// spawn, poll, restart, and terminate one OS child process per ProcessSpec.
// Its restart counter is independent of the registry's in-process fault
// counter for the same worker: child exits are the primary restart driver
// here, and an in-process fault in Run itself is counted separately by the
// registry's own supervision loop.
type Monitor struct {
	spec    config.ProcessSpec
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Provider

	restartCount atomic.Uint64
	pid          atomic.Int32
}

// New constructs a Monitor for spec. logger is tagged with the worker name
// on every line it emits. collector and tracer may both be nil, in which
// case restart metrics are not published and spawn attempts are not traced.
func New(spec config.ProcessSpec, logger *slog.Logger, collector *metrics.Collector, tracer *tracing.Provider) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		spec:    spec,
		logger:  logger.With("worker", spec.Name),
		metrics: collector,
		tracer:  tracer,
	}
}

// RestartCount reports how many times this monitor has restarted its child
// due to exit, independent of any in-process fault restarts the owning
// registry worker may also have accumulated.
func (m *Monitor) RestartCount() uint64 {
	return m.restartCount.Load()
}

// PID reports the most recently spawned child's process id, or 0 if no
// child is currently live.
func (m *Monitor) PID() int32 {
	return m.pid.Load()
}

// Body adapts Run to the registry's worker Body signature.
func (m *Monitor) Body() registry.Body {
	return m.Run
}

// Run is the ChildProcessMonitor body loop described by the supervision
// spec: spawn, poll for exit, apply the restart policy on exit, and
// terminate on shutdown. ctx is not used for child cancellation directly
// (termination goes through process-group signals so the child gets a
// chance to shut down cleanly); it is accepted to satisfy registry.Body.
func (m *Monitor) Run(ctx context.Context, shutdown registry.ShutdownFlag) error {
	for {
		if shutdown.Requested() {
			return nil
		}

		if err := config.Validate(m.spec); err != nil {
			return fmt.Errorf("childmonitor %q: spawn precondition failed: %w", m.spec.Name, err)
		}

		cmd, err := m.spawnTraced(ctx)
		if err != nil {
			return fmt.Errorf("childmonitor %q: spawn failed: %w", m.spec.Name, err)
		}

		exitCh := make(chan error, 1)
		go func() { exitCh <- cmd.Wait() }()

		if exited := m.poll(shutdown, exitCh, cmd); !exited {
			m.terminateAndWait(cmd, exitCh)
			return nil
		}

		decision := restartpolicy.Evaluate(m.spec.RestartPolicy, int(m.restartCount.Load()))
		if !decision.ShouldRestart {
			return nil
		}
		if shutdown.Requested() {
			return nil
		}

		m.restartCount.Add(1)
		if m.metrics != nil {
			m.metrics.ObserveRestart(m.spec.Name, metrics.RestartReasonChildExit)
		}
		sleepInterruptible(decision.Delay, shutdown)

		if shutdown.Requested() {
			return nil
		}
	}
}

// spawnTraced wraps one spawn attempt in a worker.spawn span when a tracer
// is configured, recording the outcome before returning it.
func (m *Monitor) spawnTraced(ctx context.Context) (*exec.Cmd, error) {
	if m.tracer == nil {
		return m.spawn()
	}
	_, span := m.tracer.StartSpawn(ctx, m.spec.Name, m.restartCount.Load())
	cmd, err := m.spawn()
	tracing.EndWithError(span, err)
	return cmd, err
}

func (m *Monitor) spawn() (*exec.Cmd, error) {
	cmd := exec.Command(m.spec.ExecutablePath, m.spec.Arguments...)
	cmd.Dir = m.spec.WorkingDir
	cmd.Env = append(os.Environ(), envPairs(m.spec.Environment)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	m.pid.Store(int32(cmd.Process.Pid))
	m.logger.Info("child spawned", "pid", cmd.Process.Pid)
	return cmd, nil
}

// poll blocks until either the child exits (true) or shutdown is requested
// while the child is still alive (false).
func (m *Monitor) poll(shutdown registry.ShutdownFlag, exitCh <-chan error, cmd *exec.Cmd) bool {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-exitCh:
			m.pid.Store(0)
			m.logExit(cmd, err)
			return true
		case <-ticker.C:
			if shutdown.Requested() {
				return false
			}
		}
	}
}

func (m *Monitor) logExit(cmd *exec.Cmd, err error) {
	code := 0
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		m.logger.Warn("child exited", "pid", cmd.Process.Pid, "exit_code", code, "error", err)
		return
	}
	m.logger.Info("child exited", "pid", cmd.Process.Pid, "exit_code", code)
}

// terminateAndWait signals the child's process group to stop, escalating to
// SIGKILL if it has not exited within terminationGrace.
func (m *Monitor) terminateAndWait(cmd *exec.Cmd, exitCh <-chan error) {
	signalGroup(cmd, syscall.SIGTERM)

	select {
	case err := <-exitCh:
		m.pid.Store(0)
		m.logExit(cmd, err)
		return
	case <-time.After(terminationGrace):
	}

	m.logger.Warn("child ignored SIGTERM, sending SIGKILL", "pid", cmd.Process.Pid)
	signalGroup(cmd, syscall.SIGKILL)
	<-exitCh
	m.pid.Store(0)
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Signal(sig)
		return
	}
	_ = syscall.Kill(-pgid, sig)
}

func envPairs(env map[string]string) []string {
	pairs := make([]string, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, k+"="+v)
	}
	return pairs
}

func sleepInterruptible(d time.Duration, shutdown registry.ShutdownFlag) {
	const quantum = 500 * time.Millisecond

	deadline := time.Now().Add(d)
	for {
		if shutdown.Requested() {
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
