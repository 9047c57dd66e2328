// Package shutdown implements the process-wide shutdown state machine:
// it receives OS signals, drives graceful -> forced -> terminate escalation,
// and broadcasts a one-way shutdown latch that every worker polls.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/procwatch/procwatchd/internal/tracing"
)

// Mode is ShutdownState.mode: it only ever moves forward, None -> Graceful
// -> Forced, never backwards.
type Mode int32

const (
	ModeNone Mode = iota
	ModeGraceful
	ModeForced
)

func (m Mode) String() string {
	switch m {
	case ModeGraceful:
		return "Graceful"
	case ModeForced:
		return "Forced"
	default:
		return "None"
	}
}

const (
	// DefaultGraceWindow is how long a graceful-class signal is given
	// before the watchdog escalates to forced shutdown.
	DefaultGraceWindow = 30 * time.Second
	// DefaultForceWindow is how long forced mode is given before the
	// watchdog self-terminates the process.
	DefaultForceWindow = 60 * time.Second
	// subsequentSignalThreshold: a second signal arriving within this
	// window of the first is treated as "still within grace"; after it,
	// any further signal escalates immediately. The spec that documents
	// this preserves the 5s figure without claiming it is principled.
	subsequentSignalThreshold = 5 * time.Second
)

// Controller is the process-wide ShutdownState singleton plus its signal
// handling and escalation watchdogs.
type Controller struct {
	logger *slog.Logger
	tracer *tracing.Provider

	GraceWindow time.Duration
	ForceWindow time.Duration

	requested         atomic.Bool
	mode              atomic.Int32
	gracefulStartedAt atomic.Int64 // UnixNano; 0 until set

	firstSignalOnce sync.Once
	firstSignalAt   atomic.Int64 // UnixNano

	exitFunc func(code int)
	sigCh    chan os.Signal
	doneCh   chan struct{}
}

// New constructs a Controller using the default grace/force windows. tracer
// may be nil, in which case escalation steps are not traced.
func New(logger *slog.Logger, tracer *tracing.Provider) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		logger:      logger,
		tracer:      tracer,
		GraceWindow: DefaultGraceWindow,
		ForceWindow: DefaultForceWindow,
		exitFunc:    os.Exit,
		doneCh:      make(chan struct{}),
	}
}

// traceEscalate records a mode transition as an instantaneous span, the way
// the rest of this supervisor traces discrete lifecycle steps rather than
// long-running operations. A nil tracer makes this a no-op.
func (c *Controller) traceEscalate(fromMode, toMode Mode, reason string) {
	if c.tracer == nil {
		return
	}
	_, span := c.tracer.StartShutdownEscalate(context.Background(), fromMode.String(), toMode.String(), reason)
	span.End()
}

// IsShutdownRequested is an atomic bool read, safe to call from the main
// loop and every worker body.
func (c *Controller) IsShutdownRequested() bool {
	return c.requested.Load()
}

// Mode returns the current escalation mode.
func (c *Controller) Mode() Mode {
	return Mode(c.mode.Load())
}

// Listen registers the controller's signal handler for the signals the
// supervisor treats as shutdown triggers. mainDone must be closed by the
// caller once its own main loop has terminated, so the watchdog can tell
// whether the grace window was honored.
func (c *Controller) Listen(mainDone <-chan struct{}) {
	c.sigCh = make(chan os.Signal, 4)
	signal.Notify(c.sigCh,
		syscall.SIGINT,  // interactive interrupt
		syscall.SIGQUIT, // interactive break
		syscall.SIGHUP,  // console close equivalent
		syscall.SIGTERM, // user logoff / system shutdown equivalent
	)

	go c.loop(mainDone)
}

// Stop unregisters the signal handler. It does not reverse any shutdown
// already in progress; shutdown is a one-way latch.
func (c *Controller) Stop() {
	if c.sigCh != nil {
		signal.Stop(c.sigCh)
	}
	close(c.doneCh)
}

func (c *Controller) loop(mainDone <-chan struct{}) {
	for {
		select {
		case sig := <-c.sigCh:
			c.handleSignal(sig, mainDone)
		case <-c.doneCh:
			return
		}
	}
}

func classifyImmediate(sig os.Signal) bool {
	switch sig {
	case syscall.SIGHUP, syscall.SIGTERM:
		return true
	default:
		return false
	}
}

func (c *Controller) handleSignal(sig os.Signal, mainDone <-chan struct{}) {
	now := time.Now()

	isFirst := false
	c.firstSignalOnce.Do(func() {
		isFirst = true
		c.firstSignalAt.Store(now.UnixNano())
		c.requested.Store(true)
		c.gracefulStartedAt.Store(now.UnixNano())
		c.mode.Store(int32(ModeGraceful))
	})

	if isFirst {
		c.logger.Warn("shutdown requested", "signal", sig.String())
		c.traceEscalate(ModeNone, ModeGraceful, "signal:"+sig.String())
		if classifyImmediate(sig) {
			c.mode.Store(int32(ModeForced))
			c.traceEscalate(ModeGraceful, ModeForced, "signal:"+sig.String()+" (immediate class)")
			go c.watchForce(mainDone)
		} else {
			go c.watchGrace(mainDone)
		}
		return
	}

	// Subsequent signal: escalate immediately once more than
	// subsequentSignalThreshold has passed since the first.
	firstAt := time.Unix(0, c.firstSignalAt.Load())
	if now.Sub(firstAt) > subsequentSignalThreshold {
		c.logger.Warn("subsequent shutdown signal received, escalating to forced", "signal", sig.String())
		if c.mode.Swap(int32(ModeForced)) != int32(ModeForced) {
			c.traceEscalate(ModeGraceful, ModeForced, "subsequent signal:"+sig.String())
			go c.watchForce(mainDone)
		}
	}
}

func (c *Controller) watchGrace(mainDone <-chan struct{}) {
	select {
	case <-mainDone:
		return
	case <-time.After(c.GraceWindow):
	}

	c.logger.Error("graceful shutdown window exceeded, escalating to forced", "grace_window", c.GraceWindow)
	c.mode.Store(int32(ModeForced))
	c.traceEscalate(ModeGraceful, ModeForced, "grace window exceeded")
	c.watchForce(mainDone)
}

func (c *Controller) watchForce(mainDone <-chan struct{}) {
	select {
	case <-mainDone:
		return
	case <-time.After(c.ForceWindow):
	}

	c.logger.Error("forced shutdown window exceeded, self-terminating", "force_window", c.ForceWindow)
	c.exitFunc(1)
}

// TriggerInternal activates the shutdown latch from an internal fatal-error
// path (such as a terminate-class host exception) rather than an OS signal.
// It is idempotent with Listen's own signal-driven activation.
func (c *Controller) TriggerInternal(reason string, mainDone <-chan struct{}) {
	now := time.Now()
	triggered := false
	c.firstSignalOnce.Do(func() {
		triggered = true
		c.firstSignalAt.Store(now.UnixNano())
		c.requested.Store(true)
		c.gracefulStartedAt.Store(now.UnixNano())
		c.mode.Store(int32(ModeForced))
	})
	if triggered {
		c.logger.Error("shutdown triggered internally", "reason", reason)
		c.traceEscalate(ModeNone, ModeForced, "internal:"+reason)
		go c.watchForce(mainDone)
	}
}
