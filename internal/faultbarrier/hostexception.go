package faultbarrier

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/procwatch/procwatchd/internal/metrics"
)

// ExceptionCode classifies the structured host-level signals this process
// can receive. These are the closest POSIX equivalents of the
// access-violation / illegal-instruction / stack-overflow exception classes
// spec.md §4.2 describes for Windows SEH-style filters.
type ExceptionCode int

const (
	AccessViolation ExceptionCode = iota
	IllegalInstruction
	FloatingPointException
	BusError
	StackOverflow
)

func (c ExceptionCode) String() string {
	switch c {
	case AccessViolation:
		return "ACCESS_VIOLATION"
	case IllegalInstruction:
		return "ILLEGAL_INSTRUCTION"
	case FloatingPointException:
		return "FLOATING_POINT_EXCEPTION"
	case BusError:
		return "BUS_ERROR"
	case StackOverflow:
		return "STACK_OVERFLOW"
	default:
		return "UNKNOWN"
	}
}

// terminal reports whether this exception class must terminate the process
// after logging (spec.md §4.2: stack overflow and noncontinuable exceptions).
func (c ExceptionCode) terminal() bool {
	return c == StackOverflow || c == BusError
}

// ExceptionRecord is the diagnostic payload logged for every host exception.
//
// There is no Address field: Go's os/signal delivers only the signal value,
// not the siginfo_t the kernel captured (no portable stdlib path exposes
// the faulting address across platforms), so a faulting address can't be
// populated honestly here. spec.md §4.2's faulting-address requirement is
// met only as far as the platform allows; ThreadID and Sequence are what
// this filter can actually observe.
type ExceptionRecord struct {
	ID        string
	Code      ExceptionCode
	Signal    string
	ThreadID  int
	Timestamp time.Time
	Sequence  uint64
}

var (
	installed      atomic.Bool
	exceptionCount atomic.Uint64
	stopCh         chan struct{}
	prevHandlers   []os.Signal
)

// ErrAlreadyInstalled is returned by Install when a filter is already active.
var ErrAlreadyInstalled = fmt.Errorf("host exception filter: already installed")

// ExceptionCount returns the number of host exceptions observed since the
// process started, for operator visibility and tests. Install and Uninstall
// do not reset it.
func ExceptionCount() uint64 {
	return exceptionCount.Load()
}

// Install registers the process-wide host-exception filter exactly once. A
// second call without an intervening Uninstall fails with
// ErrAlreadyInstalled. collector may be nil, in which case host exceptions
// are still logged but not published as a metric.
func Install(logger *slog.Logger, collector *metrics.Collector) error {
	if !installed.CompareAndSwap(false, true) {
		return ErrAlreadyInstalled
	}

	// Lets the Go runtime turn invalid-memory-reference faults into
	// recoverable panics (runtime.Error with an Addr() method) instead of an
	// unconditional process fatal error. The setting applies only to the
	// goroutine that calls Install; other goroutines keep the default.
	debug.SetPanicOnFault(true)

	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGSEGV, syscall.SIGBUS, syscall.SIGILL, syscall.SIGFPE)
	stopCh = make(chan struct{})

	go func() {
		for {
			select {
			case sig := <-sigCh:
				handleSignal(logger, collector, sig)
			case <-stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	logger.Info("host exception filter installed")
	return nil
}

// Uninstall restores the prior disposition and allows a fresh Install later.
func Uninstall() {
	if !installed.CompareAndSwap(true, false) {
		return
	}
	close(stopCh)
}

func codeForSignal(sig os.Signal) ExceptionCode {
	switch sig {
	case syscall.SIGSEGV:
		return AccessViolation
	case syscall.SIGILL:
		return IllegalInstruction
	case syscall.SIGFPE:
		return FloatingPointException
	case syscall.SIGBUS:
		return BusError
	default:
		return AccessViolation
	}
}

func handleSignal(logger *slog.Logger, collector *metrics.Collector, sig os.Signal) {
	seq := exceptionCount.Add(1)
	code := codeForSignal(sig)
	if collector != nil {
		collector.ObserveHostException()
	}

	record := ExceptionRecord{
		ID:        uuid.NewString(),
		Code:      code,
		Signal:    sig.String(),
		ThreadID:  unix.Gettid(),
		Timestamp: time.Now(),
		Sequence:  seq,
	}

	logger.Error("host exception",
		"exception_id", record.ID,
		"code", record.Code.String(),
		"signal", record.Signal,
		"thread_id", record.ThreadID,
		"sequence", record.Sequence,
		"timestamp", record.Timestamp,
	)

	if code.terminal() {
		logger.Error("terminating process: non-recoverable host exception", "code", code.String())
		os.Exit(1)
	}

	// Yield to the default handler so the OS still produces a core dump /
	// crash report, exactly as an unhandled-exception filter that returns
	// EXCEPTION_CONTINUE_SEARCH would.
	reraise(sig.(syscall.Signal))
}

func reraise(sig syscall.Signal) {
	signal.Reset(sig)
	_ = syscall.Kill(os.Getpid(), sig)
}

// LogPanicAndRepanic is the "parallel hook" for language-level panics: it
// logs payload, source location, and goroutine stack before delegating to
// whatever the runtime would otherwise do (re-panicking lets a surrounding
// recover — or the default crash reporter — still run). Intended to be
// deferred at the top of any goroutine that is not already wrapped by
// faultbarrier.Guard, such as main() itself or shutdown watchdogs.
func LogPanicAndRepanic(logger *slog.Logger, context string) {
	if r := recover(); r != nil {
		buf := make([]byte, 1<<16)
		n := runtime.Stack(buf, false)
		logger.Error("panic",
			"context", context,
			"payload", fmt.Sprint(r),
			"stack", string(buf[:n]),
		)
		panic(r)
	}
}
