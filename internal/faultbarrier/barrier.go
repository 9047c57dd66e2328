// Package faultbarrier isolates worker bodies from in-process programming
// faults (recovered panics), so a panicking body does not take the whole
// daemon down, and logs host-level exceptions (SIGSEGV, SIGBUS, SIGILL and
// SIGFPE delivered to the process) before the process either exits or the
// signal's default disposition runs.
package faultbarrier

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// WorkerFault is the typed error FaultBarrier.Guard returns when the worker
// body panicked instead of returning an error normally.
type WorkerFault struct {
	Worker     string
	Diagnostic string
	Stack      string
}

func (f *WorkerFault) Error() string {
	return fmt.Sprintf("worker %q faulted: %s", f.Worker, f.Diagnostic)
}

// Body is a worker's supervised unit of work. It must be safe to invoke
// repeatedly: the supervision loop re-invokes it on every restart.
type Body func(ctx context.Context) error

// Guard invokes body, converting any panic into a *WorkerFault instead of
// letting it propagate past this call. The worker's name is attached to log
// lines so an operator can tell which supervised unit faulted.
func Guard(ctx context.Context, name string, logger *slog.Logger, body Body) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			logger.Error("worker body panicked, converting to fault",
				"worker", name,
				"panic", r,
			)
			err = &WorkerFault{
				Worker:     name,
				Diagnostic: fmt.Sprint(r),
				Stack:      stack,
			}
		}
	}()
	return body(ctx)
}
