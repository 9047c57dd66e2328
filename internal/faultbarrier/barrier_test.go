package faultbarrier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGuard_PassesThroughNormalError(t *testing.T) {
	want := errors.New("boom")
	err := Guard(context.Background(), "svc-a", discardLogger(), func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestGuard_PassesThroughNil(t *testing.T) {
	err := Guard(context.Background(), "svc-a", discardLogger(), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
}

func TestGuard_RecoversPanic(t *testing.T) {
	err := Guard(context.Background(), "svc-b", discardLogger(), func(ctx context.Context) error {
		panic("unexpected nil pointer")
	})
	if err == nil {
		t.Fatal("expected a fault error, got nil")
	}
	var fault *WorkerFault
	if !errors.As(err, &fault) {
		t.Fatalf("err type = %T, want *WorkerFault", err)
	}
	if fault.Worker != "svc-b" {
		t.Errorf("Worker = %q, want svc-b", fault.Worker)
	}
	if fault.Diagnostic != "unexpected nil pointer" {
		t.Errorf("Diagnostic = %q", fault.Diagnostic)
	}
	if fault.Stack == "" {
		t.Error("Stack is empty, want captured stack trace")
	}
}

func TestGuard_RecoversPanicWithErrorValue(t *testing.T) {
	cause := errors.New("division by zero")
	err := Guard(context.Background(), "svc-c", discardLogger(), func(ctx context.Context) error {
		panic(cause)
	})
	var fault *WorkerFault
	if !errors.As(err, &fault) {
		t.Fatalf("err type = %T, want *WorkerFault", err)
	}
	if fault.Diagnostic != cause.Error() {
		t.Errorf("Diagnostic = %q, want %q", fault.Diagnostic, cause.Error())
	}
}

func TestGuard_IsReinvocable(t *testing.T) {
	calls := 0
	body := func(ctx context.Context) error {
		calls++
		if calls == 1 {
			panic("first attempt fails")
		}
		return nil
	}
	if err := Guard(context.Background(), "svc-d", discardLogger(), body); err == nil {
		t.Fatal("expected fault on first invocation")
	}
	if err := Guard(context.Background(), "svc-d", discardLogger(), body); err != nil {
		t.Fatalf("second invocation: err = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
