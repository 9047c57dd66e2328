package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/procwatch/procwatchd/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForStatus(t *testing.T, reg *Registry, id WorkerId, want Status, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, info := range reg.List() {
			if info.ID == id && info.Status == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("worker %d never reached status %v", id, want)
}

func TestCreateWorker_IdsStrictlyIncrease(t *testing.T) {
	reg := New(testLogger(), nil)
	body := func(ctx context.Context, sf ShutdownFlag) error { return nil }

	var prev WorkerId
	for i := 0; i < 5; i++ {
		id, err := reg.CreateWorker("svc", body, false, config.DefaultRestartPolicy())
		if err != nil {
			t.Fatalf("CreateWorker() error = %v", err)
		}
		if id <= prev {
			t.Fatalf("id %d did not strictly increase from %d", id, prev)
		}
		prev = id
	}
	reg.StopAll()
}

func TestWorker_CleanReturnBecomesStopped(t *testing.T) {
	reg := New(testLogger(), nil)
	body := func(ctx context.Context, sf ShutdownFlag) error { return nil }

	id, err := reg.CreateWorker("svc-clean", body, false, config.DefaultRestartPolicy())
	if err != nil {
		t.Fatalf("CreateWorker() error = %v", err)
	}
	waitForStatus(t, reg, id, StatusStopped, time.Second)
}

func TestWorker_FaultWithoutRestartBecomesFailed(t *testing.T) {
	reg := New(testLogger(), nil)
	body := func(ctx context.Context, sf ShutdownFlag) error { panic("boom") }

	id, err := reg.CreateWorker("svc-fail", body, false, config.DefaultRestartPolicy())
	if err != nil {
		t.Fatalf("CreateWorker() error = %v", err)
	}
	waitForStatus(t, reg, id, StatusFailed, time.Second)
}

func TestWorker_RestartsThenFailsWhenBudgetExhausted(t *testing.T) {
	reg := New(testLogger(), nil)
	policy := config.RestartPolicy{
		MaxRestarts:       2,
		BaseDelay:         0,
		BackoffMultiplier: 1.0,
		MaxDelay:          time.Second,
	}
	attempts := 0
	body := func(ctx context.Context, sf ShutdownFlag) error {
		attempts++
		return &attemptError{}
	}

	id, err := reg.CreateWorker("svc-restart", body, true, policy)
	if err != nil {
		t.Fatalf("CreateWorker() error = %v", err)
	}
	waitForStatus(t, reg, id, StatusFailed, 2*time.Second)

	if attempts != 3 { // 1 initial + 2 restarts
		t.Errorf("attempts = %d, want 3", attempts)
	}
	count, canRestart, found := reg.RestartInfo("svc-restart")
	if !found {
		t.Fatal("RestartInfo: worker not found")
	}
	if count != 2 {
		t.Errorf("restart count = %d, want 2", count)
	}
	if canRestart {
		t.Error("canRestart = true, want false after budget exhausted")
	}
}

type attemptError struct{}

func (e *attemptError) Error() string { return "attempt failed" }

func TestStopWorker_IsIdempotent(t *testing.T) {
	reg := New(testLogger(), nil)
	started := make(chan struct{})
	body := func(ctx context.Context, sf ShutdownFlag) error {
		close(started)
		for !sf.Requested() {
			time.Sleep(5 * time.Millisecond)
		}
		return nil
	}

	id, err := reg.CreateWorker("svc-stop", body, false, config.DefaultRestartPolicy())
	if err != nil {
		t.Fatalf("CreateWorker() error = %v", err)
	}
	<-started

	if err := reg.StopWorker(id); err != nil {
		t.Fatalf("first StopWorker() error = %v", err)
	}
	if err := reg.StopWorker(id); err != nil {
		t.Fatalf("second StopWorker() error = %v", err)
	}
}

func TestStopWorker_UnknownIdIsNoop(t *testing.T) {
	reg := New(testLogger(), nil)
	if err := reg.StopWorker(WorkerId(99999)); err != nil {
		t.Fatalf("StopWorker(unknown) error = %v, want nil", err)
	}
}

func TestStopAll_ClearsRegistry(t *testing.T) {
	reg := New(testLogger(), nil)
	body := func(ctx context.Context, sf ShutdownFlag) error {
		for !sf.Requested() {
			time.Sleep(5 * time.Millisecond)
		}
		return nil
	}
	for i := 0; i < 3; i++ {
		if _, err := reg.CreateWorker("svc-multi", body, false, config.DefaultRestartPolicy()); err != nil {
			t.Fatalf("CreateWorker() error = %v", err)
		}
	}

	if err := reg.StopAll(); err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}
	if got := reg.List(); len(got) != 0 {
		t.Errorf("List() after StopAll = %v, want empty", got)
	}
}

func TestList_ReturnsSnapshot(t *testing.T) {
	reg := New(testLogger(), nil)
	body := func(ctx context.Context, sf ShutdownFlag) error {
		for !sf.Requested() {
			time.Sleep(5 * time.Millisecond)
		}
		return nil
	}
	id, err := reg.CreateWorker("svc-list", body, false, config.DefaultRestartPolicy())
	if err != nil {
		t.Fatalf("CreateWorker() error = %v", err)
	}

	found := false
	for _, info := range reg.List() {
		if info.ID == id {
			found = true
			if info.Name != "svc-list" {
				t.Errorf("Name = %q, want svc-list", info.Name)
			}
		}
	}
	if !found {
		t.Fatal("List() did not include created worker")
	}
	reg.StopWorker(id)
}
