package faultbarrier

import (
	"io"
	"log/slog"
	"testing"
)

func TestInstall_RejectsDoubleInstall(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := Install(logger, nil); err != nil {
		t.Fatalf("first Install() error = %v", err)
	}
	defer Uninstall()

	if err := Install(logger, nil); err != ErrAlreadyInstalled {
		t.Fatalf("second Install() error = %v, want ErrAlreadyInstalled", err)
	}
}

func TestInstall_UninstallAllowsReinstall(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := Install(logger, nil); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	Uninstall()

	if err := Install(logger, nil); err != nil {
		t.Fatalf("Install() after Uninstall() error = %v, want nil", err)
	}
	Uninstall()
}

func TestExceptionCode_String(t *testing.T) {
	cases := map[ExceptionCode]string{
		AccessViolation:         "ACCESS_VIOLATION",
		IllegalInstruction:      "ILLEGAL_INSTRUCTION",
		FloatingPointException:  "FLOATING_POINT_EXCEPTION",
		BusError:                "BUS_ERROR",
		StackOverflow:           "STACK_OVERFLOW",
		ExceptionCode(99):       "UNKNOWN",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", code, got, want)
		}
	}
}

func TestExceptionCode_Terminal(t *testing.T) {
	terminal := []ExceptionCode{StackOverflow, BusError}
	for _, c := range terminal {
		if !c.terminal() {
			t.Errorf("%v.terminal() = false, want true", c)
		}
	}
	nonTerminal := []ExceptionCode{AccessViolation, IllegalInstruction, FloatingPointException}
	for _, c := range nonTerminal {
		if c.terminal() {
			t.Errorf("%v.terminal() = true, want false", c)
		}
	}
}
