package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"
	"testing"
)

func TestNew_LogLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"debug level", "debug"},
		{"info level", "info"},
		{"warn level", "warn"},
		{"error level", "error"},
		{"invalid level defaults to info", "invalid"},
		{"empty level defaults to info", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.level, "text")
			if l == nil {
				t.Fatal("New() returned nil logger")
			}
			if l.Handler() == nil {
				t.Error("logger handler should not be nil")
			}
		})
	}
}

func TestNew_LogFormats(t *testing.T) {
	for _, format := range []string{"text", "json", "invalid", ""} {
		t.Run(format, func(t *testing.T) {
			l := New("info", format)
			if l == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

var linePattern = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] \[(DEBUG|INFO|WARN|ERROR)\] `)

func TestTextFormat_LineShape(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := NewWithWriters(&stdout, &stderr, "info", "text")

	l.Info("worker spawned", "worker", "svc-a")

	line := stdout.String()
	if !linePattern.MatchString(line) {
		t.Errorf("line %q does not match required format", line)
	}
	if !strings.Contains(line, "worker spawned") {
		t.Errorf("line %q missing message", line)
	}
	if !strings.Contains(line, "worker=svc-a") {
		t.Errorf("line %q missing attr", line)
	}
}

func TestTextFormat_InfoAndWarnGoToStdout(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := NewWithWriters(&stdout, &stderr, "debug", "text")

	l.Info("info line")
	l.Warn("warn line")

	if stderr.Len() != 0 {
		t.Errorf("stderr = %q, want empty", stderr.String())
	}
	if !strings.Contains(stdout.String(), "info line") || !strings.Contains(stdout.String(), "warn line") {
		t.Errorf("stdout = %q, want both lines", stdout.String())
	}
}

func TestTextFormat_ErrorGoesToStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := NewWithWriters(&stdout, &stderr, "debug", "text")

	l.Error("boom")

	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
	if !strings.Contains(stderr.String(), "boom") {
		t.Errorf("stderr = %q, want error line", stderr.String())
	}
}

func TestTextFormat_LevelFiltering(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := NewWithWriters(&stdout, &stderr, "warn", "text")

	l.Debug("hidden")
	l.Info("also hidden")
	l.Warn("visible")

	if strings.Contains(stdout.String(), "hidden") {
		t.Errorf("stdout = %q, want debug/info suppressed below warn level", stdout.String())
	}
	if !strings.Contains(stdout.String(), "visible") {
		t.Errorf("stdout = %q, want warn line present", stdout.String())
	}
}

func TestJSONFormat_ProducesJSONHandler(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := NewWithWriters(&stdout, &stderr, "info", "json")

	l.Info("hello")

	if !strings.HasPrefix(strings.TrimSpace(stdout.String()), "{") {
		t.Errorf("stdout = %q, want JSON object", stdout.String())
	}
}

func TestLineHandler_WithAttrsAndGroup(t *testing.T) {
	var stdout, stderr bytes.Buffer
	base := NewWithWriters(&stdout, &stderr, "info", "text")
	child := base.With("worker", "svc-a").WithGroup("spawn")

	child.Info("attempt", "count", 1)

	line := stdout.String()
	if !strings.Contains(line, "worker=svc-a") {
		t.Errorf("line %q missing inherited attr", line)
	}
	if !strings.Contains(line, "spawn.count=1") {
		t.Errorf("line %q missing grouped attr", line)
	}
}

var _ slog.Handler = (*lineHandler)(nil)
