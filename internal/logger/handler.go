package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// lineHandler renders records as "[YYYY-MM-DD HH:MM:SS] [LEVEL] message
// key=value ...", matching the daemon's required log line format. info and
// warn records go to stdout; error (and above) go to stderr.
type lineHandler struct {
	level     slog.Leveler
	stdout    io.Writer
	stderr    io.Writer
	mu        *sync.Mutex
	attrs     []slog.Attr
	groupPath []string
}

func newLineHandler(stdout, stderr io.Writer, level slog.Leveler) *lineHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &lineHandler{
		level:  level,
		stdout: stdout,
		stderr: stderr,
		mu:     &sync.Mutex{},
	}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.WriteString(r.Time.Format("2006-01-02 15:04:05"))
	buf.WriteString("] [")
	buf.WriteString(levelLabel(r.Level))
	buf.WriteString("] ")
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&buf, h.groupPath, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, h.groupPath, a)
		return true
	})
	buf.WriteByte('\n')

	w := h.stdout
	if r.Level >= slog.LevelError {
		w = h.stderr
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := w.Write(buf.Bytes())
	return err
}

func writeAttr(buf *bytes.Buffer, group []string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	buf.WriteByte(' ')
	for _, g := range group {
		buf.WriteString(g)
		buf.WriteByte('.')
	}
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	fmt.Fprintf(buf, "%v", a.Value.Any())
}

func levelLabel(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groupPath = append(append([]string{}, h.groupPath...), name)
	return &next
}
