package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrintfRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	Printf(l, slog.LevelDebug)("browser frame %d", 1)
	Printf(l, slog.LevelError)("browser crashed: %s", "target closed")

	out := buf.String()
	if strings.Contains(out, "browser frame") {
		t.Fatalf("debug line should be filtered: %s", out)
	}
	if !strings.Contains(out, "browser crashed: target closed") {
		t.Fatalf("expected error line, got %s", out)
	}
}

func TestPrintfNilLogger(t *testing.T) {
	t.Parallel()

	Printf(nil, slog.LevelInfo)("ignored %s", "value")
}
