package logging

import (
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONLines(t *testing.T) {
	projectDir := t.TempDir()
	logger, err := New(projectDir, "debug")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("behavior init failed", zap.String("behavior", "Fetch"))
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"msg":"behavior init failed"`) || !strings.Contains(line, `"behavior":"Fetch"`) {
		t.Fatalf("unexpected log contents: %s", line)
	}
}

func TestLevelFiltersEntries(t *testing.T) {
	logger, err := New(t.TempDir(), "warn")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	_ = logger.Close()
	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "quiet") || !strings.Contains(string(data), "loud") {
		t.Fatalf("level not applied: %s", data)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"DEBUG": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("chatty"); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
	if _, err := New(t.TempDir(), "chatty"); err == nil {
		t.Fatalf("expected New to reject unknown level")
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	if l.Path() != "" || l.Close() != nil {
		t.Fatalf("nil logger should be inert")
	}
}
