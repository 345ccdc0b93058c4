package utils

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func resetLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	once = sync.Once{}
	loggerInstance = nil

	var buf bytes.Buffer
	logger := GetLogger()
	logger.SetOutput(&buf)
	return logger, &buf
}

func TestGetLogger(t *testing.T) {
	if GetLogger() != GetLogger() {
		t.Error("GetLogger() should return same singleton instance")
	}
}

func TestLoggerDefaultVerboseMode(t *testing.T) {
	logger, _ := resetLogger(t)
	if logger.IsVerbose() {
		t.Error("Logger should have verbose=false by default")
	}
}

func TestSetVerboseMode(t *testing.T) {
	logger, _ := resetLogger(t)

	SetVerboseMode(true)
	if !logger.IsVerbose() {
		t.Error("SetVerboseMode(true) should enable verbose mode")
	}

	SetVerboseMode(false)
	if logger.IsVerbose() {
		t.Error("SetVerboseMode(false) should disable verbose mode")
	}
}

func TestDebugOnlyShownWhenVerbose(t *testing.T) {
	logger, buf := resetLogger(t)

	logger.Debug("hidden message")
	if buf.Len() > 0 {
		t.Errorf("Debug should not output when verbose=false, got: %s", buf.String())
	}

	logger.SetVerbose(true)
	logger.Debug("visible %s", "message")

	out := buf.String()
	if !strings.Contains(out, "[DEBUG]") {
		t.Errorf("expected [DEBUG] prefix, got: %s", out)
	}
	if !strings.Contains(out, "visible message") {
		t.Errorf("expected formatted message, got: %s", out)
	}
}

func TestLogLevelPrefixes(t *testing.T) {
	tests := []struct {
		name   string
		log    func(l *Logger)
		prefix string
	}{
		{"info", func(l *Logger) { l.Info("hello") }, "[INFO]"},
		{"warn", func(l *Logger) { l.Warn("hello") }, "[WARN]"},
		{"error", func(l *Logger) { l.Error("hello") }, "[ERROR]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := resetLogger(t)
			tt.log(logger)
			if !strings.Contains(buf.String(), tt.prefix) {
				t.Errorf("expected %s in output, got: %s", tt.prefix, buf.String())
			}
		})
	}
}

func TestConvenienceFunctions(t *testing.T) {
	_, buf := resetLogger(t)

	Infof("synced %d reminders", 3)
	Warnf("cloud %s", "slow")
	Errorf("failed: %v", "boom")

	out := buf.String()
	for _, want := range []string{"synced 3 reminders", "cloud slow", "failed: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestLoggerThreadSafety(t *testing.T) {
	logger, _ := resetLogger(t)
	logger.SetOutput(io.Discard)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.SetVerbose(i%2 == 0)
			logger.Info("message %d", i)
			_ = logger.IsVerbose()
		}(i)
	}
	wg.Wait()
}

func TestBackgroundLoggerWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")

	bl, err := NewBackgroundLoggerWithPath(path)
	if err != nil {
		t.Fatalf("NewBackgroundLoggerWithPath error: %v", err)
	}
	if !bl.IsEnabled() {
		t.Fatal("expected logger to be enabled")
	}
	bl.Printf("refreshed %d reminders", 4)
	bl.Close()

	if bl.IsEnabled() {
		t.Error("expected logger to be disabled after Close")
	}
	bl.Printf("after close")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %s", len(lines), data)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["message"] != "refreshed 4 reminders" {
		t.Errorf("expected message field, got %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("expected level info, got %v", entry["level"])
	}
}

func TestBackgroundLoggerDisabled(t *testing.T) {
	bl, err := NewBackgroundLoggerWithEnabled(false)
	if err != nil {
		t.Fatalf("NewBackgroundLoggerWithEnabled error: %v", err)
	}
	if bl.IsEnabled() {
		t.Error("expected disabled logger")
	}
	if bl.GetLogPath() != "" {
		t.Errorf("expected empty log path, got %s", bl.GetLogPath())
	}
	bl.Printf("dropped")
}

func TestBackgroundLoggerBadPath(t *testing.T) {
	bl, err := NewBackgroundLoggerWithPath(filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	if err == nil {
		t.Fatal("expected error for unwritable path")
	}
	if bl == nil || bl.IsEnabled() {
		t.Error("expected a disabled logger on error")
	}
	bl.Printf("still safe")
}
