package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func decodeEntries(t *testing.T, data []byte) []map[string]any {
	t.Helper()

	var entries []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger_WritesToLogDir(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelInfo, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("pipeline started", "input", "shot.png")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	entries := decodeEntries(t, data)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0]["msg"] != "pipeline started" {
		t.Errorf("msg = %v, want %q", entries[0]["msg"], "pipeline started")
	}
	if entries[0]["input"] != "shot.png" {
		t.Errorf("input = %v, want %q", entries[0]["input"], "shot.png")
	}
}

func TestNewLogger_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	logger, err := NewLogger(dir, LevelInfo, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(filepath.Join(dir, LogFileName)); err != nil {
		t.Errorf("log file was not created: %v", err)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{LevelDebug, []string{"debug", "info", "warn", "error"}},
		{LevelInfo, []string{"info", "warn", "error"}},
		{LevelWarn, []string{"warn", "error"}},
		{LevelError, []string{"error"}},
		{"nonsense", []string{"info", "warn", "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerTo(&buf, tt.level)

			logger.Debug("debug")
			logger.Info("info")
			logger.Warn("warn")
			logger.Error("error")

			entries := decodeEntries(t, buf.Bytes())
			if len(entries) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(entries), len(tt.want))
			}
			for i, msg := range tt.want {
				if entries[i]["msg"] != msg {
					t.Errorf("entry %d msg = %v, want %q", i, entries[i]["msg"], msg)
				}
			}
		})
	}
}

func TestLogger_ContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	root := NewLoggerTo(&buf, LevelDebug)

	run := root.WithRun("run-123")
	stage := run.WithStage("transcode").With("vertices", 42, 7, "skipped")

	stage.Info("transcoded")
	run.Info("run finished")
	root.Info("plain")

	entries := decodeEntries(t, buf.Bytes())
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	if entries[0]["run_id"] != "run-123" || entries[0]["stage"] != "transcode" {
		t.Errorf("stage entry = %v, want run_id and stage", entries[0])
	}
	if entries[0]["vertices"] != float64(42) {
		t.Errorf("vertices = %v, want 42", entries[0]["vertices"])
	}
	if _, ok := entries[1]["stage"]; ok {
		t.Error("parent logger should not inherit child stage")
	}
	if entries[1]["run_id"] != "run-123" {
		t.Errorf("run entry run_id = %v", entries[1]["run_id"])
	}
	if _, ok := entries[2]["run_id"]; ok {
		t.Error("root logger should carry no run_id")
	}
}

func TestLogger_WithNoArgsReturnsSame(t *testing.T) {
	logger := NopLogger()
	if got := logger.With(); got != logger {
		t.Error("With() with no args should return the receiver")
	}
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelInfo, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			child := logger.WithStage("poll")
			for j := 0; j < 20; j++ {
				child.Info("tick", "worker", n, "iteration", j)
			}
		}(i)
	}
	wg.Wait()
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if got := len(decodeEntries(t, data)); got != 200 {
		t.Errorf("got %d entries, want 200", got)
	}
}

func TestLogger_CloseTwice(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), LevelInfo, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", LevelDebug},
		{"Info", LevelInfo},
		{"WARN", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidLevels(t *testing.T) {
	levels := ValidLevels()
	if len(levels) != 4 {
		t.Fatalf("ValidLevels() returned %d levels, want 4", len(levels))
	}
	for _, level := range levels {
		if ParseLevel(level) != level {
			t.Errorf("ParseLevel(%q) should round-trip", level)
		}
	}
}
