package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expect    slog.Level
		expectErr bool
	}{
		{"debug", "debug", slog.LevelDebug, false},
		{"default-info", "", slog.LevelInfo, false},
		{"warn", "warn", slog.LevelWarn, false},
		{"warning-alias", "WARNING", slog.LevelWarn, false},
		{"error", "error", slog.LevelError, false},
		{"invalid", "verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := levelFromString(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error for input %q", tt.input)
				}
				if !strings.Contains(err.Error(), "invalid log level") {
					t.Fatalf("unexpected error message: %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if level != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, level)
			}
		})
	}
}

func TestInitAndL(t *testing.T) {
	t.Cleanup(func() {
		// reset singleton for other tests
		once = sync.Once{}
		global = nil
	})

	logger, err := Init(Config{Level: "debug", Environment: "dev", WithSource: true})
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if logger == nil {
		t.Fatalf("Init returned nil logger")
	}
	if L() != logger {
		t.Fatalf("L did not return initialized logger")
	}

	logger2, err := Init(Config{Level: "info", Environment: "prod"})
	if err != nil {
		t.Fatalf("unexpected error on second init: %v", err)
	}
	if logger2 != logger {
		t.Fatalf("expected same logger instance on re-init")
	}
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.log")

	logger, err := New(Config{Level: "info", Environment: "prod", File: path})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("written to file", slog.String("job_id", "abc"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"job_id":"abc"`) {
		t.Fatalf("log file missing record: %s", data)
	}
}

func TestLogChunkEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	LogChunkEvent(logger, "transcribe", "success", 2, 1500, "")
	if out := buf.String(); !strings.Contains(out, `"chunk_index":2`) || strings.Contains(out, "error_code") {
		t.Fatalf("unexpected success record: %s", out)
	}

	buf.Reset()
	LogChunkEvent(logger, "transcribe", "error", 3, 20, "BACKEND_HTTP_ERROR", slog.Any("error", errors.New("status 502")))
	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, `"error_code":"BACKEND_HTTP_ERROR"`) {
		t.Fatalf("unexpected error record: %s", out)
	}
	if !strings.Contains(out, `"error":"status 502"`) {
		t.Fatalf("error attr missing: %s", out)
	}

	buf.Reset()
	LogChunkEvent(logger.With("component", "pipeline"), "transcribe", "success", 0, 1, "")
	out = buf.String()
	if strings.Count(out, `"component":`) != 1 || !strings.Contains(out, `"stage":"transcribe"`) {
		t.Fatalf("unexpected keys: %s", out)
	}
}
