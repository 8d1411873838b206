package logging_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nki-radiology/SegmentationReview/internal/config"
	"github.com/nki-radiology/SegmentationReview/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon starting")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "segreviewd.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "daemon starting") {
		t.Fatalf("expected log line in file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "debug",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerComposesSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-subject.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "review")
	logger.Info("loaded case",
		logging.String(logging.FieldPatientID, "P-0042"),
		logging.Int(logging.FieldCaseIndex, 3),
		logging.Int(logging.FieldCaseTotal, 17),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "[review]") {
		t.Fatalf("expected component tag in output, got %q", line)
	}
	if !strings.Contains(line, "P-0042 · case 3/17") {
		t.Fatalf("expected subject in output, got %q", line)
	}
	if strings.Contains(line, "patient_id") {
		t.Fatalf("expected subject fields to be lifted out of the kv list, got %q", line)
	}
}

func TestJSONLoggerFieldNames(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.json")

	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("structured", logging.String("directory", "/data/worklist"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	for _, key := range []string{"ts", "level", "msg", "directory"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("expected key %q in JSON output, got %v", key, decoded)
		}
	}
	if decoded["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", decoded["level"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsCaseFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ctx.log")

	base, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithCase(context.Background(), "P-0007", 2, 9)
	ctx = logging.WithCorrelationID(ctx, "req-123")
	logging.WithContext(ctx, base).Info("tagged")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if decoded[logging.FieldPatientID] != "P-0007" {
		t.Fatalf("expected patient tag, got %v", decoded)
	}
	if decoded[logging.FieldCorrelationID] != "req-123" {
		t.Fatalf("expected correlation tag, got %v", decoded)
	}
}

func TestRingHandlerTail(t *testing.T) {
	ring := logging.NewRingHandler(3, slog.LevelInfo)
	logger := slog.New(ring)

	logger.Debug("dropped")
	logger.Info("one")
	logger.Info("two")
	logger.Info("three")
	logger.Info("four")

	lines := ring.Tail(0)
	if len(lines) != 3 {
		t.Fatalf("expected 3 retained lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "two") || !strings.Contains(lines[2], "four") {
		t.Fatalf("expected oldest-first tail ending at newest, got %v", lines)
	}

	last := ring.Tail(1)
	if len(last) != 1 || !strings.Contains(last[0], "four") {
		t.Fatalf("expected single newest line, got %v", last)
	}
}

func TestTeeLoggerReachesRing(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tee.log")

	base, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ring := logging.NewRingHandler(10, slog.LevelInfo)
	logger := logging.TeeLogger(base, ring)
	logger.Info("shared line")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "shared line") {
		t.Fatalf("expected line in file output, got %q", content)
	}
	lines := ring.Tail(0)
	if len(lines) != 1 || !strings.Contains(lines[0], "shared line") {
		t.Fatalf("expected line in ring, got %v", lines)
	}
}
