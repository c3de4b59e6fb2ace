package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo})

	logger.Info("lesson added", "topic", "Newton's Second Law")

	out := buf.String()
	if !strings.Contains(out, "lesson added") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "topic=") {
		t.Errorf("expected attribute in output, got %q", out)
	}
}

func TestNewWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("search complete", "hits", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "search complete" {
		t.Errorf("msg = %v, want %q", entry["msg"], "search complete")
	}
	if entry["hits"] != float64(3) {
		t.Errorf("hits = %v, want 3", entry["hits"])
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	logger.Debug("below threshold")
	logger.Info("also below")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "below threshold") || strings.Contains(out, "also below") {
		t.Errorf("messages below level leaked into output: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn message missing from output: %q", out)
	}
}

func TestNewNop_DiscardsOutput(t *testing.T) {
	logger := NewNop()

	// Must not panic and must accept all levels.
	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")
}
