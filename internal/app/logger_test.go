package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/ashureev/astrovoice/internal/config"
)

func TestNewLogger_SetsDefault(t *testing.T) {
	logger := NewLogger(config.LogConfig{Level: "info", Format: "json"})
	if slog.Default().Handler() != logger.Handler() {
		t.Error("NewLogger should set the returned logger as slog default")
	}
}

func TestNewLogger_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		logger := newLogger(&buf, config.LogConfig{Level: tt.level, Format: "text"})

		logger.Log(context.Background(), tt.want, "visible")
		if buf.Len() == 0 {
			t.Errorf("level %q: expected output at %v", tt.level, tt.want)
		}
		buf.Reset()
		logger.Log(context.Background(), tt.want-1, "hidden")
		if buf.Len() != 0 {
			t.Errorf("level %q: output below threshold: %s", tt.level, buf.String())
		}
	}
}

func TestNewLogger_Formats(t *testing.T) {
	t.Parallel()

	var jsonBuf, textBuf bytes.Buffer
	newLogger(&jsonBuf, config.LogConfig{Format: "json"}).Info("hello", "k", "v")
	newLogger(&textBuf, config.LogConfig{Format: "text"}).Info("hello")

	var m map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if m["k"] != "v" {
		t.Errorf("missing attribute in %v", m)
	}
	if _, ok := m["source"]; ok {
		t.Error("json format should not include source")
	}
	if !strings.Contains(textBuf.String(), "source=") {
		t.Error("text format should include source")
	}
}
