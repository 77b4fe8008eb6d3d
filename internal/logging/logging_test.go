package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWithDataset_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := WithDataset(newLogger(&buf, "info"), "birds", 42)
	logger.Info("hello")

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["dataset"] != "birds" {
		t.Errorf("dataset = %v, want birds", rec["dataset"])
	}
	if rec["dataset_id"] != float64(42) {
		t.Errorf("dataset_id = %v, want 42", rec["dataset_id"])
	}
}

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record written at warn level: %q", buf.String())
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "****" {
		t.Errorf("SanitizeToken(short) = %q, want ****", got)
	}
	if got := SanitizeToken("abcd1234efgh"); got != "abcd...efgh" {
		t.Errorf("SanitizeToken = %q, want abcd...efgh", got)
	}
}
