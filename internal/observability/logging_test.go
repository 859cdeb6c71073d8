package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "info", Format: "text", Output: &buf})

	log.Info(context.Background(), "provider configured",
		"detail", "key sk-ant-REDACTED in use")

	out := buf.String()
	if strings.Contains(out, "sk-ant-REDACTED") {
		t.Fatalf("credential leaked: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("redaction marker missing: %s", out)
	}
}

func TestLoggerIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})

	ctx := WithSessionKey(context.Background(), "telegram:42")
	ctx = WithChannel(ctx, "telegram")
	log.Info(ctx, "turn complete")

	out := buf.String()
	if !strings.Contains(out, `"session_key":"telegram:42"`) {
		t.Fatalf("session key missing: %s", out)
	}
	if !strings.Contains(out, `"channel":"telegram"`) {
		t.Fatalf("channel missing: %s", out)
	}
}

func TestLoggerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "warn", Format: "text", Output: &buf})

	log.Info(context.Background(), "should be suppressed")
	log.Warn(context.Background(), "should appear")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Fatalf("info record emitted at warn level: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("warn record missing: %s", out)
	}
}
