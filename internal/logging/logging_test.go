package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "trace", want: zerolog.TraceLevel},
		{in: "DEBUG", want: zerolog.DebugLevel},
		{in: "warn", want: zerolog.WarnLevel},
		{in: "warning", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "", want: zerolog.InfoLevel},
		{in: "bogus", want: zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "warn", Writer: &buf})

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn line missing: %s", out)
	}
}

func TestComponentTagsLines(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(Options{Writer: &buf}), "guard")
	logger.Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("parse log line: %v", err)
	}
	if line["component"] != "guard" {
		t.Fatalf("component = %v", line["component"])
	}
	if _, ok := line["time"]; !ok {
		t.Fatal("expected timestamp field")
	}
}

type countingHook struct{ count int }

func (h *countingHook) Run(*zerolog.Event, zerolog.Level, string) { h.count++ }

func TestNewAttachesHooks(t *testing.T) {
	hook := &countingHook{}
	logger := New(Options{Writer: &bytes.Buffer{}, Hooks: []zerolog.Hook{hook}})
	logger.Info().Msg("one")
	logger.Error().Msg("two")
	if hook.count != 2 {
		t.Fatalf("hook ran %d times, want 2", hook.count)
	}
}
