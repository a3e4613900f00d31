package core

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"", LevelInfo, false},
		{" INFO ", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatLogLine(t *testing.T) {
	got := formatLogLine(LevelWarn, "task rejected", F("runner", "pool"), F("reason", "shutting down"))
	want := "[WARN] task rejected {runner: pool, reason: shutting down}"
	if got != want {
		t.Errorf("formatLogLine = %q, want %q", got, want)
	}
	if got := formatLogLine(LevelInfo, "plain"); got != "[INFO] plain" {
		t.Errorf("formatLogLine without fields = %q", got)
	}
}

// TestLeveledLogger_DropsBelowMinimum verifies level filtering
// Given: A logger with minimum level warn writing into a buffer
// When: Messages at every level are logged
// Then: Only warn and error reach the output
func TestLeveledLogger_DropsBelowMinimum(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	}()

	l := NewLeveledLogger(LevelWarn)
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	out := buf.String()
	if strings.Contains(out, "[DEBUG]") || strings.Contains(out, "[INFO]") {
		t.Errorf("low-level messages leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN] w") || !strings.Contains(out, "[ERROR] e") {
		t.Errorf("expected warn and error lines, got %q", out)
	}

	buf.Reset()
	l.SetLevel(LevelDebug)
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "[DEBUG] now visible") {
		t.Errorf("SetLevel(debug) did not take effect: %q", buf.String())
	}
}
