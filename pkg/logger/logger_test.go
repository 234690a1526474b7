package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"fatal", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetGlobalIgnoresNil(t *testing.T) {
	before := Global()
	SetGlobal(nil)
	if Global() != before {
		t.Fatal("SetGlobal(nil) replaced the global logger")
	}
}

func TestNewWritesJSONToOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visra.log")
	log, err := New(Options{Level: "warn", Output: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Named("directory").WithSession("s1").Info("dropped")
	log.Named("directory").WithSession("s1").Warn("history unreadable")
	log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %q, want only the warning", lines)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if entry["component"] != "directory" || entry["session_id"] != "s1" || entry["msg"] != "history unreadable" {
		t.Errorf("entry = %v", entry)
	}
}
