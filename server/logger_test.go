package server

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitLoggerWritesJSONFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	path := filepath.Join(t.TempDir(), "zone.log")
	cfg := DefaultConfig()
	cfg.LogFile = path
	cfg.LogLevel = "debug"
	if err := InitLogger(cfg.LogOptions()); err != nil {
		t.Fatalf("InitLogger: %v", err)
	}
	Log.Debugw("transport unhealthy", "conn", 7)
	SyncLogger()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	line := strings.TrimSpace(string(b))
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", line)
	}
	if entry["msg"] != "transport unhealthy" || entry["conn"] != float64(7) || entry["level"] != "debug" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	if err := InitLogger(LogOptions{Level: "chatty"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if Log != prev {
		t.Fatalf("logger replaced despite error")
	}
}
