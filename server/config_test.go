package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tickzone/protocol"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zone.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfigEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.TickInterval() != 50*time.Millisecond {
		t.Fatalf("TickInterval = %v", cfg.TickInterval())
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
zone_name: "  Harbor  "
listen_addr: 127.0.0.1:4000
ticks_per_second: 30
receive_window: 5ms
max_send_errors: 7
websocket: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ZoneName != "Harbor" || cfg.ListenAddr != "127.0.0.1:4000" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ReceiveWindow != 5*time.Millisecond || cfg.MaxSendErrors != 7 || !cfg.WebSocket {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.MaxOutboundPackets != DefaultConfig().MaxOutboundPackets {
		t.Fatalf("unset key lost its default: %d", cfg.MaxOutboundPackets)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	path := writeConfig(t, `
ticks_per_second: 5000
max_frame_size: 8
enemies: -1
`)
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"ticks_per_second", "max_frame_size", "enemies"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); !os.IsNotExist(err) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestNormalizeKeepsBlockingReceive(t *testing.T) {
	cfg := Config{}
	cfg.Normalize()
	if cfg.ReceiveWindow != 0 {
		t.Fatalf("zero receive window must stay zero (block until data)")
	}
	if cfg.TicksPerSecond != 20 || cfg.MaxSendErrors != DefaultMaxSendErrors {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestValidateRejectsFramesTheServerCannotSend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFrameSize = protocol.DefaultMaxFrameSize + 1
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "max_frame_size") {
		t.Fatalf("err = %v", err)
	}
	cfg.MaxFrameSize = protocol.DefaultMaxFrameSize
	if err := cfg.Validate(); err != nil {
		t.Fatalf("limit itself rejected: %v", err)
	}
}

func TestDefaultConfigLeavesChatUnthrottled(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ChatRate != 0 {
		t.Fatalf("ChatRate = %v", cfg.ChatRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
