package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || cfg.DefaultRooms != 5 || cfg.SignalBuffer != 32 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.PingPeriod != 54*time.Second || cfg.NegotiationTimeout != 10*time.Second {
		t.Fatalf("durations = %v %v", cfg.PingPeriod, cfg.NegotiationTimeout)
	}
	if cfg.RTC.UDPPortMin != 40000 || cfg.RTC.UDPPortMax != 49999 || cfg.RTC.IncludeLoopback {
		t.Fatalf("rtc = %+v", cfg.RTC)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
mode: debug
port: 9000
default_rooms: 2
negotiation_timeout: 3s
rtc:
  ice_servers: ["stun:example.org:3478"]
  udp_port_min: 50000
  udp_port_max: 50100
  include_loopback: true
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "debug" || cfg.Port != 9000 || cfg.DefaultRooms != 2 || cfg.NegotiationTimeout != 3*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.RTC.ICEServers) != 1 || cfg.RTC.ICEServers[0] != "stun:example.org:3478" || cfg.RTC.UDPPortMin != 50000 || !cfg.RTC.IncludeLoopback {
		t.Fatalf("rtc = %+v", cfg.RTC)
	}
}

func TestLoadFileEnv(t *testing.T) {
	t.Setenv("HUDDLE_PORT", "7070")
	t.Setenv("HUDDLE_DEFAULT_ROOMS", "9")
	cfg, err := LoadFile(writeConfig(t, "port: 9000\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 7070 || cfg.DefaultRooms != 9 {
		t.Fatalf("env not applied: port=%d rooms=%d", cfg.Port, cfg.DefaultRooms)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"no rooms":   "default_rooms: 0\n",
		"no buffer":  "signal_buffer: 0\n",
		"port range": "rtc:\n  udp_port_min: 5000\n  udp_port_max: 4000\n",
	} {
		if _, err := LoadFile(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
