package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tkoenig/watchlab/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Default()

	if cfg.Experiment.Repetitions != 3 {
		t.Errorf("Repetitions = %d, want 3", cfg.Experiment.Repetitions)
	}
	if cfg.Capture.Snaplen != 96 {
		t.Errorf("Snaplen = %d, want 96", cfg.Capture.Snaplen)
	}
	if cfg.Browser.DebugPort != 9222 {
		t.Errorf("DebugPort = %d, want 9222", cfg.Browser.DebugPort)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
[capture]
binary = "/opt/tools/tcpdump"
interface = "wlan0"

[experiment]
home_url = "https://example.test/"
repetitions = 5
fast_secs = 2
long_secs = 4

[[experiment.channels]]
name = "alpha"
link = "https://example.test/alpha"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Capture.Binary != "/opt/tools/tcpdump" {
		t.Errorf("Capture.Binary = %q, want /opt/tools/tcpdump", cfg.Capture.Binary)
	}
	if cfg.Capture.Interface != "wlan0" {
		t.Errorf("Capture.Interface = %q, want wlan0", cfg.Capture.Interface)
	}
	if cfg.Experiment.Repetitions != 5 {
		t.Errorf("Repetitions = %d, want 5", cfg.Experiment.Repetitions)
	}
	if len(cfg.Experiment.Channels) != 1 || cfg.Experiment.Channels[0].Name != "alpha" {
		t.Errorf("Channels = %v, want one channel named alpha", cfg.Experiment.Channels)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Experiment.Repetitions != 3 {
		t.Errorf("Repetitions = %d, want default 3", cfg.Experiment.Repetitions)
	}
}

func TestTiming_Derived(t *testing.T) {
	e := ExperimentConfig{FastSecs: 1, LongSecs: 2}
	timing := e.Timing()

	if timing.Fast != 1*time.Second {
		t.Errorf("Fast = %v, want 1s", timing.Fast)
	}
	if timing.Long != 2*time.Second {
		t.Errorf("Long = %v, want 2s", timing.Long)
	}
	if timing.Watch != 60*time.Second {
		t.Errorf("Watch = %v, want 60s", timing.Watch)
	}
	if timing.Drain != 4*time.Second {
		t.Errorf("Drain = %v, want 4s", timing.Drain)
	}
}

func TestLoadChannels_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "channels.yaml")

	content := `
- name: alpha
  link: https://example.test/alpha
- name: beta
  link: https://example.test/beta
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	channels, err := LoadChannels(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(channels) != 2 {
		t.Fatalf("len(channels) = %d, want 2", len(channels))
	}
	if channels[0].Name != "alpha" || channels[1].Name != "beta" {
		t.Errorf("channel order = %s, %s, want alpha, beta", channels[0].Name, channels[1].Name)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil for config without home_url and channels, want error")
	}

	cfg.Experiment.HomeURL = "https://example.test/"
	cfg.Experiment.Channels = []domain.Channel{{Name: "alpha", Link: "https://example.test/alpha"}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	cfg.Experiment.Repetitions = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil with zero repetitions, want error")
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/data", filepath.Join(home, "data")},
		{"/abs/path", "/abs/path"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ExpandPath(tt.input); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
