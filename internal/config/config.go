package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/tkoenig/watchlab/internal/domain"
)

// Config holds all application configuration
type Config struct {
	Capture       CaptureConfig       `toml:"capture"`
	Browser       BrowserConfig       `toml:"browser"`
	Experiment    ExperimentConfig    `toml:"experiment"`
	Store         StoreConfig         `toml:"store"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// CaptureConfig holds packet-capture tool settings
type CaptureConfig struct {
	Binary    string `toml:"binary"`
	Interface string `toml:"interface"`
	Snaplen   int    `toml:"snaplen"`
}

// BrowserConfig holds browser-automation settings
type BrowserConfig struct {
	Binary         string `toml:"binary"`
	ProfileDir     string `toml:"profile_dir"`
	DebugPort      int    `toml:"debug_port"`
	NavTimeoutSecs int    `toml:"nav_timeout_secs"`
}

// NavTimeout returns the per-navigation timeout
func (b BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(b.NavTimeoutSecs) * time.Second
}

// ExperimentConfig holds the visitation script and timing settings
type ExperimentConfig struct {
	HomeURL      string           `toml:"home_url"`
	Repetitions  int              `toml:"repetitions"`
	FastSecs     int              `toml:"fast_secs"`
	LongSecs     int              `toml:"long_secs"`
	OutputDir    string           `toml:"output_dir"`
	ChannelsFile string           `toml:"channels_file"`
	Channels     []domain.Channel `toml:"channels"`
}

// StoreConfig holds run-history persistence settings
type StoreConfig struct {
	DatabasePath string `toml:"database_path"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// Timing is the set of wait intervals derived from the experiment config.
// Fast stabilizes the session, Long lets pages settle, Watch is the
// per-channel dwell time and Drain is the grace window before capture stops.
type Timing struct {
	Fast  time.Duration
	Long  time.Duration
	Watch time.Duration
	Drain time.Duration
}

// Timing derives the wait intervals: fast and long come straight from the
// config in seconds, watch is long x 30s and drain is twice long.
func (e ExperimentConfig) Timing() Timing {
	long := time.Duration(e.LongSecs) * time.Second
	return Timing{
		Fast:  time.Duration(e.FastSecs) * time.Second,
		Long:  long,
		Watch: time.Duration(e.LongSecs) * 30 * time.Second,
		Drain: 2 * long,
	}
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Capture: CaptureConfig{
			Binary:    "/usr/bin/tcpdump",
			Interface: "eth0",
			Snaplen:   96,
		},
		Browser: BrowserConfig{
			Binary:         "chromium",
			ProfileDir:     filepath.Join(home, ".watchlab", "profile"),
			DebugPort:      9222,
			NavTimeoutSecs: 30,
		},
		Experiment: ExperimentConfig{
			Repetitions: 3,
			FastSecs:    1,
			LongSecs:    2,
			OutputDir:   filepath.Join(home, ".watchlab", "out"),
		},
		Store: StoreConfig{
			DatabasePath: filepath.Join(home, ".watchlab", "watchlab.db"),
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.Browser.ProfileDir = ExpandPath(cfg.Browser.ProfileDir)
	cfg.Experiment.OutputDir = ExpandPath(cfg.Experiment.OutputDir)
	cfg.Experiment.ChannelsFile = ExpandPath(cfg.Experiment.ChannelsFile)
	cfg.Store.DatabasePath = ExpandPath(cfg.Store.DatabasePath)

	if cfg.Experiment.ChannelsFile != "" {
		channels, err := LoadChannels(cfg.Experiment.ChannelsFile)
		if err != nil {
			return nil, fmt.Errorf("loading channels file: %w", err)
		}
		cfg.Experiment.Channels = channels
	}

	return cfg, nil
}

// LoadChannels reads an ordered channel list from a YAML file
func LoadChannels(path string) ([]domain.Channel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var channels []domain.Channel
	if err := yaml.Unmarshal(data, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// Validate checks the settings the repetition loop depends on
func (c *Config) Validate() error {
	if c.Experiment.Repetitions < 1 {
		return fmt.Errorf("experiment.repetitions must be at least 1, got %d", c.Experiment.Repetitions)
	}
	if c.Experiment.HomeURL == "" {
		return fmt.Errorf("experiment.home_url is required")
	}
	if len(c.Experiment.Channels) == 0 {
		return fmt.Errorf("at least one channel must be configured")
	}
	for i, ch := range c.Experiment.Channels {
		if ch.Name == "" || ch.Link == "" {
			return fmt.Errorf("channel %d is missing a name or link", i)
		}
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "watchlab", "config.toml")
}
