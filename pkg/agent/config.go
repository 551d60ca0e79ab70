package agent

import (
	"path/filepath"
	"time"
)

const defaultTickInterval = 16 * time.Millisecond

// Config points to the data directory and to the user-driven configuration files.
// Live reload only applies to devices.yml.
type Config struct {
	DataDir       string `json:"dataDir"`
	DevicesConfig string `json:"devicesConfig"`

	// TickInterval is how often the application drains all registered channels.
	TickInterval    time.Duration `json:"tickInterval"`
	ChannelCapacity int           `json:"channelCapacity"`
	// Timeout stops Run after the given duration when non-zero.
	Timeout  time.Duration `json:"timeout"`
	LogLevel string        `json:"logLevel"`
	// Evdev enables the Linux event device backend in addition to the virtual one.
	Evdev bool `json:"evdev"`
	// EvdevPollInterval is how often udev is asked for connected event devices.
	EvdevPollInterval time.Duration `json:"evdevPollInterval"`
}

func DefaultConfig(configDir string) Config {
	return Config{
		DataDir:           filepath.Join(configDir, "data"),
		DevicesConfig:     filepath.Join(configDir, "devices.yml"),
		TickInterval:      defaultTickInterval,
		ChannelCapacity:   256,
		LogLevel:          "info",
		EvdevPollInterval: time.Second,
	}
}
