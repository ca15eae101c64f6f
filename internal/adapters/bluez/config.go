package bluez

import (
	"errors"
	"strings"
	"time"
)

// Config selects the BlueZ adapter and tunes discovery.
type Config struct {
	Adapter      string        `yaml:"adapter"`
	ScanBuffer   int           `yaml:"scan_buffer"`
	ResolvePoll  time.Duration `yaml:"resolve_poll"`
	DuplicateAds bool          `yaml:"duplicate_ads"`
}

func (c *Config) ApplyDefaults() {
	if c.Adapter == "" {
		c.Adapter = "hci0"
	}
	if c.ScanBuffer <= 0 {
		c.ScanBuffer = 64
	}
	if c.ResolvePoll <= 0 {
		c.ResolvePoll = 200 * time.Millisecond
	}
}

func (c *Config) Validate() error {
	if c.Adapter == "" {
		return errors.New("adapter is required")
	}
	if strings.ContainsAny(c.Adapter, "/ .") {
		return errors.New("adapter must be a bare interface name such as hci0")
	}
	return nil
}
