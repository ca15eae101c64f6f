package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/bluez"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/gpio"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/peripheral"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/pwm"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/drive"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/link"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/mapper"
	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

const (
	MinPollInterval = 10 * time.Millisecond
	MaxPollInterval = 5 * time.Second
)

type Config struct {
	Link       LinkConfig       `yaml:"link"`
	Poll       PollConfig       `yaml:"poll"`
	Mapper     mapper.Config    `yaml:"mapper"`
	Drive      DriveConfig      `yaml:"drive"`
	Controller ControllerConfig `yaml:"controller"`
	Indicator  IndicatorConfig  `yaml:"indicator"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

type LinkConfig struct {
	Filter         link.Filter   `yaml:"filter"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
	BlueZ          bluez.Config  `yaml:"bluez"`
}

type PollConfig struct {
	MinInterval time.Duration `yaml:"min_interval"`
	IdleSleep   time.Duration `yaml:"idle_sleep"`
	// StaleAfter of zero keeps driving from the last known values forever.
	StaleAfter time.Duration `yaml:"stale_after"`
}

type DriveConfig struct {
	Stage  drive.Config     `yaml:",inline"`
	Serial pwm.SerialConfig `yaml:"serial"`
}

type ControllerConfig struct {
	Peripheral     peripheral.Config `yaml:",inline"`
	CentralAddress string            `yaml:"central_address"`
	SampleInterval time.Duration     `yaml:"sample_interval"`
	GPIO           gpio.Config       `yaml:"gpio"`
}

type IndicatorConfig struct {
	FatalPeriod time.Duration `yaml:"fatal_period"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig enables the event sink. An empty ConnString keeps events
// in process only.
type TelemetryConfig struct {
	Policy     ports.Policy `yaml:",inline"`
	ConnString string       `yaml:"conn_string"`
	Table      string       `yaml:"table"`
	TickEvents bool         `yaml:"tick_events"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default is the configuration of an empty file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LinkOptions converts the link and poll sections for the state machine.
func (c *Config) LinkOptions() link.Options {
	return link.Options{
		Filter:         c.Link.Filter,
		ConnectTimeout: c.Link.ConnectTimeout,
		ResolveTimeout: c.Link.ResolveTimeout,
		MinInterval:    c.Poll.MinInterval,
		IdleSleep:      c.Poll.IdleSleep,
		StaleAfter:     c.Poll.StaleAfter,
		TickEvents:     c.Telemetry.TickEvents,
	}
}

func (c *Config) applyDefaults() {
	if c.Link.Filter.Empty() {
		c.Link.Filter.ServiceUUID = domain.ControllerServiceUUID
	}
	if c.Link.ConnectTimeout == 0 {
		c.Link.ConnectTimeout = 10 * time.Second
	}
	if c.Link.ResolveTimeout == 0 {
		c.Link.ResolveTimeout = 10 * time.Second
	}
	c.Link.BlueZ.ApplyDefaults()

	if c.Poll.MinInterval == 0 {
		c.Poll.MinInterval = 500 * time.Millisecond
	}
	if c.Poll.IdleSleep == 0 {
		c.Poll.IdleSleep = 5 * time.Millisecond
	}

	c.Drive.Stage.ApplyDefaults()
	c.Drive.Serial.ApplyDefaults()
	c.Mapper.DutyFloor = c.Drive.Stage.Floor()
	c.Mapper.DutyMax = c.Drive.Stage.DutyMax
	c.Mapper.ApplyDefaults()

	c.Controller.Peripheral.ApplyDefaults()
	if c.Controller.SampleInterval == 0 {
		c.Controller.SampleInterval = 200 * time.Millisecond
	}
	c.Controller.GPIO.ApplyDefaults()

	if c.Indicator.FatalPeriod == 0 {
		c.Indicator.FatalPeriod = 200 * time.Millisecond
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	if c.Telemetry.Policy.MaxQueueLen == 0 {
		c.Telemetry.Policy.MaxQueueLen = 10_000
	}
	if c.Telemetry.Policy.MaxBatchSize == 0 {
		c.Telemetry.Policy.MaxBatchSize = 500
	}
	if c.Telemetry.Policy.IdleSleep == 0 {
		c.Telemetry.Policy.IdleSleep = 50 * time.Millisecond
	}
	if c.Telemetry.Table == "" {
		c.Telemetry.Table = "realtimerobot_events"
	}
}

func (c *Config) validate() error {
	for _, a := range c.Link.Filter.Addresses {
		if a == "" {
			return errors.New("link.filter.addresses must not contain empty entries")
		}
	}
	if c.Link.ConnectTimeout < 0 || c.Link.ResolveTimeout < 0 {
		return errors.New("link timeouts must not be negative")
	}
	if err := c.Link.BlueZ.Validate(); err != nil {
		return fmt.Errorf("link.bluez: %w", err)
	}

	if c.Poll.MinInterval < MinPollInterval || c.Poll.MinInterval > MaxPollInterval {
		return fmt.Errorf("poll.min_interval %s outside [%s, %s]", c.Poll.MinInterval, MinPollInterval, MaxPollInterval)
	}
	if c.Poll.IdleSleep < 0 || c.Poll.StaleAfter < 0 {
		return errors.New("poll durations must not be negative")
	}
	if c.Poll.StaleAfter > 0 && c.Poll.StaleAfter < c.Poll.MinInterval {
		return fmt.Errorf("poll.stale_after %s is shorter than poll.min_interval", c.Poll.StaleAfter)
	}

	if err := c.Mapper.Validate(); err != nil {
		return fmt.Errorf("mapper: %w", err)
	}
	if err := c.Drive.Stage.Validate(); err != nil {
		return fmt.Errorf("drive: %w", err)
	}
	// Without a port the bot role needs an injected PWM.
	if c.Drive.Serial.Port != "" {
		if err := c.Drive.Serial.Validate(); err != nil {
			return fmt.Errorf("drive.serial: %w", err)
		}
	}

	if err := c.Controller.Peripheral.Validate(); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	if c.Controller.SampleInterval < MinPollInterval {
		return fmt.Errorf("controller.sample_interval must be at least %s", MinPollInterval)
	}
	if err := c.Controller.GPIO.Validate(); err != nil {
		return fmt.Errorf("controller.gpio: %w", err)
	}

	if c.Indicator.FatalPeriod < 0 {
		return errors.New("indicator.fatal_period must not be negative")
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}

	if c.Telemetry.Policy.MaxQueueLen <= 0 || c.Telemetry.Policy.MaxBatchSize <= 0 {
		return errors.New("telemetry queue and batch sizes must be positive")
	}
	if c.Telemetry.Policy.MaxBatchSize > c.Telemetry.Policy.MaxQueueLen {
		return errors.New("telemetry.max_batch_size exceeds telemetry.max_queue_len")
	}
	return nil
}
