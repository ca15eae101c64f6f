package realtimerobot

import (
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/bluez"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/gpio"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/peripheral"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/pwm"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/config"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/drive"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/link"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/mapper"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	LinkConfig       = config.LinkConfig
	PollConfig       = config.PollConfig
	DriveConfig      = config.DriveConfig
	ControllerConfig = config.ControllerConfig
	IndicatorConfig  = config.IndicatorConfig
	MetricsConfig    = config.MetricsConfig
	LoggingConfig    = config.LoggingConfig
	TelemetryConfig  = config.TelemetryConfig

	// Filter selects the controller to connect to.
	Filter = link.Filter
	// MapperConfig chooses the mapping mode and thresholds.
	MapperConfig = mapper.Config
	// StageConfig holds motor pins and duty limits.
	StageConfig = drive.Config
	MotorPins   = drive.MotorPins
	// SerialConfig points at the motor board.
	SerialConfig     = pwm.SerialConfig
	BlueZConfig      = bluez.Config
	PeripheralConfig = peripheral.Config
	GPIOConfig       = gpio.Config
	// Policy controls telemetry queue and batch sizes.
	Policy = ports.Policy
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig reads YAML from memory.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}

// DefaultConfig is the configuration of an empty file.
func DefaultConfig() *Config {
	return config.Default()
}
