package realtimerobot

import (
	"context"

	base "github.com/Eric-Butcher/RealTimeRobot/pkg/realtimerobot"
)

// Re-exported errors for convenience.
var (
	ErrRadioInit         = base.ErrRadioInit
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/Eric-Butcher/RealTimeRobot directly.
type (
	Config           = base.Config
	LinkConfig       = base.LinkConfig
	PollConfig       = base.PollConfig
	DriveConfig      = base.DriveConfig
	ControllerConfig = base.ControllerConfig
	IndicatorConfig  = base.IndicatorConfig
	MetricsConfig    = base.MetricsConfig
	LoggingConfig    = base.LoggingConfig
	TelemetryConfig  = base.TelemetryConfig
	Filter           = base.Filter
	MapperConfig     = base.MapperConfig
	StageConfig      = base.StageConfig
	MotorPins        = base.MotorPins
	SerialConfig     = base.SerialConfig
	BlueZConfig      = base.BlueZConfig
	PeripheralConfig = base.PeripheralConfig
	GPIOConfig       = base.GPIOConfig
	Policy           = base.Policy
	Receiver         = base.Receiver
	Controller       = base.Controller
	Option           = base.Option
	Event            = base.Event
	EventKind        = base.EventKind
	EventBatchSink   = base.EventBatchSink
	EventSink        = base.EventSink
	Radio            = base.Radio
	Peripheral       = base.Peripheral
	InputSampler     = base.InputSampler
	PWM              = base.PWM
	Indicator        = base.Indicator
	Clock            = base.Clock
	Observability    = base.Observability
	LinkState        = base.LinkState
	ControllerState  = base.ControllerState
	ActuatorCommand  = base.ActuatorCommand
	Channel          = base.Channel
)

// Link states.
const (
	Scanning      = base.Scanning
	Connecting    = base.Connecting
	Resolving     = base.Resolving
	Operating     = base.Operating
	Disconnecting = base.Disconnecting
)

// Event kinds.
const (
	EventTransition = base.EventTransition
	EventDiscovery  = base.EventDiscovery
	EventResolve    = base.EventResolve
	EventTick       = base.EventTick
	EventFault      = base.EventFault
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Roles.
func NewReceiver(cfg *Config, opts ...Option) (*Receiver, error) {
	return base.NewReceiver(cfg, opts...)
}

func NewController(cfg *Config, opts ...Option) (*Controller, error) {
	return base.NewController(cfg, opts...)
}

func RunSimulation(ctx context.Context, cfg *Config, opts ...Option) error {
	return base.RunSimulation(ctx, cfg, opts...)
}

func DefaultChannels() []Channel {
	return base.DefaultChannels()
}

// Options.
func WithRadio(r Radio) Option { return base.WithRadio(r) }
func WithPWM(p PWM) Option { return base.WithPWM(p) }
func WithClock(c Clock) Option { return base.WithClock(c) }
func WithObservability(obs Observability) Option { return base.WithObservability(obs) }
func WithEventSink(s EventSink) Option { return base.WithEventSink(s) }
func WithPeripheral(p Peripheral) Option { return base.WithPeripheral(p) }
func WithSampler(s InputSampler) Option { return base.WithSampler(s) }
func WithIndicators(link, power Indicator) Option {
	return base.WithIndicators(link, power)
}

// Sink adapters.
func NewCallbackSink(name string, fn EventBatchSink, kinds ...EventKind) EventSink {
	return base.NewCallbackSink(name, fn, kinds...)
}

func NewChannelSink(name string, buffer int, kinds ...EventKind) (EventSink, <-chan []Event, func()) {
	return base.NewChannelSink(name, buffer, kinds...)
}
