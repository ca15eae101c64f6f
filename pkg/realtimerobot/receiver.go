package realtimerobot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/bluez"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/pwm"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/drive"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/link"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/mapper"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/registry"
	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// Receiver is the consumer role: it finds the controller, keeps the channel
// mirror current and drives the motors from it.
type Receiver struct {
	rt      *runtime
	radio   ports.Radio
	pwm     ports.PWM
	stage   *drive.Stage
	machine *link.Machine

	// radioErr is set when the default radio failed to come up; Run then
	// only blinks the power light.
	radioErr error

	closeOnce sync.Once
	closeErr  error
}

// NewReceiver wires the default adapters (BlueZ radio, serial motor board,
// Prometheus observability, optional TimescaleDB telemetry). Options
// override any of them.
func NewReceiver(cfg *Config, opts ...Option) (*Receiver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	ov := collectOverrides(opts)

	rt, err := newRuntime(cfg, "receiver", ov)
	if err != nil {
		return nil, err
	}
	r := &Receiver{rt: rt}

	r.pwm = ov.pwm
	if r.pwm == nil {
		if cfg.Drive.Serial.Port == "" {
			return nil, r.abort(errors.New("drive.serial.port is required unless a PWM is injected"))
		}
		serial, err := pwm.OpenSerial(cfg.Drive.Serial)
		if err != nil {
			return nil, r.abort(fmt.Errorf("open motor board: %w", err))
		}
		r.pwm = serial
	}

	r.stage, err = drive.NewStage(cfg.Drive.Stage, r.pwm)
	if err != nil {
		return nil, r.abort(err)
	}

	r.radio = ov.radio
	if r.radio == nil {
		radio, err := bluez.Open(cfg.Link.BlueZ)
		if err != nil {
			r.radioErr = err
			return r, nil
		}
		r.radio = radio
	}

	set, err := registry.NewSet(domain.DefaultChannels(), rt.obs)
	if err != nil {
		return nil, r.abort(err)
	}
	m, err := mapper.New(cfg.Mapper)
	if err != nil {
		return nil, r.abort(err)
	}
	r.machine, err = link.New(link.Deps{
		Radio:  r.radio,
		Set:    set,
		Mapper: m,
		Stage:  r.stage,
		Clock:  rt.clock,
		Obs:    rt.obs,
		Events: rt.events,
	}, cfg.LinkOptions())
	if err != nil {
		return nil, r.abort(err)
	}
	return r, nil
}

func (r *Receiver) abort(err error) error {
	return errors.Join(err, r.close())
}

// Run starts the link and blocks until ctx is cancelled. Outputs are zeroed
// on the way out. If the radio could not be initialized, Run blinks the
// power light until ctx is done and returns an error wrapping ErrRadioInit.
func (r *Receiver) Run(ctx context.Context) error {
	r.rt.start(ctx)

	var runErr error
	switch {
	case r.radioErr != nil:
		if err := r.stage.Stop(); err != nil {
			r.rt.obs.LogError("stop outputs failed", err)
		}
		runErr = r.rt.fatal(ctx, r.radioErr)
	default:
		runErr = r.runLink(ctx)
	}
	return errors.Join(runErr, r.close())
}

func (r *Receiver) runLink(ctx context.Context) error {
	if r.rt.cfg.Drive.Stage.SelfTestOnBoot {
		r.rt.obs.LogInfo("motor self test")
		if err := r.stage.SelfTest(ctx, r.rt.clock); err != nil && ctx.Err() == nil {
			r.rt.obs.LogError("motor self test failed", err)
		}
	}
	return r.machine.Run(ctx)
}

// SelfTest ramps every motor pin once and stops.
func (r *Receiver) SelfTest(ctx context.Context) error {
	err := r.stage.SelfTest(ctx, r.rt.clock)
	return errors.Join(err, r.close())
}

// State is the current link state. It is only meaningful from the goroutine
// that calls Run or after Run returns.
func (r *Receiver) State() LinkState {
	if r.machine == nil {
		return Scanning
	}
	return r.machine.State()
}

// LastCommand is the command most recently written to the motors.
func (r *Receiver) LastCommand() ActuatorCommand {
	if r.machine == nil {
		return domain.Stopped
	}
	return r.machine.LastCommand()
}

func (r *Receiver) close() error {
	r.closeOnce.Do(func() { r.closeErr = r.release() })
	return r.closeErr
}

func (r *Receiver) release() error {
	var errs []error
	if err := r.rt.stop(); err != nil {
		errs = append(errs, err)
	}
	if r.radio != nil {
		if err := r.radio.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close radio: %w", err))
		}
	}
	if r.pwm != nil {
		if err := r.pwm.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pwm: %w", err))
		}
	}
	return errors.Join(errs...)
}
