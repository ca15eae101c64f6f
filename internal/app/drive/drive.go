// Package drive writes actuator commands to the motor pins.
package drive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// MotorPins is the forward and reverse output of one motor.
type MotorPins struct {
	Forward int `yaml:"forward"`
	Reverse int `yaml:"reverse"`
}

type Config struct {
	Motor1       MotorPins     `yaml:"motor1"`
	Motor2       MotorPins     `yaml:"motor2"`
	// DutyFloor is the least duty a moving motor receives. Nil means
	// DefaultDutyFloor; zero disables the floor.
	DutyFloor    *int          `yaml:"duty_floor"`
	DutyMax      int           `yaml:"duty_max"`
	SelfTestStep time.Duration `yaml:"self_test_step"`
	// SelfTestOnBoot ramps every pin once before the link starts.
	SelfTestOnBoot bool `yaml:"self_test_on_boot"`
}

// DefaultDutyFloor is the least duty that turns the motors on the original board.
const DefaultDutyFloor = 70

// Floor returns the configured duty floor, DefaultDutyFloor when unset.
func (c Config) Floor() int {
	if c.DutyFloor == nil {
		return DefaultDutyFloor
	}
	return *c.DutyFloor
}

func (c *Config) ApplyDefaults() {
	if c.Motor1 == (MotorPins{}) {
		c.Motor1 = MotorPins{Forward: 7, Reverse: 6}
	}
	if c.Motor2 == (MotorPins{}) {
		c.Motor2 = MotorPins{Forward: 4, Reverse: 5}
	}
	if c.DutyFloor == nil {
		floor := DefaultDutyFloor
		c.DutyFloor = &floor
	}
	if c.DutyMax == 0 {
		c.DutyMax = domain.DutyMax
	}
	if c.SelfTestStep <= 0 {
		c.SelfTestStep = 75 * time.Millisecond
	}
}

func (c *Config) Validate() error {
	pins := []int{c.Motor1.Forward, c.Motor1.Reverse, c.Motor2.Forward, c.Motor2.Reverse}
	seen := make(map[int]bool, len(pins))
	for _, p := range pins {
		if p < 0 {
			return fmt.Errorf("pin %d is negative", p)
		}
		if seen[p] {
			return fmt.Errorf("pin %d assigned twice", p)
		}
		seen[p] = true
	}
	if c.DutyMax <= 0 || c.DutyMax > domain.DutyMax {
		return fmt.Errorf("duty_max must be in (0, %d]", domain.DutyMax)
	}
	if floor := c.Floor(); floor < 0 || floor > c.DutyMax {
		return errors.New("duty_floor must be in [0, duty_max]")
	}
	return nil
}

// Split converts a signed drive into per-pin duty. At most one pin is non-zero.
// A non-zero magnitude is raised to floor and capped at max.
func Split(v, floor, max int) domain.PinDuty {
	switch {
	case v > 0:
		return domain.PinDuty{Forward: clamp(v, floor, max)}
	case v < 0:
		return domain.PinDuty{Reverse: clamp(-v, floor, max)}
	default:
		return domain.PinDuty{}
	}
}

func clamp(mag, floor, max int) uint8 {
	if mag < floor {
		mag = floor
	}
	if mag > max {
		mag = max
	}
	return uint8(mag)
}

// Stage owns the four drive pins.
type Stage struct {
	cfg Config
	pwm ports.PWM
}

func NewStage(cfg Config, pwm ports.PWM) (*Stage, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Stage{cfg: cfg, pwm: pwm}, nil
}

// Apply writes cmd. For each motor the zero pin is written before the active
// pin so both are never driven at once.
func (s *Stage) Apply(cmd domain.ActuatorCommand) error {
	return errors.Join(
		s.motor(s.cfg.Motor1, Split(cmd.Motor1, s.cfg.Floor(), s.cfg.DutyMax)),
		s.motor(s.cfg.Motor2, Split(cmd.Motor2, s.cfg.Floor(), s.cfg.DutyMax)),
	)
}

func (s *Stage) motor(pins MotorPins, d domain.PinDuty) error {
	if d.Forward == 0 {
		if err := s.pwm.SetDuty(pins.Forward, 0); err != nil {
			return err
		}
		return s.pwm.SetDuty(pins.Reverse, d.Reverse)
	}
	if err := s.pwm.SetDuty(pins.Reverse, 0); err != nil {
		return err
	}
	return s.pwm.SetDuty(pins.Forward, d.Forward)
}

// Stop writes zero to all four pins. Every pin is attempted even if one fails.
func (s *Stage) Stop() error {
	return errors.Join(
		s.pwm.SetDuty(s.cfg.Motor1.Forward, 0),
		s.pwm.SetDuty(s.cfg.Motor1.Reverse, 0),
		s.pwm.SetDuty(s.cfg.Motor2.Forward, 0),
		s.pwm.SetDuty(s.cfg.Motor2.Reverse, 0),
	)
}

// SelfTest ramps each pin in turn from the floor to max and back, then zeroes
// it. All pins are zeroed on return, including on cancellation.
func (s *Stage) SelfTest(ctx context.Context, clk ports.Clock) (err error) {
	defer func() {
		err = errors.Join(err, s.Stop())
	}()
	if err := s.Stop(); err != nil {
		return err
	}
	for _, pin := range []int{s.cfg.Motor1.Forward, s.cfg.Motor1.Reverse, s.cfg.Motor2.Forward, s.cfg.Motor2.Reverse} {
		for d := s.cfg.Floor(); d <= s.cfg.DutyMax; d++ {
			if err := s.step(ctx, clk, pin, d); err != nil {
				return err
			}
		}
		for d := s.cfg.DutyMax; d >= s.cfg.Floor(); d-- {
			if err := s.step(ctx, clk, pin, d); err != nil {
				return err
			}
		}
		if err := s.pwm.SetDuty(pin, 0); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stage) step(ctx context.Context, clk ports.Clock, pin, duty int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.pwm.SetDuty(pin, uint8(duty)); err != nil {
		return err
	}
	clk.Sleep(s.cfg.SelfTestStep)
	return nil
}
