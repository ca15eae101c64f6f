// Package mapper turns mirrored controller state into a drive command.
package mapper

import (
	"errors"
	"fmt"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
)

const (
	ModeThreeBand    = "three_band"
	ModeProportional = "proportional"
)

type Config struct {
	Mode          string `yaml:"mode"`
	Axis          string `yaml:"axis"`
	LowThreshold  int32  `yaml:"low_threshold"`
	HighThreshold int32  `yaml:"high_threshold"`
	// DutyFloor and DutyMax come from the drive section so the mapper and
	// the output stage always agree.
	DutyFloor int `yaml:"-"`
	DutyMax   int `yaml:"-"`
}

func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeThreeBand
	}
	if c.Axis == "" {
		c.Axis = domain.ThumbStickYAxis.String()
	}
	if c.LowThreshold == 0 && c.HighThreshold == 0 {
		c.LowThreshold = 1000
		c.HighThreshold = 3000
	}
	if c.DutyMax == 0 {
		c.DutyMax = domain.DutyMax
	}
}

func (c *Config) Validate() error {
	if c.Mode != ModeThreeBand && c.Mode != ModeProportional {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	id, err := domain.ParseChannelID(c.Axis)
	if err != nil {
		return err
	}
	if id != domain.ThumbStickXAxis && id != domain.ThumbStickYAxis {
		return fmt.Errorf("axis %q is not an axis channel", c.Axis)
	}
	if c.LowThreshold >= c.HighThreshold {
		return errors.New("low_threshold must be below high_threshold")
	}
	if c.LowThreshold < domain.AxisMin || c.HighThreshold > domain.AxisMax {
		return fmt.Errorf("thresholds must lie within [%d, %d]", domain.AxisMin, domain.AxisMax)
	}
	// Proportional mode scales over the travel beyond each threshold.
	if c.Mode == ModeProportional && (c.LowThreshold <= domain.AxisMin || c.HighThreshold >= domain.AxisMax) {
		return fmt.Errorf("proportional thresholds must lie strictly within (%d, %d)", domain.AxisMin, domain.AxisMax)
	}
	if c.DutyMax <= 0 || c.DutyMax > domain.DutyMax {
		return fmt.Errorf("duty_max must be in (0, %d]", domain.DutyMax)
	}
	if c.DutyFloor < 0 || c.DutyFloor > c.DutyMax {
		return errors.New("duty_floor must be in [0, duty_max]")
	}
	return nil
}

// Mapper is a pure function of ControllerState.
type Mapper struct {
	cfg  Config
	axis domain.ChannelID
}

// New validates cfg after applying defaults.
func New(cfg Config) (*Mapper, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	axis, _ := domain.ParseChannelID(cfg.Axis)
	return &Mapper{cfg: cfg, axis: axis}, nil
}

// Map computes the command for s. Both motors receive the same drive.
// Pushing the stick above the high threshold drives in reverse; below the
// low threshold drives forward.
func (m *Mapper) Map(s domain.ControllerState) domain.ActuatorCommand {
	v := s.Get(m.axis)
	var drive int
	switch m.cfg.Mode {
	case ModeProportional:
		drive = m.proportional(v)
	default:
		switch {
		case v > m.cfg.HighThreshold:
			drive = -m.cfg.DutyMax
		case v < m.cfg.LowThreshold:
			drive = m.cfg.DutyMax
		}
	}
	return domain.ActuatorCommand{Motor1: drive, Motor2: drive}
}

// proportional scales linearly from the duty floor at the dead-zone edge to
// the duty max at the end of travel. Values past the axis range count as
// full travel.
func (m *Mapper) proportional(v int32) int {
	var (
		travel, moved int
		sign          = 1
	)
	switch {
	case v > m.cfg.HighThreshold:
		travel = domain.AxisMax - int(m.cfg.HighThreshold)
		moved = int(v) - int(m.cfg.HighThreshold)
		sign = -1
	case v < m.cfg.LowThreshold:
		travel = int(m.cfg.LowThreshold) - domain.AxisMin
		moved = int(m.cfg.LowThreshold) - int(v)
	default:
		return 0
	}
	if travel <= 0 || moved >= travel {
		return sign * m.cfg.DutyMax
	}
	span := m.cfg.DutyMax - m.cfg.DutyFloor
	return sign * (m.cfg.DutyFloor + span*moved/travel)
}
