// Package gpio reads the controller's buttons and thumb stick and drives its
// status lights on a Linux GPIO character device.
package gpio

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	gpiod "github.com/warthog618/go-gpiocdev"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// Config maps inputs and lights to line offsets. A zero offset selects the
// default wiring. Axes are read from IIO raw value files; an empty path
// leaves that axis centered.
type Config struct {
	Chip             string `yaml:"chip"`
	ThumbStickButton int    `yaml:"thumb_stick_button"`
	YellowButton     int    `yaml:"yellow_button"`
	RedButton        int    `yaml:"red_button"`
	GreenButton      int    `yaml:"green_button"`
	BlueButton       int    `yaml:"blue_button"`
	AxisX            string `yaml:"axis_x"`
	AxisY            string `yaml:"axis_y"`
	BluetoothLED     int    `yaml:"bluetooth_led"`
	PowerLED         int    `yaml:"power_led"`
}

func (c *Config) ApplyDefaults() {
	if c.Chip == "" {
		c.Chip = "gpiochip0"
	}
	defaults := []struct {
		v   *int
		def int
	}{
		{&c.ThumbStickButton, 2},
		{&c.YellowButton, 3},
		{&c.RedButton, 4},
		{&c.GreenButton, 5},
		{&c.BlueButton, 6},
		{&c.BluetoothLED, 7},
		{&c.PowerLED, 8},
	}
	for _, d := range defaults {
		if *d.v == 0 {
			*d.v = d.def
		}
	}
}

func (c Config) Validate() error {
	seen := make(map[int]string)
	for name, off := range c.offsets() {
		if off < 0 {
			return fmt.Errorf("gpio.%s: negative offset %d", name, off)
		}
		if other, dup := seen[off]; dup {
			return fmt.Errorf("gpio.%s and gpio.%s share line %d", name, other, off)
		}
		seen[off] = name
	}
	return nil
}

func (c Config) offsets() map[string]int {
	return map[string]int{
		"thumb_stick_button": c.ThumbStickButton,
		"yellow_button":      c.YellowButton,
		"red_button":         c.RedButton,
		"green_button":       c.GreenButton,
		"blue_button":        c.BlueButton,
		"bluetooth_led":      c.BluetoothLED,
		"power_led":          c.PowerLED,
	}
}

// buttonOrder is the order button lines are requested and read in.
var buttonOrder = []domain.ChannelID{
	domain.ThumbStickButton,
	domain.YellowButton,
	domain.RedButton,
	domain.GreenButton,
	domain.BlueButton,
}

type lineValues interface {
	Values([]int) error
	Close() error
}

type lineSetter interface {
	SetValue(int) error
	Close() error
}

// Board owns every requested line of one chip.
type Board struct {
	chip    *gpiod.Chip
	buttons lineValues
	axisX   string
	axisY   string
	link    *LED
	power   *LED
}

var _ ports.InputSampler = (*Board)(nil)

func Open(cfg Config) (*Board, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	chip, err := gpiod.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open chip %s: %w", cfg.Chip, err)
	}
	b := &Board{chip: chip, axisX: cfg.AxisX, axisY: cfg.AxisY}

	offsets := []int{cfg.ThumbStickButton, cfg.YellowButton, cfg.RedButton, cfg.GreenButton, cfg.BlueButton}
	buttons, err := chip.RequestLines(offsets, gpiod.AsInput, gpiod.WithPullUp)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("request button lines: %w", err)
	}
	b.buttons = buttons

	for _, led := range []struct {
		dst    **LED
		offset int
	}{{&b.link, cfg.BluetoothLED}, {&b.power, cfg.PowerLED}} {
		line, err := chip.RequestLine(led.offset, gpiod.AsOutput(0))
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("request led line %d: %w", led.offset, err)
		}
		*led.dst = &LED{line: line}
	}
	return b, nil
}

// Sample reads every button and both axes once.
func (b *Board) Sample() (domain.ControllerState, error) {
	state := domain.NeutralState()
	vals := make([]int, len(buttonOrder))
	if err := b.buttons.Values(vals); err != nil {
		return state, fmt.Errorf("read buttons: %w", err)
	}
	for i, id := range buttonOrder {
		state.Set(id, int32(vals[i]))
	}

	var errs error
	if b.axisX != "" {
		v, err := readAxis(b.axisX)
		errs = errors.Join(errs, err)
		state.ThumbStickX = v
	}
	if b.axisY != "" {
		v, err := readAxis(b.axisY)
		errs = errors.Join(errs, err)
		state.ThumbStickY = v
	}
	return state, errs
}

// LinkLED is lit while a central is connected.
func (b *Board) LinkLED() *LED { return b.link }

// PowerLED blinks in the fatal loop.
func (b *Board) PowerLED() *LED { return b.power }

func (b *Board) Close() error {
	var errs error
	for _, led := range []*LED{b.link, b.power} {
		if led != nil {
			errs = errors.Join(errs, led.Close())
		}
	}
	if b.buttons != nil {
		errs = errors.Join(errs, b.buttons.Close())
	}
	if b.chip != nil {
		errs = errors.Join(errs, b.chip.Close())
	}
	return errs
}

// readAxis parses an IIO raw sample and clamps it to the axis range.
// A failed read yields the middle position.
func readAxis(path string) (int32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.AxisMiddle, fmt.Errorf("read axis: %w", err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return domain.AxisMiddle, fmt.Errorf("parse axis %s: %w", path, err)
	}
	switch {
	case v < domain.AxisMin:
		v = domain.AxisMin
	case v > domain.AxisMax:
		v = domain.AxisMax
	}
	return int32(v), nil
}

// LED is one output line.
type LED struct {
	line lineSetter
}

var _ ports.Indicator = (*LED)(nil)

func (l *LED) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return l.line.SetValue(v)
}

func (l *LED) Close() error {
	_ = l.line.SetValue(0)
	return l.line.Close()
}
