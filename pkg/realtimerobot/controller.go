package realtimerobot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/gpio"
	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/peripheral"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/indicator"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/source"
	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// Controller is the input-source role: it advertises the channel service and
// streams sampled inputs to the connected receiver.
type Controller struct {
	rt       *runtime
	sampler  ports.InputSampler
	linkLED  ports.Indicator
	source   *source.Source
	radioErr error

	closeOnce sync.Once
	closeErr  error
}

// NewController wires the default adapters (BlueZ peripheral through
// tinygo bluetooth, GPIO inputs and lights). Options override any of them.
func NewController(cfg *Config, opts ...Option) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	ov := collectOverrides(opts)

	// The board provides both the inputs and the default lights.
	var board *gpio.Board
	if ov.sampler == nil {
		b, err := gpio.Open(cfg.Controller.GPIO)
		if err != nil {
			return nil, fmt.Errorf("open inputs: %w", err)
		}
		board = b
		ov.sampler = b
		if ov.linkLED == nil && ov.powerLED == nil {
			ov.linkLED, ov.powerLED = b.LinkLED(), b.PowerLED()
		}
	}

	rt, err := newRuntime(cfg, "controller", ov)
	if err != nil {
		if board != nil {
			_ = board.Close()
		}
		return nil, err
	}
	c := &Controller{rt: rt, sampler: ov.sampler, linkLED: ov.linkLED}
	indicator.Set(ov.powerLED, true)

	chans := domain.DefaultChannels()
	periph := ov.peripheral
	if periph == nil {
		p, err := peripheral.Open(cfg.Controller.Peripheral, chans)
		if err != nil {
			c.radioErr = err
			return c, nil
		}
		periph = p
	}

	c.source, err = source.New(source.Deps{
		Peripheral: periph,
		Sampler:    c.sampler,
		Channels:   chans,
		Clock:      rt.clock,
		Obs:        rt.obs,
		LinkLED:    c.linkLED,
		Events:     rt.events,
	}, source.Options{
		CentralAddress: cfg.Controller.CentralAddress,
		SampleInterval: cfg.Controller.SampleInterval,
		IdleSleep:      cfg.Poll.IdleSleep,
	})
	if err != nil {
		return nil, errors.Join(err, c.close())
	}
	return c, nil
}

// Run advertises and serves receivers until ctx is cancelled. If the radio
// could not be initialized, Run blinks the power light until ctx is done and
// returns an error wrapping ErrRadioInit.
func (c *Controller) Run(ctx context.Context) error {
	c.rt.start(ctx)

	var runErr error
	if c.radioErr != nil {
		runErr = c.rt.fatal(ctx, c.radioErr)
	} else {
		runErr = c.source.Run(ctx)
	}
	return errors.Join(runErr, c.close())
}

func (c *Controller) close() error {
	c.closeOnce.Do(func() {
		indicator.Set(c.linkLED, false)
		indicator.Set(c.rt.powerLED, false)
		var errs []error
		if err := c.rt.stop(); err != nil {
			errs = append(errs, err)
		}
		if err := c.sampler.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close inputs: %w", err))
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
