// Package source runs the input-source role: advertise, accept one central
// and stream sampled inputs to it.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/observability"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/indicator"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/pacing"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/pipeline"
	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

type Options struct {
	// CentralAddress, when set, is the only central allowed to stay connected.
	CentralAddress string
	SampleInterval time.Duration
	IdleSleep      time.Duration
}

type Deps struct {
	Peripheral ports.Peripheral
	Sampler    ports.InputSampler
	Channels   []domain.Channel
	Clock      ports.Clock
	Obs        ports.Observability
	// LinkLED is lit while a central is connected. May be nil.
	LinkLED ports.Indicator
	Events  *pipeline.Publisher
}

type Source struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) (*Source, error) {
	switch {
	case deps.Peripheral == nil:
		return nil, errors.New("source: peripheral is required")
	case deps.Sampler == nil:
		return nil, errors.New("source: sampler is required")
	case len(deps.Channels) == 0:
		return nil, errors.New("source: channel set is empty")
	case deps.Clock == nil:
		return nil, errors.New("source: clock is required")
	}
	if deps.Obs == nil {
		deps.Obs = observability.Nop{}
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 200 * time.Millisecond
	}
	if opts.IdleSleep <= 0 {
		opts.IdleSleep = 5 * time.Millisecond
	}
	return &Source{deps: deps, opts: opts}, nil
}

// Run advertises and serves centrals one at a time until ctx is done.
func (s *Source) Run(ctx context.Context) error {
	defer indicator.Set(s.deps.LinkLED, false)
	for {
		if err := s.deps.Peripheral.Advertise(); err != nil {
			return fmt.Errorf("advertise: %w", err)
		}
		s.deps.Obs.LogInfo("advertising")

		central, err := s.deps.Peripheral.WaitCentral(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait central: %w", err)
		}

		if !s.allowed(central.Address()) {
			_ = central.Disconnect()
			s.deps.Obs.IncCounter(observability.CentralsRejected, 1)
			s.deps.Obs.LogInfo("central rejected", ports.Field{Key: "address", Value: central.Address()})
			s.event(domain.EventFault, central.Address(), "central not on allow-list")
			continue
		}

		s.deps.Obs.LogInfo("central connected", ports.Field{Key: "address", Value: central.Address()})
		s.event(domain.EventTransition, central.Address(), "connected")
		indicator.Set(s.deps.LinkLED, true)

		s.serve(ctx, central)

		indicator.Set(s.deps.LinkLED, false)
		s.deps.Obs.LogInfo("central disconnected", ports.Field{Key: "address", Value: central.Address()})
		s.event(domain.EventTransition, central.Address(), "disconnected")

		if ctx.Err() != nil {
			_ = central.Disconnect()
			return nil
		}
	}
}

func (s *Source) allowed(addr string) bool {
	return s.opts.CentralAddress == "" || strings.EqualFold(addr, s.opts.CentralAddress)
}

func (s *Source) serve(ctx context.Context, central ports.Central) {
	gate := pacing.NewGate(s.opts.SampleInterval)
	for ctx.Err() == nil && central.Connected() {
		if !gate.Admit(s.deps.Clock.Now()) {
			s.deps.Clock.Sleep(s.opts.IdleSleep)
			continue
		}
		if err := s.publish(); err != nil {
			s.deps.Obs.LogError("publish sample failed", err)
		}
	}
}

// publish samples every input once and notifies each channel.
func (s *Source) publish() error {
	state, err := s.deps.Sampler.Sample()
	if err != nil {
		return fmt.Errorf("sample: %w", err)
	}
	var errs error
	for _, ch := range s.deps.Channels {
		if e := s.deps.Peripheral.Publish(ch.ID, ch.Encode(state.Get(ch.ID))); e != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", ch.ID, e))
		}
	}
	s.deps.Obs.IncCounter(observability.SamplesPublished, 1)
	s.deps.Obs.LogDebug("sample", sampleFields(state)...)
	return errs
}

func (s *Source) event(kind domain.EventKind, peer, detail string) {
	s.deps.Events.Publish(domain.Event{Kind: kind, State: "SOURCE", Peer: peer, Detail: detail})
}

func sampleFields(state domain.ControllerState) []ports.Field {
	values := state.Values()
	fields := make([]ports.Field, 0, len(values))
	for _, ch := range domain.DefaultChannels() {
		fields = append(fields, ports.Field{Key: ch.ID.String(), Value: values[ch.ID.String()]})
	}
	return fields
}
