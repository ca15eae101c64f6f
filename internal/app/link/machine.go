// Package link runs the consumer's connection lifecycle.
package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Eric-Butcher/RealTimeRobot/internal/adapters/observability"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/drive"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/mapper"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/mirror"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/pacing"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/pipeline"
	"github.com/Eric-Butcher/RealTimeRobot/internal/app/registry"
	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// Filter selects which advertiser to connect to. Every non-empty criterion
// must match exactly; comparison is case-sensitive.
type Filter struct {
	ServiceUUID string   `yaml:"service_uuid"`
	LocalName   string   `yaml:"local_name"`
	Addresses   []string `yaml:"addresses"`
}

func (f Filter) Empty() bool {
	return f.ServiceUUID == "" && f.LocalName == "" && len(f.Addresses) == 0
}

// Match reports whether adv passes the filter. The advertiser must carry the
// service or the local name when either is configured; a non-empty address
// list narrows that further.
func (f Filter) Match(adv domain.Advertisement) bool {
	if f.Empty() {
		return false
	}
	if f.ServiceUUID != "" || f.LocalName != "" {
		byService := f.ServiceUUID != "" && adv.Advertises(f.ServiceUUID)
		byName := f.LocalName != "" && adv.LocalName == f.LocalName
		if !byService && !byName {
			return false
		}
	}
	if len(f.Addresses) == 0 {
		return true
	}
	for _, a := range f.Addresses {
		if a == adv.Address {
			return true
		}
	}
	return false
}

// Options are the timing and filter settings of a Machine.
type Options struct {
	Filter         Filter
	ConnectTimeout time.Duration
	ResolveTimeout time.Duration
	MinInterval    time.Duration
	IdleSleep      time.Duration
	// StaleAfter forces a stopped command when no channel has updated for
	// this long. Zero disables the check.
	StaleAfter time.Duration
	// TickEvents publishes one telemetry event per admitted poll cycle.
	TickEvents bool
}

// Deps are the collaborators of a Machine. Events may be nil.
type Deps struct {
	Radio  ports.Radio
	Set    *registry.Set
	Mapper *mapper.Mapper
	Stage  *drive.Stage
	Clock  ports.Clock
	Obs    ports.Observability
	Events *pipeline.Publisher
}

// Machine owns the link session, the mirror and the drive outputs. It is not
// safe for concurrent use; one goroutine calls Step or Run.
type Machine struct {
	deps Deps
	opts Options

	state      domain.LinkState
	scanActive bool
	candidate  domain.Advertisement
	peer       ports.Peer
	bindings   []registry.Binding
	mirror     *mirror.Mirror
	gate       *pacing.Gate
	lastCmd    domain.ActuatorCommand
}

func New(deps Deps, opts Options) (*Machine, error) {
	switch {
	case deps.Radio == nil:
		return nil, errors.New("link: radio is required")
	case deps.Set == nil:
		return nil, errors.New("link: channel set is required")
	case deps.Mapper == nil:
		return nil, errors.New("link: mapper is required")
	case deps.Stage == nil:
		return nil, errors.New("link: drive stage is required")
	case deps.Clock == nil:
		return nil, errors.New("link: clock is required")
	}
	if opts.Filter.Empty() {
		return nil, errors.New("link: filter needs at least one criterion")
	}
	if deps.Obs == nil {
		deps.Obs = observability.Nop{}
	}
	if opts.IdleSleep <= 0 {
		opts.IdleSleep = 5 * time.Millisecond
	}
	return &Machine{deps: deps, opts: opts, state: domain.Scanning}, nil
}

func (m *Machine) State() domain.LinkState { return m.state }

// LastCommand is the command most recently written to the drive stage.
func (m *Machine) LastCommand() domain.ActuatorCommand { return m.lastCmd }

// Mirror exposes the live mirror while OPERATING, nil otherwise.
func (m *Machine) Mirror() *mirror.Mirror { return m.mirror }

// Run zeroes the outputs, then steps until ctx is done. On return the outputs
// are zeroed and any peer is disconnected.
func (m *Machine) Run(ctx context.Context) error {
	if err := m.deps.Stage.Stop(); err != nil {
		m.deps.Obs.LogError("initial stop failed", err)
	}
	for ctx.Err() == nil {
		if !m.Step(ctx) {
			m.deps.Clock.Sleep(m.opts.IdleSleep)
		}
	}
	return m.shutdown()
}

// Step performs one unit of work for the current state and reports whether
// anything happened. A false result means the caller may idle briefly.
func (m *Machine) Step(ctx context.Context) bool {
	switch m.state {
	case domain.Scanning:
		return m.scan()
	case domain.Connecting:
		m.connect(ctx)
	case domain.Resolving:
		m.resolve(ctx)
	case domain.Operating:
		return m.operate()
	case domain.Disconnecting:
		m.disconnect()
	}
	return true
}

func (m *Machine) scan() bool {
	if !m.scanActive {
		if err := m.deps.Radio.StartScan(); err != nil {
			m.deps.Obs.LogError("start scan failed", err)
			return false
		}
		m.scanActive = true
	}

	adv, ok := m.deps.Radio.Available()
	if !ok {
		return false
	}
	m.deps.Obs.LogInfo("discovered",
		ports.Field{Key: "address", Value: adv.Address},
		ports.Field{Key: "local_name", Value: adv.LocalName},
		ports.Field{Key: "services", Value: strings.Join(adv.Services, ",")},
		ports.Field{Key: "rssi", Value: adv.RSSI},
	)
	m.deps.Events.Publish(domain.Event{
		Kind:   domain.EventDiscovery,
		State:  m.state.String(),
		Peer:   adv.Address,
		Detail: adv.LocalName,
	})
	if !m.opts.Filter.Match(adv) {
		return true
	}

	if err := m.deps.Radio.StopScan(); err != nil {
		m.deps.Obs.LogError("stop scan failed", err)
	}
	m.scanActive = false
	m.candidate = adv
	m.transition(domain.Connecting, "filter matched")
	return true
}

func (m *Machine) connect(ctx context.Context) {
	cctx, cancel := withTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	peer, err := m.deps.Radio.Connect(cctx, m.candidate)
	if err != nil {
		m.deps.Obs.IncCounter(observability.ConnectFailures, 1)
		m.deps.Obs.LogError("connect failed", err, ports.Field{Key: "address", Value: m.candidate.Address})
		m.fault(err)
		m.transition(domain.Scanning, "connect failed")
		return
	}
	m.peer = peer
	m.transition(domain.Resolving, "connected")
}

func (m *Machine) resolve(ctx context.Context) {
	rctx, cancel := withTimeout(ctx, m.opts.ResolveTimeout)
	defer cancel()

	if err := m.peer.DiscoverAttributes(rctx); err != nil {
		m.resolveFailed(fmt.Errorf("discover attributes: %w", err))
		return
	}
	bindings, err := m.deps.Set.Attach(m.peer)
	if err != nil {
		m.resolveFailed(err)
		return
	}

	now := m.deps.Clock.Now()
	m.bindings = bindings
	m.mirror = mirror.New(bindings, now, m.deps.Obs)
	m.gate = pacing.NewGate(m.opts.MinInterval)
	m.deps.Events.Publish(domain.Event{
		Kind:   domain.EventResolve,
		State:  m.state.String(),
		Peer:   m.peer.Address(),
		Detail: fmt.Sprintf("%d channels subscribed", len(bindings)),
	})
	m.transition(domain.Operating, "all channels subscribed")
}

func (m *Machine) resolveFailed(err error) {
	m.deps.Obs.IncCounter(observability.ResolveFailures, 1)
	m.deps.Obs.LogError("resolution failed", err, ports.Field{Key: "address", Value: m.peer.Address()})
	m.fault(err)
	m.transition(domain.Disconnecting, "resolution failed")
}

func (m *Machine) operate() bool {
	if !m.peer.Connected() {
		m.deps.Obs.IncCounter(observability.LinkDrops, 1)
		m.transition(domain.Disconnecting, "link lost")
		return true
	}

	now := m.deps.Clock.Now()
	if !m.gate.Admit(now) {
		return false
	}

	res := m.mirror.Refresh(now)
	state := m.mirror.State()
	cmd := m.deps.Mapper.Map(state)
	if m.mirror.Stale(now, m.opts.StaleAfter) && !cmd.IsStopped() {
		cmd = domain.Stopped
		m.deps.Obs.IncCounter(observability.StaleStops, 1)
	}
	if err := m.deps.Stage.Apply(cmd); err != nil {
		m.deps.Obs.LogError("drive write failed", err)
		m.fault(err)
	}
	m.lastCmd = cmd

	m.deps.Obs.IncCounter(observability.PollCycles, 1)
	m.deps.Obs.IncCounter(observability.ChannelUpdates, float64(res.Updated))
	if res.DecodeErrors > 0 {
		m.deps.Obs.IncCounter(observability.DecodeErrors, float64(res.DecodeErrors))
	}
	m.deps.Obs.SetGauge(observability.Motor1Drive, float64(cmd.Motor1))
	m.deps.Obs.SetGauge(observability.Motor2Drive, float64(cmd.Motor2))
	m.deps.Obs.ObserveLatency(observability.PollLatency, m.deps.Clock.Now().Sub(now).Seconds())

	values := state.Values()
	m.deps.Obs.LogDebug("tick", tickFields(values, cmd)...)
	if m.opts.TickEvents {
		values["motor1"] = float64(cmd.Motor1)
		values["motor2"] = float64(cmd.Motor2)
		m.deps.Events.Publish(domain.Event{
			Kind:   domain.EventTick,
			State:  m.state.String(),
			Peer:   m.peer.Address(),
			Values: values,
		})
	}
	return true
}

func (m *Machine) disconnect() {
	if err := m.deps.Stage.Stop(); err != nil {
		m.deps.Obs.LogCritical("stop outputs failed", err)
	}
	m.lastCmd = domain.Stopped
	m.deps.Obs.SetGauge(observability.Motor1Drive, 0)
	m.deps.Obs.SetGauge(observability.Motor2Drive, 0)

	if m.peer != nil {
		if err := m.peer.Disconnect(); err != nil {
			m.deps.Obs.LogError("disconnect failed", err, ports.Field{Key: "address", Value: m.peer.Address()})
		}
	}
	m.peer = nil
	m.bindings = nil
	m.mirror = nil
	m.gate = nil
	m.transition(domain.Scanning, "session closed")
}

func (m *Machine) shutdown() error {
	var err error
	if e := m.deps.Stage.Stop(); e != nil {
		err = errors.Join(err, fmt.Errorf("stop outputs: %w", e))
	}
	if m.peer != nil {
		if e := m.peer.Disconnect(); e != nil {
			err = errors.Join(err, fmt.Errorf("disconnect: %w", e))
		}
		m.peer = nil
	}
	if m.scanActive {
		if e := m.deps.Radio.StopScan(); e != nil {
			err = errors.Join(err, fmt.Errorf("stop scan: %w", e))
		}
		m.scanActive = false
	}
	m.mirror = nil
	m.bindings = nil
	return err
}

func (m *Machine) transition(to domain.LinkState, reason string) {
	from := m.state
	m.state = to
	peer := m.candidate.Address
	if m.peer != nil {
		peer = m.peer.Address()
	}

	m.deps.Obs.LogInfo("link transition",
		ports.Field{Key: "from", Value: from.String()},
		ports.Field{Key: "to", Value: to.String()},
		ports.Field{Key: "reason", Value: reason},
		ports.Field{Key: "peer", Value: peer},
	)
	m.deps.Obs.IncCounter(observability.LinkTransitions, 1)
	m.deps.Obs.SetGauge(observability.LinkState, float64(to))
	m.deps.Events.Publish(domain.Event{
		Kind:   domain.EventTransition,
		State:  to.String(),
		Peer:   peer,
		Detail: from.String() + " -> " + to.String() + ": " + reason,
	})
}

func (m *Machine) fault(err error) {
	m.deps.Events.Publish(domain.Event{
		Kind:   domain.EventFault,
		State:  m.state.String(),
		Peer:   m.candidate.Address,
		Detail: err.Error(),
	})
}

func tickFields(values map[string]float64, cmd domain.ActuatorCommand) []ports.Field {
	fields := make([]ports.Field, 0, len(values)+2)
	for _, ch := range domain.DefaultChannels() {
		fields = append(fields, ports.Field{Key: ch.ID.String(), Value: values[ch.ID.String()]})
	}
	return append(fields,
		ports.Field{Key: "motor1", Value: cmd.Motor1},
		ports.Field{Key: "motor2", Value: cmd.Motor2},
	)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
