package realtimerobot

import (
	"time"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// ErrRadioInit is returned from Run when the wireless stack could not be
// brought up. Run only returns it after ctx is done.
var ErrRadioInit = ports.ErrRadioInit

// Radio is the consumer's view of the wireless stack (scan, connect).
type Radio = ports.Radio

// Peer is a connected advertiser.
type Peer = ports.Peer

// RemoteChannel is one resolved attribute on a Peer.
type RemoteChannel = ports.RemoteChannel

// Peripheral is the input source's advertising side.
type Peripheral = ports.Peripheral

// Central is the device connected to a Peripheral.
type Central = ports.Central

// InputSampler reads the physical controller inputs.
type InputSampler = ports.InputSampler

// PWM writes motor duty cycles.
type PWM = ports.PWM

// Indicator is a status light.
type Indicator = ports.Indicator

type Clock = ports.Clock

// EventSink consumes batches of telemetry events.
type EventSink = ports.EventSink

// Observability emits metrics and structured logs.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

type (
	PipelineEvent   = domain.Event
	EventKind       = domain.EventKind
	LinkState       = domain.LinkState
	ControllerState = domain.ControllerState
	ActuatorCommand = domain.ActuatorCommand
	Advertisement   = domain.Advertisement
	Channel         = domain.Channel
	ChannelID       = domain.ChannelID
)

const (
	Scanning      = domain.Scanning
	Connecting    = domain.Connecting
	Resolving     = domain.Resolving
	Operating     = domain.Operating
	Disconnecting = domain.Disconnecting
)

// Event kinds, for filtering sinks.
const (
	EventTransition = domain.EventTransition
	EventDiscovery  = domain.EventDiscovery
	EventResolve    = domain.EventResolve
	EventTick       = domain.EventTick
	EventFault      = domain.EventFault
)

// Event mirrors the internal telemetry event but is safe for external callers.
type Event struct {
	Seq    uint64
	Time   time.Time
	Kind   string
	State  string
	Peer   string
	Detail string
	Values map[string]float64
}

// EventBatchSink is invoked with ordered batches dequeued from the telemetry queue.
type EventBatchSink func([]Event) error

func eventFromDomain(e *domain.Event) Event {
	out := Event{
		Seq:    e.Seq,
		Time:   e.Time,
		Kind:   string(e.Kind),
		State:  e.State,
		Peer:   e.Peer,
		Detail: e.Detail,
	}
	if len(e.Values) > 0 {
		out.Values = make(map[string]float64, len(e.Values))
		for k, v := range e.Values {
			out.Values[k] = v
		}
	}
	return out
}

func (e Event) toDomain() *domain.Event {
	return &domain.Event{
		Seq:    e.Seq,
		Time:   e.Time,
		Kind:   domain.EventKind(e.Kind),
		State:  e.State,
		Peer:   e.Peer,
		Detail: e.Detail,
		Values: e.Values,
	}
}

// DefaultChannels is the deployment channel set in subscription order.
func DefaultChannels() []Channel {
	return domain.DefaultChannels()
}
