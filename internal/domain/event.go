package domain

import "time"

// EventKind classifies a telemetry event.
type EventKind string

const (
	EventTransition EventKind = "transition"
	EventDiscovery  EventKind = "discovery"
	EventResolve    EventKind = "resolve"
	EventTick       EventKind = "tick"
	EventFault      EventKind = "fault"
)

// Event is the unit of diagnostic telemetry emitted by either role.
// It is advisory only; nothing reads events back.
type Event struct {
	Seq    uint64             `json:"seq"`
	Time   time.Time          `json:"ts"`
	Kind   EventKind          `json:"kind"`
	State  string             `json:"state"`
	Peer   string             `json:"peer"`
	Detail string             `json:"detail"`
	Values map[string]float64 `json:"values"`
}
