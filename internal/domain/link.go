package domain

import "fmt"

// LinkState is a step of the consumer's connection lifecycle.
type LinkState int

const (
	Scanning LinkState = iota
	Connecting
	Resolving
	Operating
	Disconnecting
)

func (s LinkState) String() string {
	switch s {
	case Scanning:
		return "SCANNING"
	case Connecting:
		return "CONNECTING"
	case Resolving:
		return "RESOLVING"
	case Operating:
		return "OPERATING"
	case Disconnecting:
		return "DISCONNECTING"
	default:
		return fmt.Sprintf("LinkState(%d)", int(s))
	}
}

// Advertisement is what the radio reports for a discovered peer.
type Advertisement struct {
	Address   string
	LocalName string
	Services  []string
	RSSI      int16
}

// Advertises reports whether uuid is in the advertised service list (exact match).
func (a Advertisement) Advertises(uuid string) bool {
	for _, s := range a.Services {
		if s == uuid {
			return true
		}
	}
	return false
}
