package ports

import (
	"context"
	"errors"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
)

// ErrRadioInit reports that the local radio could not be brought up at boot.
var ErrRadioInit = errors.New("radio init failed")

// Radio is the consumer-side (central) view of the wireless stack.
// Calls may block for a short, bounded time while the stack services itself.
type Radio interface {
	StartScan() error
	StopScan() error
	// Available returns the next discovered peer without blocking.
	Available() (domain.Advertisement, bool)
	Connect(ctx context.Context, adv domain.Advertisement) (Peer, error)
	Close() error
}

// Peer is one connected remote device.
type Peer interface {
	Address() string
	Connected() bool
	DiscoverAttributes(ctx context.Context) error
	// Channel returns the remote attribute handle for uuid, or nil when absent.
	Channel(uuid string) RemoteChannel
	Disconnect() error
}

// RemoteChannel is a resolved remote attribute. The updated flag is set by the
// transport when a notification arrives and cleared only by the consumer.
type RemoteChannel interface {
	UUID() string
	CanSubscribe() bool
	Subscribe() error
	Unsubscribe() error
	Updated() bool
	Value() []byte
	ClearUpdated()
}
