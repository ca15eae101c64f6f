package ports

import (
	"context"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
)

// Peripheral is the input-source (advertising) view of the wireless stack.
type Peripheral interface {
	// Advertise (re)starts advertising the session service.
	Advertise() error
	// WaitCentral blocks until a central connects or ctx is done.
	WaitCentral(ctx context.Context) (Central, error)
	// Publish sets the channel value and notifies subscribers.
	Publish(id domain.ChannelID, value []byte) error
}

// Central is the device connected to a Peripheral.
type Central interface {
	Address() string
	Connected() bool
	Disconnect() error
}

// InputSampler reads the physical inputs of the controller.
type InputSampler interface {
	Sample() (domain.ControllerState, error)
	Close() error
}
