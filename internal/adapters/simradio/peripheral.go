package simradio

import (
	"context"
	"fmt"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// Peripheral drives a Device from the input-source side.
type Peripheral struct {
	dev *Device
}

var _ ports.Peripheral = (*Peripheral)(nil)

// Peripheral returns the advertising side of d.
func (d *Device) Peripheral() *Peripheral { return &Peripheral{dev: d} }

func (p *Peripheral) Advertise() error {
	p.dev.startAdvertising()
	return nil
}

func (p *Peripheral) WaitCentral(ctx context.Context) (ports.Central, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.dev.connectedCh:
			if p.dev.Connected() {
				return central{dev: p.dev}, nil
			}
		}
	}
}

func (p *Peripheral) Publish(id domain.ChannelID, value []byte) error {
	for _, c := range p.dev.set {
		if c.ID == id {
			p.dev.Notify(c.UUID, value)
			return nil
		}
	}
	return fmt.Errorf("simradio: channel %s not in service", id)
}

type central struct {
	dev *Device
}

func (c central) Address() string { return "sim-central" }
func (c central) Connected() bool { return c.dev.Connected() }

func (c central) Disconnect() error {
	c.dev.disconnect()
	return nil
}
