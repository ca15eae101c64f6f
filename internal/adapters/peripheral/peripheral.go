// Package peripheral serves the controller channel set as a GATT service
// through tinygo.org/x/bluetooth.
package peripheral

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"tinygo.org/x/bluetooth"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

type Config struct {
	LocalName   string `yaml:"local_name"`
	ServiceUUID string `yaml:"service_uuid"`
}

func (c *Config) ApplyDefaults() {
	if c.LocalName == "" {
		c.LocalName = domain.ControllerLocalName
	}
	if c.ServiceUUID == "" {
		c.ServiceUUID = domain.ControllerServiceUUID
	}
}

func (c Config) Validate() error {
	if c.LocalName == "" {
		return errors.New("peripheral.local_name is required")
	}
	if _, err := bluetooth.ParseUUID(c.ServiceUUID); err != nil {
		return fmt.Errorf("peripheral.service_uuid: %w", err)
	}
	return nil
}

// Peripheral is the default adapter advertising one service whose
// characteristics are the channel set.
type Peripheral struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	chars   map[domain.ChannelID]*bluetooth.Characteristic

	events chan connEvent

	mu          sync.Mutex
	current     *central
	advertising bool
}

type connEvent struct {
	device    bluetooth.Device
	connected bool
}

var _ ports.Peripheral = (*Peripheral)(nil)

// Open enables the default adapter and registers the service. Every failure
// here wraps ports.ErrRadioInit.
func Open(cfg Config, chans []domain.Channel) (*Peripheral, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrRadioInit, err)
	}
	serviceUUID, _ := bluetooth.ParseUUID(cfg.ServiceUUID)

	p := &Peripheral{
		adapter: bluetooth.DefaultAdapter,
		chars:   make(map[domain.ChannelID]*bluetooth.Characteristic, len(chans)),
		events:  make(chan connEvent, 8),
	}

	// Must be installed before Enable.
	p.adapter.SetConnectHandler(p.onConnect)
	if err := p.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("%w: enable adapter: %v", ports.ErrRadioInit, err)
	}

	neutral := domain.NeutralState()
	configs := make([]bluetooth.CharacteristicConfig, 0, len(chans))
	for _, ch := range chans {
		uuid, err := bluetooth.ParseUUID(ch.UUID)
		if err != nil {
			return nil, fmt.Errorf("%w: channel %s: %v", ports.ErrRadioInit, ch.ID, err)
		}
		handle := new(bluetooth.Characteristic)
		p.chars[ch.ID] = handle
		configs = append(configs, bluetooth.CharacteristicConfig{
			Handle: handle,
			UUID:   uuid,
			Value:  ch.Encode(neutral.Get(ch.ID)),
			Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
		})
	}
	if err := p.adapter.AddService(&bluetooth.Service{UUID: serviceUUID, Characteristics: configs}); err != nil {
		return nil, fmt.Errorf("%w: add service: %v", ports.ErrRadioInit, err)
	}

	p.adv = p.adapter.DefaultAdvertisement()
	err := p.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    cfg.LocalName,
		ServiceUUIDs: []bluetooth.UUID{serviceUUID},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: configure advertisement: %v", ports.ErrRadioInit, err)
	}
	return p, nil
}

func (p *Peripheral) onConnect(device bluetooth.Device, connected bool) {
	p.mu.Lock()
	if p.current != nil && !connected && p.current.addr == device.Address.String() {
		p.current.connected.Store(false)
	}
	p.mu.Unlock()

	select {
	case p.events <- connEvent{device: device, connected: connected}:
	default:
	}
}

// Advertise (re)starts advertising. BlueZ drops the advertisement once a
// central connects, so a stale one is stopped first.
func (p *Peripheral) Advertise() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.advertising {
		_ = p.adv.Stop()
	}
	if err := p.adv.Start(); err != nil {
		return fmt.Errorf("start advertisement: %w", err)
	}
	p.advertising = true
	return nil
}

func (p *Peripheral) WaitCentral(ctx context.Context) (ports.Central, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev := <-p.events:
			if !ev.connected {
				continue
			}
			c := &central{device: ev.device, addr: ev.device.Address.String()}
			c.connected.Store(true)
			p.mu.Lock()
			p.current = c
			p.mu.Unlock()
			return c, nil
		}
	}
}

// Publish writes value to the characteristic, notifying subscribed centrals.
func (p *Peripheral) Publish(id domain.ChannelID, value []byte) error {
	handle, ok := p.chars[id]
	if !ok {
		return fmt.Errorf("channel %s not in service", id)
	}
	if _, err := handle.Write(value); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	return nil
}

type central struct {
	device    bluetooth.Device
	addr      string
	connected atomic.Bool
}

func (c *central) Address() string { return c.addr }
func (c *central) Connected() bool { return c.connected.Load() }

func (c *central) Disconnect() error {
	c.connected.Store(false)
	return c.device.Disconnect()
}
