// Package simradio is an in-memory radio. A Radio acts as the central; each
// Device it knows about can also be driven as a Peripheral, so both roles can
// run against each other in one process.
package simradio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

var ErrUnknownDevice = errors.New("simradio: unknown device")

// Radio is the central side.
type Radio struct {
	mu       sync.Mutex
	devices  []*Device
	scanning bool
	pending  []domain.Advertisement

	// ConnectErr, when set, fails every Connect call.
	ConnectErr error
	// Connects records every address passed to Connect.
	Connects []string
	// Scans counts StartScan calls.
	Scans int
}

var _ ports.Radio = (*Radio)(nil)

func NewRadio() *Radio { return &Radio{} }

// AddDevice registers an advertising device exposing chans, all notify-capable.
func (r *Radio) AddDevice(adv domain.Advertisement, chans []domain.Channel) *Device {
	d := &Device{
		radio:       r,
		adv:         adv,
		set:         chans,
		channels:    make(map[string]*Channel, len(chans)),
		advertising: true,
		connectedCh: make(chan struct{}, 1),
	}
	for _, ch := range chans {
		d.channels[ch.UUID] = &Channel{uuid: ch.UUID, subscribable: true, dev: d}
	}
	r.mu.Lock()
	r.devices = append(r.devices, d)
	r.mu.Unlock()
	r.announce(adv)
	return d
}

func (r *Radio) StartScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanning = true
	r.Scans++
	r.pending = r.pending[:0]
	for _, d := range r.devices {
		if d.isAdvertising() {
			r.pending = append(r.pending, d.adv)
		}
	}
	return nil
}

func (r *Radio) StopScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanning = false
	r.pending = r.pending[:0]
	return nil
}

func (r *Radio) announce(adv domain.Advertisement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanning {
		r.pending = append(r.pending, adv)
	}
}

// Scanning reports whether a scan is active.
func (r *Radio) Scanning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanning
}

func (r *Radio) Available() (domain.Advertisement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.scanning {
		return domain.Advertisement{}, false
	}
	if len(r.pending) == 0 {
		return domain.Advertisement{}, false
	}
	adv := r.pending[0]
	r.pending = r.pending[1:]
	return adv, true
}

func (r *Radio) Connect(ctx context.Context, adv domain.Advertisement) (ports.Peer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.Connects = append(r.Connects, adv.Address)
	connectErr := r.ConnectErr
	var dev *Device
	for _, d := range r.devices {
		if d.adv.Address == adv.Address {
			dev = d
			break
		}
	}
	r.mu.Unlock()

	if connectErr != nil {
		return nil, connectErr
	}
	if dev == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, adv.Address)
	}
	dev.connect()
	return &peer{dev: dev}, nil
}

func (r *Radio) Close() error { return nil }

// ConnectCount returns how many times Connect was called.
func (r *Radio) ConnectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Connects)
}

// Device is one remote advertiser and its attribute table.
type Device struct {
	radio *Radio
	adv   domain.Advertisement
	set   []domain.Channel

	mu          sync.Mutex
	channels    map[string]*Channel
	connected   bool
	advertising bool
	connectedCh chan struct{}

	// DiscoverErr, when set, fails attribute discovery.
	DiscoverErr error
}

func (d *Device) Address() string { return d.adv.Address }

// Handle returns the attribute for uuid, nil when absent.
func (d *Device) Handle(uuid string) *Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channels[uuid]
}

// RemoveChannel drops uuid from the attribute table.
func (d *Device) RemoveChannel(uuid string) {
	d.mu.Lock()
	delete(d.channels, uuid)
	d.mu.Unlock()
}

// Notify stores payload and raises the updated flag if the channel is subscribed.
func (d *Device) Notify(uuid string, payload []byte) {
	d.mu.Lock()
	ch := d.channels[uuid]
	live := d.connected
	d.mu.Unlock()
	if ch == nil || !live {
		return
	}
	ch.notify(payload)
}

// Send encodes v for channel id and notifies it.
func (d *Device) Send(id domain.ChannelID, v int32) {
	for _, c := range d.set {
		if c.ID == id {
			d.Notify(c.UUID, c.Encode(v))
			return
		}
	}
}

// DropLink simulates a supervision timeout.
func (d *Device) DropLink() { d.disconnect() }

// Connected reports the link state as the device sees it.
func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *Device) isAdvertising() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.advertising && !d.connected
}

func (d *Device) connect() {
	d.mu.Lock()
	d.connected = true
	d.advertising = false
	d.mu.Unlock()
	select {
	case d.connectedCh <- struct{}{}:
	default:
	}
}

func (d *Device) disconnect() {
	d.mu.Lock()
	d.connected = false
	for _, ch := range d.channels {
		ch.subscribed.Store(false)
		ch.updated.Store(false)
	}
	d.mu.Unlock()
}

func (d *Device) startAdvertising() {
	d.mu.Lock()
	d.advertising = true
	d.mu.Unlock()
	d.radio.announce(d.adv)
}

type peer struct {
	dev *Device
}

func (p *peer) Address() string { return p.dev.adv.Address }
func (p *peer) Connected() bool { return p.dev.Connected() }

func (p *peer) DiscoverAttributes(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.dev.DiscoverErr
}

func (p *peer) Channel(uuid string) ports.RemoteChannel {
	ch := p.dev.Handle(uuid)
	if ch == nil {
		return nil
	}
	return ch
}

func (p *peer) Disconnect() error {
	p.dev.disconnect()
	return nil
}

// Channel is a simulated remote attribute.
type Channel struct {
	dev  *Device
	uuid string

	mu           sync.Mutex
	subscribable bool
	subscribeErr error
	value        []byte

	subscribed atomic.Bool
	updated    atomic.Bool
	reads      atomic.Int64
}

var _ ports.RemoteChannel = (*Channel)(nil)

func (c *Channel) UUID() string { return c.uuid }

func (c *Channel) CanSubscribe() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribable
}

// SetSubscribable toggles the notify property.
func (c *Channel) SetSubscribable(ok bool) {
	c.mu.Lock()
	c.subscribable = ok
	c.mu.Unlock()
}

// FailSubscribe makes the next Subscribe calls return err.
func (c *Channel) FailSubscribe(err error) {
	c.mu.Lock()
	c.subscribeErr = err
	c.mu.Unlock()
}

func (c *Channel) Subscribe() error {
	c.mu.Lock()
	err := c.subscribeErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.subscribed.Store(true)
	return nil
}

func (c *Channel) Unsubscribe() error {
	c.subscribed.Store(false)
	return nil
}

// Subscribed reports whether the central holds a subscription.
func (c *Channel) Subscribed() bool { return c.subscribed.Load() }

func (c *Channel) Updated() bool { return c.updated.Load() }
func (c *Channel) ClearUpdated() { c.updated.Store(false) }

func (c *Channel) Value() []byte {
	c.reads.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.value))
	copy(out, c.value)
	return out
}

// Reads counts Value calls.
func (c *Channel) Reads() int64 { return c.reads.Load() }

func (c *Channel) notify(payload []byte) {
	if !c.subscribed.Load() {
		return
	}
	c.mu.Lock()
	c.value = append(c.value[:0], payload...)
	c.mu.Unlock()
	c.updated.Store(true)
}
