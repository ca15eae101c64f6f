package bluez

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	dbus "github.com/godbus/dbus/v5"

	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

type peer struct {
	radio   *Radio
	path    dbus.ObjectPath
	address string

	mu    sync.Mutex
	chars map[string]*remoteChannel
}

var _ ports.Peer = (*peer)(nil)

func (p *peer) Address() string { return p.address }

func (p *peer) Connected() bool {
	ok, err := getProperty[bool](p.radio.conn, p.path, deviceIface, "Connected")
	return err == nil && ok
}

// DiscoverAttributes waits for BlueZ to resolve services and then indexes every
// characteristic under the device by lower-cased UUID.
func (p *peer) DiscoverAttributes(ctx context.Context) error {
	ticker := time.NewTicker(p.radio.cfg.ResolvePoll)
	defer ticker.Stop()
	for {
		resolved, err := getProperty[bool](p.radio.conn, p.path, deviceIface, "ServicesResolved")
		if err == nil && resolved {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("bluez: service discovery on %s: %w", p.address, ctx.Err())
		case <-ticker.C:
		}
	}

	objs, err := getManagedObjects(p.radio.conn)
	if err != nil {
		return err
	}
	chars := make(map[string]*remoteChannel)
	prefix := string(p.path) + "/"
	for path, ifaces := range objs {
		props, ok := ifaces[gattCharIface]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}
		uuid, _ := props["UUID"].Value().(string)
		if uuid == "" {
			continue
		}
		flags, _ := props["Flags"].Value().([]string)
		chars[strings.ToLower(uuid)] = &remoteChannel{
			conn:  p.radio.conn,
			path:  path,
			uuid:  uuid,
			flags: flags,
		}
	}

	p.mu.Lock()
	p.chars = chars
	p.mu.Unlock()
	return nil
}

func (p *peer) Channel(uuid string) ports.RemoteChannel {
	p.mu.Lock()
	h, ok := p.chars[strings.ToLower(uuid)]
	p.mu.Unlock()
	if !ok {
		return nil
	}
	p.radio.track(h)
	return h
}

func (p *peer) Disconnect() error {
	p.radio.untrackUnder(p.path)
	err := p.radio.conn.Object(bluezService, p.path).Call(deviceIface+".Disconnect", 0).Err
	if err != nil {
		return fmt.Errorf("bluez: disconnect %s: %w", p.address, err)
	}
	return nil
}

// remoteChannel is one GATT characteristic. store runs on the dispatcher
// goroutine; every other method runs on the control loop.
type remoteChannel struct {
	conn  *dbus.Conn
	path  dbus.ObjectPath
	uuid  string
	flags []string

	mu      sync.Mutex
	value   []byte
	updated atomic.Bool
}

var _ ports.RemoteChannel = (*remoteChannel)(nil)

func (c *remoteChannel) UUID() string       { return c.uuid }
func (c *remoteChannel) CanSubscribe() bool { return subscribable(c.flags) }
func (c *remoteChannel) Updated() bool      { return c.updated.Load() }
func (c *remoteChannel) ClearUpdated()      { c.updated.Store(false) }

func (c *remoteChannel) Subscribe() error {
	err := c.conn.Object(bluezService, c.path).Call(gattCharIface+".StartNotify", 0).Err
	if err != nil && !isBenign(err) {
		return err
	}
	return nil
}

func (c *remoteChannel) Unsubscribe() error {
	return c.conn.Object(bluezService, c.path).Call(gattCharIface+".StopNotify", 0).Err
}

func (c *remoteChannel) Value() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.value))
	copy(out, c.value)
	return out
}

func (c *remoteChannel) store(b []byte) {
	c.mu.Lock()
	c.value = append(c.value[:0], b...)
	c.mu.Unlock()
	c.updated.Store(true)
}
