package bluez

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	dbus "github.com/godbus/dbus/v5"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// Radio is a BLE central backed by BlueZ on the system D-Bus.
//
// A single dispatcher goroutine consumes bus signals. It queues discovered
// devices while scanning and stores notified characteristic values on the
// matching handle. The control loop only reads those handles.
type Radio struct {
	cfg         Config
	conn        *dbus.Conn
	adapterPath dbus.ObjectPath

	scanning atomic.Bool
	adverts  chan domain.Advertisement

	mu      sync.Mutex
	handles map[dbus.ObjectPath]*remoteChannel
	closed  bool

	sigCh chan *dbus.Signal
	stop  chan struct{}
	wg    sync.WaitGroup
}

var _ ports.Radio = (*Radio)(nil)

// Open connects to the system bus and verifies the adapter is powered.
// Failures wrap ports.ErrRadioInit.
func Open(cfg Config) (*Radio, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: bluez config: %v", ports.ErrRadioInit, err)
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: connect system bus: %v", ports.ErrRadioInit, err)
	}

	adapterPath := dbus.ObjectPath("/org/bluez/" + cfg.Adapter)
	powered, err := getProperty[bool](conn, adapterPath, adapterIface, "Powered")
	if err != nil {
		return nil, fmt.Errorf("%w: adapter %s: %v", ports.ErrRadioInit, cfg.Adapter, err)
	}
	if !powered {
		if err := conn.Object(bluezService, adapterPath).SetProperty(adapterIface+".Powered", dbus.MakeVariant(true)); err != nil {
			return nil, fmt.Errorf("%w: power on %s: %v", ports.ErrRadioInit, cfg.Adapter, err)
		}
	}

	r := &Radio{
		cfg:         cfg,
		conn:        conn,
		adapterPath: adapterPath,
		adverts:     make(chan domain.Advertisement, cfg.ScanBuffer),
		handles:     make(map[dbus.ObjectPath]*remoteChannel),
		sigCh:       make(chan *dbus.Signal, 64),
		stop:        make(chan struct{}),
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchSender(bluezService),
		dbus.WithMatchInterface(objManagerIface),
		dbus.WithMatchMember("InterfacesAdded"),
	); err != nil {
		return nil, fmt.Errorf("%w: match InterfacesAdded: %v", ports.ErrRadioInit, err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchSender(bluezService),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return nil, fmt.Errorf("%w: match PropertiesChanged: %v", ports.ErrRadioInit, err)
	}
	conn.Signal(r.sigCh)

	r.wg.Add(1)
	go r.dispatch()
	return r, nil
}

func (r *Radio) StartScan() error {
	adapter := r.conn.Object(bluezService, r.adapterPath)
	filter := map[string]dbus.Variant{
		"Transport":     dbus.MakeVariant("le"),
		"DuplicateData": dbus.MakeVariant(r.cfg.DuplicateAds),
	}
	if err := adapter.Call(adapterIface+".SetDiscoveryFilter", 0, filter).Err; err != nil {
		return fmt.Errorf("bluez: SetDiscoveryFilter: %w", err)
	}
	if err := adapter.Call(adapterIface+".StartDiscovery", 0).Err; err != nil && !isBenign(err) {
		return fmt.Errorf("bluez: StartDiscovery: %w", err)
	}
	r.scanning.Store(true)

	// Devices BlueZ already knows about do not emit InterfacesAdded again.
	objs, err := getManagedObjects(r.conn)
	if err != nil {
		return err
	}
	for path, ifaces := range objs {
		if adv, ok := advertisementFromProps(path, ifaces[deviceIface]); ok {
			r.offer(adv)
		}
	}
	return nil
}

func (r *Radio) StopScan() error {
	r.scanning.Store(false)
drain:
	for {
		select {
		case <-r.adverts:
		default:
			break drain
		}
	}
	err := r.conn.Object(bluezService, r.adapterPath).Call(adapterIface+".StopDiscovery", 0).Err
	if err != nil && !isBenign(err) {
		return fmt.Errorf("bluez: StopDiscovery: %w", err)
	}
	return nil
}

func (r *Radio) Available() (domain.Advertisement, bool) {
	select {
	case adv := <-r.adverts:
		return adv, true
	default:
		return domain.Advertisement{}, false
	}
}

func (r *Radio) Connect(ctx context.Context, adv domain.Advertisement) (ports.Peer, error) {
	path := devicePath(r.cfg.Adapter, adv.Address)
	call := r.conn.Object(bluezService, path).CallWithContext(ctx, deviceIface+".Connect", 0)
	if call.Err != nil && !isBenign(call.Err) {
		return nil, fmt.Errorf("bluez: connect %s: %w", adv.Address, call.Err)
	}
	connected, err := getProperty[bool](r.conn, path, deviceIface, "Connected")
	if err != nil {
		return nil, fmt.Errorf("bluez: connect %s: %w", adv.Address, err)
	}
	if !connected {
		return nil, fmt.Errorf("bluez: device %s did not confirm connection", adv.Address)
	}
	return &peer{radio: r, path: path, address: adv.Address}, nil
}

// Close stops the dispatcher and releases the bus connection.
func (r *Radio) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.stop)
	r.wg.Wait()
	r.conn.RemoveSignal(r.sigCh)

	var err error
	if e := r.conn.RemoveMatchSignal(
		dbus.WithMatchSender(bluezService),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
	); e != nil {
		err = errors.Join(err, e)
	}
	if e := r.conn.RemoveMatchSignal(
		dbus.WithMatchSender(bluezService),
		dbus.WithMatchInterface(objManagerIface),
		dbus.WithMatchMember("InterfacesAdded"),
	); e != nil {
		err = errors.Join(err, e)
	}
	return err
}

// offer queues adv without blocking; a full queue drops the oldest report.
func (r *Radio) offer(adv domain.Advertisement) {
	if !r.scanning.Load() {
		return
	}
	for {
		select {
		case r.adverts <- adv:
			return
		default:
		}
		select {
		case <-r.adverts:
		default:
		}
	}
}

func (r *Radio) dispatch() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop:
			return
		case sig, ok := <-r.sigCh:
			if !ok {
				return
			}
			if sig == nil {
				continue
			}
			switch sig.Name {
			case objManagerIface + ".InterfacesAdded":
				r.onInterfacesAdded(sig)
			case propsIface + ".PropertiesChanged":
				r.onPropertiesChanged(sig)
			}
		}
	}
}

func (r *Radio) onInterfacesAdded(sig *dbus.Signal) {
	if len(sig.Body) < 2 || !r.scanning.Load() {
		return
	}
	path, _ := sig.Body[0].(dbus.ObjectPath)
	ifaces, _ := sig.Body[1].(map[string]map[string]dbus.Variant)
	if adv, ok := advertisementFromProps(path, ifaces[deviceIface]); ok {
		r.offer(adv)
	}
}

func (r *Radio) onPropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	iface, _ := sig.Body[0].(string)
	changed, _ := sig.Body[1].(map[string]dbus.Variant)
	if changed == nil {
		return
	}

	switch iface {
	case gattCharIface:
		v, ok := changed["Value"]
		if !ok {
			return
		}
		r.mu.Lock()
		h := r.handles[sig.Path]
		r.mu.Unlock()
		if h == nil {
			return
		}
		if b, ok := v.Value().([]byte); ok {
			h.store(b)
		}
	case deviceIface:
		// RSSI refreshes mean the device is advertising again.
		if _, ok := changed["RSSI"]; !ok || !r.scanning.Load() {
			return
		}
		var props map[string]dbus.Variant
		call := r.conn.Object(bluezService, sig.Path).Call(propsIface+".GetAll", 0, deviceIface)
		if call.Err != nil || call.Store(&props) != nil {
			return
		}
		if adv, ok := advertisementFromProps(sig.Path, props); ok {
			r.offer(adv)
		}
	}
}

func (r *Radio) track(h *remoteChannel) {
	r.mu.Lock()
	r.handles[h.path] = h
	r.mu.Unlock()
}

func (r *Radio) untrackUnder(prefix dbus.ObjectPath) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for p := range r.handles {
		if strings.HasPrefix(string(p), string(prefix)+"/") {
			delete(r.handles, p)
		}
	}
}
