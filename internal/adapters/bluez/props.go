package bluez

import (
	"errors"
	"fmt"
	"strings"

	dbus "github.com/godbus/dbus/v5"

	"github.com/Eric-Butcher/RealTimeRobot/internal/domain"
)

const (
	bluezService    = "org.bluez"
	adapterIface    = "org.bluez.Adapter1"
	deviceIface     = "org.bluez.Device1"
	gattCharIface   = "org.bluez.GattCharacteristic1"
	gattSvcIface    = "org.bluez.GattService1"
	objManagerIface = "org.freedesktop.DBus.ObjectManager"
	propsIface      = "org.freedesktop.DBus.Properties"
)

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// devicePath converts "AA:BB:CC:DD:EE:FF" into /org/bluez/<adapter>/dev_AA_BB_CC_DD_EE_FF.
func devicePath(adapter, address string) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("/org/bluez/%s/dev_%s", adapter,
		strings.ReplaceAll(strings.ToUpper(address), ":", "_")))
}

func macFromPath(p dbus.ObjectPath) string {
	s := string(p)
	idx := strings.LastIndex(s, "/dev_")
	if idx < 0 {
		return ""
	}
	mac := s[idx+5:]
	if slash := strings.IndexByte(mac, '/'); slash >= 0 {
		mac = mac[:slash]
	}
	return strings.ReplaceAll(mac, "_", ":")
}

// advertisementFromProps builds an Advertisement from Device1 properties.
// It reports false when the properties do not describe a device.
func advertisementFromProps(path dbus.ObjectPath, props map[string]dbus.Variant) (domain.Advertisement, bool) {
	if props == nil {
		return domain.Advertisement{}, false
	}
	adv := domain.Advertisement{}
	if v, ok := props["Address"]; ok {
		adv.Address, _ = v.Value().(string)
	}
	if adv.Address == "" {
		adv.Address = macFromPath(path)
	}
	if adv.Address == "" {
		return domain.Advertisement{}, false
	}
	if v, ok := props["Name"]; ok {
		adv.LocalName, _ = v.Value().(string)
	}
	if v, ok := props["UUIDs"]; ok {
		adv.Services, _ = v.Value().([]string)
	}
	if v, ok := props["RSSI"]; ok {
		adv.RSSI, _ = v.Value().(int16)
	}
	return adv, true
}

// subscribable reports whether GATT flags allow notifications or indications.
func subscribable(flags []string) bool {
	for _, f := range flags {
		if f == "notify" || f == "indicate" {
			return true
		}
	}
	return false
}

func getProperty[T any](conn *dbus.Conn, path dbus.ObjectPath, iface, property string) (T, error) {
	var zero T
	variant, err := conn.Object(bluezService, path).GetProperty(iface + "." + property)
	if err != nil {
		return zero, err
	}
	val, ok := variant.Value().(T)
	if !ok {
		return zero, fmt.Errorf("property %s.%s has unexpected type %T", iface, property, variant.Value())
	}
	return val, nil
}

func getManagedObjects(conn *dbus.Conn) (managedObjects, error) {
	var objs managedObjects
	call := conn.Object(bluezService, "/").Call(objManagerIface+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("bluez: GetManagedObjects: %w", call.Err)
	}
	if err := call.Store(&objs); err != nil {
		return nil, fmt.Errorf("bluez: decode GetManagedObjects: %w", err)
	}
	return objs, nil
}

// isBenign reports BlueZ errors that mean the requested state already holds.
func isBenign(err error) bool {
	var dErr dbus.Error
	if !errors.As(err, &dErr) {
		return false
	}
	switch dErr.Name {
	case "org.bluez.Error.InProgress", "org.bluez.Error.AlreadyConnected", "org.bluez.Error.AlreadyExists":
		return true
	}
	return false
}
