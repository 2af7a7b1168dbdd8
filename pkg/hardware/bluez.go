package hardware

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/dougsko/audioroute/pkg/routing"
)

const (
	bluezBusName      = "org.bluez"
	bluezDeviceIface  = "org.bluez.Device1"
	objectManagerCall = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
)

// Bluetooth service UUIDs of audio sinks
var (
	classicAudioUUIDs = []string{
		"0000110b-0000-1000-8000-00805f9b34fb", // A2DP audio sink
		"00001108-0000-1000-8000-00805f9b34fb", // headset
		"0000111e-0000-1000-8000-00805f9b34fb", // hands-free
	}
	leAudioUUIDs = []string{
		"0000184e-0000-1000-8000-00805f9b34fb", // audio stream control
		"00001850-0000-1000-8000-00805f9b34fb", // published audio capabilities
	}
)

// managedObjects is the reply shape of ObjectManager.GetManagedObjects
type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// BluezClient reads the BlueZ device inventory over the system D-Bus
type BluezClient struct {
	conn        *dbus.Conn
	adapterPath string
}

// NewBluezClient connects to the system bus and checks that BlueZ is present
func NewBluezClient(adapterPath string) (*BluezClient, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	found := false
	for _, n := range names {
		if n == bluezBusName {
			found = true
			break
		}
	}
	if !found {
		conn.Close()
		return nil, fmt.Errorf("%s not found on system bus, is bluetooth.service running?", bluezBusName)
	}

	return &BluezClient{conn: conn, adapterPath: adapterPath}, nil
}

// Close releases the bus connection
func (b *BluezClient) Close() error {
	return b.conn.Close()
}

// ConnectedAudioOutputs lists connected devices that accept audio
func (b *BluezClient) ConnectedAudioOutputs() ([]routing.OutputDevice, error) {
	var objects managedObjects
	obj := b.conn.Object(bluezBusName, "/")
	if err := obj.Call(objectManagerCall, 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("get managed objects: %w", err)
	}
	return audioOutputsFromObjects(objects, b.adapterPath), nil
}

// audioOutputsFromObjects picks connected audio devices under adapterPath
func audioOutputsFromObjects(objects managedObjects, adapterPath string) []routing.OutputDevice {
	prefix := adapterPath + "/dev_"
	var devices []routing.OutputDevice
	for path, ifaces := range objects {
		if adapterPath != "" && !strings.HasPrefix(string(path), prefix) {
			continue
		}
		props, ok := ifaces[bluezDeviceIface]
		if !ok {
			continue
		}
		connected, _ := props["Connected"].Value().(bool)
		if !connected {
			continue
		}
		uuids, _ := props["UUIDs"].Value().([]string)
		if kind, ok := classifyBluetoothUUIDs(uuids); ok {
			devices = append(devices, kind)
		}
	}
	return devices
}

// classifyBluetoothUUIDs maps advertised services to exactly one device kind.
// Classic profiles win for dual-mode devices.
func classifyBluetoothUUIDs(uuids []string) (routing.OutputDevice, bool) {
	has := func(set []string) bool {
		for _, u := range uuids {
			u = strings.ToLower(u)
			for _, s := range set {
				if u == s {
					return true
				}
			}
		}
		return false
	}

	switch {
	case has(classicAudioUUIDs):
		return routing.BluetoothClassic, true
	case has(leAudioUUIDs):
		return routing.BluetoothLowEnergy, true
	default:
		return routing.Unknown, false
	}
}
