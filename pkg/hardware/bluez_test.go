package hardware

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"

	"github.com/dougsko/audioroute/pkg/routing"
)

func bluezDevice(connected bool, uuids ...string) map[string]map[string]dbus.Variant {
	return map[string]map[string]dbus.Variant{
		bluezDeviceIface: {
			"Connected": dbus.MakeVariant(connected),
			"UUIDs":     dbus.MakeVariant(uuids),
		},
	}
}

func TestClassifyBluetoothUUIDs(t *testing.T) {
	t.Run("A2DP Sink", func(t *testing.T) {
		kind, ok := classifyBluetoothUUIDs([]string{"0000110B-0000-1000-8000-00805F9B34FB"})
		assert.True(t, ok)
		assert.Equal(t, routing.BluetoothClassic, kind)
	})

	t.Run("LE Audio", func(t *testing.T) {
		kind, ok := classifyBluetoothUUIDs([]string{"0000184e-0000-1000-8000-00805f9b34fb"})
		assert.True(t, ok)
		assert.Equal(t, routing.BluetoothLowEnergy, kind)
	})

	t.Run("Dual Mode Reports Classic", func(t *testing.T) {
		kind, ok := classifyBluetoothUUIDs([]string{
			"00001850-0000-1000-8000-00805f9b34fb",
			"0000111e-0000-1000-8000-00805f9b34fb",
		})
		assert.True(t, ok)
		assert.Equal(t, routing.BluetoothClassic, kind)
	})

	t.Run("Keyboard", func(t *testing.T) {
		_, ok := classifyBluetoothUUIDs([]string{"00001124-0000-1000-8000-00805f9b34fb"})
		assert.False(t, ok)
	})
}

func TestAudioOutputsFromObjects(t *testing.T) {
	objects := managedObjects{
		"/org/bluez/hci0": {
			"org.bluez.Adapter1": {"Powered": dbus.MakeVariant(true)},
		},
		"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF": bluezDevice(true, "0000110b-0000-1000-8000-00805f9b34fb"),
		"/org/bluez/hci0/dev_11_22_33_44_55_66": bluezDevice(false, "0000110b-0000-1000-8000-00805f9b34fb"),
		"/org/bluez/hci0/dev_77_88_99_AA_BB_CC": bluezDevice(true, "00001124-0000-1000-8000-00805f9b34fb"),
		"/org/bluez/hci1/dev_DE_AD_BE_EF_00_01": bluezDevice(true, "0000184e-0000-1000-8000-00805f9b34fb"),
	}

	t.Run("Connected Audio Devices On Adapter", func(t *testing.T) {
		devices := audioOutputsFromObjects(objects, "/org/bluez/hci0")
		assert.Equal(t, []routing.OutputDevice{routing.BluetoothClassic}, devices)
	})

	t.Run("Any Adapter", func(t *testing.T) {
		devices := audioOutputsFromObjects(objects, "")
		assert.ElementsMatch(t, []routing.OutputDevice{routing.BluetoothClassic, routing.BluetoothLowEnergy}, devices)
	})

	t.Run("No Devices", func(t *testing.T) {
		assert.Empty(t, audioOutputsFromObjects(managedObjects{}, "/org/bluez/hci0"))
	})
}
