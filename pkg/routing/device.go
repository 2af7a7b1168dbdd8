package routing

import "strings"

// OutputDevice is the kind of physical sink an enumerated output belongs to
type OutputDevice int

const (
	Unknown OutputDevice = iota
	Speaker
	WiredHeadset
	BluetoothClassic
	BluetoothLowEnergy
	AirPlayOrCast
)

var deviceNames = map[OutputDevice]string{
	Unknown:            "unknown",
	Speaker:            "speaker",
	WiredHeadset:       "wired_headset",
	BluetoothClassic:   "bluetooth_classic",
	BluetoothLowEnergy: "bluetooth_le",
	AirPlayOrCast:      "airplay_or_cast",
}

// String returns the wire name of the device kind
func (d OutputDevice) String() string {
	if name, ok := deviceNames[d]; ok {
		return name
	}
	return deviceNames[Unknown]
}

// IsExternal reports whether the device counts as an attached external output.
// Speaker and Unknown never count.
func (d OutputDevice) IsExternal() bool {
	switch d {
	case WiredHeadset, BluetoothClassic, BluetoothLowEnergy, AirPlayOrCast:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler
func (d OutputDevice) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unrecognized names map to Unknown.
func (d *OutputDevice) UnmarshalText(text []byte) error {
	*d = ParseOutputDevice(string(text))
	return nil
}

// ParseOutputDevice maps a wire name to a device kind
func ParseOutputDevice(name string) OutputDevice {
	name = strings.ToLower(strings.TrimSpace(name))
	for d, n := range deviceNames {
		if n == name {
			return d
		}
	}
	return Unknown
}

// DeviceNames converts devices to their wire names, preserving order
func DeviceNames(devices []OutputDevice) []string {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.String()
	}
	return names
}

// Dedupe returns devices with duplicates removed, keeping first occurrence order
func Dedupe(devices []OutputDevice) []OutputDevice {
	seen := make(map[OutputDevice]bool, len(devices))
	out := make([]OutputDevice, 0, len(devices))
	for _, d := range devices {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
