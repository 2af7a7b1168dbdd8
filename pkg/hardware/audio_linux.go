//go:build linux

package hardware

import (
	"github.com/dougsko/audioroute/pkg/logging"
)

// PlatformName is the adapter platform native to this build
const PlatformName = "linux"

// newPlatformAdapter creates the sound server adapter for Linux. BlueZ is
// optional: without it Bluetooth outputs are still seen through their sinks.
func newPlatformAdapter(cfg AdapterConfig) (RoutingAdapter, error) {
	pulseConfig := PulseConfig{
		PactlPath:   cfg.PactlPath,
		SpeakerSink: cfg.SpeakerSink,
	}

	if cfg.UseBluez {
		bz, err := NewBluezClient(cfg.BluezAdapter)
		if err != nil {
			logging.Warnf("hardware", "BlueZ unavailable, continuing without it: %v", err)
		} else {
			pulseConfig.Bluetooth = bz
		}
	}

	return NewPulseAdapter(pulseConfig), nil
}
