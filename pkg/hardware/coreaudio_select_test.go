package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dougsko/audioroute/pkg/routing"
)

func TestSpeakerCandidates(t *testing.T) {
	t.Run("Separate Headphone Device Listed First", func(t *testing.T) {
		kinds := []routing.OutputDevice{routing.WiredHeadset, routing.Speaker}
		assert.Equal(t, []int{1, 0}, speakerCandidates(kinds))
	})

	t.Run("Shared Device With Headphone Source", func(t *testing.T) {
		kinds := []routing.OutputDevice{routing.BluetoothClassic, routing.WiredHeadset}
		assert.Equal(t, []int{1}, speakerCandidates(kinds))
	})

	t.Run("External Devices Ignored", func(t *testing.T) {
		kinds := []routing.OutputDevice{routing.AirPlayOrCast, routing.Unknown, routing.BluetoothLowEnergy}
		assert.Empty(t, speakerCandidates(kinds))
	})
}

func TestBestExternal(t *testing.T) {
	tests := []struct {
		name  string
		kinds []routing.OutputDevice
		want  int
		found bool
	}{
		{"Bluetooth Over Wired", []routing.OutputDevice{routing.Speaker, routing.WiredHeadset, routing.BluetoothLowEnergy}, 2, true},
		{"Wired Over AirPlay", []routing.OutputDevice{routing.AirPlayOrCast, routing.WiredHeadset}, 1, true},
		{"First Of Equal Rank", []routing.OutputDevice{routing.BluetoothClassic, routing.BluetoothLowEnergy}, 0, true},
		{"Speaker Only", []routing.OutputDevice{routing.Speaker, routing.Unknown}, -1, false},
		{"Nothing", nil, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := bestExternal(tt.kinds)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
