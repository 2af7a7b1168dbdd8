package hardware

import "github.com/dougsko/audioroute/pkg/routing"

// speakerCandidates returns output indexes to try for the built-in speaker,
// best first. Devices already reporting the speaker come first. Built-in
// devices showing headphones as their data source follow, since some can be
// switched back to the speaker source. Machines that expose headphones and
// speakers as separate built-in devices hit the first group.
func speakerCandidates(kinds []routing.OutputDevice) []int {
	var speakers, headphones []int
	for i, kind := range kinds {
		switch kind {
		case routing.Speaker:
			speakers = append(speakers, i)
		case routing.WiredHeadset:
			headphones = append(headphones, i)
		}
	}
	return append(speakers, headphones...)
}

// externalRank orders external outputs; lower is preferred
var externalRank = map[routing.OutputDevice]int{
	routing.BluetoothClassic:   0,
	routing.BluetoothLowEnergy: 0,
	routing.WiredHeadset:       1,
	routing.AirPlayOrCast:      2,
}

// bestExternal returns the index of the preferred external output. Ties go
// to the earlier device.
func bestExternal(kinds []routing.OutputDevice) (int, bool) {
	best := -1
	for i, kind := range kinds {
		rank, ok := externalRank[kind]
		if !ok {
			continue
		}
		if best < 0 || rank < externalRank[kinds[best]] {
			best = i
		}
	}
	return best, best >= 0
}
