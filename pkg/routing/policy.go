package routing

import (
	"github.com/dougsko/audioroute/pkg/logging"
)

// RoutingMode is the target state a routing decision asks the adapter for
type RoutingMode int

const (
	ForceSpeaker RoutingMode = iota
	UseDefaultRouting
)

// String returns a readable mode name
func (m RoutingMode) String() string {
	switch m {
	case ForceSpeaker:
		return "force_speaker"
	case UseDefaultRouting:
		return "use_default_routing"
	default:
		return "unknown"
	}
}

// DetectionResult is the outcome of one fresh device enumeration
type DetectionResult struct {
	HasExternalOutput bool           `json:"has_external_output"`
	Devices           []OutputDevice `json:"devices"`
}

// NewDetectionResult derives the external-output flag from an enumerated device set
func NewDetectionResult(devices []OutputDevice) DetectionResult {
	devices = Dedupe(devices)
	result := DetectionResult{Devices: devices}
	for _, d := range devices {
		if d.IsExternal() {
			result.HasExternalOutput = true
			break
		}
	}
	return result
}

// Action is what the policy asks the platform adapter to do
type Action struct {
	Mode           RoutingMode
	PreferExternal bool
}

// IsForceSpeaker reports whether the action routes to the built-in speaker
func (a Action) IsForceSpeaker() bool {
	return !a.PreferExternal
}

// Enumerator lists the output devices currently attached
type Enumerator interface {
	EnumerateOutputs() ([]OutputDevice, error)
}

// Policy holds the routing priority rule: an attached external output wins,
// the built-in speaker is the fallback for media playback.
type Policy struct{}

// NewPolicy creates a routing policy
func NewPolicy() Policy {
	return Policy{}
}

// DecideForceSpeaker always selects the speaker, whatever is attached
func (Policy) DecideForceSpeaker() Action {
	return Action{Mode: ForceSpeaker}
}

// DecideDefaultRouting keeps an external output when one is present and
// otherwise falls back to the speaker.
func (Policy) DecideDefaultRouting(detection DetectionResult) Action {
	return Action{
		Mode:           UseDefaultRouting,
		PreferExternal: detection.HasExternalOutput,
	}
}

// Detect enumerates outputs and applies the detection rule. Enumeration
// failures degrade to "no external output" and are never returned.
func (Policy) Detect(e Enumerator) DetectionResult {
	if e == nil {
		return NewDetectionResult(nil)
	}

	devices, err := e.EnumerateOutputs()
	if err != nil {
		logging.Warnf("routing", "output enumeration failed, assuming no external output: %v", err)
		return NewDetectionResult(nil)
	}
	if len(devices) == 0 {
		logging.Debug("routing", "no outputs enumerated")
		return NewDetectionResult(nil)
	}

	result := NewDetectionResult(devices)
	logging.Debug("routing", "outputs detected", map[string]interface{}{
		"devices":  DeviceNames(result.Devices),
		"external": result.HasExternalOutput,
	})
	return result
}
