//go:build darwin

package hardware

// PlatformName is the adapter platform native to this build
const PlatformName = "darwin"

// newPlatformAdapter creates the CoreAudio adapter for macOS
func newPlatformAdapter(cfg AdapterConfig) (RoutingAdapter, error) {
	return NewCoreAudioAdapter(), nil
}
