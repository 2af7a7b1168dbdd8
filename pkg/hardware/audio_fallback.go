//go:build !darwin && !linux

package hardware

import (
	"fmt"
	"runtime"
)

// PlatformName is the adapter platform native to this build
const PlatformName = runtime.GOOS

// newPlatformAdapter fails on platforms without a native adapter; configure
// the mock platform there instead.
func newPlatformAdapter(cfg AdapterConfig) (RoutingAdapter, error) {
	return nil, fmt.Errorf("no routing adapter for %s, set adapter.platform to mock", runtime.GOOS)
}
