package hardware

import (
	"fmt"
	"io"
	"strings"

	"github.com/dougsko/audioroute/pkg/config"
	"github.com/dougsko/audioroute/pkg/logging"
	"github.com/dougsko/audioroute/pkg/routing"
)

// AdapterConfig represents routing adapter configuration
type AdapterConfig struct {
	Platform     string
	PactlPath    string
	SpeakerSink  string
	UseBluez     bool
	BluezAdapter string
	MockOutputs  []routing.OutputDevice
}

// AdapterConfigFromConfig extracts the adapter settings from the daemon config
func AdapterConfigFromConfig(cfg *config.Config) AdapterConfig {
	mockOutputs := make([]routing.OutputDevice, 0, len(cfg.Adapter.MockOutputs))
	for _, name := range cfg.Adapter.MockOutputs {
		mockOutputs = append(mockOutputs, routing.ParseOutputDevice(name))
	}
	return AdapterConfig{
		Platform:     cfg.ResolvePlatform(),
		PactlPath:    cfg.Adapter.PactlPath,
		SpeakerSink:  cfg.Adapter.SpeakerSink,
		UseBluez:     cfg.Adapter.UseBluez,
		BluezAdapter: cfg.Adapter.BluezAdapter,
		MockOutputs:  mockOutputs,
	}
}

// NewAdapter creates the routing adapter for the configured platform. Asking
// for a platform other than the running one is an error, except for mock.
func NewAdapter(cfg AdapterConfig) (RoutingAdapter, error) {
	platform := strings.ToLower(cfg.Platform)
	logging.Infof("hardware", "initializing %s routing adapter", platform)

	var adapter RoutingAdapter
	if platform == config.PlatformMock {
		adapter = NewMockAdapter(cfg.MockOutputs...)
	} else {
		if platform != PlatformName {
			return nil, fmt.Errorf("adapter platform %q is not available on %s", platform, PlatformName)
		}
		var err error
		adapter, err = newPlatformAdapter(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s adapter: %w", platform, err)
		}
	}

	return &loggedAdapter{inner: adapter}, nil
}

// loggedAdapter logs every call made against the wrapped adapter
type loggedAdapter struct {
	inner RoutingAdapter
}

func (l *loggedAdapter) Name() string {
	return l.inner.Name()
}

// Close closes the wrapped adapter when it holds resources
func (l *loggedAdapter) Close() error {
	if c, ok := l.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Unwrap returns the platform adapter
func (l *loggedAdapter) Unwrap() RoutingAdapter {
	return l.inner
}

func (l *loggedAdapter) EnumerateOutputs() ([]routing.OutputDevice, error) {
	devices, err := l.inner.EnumerateOutputs()
	if err != nil {
		logging.Warnf("hardware", "%s: enumerate outputs failed: %v", l.inner.Name(), err)
		return nil, err
	}
	logging.Debug("hardware", "enumerated outputs", map[string]interface{}{
		"adapter": l.inner.Name(),
		"devices": routing.DeviceNames(devices),
	})
	return devices, nil
}

func (l *loggedAdapter) ApplyForceSpeaker() error {
	if err := l.inner.ApplyForceSpeaker(); err != nil {
		logging.Errorf("hardware", "%s: force speaker failed: %v", l.inner.Name(), err)
		return err
	}
	logging.Infof("hardware", "%s: output forced to speaker", l.inner.Name())
	return nil
}

func (l *loggedAdapter) ApplyDefaultRouting(preferExternal bool) error {
	if err := l.inner.ApplyDefaultRouting(preferExternal); err != nil {
		logging.Errorf("hardware", "%s: default routing failed: %v", l.inner.Name(), err)
		return err
	}
	logging.Infof("hardware", "%s: default routing applied (prefer external: %t)", l.inner.Name(), preferExternal)
	return nil
}
