package hardware

import (
	"sync"

	"github.com/dougsko/audioroute/pkg/routing"
)

// MockCall records one adapter call
type MockCall struct {
	Method         string
	PreferExternal bool
}

// MockAdapter implements RoutingAdapter in memory for tests and for hosts
// without a supported audio stack.
type MockAdapter struct {
	mu      sync.Mutex
	outputs []routing.OutputDevice
	calls   []MockCall

	// Injected failures
	EnumerateErr    error
	ForceSpeakerErr error
	DefaultErr      error

	// Routing state after the last successful call
	active routing.OutputDevice
}

// NewMockAdapter creates a mock adapter with the given attached outputs
func NewMockAdapter(outputs ...routing.OutputDevice) *MockAdapter {
	return &MockAdapter{
		outputs: append([]routing.OutputDevice(nil), outputs...),
		active:  routing.Speaker,
	}
}

// Name returns the adapter name
func (m *MockAdapter) Name() string {
	return "mock"
}

// SetOutputs replaces the attached outputs, as if devices were plugged or unplugged
func (m *MockAdapter) SetOutputs(outputs ...routing.OutputDevice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs = append([]routing.OutputDevice(nil), outputs...)
}

// SetForceSpeakerErr injects a failure for later ApplyForceSpeaker calls
func (m *MockAdapter) SetForceSpeakerErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ForceSpeakerErr = err
}

// SetDefaultErr injects a failure for later ApplyDefaultRouting calls
func (m *MockAdapter) SetDefaultErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DefaultErr = err
}

// EnumerateOutputs returns the configured outputs
func (m *MockAdapter) EnumerateOutputs() ([]routing.OutputDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Method: "EnumerateOutputs"})
	if m.EnumerateErr != nil {
		return nil, m.EnumerateErr
	}
	return append([]routing.OutputDevice(nil), m.outputs...), nil
}

// ApplyForceSpeaker marks the speaker active
func (m *MockAdapter) ApplyForceSpeaker() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Method: "ApplyForceSpeaker"})
	if m.ForceSpeakerErr != nil {
		return newExecutionError(CodeMockAdapter, "force speaker", m.ForceSpeakerErr)
	}
	m.active = routing.Speaker
	return nil
}

// ApplyDefaultRouting marks the first external output active, or the speaker
// when preferExternal is false. With no external output attached the active
// output is left as it is.
func (m *MockAdapter) ApplyDefaultRouting(preferExternal bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Method: "ApplyDefaultRouting", PreferExternal: preferExternal})
	if m.DefaultErr != nil {
		return newExecutionError(CodeMockAdapter, "default routing", m.DefaultErr)
	}
	if !preferExternal {
		m.active = routing.Speaker
		return nil
	}
	for _, d := range m.outputs {
		if d.IsExternal() {
			m.active = d
			return nil
		}
	}
	return nil
}

// Calls returns a copy of the recorded calls
func (m *MockAdapter) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns how many times method was called
func (m *MockAdapter) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Active returns the output the mock currently routes to
func (m *MockAdapter) Active() routing.OutputDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
