package hardware

import (
	"fmt"

	"github.com/dougsko/audioroute/pkg/routing"
)

// Error codes reported by the platform adapters
const (
	CodeAudioManager = "AUDIO_MANAGER_ERROR" // Linux sound server
	CodeAudioSession = "AUDIO_SESSION_ERROR" // macOS CoreAudio
	CodeMockAdapter  = "MOCK_ADAPTER_ERROR"
)

// RoutingAdapter executes routing actions against the OS audio stack. It is
// the only component that mutates real device state. Calls are synchronous;
// configuration and activation of a routing change succeed or fail together.
type RoutingAdapter interface {
	// Name identifies the adapter in logs and status output
	Name() string

	// EnumerateOutputs lists attached outputs. An empty list is not an error.
	EnumerateOutputs() ([]routing.OutputDevice, error)

	// ApplyForceSpeaker routes playback to the built-in speaker, overriding
	// any external output, and activates the change immediately.
	ApplyForceSpeaker() error

	// ApplyDefaultRouting lets an external output take over when
	// preferExternal is set, otherwise behaves like ApplyForceSpeaker.
	ApplyDefaultRouting(preferExternal bool) error
}

// AdapterExecutionError reports a native audio subsystem failure
type AdapterExecutionError struct {
	Code    string
	Op      string
	Message string
	Err     error
}

func (e *AdapterExecutionError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *AdapterExecutionError) Unwrap() error {
	return e.Err
}

func newExecutionError(code, op string, err error) *AdapterExecutionError {
	return &AdapterExecutionError{
		Code:    code,
		Op:      op,
		Message: err.Error(),
		Err:     err,
	}
}
