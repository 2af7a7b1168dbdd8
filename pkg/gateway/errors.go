package gateway

import (
	"errors"
	"fmt"

	"github.com/dougsko/audioroute/pkg/hardware"
)

// Error codes returned to callers
const (
	CodeUnsupportedCommand = "UNSUPPORTED_COMMAND"
	CodeAdapterError       = "ADAPTER_ERROR"
)

// ErrUnsupportedCommand matches any rejected method name via errors.Is
var ErrUnsupportedCommand = errors.New("unsupported command")

// CommandError is the failure a caller receives for a command
type CommandError struct {
	Code    string
	Command string
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	return e.Message
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsUnsupported reports whether err rejects an unknown method name
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedCommand)
}

// ErrorCode returns the caller-facing code carried by err
func ErrorCode(err error) string {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code
	}
	var execErr *hardware.AdapterExecutionError
	if errors.As(err, &execErr) {
		return execErr.Code
	}
	return CodeAdapterError
}

func unsupported(name string) *CommandError {
	return &CommandError{
		Code:    CodeUnsupportedCommand,
		Command: name,
		Message: fmt.Sprintf("%s: %q", ErrUnsupportedCommand, name),
		Err:     ErrUnsupportedCommand,
	}
}

// errorContext is the prefix put in front of a native adapter message. The
// macOS audio session keeps its own wording.
func errorContext(cmd Command, code string) string {
	session := code == hardware.CodeAudioSession
	switch {
	case cmd == ForceAudioToSpeaker && session:
		return "Failed to set audio session category"
	case cmd == ForceAudioToSpeaker:
		return "Error forcing audio to speaker"
	case session:
		return "Failed to set default audio routing"
	default:
		return "Error setting default audio routing"
	}
}

// adapterFailure keeps the native message and code of an adapter error
// behind the command's context prefix.
func adapterFailure(cmd Command, err error) *CommandError {
	code := CodeAdapterError
	native := err.Error()
	var execErr *hardware.AdapterExecutionError
	if errors.As(err, &execErr) {
		code = execErr.Code
		native = execErr.Message
	}
	return &CommandError{
		Code:    code,
		Command: cmd.String(),
		Message: fmt.Sprintf("%s: %s", errorContext(cmd, code), native),
		Err:     err,
	}
}
