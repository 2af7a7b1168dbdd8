package gateway

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dougsko/audioroute/pkg/hardware"
	"github.com/dougsko/audioroute/pkg/logging"
	"github.com/dougsko/audioroute/pkg/protocol"
	"github.com/dougsko/audioroute/pkg/routing"
)

// Recorder stores handled commands
type Recorder interface {
	RecordCommand(record protocol.CommandRecord) error
}

// Gateway is the single entry point for routing commands. It runs one
// command at a time from parse to adapter call.
type Gateway struct {
	mu       sync.Mutex
	policy   routing.Policy
	adapter  hardware.RoutingAdapter
	recorder Recorder

	commands atomic.Int64
	failures atomic.Int64
}

// NewGateway creates a gateway over a platform adapter. recorder may be nil.
func NewGateway(adapter hardware.RoutingAdapter, recorder Recorder) *Gateway {
	return &Gateway{
		policy:   routing.NewPolicy(),
		adapter:  adapter,
		recorder: recorder,
	}
}

// AdapterName returns the name of the platform adapter
func (g *Gateway) AdapterName() string {
	return g.adapter.Name()
}

// Stats returns the number of handled commands and how many failed
func (g *Gateway) Stats() (commands, failures int64) {
	return g.commands.Load(), g.failures.Load()
}

// Handle runs the named command and returns its boolean result. Routing
// commands return true on success, isHeadphonesConnected returns the
// detection outcome.
func (g *Gateway) Handle(name string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	record := protocol.CommandRecord{
		ID:        uuid.NewString(),
		Command:   name,
		Timestamp: time.Now().UTC(),
	}
	start := time.Now()

	result, detection, err := g.dispatch(name)

	record.DurationMs = time.Since(start).Milliseconds()
	record.Result = result
	record.Success = err == nil
	if detection != nil {
		record.HasExternalOutput = detection.HasExternalOutput
		record.Devices = routing.DeviceNames(detection.Devices)
	}

	g.commands.Add(1)
	if err != nil {
		g.failures.Add(1)
		record.ErrorCode = ErrorCode(err)
		record.ErrorMessage = err.Error()
		logging.Warn("gateway", "command failed", map[string]interface{}{
			"id":      record.ID,
			"command": name,
			"code":    record.ErrorCode,
			"error":   record.ErrorMessage,
		})
	} else {
		logging.Info("gateway", "command handled", map[string]interface{}{
			"id":          record.ID,
			"command":     name,
			"result":      result,
			"duration_ms": record.DurationMs,
		})
	}

	g.record(record)
	return result, err
}

// Outputs enumerates the attached outputs without changing routing
func (g *Gateway) Outputs() routing.DetectionResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.policy.Detect(g.adapter)
}

func (g *Gateway) dispatch(name string) (bool, *routing.DetectionResult, error) {
	cmd, err := ParseCommand(name)
	if err != nil {
		return false, nil, err
	}

	switch cmd {
	case ForceAudioToSpeaker:
		if err := g.apply(g.policy.DecideForceSpeaker()); err != nil {
			return false, nil, adapterFailure(cmd, err)
		}
		return true, nil, nil

	case UseDefaultAudioRouting:
		detection := g.policy.Detect(g.adapter)
		if err := g.apply(g.policy.DecideDefaultRouting(detection)); err != nil {
			return false, &detection, adapterFailure(cmd, err)
		}
		return true, &detection, nil

	case IsHeadphonesConnected:
		detection := g.policy.Detect(g.adapter)
		return detection.HasExternalOutput, &detection, nil
	}

	// Unreachable while ParseCommand and the switch cover the same set
	return false, nil, unsupported(name)
}

func (g *Gateway) apply(action routing.Action) error {
	if action.Mode == routing.ForceSpeaker {
		return g.adapter.ApplyForceSpeaker()
	}
	return g.adapter.ApplyDefaultRouting(action.PreferExternal)
}

func (g *Gateway) record(record protocol.CommandRecord) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.RecordCommand(record); err != nil {
		logging.Warnf("gateway", "failed to record command %s: %v", record.ID, err)
	}
}

// AsCommandError extracts the CommandError from err
func AsCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	ok := errors.As(err, &cmdErr)
	return cmdErr, ok
}
